package server

import (
	"net/http"

	"github.com/agentfloor/agentfloor/internal/config"
	"github.com/agentfloor/agentfloor/internal/metrics"
	"github.com/agentfloor/agentfloor/internal/world"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origin is enforced by the CORS middleware in front of this route
		return true
	},
}

// Handler handles renderer WebSocket upgrade requests
type Handler struct {
	hub     *Hub
	store   *world.Store
	config  *config.Config
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// NewHandler creates a new WebSocket handler
func NewHandler(hub *Hub, store *world.Store, cfg *config.Config, m *metrics.Metrics, logger zerolog.Logger) *Handler {
	return &Handler{
		hub:     hub,
		store:   store,
		config:  cfg,
		metrics: m,
		logger:  logger,
	}
}

// ServeHTTP handles WebSocket upgrade requests
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to upgrade connection")
		return
	}

	client := NewClient(h.hub, conn, h.store, h.config, h.logger)
	h.hub.register <- client

	client.Start()
}
