package api

import (
	"encoding/json"
	"net/http"

	"github.com/agentfloor/agentfloor/internal/world"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// AgentsHandler provides REST endpoints for the current world state
type AgentsHandler struct {
	store  *world.Store
	logger zerolog.Logger
}

// NewAgentsHandler creates a new AgentsHandler
func NewAgentsHandler(store *world.Store, logger zerolog.Logger) *AgentsHandler {
	return &AgentsHandler{
		store:  store,
		logger: logger.With().Str("component", "agents_handler").Logger(),
	}
}

// GetAgents returns the current world snapshot
// GET /api/agents
func (h *AgentsHandler) GetAgents(w http.ResponseWriter, r *http.Request) {
	snapshot := h.store.Snapshot()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(snapshot)
}

// GetAgent returns a single agent by id
// GET /api/agents/{agentId}
func (h *AgentsHandler) GetAgent(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agentId")
	if agentID == "" {
		http.Error(w, "agentId is required", http.StatusBadRequest)
		return
	}

	agent, ok := h.store.Agent(agentID)
	if !ok {
		http.Error(w, "agent not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(agent)
}
