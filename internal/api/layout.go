package api

import (
	"encoding/json"
	"net/http"

	"github.com/agentfloor/agentfloor/internal/prefs"
	"github.com/rs/zerolog"
)

// LayoutHandler provides REST endpoints for persisted panel layout preferences
type LayoutHandler struct {
	store  *prefs.FileStore
	logger zerolog.Logger
}

// NewLayoutHandler creates a new LayoutHandler
func NewLayoutHandler(store *prefs.FileStore, logger zerolog.Logger) *LayoutHandler {
	return &LayoutHandler{
		store:  store,
		logger: logger.With().Str("component", "layout_handler").Logger(),
	}
}

// GetLayout returns the stored panel layout merged over the defaults
// GET /api/layout
func (h *LayoutHandler) GetLayout(w http.ResponseWriter, r *http.Request) {
	layout := h.store.Load()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(layout)
}

// PutLayout replaces the stored panel layout
// PUT /api/layout
func (h *LayoutHandler) PutLayout(w http.ResponseWriter, r *http.Request) {
	var layout prefs.Layout
	if err := json.NewDecoder(r.Body).Decode(&layout); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	if err := h.store.Save(layout); err != nil {
		h.logger.Error().Err(err).Msg("failed to save layout preferences")
		http.Error(w, "failed to save layout", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "saved"})
}
