package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/agentfloor/agentfloor/internal/storage"
	"github.com/agentfloor/agentfloor/internal/types"
	"github.com/rs/zerolog"
)

// TimelineHandler provides REST endpoints for the archived event timeline
type TimelineHandler struct {
	store  storage.Store
	logger zerolog.Logger
}

// NewTimelineHandler creates a new TimelineHandler
func NewTimelineHandler(store storage.Store, logger zerolog.Logger) *TimelineHandler {
	return &TimelineHandler{
		store:  store,
		logger: logger.With().Str("component", "timeline_handler").Logger(),
	}
}

// GetTimeline returns archived events for a day
// GET /api/timeline?date=YYYY-MM-DD (defaults to today)
func (h *TimelineHandler) GetTimeline(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		date = time.Now().UTC().Format("2006-01-02")
	}

	entries, err := h.store.GetTimeline(date)
	if err != nil {
		h.logger.Error().Err(err).Str("date", date).Msg("failed to get timeline")
		http.Error(w, "failed to retrieve timeline", http.StatusInternalServerError)
		return
	}

	if entries == nil {
		entries = []types.EventHistoryEntry{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entries)
}
