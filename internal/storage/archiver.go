package storage

import (
	"context"

	"github.com/agentfloor/agentfloor/internal/types"
	"github.com/rs/zerolog"
)

// archiveBuffer bounds the pending archive queue; entries past it are
// dropped so archiving can never block event application
const archiveBuffer = 512

// Archiver decouples timeline persistence from the event path. Enqueue is
// non-blocking and lossy under backlog; a background worker drains the
// queue into the store.
type Archiver struct {
	store   Store
	entries chan types.EventHistoryEntry
	dropped int64
	logger  zerolog.Logger
}

// NewArchiver creates an archiver writing to the given store
func NewArchiver(store Store, logger zerolog.Logger) *Archiver {
	return &Archiver{
		store:   store,
		entries: make(chan types.EventHistoryEntry, archiveBuffer),
		logger:  logger.With().Str("component", "archiver").Logger(),
	}
}

// Enqueue submits one entry for archiving; it never blocks
func (a *Archiver) Enqueue(entry types.EventHistoryEntry) {
	select {
	case a.entries <- entry:
	default:
		a.dropped++
		a.logger.Warn().Int64("dropped_total", a.dropped).Msg("archive queue full, dropping entry")
	}
}

// Start drains the queue until the context is cancelled
func (a *Archiver) Start(ctx context.Context) {
	a.logger.Info().Msg("archiver started")

	for {
		select {
		case <-ctx.Done():
			a.logger.Info().Msg("archiver stopped")
			return

		case entry := <-a.entries:
			if err := a.store.SaveTimelineEntry(entry); err != nil {
				a.logger.Error().Err(err).Msg("failed to archive timeline entry")
			}
		}
	}
}
