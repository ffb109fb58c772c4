package server

import (
	"context"
	"encoding/json"
	"time"

	"github.com/agentfloor/agentfloor/internal/metrics"
	"github.com/agentfloor/agentfloor/internal/world"
	"github.com/rs/zerolog"
)

// Broadcaster periodically snapshots the world and fans it out to every
// connected renderer through the hub. This is the render loop's feed: one
// consistent payload per cycle regardless of how many events arrived.
type Broadcaster struct {
	store    *world.Store
	hub      *Hub
	interval time.Duration
	metrics  *metrics.Metrics
	logger   zerolog.Logger
}

// NewBroadcaster creates a snapshot broadcaster
func NewBroadcaster(store *world.Store, hub *Hub, interval time.Duration, m *metrics.Metrics, logger zerolog.Logger) *Broadcaster {
	return &Broadcaster{
		store:    store,
		hub:      hub,
		interval: interval,
		metrics:  m,
		logger:   logger.With().Str("component", "broadcaster").Logger(),
	}
}

// Start begins broadcasting snapshots until the context is cancelled
func (b *Broadcaster) Start(ctx context.Context) {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	b.logger.Info().Dur("interval", b.interval).Msg("broadcaster started")

	for {
		select {
		case <-ctx.Done():
			b.logger.Info().Msg("broadcaster stopped")
			return

		case <-ticker.C:
			cycleStart := time.Now()

			b.store.AppendTokenSnapshot()
			snapshot := b.store.Snapshot()
			b.metrics.UpdateWorldStats(snapshot)

			data, err := json.Marshal(snapshot)
			if err != nil {
				b.logger.Error().Err(err).Msg("failed to marshal snapshot")
				b.metrics.RecordBroadcastError()
				continue
			}

			b.hub.Broadcast(data)
			b.metrics.RecordBroadcastCycle(time.Since(cycleStart))

			b.logger.Debug().
				Int("agents", len(snapshot.Agents)).
				Int("links", len(snapshot.Links)).
				Int("clients", b.hub.ClientCount()).
				Msg("snapshot broadcasted")
		}
	}
}
