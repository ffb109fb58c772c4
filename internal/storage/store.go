package storage

import (
	"context"

	"github.com/agentfloor/agentfloor/internal/types"
	"github.com/rs/zerolog"
)

// Store defines the timeline archive interface
type Store interface {
	SaveTimelineEntry(entry types.EventHistoryEntry) error
	GetTimeline(dateKey string) ([]types.EventHistoryEntry, error)
	TruncateAll() error
}

// NoopStore is a no-op implementation when DynamoDB is disabled
type NoopStore struct{}

func NewNoopStore() *NoopStore { return &NoopStore{} }

func (s *NoopStore) SaveTimelineEntry(_ types.EventHistoryEntry) error       { return nil }
func (s *NoopStore) GetTimeline(_ string) ([]types.EventHistoryEntry, error) { return nil, nil }
func (s *NoopStore) TruncateAll() error                                      { return nil }

// NewStore creates the appropriate store based on configuration
func NewStore(ctx context.Context, logger zerolog.Logger) (Store, error) {
	cfg := LoadDynamoConfig()

	switch cfg.Mode {
	case DynamoModeLocal, DynamoModeAWS:
		return NewDynamoDBStore(ctx, cfg, logger)
	default:
		logger.Info().Msg("DynamoDB disabled (DYNAMO_MODE=none)")
		return NewNoopStore(), nil
	}
}
