package session

import (
	"context"
	"encoding/json"
	"time"

	"github.com/agentfloor/agentfloor/internal/gateway"
	"github.com/agentfloor/agentfloor/internal/types"
	"github.com/agentfloor/agentfloor/internal/world"
	"github.com/rs/zerolog"
)

// listMethod is the gateway RPC returning the current sub-agent sessions
const listMethod = "sessions.list"

// Poller periodically retrieves the sub-agent session list from the
// gateway and drives sub-agent spawn/despawn on the world store from the
// diff against the previous poll. Poll failures are logged and skipped;
// the poller never stops on its own.
type Poller struct {
	rpc      *gateway.Client
	store    *world.Store
	interval time.Duration
	logger   zerolog.Logger
}

// NewPoller creates a session poller
func NewPoller(rpc *gateway.Client, store *world.Store, interval time.Duration, logger zerolog.Logger) *Poller {
	return &Poller{
		rpc:      rpc,
		store:    store,
		interval: interval,
		logger:   logger.With().Str("component", "session_poller").Logger(),
	}
}

// Start runs the poll loop until the context is cancelled
func (p *Poller) Start(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.Info().Dur("interval", p.interval).Msg("session poller started")

	for {
		select {
		case <-ctx.Done():
			p.logger.Info().Msg("session poller stopped")
			return

		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *Poller) poll(ctx context.Context) {
	payload, err := p.rpc.Request(ctx, listMethod, nil)
	if err != nil {
		p.logger.Warn().Err(err).Msg("session poll failed")
		return
	}

	var resp struct {
		Sessions []types.SubAgentInfo `json:"sessions"`
	}
	if err := json.Unmarshal(payload, &resp); err != nil {
		p.logger.Warn().Err(err).Msg("failed to decode session list")
		return
	}

	prev := p.store.SessionsSnapshot().Sessions
	added, removed := DiffSessions(prev, resp.Sessions)

	for _, info := range added {
		parentID := p.store.ResolveSessionAgent(info.RequesterSessionKey)
		if parentID == "" {
			p.logger.Debug().
				Str("session_key", info.SessionKey).
				Str("requester", info.RequesterSessionKey).
				Msg("no parent agent for new session, skipping")
			continue
		}
		p.store.AddSubAgent(parentID, info)
	}
	for _, info := range removed {
		p.store.RemoveSubAgent(info.AgentID)
	}

	p.store.SetSessionsSnapshot(types.SessionsSnapshot{
		Sessions:  resp.Sessions,
		FetchedAt: time.Now(),
	})

	if len(added) > 0 || len(removed) > 0 {
		p.logger.Debug().
			Int("added", len(added)).
			Int("removed", len(removed)).
			Msg("session diff applied")
	}
}
