package world

import (
	"sort"
	"time"

	"github.com/agentfloor/agentfloor/internal/meeting"
	"github.com/agentfloor/agentfloor/internal/types"
)

// Snapshot returns a render-ready copy of the world. Agents are sorted by
// id so consecutive snapshots are stable for the renderer.
func (s *Store) Snapshot() types.WorldSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	agents := make([]types.VisualAgent, 0, len(s.agents))
	for _, agent := range s.agents {
		copied := *agent
		if agent.OriginalPosition != nil {
			original := *agent.OriginalPosition
			copied.OriginalPosition = &original
		}
		copied.ChildAgentIDs = append([]string(nil), agent.ChildAgentIDs...)
		copied.ToolCallHistory = append([]types.ToolCall(nil), agent.ToolCallHistory...)
		agents = append(agents, copied)
	}
	sort.Slice(agents, func(i, j int) bool { return agents[i].ID < agents[j].ID })

	return types.WorldSnapshot{
		Type:       "snapshot",
		Timestamp:  time.Now(),
		Agents:     agents,
		Links:      append([]types.CollaborationLink(nil), s.links...),
		Groups:     meeting.DetectMeetingGroups(s.links, s.agents),
		Metrics:    s.metrics,
		History:    append([]types.EventHistoryEntry(nil), s.history...),
		TokenTrend: append([]types.TokenSnapshot(nil), s.tokenTrend...),
		Selected:   s.selectedAgentID,
	}
}

// AppendTokenSnapshot records the current token totals into the trend
// series and refreshes the derived token rate. The broadcaster calls this
// once per cycle, so it doubles as the time-driven decay pass: links age
// out and meetings dissolve here even when the event stream is quiet.
func (s *Store) AppendTokenSnapshot() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()

	s.pruneLinksLocked(now)
	s.recomputeMeetingsLocked()
	s.recomputeMetricsLocked(now)
	byAgent := make(map[string]int64, len(s.tokensByAgent))
	for id, total := range s.tokensByAgent {
		byAgent[id] = total
	}

	s.tokenTrend = append(s.tokenTrend, types.TokenSnapshot{
		Timestamp: now,
		Total:     s.totalTokens,
		ByAgent:   byAgent,
	})
	if len(s.tokenTrend) > tokenTrendCap {
		s.tokenTrend = s.tokenTrend[len(s.tokenTrend)-tokenTrendCap:]
	}

	if !s.lastTrendAt.IsZero() {
		elapsed := now.Sub(s.lastTrendAt).Seconds()
		if elapsed > 0 {
			s.metrics.TokenRate = float64(s.totalTokens-s.lastTrendTot) / elapsed
		}
	}
	s.lastTrendAt = now
	s.lastTrendTot = s.totalTokens
}

// Agent returns a copy of one agent and whether it exists
func (s *Store) Agent(id string) (types.VisualAgent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	agent := s.agents[id]
	if agent == nil {
		return types.VisualAgent{}, false
	}
	copied := *agent
	if agent.OriginalPosition != nil {
		original := *agent.OriginalPosition
		copied.OriginalPosition = &original
	}
	return copied, true
}

// AgentCount returns the number of live agents
func (s *Store) AgentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.agents)
}

// Metrics returns the current derived metrics
func (s *Store) Metrics() types.GlobalMetrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.metrics
}

// History returns a copy of the activity timeline, newest last
func (s *Store) History() []types.EventHistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.EventHistoryEntry(nil), s.history...)
}

// SelectedAgent returns the current selection cursor ("" when cleared)
func (s *Store) SelectedAgent() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectedAgentID
}

// Links returns a copy of the active collaboration links
func (s *Store) Links() []types.CollaborationLink {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.CollaborationLink(nil), s.links...)
}
