package types

import "time"

// AgentStatus represents the current visual status of an agent
type AgentStatus string

const (
	StatusIdle        AgentStatus = "idle"
	StatusThinking    AgentStatus = "thinking"
	StatusSpeaking    AgentStatus = "speaking"
	StatusToolCalling AgentStatus = "tool_calling"
	StatusError       AgentStatus = "error"
)

// Zone represents the seating area an agent currently occupies
type Zone string

const (
	ZoneDesk    Zone = "desk"
	ZoneHotDesk Zone = "hotDesk"
	ZoneMeeting Zone = "meeting"
)

// Position is a point in 2D scene space
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ToolCall describes one tool invocation by an agent
type ToolCall struct {
	Name      string         `json:"name"`
	Args      map[string]any `json:"args,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// SpeechBubble is the text currently shown above an agent
type SpeechBubble struct {
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// VisualAgent is one live agent instance in the office scene, including
// sub-agents. Parent/child references are non-owning id links; the world
// store owns every agent in a single map and keeps the references
// consistent through its mutation operations.
type VisualAgent struct {
	ID              string        `json:"id"`
	Name            string        `json:"name"`
	Status          AgentStatus   `json:"status"`
	Position        Position      `json:"position"`
	CurrentTool     *ToolCall     `json:"currentTool,omitempty"`
	SpeechBubble    *SpeechBubble `json:"speechBubble,omitempty"`
	LastActiveAt    time.Time     `json:"lastActiveAt"`
	ToolCallCount   int           `json:"toolCallCount"`
	ToolCallHistory []ToolCall    `json:"toolCallHistory,omitempty"`
	RunID           string        `json:"runId,omitempty"`
	IsSubAgent      bool          `json:"isSubAgent"`
	ParentAgentID   string        `json:"parentAgentId,omitempty"`
	ChildAgentIDs   []string      `json:"childAgentIds,omitempty"`
	Zone            Zone          `json:"zone"`

	// OriginalPosition is non-nil exactly while the agent is gathered in
	// the meeting zone; it holds the seat to restore on return.
	OriginalPosition *Position `json:"originalPosition,omitempty"`
}

// CollaborationLink is an edge between two agents that share an active
// session. Weight accumulates with observed activity and the link is
// pruned once LastActive falls outside the activity window.
type CollaborationLink struct {
	A          string    `json:"a"`
	B          string    `json:"b"`
	SessionKey string    `json:"sessionKey"`
	Weight     float64   `json:"weight"`
	LastActive time.Time `json:"lastActive"`
}

// EventHistoryEntry is one row of the activity timeline
type EventHistoryEntry struct {
	Timestamp time.Time `json:"timestamp"`
	AgentID   string    `json:"agentId"`
	AgentName string    `json:"agentName"`
	Stream    string    `json:"stream"`
	Summary   string    `json:"summary"`
}

// TokenSnapshot is a periodic aggregate of token consumption for trend charts
type TokenSnapshot struct {
	Timestamp time.Time        `json:"timestamp"`
	Total     int64            `json:"total"`
	ByAgent   map[string]int64 `json:"byAgent,omitempty"`
}

// GlobalMetrics is derived from the world state on every recompute; it is
// never mutated independently.
type GlobalMetrics struct {
	ActiveAgents      int     `json:"activeAgents"`
	TotalAgents       int     `json:"totalAgents"`
	TotalTokens       int64   `json:"totalTokens"`
	TokenRate         float64 `json:"tokenRate"`
	CollaborationHeat float64 `json:"collaborationHeat"` // 0-100
}

// SubAgentInfo is one entry of the externally polled sub-agent session list
type SubAgentInfo struct {
	SessionKey          string `json:"sessionKey"`
	AgentID             string `json:"agentId"`
	Label               string `json:"label"`
	Task                string `json:"task"`
	RequesterSessionKey string `json:"requesterSessionKey"`
	StartedAt           int64  `json:"startedAt"`
}

// SessionsSnapshot is the last-seen sub-agent session list, kept for
// diffing against the next poll
type SessionsSnapshot struct {
	Sessions  []SubAgentInfo `json:"sessions"`
	FetchedAt time.Time      `json:"fetchedAt"`
}

// MeetingGroup is a connected component of collaborating agents
type MeetingGroup struct {
	Key      string   `json:"key"`
	AgentIDs []string `json:"agentIds"`
}

// WorldSnapshot is the single render-ready payload broadcast to connected
// renderer clients every cycle
type WorldSnapshot struct {
	Type       string              `json:"type"` // always "snapshot"
	Timestamp  time.Time           `json:"timestamp"`
	Agents     []VisualAgent       `json:"agents"`
	Links      []CollaborationLink `json:"links,omitempty"`
	Groups     []MeetingGroup      `json:"groups,omitempty"`
	Metrics    GlobalMetrics       `json:"metrics"`
	History    []EventHistoryEntry `json:"history,omitempty"`
	TokenTrend []TokenSnapshot     `json:"tokenTrend,omitempty"`
	Selected   string              `json:"selectedAgentId,omitempty"`
}
