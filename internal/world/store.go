package world

import (
	"sync"
	"time"

	"github.com/agentfloor/agentfloor/internal/event"
	"github.com/agentfloor/agentfloor/internal/layout"
	"github.com/agentfloor/agentfloor/internal/meeting"
	"github.com/agentfloor/agentfloor/internal/types"
	"github.com/rs/zerolog"
)

const (
	// historyCap bounds the activity timeline
	historyCap = 200

	// toolHistoryCap bounds each agent's tool call history
	toolHistoryCap = 50

	// tokenTrendCap bounds the token snapshot series
	tokenTrendCap = 120

	// defaultLinkTTL is how long a collaboration link stays active without
	// being refreshed by a shared-session event
	defaultLinkTTL = 60 * time.Second
)

// AgentSeed describes one top-level agent to place at init
type AgentSeed struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Store is the single source of truth for the visualized world: the agent
// map, collaboration links, timeline, token trend and derived metrics.
// It is explicitly constructed and injected, never a package singleton.
// All mutation goes through its methods behind one mutex; every operation
// is total — unknown ids are no-ops, because late events legitimately
// race against asynchronous removal.
type Store struct {
	mu sync.Mutex

	agents     map[string]*types.VisualAgent
	links      []types.CollaborationLink
	history    []types.EventHistoryEntry
	tokenTrend []types.TokenSnapshot
	metrics    types.GlobalMetrics

	selectedAgentID string
	sessions        types.SessionsSnapshot

	// Correlation maps: runId -> agentId, sessionKey -> participating
	// agent ids, and sessionKey -> the agent whose own session it is.
	runToAgent    map[string]string
	sessionAgents map[string]map[string]bool
	sessionOwner  map[string]string

	totalTokens   int64
	tokensByAgent map[string]int64
	lastTrendAt   time.Time
	lastTrendTot  int64

	linkTTL time.Duration
	archive func(types.EventHistoryEntry)
	logger  zerolog.Logger
}

// NewStore creates an empty world store
func NewStore(logger zerolog.Logger) *Store {
	return &Store{
		agents:        make(map[string]*types.VisualAgent),
		runToAgent:    make(map[string]string),
		sessionAgents: make(map[string]map[string]bool),
		sessionOwner:  make(map[string]string),
		tokensByAgent: make(map[string]int64),
		linkTTL:       defaultLinkTTL,
		logger:        logger.With().Str("component", "world").Logger(),
	}
}

// SetArchiver registers a best-effort sink for timeline entries. The sink
// must not block; the store calls it inline while applying events.
func (s *Store) SetArchiver(fn func(types.EventHistoryEntry)) {
	s.mu.Lock()
	s.archive = fn
	s.mu.Unlock()
}

// InitAgents seeds the agent map at fixed desk positions and resets all
// derived state (links, metrics, history, correlation maps) to empty.
func (s *Store) InitAgents(seeds []AgentSeed) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.agents = make(map[string]*types.VisualAgent, len(seeds))
	s.links = nil
	s.history = nil
	s.tokenTrend = nil
	s.metrics = types.GlobalMetrics{}
	s.selectedAgentID = ""
	s.runToAgent = make(map[string]string)
	s.sessionAgents = make(map[string]map[string]bool)
	s.sessionOwner = make(map[string]string)
	s.totalTokens = 0
	s.tokensByAgent = make(map[string]int64)
	s.lastTrendAt = time.Time{}
	s.lastTrendTot = 0

	occupied := make(map[types.Position]bool)
	for _, seed := range seeds {
		if seed.ID == "" || s.agents[seed.ID] != nil {
			continue
		}
		pos := layout.AllocatePosition(seed.ID, false, occupied)
		occupied[pos] = true
		zone := types.ZoneDesk
		if pos.Y >= layout.HotDeskY {
			zone = types.ZoneHotDesk
		}
		s.agents[seed.ID] = &types.VisualAgent{
			ID:       seed.ID,
			Name:     seed.Name,
			Status:   types.StatusIdle,
			Position: pos,
			Zone:     zone,
		}
	}

	s.recomputeMetricsLocked(time.Now())
	s.logger.Info().Int("agents", len(s.agents)).Msg("world initialized")
}

// ProcessAgentEvent resolves the frame to an agent, classifies it and
// applies the resulting transition. Frames that cannot be correlated to a
// known agent are dropped with a debug log.
func (s *Store) ProcessAgentEvent(frame types.EventFrame) {
	s.mu.Lock()
	defer s.mu.Unlock()

	agentID := s.resolveAgentLocked(frame)
	if agentID == "" {
		s.logger.Debug().
			Str("run_id", frame.RunID).
			Str("stream", frame.Stream).
			Msg("dropping event for unknown agent")
		return
	}
	agent := s.agents[agentID]

	tr := event.Parse(frame)
	now := time.Now()
	ts := now
	if frame.TS > 0 {
		ts = time.UnixMilli(frame.TS)
	}

	agent.Status = tr.Status
	agent.LastActiveAt = ts
	if frame.RunID != "" {
		agent.RunID = frame.RunID
	}
	if tr.ClearTool {
		agent.CurrentTool = nil
	}
	if tr.ClearSpeech {
		agent.SpeechBubble = nil
	}
	if tr.CurrentTool != nil {
		agent.CurrentTool = tr.CurrentTool
	}
	if tr.Speech != nil {
		agent.SpeechBubble = tr.Speech
	}
	if tr.IncrementToolCount {
		agent.ToolCallCount++
	}
	if tr.ToolRecord != nil {
		agent.ToolCallHistory = append(agent.ToolCallHistory, *tr.ToolRecord)
		if len(agent.ToolCallHistory) > toolHistoryCap {
			agent.ToolCallHistory = agent.ToolCallHistory[len(agent.ToolCallHistory)-toolHistoryCap:]
		}
	}
	if tr.TokenDelta > 0 {
		s.totalTokens += tr.TokenDelta
		s.tokensByAgent[agentID] += tr.TokenDelta
	}

	entry := types.EventHistoryEntry{
		Timestamp: ts,
		AgentID:   agentID,
		AgentName: agent.Name,
		Stream:    frame.Stream,
		Summary:   tr.Summary,
	}
	s.history = append(s.history, entry)
	if len(s.history) > historyCap {
		s.history = s.history[len(s.history)-historyCap:]
	}
	if s.archive != nil {
		s.archive(entry)
	}

	if frame.SessionKey != "" {
		s.refreshLinksLocked(agentID, frame.SessionKey, now)
	}
	s.pruneLinksLocked(now)
	s.recomputeMeetingsLocked()
	s.recomputeMetricsLocked(now)
}

// resolveAgentLocked maps a frame to an agent id via the correlation maps
// and binds any new correlations it learns from the frame.
func (s *Store) resolveAgentLocked(frame types.EventFrame) string {
	agentID := s.runToAgent[frame.RunID]

	if agentID == "" {
		if data, ok := frame.Data["agentId"].(string); ok {
			agentID = data
		}
	}
	if agentID == "" && frame.SessionKey != "" {
		agentID = s.sessionOwner[frame.SessionKey]
	}
	if agentID == "" || s.agents[agentID] == nil {
		return ""
	}

	if frame.RunID != "" {
		s.runToAgent[frame.RunID] = agentID
	}
	return agentID
}

// refreshLinksLocked records the agent's participation in a session and
// upserts a link to every other participant.
func (s *Store) refreshLinksLocked(agentID, sessionKey string, now time.Time) {
	participants := s.sessionAgents[sessionKey]
	if participants == nil {
		participants = make(map[string]bool)
		s.sessionAgents[sessionKey] = participants
	}
	participants[agentID] = true

	for other := range participants {
		if other == agentID || s.agents[other] == nil {
			continue
		}
		s.upsertLinkLocked(agentID, other, sessionKey, now)
	}
}

func (s *Store) upsertLinkLocked(a, b, sessionKey string, now time.Time) {
	if a > b {
		a, b = b, a
	}
	for i := range s.links {
		if s.links[i].A == a && s.links[i].B == b {
			s.links[i].Weight++
			s.links[i].LastActive = now
			s.links[i].SessionKey = sessionKey
			return
		}
	}
	s.links = append(s.links, types.CollaborationLink{
		A:          a,
		B:          b,
		SessionKey: sessionKey,
		Weight:     1,
		LastActive: now,
	})
}

// pruneLinksLocked drops links that have not been refreshed within the
// activity window or that reference removed agents.
func (s *Store) pruneLinksLocked(now time.Time) {
	kept := s.links[:0]
	for _, link := range s.links {
		if now.Sub(link.LastActive) > s.linkTTL {
			continue
		}
		if s.agents[link.A] == nil || s.agents[link.B] == nil {
			continue
		}
		kept = append(kept, link)
	}
	s.links = kept
}

func (s *Store) recomputeMeetingsLocked() {
	groups := meeting.DetectMeetingGroups(s.links, s.agents)
	meeting.ApplyMeetingGathering(s.agents, groups, s.moveToMeetingLocked, s.returnFromMeetingLocked)
}

// AddSubAgent creates a sub-agent spawned by a parent run, placing it in
// the hot-desk zone and wiring the parent/child id references both ways.
// Unknown parent ids are a silent no-op.
func (s *Store) AddSubAgent(parentID string, info types.SubAgentInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()

	parent := s.agents[parentID]
	if parent == nil || info.AgentID == "" {
		return
	}
	if s.agents[info.AgentID] != nil {
		return
	}

	pos := layout.AllocatePosition(info.AgentID, true, s.occupiedLocked())
	name := info.Label
	if name == "" {
		name = info.AgentID
	}
	s.agents[info.AgentID] = &types.VisualAgent{
		ID:            info.AgentID,
		Name:          name,
		Status:        types.StatusThinking,
		Position:      pos,
		Zone:          types.ZoneHotDesk,
		IsSubAgent:    true,
		ParentAgentID: parentID,
		LastActiveAt:  time.Now(),
	}
	parent.ChildAgentIDs = appendUnique(parent.ChildAgentIDs, info.AgentID)

	if info.SessionKey != "" {
		s.sessionOwner[info.SessionKey] = info.AgentID
	}

	s.logger.Debug().
		Str("agent_id", info.AgentID).
		Str("parent_id", parentID).
		Msg("sub-agent added")
}

// RemoveSubAgent removes an agent, detaches it from its parent and cleans
// every reference to it. Unknown ids are a no-op.
func (s *Store) RemoveSubAgent(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	agent := s.agents[id]
	if agent == nil {
		return
	}

	if parent := s.agents[agent.ParentAgentID]; parent != nil {
		parent.ChildAgentIDs = removeID(parent.ChildAgentIDs, id)
	}
	// Children of the removed agent stay alive but lose their parent link
	for _, childID := range agent.ChildAgentIDs {
		if child := s.agents[childID]; child != nil {
			child.ParentAgentID = ""
		}
	}
	delete(s.agents, id)
	delete(s.tokensByAgent, id)

	if s.selectedAgentID == id {
		s.selectedAgentID = ""
	}
	for runID, aid := range s.runToAgent {
		if aid == id {
			delete(s.runToAgent, runID)
		}
	}
	for key, participants := range s.sessionAgents {
		delete(participants, id)
		if len(participants) == 0 {
			delete(s.sessionAgents, key)
		}
	}
	for key, owner := range s.sessionOwner {
		if owner == id {
			delete(s.sessionOwner, key)
		}
	}

	now := time.Now()
	s.pruneLinksLocked(now)
	s.recomputeMeetingsLocked()
	s.recomputeMetricsLocked(now)

	s.logger.Debug().Str("agent_id", id).Msg("sub-agent removed")
}

// MoveToMeeting relocates an agent into the meeting zone, saving its seat
// for the return trip. Unknown ids are a no-op.
func (s *Store) MoveToMeeting(id string, pos types.Position) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.moveToMeetingLocked(id, pos)
}

func (s *Store) moveToMeetingLocked(id string, pos types.Position) {
	agent := s.agents[id]
	if agent == nil {
		return
	}
	if agent.Zone != types.ZoneMeeting {
		original := agent.Position
		agent.OriginalPosition = &original
		agent.Zone = types.ZoneMeeting
	}
	agent.Position = pos
}

// ReturnFromMeeting restores an agent to its pre-meeting seat and zone.
// Unknown ids and agents not in a meeting are no-ops.
func (s *Store) ReturnFromMeeting(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.returnFromMeetingLocked(id)
}

func (s *Store) returnFromMeetingLocked(id string) {
	agent := s.agents[id]
	if agent == nil || agent.Zone != types.ZoneMeeting || agent.OriginalPosition == nil {
		return
	}
	agent.Position = *agent.OriginalPosition
	agent.OriginalPosition = nil
	// The saved seat's coordinates identify the pre-meeting zone
	if agent.Position.Y >= layout.HotDeskY {
		agent.Zone = types.ZoneHotDesk
	} else {
		agent.Zone = types.ZoneDesk
	}
}

// SelectAgent sets the UI selection cursor. Empty id clears the
// selection; unknown ids are ignored.
func (s *Store) SelectAgent(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id == "" || s.agents[id] != nil {
		s.selectedAgentID = id
	}
}

// SetSessionsSnapshot stores the latest polled sub-agent session list
func (s *Store) SetSessionsSnapshot(snapshot types.SessionsSnapshot) {
	s.mu.Lock()
	s.sessions = snapshot
	s.mu.Unlock()
}

// SessionsSnapshot returns the last stored session list
func (s *Store) SessionsSnapshot() types.SessionsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions
}

// ResolveSessionAgent maps a session key to the agent that owns it, or to
// a deterministic participant when no owner is recorded. Returns "" when
// the session is unknown.
func (s *Store) ResolveSessionAgent(sessionKey string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if owner := s.sessionOwner[sessionKey]; owner != "" && s.agents[owner] != nil {
		return owner
	}
	best := ""
	for id := range s.sessionAgents[sessionKey] {
		if s.agents[id] == nil {
			continue
		}
		if best == "" || id < best {
			best = id
		}
	}
	return best
}

func (s *Store) occupiedLocked() map[types.Position]bool {
	occupied := make(map[types.Position]bool, len(s.agents))
	for _, agent := range s.agents {
		if agent.OriginalPosition != nil {
			occupied[*agent.OriginalPosition] = true
			continue
		}
		occupied[agent.Position] = true
	}
	return occupied
}

func (s *Store) recomputeMetricsLocked(now time.Time) {
	active := 0
	for _, agent := range s.agents {
		if agent.Status != types.StatusIdle {
			active++
		}
	}

	heat := 0.0
	for _, link := range s.links {
		// Recent links contribute more
		age := now.Sub(link.LastActive)
		if age < 0 {
			age = 0
		}
		heat += 20 * (1 - age.Seconds()/s.linkTTL.Seconds())
	}
	if heat > 100 {
		heat = 100
	}

	s.metrics = types.GlobalMetrics{
		ActiveAgents:      active,
		TotalAgents:       len(s.agents),
		TotalTokens:       s.totalTokens,
		TokenRate:         s.metrics.TokenRate,
		CollaborationHeat: heat,
	}
}

func appendUnique(ids []string, id string) []string {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}

func removeID(ids []string, id string) []string {
	kept := ids[:0]
	for _, existing := range ids {
		if existing != id {
			kept = append(kept, existing)
		}
	}
	return kept
}
