package meeting

import (
	"reflect"
	"testing"

	"github.com/agentfloor/agentfloor/internal/types"
)

func agentMap(ids ...string) map[string]*types.VisualAgent {
	agents := make(map[string]*types.VisualAgent, len(ids))
	for _, id := range ids {
		agents[id] = &types.VisualAgent{ID: id, Zone: types.ZoneDesk}
	}
	return agents
}

func link(a, b string) types.CollaborationLink {
	return types.CollaborationLink{A: a, B: b, SessionKey: a + ":" + b}
}

func TestDetectMeetingGroupsConnectedComponents(t *testing.T) {
	agents := agentMap("a", "b", "c", "d", "e")
	links := []types.CollaborationLink{
		link("a", "b"),
		link("b", "c"),
		link("d", "e"),
	}

	groups := DetectMeetingGroups(links, agents)

	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}
	if !reflect.DeepEqual(groups[0].AgentIDs, []string{"a", "b", "c"}) {
		t.Errorf("first group wrong: %v", groups[0].AgentIDs)
	}
	if groups[0].Key != "a+b+c" {
		t.Errorf("group key wrong: %q", groups[0].Key)
	}
	if !reflect.DeepEqual(groups[1].AgentIDs, []string{"d", "e"}) {
		t.Errorf("second group wrong: %v", groups[1].AgentIDs)
	}
}

func TestDetectMeetingGroupsIgnoresUnknownAgents(t *testing.T) {
	agents := agentMap("a", "b")
	links := []types.CollaborationLink{
		link("a", "b"),
		link("a", "ghost"),
	}

	groups := DetectMeetingGroups(links, agents)

	if len(groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(groups))
	}
	if !reflect.DeepEqual(groups[0].AgentIDs, []string{"a", "b"}) {
		t.Errorf("ghost leaked into group: %v", groups[0].AgentIDs)
	}
}

func TestDetectMeetingGroupsNoLinks(t *testing.T) {
	if groups := DetectMeetingGroups(nil, agentMap("a", "b")); len(groups) != 0 {
		t.Errorf("expected no groups, got %v", groups)
	}
}

func TestDetectMeetingGroupsStableOrder(t *testing.T) {
	agents := agentMap("a", "b", "x", "y")
	forward := []types.CollaborationLink{link("a", "b"), link("x", "y")}
	reversed := []types.CollaborationLink{link("x", "y"), link("b", "a")}

	first := DetectMeetingGroups(forward, agents)
	second := DetectMeetingGroups(reversed, agents)

	if !reflect.DeepEqual(first, second) {
		t.Errorf("group order depends on link order:\n%v\n%v", first, second)
	}
}

func TestApplyMeetingGatheringMovesGroupedAgents(t *testing.T) {
	agents := agentMap("a", "b", "c")
	groups := DetectMeetingGroups([]types.CollaborationLink{link("a", "b")}, agents)

	moved := map[string]types.Position{}
	returned := []string{}

	ApplyMeetingGathering(agents, groups,
		func(id string, pos types.Position) { moved[id] = pos },
		func(id string) { returned = append(returned, id) },
	)

	if len(moved) != 2 {
		t.Fatalf("expected 2 moves, got %v", moved)
	}
	if _, ok := moved["c"]; ok {
		t.Error("ungrouped agent must not move")
	}
	if moved["a"] == moved["b"] {
		t.Error("gathered agents must get distinct ring positions")
	}
	if len(returned) != 0 {
		t.Errorf("nothing should return, got %v", returned)
	}
}

func TestApplyMeetingGatheringIdempotent(t *testing.T) {
	agents := agentMap("a", "b")
	groups := DetectMeetingGroups([]types.CollaborationLink{link("a", "b")}, agents)

	// Simulate the store: moving flips the zone
	moves := 0
	move := func(id string, pos types.Position) {
		moves++
		agents[id].Zone = types.ZoneMeeting
		agents[id].Position = pos
	}
	noReturn := func(id string) { t.Errorf("unexpected return of %s", id) }

	ApplyMeetingGathering(agents, groups, move, noReturn)
	ApplyMeetingGathering(agents, groups, move, noReturn)

	if moves != 2 {
		t.Errorf("second application must be a no-op, got %d moves", moves)
	}
}

func TestApplyMeetingGatheringReturnsDissolved(t *testing.T) {
	agents := agentMap("a", "b")
	agents["a"].Zone = types.ZoneMeeting
	agents["b"].Zone = types.ZoneMeeting

	returned := map[string]bool{}
	ApplyMeetingGathering(agents, nil,
		func(id string, pos types.Position) { t.Errorf("unexpected move of %s", id) },
		func(id string) { returned[id] = true },
	)

	if !returned["a"] || !returned["b"] {
		t.Errorf("meeting-zone agents with no group must return, got %v", returned)
	}
}
