package meeting

import (
	"sort"
	"strings"

	"github.com/agentfloor/agentfloor/internal/layout"
	"github.com/agentfloor/agentfloor/internal/types"
)

// minGroupSize is the smallest connected component reported as a meeting
const minGroupSize = 2

// DetectMeetingGroups partitions agents connected by active links into
// connected-component groups. Links referencing unknown agents are
// ignored. Each group carries its sorted member ids and a stable key
// derived from them; groups are returned in key order.
func DetectMeetingGroups(links []types.CollaborationLink, agents map[string]*types.VisualAgent) []types.MeetingGroup {
	adjacency := make(map[string][]string)
	for _, link := range links {
		if agents[link.A] == nil || agents[link.B] == nil {
			continue
		}
		adjacency[link.A] = append(adjacency[link.A], link.B)
		adjacency[link.B] = append(adjacency[link.B], link.A)
	}

	nodes := make([]string, 0, len(adjacency))
	for id := range adjacency {
		nodes = append(nodes, id)
	}
	sort.Strings(nodes)

	visited := make(map[string]bool, len(nodes))
	var groups []types.MeetingGroup

	for _, start := range nodes {
		if visited[start] {
			continue
		}
		// BFS over the component
		component := []string{}
		queue := []string{start}
		visited[start] = true
		for len(queue) > 0 {
			id := queue[0]
			queue = queue[1:]
			component = append(component, id)
			for _, next := range adjacency[id] {
				if !visited[next] {
					visited[next] = true
					queue = append(queue, next)
				}
			}
		}
		if len(component) < minGroupSize {
			continue
		}
		sort.Strings(component)
		groups = append(groups, types.MeetingGroup{
			Key:      strings.Join(component, "+"),
			AgentIDs: component,
		})
	}

	sort.Slice(groups, func(i, j int) bool { return groups[i].Key < groups[j].Key })
	return groups
}

// ApplyMeetingGathering moves every grouped agent that is not yet in the
// meeting zone to an allocated ring position, and returns every agent
// still in the meeting zone whose group has dissolved. The zone check
// makes repeated application with the same groups a no-op.
func ApplyMeetingGathering(
	agents map[string]*types.VisualAgent,
	groups []types.MeetingGroup,
	moveToMeeting func(id string, pos types.Position),
	returnFromMeeting func(id string),
) {
	inGroup := make(map[string]bool)
	for _, group := range groups {
		positions := layout.AllocateMeetingPositions(group.AgentIDs, layout.DefaultMeetingCenter)
		for i, id := range group.AgentIDs {
			inGroup[id] = true
			agent := agents[id]
			if agent == nil || agent.Zone == types.ZoneMeeting {
				continue
			}
			moveToMeeting(id, positions[i])
		}
	}

	for id, agent := range agents {
		if agent.Zone == types.ZoneMeeting && !inGroup[id] {
			returnFromMeeting(id)
		}
	}
}
