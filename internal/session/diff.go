package session

import "github.com/agentfloor/agentfloor/internal/types"

// DiffSessions computes the set difference between two polled session
// lists, keyed by sessionKey. Order of the inputs is irrelevant; added
// and removed entries come back in the order of the list they came from.
func DiffSessions(prev, next []types.SubAgentInfo) (added, removed []types.SubAgentInfo) {
	prevKeys := make(map[string]bool, len(prev))
	for _, info := range prev {
		prevKeys[info.SessionKey] = true
	}
	nextKeys := make(map[string]bool, len(next))
	for _, info := range next {
		nextKeys[info.SessionKey] = true
	}

	for _, info := range next {
		if !prevKeys[info.SessionKey] {
			added = append(added, info)
		}
	}
	for _, info := range prev {
		if !nextKeys[info.SessionKey] {
			removed = append(removed, info)
		}
	}
	return added, removed
}
