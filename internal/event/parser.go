package event

import (
	"fmt"
	"time"

	"github.com/agentfloor/agentfloor/internal/types"
)

// maxSummaryRunes bounds the timeline summary for assistant text
const maxSummaryRunes = 80

// Transition is the normalized result of classifying one event frame.
// RunID and SessionKey pass through unchanged for downstream correlation.
type Transition struct {
	Status             types.AgentStatus
	Summary            string
	ClearTool          bool
	ClearSpeech        bool
	CurrentTool        *types.ToolCall
	Speech             *types.SpeechBubble
	ToolRecord         *types.ToolCall
	IncrementToolCount bool
	TokenDelta         int64
	RunID              string
	SessionKey         string
}

// Parse maps a raw event frame to a status transition. It is a pure
// function: no side effects, safe to call redundantly, and it never
// fails — missing or malformed fields degrade to a safe default status
// so a single bad event cannot take down the visualization.
func Parse(frame types.EventFrame) Transition {
	tr := Transition{
		Status:     types.StatusIdle,
		RunID:      frame.RunID,
		SessionKey: frame.SessionKey,
	}
	ts := frameTime(frame)

	switch frame.Stream {
	case types.StreamLifecycle:
		switch stringField(frame.Data, "phase") {
		case types.PhaseStart:
			tr.Status = types.StatusThinking
			tr.Summary = "run started"
		case types.PhaseThinking:
			tr.Status = types.StatusThinking
			tr.Summary = "thinking"
		case types.PhaseEnd:
			tr.Status = types.StatusIdle
			tr.ClearTool = true
			tr.ClearSpeech = true
			tr.Summary = "run finished"
		default:
			tr.Status = types.StatusError
			tr.Summary = "run interrupted"
		}

	case types.StreamTool:
		if stringField(frame.Data, "phase") == types.PhaseStart {
			name := stringField(frame.Data, "name")
			if name == "" {
				name = "tool"
			}
			tool := &types.ToolCall{
				Name:      name,
				Args:      mapField(frame.Data, "args"),
				Timestamp: ts,
			}
			tr.Status = types.StatusToolCalling
			tr.CurrentTool = tool
			tr.ToolRecord = tool
			tr.IncrementToolCount = true
			tr.Summary = fmt.Sprintf("calling %s", name)
		} else {
			// Any non-start tool phase returns the agent to thinking
			tr.Status = types.StatusThinking
			tr.ClearTool = true
			tr.Summary = "tool finished"
		}

	case types.StreamAssistant:
		text := stringField(frame.Data, "text")
		if text != "" {
			tr.Status = types.StatusSpeaking
			tr.Speech = &types.SpeechBubble{Text: text, Timestamp: ts}
			tr.Summary = truncate(text, maxSummaryRunes)
		} else {
			tr.Status = types.StatusSpeaking
			tr.Summary = "responding"
		}
		tr.TokenDelta = intField(frame.Data, "tokens")

	case types.StreamError:
		tr.Status = types.StatusError
		if msg := stringField(frame.Data, "message"); msg != "" {
			tr.Summary = msg
		} else {
			tr.Summary = "error"
		}

	default:
		// Unrecognized stream: idle regardless of payload
		tr.Status = types.StatusIdle
		tr.Summary = fmt.Sprintf("event (%s)", frame.Stream)
	}

	return tr
}

// IsHighPriority reports whether a frame must bypass batching: errors and
// run start/end boundaries are delivered immediately.
func IsHighPriority(frame types.EventFrame) bool {
	if frame.Stream == types.StreamError {
		return true
	}
	if frame.Stream == types.StreamLifecycle {
		phase := stringField(frame.Data, "phase")
		return phase == types.PhaseStart || phase == types.PhaseEnd
	}
	return false
}

func frameTime(frame types.EventFrame) time.Time {
	if frame.TS > 0 {
		return time.UnixMilli(frame.TS)
	}
	return time.Now()
}

func stringField(data map[string]any, key string) string {
	if data == nil {
		return ""
	}
	if v, ok := data[key].(string); ok {
		return v
	}
	return ""
}

func mapField(data map[string]any, key string) map[string]any {
	if data == nil {
		return nil
	}
	if v, ok := data[key].(map[string]any); ok {
		return v
	}
	return nil
}

func intField(data map[string]any, key string) int64 {
	if data == nil {
		return 0
	}
	switch v := data[key].(type) {
	case float64: // JSON numbers decode as float64
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	}
	return 0
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "…"
}
