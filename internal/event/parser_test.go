package event

import (
	"strings"
	"testing"

	"github.com/agentfloor/agentfloor/internal/types"
)

func frame(stream string, data map[string]any) types.EventFrame {
	return types.EventFrame{
		RunID:  "run-1",
		Seq:    1,
		Stream: stream,
		TS:     1700000000000,
		Data:   data,
	}
}

func TestParseLifecycleStart(t *testing.T) {
	tr := Parse(frame(types.StreamLifecycle, map[string]any{"phase": "start"}))

	if tr.Status != types.StatusThinking {
		t.Errorf("expected thinking, got %s", tr.Status)
	}
	if tr.ClearTool || tr.ClearSpeech {
		t.Error("start must not clear tool or speech")
	}
	if tr.RunID != "run-1" {
		t.Errorf("runId not passed through, got %q", tr.RunID)
	}
}

func TestParseLifecycleEnd(t *testing.T) {
	tr := Parse(frame(types.StreamLifecycle, map[string]any{"phase": "end"}))

	if tr.Status != types.StatusIdle {
		t.Errorf("expected idle, got %s", tr.Status)
	}
	if !tr.ClearTool {
		t.Error("end must clear current tool")
	}
	if !tr.ClearSpeech {
		t.Error("end must clear speech bubble")
	}
}

func TestParseLifecycleUnknownPhase(t *testing.T) {
	tr := Parse(frame(types.StreamLifecycle, map[string]any{"phase": "aborted"}))

	if tr.Status != types.StatusError {
		t.Errorf("expected error for unknown lifecycle phase, got %s", tr.Status)
	}
}

func TestParseToolStart(t *testing.T) {
	tr := Parse(frame(types.StreamTool, map[string]any{
		"phase": "start",
		"name":  "search",
		"args":  map[string]any{"query": "foo"},
	}))

	if tr.Status != types.StatusToolCalling {
		t.Errorf("expected tool_calling, got %s", tr.Status)
	}
	if tr.CurrentTool == nil || tr.CurrentTool.Name != "search" {
		t.Fatalf("expected current tool 'search', got %+v", tr.CurrentTool)
	}
	if tr.ToolRecord == nil {
		t.Error("tool start must produce a history record")
	}
	if !tr.IncrementToolCount {
		t.Error("tool start must increment tool count")
	}
}

func TestParseToolStartMissingName(t *testing.T) {
	tr := Parse(frame(types.StreamTool, map[string]any{"phase": "start"}))

	if tr.CurrentTool == nil || tr.CurrentTool.Name != "tool" {
		t.Fatalf("expected fallback tool name, got %+v", tr.CurrentTool)
	}
}

func TestParseToolEnd(t *testing.T) {
	tr := Parse(frame(types.StreamTool, map[string]any{"phase": "end"}))

	if tr.Status != types.StatusThinking {
		t.Errorf("expected thinking after tool end, got %s", tr.Status)
	}
	if !tr.ClearTool {
		t.Error("tool end must clear current tool")
	}
	if tr.IncrementToolCount {
		t.Error("tool end must not increment tool count")
	}
}

func TestParseAssistantText(t *testing.T) {
	tr := Parse(frame(types.StreamAssistant, map[string]any{
		"text":   "hello there",
		"tokens": float64(42),
	}))

	if tr.Status != types.StatusSpeaking {
		t.Errorf("expected speaking, got %s", tr.Status)
	}
	if tr.Speech == nil || tr.Speech.Text != "hello there" {
		t.Fatalf("expected speech bubble, got %+v", tr.Speech)
	}
	if tr.Summary != "hello there" {
		t.Errorf("short text must not be truncated, got %q", tr.Summary)
	}
	if tr.TokenDelta != 42 {
		t.Errorf("expected token delta 42, got %d", tr.TokenDelta)
	}
}

func TestParseAssistantLongTextTruncated(t *testing.T) {
	long := strings.Repeat("x", 200)
	tr := Parse(frame(types.StreamAssistant, map[string]any{"text": long}))

	runes := []rune(tr.Summary)
	if len(runes) != maxSummaryRunes+1 {
		t.Fatalf("expected %d runes incl. ellipsis, got %d", maxSummaryRunes+1, len(runes))
	}
	if runes[len(runes)-1] != '…' {
		t.Error("truncated summary must end with ellipsis")
	}
	if tr.Speech == nil || tr.Speech.Text != long {
		t.Error("speech bubble must keep the full text")
	}
}

func TestParseErrorStream(t *testing.T) {
	tr := Parse(frame(types.StreamError, map[string]any{"message": "boom"}))

	if tr.Status != types.StatusError {
		t.Errorf("expected error, got %s", tr.Status)
	}
	if tr.Summary != "boom" {
		t.Errorf("expected error message as summary, got %q", tr.Summary)
	}
}

func TestParseUnknownStream(t *testing.T) {
	tr := Parse(frame("telemetry", map[string]any{"whatever": true}))

	if tr.Status != types.StatusIdle {
		t.Errorf("unknown stream must map to idle, got %s", tr.Status)
	}
}

func TestParseNilData(t *testing.T) {
	// Must not panic and must degrade to a safe status
	tr := Parse(frame(types.StreamLifecycle, nil))
	if tr.Status != types.StatusError {
		t.Errorf("lifecycle with no phase maps to error, got %s", tr.Status)
	}

	tr = Parse(frame(types.StreamAssistant, nil))
	if tr.Status != types.StatusSpeaking {
		t.Errorf("assistant with no data still speaks, got %s", tr.Status)
	}
}

func TestIsHighPriority(t *testing.T) {
	tests := []struct {
		name  string
		frame types.EventFrame
		want  bool
	}{
		{"error stream", frame(types.StreamError, nil), true},
		{"lifecycle start", frame(types.StreamLifecycle, map[string]any{"phase": "start"}), true},
		{"lifecycle end", frame(types.StreamLifecycle, map[string]any{"phase": "end"}), true},
		{"lifecycle thinking", frame(types.StreamLifecycle, map[string]any{"phase": "thinking"}), false},
		{"assistant", frame(types.StreamAssistant, map[string]any{"text": "hi"}), false},
		{"tool", frame(types.StreamTool, map[string]any{"phase": "start"}), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsHighPriority(tt.frame); got != tt.want {
				t.Errorf("IsHighPriority = %v, want %v", got, tt.want)
			}
		})
	}
}
