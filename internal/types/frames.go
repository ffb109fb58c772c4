package types

import "encoding/json"

// Event streams carried by the gateway event feed
const (
	StreamLifecycle = "lifecycle"
	StreamTool      = "tool"
	StreamAssistant = "assistant"
	StreamError     = "error"
)

// Lifecycle phases
const (
	PhaseStart    = "start"
	PhaseThinking = "thinking"
	PhaseEnd      = "end"
)

// EventFrame is an inbound agent event from the gateway.
// Data is intentionally untyped; payload shape varies per stream and
// partial payloads are expected.
type EventFrame struct {
	RunID      string         `json:"runId"`
	Seq        int64          `json:"seq"`
	Stream     string         `json:"stream"`
	TS         int64          `json:"ts"` // ms epoch
	Data       map[string]any `json:"data"`
	SessionKey string         `json:"sessionKey,omitempty"`
}

// RequestFrame is an outbound RPC request
type RequestFrame struct {
	Type   string `json:"type"` // always "req"
	ID     string `json:"id"`
	Method string `json:"method"`
	Params any    `json:"params,omitempty"`
}

// ResponseError is the structured error carried by a failed response
type ResponseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ResponseFrame is an inbound RPC response
type ResponseFrame struct {
	Type    string          `json:"type"` // always "res"
	ID      string          `json:"id"`
	OK      bool            `json:"ok"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   *ResponseError  `json:"error,omitempty"`
}
