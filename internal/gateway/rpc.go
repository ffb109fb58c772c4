package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/agentfloor/agentfloor/internal/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	// ErrNotConnected is returned when a request is attempted while the
	// transport is down; no frame is sent and no retry happens here.
	ErrNotConnected = errors.New("not connected to gateway")

	// ErrTimeout is returned when no response arrives within the deadline.
	// The request is not resent.
	ErrTimeout = errors.New("rpc request timed out")
)

// RPCError is a structured error relayed verbatim from the gateway
type RPCError struct {
	Code    string
	Message string
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %s: %s", e.Code, e.Message)
}

// Wire is the transport surface the RPC client needs. *Transport
// satisfies it; tests substitute a fake.
type Wire interface {
	Send(data []byte)
	IsConnected() bool
	OnResponse(id string, fn func(types.ResponseFrame))
	CancelResponse(id string)
}

// Recorder receives RPC outcome counts; *metrics.Metrics satisfies it
type Recorder interface {
	RecordRPCRequest()
	RecordRPCTimeout()
	RecordRPCError()
}

// Client layers request/response correlation and timeout semantics over
// the transport. Each request settles exactly once: payload, RPC error,
// timeout or context cancellation — a response arriving after settlement
// finds its one-shot handler already removed and is ignored.
type Client struct {
	wire     Wire
	timeout  time.Duration
	recorder Recorder
	logger   zerolog.Logger
}

// NewClient creates an RPC client with the given default timeout
func NewClient(wire Wire, timeout time.Duration, logger zerolog.Logger) *Client {
	return &Client{
		wire:    wire,
		timeout: timeout,
		logger:  logger.With().Str("component", "rpc").Logger(),
	}
}

// SetRecorder attaches an optional outcome recorder. Must be called
// before the first request.
func (c *Client) SetRecorder(r Recorder) {
	c.recorder = r
}

// Request sends one RPC with the client's default timeout
func (c *Client) Request(ctx context.Context, method string, params any) (json.RawMessage, error) {
	return c.RequestTimeout(ctx, method, params, c.timeout)
}

// RequestTimeout sends one RPC and waits for its response, a timeout, or
// context cancellation. It fails immediately with ErrNotConnected when the
// transport is down, without sending anything.
func (c *Client) RequestTimeout(ctx context.Context, method string, params any, timeout time.Duration) (json.RawMessage, error) {
	if c.recorder != nil {
		c.recorder.RecordRPCRequest()
	}
	if !c.wire.IsConnected() {
		return nil, ErrNotConnected
	}

	id := uuid.New().String()
	respCh := make(chan types.ResponseFrame, 1)
	c.wire.OnResponse(id, func(res types.ResponseFrame) {
		respCh <- res
	})

	data, err := json.Marshal(types.RequestFrame{
		Type:   "req",
		ID:     id,
		Method: method,
		Params: params,
	})
	if err != nil {
		c.wire.CancelResponse(id)
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	c.wire.Send(data)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-respCh:
		if !res.OK {
			rpcErr := &RPCError{Code: "UNKNOWN", Message: "request failed"}
			if res.Error != nil {
				rpcErr.Code = res.Error.Code
				rpcErr.Message = res.Error.Message
			}
			if c.recorder != nil {
				c.recorder.RecordRPCError()
			}
			return nil, rpcErr
		}
		return res.Payload, nil

	case <-timer.C:
		c.wire.CancelResponse(id)
		if c.recorder != nil {
			c.recorder.RecordRPCTimeout()
		}
		c.logger.Debug().Str("method", method).Dur("timeout", timeout).Msg("request timed out")
		return nil, ErrTimeout

	case <-ctx.Done():
		c.wire.CancelResponse(id)
		return nil, ctx.Err()
	}
}
