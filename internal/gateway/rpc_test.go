package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/agentfloor/agentfloor/internal/types"
	"github.com/rs/zerolog"
)

// fakeWire implements Wire with a scriptable response path
type fakeWire struct {
	mu        sync.Mutex
	connected bool
	sent      [][]byte
	handlers  map[string]func(types.ResponseFrame)
}

func newFakeWire(connected bool) *fakeWire {
	return &fakeWire{
		connected: connected,
		handlers:  make(map[string]func(types.ResponseFrame)),
	}
}

func (w *fakeWire) Send(data []byte) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.sent = append(w.sent, data)
}

func (w *fakeWire) IsConnected() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.connected
}

func (w *fakeWire) OnResponse(id string, fn func(types.ResponseFrame)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers[id] = fn
}

func (w *fakeWire) CancelResponse(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.handlers, id)
}

func (w *fakeWire) sentCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.sent)
}

// lastRequest decodes the most recently sent frame
func (w *fakeWire) lastRequest(t *testing.T) types.RequestFrame {
	t.Helper()
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.sent) == 0 {
		t.Fatal("nothing sent")
	}
	var req types.RequestFrame
	if err := json.Unmarshal(w.sent[len(w.sent)-1], &req); err != nil {
		t.Fatalf("malformed request frame: %v", err)
	}
	return req
}

// respond fires the one-shot handler for id, mimicking the transport: a
// missing handler means the request already settled and the response drops.
func (w *fakeWire) respond(res types.ResponseFrame) bool {
	w.mu.Lock()
	fn, ok := w.handlers[res.ID]
	if ok {
		delete(w.handlers, res.ID)
	}
	w.mu.Unlock()
	if ok {
		fn(res)
	}
	return ok
}

func TestRequestNotConnected(t *testing.T) {
	wire := newFakeWire(false)
	client := NewClient(wire, time.Second, zerolog.Nop())

	_, err := client.Request(context.Background(), "agents.list", nil)

	if !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
	if wire.sentCount() != 0 {
		t.Error("no frame may be sent while disconnected")
	}
}

func TestRequestSuccess(t *testing.T) {
	wire := newFakeWire(true)
	client := NewClient(wire, time.Second, zerolog.Nop())

	done := make(chan struct{})
	var payload json.RawMessage
	var err error
	go func() {
		defer close(done)
		payload, err = client.Request(context.Background(), "sessions.list", map[string]string{"scope": "all"})
	}()

	req := waitForRequest(t, wire)
	if req.Type != "req" || req.Method != "sessions.list" || req.ID == "" {
		t.Fatalf("malformed request: %+v", req)
	}

	wire.respond(types.ResponseFrame{
		Type:    "res",
		ID:      req.ID,
		OK:      true,
		Payload: json.RawMessage(`{"sessions":[]}`),
	})

	<-done
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(payload) != `{"sessions":[]}` {
		t.Errorf("payload wrong: %s", payload)
	}
}

func TestRequestRPCError(t *testing.T) {
	wire := newFakeWire(true)
	client := NewClient(wire, time.Second, zerolog.Nop())

	done := make(chan struct{})
	var err error
	go func() {
		defer close(done)
		_, err = client.Request(context.Background(), "agents.list", nil)
	}()

	req := waitForRequest(t, wire)
	wire.respond(types.ResponseFrame{
		Type:  "res",
		ID:    req.ID,
		OK:    false,
		Error: &types.ResponseError{Code: "FORBIDDEN", Message: "nope"},
	})

	<-done
	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) {
		t.Fatalf("expected RPCError, got %v", err)
	}
	if rpcErr.Code != "FORBIDDEN" || rpcErr.Message != "nope" {
		t.Errorf("error fields lost: %+v", rpcErr)
	}
}

func TestRequestErrorWithoutDetails(t *testing.T) {
	wire := newFakeWire(true)
	client := NewClient(wire, time.Second, zerolog.Nop())

	done := make(chan struct{})
	var err error
	go func() {
		defer close(done)
		_, err = client.Request(context.Background(), "agents.list", nil)
	}()

	req := waitForRequest(t, wire)
	wire.respond(types.ResponseFrame{Type: "res", ID: req.ID, OK: false})

	<-done
	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) {
		t.Fatalf("expected RPCError, got %v", err)
	}
	if rpcErr.Code != "UNKNOWN" {
		t.Errorf("expected UNKNOWN fallback code, got %q", rpcErr.Code)
	}
}

func TestRequestTimeoutThenLateResponse(t *testing.T) {
	wire := newFakeWire(true)
	client := NewClient(wire, time.Second, zerolog.Nop())

	_, err := client.RequestTimeout(context.Background(), "slow.method", nil, 20*time.Millisecond)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}

	// The late response finds its handler already cancelled
	req := wire.lastRequest(t)
	if wire.respond(types.ResponseFrame{Type: "res", ID: req.ID, OK: true}) {
		t.Error("handler must be removed after timeout")
	}
}

func TestRequestContextCancelled(t *testing.T) {
	wire := newFakeWire(true)
	client := NewClient(wire, time.Minute, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := client.Request(ctx, "slow.method", nil)
		errCh <- err
	}()

	waitForRequest(t, wire)
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("request did not unblock on cancellation")
	}
}

func waitForRequest(t *testing.T, wire *fakeWire) types.RequestFrame {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if wire.sentCount() > 0 {
			return wire.lastRequest(t)
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("request never sent")
	return types.RequestFrame{}
}
