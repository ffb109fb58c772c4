package gateway

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/agentfloor/agentfloor/internal/types"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	// Write timeout
	writeTimeout = 10 * time.Second

	// Reconnect backoff
	initialReconnectDelay = 1 * time.Second
	maxReconnectDelay     = 30 * time.Second

	// Outbound buffer; sends are dropped with a warning when full
	sendBuffer = 64
)

// Transport maintains the persistent WebSocket connection to the
// orchestration gateway. It routes inbound frames two ways: response
// frames fire the matching one-shot handler from the OnResponse registry,
// event frames fan out to every subscriber. Sending while disconnected is
// a silent drop, never a panic — callers that need the distinction check
// IsConnected first.
type Transport struct {
	gatewayURL string
	conn       *websocket.Conn
	send       chan []byte

	mu        sync.Mutex
	connected bool
	closed    bool

	respMu           sync.Mutex
	responseHandlers map[string]func(types.ResponseFrame)

	subMu     sync.RWMutex
	eventSubs []func(types.EventFrame)

	reconnects int64
	logger     zerolog.Logger
}

// NewTransport creates a transport for the given gateway URL
func NewTransport(gatewayURL string, logger zerolog.Logger) *Transport {
	return &Transport{
		gatewayURL:       gatewayURL,
		send:             make(chan []byte, sendBuffer),
		responseHandlers: make(map[string]func(types.ResponseFrame)),
		logger:           logger.With().Str("component", "transport").Logger(),
	}
}

// Run dials the gateway and keeps the connection alive with exponential
// backoff until the context is cancelled.
func (t *Transport) Run(ctx context.Context) {
	reconnectDelay := initialReconnectDelay

	for {
		t.mu.Lock()
		closed := t.closed
		t.mu.Unlock()
		if closed {
			return
		}

		select {
		case <-ctx.Done():
			t.Close()
			return
		default:
		}

		conn, err := t.connect()
		if err != nil {
			t.logger.Debug().Err(err).Dur("retry_in", reconnectDelay).Msg("connection failed, retrying")
			select {
			case <-ctx.Done():
				return
			case <-time.After(reconnectDelay):
			}
			reconnectDelay *= 2
			if reconnectDelay > maxReconnectDelay {
				reconnectDelay = maxReconnectDelay
			}
			t.mu.Lock()
			t.reconnects++
			t.mu.Unlock()
			continue
		}

		reconnectDelay = initialReconnectDelay
		t.runLoop(ctx, conn)

		// Connection lost; pending responses will never arrive
		t.failPendingResponses()
		t.mu.Lock()
		t.connected = false
		if t.conn != nil {
			t.conn.Close()
			t.conn = nil
		}
		t.mu.Unlock()
	}
}

func (t *Transport) connect() (*websocket.Conn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	wsURL := t.gatewayURL
	if len(wsURL) > 4 && wsURL[:4] == "http" {
		wsURL = "ws" + wsURL[4:]
	}

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		return nil, err
	}

	t.conn = conn
	t.connected = true
	t.logger.Info().Str("url", wsURL).Msg("gateway connected")
	return conn, nil
}

// runLoop serves one connection. The conn is passed in rather than read
// from the shared field so a reader still draining during teardown or
// reconnect can never observe a nil or swapped connection.
func (t *Transport) runLoop(ctx context.Context, conn *websocket.Conn) {
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				return
			}
			t.handleIncoming(message)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-readDone:
			return
		case msg := <-t.send:
			t.writeMessage(conn, msg)
		}
	}
}

// Send queues an outbound frame. It never blocks and never panics; frames
// queued while disconnected are dropped.
func (t *Transport) Send(data []byte) {
	if !t.IsConnected() {
		t.logger.Debug().Msg("send while disconnected, dropping frame")
		return
	}
	select {
	case t.send <- data:
	default:
		t.logger.Warn().Msg("send buffer full, dropping frame")
	}
}

// IsConnected reports whether the gateway connection is up
func (t *Transport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connected
}

// Reconnects returns how many times the transport has re-dialed
func (t *Transport) Reconnects() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.reconnects
}

// OnResponse registers a one-shot handler for the response with the given
// request id. The handler is removed when it fires or when cancelled.
func (t *Transport) OnResponse(id string, fn func(types.ResponseFrame)) {
	t.respMu.Lock()
	t.responseHandlers[id] = fn
	t.respMu.Unlock()
}

// CancelResponse removes a registered response handler; a response
// arriving afterwards finds no handler and is ignored.
func (t *Transport) CancelResponse(id string) {
	t.respMu.Lock()
	delete(t.responseHandlers, id)
	t.respMu.Unlock()
}

// SubscribeEvents adds a subscriber for inbound agent event frames.
// Subscription is independent of the response registry.
func (t *Transport) SubscribeEvents(fn func(types.EventFrame)) {
	t.subMu.Lock()
	t.eventSubs = append(t.eventSubs, fn)
	t.subMu.Unlock()
}

// handleIncoming demuxes one inbound message by sniffing its shape
func (t *Transport) handleIncoming(message []byte) {
	var head struct {
		Type   string `json:"type"`
		Stream string `json:"stream"`
		RunID  string `json:"runId"`
	}
	if err := json.Unmarshal(message, &head); err != nil {
		t.logger.Debug().Err(err).Msg("failed to parse inbound frame")
		return
	}

	switch {
	case head.Type == "res":
		var res types.ResponseFrame
		if err := json.Unmarshal(message, &res); err != nil {
			t.logger.Debug().Err(err).Msg("failed to parse response frame")
			return
		}
		t.respMu.Lock()
		fn := t.responseHandlers[res.ID]
		delete(t.responseHandlers, res.ID)
		t.respMu.Unlock()
		if fn != nil {
			fn(res)
		}

	case head.Stream != "" || head.RunID != "":
		var frame types.EventFrame
		if err := json.Unmarshal(message, &frame); err != nil {
			t.logger.Debug().Err(err).Msg("failed to parse event frame")
			return
		}
		t.subMu.RLock()
		subs := t.eventSubs
		t.subMu.RUnlock()
		for _, fn := range subs {
			fn(frame)
		}

	default:
		t.logger.Debug().Str("type", head.Type).Msg("unknown frame shape")
	}
}

// failPendingResponses drops every registered handler after a disconnect.
// The RPC layer times the requests out; dropping here just guarantees a
// stale handler can never fire on a frame from a new connection.
func (t *Transport) failPendingResponses() {
	t.respMu.Lock()
	t.responseHandlers = make(map[string]func(types.ResponseFrame))
	t.respMu.Unlock()
}

func (t *Transport) writeMessage(conn *websocket.Conn, data []byte) {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		t.logger.Debug().Err(err).Msg("write error")
	}
}

// Close permanently closes the transport and prevents reconnects
func (t *Transport) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.closed = true
	if t.conn != nil {
		t.conn.Close()
		t.conn = nil
	}
	t.connected = false
}
