package event

import (
	"sync"
	"time"

	"github.com/agentfloor/agentfloor/internal/types"
	"github.com/rs/zerolog"
)

const (
	// queueHighWater is the queue size that triggers an overflow trim
	queueHighWater = 500

	// queueRetain is how many of the newest entries survive a trim
	queueRetain = 200
)

// Throttle decouples event arrival rate from the render frame rate.
// High-priority frames (errors, run start/end) are handed to the immediate
// handler synchronously on arrival. Everything else is queued and flushed
// as one atomic batch on the next scheduler tick; at most one flush is
// pending at any time.
type Throttle struct {
	mu           sync.Mutex
	queue        []types.EventFrame
	flushTimer   *time.Timer
	flushPending bool
	destroyed    bool

	interval  time.Duration
	immediate func(types.EventFrame)
	batch     func([]types.EventFrame)
	onDrop    func(n int)

	dropped int64
	logger  zerolog.Logger
}

// NewThrottle creates a throttle flushing every interval. The immediate
// handler receives high-priority frames synchronously from Push; the batch
// handler receives queued frames in arrival order.
func NewThrottle(interval time.Duration, immediate func(types.EventFrame), batch func([]types.EventFrame), logger zerolog.Logger) *Throttle {
	return &Throttle{
		interval:  interval,
		immediate: immediate,
		batch:     batch,
		logger:    logger.With().Str("component", "throttle").Logger(),
	}
}

// SetDropHandler attaches an optional callback invoked with the number of
// frames discarded by each overflow trim. Must be set before pushing.
func (t *Throttle) SetDropHandler(fn func(n int)) {
	t.mu.Lock()
	t.onDrop = fn
	t.mu.Unlock()
}

// Push classifies and routes one frame. It never blocks and never fails;
// under sustained overload the oldest normal-priority frames are dropped.
func (t *Throttle) Push(frame types.EventFrame) {
	if IsHighPriority(frame) {
		t.mu.Lock()
		destroyed := t.destroyed
		t.mu.Unlock()
		if destroyed {
			return
		}
		if t.immediate != nil {
			t.immediate(frame)
		}
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.destroyed {
		return
	}

	t.queue = append(t.queue, frame)

	if len(t.queue) > queueHighWater {
		cut := len(t.queue) - queueRetain
		t.dropped += int64(cut)
		t.queue = append([]types.EventFrame(nil), t.queue[cut:]...)
		if t.onDrop != nil {
			t.onDrop(cut)
		}
		t.logger.Warn().
			Int("dropped", cut).
			Int64("dropped_total", t.dropped).
			Msg("event queue overflow, trimming oldest entries")
	}

	if !t.flushPending {
		t.flushPending = true
		t.flushTimer = time.AfterFunc(t.interval, t.flush)
	}
}

// flush delivers the queued batch atomically and clears the queue
func (t *Throttle) flush() {
	t.mu.Lock()
	if t.destroyed {
		t.mu.Unlock()
		return
	}
	batch := t.queue
	t.queue = nil
	t.flushPending = false
	t.mu.Unlock()

	if len(batch) == 0 {
		return
	}
	if t.batch != nil {
		t.batch(batch)
	}
}

// QueueLen returns the number of frames waiting for the next flush
func (t *Throttle) QueueLen() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.queue)
}

// Dropped returns the total number of frames discarded by overflow trims
func (t *Throttle) Dropped() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dropped
}

// Destroy cancels any pending flush and clears the queue. It is safe to
// call at any time, including with no flush pending; no handler is invoked
// after it returns.
func (t *Throttle) Destroy() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.destroyed = true
	t.queue = nil
	t.flushPending = false
	if t.flushTimer != nil {
		t.flushTimer.Stop()
		t.flushTimer = nil
	}
}
