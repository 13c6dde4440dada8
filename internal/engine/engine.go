package engine

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"karolbroda.com/lyrisync/internal/playback"
)

const DefaultSubscriberBuffer = 16

type Config struct {
	DriftThreshold   time.Duration
	SubscriberBuffer int
}

// Engine owns the playback state. Ingest is the only writer; every other
// method is a read or a subscription.
type Engine struct {
	cfg    Config
	logger *zap.Logger

	mu     sync.RWMutex
	state  playback.State
	subs   []*Subscription
	nextID int
	closed bool
}

func New(cfg Config, logger *zap.Logger) *Engine {
	if cfg.DriftThreshold <= 0 {
		cfg.DriftThreshold = playback.DefaultDriftThreshold
	}
	if cfg.SubscriberBuffer <= 0 {
		cfg.SubscriberBuffer = DefaultSubscriberBuffer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{cfg: cfg, logger: logger}
}

// CurrentState returns a copy of the latest state.
func (e *Engine) CurrentState() playback.State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

func (e *Engine) EstimatedPosition(now time.Time) int64 {
	e.mu.RLock()
	state := e.state
	e.mu.RUnlock()
	return playback.Estimate(state, now)
}

// Subscribe registers a new event stream. Past events are not replayed; call
// CurrentState for the present.
func (e *Engine) Subscribe() *Subscription {
	e.mu.Lock()
	defer e.mu.Unlock()

	sub := &Subscription{
		id:     e.nextID,
		ch:     make(chan playback.Event, e.cfg.SubscriberBuffer),
		engine: e,
	}
	e.nextID++

	if e.closed {
		sub.closed = true
		close(sub.ch)
		return sub
	}

	e.subs = append(e.subs, sub)
	return sub
}

// Ingest applies one snapshot and broadcasts the resulting event. The lock is
// held for classification, the state swap and the non-blocking fan-out so
// subscribers see events in ingest order.
func (e *Engine) Ingest(snap playback.Snapshot) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}

	next, ev := playback.Classify(e.state, snap, e.cfg.DriftThreshold)
	e.state = next

	if ev == nil {
		return
	}

	e.logger.Debug("playback event",
		zap.Stringer("kind", ev.Kind),
		zap.Stringer("track", ev.Track),
		zap.Int64("position_ms", ev.PositionMs))

	e.broadcastLocked(*ev)
}

// Unauthorized broadcasts an auth-expired event without touching state.
func (e *Engine) Unauthorized(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}

	e.logger.Warn("playback source rejected credentials", zap.Error(err))
	e.broadcastLocked(playback.Event{Kind: playback.EventAuthExpired, Err: err})
}

// Close ends every subscription. Later ingests are ignored.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}
	e.closed = true
	for _, sub := range e.subs {
		sub.closed = true
		close(sub.ch)
	}
	e.subs = nil
}

func (e *Engine) broadcastLocked(ev playback.Event) {
	for _, sub := range e.subs {
		if sub.deliver(ev) {
			e.logger.Debug("subscriber lagging, dropped oldest event", zap.Int("subscriber", sub.id))
		}
	}
}

func (e *Engine) unsubscribe(target *Subscription) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if target.closed {
		return
	}
	for i, sub := range e.subs {
		if sub == target {
			e.subs = append(e.subs[:i:i], e.subs[i+1:]...)
			break
		}
	}
	target.closed = true
	close(target.ch)
}
