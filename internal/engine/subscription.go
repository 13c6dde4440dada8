package engine

import (
	"sync/atomic"

	"karolbroda.com/lyrisync/internal/playback"
)

// Subscription is one consumer's bounded event queue. When the queue is
// full the oldest pending event is dropped for this subscriber only.
type Subscription struct {
	id      int
	ch      chan playback.Event
	engine  *Engine
	dropped atomic.Uint64
	// guarded by engine.mu
	closed bool
}

// Events is closed when the subscription or the engine is closed.
func (s *Subscription) Events() <-chan playback.Event {
	return s.ch
}

// Dropped counts events discarded because this subscriber fell behind.
func (s *Subscription) Dropped() uint64 {
	return s.dropped.Load()
}

func (s *Subscription) Close() {
	s.engine.unsubscribe(s)
}

// deliver never blocks. It reports whether an older event was discarded.
func (s *Subscription) deliver(ev playback.Event) bool {
	dropped := false
	for {
		select {
		case s.ch <- ev:
			return dropped
		default:
		}

		select {
		case <-s.ch:
			s.dropped.Add(1)
			dropped = true
		default:
		}
	}
}
