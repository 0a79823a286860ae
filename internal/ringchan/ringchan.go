// Package ringchan provides a bounded channel whose producers never block:
// when the buffer is full the oldest element is discarded.
package ringchan

import (
	"sync"
	"sync/atomic"
)

// RingChannel wraps a buffered channel with overwrite-oldest sends.
// Readers consume C() like any channel. With capacity 1 it behaves as a
// latest-value mailbox.
type RingChannel[T any] struct {
	ch      chan T
	sendMu  sync.Mutex
	closed  bool
	metrics Metrics
}

// New creates a RingChannel with the given capacity
func New[T any](capacity int) *RingChannel[T] {
	if capacity <= 0 {
		panic("ringchan: capacity must be > 0")
	}
	return &RingChannel[T]{ch: make(chan T, capacity)}
}

// C returns the receive side
func (rc *RingChannel[T]) C() <-chan T {
	return rc.ch
}

// Send inserts v, discarding the oldest element when full. It reports whether
// something was discarded. Sends after Close are dropped.
func (rc *RingChannel[T]) Send(v T) bool {
	rc.sendMu.Lock()
	defer rc.sendMu.Unlock()

	if rc.closed {
		return false
	}

	dropped := false
	for {
		select {
		case rc.ch <- v:
			atomic.AddInt64(&rc.metrics.Written, 1)
			return dropped
		default:
		}
		// a reader may empty the buffer between the two selects
		select {
		case <-rc.ch:
			atomic.AddInt64(&rc.metrics.Overwritten, 1)
			dropped = true
		default:
		}
	}
}

// TrySend inserts v only if there is room
func (rc *RingChannel[T]) TrySend(v T) bool {
	rc.sendMu.Lock()
	defer rc.sendMu.Unlock()

	if rc.closed {
		return false
	}
	select {
	case rc.ch <- v:
		atomic.AddInt64(&rc.metrics.Written, 1)
		return true
	default:
		return false
	}
}

func (rc *RingChannel[T]) Len() int { return len(rc.ch) }
func (rc *RingChannel[T]) Cap() int { return cap(rc.ch) }

// Close closes the channel; buffered values stay readable. Close is idempotent.
func (rc *RingChannel[T]) Close() {
	rc.sendMu.Lock()
	defer rc.sendMu.Unlock()
	if !rc.closed {
		rc.closed = true
		close(rc.ch)
	}
}

// Metrics counts channel traffic
type Metrics struct {
	Written     int64
	Overwritten int64
}

// GetMetrics returns a snapshot of the counters
func (rc *RingChannel[T]) GetMetrics() Metrics {
	return Metrics{
		Written:     atomic.LoadInt64(&rc.metrics.Written),
		Overwritten: atomic.LoadInt64(&rc.metrics.Overwritten),
	}
}
