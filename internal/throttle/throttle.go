// Package throttle coalesces bursts of partial snapshots into bounded-rate emissions.
package throttle

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/stillmon/internal/telemetry"
)

// DefaultInterval bounds emissions to about 2.5 per second
const DefaultInterval = 400 * time.Millisecond

// Timer is a scheduled callback
type Timer interface {
	Stop() bool
}

// Clock abstracts time so flush scheduling can be driven by tests
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// RealClock is the wall clock
var RealClock Clock = realClock{}

// Throttle merges pushed snapshots into a pending accumulator and emits it at most
// once per interval. Every push is reflected in a later emission.
//
// emit runs with the throttle locked and must not call back into it.
type Throttle struct {
	mu        sync.Mutex
	interval  time.Duration
	clock     Clock
	emit      func(telemetry.Snapshot)
	logger    *logrus.Logger
	pending   telemetry.Snapshot
	dirty     bool
	lastFlush time.Time
	timer     Timer
	seq       uint64
	stopped   bool
	flushes   uint64
}

// New creates a Throttle. A non-positive interval selects DefaultInterval and a nil clock the wall clock.
func New(interval time.Duration, clock Clock, emit func(telemetry.Snapshot), logger *logrus.Logger) *Throttle {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if clock == nil {
		clock = RealClock
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Throttle{
		interval: interval,
		clock:    clock,
		emit:     emit,
		logger:   logger,
	}
}

// Push merges s into the pending accumulator and makes sure a flush is scheduled.
func (t *Throttle) Push(s telemetry.Snapshot) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped {
		return
	}
	t.pending = t.pending.Merge(s.Sanitize())
	t.dirty = true

	elapsed := t.clock.Now().Sub(t.lastFlush)
	if elapsed >= t.interval {
		// immediate flush on the next tick, replacing anything scheduled
		t.schedule(0)
		return
	}
	if t.timer == nil {
		t.schedule(t.interval - elapsed)
	}
}

// Stop cancels any scheduled flush and drops pending state. Later pushes are ignored.
func (t *Throttle) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopped = true
	t.cancel()
	t.pending = telemetry.Snapshot{}
	t.dirty = false
}

// Flushes returns the number of emissions so far
func (t *Throttle) Flushes() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.flushes
}

func (t *Throttle) schedule(d time.Duration) {
	t.cancel()
	t.seq++
	seq := t.seq
	t.timer = t.clock.AfterFunc(d, func() { t.flush(seq) })
}

func (t *Throttle) cancel() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

func (t *Throttle) flush(seq uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	// a replaced or cancelled timer that fired anyway
	if t.stopped || seq != t.seq {
		return
	}
	t.timer = nil
	if !t.dirty {
		return
	}

	out := t.pending
	t.pending = telemetry.Snapshot{}
	t.dirty = false
	t.lastFlush = t.clock.Now()
	t.flushes++

	t.logger.WithField("flush", t.flushes).Trace("Emitting throttled snapshot")
	if t.emit != nil {
		t.emit(out)
	}
}
