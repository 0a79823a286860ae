package datalog

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/hedzr/go-ringbuf/v2/mpmc"
	"github.com/sirupsen/logrus"
	"github.com/srg/stillmon/internal/groutine"
	"github.com/srg/stillmon/internal/telemetry"
)

const (
	// DefaultCapacity keeps ten minutes of once-per-second snapshots
	DefaultCapacity      = 600
	DefaultFlushInterval = time.Second

	// MaxCapacity guards against accidental misconfiguration
	MaxCapacity = 1024 * 1024
)

// Options configures a Recorder
type Options struct {
	Capacity      int
	FlushInterval time.Duration
	// Session tags every record; empty generates a random UUID
	Session string
}

// Metrics counts recorder traffic
type Metrics struct {
	Recorded int64
	Written  int64
	Dropped  int64
	Errors   int64
}

const (
	stateNotRunning uint32 = iota
	stateRunning
	stateStopping
)

// Recorder queues snapshots in a bounded ring that overwrites the oldest entry
// when full, and drains it to a Sink on a background goroutine. Add never blocks.
type Recorder struct {
	buffer   mpmc.RichOverlappedRingBuffer[Record]
	sink     Sink
	session  string
	interval time.Duration
	logger   *logrus.Logger
	now      func() time.Time

	drainMu sync.Mutex
	state   uint32
	stop    chan struct{}
	done    chan struct{}
	metrics Metrics

	// OnDrop, when set, is told how many records an Add overwrote
	OnDrop func(n uint64)
}

// NewRecorder creates a stopped recorder writing to sink
func NewRecorder(sink Sink, opts Options, logger *logrus.Logger) (*Recorder, error) {
	if sink == nil {
		return nil, fmt.Errorf("datalog sink cannot be nil")
	}
	if opts.Capacity <= 0 {
		opts.Capacity = DefaultCapacity
	}
	if opts.Capacity > MaxCapacity {
		return nil, fmt.Errorf("datalog capacity %d exceeds maximum %d", opts.Capacity, MaxCapacity)
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = DefaultFlushInterval
	}
	if opts.Session == "" {
		opts.Session = uuid.NewString()
	}
	if logger == nil {
		logger = logrus.New()
	}

	return &Recorder{
		buffer:   mpmc.NewOverlappedRingBuffer[Record](uint32(opts.Capacity)),
		sink:     sink,
		session:  opts.Session,
		interval: opts.FlushInterval,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// Session returns the identifier stamped on every record
func (r *Recorder) Session() string {
	return r.session
}

// Add queues a snapshot. It never blocks; when the ring is full the oldest record is lost.
func (r *Recorder) Add(s telemetry.Snapshot) {
	overwrites, err := r.buffer.EnqueueM(Record{Time: r.now(), Session: r.session, Snapshot: s})
	if err != nil {
		atomic.AddInt64(&r.metrics.Errors, 1)
		r.logger.WithError(err).Warn("Failed to queue snapshot record")
		return
	}
	atomic.AddInt64(&r.metrics.Recorded, 1)
	if overwrites > 0 {
		atomic.AddInt64(&r.metrics.Dropped, int64(overwrites))
		if r.OnDrop != nil {
			r.OnDrop(uint64(overwrites))
		}
	}
}

// Start launches the drain goroutine
func (r *Recorder) Start(ctx context.Context) error {
	if !atomic.CompareAndSwapUint32(&r.state, stateNotRunning, stateRunning) {
		return fmt.Errorf("recorder is already running")
	}
	r.stop = make(chan struct{})
	r.done = make(chan struct{})

	groutine.Go(ctx, "datalog-drain", func(ctx context.Context) {
		defer close(r.done)
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		for {
			select {
			case <-r.stop:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := r.Flush(); err != nil {
					r.logger.WithError(err).Error("Failed to write snapshot records")
				}
			}
		}
	})
	return nil
}

// Flush writes every queued record to the sink
func (r *Recorder) Flush() error {
	r.drainMu.Lock()
	defer r.drainMu.Unlock()

	for !r.buffer.IsEmpty() {
		rec, err := r.buffer.Dequeue()
		if err != nil {
			return fmt.Errorf("datalog dequeue: %w", err)
		}
		if err := r.sink.Write(rec); err != nil {
			atomic.AddInt64(&r.metrics.Errors, 1)
			return fmt.Errorf("datalog write: %w", err)
		}
		atomic.AddInt64(&r.metrics.Written, 1)
	}
	return nil
}

// Close stops the drain goroutine, writes what is left and closes the sink.
func (r *Recorder) Close() error {
	if atomic.CompareAndSwapUint32(&r.state, stateRunning, stateStopping) {
		close(r.stop)
		<-r.done
	}
	flushErr := r.Flush()
	closeErr := r.sink.Close()
	atomic.StoreUint32(&r.state, stateNotRunning)

	if flushErr != nil {
		return flushErr
	}
	return closeErr
}

// GetMetrics returns a copy of the counters
func (r *Recorder) GetMetrics() Metrics {
	return Metrics{
		Recorded: atomic.LoadInt64(&r.metrics.Recorded),
		Written:  atomic.LoadInt64(&r.metrics.Written),
		Dropped:  atomic.LoadInt64(&r.metrics.Dropped),
		Errors:   atomic.LoadInt64(&r.metrics.Errors),
	}
}
