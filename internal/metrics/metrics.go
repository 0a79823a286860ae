// Package metrics exposes Prometheus counters for the telemetry pipeline.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/srg/stillmon/internal/groutine"
)

const namespace = "stillmon"

type Metrics struct {
	registry *prometheus.Registry

	NotificationBytes prometheus.Counter
	Frames            *prometheus.CounterVec
	DecodeErrors      *prometheus.CounterVec
	CorruptedFrames   prometheus.Counter
	BufferOverflows   prometheus.Counter
	Emissions         prometheus.Counter
	Commands          *prometheus.CounterVec
	ConnectionState   *prometheus.GaugeVec
	RecorderDropped   prometheus.Counter
}

// New creates the collectors on a private registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		NotificationBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notification_bytes_total",
			Help:      "Bytes received on the TX characteristic",
		}),
		Frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_total",
			Help:      "Complete frames extracted, by format tag",
		}, []string{"tag"}),
		DecodeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decode_errors_total",
			Help:      "Frames that could not be decoded, by format tag",
		}, []string{"tag"}),
		CorruptedFrames: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "corrupted_frames_total",
			Help:      "Frames discarded for a nested start marker",
		}),
		BufferOverflows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "buffer_overflows_total",
			Help:      "Frame buffer resets after exceeding the size limit",
		}),
		Emissions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_emissions_total",
			Help:      "Throttled snapshot updates delivered to consumers",
		}),
		Commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Commands written to the device, by opcode and result",
		}, []string{"opcode", "result"}),
		ConnectionState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connection_state",
			Help:      "1 for the current connection state, 0 otherwise",
		}, []string{"state"}),
		RecorderDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recorder_dropped_total",
			Help:      "Snapshot records overwritten before they were written out",
		}),
	}
	m.registry.MustRegister(
		m.NotificationBytes,
		m.Frames,
		m.DecodeErrors,
		m.CorruptedFrames,
		m.BufferOverflows,
		m.Emissions,
		m.Commands,
		m.ConnectionState,
		m.RecorderDropped,
	)
	return m
}

// Registry returns the registry the collectors live on
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) AddBytes(n int) {
	if m != nil {
		m.NotificationBytes.Add(float64(n))
	}
}

func (m *Metrics) Frame(tag byte) {
	if m != nil {
		m.Frames.WithLabelValues(tagLabel(tag)).Inc()
	}
}

func (m *Metrics) DecodeError(tag byte) {
	if m != nil {
		m.DecodeErrors.WithLabelValues(tagLabel(tag)).Inc()
	}
}

// FramingDelta adds assembler counter increments
func (m *Metrics) FramingDelta(corrupted, overflows uint64) {
	if m != nil {
		m.CorruptedFrames.Add(float64(corrupted))
		m.BufferOverflows.Add(float64(overflows))
	}
}

func (m *Metrics) Emission() {
	if m != nil {
		m.Emissions.Inc()
	}
}

func (m *Metrics) Command(opcode string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.Commands.WithLabelValues(opcode, result).Inc()
}

// State marks current as the only active connection state among all
func (m *Metrics) State(current string, all []string) {
	if m == nil {
		return
	}
	for _, s := range all {
		v := 0.0
		if s == current {
			v = 1
		}
		m.ConnectionState.WithLabelValues(s).Set(v)
	}
}

func (m *Metrics) Dropped(n uint64) {
	if m != nil {
		m.RecorderDropped.Add(float64(n))
	}
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	return mux
}

// Serve runs the metrics endpoint on addr until ctx is done
func (m *Metrics) Serve(ctx context.Context, addr string, logger *logrus.Logger) {
	if logger == nil {
		logger = logrus.New()
	}
	srv := &http.Server{Addr: addr, Handler: m.Handler(), ReadHeaderTimeout: 5 * time.Second}

	groutine.Go(ctx, "metrics-shutdown", func(ctx context.Context) {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	})
	groutine.Go(ctx, "metrics-server", func(context.Context) {
		logger.WithField("addr", addr).Info("Metrics server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("Metrics server failed")
		}
	})
}

func tagLabel(tag byte) string {
	if tag < 0x20 || tag > 0x7e {
		return "?"
	}
	return string(rune(tag))
}
