package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New()

	m.AddBytes(20)
	m.Frame('W')
	m.Frame('W')
	m.Frame('Z')
	m.DecodeError('Q')
	m.FramingDelta(2, 1)
	m.Emission()
	m.Command("P", nil)
	m.Command("P", errors.New("write failed"))
	m.Dropped(3)

	assert.Equal(t, 20.0, testutil.ToFloat64(m.NotificationBytes))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Frames.WithLabelValues("W")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Frames.WithLabelValues("Z")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DecodeErrors.WithLabelValues("Q")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CorruptedFrames))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BufferOverflows))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Emissions))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Commands.WithLabelValues("P", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Commands.WithLabelValues("P", "error")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.RecorderDropped))
}

func TestState(t *testing.T) {
	m := New()
	all := []string{"disconnected", "connecting", "connected"}

	m.State("connecting", all)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ConnectionState.WithLabelValues("connecting")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.ConnectionState.WithLabelValues("connected")))

	m.State("connected", all)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.ConnectionState.WithLabelValues("connecting")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ConnectionState.WithLabelValues("connected")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.AddBytes(1)
		m.Frame('W')
		m.DecodeError('W')
		m.FramingDelta(1, 1)
		m.Emission()
		m.Command("R", nil)
		m.State("connected", []string{"connected"})
		m.Dropped(1)
	})
	assert.Nil(t, m.Registry())
}

func TestHandler(t *testing.T) {
	m := New()
	m.Frame('V')

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	_ = resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `stillmon_frames_total{tag="V"} 1`)

	resp, err = http.Get(srv.URL + "/health")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
