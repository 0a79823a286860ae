package command

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	sent []string
	err  error
}

func (r *recordingSender) Send(_ context.Context, cmd string) error {
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, cmd)
	return nil
}

func newClient(t *testing.T) (*Client, *recordingSender, *test.Hook) {
	t.Helper()
	logger, hook := test.NewNullLogger()
	sender := &recordingSender{}
	return NewClient(sender, logger), sender, hook
}

func warnings(hook *test.Hook) int {
	n := 0
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel {
			n++
		}
	}
	return n
}

func TestSetPumpRate(t *testing.T) {
	// GOAL: Verify in-range rates encode exactly and out-of-range rates clamp with one warning
	//
	// TEST SCENARIO: rates across and beyond [0, 3000] → P{hex4}\r → warning count per call

	tests := []struct {
		name     string
		rate     float64
		expected string
		warnings int
	}{
		{"zero", 0, "P0000\r", 0},
		{"typical", 1000, "P03E8\r", 0},
		{"upper bound", 3000, "P0BB8\r", 0},
		{"rounds", 999.6, "P03E8\r", 0},
		{"above range clamps", 5000, "P0BB8\r", 1},
		{"negative clamps", -10, "P0000\r", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, sender, hook := newClient(t)
			require.NoError(t, c.SetPumpRate(context.Background(), tt.rate))
			assert.Equal(t, []string{tt.expected}, sender.sent)
			assert.Equal(t, tt.warnings, warnings(hook), "clamping MUST log exactly one warning")
		})
	}
}

func TestNonFiniteInputRejected(t *testing.T) {
	c, sender, _ := newClient(t)
	ctx := context.Background()

	for _, v := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		var verr *ValidationError
		assert.ErrorAs(t, c.SetPumpRate(ctx, v), &verr)
		assert.ErrorAs(t, c.SetDose(ctx, v), &verr)
		assert.ErrorAs(t, c.SetTargetVoltage(ctx, v), &verr)
		assert.ErrorAs(t, c.SetHeatControl(ctx, true, 0, v), &verr)
	}
	assert.Empty(t, sender.sent, "rejected values MUST NOT reach the device")
}

func TestCalibratePump(t *testing.T) {
	// GOAL: Verify the calibration constant is rejected, never clamped, outside [0, 2^32-1]

	c, sender, _ := newClient(t)
	ctx := context.Background()

	require.NoError(t, c.CalibratePump(ctx, 0, false))
	require.NoError(t, c.CalibratePump(ctx, 4294967295, true))
	require.NoError(t, c.CalibratePump(ctx, 256, true))

	var verr *ValidationError
	require.ErrorAs(t, c.CalibratePump(ctx, 4294967296, false), &verr)
	assert.Equal(t, "calibration", verr.Param)
	assert.Error(t, c.CalibratePump(ctx, -1, false))

	assert.Equal(t, []string{"Z000000000\r", "Z1FFFFFFFF\r", "Z100000100\r"}, sender.sent)
}

func TestFixedCommands(t *testing.T) {
	c, sender, _ := newClient(t)
	ctx := context.Background()

	require.NoError(t, c.StartPump(ctx))
	require.NoError(t, c.StopPump(ctx))
	require.NoError(t, c.ResetTotalCounter(ctx))
	require.NoError(t, c.RequestCalibration(ctx))

	assert.Equal(t, []string{"R0\r", "P0000\r", "Z1\r", "Z0\r"}, sender.sent)
}

func TestSetDoseAndVoltage(t *testing.T) {
	c, sender, hook := newClient(t)
	ctx := context.Background()

	require.NoError(t, c.SetDose(ctx, 500))
	require.NoError(t, c.SetDose(ctx, 6000))
	require.NoError(t, c.SetTargetVoltage(ctx, 2200))
	require.NoError(t, c.SetTargetVoltage(ctx, 2600))

	assert.Equal(t, []string{"V01F4\r", "V1388\r", "T0898\r", "T09C4\r"}, sender.sent)
	assert.Equal(t, 2, warnings(hook))
}

func TestSetStabilizerMode(t *testing.T) {
	c, sender, _ := newClient(t)
	ctx := context.Background()

	require.NoError(t, c.SetStabilizerMode(ctx, StabilizerNormal))
	require.NoError(t, c.SetStabilizerMode(ctx, StabilizerForce))
	require.NoError(t, c.SetStabilizerMode(ctx, StabilizerStop))

	var verr *ValidationError
	assert.ErrorAs(t, c.SetStabilizerMode(ctx, StabilizerMode(3)), &verr, "unknown mode MUST be rejected")

	assert.Equal(t, []string{"U0\r", "U1\r", "U2\r"}, sender.sent)

	m, err := ParseStabilizerMode("Force")
	require.NoError(t, err)
	assert.Equal(t, StabilizerForce, m)
	_, err = ParseStabilizerMode("turbo")
	assert.Error(t, err)
}

func TestSetHeatControl(t *testing.T) {
	c, sender, hook := newClient(t)
	ctx := context.Background()

	require.NoError(t, c.SetHeatControl(ctx, true, 2, 78.5))
	require.NoError(t, c.SetHeatControl(ctx, true, 0, -55))
	require.NoError(t, c.SetHeatControl(ctx, true, 1, 200))
	require.NoError(t, c.SetHeatControl(ctx, false, 9, math.NaN()), "disabling MUST ignore sensor and bound")

	var verr *ValidationError
	assert.ErrorAs(t, c.SetHeatControl(ctx, true, 4, 50), &verr)
	assert.Equal(t, "sensor", verr.Param)

	assert.Equal(t, []string{"Y1204E8\r", "Y10FC90\r", "Y1107F0\r", "Y0\r"}, sender.sent)
	assert.Equal(t, 1, warnings(hook))
}

func TestSetSensorBound(t *testing.T) {
	c, sender, _ := newClient(t)
	ctx := context.Background()

	require.NoError(t, c.SetSensorBound(ctx, 3, 95.25, 10))
	require.NoError(t, c.SetSensorBound(ctx, 0, -10, 0))

	var verr *ValidationError
	assert.ErrorAs(t, c.SetSensorBound(ctx, 0, 50, 16), &verr)
	assert.Equal(t, "reaction", verr.Param)
	assert.ErrorAs(t, c.SetSensorBound(ctx, -1, 50, 1), &verr)

	assert.Equal(t, []string{"M305F4A\r", "M0FF600\r"}, sender.sent)
}

func TestSendErrorPropagates(t *testing.T) {
	logger, _ := test.NewNullLogger()
	boom := errors.New("write failed")
	c := NewClient(&recordingSender{err: boom}, logger)

	assert.ErrorIs(t, c.StartPump(context.Background()), boom)
}

func TestSenderFunc(t *testing.T) {
	var got string
	c := NewClient(SenderFunc(func(_ context.Context, cmd string) error {
		got = cmd
		return nil
	}), nil)

	require.NoError(t, c.SetDose(context.Background(), 100))
	assert.Equal(t, "V0064\r", got)
}
