package telemetry

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSafeDivide(t *testing.T) {
	tests := []struct {
		name     string
		n, d     float64
		expected float64
	}{
		{"regular", 10, 4, 2.5},
		{"zero divisor", 5, 0, 0},
		{"NaN numerator", math.NaN(), 3, 0},
		{"NaN divisor", 3, math.NaN(), 0},
		{"infinite numerator", math.Inf(1), 3, 0},
		{"infinite divisor", 3, math.Inf(-1), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SafeDivide(tt.n, tt.d))
		})
	}
}

func TestMergeReplacesPresentFieldsOnly(t *testing.T) {
	// GOAL: Verify Merge is a field-wise replace-if-present union
	//
	// TEST SCENARIO: cumulative snapshot merged with a partial → present fields replaced → absent fields kept → inputs untouched

	base := Snapshot{
		Dose:        Ptr(100),
		Remain:      Ptr(50),
		Calibration: Ptr(uint32(256)),
	}
	partial := Snapshot{
		Remain:       Ptr(40),
		Temperatures: &[4]float64{78.5, 80, 81.25, 90},
	}

	merged := base.Merge(partial)

	assert.Equal(t, 100, *merged.Dose, "absent field MUST keep previous value")
	assert.Equal(t, 40, *merged.Remain, "present field MUST be replaced")
	assert.Equal(t, uint32(256), *merged.Calibration)
	assert.Equal(t, [4]float64{78.5, 80, 81.25, 90}, *merged.Temperatures)

	assert.Equal(t, 50, *base.Remain, "receiver MUST NOT be mutated")
	assert.Nil(t, base.Temperatures, "receiver MUST NOT gain fields")

	assert.Equal(t, merged, merged.Merge(Snapshot{}), "merging an empty snapshot MUST be a no-op")
	assert.True(t, Snapshot{}.IsEmpty())
	assert.False(t, merged.IsEmpty())
}

func TestSanitizeReplacesNonFinite(t *testing.T) {
	temps := &[4]float64{1, math.NaN(), math.Inf(1), 4}
	s := Snapshot{
		Temperatures:  temps,
		Pressure:      Ptr(math.Inf(-1)),
		TargetVoltage: Ptr(220.5),
		HeatValue:     Ptr(math.NaN()),
	}

	clean := s.Sanitize()

	assert.Equal(t, [4]float64{1, 0, 0, 4}, *clean.Temperatures, "non-finite array entries MUST become 0")
	assert.Equal(t, 0.0, *clean.Pressure)
	assert.Equal(t, 220.5, *clean.TargetVoltage, "finite values MUST be kept")
	assert.Equal(t, 0.0, *clean.HeatValue)
	assert.True(t, math.IsNaN(temps[1]), "source array MUST NOT be mutated")
	assert.Nil(t, clean.Bounds, "absent fields MUST stay absent")
}

func TestFieldsKeepDisplayOrder(t *testing.T) {
	s := Snapshot{
		Calibration: Ptr(uint32(256)),
		Dose:        Ptr(100),
		Pressure:    Ptr(760.0),
	}

	data, err := json.Marshal(s.Fields())
	require.NoError(t, err)
	assert.Equal(t, `{"pressure":760,"dose":100,"calibration":256}`, string(data), "keys MUST follow display order")
}

func TestStatus(t *testing.T) {
	tests := []struct {
		name     string
		snapshot Snapshot
		severity Severity
		text     string
	}{
		{
			name:     "unknown before flags arrive",
			snapshot: Snapshot{Dose: Ptr(10)},
			severity: SeverityUnknown,
		},
		{
			name:     "emergency stabilizer mode wins",
			snapshot: Snapshot{StabilizerMode: Ptr(3), AlarmFlags: Ptr(1), DriveStatus: Ptr(0)},
			severity: SeverityAlarm,
			text:     "Emergency signal received. Heating off, collection stopped.",
		},
		{
			name:     "overheat lists sensors",
			snapshot: Snapshot{AlarmFlags: Ptr(0b101), DriveStatus: Ptr(0b1010)},
			severity: SeverityOverheat,
			text:     "Collection stopped. Overheat, sensor(s) #1, #3",
		},
		{
			name:     "dose auto-stop",
			snapshot: Snapshot{AlarmFlags: Ptr(0b011), DriveStatus: Ptr(0), Dose: Ptr(500)},
			severity: SeverityWarning,
			text:     "Auto-stop at configured volume (500 ml). Press START to continue",
		},
		{
			name:     "operator stop",
			snapshot: Snapshot{AlarmFlags: Ptr(0), DriveStatus: Ptr(0)},
			severity: SeverityStopped,
			text:     "Collection stopped by operator. Press START to continue",
		},
		{
			name:     "sensor triggered",
			snapshot: Snapshot{AlarmFlags: Ptr(1), DriveStatus: Ptr(0b0001)},
			severity: SeverityWarning,
			text:     "Sensor(s) #0 triggered. Take action.",
		},
		{
			name:     "normal",
			snapshot: Snapshot{AlarmFlags: Ptr(1), DriveStatus: Ptr(0)},
			severity: SeverityNormal,
			text:     "System operating normally",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := tt.snapshot.Status()
			assert.Equal(t, tt.severity, st.Severity)
			assert.Equal(t, tt.text, st.Text)
		})
	}
}

func TestValidity(t *testing.T) {
	assert.True(t, IsValidTemperature(-55))
	assert.True(t, IsValidTemperature(128))
	assert.False(t, IsValidTemperature(128.1))
	assert.False(t, IsValidTemperature(math.NaN()))
	assert.True(t, IsValidPressure(760))
	assert.False(t, IsValidPressure(499.9))

	assert.Equal(t, "78.50", FormatTemperature(Ptr(78.5)))
	assert.Equal(t, "--.--", FormatTemperature(Ptr(-127.0)))
	assert.Equal(t, "--.--", FormatTemperature(nil))
	assert.Equal(t, "760.00", FormatPressure(Ptr(760.0)))
	assert.Equal(t, "---.--", FormatPressure(Ptr(0.0)))
}
