package main

import (
	"testing"

	"github.com/fatih/color"
	"github.com/srg/stillmon/internal/telemetry"
	"github.com/srg/stillmon/pkg/connection"
	"github.com/stretchr/testify/assert"
)

func TestFormatSnapshot(t *testing.T) {
	color.NoColor = true

	s := telemetry.Snapshot{
		Temperatures:    &[4]float64{78.5, 200, -10.25, 25},
		Pressure:        telemetry.Ptr(100.0),
		Rate:            telemetry.Ptr(1000),
		Dose:            telemetry.Ptr(500),
		RemainTime:      telemetry.Ptr(3725),
		StabilizerMode:  telemetry.Ptr(telemetry.StabilizerEmergency),
		MeasuredVoltage: telemetry.Ptr(219.8),
	}

	assert.Equal(t,
		"T 78.50 --.-- -10.25 25.00 | P ---.-- | rate 1000 ml/h | dose 500 ml remain - ml | eta 1:02:05 | stab emergency | U 219.8/-",
		formatSnapshot(s))
	assert.Empty(t, formatSnapshot(telemetry.Snapshot{}))
}

func TestFormatStatuses(t *testing.T) {
	color.NoColor = true

	assert.Equal(t, "Connected", formatConnectionStatus(connection.Status{State: connection.StateConnected, Text: connection.TextConnected}))
	assert.Equal(t, "Link lost", formatConnectionStatus(connection.Status{Text: connection.TextLinkLost}))

	assert.Empty(t, formatDeviceStatus(telemetry.DeviceStatus{}))
	st := telemetry.Snapshot{AlarmFlags: telemetry.Ptr(telemetry.FlagRunning), DriveStatus: telemetry.Ptr(0)}.Status()
	assert.Equal(t, "System operating normally", formatDeviceStatus(st))
}
