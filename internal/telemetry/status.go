package telemetry

import (
	"fmt"
	"strings"
)

// Severity orders device conditions from benign to critical.
type Severity int

const (
	SeverityUnknown Severity = iota
	SeverityNormal
	SeverityStopped
	SeverityWarning
	SeverityOverheat
	SeverityAlarm
)

func (s Severity) String() string {
	switch s {
	case SeverityNormal:
		return "normal"
	case SeverityStopped:
		return "stopped"
	case SeverityWarning:
		return "warning"
	case SeverityOverheat:
		return "overheat"
	case SeverityAlarm:
		return "alarm"
	default:
		return "unknown"
	}
}

// Alarm flag bits reported by the controller.
const (
	FlagRunning   = 1 << 0 // cleared when the operator stopped collection
	FlagDoseReach = 1 << 1 // auto-stop after the configured dose
	FlagOverheat  = 1 << 2
)

// StabilizerEmergency is the stabilizer mode reported after an emergency signal.
const StabilizerEmergency = 3

// DeviceStatus is a one-line operator-facing summary of the controller condition.
type DeviceStatus struct {
	Severity Severity
	Text     string
}

// Status derives the operator-facing condition from alarm flags, drive status and
// stabilizer mode. It is SeverityUnknown until both status bitmasks have been reported.
func (s Snapshot) Status() DeviceStatus {
	if s.StabilizerMode != nil && *s.StabilizerMode == StabilizerEmergency {
		return DeviceStatus{SeverityAlarm, "Emergency signal received. Heating off, collection stopped."}
	}
	if s.AlarmFlags == nil || s.DriveStatus == nil {
		return DeviceStatus{SeverityUnknown, ""}
	}

	flags, drive := *s.AlarmFlags, *s.DriveStatus
	switch {
	case flags&FlagOverheat != 0:
		return DeviceStatus{SeverityOverheat, fmt.Sprintf("Collection stopped. Overheat, sensor(s) %s", sensorList(drive))}
	case flags&FlagDoseReach != 0:
		dose := 0
		if s.Dose != nil {
			dose = *s.Dose
		}
		return DeviceStatus{SeverityWarning, fmt.Sprintf("Auto-stop at configured volume (%d ml). Press START to continue", dose)}
	case flags&FlagRunning == 0:
		return DeviceStatus{SeverityStopped, "Collection stopped by operator. Press START to continue"}
	case drive != 0 && drive < 16:
		return DeviceStatus{SeverityWarning, fmt.Sprintf("Sensor(s) %s triggered. Take action.", sensorList(drive))}
	default:
		return DeviceStatus{SeverityNormal, "System operating normally"}
	}
}

func sensorList(drive int) string {
	var sensors []string
	for i := 0; i < 4; i++ {
		if drive&(1<<i) != 0 {
			sensors = append(sensors, fmt.Sprintf("#%d", i))
		}
	}
	return strings.Join(sensors, ", ")
}
