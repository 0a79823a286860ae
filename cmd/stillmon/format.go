package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/srg/stillmon/internal/telemetry"
	"github.com/srg/stillmon/pkg/connection"
)

var severityColors = map[telemetry.Severity]*color.Color{
	telemetry.SeverityAlarm:    color.New(color.FgRed, color.Bold),
	telemetry.SeverityOverheat: color.New(color.FgMagenta),
	telemetry.SeverityWarning:  color.New(color.FgYellow),
	telemetry.SeverityStopped:  color.New(color.FgBlue),
	telemetry.SeverityNormal:   color.New(color.FgGreen),
}

// formatDeviceStatus renders the controller condition, coloured by severity
func formatDeviceStatus(st telemetry.DeviceStatus) string {
	if st.Severity == telemetry.SeverityUnknown {
		return ""
	}
	if c, ok := severityColors[st.Severity]; ok {
		return c.Sprint(st.Text)
	}
	return st.Text
}

// formatConnectionStatus renders a connection status line
func formatConnectionStatus(st connection.Status) string {
	switch {
	case st.State == connection.StateConnected:
		return color.GreenString(st.Text)
	case st.Err != nil && st.Text != connection.TextLinkLost:
		return color.RedString(st.Text)
	case st.Text == connection.TextLinkLost:
		return color.YellowString(st.Text)
	default:
		return color.CyanString(st.Text)
	}
}

// formatSnapshot renders the fields present in s as one line
func formatSnapshot(s telemetry.Snapshot) string {
	var parts []string

	if s.Temperatures != nil {
		var temps []string
		for i := range s.Temperatures {
			temps = append(temps, telemetry.FormatTemperature(&s.Temperatures[i]))
		}
		parts = append(parts, "T "+strings.Join(temps, " "))
	}
	if s.Pressure != nil {
		parts = append(parts, "P "+telemetry.FormatPressure(s.Pressure))
	}
	if s.Rate != nil {
		parts = append(parts, fmt.Sprintf("rate %d ml/h", *s.Rate))
	}
	if s.Dose != nil || s.Remain != nil {
		parts = append(parts, fmt.Sprintf("dose %s ml remain %s ml", intOrDash(s.Dose), intOrDash(s.Remain)))
	}
	if s.RemainTime != nil {
		parts = append(parts, "eta "+formatDuration(*s.RemainTime))
	}
	if s.Total != nil {
		parts = append(parts, fmt.Sprintf("total %d ml", *s.Total))
	}
	if s.Calibration != nil {
		parts = append(parts, fmt.Sprintf("cal %d", *s.Calibration))
	}
	if s.StabilizerMode != nil {
		parts = append(parts, "stab "+stabilizerName(*s.StabilizerMode))
	}
	if s.TargetVoltage != nil || s.MeasuredVoltage != nil {
		parts = append(parts, fmt.Sprintf("U %s/%s", floatOrDash(s.MeasuredVoltage), floatOrDash(s.TargetVoltage)))
	}
	if s.HeatSensor != nil && s.HeatValue != nil {
		parts = append(parts, fmt.Sprintf("heat #%d %.2f", *s.HeatSensor, *s.HeatValue))
	}
	return strings.Join(parts, " | ")
}

func stabilizerName(mode int) string {
	switch mode {
	case 0:
		return "normal"
	case 1:
		return "force"
	case 2:
		return "stop"
	case telemetry.StabilizerEmergency:
		return "emergency"
	default:
		return fmt.Sprintf("mode %d", mode)
	}
}

func intOrDash(v *int) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *v)
}

func floatOrDash(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.1f", *v)
}

// formatDuration renders seconds as H:MM:SS
func formatDuration(seconds int) string {
	d := time.Duration(seconds) * time.Second
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	sec := seconds % 60
	return fmt.Sprintf("%d:%02d:%02d", h, m, sec)
}
