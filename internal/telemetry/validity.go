package telemetry

import "strconv"

// Plausible sensor ranges; readings outside them come from disconnected or faulty probes.
const (
	MinTemperature = -55.0
	MaxTemperature = 128.0
	MinPressure    = 500.0
	MaxPressure    = 2000.0
)

func IsValidTemperature(v float64) bool {
	return isFinite(v) && v >= MinTemperature && v <= MaxTemperature
}

func IsValidPressure(v float64) bool {
	return isFinite(v) && v >= MinPressure && v <= MaxPressure
}

// FormatTemperature renders a temperature with two decimals, or "--.--" when implausible.
func FormatTemperature(v *float64) string {
	if v == nil || !IsValidTemperature(*v) {
		return "--.--"
	}
	return strconv.FormatFloat(*v, 'f', 2, 64)
}

// FormatPressure renders a pressure with two decimals, or "---.--" when implausible.
func FormatPressure(v *float64) string {
	if v == nil || !IsValidPressure(*v) {
		return "---.--"
	}
	return strconv.FormatFloat(*v, 'f', 2, 64)
}
