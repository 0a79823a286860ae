// Package telemetry holds the decoded state of a distillation controller.
//
// A Snapshot carries every measurement as an optional field: a decoded frame fills
// only the fields it carries and Merge folds a partial snapshot into the cumulative
// view field by field. Snapshots are values; Merge and Sanitize return new ones.
package telemetry

import "math"

// Snapshot is a field-wise optional view of the controller state.
// A nil field has not been reported yet.
type Snapshot struct {
	Temperatures *[4]float64 `json:"temperatures,omitempty"` // °C, 1/16 resolution
	Bounds       *[4]float64 `json:"bounds,omitempty"`       // °C alarm bounds per sensor
	Reactions    *[4]int     `json:"reactions,omitempty"`    // per-sensor reaction bitmask
	Pressure     *float64    `json:"pressure,omitempty"`     // mmHg

	AlarmFlags  *int `json:"alarm_flags,omitempty"`
	DriveStatus *int `json:"drive_status,omitempty"`

	Rate        *int    `json:"rate,omitempty"` // ml/h
	Dose        *int    `json:"dose,omitempty"` // ml
	Total       *int    `json:"total,omitempty"`
	Remain      *int    `json:"remain,omitempty"`
	RemainTime  *int    `json:"remain_time,omitempty"` // seconds
	StepCounter *uint32 `json:"step_counter,omitempty"`
	BackSteps   *uint32 `json:"back_steps,omitempty"`
	Calibration *uint32 `json:"calibration,omitempty"` // pump steps per 100 ml

	StabilizerMode  *int     `json:"stabilizer_mode,omitempty"`
	TargetVoltage   *float64 `json:"target_voltage,omitempty"`
	MeasuredVoltage *float64 `json:"measured_voltage,omitempty"`
	InRange         *bool    `json:"in_range,omitempty"`
	MaxVoltage      *bool    `json:"max_voltage,omitempty"`

	HeatSensor *int     `json:"heat_sensor,omitempty"`
	HeatStatus *int     `json:"heat_status,omitempty"`
	HeatValue  *float64 `json:"heat_value,omitempty"` // °C
}

// Ptr returns a pointer to a copy of v.
func Ptr[T any](v T) *T {
	return &v
}

// IsEmpty reports whether no field is set.
func (s Snapshot) IsEmpty() bool {
	return s == Snapshot{}
}

// Merge returns s with every field present in other replacing the one in s.
// Field values are never mutated after creation, so the result may share them.
func (s Snapshot) Merge(other Snapshot) Snapshot {
	out := s
	replace(&out.Temperatures, other.Temperatures)
	replace(&out.Bounds, other.Bounds)
	replace(&out.Reactions, other.Reactions)
	replace(&out.Pressure, other.Pressure)
	replace(&out.AlarmFlags, other.AlarmFlags)
	replace(&out.DriveStatus, other.DriveStatus)
	replace(&out.Rate, other.Rate)
	replace(&out.Dose, other.Dose)
	replace(&out.Total, other.Total)
	replace(&out.Remain, other.Remain)
	replace(&out.RemainTime, other.RemainTime)
	replace(&out.StepCounter, other.StepCounter)
	replace(&out.BackSteps, other.BackSteps)
	replace(&out.Calibration, other.Calibration)
	replace(&out.StabilizerMode, other.StabilizerMode)
	replace(&out.TargetVoltage, other.TargetVoltage)
	replace(&out.MeasuredVoltage, other.MeasuredVoltage)
	replace(&out.InRange, other.InRange)
	replace(&out.MaxVoltage, other.MaxVoltage)
	replace(&out.HeatSensor, other.HeatSensor)
	replace(&out.HeatStatus, other.HeatStatus)
	replace(&out.HeatValue, other.HeatValue)
	return out
}

func replace[T any](dst **T, src *T) {
	if src != nil {
		*dst = src
	}
}

// Sanitize returns a copy of s with every NaN or infinite value replaced by 0.
func (s Snapshot) Sanitize() Snapshot {
	out := s
	out.Temperatures = finiteArray(s.Temperatures)
	out.Bounds = finiteArray(s.Bounds)
	out.Pressure = finite(s.Pressure)
	out.TargetVoltage = finite(s.TargetVoltage)
	out.MeasuredVoltage = finite(s.MeasuredVoltage)
	out.HeatValue = finite(s.HeatValue)
	return out
}

func finite(v *float64) *float64 {
	if v == nil || isFinite(*v) {
		return v
	}
	return Ptr(0.0)
}

func finiteArray(a *[4]float64) *[4]float64 {
	if a == nil {
		return nil
	}
	clean := *a
	changed := false
	for i, v := range clean {
		if !isFinite(v) {
			clean[i] = 0
			changed = true
		}
	}
	if !changed {
		return a
	}
	return &clean
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// SafeDivide returns n/d, or 0 when d is zero or either operand is not finite.
func SafeDivide(n, d float64) float64 {
	if d == 0 || !isFinite(n) || !isFinite(d) {
		return 0
	}
	return n / d
}
