package telemetry

import (
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Fields returns the present fields of s keyed by their wire-independent names, in a
// stable display order. The result marshals to JSON with keys in that order.
func (s Snapshot) Fields() *orderedmap.OrderedMap[string, any] {
	om := orderedmap.New[string, any]()

	set(om, "temperatures", s.Temperatures)
	set(om, "bounds", s.Bounds)
	set(om, "pressure", s.Pressure)
	set(om, "reactions", s.Reactions)
	set(om, "alarm_flags", s.AlarmFlags)
	set(om, "drive_status", s.DriveStatus)
	set(om, "rate", s.Rate)
	set(om, "dose", s.Dose)
	set(om, "total", s.Total)
	set(om, "remain", s.Remain)
	set(om, "remain_time", s.RemainTime)
	set(om, "step_counter", s.StepCounter)
	set(om, "back_steps", s.BackSteps)
	set(om, "calibration", s.Calibration)
	set(om, "stabilizer_mode", s.StabilizerMode)
	set(om, "target_voltage", s.TargetVoltage)
	set(om, "measured_voltage", s.MeasuredVoltage)
	set(om, "in_range", s.InRange)
	set(om, "max_voltage", s.MaxVoltage)
	set(om, "heat_sensor", s.HeatSensor)
	set(om, "heat_status", s.HeatStatus)
	set(om, "heat_value", s.HeatValue)

	return om
}

func set[T any](om *orderedmap.OrderedMap[string, any], key string, v *T) {
	if v != nil {
		om.Set(key, *v)
	}
}
