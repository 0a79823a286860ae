// Package datalog records emitted snapshots to a file without ever blocking the
// telemetry pipeline.
package datalog

import (
	"time"

	"github.com/srg/stillmon/internal/telemetry"
)

// Record is one emitted snapshot
type Record struct {
	Time     time.Time          `json:"time"`
	Session  string             `json:"session"`
	Snapshot telemetry.Snapshot `json:"snapshot"`
}

// ChartPoint is the temperature chart row of a record: the four sensors and
// the pressure channel, nil where the value is invalid or not yet reported.
type ChartPoint struct {
	Time        time.Time
	Temperature [4]*float64
	Pressure    *float64
}

// Point extracts the chart row
func (r Record) Point() ChartPoint {
	p := ChartPoint{Time: r.Time}
	if t := r.Snapshot.Temperatures; t != nil {
		for i, v := range t {
			if telemetry.IsValidTemperature(v) {
				p.Temperature[i] = telemetry.Ptr(v)
			}
		}
	}
	if v := r.Snapshot.Pressure; v != nil && telemetry.IsValidPressure(*v) {
		p.Pressure = telemetry.Ptr(*v)
	}
	return p
}
