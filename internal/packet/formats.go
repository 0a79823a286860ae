package packet

import (
	"math"

	"github.com/srg/stillmon/internal/telemetry"
)

const (
	pressureDivisorW = 133.33333
	pressureDivisorT = 133.333333
)

// W payload offsets (hex characters)
const (
	wTemps       = 0
	wBounds      = 16
	wPressure    = 32
	wReactions   = 40
	wAlarmFlags  = 48
	wDriveStatus = 50
	wStepCounter = 52
	wBackSteps   = 60
	wCalibration = 68
	wRate        = 76
	wDose        = 80
	wStabilizer  = 86 // 84 is reserved
	wTargetV     = 88
	wHeatSensor  = 104 // 92..104 reserved
	wHeatStatus  = 106
	wHeatValue   = 108
)

func decodeW(p string) telemetry.Snapshot {
	var temps, bounds [4]float64
	var reactions [4]int
	for i := 0; i < 4; i++ {
		temps[i] = float64(swappedInt16(p, wTemps+4*i)) / 16
		bounds[i] = float64(swappedInt16(p, wBounds+4*i)) / 16
		reactions[i] = int(hexField(p, wReactions+2*i, 2))
	}

	steps := uint32(hexField(p, wStepCounter, 8))
	back := uint32(hexField(p, wBackSteps, 8))
	calibration := uint32(hexField(p, wCalibration, 8))
	rate := swappedInt16(p, wRate)

	s := telemetry.Snapshot{
		Temperatures:   &temps,
		Bounds:         &bounds,
		Reactions:      &reactions,
		Pressure:       telemetry.Ptr(telemetry.SafeDivide(float64(hexField(p, wPressure, 8)), pressureDivisorW)),
		AlarmFlags:     telemetry.Ptr(int(hexField(p, wAlarmFlags, 2))),
		DriveStatus:    telemetry.Ptr(int(hexField(p, wDriveStatus, 2))),
		StepCounter:    telemetry.Ptr(steps),
		BackSteps:      telemetry.Ptr(back),
		Calibration:    telemetry.Ptr(calibration),
		Rate:           telemetry.Ptr(rate),
		Dose:           telemetry.Ptr(swappedInt16(p, wDose)),
		StabilizerMode: telemetry.Ptr(int(hexField(p, wStabilizer, 2)) & 0x03),
		TargetVoltage:  telemetry.Ptr(float64(swappedUint16(p, wTargetV))),
		HeatSensor:     telemetry.Ptr(int(hexField(p, wHeatSensor, 2))),
		HeatStatus:     telemetry.Ptr(int(hexField(p, wHeatStatus, 2))),
		HeatValue:      telemetry.Ptr(float64(swappedInt16(p, wHeatValue)) / 16),
	}

	if calibration > 0 {
		cal := float64(calibration)
		s.Total = telemetry.Ptr(roundInt(telemetry.SafeDivide(100*float64(steps), cal)))
		s.Remain = telemetry.Ptr(roundInt(telemetry.SafeDivide(100*float64(back), cal)))
		s.RemainTime = telemetry.Ptr(roundInt(telemetry.SafeDivide(360000*float64(back), float64(rate)*cal)))
	}
	return s
}

func decodeT(p string) telemetry.Snapshot {
	var temps, bounds [4]float64
	var reactions [4]int
	for i := 0; i < 4; i++ {
		temps[i] = float64(int16Field(p, 4*i)) * 0.0625
		bounds[i] = float64(int16Field(p, 16+4*i)) * 0.0625
		reactions[i] = int(hexField(p, 56+i, 1))
	}

	return telemetry.Snapshot{
		Temperatures:    &temps,
		Bounds:          &bounds,
		Reactions:       &reactions,
		Pressure:        telemetry.Ptr(telemetry.SafeDivide(float64(hexField(p, 32, 6)), pressureDivisorT)),
		Rate:            telemetry.Ptr(int(hexField(p, 38, 4))),
		Total:           telemetry.Ptr(int(hexField(p, 42, 5))),
		Dose:            telemetry.Ptr(int(hexField(p, 47, 4))),
		Remain:          telemetry.Ptr(int(hexField(p, 51, 4))),
		DriveStatus:     telemetry.Ptr(int(hexField(p, 55, 1))),
		AlarmFlags:      telemetry.Ptr(int(hexField(p, 60, 1))),
		TargetVoltage:   telemetry.Ptr(float64(hexField(p, 61, 4)) / 10),
		MeasuredVoltage: telemetry.Ptr(float64(hexField(p, 65, 4)) / 10),
		StabilizerMode:  telemetry.Ptr(int(hexField(p, 69, 1))),
		HeatStatus:      telemetry.Ptr(int(hexField(p, 70, 1))),
		HeatSensor:      telemetry.Ptr(int(hexField(p, 71, 1))),
		HeatValue:       telemetry.Ptr(float64(int16Field(p, 72)) / 16),
	}
}

func decodeU(p string) telemetry.Snapshot {
	return telemetry.Snapshot{
		TargetVoltage:   telemetry.Ptr(float64(hexField(p, 0, 4)) / 10),
		MeasuredVoltage: telemetry.Ptr(float64(hexField(p, 4, 4)) / 10),
		StabilizerMode:  telemetry.Ptr(int(hexField(p, 8, 1))),
		InRange:         telemetry.Ptr(hexField(p, 9, 1) != 0),
		MaxVoltage:      telemetry.Ptr(hexField(p, 10, 1) != 0),
	}
}

func decodeV(p string) telemetry.Snapshot {
	return telemetry.Snapshot{
		Dose:   telemetry.Ptr(int(hexField(p, 0, 4))),
		Remain: telemetry.Ptr(int(hexField(p, 4, 4))),
	}
}

func decodeZ(p string) telemetry.Snapshot {
	return telemetry.Snapshot{
		Calibration: telemetry.Ptr(uint32(hexField(p, 0, 8))),
	}
}

func roundInt(v float64) int {
	return int(math.Round(v))
}
