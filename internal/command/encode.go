package command

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
)

// EncodePumpRate renders P{hex4}
func (c *Client) EncodePumpRate(rate float64) (string, error) {
	v, err := c.clamp("rate", math.Round(rate), 0, MaxPumpRate)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("P%s%s", hex4(int(v)), Terminator), nil
}

// EncodeDose renders V{hex4}
func (c *Client) EncodeDose(dose float64) (string, error) {
	v, err := c.clamp("dose", math.Round(dose), 0, MaxDose)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("V%s%s", hex4(int(v)), Terminator), nil
}

// EncodeTargetVoltage renders T{hex4}
func (c *Client) EncodeTargetVoltage(decivolts float64) (string, error) {
	v, err := c.clamp("voltage", math.Round(decivolts), 0, MaxTargetVoltage)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("T%s%s", hex4(int(v)), Terminator), nil
}

// EncodeCalibration renders Z{save}{hex8}. Steps outside [0, 2^32-1] are rejected.
func EncodeCalibration(steps int64, save bool) (string, error) {
	if steps < 0 || steps > MaxCalibration {
		return "", &ValidationError{
			Param:  "calibration",
			Value:  steps,
			Reason: fmt.Sprintf("must be within [0, %d]", uint32(MaxCalibration)),
		}
	}
	flag := 0
	if save {
		flag = 1
	}
	return fmt.Sprintf("Z%d%08X%s", flag, uint32(steps), Terminator), nil
}

// EncodeStabilizerMode renders U{mode}
func EncodeStabilizerMode(mode StabilizerMode) (string, error) {
	switch mode {
	case StabilizerNormal, StabilizerForce, StabilizerStop:
		return fmt.Sprintf("U%d%s", int(mode), Terminator), nil
	}
	return "", &ValidationError{Param: "mode", Value: int(mode), Reason: "must be 0 (normal), 1 (force) or 2 (stop)"}
}

// EncodeHeatControl renders Y1{sensor}{hex4} or Y0
func (c *Client) EncodeHeatControl(enabled bool, sensor int, bound float64) (string, error) {
	if !enabled {
		return "Y0" + Terminator, nil
	}
	if err := checkSensor(sensor); err != nil {
		return "", err
	}
	b, err := c.boundWord(bound)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Y1%d%s%s", sensor, b, Terminator), nil
}

// EncodeSensorBound renders M{sensor}{hex4}{reaction}
func (c *Client) EncodeSensorBound(sensor int, bound float64, reaction int) (string, error) {
	if err := checkSensor(sensor); err != nil {
		return "", err
	}
	if reaction < 0 || reaction > MaxReaction {
		return "", &ValidationError{Param: "reaction", Value: reaction, Reason: fmt.Sprintf("must be within [0, %d]", MaxReaction)}
	}
	b, err := c.boundWord(bound)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("M%d%s%X%s", sensor, b, reaction, Terminator), nil
}

// boundWord clamps a temperature bound and renders round(bound*16) as 16-bit two's complement.
func (c *Client) boundWord(bound float64) (string, error) {
	v, err := c.clamp("bound", bound, MinBound, MaxBound)
	if err != nil {
		return "", err
	}
	return hex4(int(math.Round(v * 16))), nil
}

// clamp pins v to [lo, hi], warning once when it had to move.
// Non-finite input is rejected.
func (c *Client) clamp(param string, v, lo, hi float64) (float64, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &ValidationError{Param: param, Value: v, Reason: "must be a finite number"}
	}
	clamped := math.Min(math.Max(v, lo), hi)
	if clamped != v {
		c.logger.WithFields(logrus.Fields{
			"param":     param,
			"requested": v,
			"sent":      clamped,
		}).Warnf("%s out of range [%g, %g], clamped", param, lo, hi)
	}
	return clamped, nil
}

func checkSensor(sensor int) error {
	if sensor < 0 || sensor > MaxSensor {
		return &ValidationError{Param: "sensor", Value: sensor, Reason: fmt.Sprintf("must be within [0, %d]", MaxSensor)}
	}
	return nil
}

// hex4 renders v as four uppercase hex digits of its 16-bit two's complement.
func hex4(v int) string {
	return fmt.Sprintf("%04X", uint16(int16(v)))
}
