// Package command encodes operator commands for the distillation controller.
//
// Every command is ASCII: a one-letter opcode, fixed-width uppercase hex arguments and
// a trailing carriage return. Values outside their range are either clamped with a
// warning or rejected with a ValidationError before anything is sent.
package command

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/sirupsen/logrus"
)

// Terminator ends every command on the wire
const Terminator = "\r"

// Parameter ranges
const (
	MaxPumpRate      = 3000
	MaxDose          = 5000
	MaxTargetVoltage = 2500 // 0.1 V units
	MinBound         = -55.0
	MaxBound         = 127.0
	MaxSensor        = 3
	MaxReaction      = 15
	MaxCalibration   = math.MaxUint32
)

// StabilizerMode is the operating mode of the voltage stabilizer
type StabilizerMode int

const (
	StabilizerNormal StabilizerMode = 0
	StabilizerForce  StabilizerMode = 1
	StabilizerStop   StabilizerMode = 2
)

func (m StabilizerMode) String() string {
	switch m {
	case StabilizerNormal:
		return "normal"
	case StabilizerForce:
		return "force"
	case StabilizerStop:
		return "stop"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseStabilizerMode accepts a mode name or its number.
func ParseStabilizerMode(s string) (StabilizerMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "normal", "0":
		return StabilizerNormal, nil
	case "force", "1":
		return StabilizerForce, nil
	case "stop", "2":
		return StabilizerStop, nil
	}
	return 0, &ValidationError{Param: "mode", Value: s, Reason: "must be normal, force or stop"}
}

// ValidationError reports a parameter that cannot be encoded
type ValidationError struct {
	Param  string
	Value  any
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %v: %s", e.Param, e.Value, e.Reason)
}

// Sender delivers an encoded command to the device
type Sender interface {
	Send(ctx context.Context, cmd string) error
}

// SenderFunc adapts a function to Sender
type SenderFunc func(ctx context.Context, cmd string) error

func (f SenderFunc) Send(ctx context.Context, cmd string) error {
	return f(ctx, cmd)
}

// Client is the command facade: one method per operator-settable parameter.
type Client struct {
	sender Sender
	logger *logrus.Logger
}

// NewClient creates a Client that sends through sender
func NewClient(sender Sender, logger *logrus.Logger) *Client {
	if logger == nil {
		logger = logrus.New()
	}
	return &Client{sender: sender, logger: logger}
}

// SetPumpRate sets the pump rate in ml/h, clamped to [0, 3000].
func (c *Client) SetPumpRate(ctx context.Context, rate float64) error {
	cmd, err := c.EncodePumpRate(rate)
	if err != nil {
		return err
	}
	return c.send(ctx, cmd)
}

// StopPump is SetPumpRate(0)
func (c *Client) StopPump(ctx context.Context) error {
	return c.SetPumpRate(ctx, 0)
}

// StartPump starts the pump at the configured rate
func (c *Client) StartPump(ctx context.Context) error {
	return c.send(ctx, "R0"+Terminator)
}

// SetDose sets the dose in ml, clamped to [0, 5000].
func (c *Client) SetDose(ctx context.Context, dose float64) error {
	cmd, err := c.EncodeDose(dose)
	if err != nil {
		return err
	}
	return c.send(ctx, cmd)
}

// ResetTotalCounter zeroes the dispensed total
func (c *Client) ResetTotalCounter(ctx context.Context) error {
	return c.send(ctx, "Z1"+Terminator)
}

// RequestCalibration asks the controller to report its calibration constant
func (c *Client) RequestCalibration(ctx context.Context) error {
	return c.send(ctx, "Z0"+Terminator)
}

// CalibratePump sets the pump calibration in steps per 100 ml; save persists it on the device.
func (c *Client) CalibratePump(ctx context.Context, steps int64, save bool) error {
	cmd, err := EncodeCalibration(steps, save)
	if err != nil {
		return err
	}
	return c.send(ctx, cmd)
}

// SetStabilizerMode switches the voltage stabilizer mode
func (c *Client) SetStabilizerMode(ctx context.Context, mode StabilizerMode) error {
	cmd, err := EncodeStabilizerMode(mode)
	if err != nil {
		return err
	}
	return c.send(ctx, cmd)
}

// SetTargetVoltage sets the stabilizer target in 0.1 V units, clamped to [0, 2500].
func (c *Client) SetTargetVoltage(ctx context.Context, decivolts float64) error {
	cmd, err := c.EncodeTargetVoltage(decivolts)
	if err != nil {
		return err
	}
	return c.send(ctx, cmd)
}

// SetHeatControl ties forced heating to sensor crossing bound; disabled clears it.
func (c *Client) SetHeatControl(ctx context.Context, enabled bool, sensor int, bound float64) error {
	cmd, err := c.EncodeHeatControl(enabled, sensor, bound)
	if err != nil {
		return err
	}
	return c.send(ctx, cmd)
}

// SetSensorBound sets the alarm bound of a sensor and its reaction bitmask
func (c *Client) SetSensorBound(ctx context.Context, sensor int, bound float64, reaction int) error {
	cmd, err := c.EncodeSensorBound(sensor, bound, reaction)
	if err != nil {
		return err
	}
	return c.send(ctx, cmd)
}

func (c *Client) send(ctx context.Context, cmd string) error {
	if c.sender == nil {
		return fmt.Errorf("command %q: no sender", strings.TrimSuffix(cmd, Terminator))
	}
	c.logger.WithField("command", strings.TrimSuffix(cmd, Terminator)).Debug("Sending command")
	return c.sender.Send(ctx, cmd)
}
