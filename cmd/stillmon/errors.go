package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/srg/stillmon/internal/command"
	"github.com/srg/stillmon/internal/device"
	"github.com/srg/stillmon/internal/discovery"
	"github.com/srg/stillmon/scanner"
)

// ErrConnectionLost indicates the link dropped while a command was running
var ErrConnectionLost = errors.New("connection lost")

// FormatUserError turns internal errors into short operator-facing messages
func FormatUserError(err error) string {
	var verr *command.ValidationError
	var nf *device.NotFoundError

	switch {
	case err == nil:
		return ""
	case errors.As(err, &verr):
		return fmt.Sprintf("invalid %s: %v (%s)", verr.Param, verr.Value, verr.Reason)
	case errors.Is(err, device.ErrBluetoothOff):
		return "Bluetooth is turned off. Enable it and try again"
	case errors.Is(err, scanner.ErrNoSerialDevice):
		return "no controller found nearby. Check it is powered and advertising, or pass its address"
	case errors.Is(err, discovery.ErrNoSerialLink):
		return "the device has no serial characteristics. Is it a distillation controller?"
	case errors.Is(err, ErrConnectionLost):
		return "connection to the controller was lost"
	case errors.Is(err, device.ErrNotConnected):
		return "not connected to the controller"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, device.ErrTimeout):
		return fmt.Sprintf("timed out: %v", err)
	case errors.As(err, &nf):
		return nf.Error()
	default:
		return err.Error()
	}
}
