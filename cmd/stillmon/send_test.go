package main

import (
	"context"
	"errors"
	"testing"

	"github.com/srg/stillmon/internal/command"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOperationEncodes(t *testing.T) {
	tests := []struct {
		name     string
		op       string
		args     []string
		save     bool
		expected string
	}{
		{"rate", "rate", []string{"1000"}, false, "P03E8\r"},
		{"rate clamped", "rate", []string{"5000"}, false, "P0BB8\r"},
		{"dose", "dose", []string{"500"}, false, "V01F4\r"},
		{"start", "start", nil, false, "R0\r"},
		{"stop", "stop", nil, false, "P0000\r"},
		{"reset total", "reset-total", nil, false, "Z1\r"},
		{"calibrate", "calibrate", []string{"256"}, true, "Z100000100\r"},
		{"calibrate hex", "calibrate", []string{"0x100"}, false, "Z000000100\r"},
		{"mode", "mode", []string{"force"}, false, "U1\r"},
		{"voltage", "voltage", []string{"2200"}, false, "T0898\r"},
		{"heat on", "heat", []string{"on", "2", "78.5"}, false, "Y1204E8\r"},
		{"heat off", "heat", []string{"off"}, false, "Y0\r"},
		{"bound", "bound", []string{"3", "95.25", "10"}, false, "M305F4A\r"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op, err := parseOperation(tt.op, tt.args, tt.save)
			require.NoError(t, err)

			var sent []string
			client := command.NewClient(command.SenderFunc(func(_ context.Context, cmd string) error {
				sent = append(sent, cmd)
				return nil
			}), discardLogger())

			require.NoError(t, op(context.Background(), client))
			assert.Equal(t, []string{tt.expected}, sent)
		})
	}
}

func TestParseOperationRejects(t *testing.T) {
	tests := []struct {
		name       string
		op         string
		args       []string
		validation bool
	}{
		{"unknown operation", "boil", nil, false},
		{"missing argument", "rate", nil, false},
		{"extra argument", "start", []string{"now"}, false},
		{"not a number", "dose", []string{"lots"}, true},
		{"calibration overflow", "calibrate", []string{"4294967296"}, true},
		{"negative calibration", "calibrate", []string{"-1"}, true},
		{"bad mode", "mode", []string{"turbo"}, true},
		{"heat sensor out of range", "heat", []string{"on", "4", "50"}, true},
		{"heat malformed", "heat", []string{"maybe"}, false},
		{"reaction out of range", "bound", []string{"1", "50", "16"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op, err := parseOperation(tt.op, tt.args, false)
			require.Error(t, err)
			assert.Nil(t, op)

			var verr *command.ValidationError
			assert.Equal(t, tt.validation, errors.As(err, &verr), "validation error type mismatch: %v", err)
		})
	}
}
