package device_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/srg/stillmon/internal/device"
	"github.com/stretchr/testify/assert"
)

func TestNotFoundErrorMessage(t *testing.T) {
	tests := []struct {
		name     string
		err      *device.NotFoundError
		expected string
	}{
		{"no uuid", &device.NotFoundError{Resource: "service"}, "service not found"},
		{"single uuid", &device.NotFoundError{Resource: "service", UUIDs: []string{"ffe0"}}, `service "ffe0" not found`},
		{"nested uuid", &device.NotFoundError{Resource: "characteristic", UUIDs: []string{"ffe0", "ffe1"}}, `characteristic "ffe1" not found in service "ffe0"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestConnectionErrorMatchesByState(t *testing.T) {
	wrapped := fmt.Errorf("write failed: %w", &device.ConnectionError{State: device.NotConnected, Msg: "link dropped"})

	assert.True(t, errors.Is(wrapped, device.ErrNotConnected), "wrapped error MUST match the sentinel by state")
	assert.False(t, errors.Is(wrapped, device.ErrAlreadyConnected), "different state MUST NOT match")
	assert.True(t, device.IsConnectionState(wrapped, device.NotConnected))
	assert.Equal(t, "not_connected: link dropped", errors.Unwrap(wrapped).Error())
}

func TestValidateUUID(t *testing.T) {
	got, err := device.ValidateUUID("FFE0", "6e400001-b5a3-f393-e0a9-e50e24dcca9e")
	assert.NoError(t, err)
	assert.Equal(t, []string{"ffe0", "6e400001b5a3f393e0a9e50e24dcca9e"}, got)

	_, err = device.ValidateUUID("")
	assert.Error(t, err, "empty UUID MUST be rejected")

	_, err = device.ValidateUUID("zzzz")
	assert.Error(t, err, "non-hex UUID MUST be rejected")

	_, err = device.ValidateUUID()
	assert.Error(t, err, "missing UUID MUST be rejected")
}
