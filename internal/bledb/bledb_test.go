package bledb

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestNormalizeUUID verifies that NormalizeUUID correctly handles various UUID formats
func TestNormalizeUUID(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "16-bit short form",
			input:    "ffe0",
			expected: "ffe0",
		},
		{
			name:     "16-bit with 0x prefix",
			input:    "0xFFE0",
			expected: "ffe0",
		},
		{
			name:     "Full Bluetooth SIG UUID with dashes",
			input:    "0000ffe0-0000-1000-8000-00805f9b34fb",
			expected: "ffe0",
		},
		{
			name:     "Full Bluetooth SIG UUID without dashes",
			input:    "0000FFE000001000800000805F9B34FB",
			expected: "ffe0",
		},
		{
			name:     "Custom 128-bit UUID (not SIG base)",
			input:    "6E400001-B5A3-F393-E0A9-E50E24DCCA9E",
			expected: "6e400001b5a3f393e0a9e50e24dcca9e",
		},
		{
			name:     "UUID with braces",
			input:    "{0000ffe1-0000-1000-8000-00805f9b34fb}",
			expected: "ffe1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeUUID(tt.input))
		})
	}
}

func TestLookup(t *testing.T) {
	assert.Equal(t, "Nordic UART", LookupService("6e400001b5a3f393e0a9e50e24dcca9e"))
	assert.Equal(t, "HM-10 Serial", LookupService("FFE0"))
	assert.Equal(t, "", LookupService("180d"), "unknown service MUST have no name")

	assert.Equal(t, "HM-10 Data", LookupCharacteristic("0000ffe1-0000-1000-8000-00805f9b34fb"))
	assert.Equal(t, "Microchip UART RX", LookupCharacteristic("49535343-8841-43f4-a8d4-ecbe34729bb3"))

	assert.True(t, IsSerialService("49535343-FE7D-4AE5-8FA9-9FAFD205E455"))
	assert.False(t, IsSerialService("180f"))
}

func TestUUIDsPreservePriorityOrder(t *testing.T) {
	assert.Equal(t,
		[]string{"ffe0", "6e400001b5a3f393e0a9e50e24dcca9e", "49535343fe7d4ae58fa99fafd205e455"},
		UUIDs(SerialServices),
		"service priority MUST follow table order")
}
