package testutils

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/srg/stillmon/internal/device"
)

// CharacteristicConfig represents a BLE characteristic configuration for faking
type CharacteristicConfig struct {
	UUID       string `json:"uuid"`
	Properties string `json:"properties,omitempty"` // e.g., "write,notify"
}

// ServiceConfig represents a BLE service configuration for faking
type ServiceConfig struct {
	UUID            string                 `json:"uuid"`
	Characteristics []CharacteristicConfig `json:"characteristics,omitempty"`
}

// DeviceProfileConfig represents the complete device profile for faking
type DeviceProfileConfig struct {
	Address  string          `json:"address,omitempty"`
	Name     string          `json:"name,omitempty"`
	Services []ServiceConfig `json:"services"`
}

// PeripheralDeviceBuilder builds a FakeDevice with full service/characteristic support
type PeripheralDeviceBuilder struct {
	profile DeviceProfileConfig
}

// NewPeripheralDeviceBuilder creates a new peripheral device builder
func NewPeripheralDeviceBuilder() *PeripheralDeviceBuilder {
	return &PeripheralDeviceBuilder{
		profile: DeviceProfileConfig{
			Address:  "00:11:22:33:44:55",
			Services: []ServiceConfig{},
		},
	}
}

// WithAddress sets the peripheral address
func (b *PeripheralDeviceBuilder) WithAddress(addr string) *PeripheralDeviceBuilder {
	b.profile.Address = addr
	return b
}

// WithName sets the advertised name
func (b *PeripheralDeviceBuilder) WithName(name string) *PeripheralDeviceBuilder {
	b.profile.Name = name
	return b
}

// WithService adds a service to the device profile
func (b *PeripheralDeviceBuilder) WithService(uuid string) *PeripheralDeviceBuilder {
	b.profile.Services = append(b.profile.Services, ServiceConfig{
		UUID:            uuid,
		Characteristics: []CharacteristicConfig{},
	})
	return b
}

// WithCharacteristic adds a characteristic to the last added service
func (b *PeripheralDeviceBuilder) WithCharacteristic(uuid, properties string) *PeripheralDeviceBuilder {
	if len(b.profile.Services) == 0 {
		panic("WithCharacteristic: no service added yet, call WithService first")
	}

	lastServiceIdx := len(b.profile.Services) - 1
	b.profile.Services[lastServiceIdx].Characteristics = append(
		b.profile.Services[lastServiceIdx].Characteristics,
		CharacteristicConfig{UUID: uuid, Properties: properties})
	return b
}

// FromJSON fills the device profile from JSON
func (b *PeripheralDeviceBuilder) FromJSON(jsonStrFmt string, args ...interface{}) *PeripheralDeviceBuilder {
	jsonStr := fmt.Sprintf(jsonStrFmt, args...)

	var config DeviceProfileConfig
	if err := json.Unmarshal([]byte(jsonStr), &config); err != nil {
		panic(fmt.Sprintf("PeripheralDeviceBuilder.FromJSON: failed to unmarshal: %v", err))
	}
	if config.Address == "" {
		config.Address = b.profile.Address
	}

	b.profile = config
	return b
}

// parseCharacteristicProperties converts a comma-separated property list.
// An empty list means "write,notify".
func parseCharacteristicProperties(props string) fakeProperties {
	if strings.TrimSpace(props) == "" {
		props = "write,notify"
	}

	values := map[string]int{
		"read":                   0x02,
		"write-without-response": 0x04,
		"write":                  0x08,
		"notify":                 0x10,
		"indicate":               0x20,
	}

	out := fakeProperties{}
	for _, p := range strings.Split(props, ",") {
		name := strings.ToLower(strings.TrimSpace(p))
		if name == "writenr" || name == "write_without_response" {
			name = "write-without-response"
		}
		v, ok := values[name]
		if !ok {
			panic(fmt.Sprintf("unknown characteristic property %q", p))
		}
		out[name] = fakeProperty{value: v, name: name}
	}
	return out
}

// Build creates the FakeDevice with the configured profile
func (b *PeripheralDeviceBuilder) Build() *FakeDevice {
	d := &FakeDevice{
		address: b.profile.Address,
		name:    b.profile.Name,
	}
	for _, svcConfig := range b.profile.Services {
		svc := &FakeService{uuid: device.NormalizeUUID(svcConfig.UUID)}
		for _, charConfig := range svcConfig.Characteristics {
			svc.chars = append(svc.chars, &FakeCharacteristic{
				device: d,
				uuid:   device.NormalizeUUID(charConfig.UUID),
				props:  parseCharacteristicProperties(charConfig.Properties),
			})
		}
		d.services = append(d.services, svc)
	}
	return d
}

// GetServices returns the configured services
func (b *PeripheralDeviceBuilder) GetServices() []ServiceConfig {
	return b.profile.Services
}
