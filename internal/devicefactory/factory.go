// Package devicefactory creates BLE handles for the host backend.
package devicefactory

import (
	"github.com/sirupsen/logrus"
	"github.com/srg/stillmon/internal/device"
	goble "github.com/srg/stillmon/internal/device/go-ble"
)

// DeviceFactory creates a device handle for address.
// This is a variable so that it can be overridden in tests.
var DeviceFactory = func(address string, logger *logrus.Logger) device.Device {
	return goble.NewBLEDeviceWithAddress(address, logger)
}

// NewDevice creates a device handle through DeviceFactory
func NewDevice(address string, logger *logrus.Logger) device.Device {
	return DeviceFactory(address, logger)
}
