package goble

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"
	"github.com/srg/stillmon/internal/device"
)

// DeviceFactory creates the host ble.Device (can be overridden in tests)
//
//nolint:revive // DeviceFactory name is intentional for test mocking as goble.DeviceFactory
var DeviceFactory = newHostDevice

var (
	hostMu     sync.Mutex
	hostDevice ble.Device
)

// HostDevice returns the process-wide BLE host device, creating it on first use and
// installing it as the go-ble default device.
func HostDevice() (ble.Device, error) {
	hostMu.Lock()
	defer hostMu.Unlock()

	if hostDevice != nil {
		return hostDevice, nil
	}
	dev, err := DeviceFactory()
	if err != nil {
		return nil, fmt.Errorf("failed to create BLE device: %w", NormalizeError(err))
	}
	ble.SetDefaultDevice(dev)
	hostDevice = dev
	return dev, nil
}

// BLEDevice implements the device.Device interface on top of go-ble
type BLEDevice struct {
	address string
	name    string
	logger  *logrus.Logger

	mu         sync.Mutex
	connection *BLEConnection
}

// NewBLEDeviceWithAddress creates a device handle for a known address
func NewBLEDeviceWithAddress(address string, logger *logrus.Logger) *BLEDevice {
	if logger == nil {
		logger = logrus.New()
	}
	return &BLEDevice{
		address: strings.TrimSpace(address),
		logger:  logger,
	}
}

// NewBLEDeviceFromAdvertisement creates a device handle from a scan result
func NewBLEDeviceFromAdvertisement(adv device.Advertisement, logger *logrus.Logger) *BLEDevice {
	d := NewBLEDeviceWithAddress(adv.Addr(), logger)
	d.name = adv.LocalName()
	return d
}

func (d *BLEDevice) Address() string {
	return d.address
}

func (d *BLEDevice) Name() string {
	return d.name
}

// Connect dials the device and discovers its GATT profile
func (d *BLEDevice) Connect(ctx context.Context, opts *device.ConnectOptions) error {
	if opts == nil {
		opts = &device.ConnectOptions{}
	}
	address := opts.Address
	if address == "" {
		address = d.address
	}

	d.mu.Lock()
	if d.connection == nil {
		d.connection = NewBLEConnection(d.logger)
	}
	conn := d.connection
	d.mu.Unlock()

	return conn.Connect(ctx, address, opts)
}

func (d *BLEDevice) Disconnect() error {
	d.mu.Lock()
	conn := d.connection
	d.mu.Unlock()

	if conn == nil {
		return nil
	}
	return conn.Disconnect()
}

func (d *BLEDevice) IsConnected() bool {
	d.mu.Lock()
	conn := d.connection
	d.mu.Unlock()

	return conn != nil && conn.IsConnected()
}

// GetConnection returns the live connection, or nil when not connected
func (d *BLEDevice) GetConnection() device.Connection {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.connection == nil || !d.connection.IsConnected() {
		return nil
	}
	return d.connection
}
