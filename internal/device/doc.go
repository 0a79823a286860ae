// Package device defines the BLE transport abstraction the monitor is built on:
// devices, GATT links, services, characteristics and their properties, plus the
// typed errors shared by every transport implementation.
//
// The go-ble backed implementation lives in internal/device/go-ble. Tests use the
// in-memory peripheral from internal/testutils.
package device
