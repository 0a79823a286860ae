//go:build !darwin && !linux

package goble

import (
	"fmt"
	"runtime"

	"github.com/go-ble/ble"
	"github.com/srg/stillmon/internal/device"
)

func newHostDevice() (ble.Device, error) {
	return nil, fmt.Errorf("%w: no BLE host stack for %s", device.ErrUnsupported, runtime.GOOS)
}
