package testutils

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
)

type TestHelper struct {
	T      *testing.T
	Logger *logrus.Logger
}

// NewTestHelper creates a test helper with a debug logger.
func NewTestHelper(t *testing.T) *TestHelper {
	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel) // enable debug logs to track execution flow
	return &TestHelper{
		T:      t,
		Logger: logger,
	}
}

func CreateMockAdvertisement(name, address string, rssi int) *AdvertisementBuilder {
	return NewAdvertisementBuilder().WithName(name).WithAddress(address).WithRSSI(rssi)
}

func CreateMockAdvertisementFromJSON(jsonStrFmt string, args ...interface{}) *AdvertisementBuilder {
	return NewAdvertisementBuilder().FromJSON(jsonStrFmt, args...)
}

func CreateMockPeripheralDevice() *PeripheralDeviceBuilder {
	return NewPeripheralDeviceBuilder()
}

func CreateMockPeripheralDeviceFromJSON(jsonStrFmt string, args ...interface{}) *PeripheralDeviceBuilder {
	return NewPeripheralDeviceBuilder().FromJSON(jsonStrFmt, args...)
}

// CreateSerialPeripheral returns an HM-10 style peripheral: one service, one shared TX/RX characteristic.
func CreateSerialPeripheral() *PeripheralDeviceBuilder {
	return NewPeripheralDeviceBuilder().
		WithName("Still-BT").
		WithService("ffe0").
		WithCharacteristic("ffe1", "read,write-without-response,notify")
}

// LoadFixture reads a file relative to the project root (the directory holding go.mod).
func LoadFixture(relPath string) (string, error) {
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get working directory: %w", err)
	}

	projectRoot := wd
	for {
		if _, err := os.Stat(filepath.Join(projectRoot, "go.mod")); err == nil {
			break
		}
		parent := filepath.Dir(projectRoot)
		if parent == projectRoot {
			return "", fmt.Errorf("could not find project root (go.mod not found)")
		}
		projectRoot = parent
	}

	fullPath := filepath.Join(projectRoot, relPath)
	data, err := os.ReadFile(fullPath)
	if err != nil {
		return "", fmt.Errorf("failed to read file %s: %w", fullPath, err)
	}

	return string(data), nil
}
