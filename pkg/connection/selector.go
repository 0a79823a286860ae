package connection

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/srg/stillmon/scanner"
)

// Selector picks the device to connect to
type Selector interface {
	Select(ctx context.Context) (address string, err error)
}

// FixedAddress always selects the same device
type FixedAddress string

func (a FixedAddress) Select(context.Context) (string, error) {
	if a == "" {
		return "", ErrNoDeviceSelected
	}
	return string(a), nil
}

// ScanSelector picks the first connectable device advertising a known serial service
type ScanSelector struct {
	Scanner *scanner.Scanner
	Options *scanner.ScanOptions
	Logger  *logrus.Logger
}

func (s *ScanSelector) Select(ctx context.Context) (string, error) {
	sc := s.Scanner
	if sc == nil {
		sc = scanner.NewScanner(nil, s.Logger)
	}
	info, err := sc.FindSerialDevice(ctx, s.Options)
	if err != nil {
		return "", err
	}
	if s.Logger != nil {
		s.Logger.WithFields(logrus.Fields{
			"address": info.Address,
			"name":    info.DisplayName(),
			"rssi":    info.RSSI,
		}).Info("Serial device selected")
	}
	return info.Address, nil
}
