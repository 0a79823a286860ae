package scanner

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/cornelk/hashmap"
	"github.com/sirupsen/logrus"
	"github.com/srg/stillmon/internal/bledb"
	"github.com/srg/stillmon/internal/device"
	goble "github.com/srg/stillmon/internal/device/go-ble"
	"github.com/srg/stillmon/internal/ringchan"
)

// ErrNoSerialDevice is returned when a search ends without a serial-capable device
var ErrNoSerialDevice = errors.New("no device advertising a serial service found")

// ScanningDeviceFactory creates the scan backend (can be overridden in tests)
var ScanningDeviceFactory = goble.NewScanner

// ProgressCallback is called when the scan phase changes
type ProgressCallback func(phase string)

// DeviceEventType marks if the device was newly discovered or updated
type DeviceEventType int

const (
	EventNew DeviceEventType = iota
	EventUpdated
)

type DeviceEvent struct {
	Type       DeviceEventType
	DeviceInfo DeviceInfo
}

// DeviceInfo is what a scan learned about one peripheral
type DeviceInfo struct {
	Address     string
	Name        string
	RSSI        int
	Services    []string
	Connectable bool
	// Serial is set when a known serial-bridge service is advertised
	Serial   bool
	LastSeen time.Time
}

// DisplayName returns the advertised name or a placeholder
func (d DeviceInfo) DisplayName() string {
	if d.Name == "" {
		return "(unknown)"
	}
	return d.Name
}

// Scanner handles BLE device discovery
type Scanner struct {
	devices *hashmap.Map[string, *DeviceInfo]
	events  *ringchan.RingChannel[DeviceEvent]
	logger  *logrus.Logger
	backend device.ScanningDevice
	now     func() time.Time
}

// ScanOptions configures scanning behavior
type ScanOptions struct {
	Duration        time.Duration
	DuplicateFilter bool
	ServiceUUIDs    []string
	AllowList       []string
	BlockList       []string
	// SerialOnly drops devices that advertise no known serial service
	SerialOnly bool
}

// DefaultScanOptions returns default scanning options
func DefaultScanOptions() *ScanOptions {
	return &ScanOptions{
		Duration:        10 * time.Second,
		DuplicateFilter: true,
	}
}

// NewScanner creates a scanner over backend; nil selects the host BLE adapter on first scan.
func NewScanner(backend device.ScanningDevice, logger *logrus.Logger) *Scanner {
	if logger == nil {
		logger = logrus.New()
	}
	return &Scanner{
		devices: hashmap.New[string, *DeviceInfo](),
		events:  ringchan.New[DeviceEvent](100),
		logger:  logger,
		backend: backend,
		now:     time.Now,
	}
}

func (s *Scanner) ensureBackend() error {
	if s.backend != nil {
		return nil
	}
	b, err := ScanningDeviceFactory()
	if err != nil {
		return fmt.Errorf("failed to create BLE scanner: %w", err)
	}
	s.backend = b
	return nil
}

// Scan performs BLE discovery for opts.Duration and returns the devices seen, strongest signal first.
func (s *Scanner) Scan(ctx context.Context, opts *ScanOptions, progressCallback ProgressCallback) ([]DeviceInfo, error) {
	if opts == nil {
		opts = DefaultScanOptions()
	}
	if progressCallback == nil {
		progressCallback = func(string) {}
	}
	if err := s.ensureBackend(); err != nil {
		return nil, err
	}

	s.devices = hashmap.New[string, *DeviceInfo]()
	s.logger.WithField("duration", opts.Duration).Info("Starting BLE scan...")
	progressCallback("Scanning")

	scanCtx := ctx
	if opts.Duration > 0 {
		var cancel context.CancelFunc
		scanCtx, cancel = context.WithTimeout(ctx, opts.Duration)
		defer cancel()
	}

	err := s.backend.Scan(scanCtx, !opts.DuplicateFilter, func(adv device.Advertisement) {
		s.handleAdvertisement(adv, opts)
	})
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("scan failed: %w", err)
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	s.logger.WithField("device_count", s.devices.Len()).Info("BLE scan completed")
	progressCallback("Processing results")

	return s.Devices(), nil
}

// FindSerialDevice scans until the first connectable device advertising a known
// serial service shows up, or until opts.Duration elapses.
func (s *Scanner) FindSerialDevice(ctx context.Context, opts *ScanOptions) (DeviceInfo, error) {
	if opts == nil {
		opts = DefaultScanOptions()
	}
	if err := s.ensureBackend(); err != nil {
		return DeviceInfo{}, err
	}

	scanCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if opts.Duration > 0 {
		scanCtx, cancel = context.WithTimeout(scanCtx, opts.Duration)
		defer cancel()
	}

	search := *opts
	search.SerialOnly = true

	found := make(chan DeviceInfo, 1)
	err := s.backend.Scan(scanCtx, false, func(adv device.Advertisement) {
		info, ok := s.handleAdvertisement(adv, &search)
		if ok && info.Connectable {
			select {
			case found <- info:
				cancel()
			default:
			}
		}
	})

	select {
	case info := <-found:
		return info, nil
	default:
	}
	if ctx.Err() != nil {
		return DeviceInfo{}, ctx.Err()
	}
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return DeviceInfo{}, fmt.Errorf("scan failed: %w", err)
	}
	return DeviceInfo{}, ErrNoSerialDevice
}

// handleAdvertisement updates existing or adds a new device
func (s *Scanner) handleAdvertisement(adv device.Advertisement, opts *ScanOptions) (DeviceInfo, bool) {
	addr := adv.Addr()
	services := adv.Services()
	serial := false
	for _, u := range services {
		if bledb.IsSerialService(u) {
			serial = true
			break
		}
	}

	info := &DeviceInfo{
		Address:     addr,
		Name:        adv.LocalName(),
		RSSI:        adv.RSSI(),
		Services:    services,
		Connectable: adv.Connectable(),
		Serial:      serial,
		LastSeen:    s.now(),
	}

	prev, existing := s.devices.Get(addr)
	if !existing && !s.shouldIncludeDevice(info, opts) {
		return DeviceInfo{}, false
	}
	if existing {
		// names and services are often split across advertisement and scan response
		if info.Name == "" {
			info.Name = prev.Name
		}
		if len(info.Services) == 0 {
			info.Services = prev.Services
			info.Serial = prev.Serial
		}
	}
	s.devices.Set(addr, info)

	event := DeviceEvent{DeviceInfo: *info, Type: EventUpdated}
	if !existing {
		event.Type = EventNew
		s.logger.WithFields(logrus.Fields{
			"device":  info.DisplayName(),
			"address": addr,
			"rssi":    info.RSSI,
			"serial":  info.Serial,
		}).Info("Discovered new device")
	}
	s.events.Send(event)
	return *info, true
}

// shouldIncludeDevice applies allow/block/service filters
func (s *Scanner) shouldIncludeDevice(info *DeviceInfo, opts *ScanOptions) bool {
	for _, blocked := range opts.BlockList {
		if info.Address == blocked {
			return false
		}
	}

	if len(opts.AllowList) > 0 {
		allowed := false
		for _, a := range opts.AllowList {
			if info.Address == a {
				allowed = true
				break
			}
		}
		if !allowed {
			return false
		}
	}

	if opts.SerialOnly && !info.Serial {
		return false
	}

	if len(opts.ServiceUUIDs) > 0 {
		for _, required := range device.NormalizeUUIDs(opts.ServiceUUIDs) {
			for _, advertised := range info.Services {
				if required == advertised {
					return true
				}
			}
		}
		return false
	}

	return true
}

// Devices returns the devices seen by the last scan, strongest signal first
func (s *Scanner) Devices() []DeviceInfo {
	devs := make([]DeviceInfo, 0, s.devices.Len())
	s.devices.Range(func(_ string, value *DeviceInfo) bool {
		devs = append(devs, *value)
		return true
	})
	sort.Slice(devs, func(i, j int) bool {
		if devs[i].RSSI != devs[j].RSSI {
			return devs[i].RSSI > devs[j].RSSI
		}
		return devs[i].Address < devs[j].Address
	})
	return devs
}

// Events return a read-only channel of device events
func (s *Scanner) Events() <-chan DeviceEvent {
	return s.events.C()
}
