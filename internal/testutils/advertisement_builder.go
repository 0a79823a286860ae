package testutils

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/srg/stillmon/internal/device"
)

// FakeAdvertisement implements device.Advertisement with fixed values
type FakeAdvertisement struct {
	name        string
	address     string
	rssi        int
	services    []string
	connectable bool
}

var _ device.Advertisement = (*FakeAdvertisement)(nil)

func (a *FakeAdvertisement) LocalName() string  { return a.name }
func (a *FakeAdvertisement) Services() []string { return a.services }
func (a *FakeAdvertisement) Connectable() bool  { return a.connectable }
func (a *FakeAdvertisement) RSSI() int          { return a.rssi }
func (a *FakeAdvertisement) Addr() string       { return a.address }

// AdvertisementBuilder builds fake BLE advertisements for testing.
// The builder starts with connectable=true and RSSI -50.
type AdvertisementBuilder struct {
	adv FakeAdvertisement
}

// NewAdvertisementBuilder creates a new AdvertisementBuilder with default values.
func NewAdvertisementBuilder() *AdvertisementBuilder {
	return &AdvertisementBuilder{adv: FakeAdvertisement{rssi: -50, connectable: true}}
}

// WithName sets the local name for the advertisement.
func (b *AdvertisementBuilder) WithName(name string) *AdvertisementBuilder {
	b.adv.name = name
	return b
}

// WithAddress sets the device address for the advertisement.
func (b *AdvertisementBuilder) WithAddress(addr string) *AdvertisementBuilder {
	b.adv.address = addr
	return b
}

// WithRSSI sets the signal strength for the advertisement.
func (b *AdvertisementBuilder) WithRSSI(rssi int) *AdvertisementBuilder {
	b.adv.rssi = rssi
	return b
}

// WithServices adds service UUIDs to the advertisement, normalized like the real transport does.
func (b *AdvertisementBuilder) WithServices(uuids ...string) *AdvertisementBuilder {
	b.adv.services = append(b.adv.services, device.NormalizeUUIDs(uuids)...)
	return b
}

// WithConnectable sets whether the device accepts connections.
func (b *AdvertisementBuilder) WithConnectable(c bool) *AdvertisementBuilder {
	b.adv.connectable = c
	return b
}

// FromJSON fills builder fields from a JSON string with format support.
// Panics on invalid JSON as this is intended for test data setup.
func (b *AdvertisementBuilder) FromJSON(jsonStrFmt string, args ...interface{}) *AdvertisementBuilder {
	jsonStr := fmt.Sprintf(jsonStrFmt, args...)

	var data struct {
		Name        *string  `json:"name"`
		Address     *string  `json:"address"`
		RSSI        *int     `json:"rssi"`
		Services    []string `json:"services"`
		Connectable *bool    `json:"connectable"`
	}
	if err := json.Unmarshal([]byte(jsonStr), &data); err != nil {
		panic(fmt.Sprintf("FromJSON: failed to unmarshal: %v", err))
	}

	if data.Name != nil {
		b.WithName(*data.Name)
	}
	if data.Address != nil {
		b.WithAddress(*data.Address)
	}
	if data.RSSI != nil {
		b.WithRSSI(*data.RSSI)
	}
	if data.Services != nil {
		b.WithServices(data.Services...)
	}
	if data.Connectable != nil {
		b.WithConnectable(*data.Connectable)
	}
	return b
}

// Build returns a copy of the configured advertisement
func (b *AdvertisementBuilder) Build() *FakeAdvertisement {
	adv := b.adv
	adv.services = append([]string(nil), b.adv.services...)
	return &adv
}

// FakeScanner implements device.ScanningDevice by replaying advertisements.
// Unless Hold is set, Scan returns once everything is replayed; with Hold it
// waits for the context like a real scan.
type FakeScanner struct {
	mu    sync.Mutex
	ads   []device.Advertisement
	err   error
	Hold  bool
	scans int
}

var _ device.ScanningDevice = (*FakeScanner)(nil)

// NewFakeScanner creates a scanner replaying ads in order
func NewFakeScanner(ads ...device.Advertisement) *FakeScanner {
	return &FakeScanner{ads: ads}
}

// FailWith makes Scan return err without replaying anything
func (s *FakeScanner) FailWith(err error) *FakeScanner {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
	return s
}

// Scans returns how many times Scan was called
func (s *FakeScanner) Scans() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scans
}

func (s *FakeScanner) Scan(ctx context.Context, _ bool, handler func(device.Advertisement)) error {
	s.mu.Lock()
	s.scans++
	ads, err, hold := append([]device.Advertisement(nil), s.ads...), s.err, s.Hold
	s.mu.Unlock()

	if err != nil {
		return err
	}
	for _, a := range ads {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		handler(a)
	}
	if hold {
		<-ctx.Done()
		return ctx.Err()
	}
	return nil
}
