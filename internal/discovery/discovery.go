// Package discovery locates the serial link of a distillation controller: the
// characteristic the device notifies telemetry on (TX) and the one it accepts
// commands on (RX).
package discovery

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/srg/stillmon/internal/bledb"
	"github.com/srg/stillmon/internal/device"
)

// ErrNoSerialLink is returned when no service offers a notify + write pair
var ErrNoSerialLink = errors.New("no serial characteristics found")

// Options lists the UUIDs tried first, in priority order.
type Options struct {
	Services []string
	TX       []string
	RX       []string
}

// DefaultOptions returns the built-in serial-bridge tables
func DefaultOptions() *Options {
	return &Options{
		Services: bledb.UUIDs(bledb.SerialServices),
		TX:       bledb.UUIDs(bledb.SerialTX),
		RX:       bledb.UUIDs(bledb.SerialRX),
	}
}

// WithExtra returns a copy of o with the given UUIDs placed ahead of the existing ones
func (o *Options) WithExtra(services, tx, rx []string) *Options {
	return &Options{
		Services: dedupe(device.NormalizeUUIDs(services), o.Services),
		TX:       dedupe(device.NormalizeUUIDs(tx), o.TX),
		RX:       dedupe(device.NormalizeUUIDs(rx), o.RX),
	}
}

func dedupe(lists ...[]string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, l := range lists {
		for _, u := range l {
			u = device.NormalizeUUID(u)
			if _, ok := seen[u]; ok || u == "" {
				continue
			}
			seen[u] = struct{}{}
			out = append(out, u)
		}
	}
	return out
}

// Link is a discovered serial channel. TX and RX may be the same characteristic.
type Link struct {
	Service device.Service
	TX      device.Characteristic
	RX      device.Characteristic
}

// Shared reports whether one characteristic carries both directions
func (l *Link) Shared() bool {
	return l.TX == l.RX
}

// WithoutResponse reports whether commands should use write-without-response
func (l *Link) WithoutResponse() bool {
	return l.RX.GetProperties().WriteWithoutResponse() != nil
}

func (l *Link) String() string {
	return fmt.Sprintf("service %s tx %s rx %s", l.Service.UUID(), l.TX.UUID(), l.RX.UUID())
}

// Discover finds the serial link on conn. Known services are tried first in
// priority order, then every remaining service. It does not retry.
func Discover(conn device.Connection, opts *Options, logger *logrus.Logger) (*Link, error) {
	if conn == nil {
		return nil, device.ErrNotConnected
	}
	if opts == nil {
		opts = DefaultOptions()
	}
	if logger == nil {
		logger = logrus.New()
	}

	tried := make(map[string]struct{})
	for _, uuid := range opts.Services {
		svc, err := conn.GetService(uuid)
		if err != nil {
			logger.WithField("service", uuid).Debug("Serial service not present")
			continue
		}
		tried[svc.UUID()] = struct{}{}
		if link := search(svc, opts); link != nil {
			logger.WithFields(linkFields(link)).Info("Serial link found on known service")
			return link, nil
		}
		logger.WithField("service", uuid).Debug("Known service lacks a usable characteristic pair")
	}

	for _, svc := range conn.Services() {
		if _, ok := tried[svc.UUID()]; ok {
			continue
		}
		if link := search(svc, opts); link != nil {
			logger.WithFields(linkFields(link)).Info("Serial link found by capability scan")
			return link, nil
		}
	}

	return nil, ErrNoSerialLink
}

// search picks TX and RX inside one service. A known UUID wins over capability-only matches.
func search(svc device.Service, opts *Options) *Link {
	chars := svc.GetCharacteristics()
	tx := pick(chars, opts.TX, func(c device.Characteristic) bool { return device.CanNotify(c.GetProperties()) })
	rx := pick(chars, opts.RX, func(c device.Characteristic) bool { return device.CanWrite(c.GetProperties()) })
	if tx == nil || rx == nil {
		return nil
	}
	return &Link{Service: svc, TX: tx, RX: rx}
}

func pick(chars []device.Characteristic, known []string, capable func(device.Characteristic) bool) device.Characteristic {
	for _, uuid := range known {
		for _, c := range chars {
			if c.UUID() == uuid && capable(c) {
				return c
			}
		}
	}
	for _, c := range chars {
		if capable(c) {
			return c
		}
	}
	return nil
}

func linkFields(l *Link) logrus.Fields {
	return logrus.Fields{
		"service": l.Service.UUID(),
		"tx":      l.TX.UUID(),
		"rx":      l.RX.UUID(),
		"shared":  l.Shared(),
	}
}
