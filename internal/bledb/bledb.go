// Package bledb normalises BLE UUIDs and names the serial-bridge services and
// characteristics a distillation controller is known to expose.
package bledb

import "strings"

// sigBaseSuffix is the tail of the Bluetooth SIG base UUID (xxxxxxxx-0000-1000-8000-00805f9b34fb)
const sigBaseSuffix = "00001000800000805f9b34fb"

// Entry is a known UUID with its human-readable name.
type Entry struct {
	UUID string
	Name string
}

// SerialServices lists serial-bridge services in discovery priority order.
var SerialServices = []Entry{
	{UUID: "0000ffe0-0000-1000-8000-00805f9b34fb", Name: "HM-10 Serial"},
	{UUID: "6e400001-b5a3-f393-e0a9-e50e24dcca9e", Name: "Nordic UART"},
	{UUID: "49535343-fe7d-4ae5-8fa9-9fafd205e455", Name: "Microchip Transparent UART"},
}

// SerialTX lists characteristics the device notifies on (device -> client).
var SerialTX = []Entry{
	{UUID: "0000ffe1-0000-1000-8000-00805f9b34fb", Name: "HM-10 Data"},
	{UUID: "6e400003-b5a3-f393-e0a9-e50e24dcca9e", Name: "Nordic UART TX"},
	{UUID: "49535343-1e4d-4bd9-ba61-23c647249616", Name: "Microchip UART TX"},
}

// SerialRX lists characteristics the client writes commands to (client -> device).
var SerialRX = []Entry{
	{UUID: "0000ffe1-0000-1000-8000-00805f9b34fb", Name: "HM-10 Data"},
	{UUID: "0000ffe2-0000-1000-8000-00805f9b34fb", Name: "HM-10 Write"},
	{UUID: "6e400002-b5a3-f393-e0a9-e50e24dcca9e", Name: "Nordic UART RX"},
	{UUID: "49535343-8841-43f4-a8d4-ecbe34729bb3", Name: "Microchip UART RX"},
}

var (
	serviceNames        = index(SerialServices)
	characteristicNames = index(SerialTX, SerialRX)
)

func index(lists ...[]Entry) map[string]string {
	m := make(map[string]string)
	for _, list := range lists {
		for _, e := range list {
			m[NormalizeUUID(e.UUID)] = e.Name
		}
	}
	return m
}

// NormalizeUUID converts a UUID string to the internal BLE library format (lowercase, no dashes).
// Strips braces and a 0x prefix. For full 128-bit UUIDs in Bluetooth SIG base format
// (0000xxxx-0000-1000-8000-00805f9b34fb) the 16-bit short form (xxxx) is returned.
func NormalizeUUID(uuid string) string {
	s := strings.ToLower(strings.TrimSpace(uuid))
	s = strings.Trim(s, "{}")
	s = strings.TrimPrefix(s, "0x")
	s = strings.ReplaceAll(s, "-", "")

	if len(s) == 32 && strings.HasPrefix(s, "0000") && strings.HasSuffix(s, sigBaseSuffix) {
		return s[4:8]
	}
	return s
}

// NormalizeUUIDs normalizes a slice of UUID strings.
func NormalizeUUIDs(uuids []string) []string {
	out := make([]string, len(uuids))
	for i, u := range uuids {
		out[i] = NormalizeUUID(u)
	}
	return out
}

// LookupService returns the known name of a serial service, or "" when unknown.
func LookupService(uuid string) string {
	return serviceNames[NormalizeUUID(uuid)]
}

// LookupCharacteristic returns the known name of a serial characteristic, or "" when unknown.
func LookupCharacteristic(uuid string) string {
	return characteristicNames[NormalizeUUID(uuid)]
}

// IsSerialService reports whether uuid is one of the known serial-bridge services.
func IsSerialService(uuid string) bool {
	_, ok := serviceNames[NormalizeUUID(uuid)]
	return ok
}

// UUIDs returns the normalized UUIDs of the given entries, preserving order.
func UUIDs(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = NormalizeUUID(e.UUID)
	}
	return out
}
