package discovery

import (
	"context"
	"testing"

	"github.com/srg/stillmon/internal/device"
	"github.com/srg/stillmon/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func connect(t *testing.T, b *testutils.PeripheralDeviceBuilder) device.Connection {
	t.Helper()
	dev := b.Build()
	require.NoError(t, dev.Connect(context.Background(), nil))
	return dev.GetConnection()
}

func TestDiscover(t *testing.T) {
	tests := []struct {
		name    string
		profile string
		service string
		tx      string
		rx      string
		shared  bool
	}{
		{
			name: "HM-10 shared characteristic",
			profile: `{"services":[
				{"uuid":"180a","characteristics":[{"uuid":"2a29","properties":"read"}]},
				{"uuid":"ffe0","characteristics":[{"uuid":"ffe1","properties":"read,write-without-response,notify"}]}
			]}`,
			service: "ffe0", tx: "ffe1", rx: "ffe1", shared: true,
		},
		{
			name: "Nordic UART by known UUIDs",
			profile: `{"services":[
				{"uuid":"6e400001-b5a3-f393-e0a9-e50e24dcca9e","characteristics":[
					{"uuid":"6e400002-b5a3-f393-e0a9-e50e24dcca9e","properties":"write,write-without-response"},
					{"uuid":"6e400003-b5a3-f393-e0a9-e50e24dcca9e","properties":"notify"}
				]}
			]}`,
			service: "6e400001b5a3f393e0a9e50e24dcca9e",
			tx:      "6e400003b5a3f393e0a9e50e24dcca9e",
			rx:      "6e400002b5a3f393e0a9e50e24dcca9e",
		},
		{
			name: "known UUID preferred over earlier capable characteristic",
			profile: `{"services":[
				{"uuid":"ffe0","characteristics":[
					{"uuid":"fff9","properties":"write,notify"},
					{"uuid":"ffe1","properties":"write,notify"}
				]}
			]}`,
			service: "ffe0", tx: "ffe1", rx: "ffe1", shared: true,
		},
		{
			name: "unknown service found by capability scan",
			profile: `{"services":[
				{"uuid":"1800","characteristics":[{"uuid":"2a00","properties":"read"}]},
				{"uuid":"abcd","characteristics":[
					{"uuid":"abce","properties":"notify"},
					{"uuid":"abcf","properties":"write"}
				]}
			]}`,
			service: "abcd", tx: "abce", rx: "abcf",
		},
		{
			name: "known service without pair falls through to scan",
			profile: `{"services":[
				{"uuid":"ffe0","characteristics":[{"uuid":"ffe1","properties":"notify"}]},
				{"uuid":"abcd","characteristics":[{"uuid":"abce","properties":"write,notify"}]}
			]}`,
			service: "abcd", tx: "abce", rx: "abce", shared: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := connect(t, testutils.CreateMockPeripheralDeviceFromJSON(tt.profile))

			link, err := Discover(conn, nil, testutils.NewTestHelper(t).Logger)
			require.NoError(t, err)

			assert.Equal(t, tt.service, link.Service.UUID())
			assert.Equal(t, tt.tx, link.TX.UUID())
			assert.Equal(t, tt.rx, link.RX.UUID())
			assert.Equal(t, tt.shared, link.Shared())
		})
	}
}

func TestDiscoverNoLink(t *testing.T) {
	// GOAL: Verify discovery fails terminally when no service offers notify + write
	//
	// TEST SCENARIO: notify-only and write-only characteristics in different services → ErrNoSerialLink

	conn := connect(t, testutils.CreateMockPeripheralDeviceFromJSON(`{"services":[
		{"uuid":"aaa0","characteristics":[{"uuid":"aaa1","properties":"notify"}]},
		{"uuid":"bbb0","characteristics":[{"uuid":"bbb1","properties":"write"}]}
	]}`))

	_, err := Discover(conn, nil, nil)
	assert.ErrorIs(t, err, ErrNoSerialLink)

	_, err = Discover(nil, nil, nil)
	assert.ErrorIs(t, err, device.ErrNotConnected)
}

func TestWithExtra(t *testing.T) {
	opts := DefaultOptions().WithExtra([]string{"ABCD", "0000ffe0-0000-1000-8000-00805f9b34fb"}, []string{"abce"}, nil)

	assert.Equal(t, "abcd", opts.Services[0], "extra services MUST be tried first")
	assert.Equal(t, "ffe0", opts.Services[1])
	assert.Equal(t, 1, countOf(opts.Services, "ffe0"), "duplicates MUST be removed")
	assert.Equal(t, "abce", opts.TX[0])
	assert.Equal(t, DefaultOptions().RX, opts.RX)

	conn := connect(t, testutils.CreateMockPeripheralDeviceFromJSON(`{"services":[
		{"uuid":"ffe0","characteristics":[{"uuid":"ffe1","properties":"write,notify"}]},
		{"uuid":"abcd","characteristics":[{"uuid":"abce","properties":"write,notify"}]}
	]}`))
	link, err := Discover(conn, opts, nil)
	require.NoError(t, err)
	assert.Equal(t, "abcd", link.Service.UUID())
}

func TestLinkWriteMode(t *testing.T) {
	conn := connect(t, testutils.CreateSerialPeripheral())
	link, err := Discover(conn, nil, nil)
	require.NoError(t, err)
	assert.True(t, link.WithoutResponse())
	assert.Contains(t, link.String(), "ffe1")
}

func countOf(list []string, v string) int {
	n := 0
	for _, s := range list {
		if s == v {
			n++
		}
	}
	return n
}
