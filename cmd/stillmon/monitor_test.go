package main

import (
	"testing"
	"time"

	"github.com/srg/stillmon/internal/frame"
	"github.com/srg/stillmon/pkg/config"
	"github.com/srg/stillmon/pkg/connection"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagerOptionsFromConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Device.Address = "AA:BB:CC:DD:EE:FF"
	cfg.Protocol.Framing = "legacy"
	cfg.Throttle.Interval = time.Second
	cfg.Discovery.Services = []string{"FFF0"}

	opts, err := managerOptions(cfg, nil)
	require.NoError(t, err)

	assert.Equal(t, connection.FixedAddress("AA:BB:CC:DD:EE:FF"), opts.Selector)
	assert.Equal(t, frame.ModeLegacy, opts.Framing.Mode)
	assert.Equal(t, time.Second, opts.ThrottleInterval)
	assert.Equal(t, cfg.Device.ConnectTimeout, opts.ConnectTimeout)
	assert.Equal(t, "fff0", opts.Discovery.Services[0], "configured services MUST be tried first")
	assert.Greater(t, len(opts.Discovery.Services), 1, "built-in services MUST remain")
}

func TestManagerOptionsSearchesWithoutAddress(t *testing.T) {
	cfg := config.DefaultConfig()

	opts, err := managerOptions(cfg, nil)
	require.NoError(t, err)

	sel, ok := opts.Selector.(*connection.ScanSelector)
	require.True(t, ok, "missing address MUST select by scanning")
	assert.Equal(t, cfg.Device.ScanTimeout, sel.Options.Duration)

	cfg.Protocol.Framing = "smoke"
	_, err = managerOptions(cfg, nil)
	assert.Error(t, err)
}

func TestApplyMonitorFlags(t *testing.T) {
	cfg := config.DefaultConfig()
	monitorLegacy, monitorInterval, monitorLogFile = true, 2*time.Second, "run.csv"
	defer func() { monitorLegacy, monitorInterval, monitorLogFile = false, 0, "" }()

	applyMonitorFlags(cfg, []string{"11:22:33:44:55:66"})

	assert.Equal(t, "11:22:33:44:55:66", cfg.Device.Address)
	assert.Equal(t, "legacy", cfg.Protocol.Framing)
	assert.Equal(t, 2*time.Second, cfg.Throttle.Interval)
	assert.Equal(t, "run.csv", cfg.Datalog.Path)
	assert.Equal(t, "jsonl", cfg.Datalog.Format)
}
