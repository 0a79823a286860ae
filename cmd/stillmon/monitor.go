package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/srg/stillmon/internal/datalog"
	"github.com/srg/stillmon/internal/frame"
	"github.com/srg/stillmon/internal/metrics"
	"github.com/srg/stillmon/internal/telemetry"
	"github.com/srg/stillmon/pkg/config"
	"github.com/srg/stillmon/pkg/connection"
	"github.com/srg/stillmon/scanner"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor [address]",
	Short: "Stream live telemetry from a controller",
	Long: `Connect to a distillation controller and print one line per telemetry update.

Without an address the first nearby device advertising a serial-bridge service is
used. Press Ctrl+C to disconnect.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runMonitor,
}

var (
	monitorLegacy      bool
	monitorInterval    time.Duration
	monitorLogFile     string
	monitorLogFormat   string
	monitorMetricsAddr string
	monitorJSON        bool
)

func init() {
	monitorCmd.Flags().BoolVar(&monitorLegacy, "legacy", false, "Use carriage-return framing of older firmware")
	monitorCmd.Flags().DurationVar(&monitorInterval, "interval", 0, "Minimum time between updates (default from config)")
	monitorCmd.Flags().StringVar(&monitorLogFile, "log-file", "", "Record every update to this file")
	monitorCmd.Flags().StringVar(&monitorLogFormat, "log-format", "", "Record format (jsonl, csv)")
	monitorCmd.Flags().StringVar(&monitorMetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	monitorCmd.Flags().BoolVar(&monitorJSON, "json", false, "Print updates as JSON")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	applyMonitorFlags(cfg, args)

	opts, err := managerOptions(cfg, logger)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	if cfg.Metrics.Addr != "" {
		opts.Metrics = metrics.New()
		opts.Metrics.Serve(ctx, cfg.Metrics.Addr, logger)
	}

	if cfg.Datalog.Path != "" {
		rec, err := openRecorder(ctx, cfg, opts.Metrics, logger)
		if err != nil {
			return err
		}
		defer func() {
			if err := rec.Close(); err != nil {
				logger.WithError(err).Warn("Failed to close datalog")
			}
		}()
		opts.Recorder = rec
	}

	out := cmd.OutOrStdout()
	manager := connection.NewManager(opts, logger)
	defer manager.Close()

	progress := NewProgressPrinter(os.Stdout, "Connecting to controller", connection.TextSearching, connection.TextConnected)
	statuses := make(chan connection.Status, 16)
	manager.OnStatus(func(st connection.Status) {
		progress.Callback()(st.Text)
		select {
		case statuses <- st:
		default:
		}
	})

	progress.Start()
	err = manager.Connect(ctx)
	progress.Stop()
	if err != nil {
		return err
	}
	fmt.Fprintln(out, formatConnectionStatus(manager.Status()))

	return monitorLoop(ctx, out, manager, statuses)
}

func applyMonitorFlags(cfg *config.Config, args []string) {
	if len(args) > 0 {
		cfg.Device.Address = args[0]
	}
	if monitorLegacy {
		cfg.Protocol.Framing = frame.ModeLegacy.String()
	}
	if monitorInterval > 0 {
		cfg.Throttle.Interval = monitorInterval
	}
	if monitorLogFile != "" {
		cfg.Datalog.Path = monitorLogFile
	}
	if monitorLogFormat != "" {
		cfg.Datalog.Format = monitorLogFormat
	}
	if monitorMetricsAddr != "" {
		cfg.Metrics.Addr = monitorMetricsAddr
	}
}

// managerOptions maps the config onto connection options
func managerOptions(cfg *config.Config, logger *logrus.Logger) (*connection.Options, error) {
	mode, err := frame.ParseMode(cfg.Protocol.Framing)
	if err != nil {
		return nil, err
	}

	opts := connection.DefaultOptions(cfg.Device.Address)
	if cfg.Device.Address == "" {
		scanOpts := scanner.DefaultScanOptions()
		scanOpts.Duration = cfg.Device.ScanTimeout
		opts.Selector = &connection.ScanSelector{Options: scanOpts, Logger: logger}
	}
	opts.ConnectTimeout = cfg.Device.ConnectTimeout
	opts.Framing = frame.Options{Mode: mode, MaxBuffer: cfg.Protocol.MaxBuffer}
	opts.ThrottleInterval = cfg.Throttle.Interval
	opts.Discovery = opts.Discovery.WithExtra(cfg.Discovery.Services, cfg.Discovery.TX, cfg.Discovery.RX)
	return opts, nil
}

func openRecorder(ctx context.Context, cfg *config.Config, m *metrics.Metrics, logger *logrus.Logger) (*datalog.Recorder, error) {
	sink, err := datalog.OpenFile(cfg.Datalog.Path, cfg.Datalog.Format)
	if err != nil {
		return nil, err
	}
	rec, err := datalog.NewRecorder(sink, datalog.Options{Capacity: cfg.Datalog.Capacity}, logger)
	if err != nil {
		_ = sink.Close()
		return nil, err
	}
	rec.OnDrop = m.Dropped
	if err := rec.Start(ctx); err != nil {
		_ = sink.Close()
		return nil, err
	}
	logger.WithFields(logrus.Fields{
		"path":    cfg.Datalog.Path,
		"session": rec.Session(),
	}).Info("Recording telemetry")
	return rec, nil
}

func monitorLoop(ctx context.Context, out io.Writer, manager *connection.Manager, statuses <-chan connection.Status) error {
	var lastStatus string
	for {
		select {
		case <-ctx.Done():
			_ = manager.Disconnect()
			fmt.Fprintln(out, formatConnectionStatus(manager.Status()))
			return nil

		case st := <-statuses:
			if st.State != connection.StateDisconnected {
				continue
			}
			fmt.Fprintln(out, formatConnectionStatus(st))
			if st.Err != nil {
				return fmt.Errorf("%w: %v", ErrConnectionLost, st.Err)
			}
			return ErrConnectionLost

		case snap, ok := <-manager.Updates():
			if !ok {
				return nil
			}
			if err := printSnapshot(out, snap); err != nil {
				return err
			}
			if ds := snap.Status(); ds.Text != "" && ds.Text != lastStatus {
				lastStatus = ds.Text
				fmt.Fprintln(out, formatDeviceStatus(ds))
			}
		}
	}
}

func printSnapshot(out io.Writer, snap telemetry.Snapshot) error {
	if monitorJSON {
		data, err := json.Marshal(snap.Fields())
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, string(data))
		return err
	}
	_, err := fmt.Fprintf(out, "%s  %s\n", time.Now().Format("15:04:05"), formatSnapshot(snap))
	return err
}
