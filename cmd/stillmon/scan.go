package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/srg/stillmon/internal/device"
	"github.com/srg/stillmon/scanner"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for distillation controllers",
	Long: `Scan for Bluetooth LE devices nearby and list them strongest signal first.

By default only devices advertising a known serial-bridge service are shown;
use --all to list every device.`,
	Args: cobra.NoArgs,
	RunE: runScan,
}

var (
	scanDuration time.Duration
	scanFormat   string
	scanAll      bool
	scanServices []string
)

func init() {
	scanCmd.Flags().DurationVarP(&scanDuration, "duration", "d", 0, "Scan duration (default from config)")
	scanCmd.Flags().StringVarP(&scanFormat, "format", "f", "table", "Output format (table, json)")
	scanCmd.Flags().BoolVarP(&scanAll, "all", "a", false, "Show devices without a serial service too")
	scanCmd.Flags().StringSliceVarP(&scanServices, "services", "s", nil, "Only show devices advertising these service UUIDs")
}

func runScan(cmd *cobra.Command, _ []string) error {
	if scanFormat != "table" && scanFormat != "json" {
		return fmt.Errorf("invalid format '%s': must be one of [table json]", scanFormat)
	}
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}

	opts := scanner.DefaultScanOptions()
	opts.Duration = cfg.Device.ScanTimeout
	if scanDuration > 0 {
		opts.Duration = scanDuration
	}
	opts.SerialOnly = !scanAll
	if len(scanServices) > 0 {
		if opts.ServiceUUIDs, err = device.ValidateUUID(scanServices...); err != nil {
			return fmt.Errorf("invalid service UUID: %w", err)
		}
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	progress := NewCountdownProgressPrinter(os.Stdout, "Scanning for controllers", "Scanning", opts.Duration, "Processing results")
	progress.Start()
	defer progress.Stop()

	s := scanner.NewScanner(nil, logger)
	devices, err := s.Scan(ctx, opts, progress.Callback())
	progress.Stop()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	if scanFormat == "json" {
		return writeDevicesJSON(cmd.OutOrStdout(), devices)
	}
	writeDevicesTable(cmd.OutOrStdout(), devices)
	return nil
}

func writeDevicesJSON(w io.Writer, devices []scanner.DeviceInfo) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if devices == nil {
		devices = []scanner.DeviceInfo{}
	}
	return enc.Encode(devices)
}

func writeDevicesTable(w io.Writer, devices []scanner.DeviceInfo) {
	if len(devices) == 0 {
		fmt.Fprintln(w, "No devices found.")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ADDRESS\tNAME\tRSSI\tSERIAL\tSERVICES")
	for _, d := range devices {
		serial := "-"
		if d.Serial {
			serial = color.GreenString("yes")
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", d.Address, d.DisplayName(), d.RSSI, serial, strings.Join(d.Services, ","))
	}
	_ = tw.Flush()
	fmt.Fprintf(w, "\n%d device(s) found\n", len(devices))
}

// signalContext is cancelled on Ctrl+C or SIGTERM
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
