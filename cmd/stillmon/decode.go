package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/srg/stillmon/internal/frame"
	"github.com/srg/stillmon/internal/packet"
	"github.com/srg/stillmon/internal/telemetry"
)

var decodeCmd = &cobra.Command{
	Use:   "decode [file]",
	Short: "Decode a captured protocol stream",
	Long: `Run a captured notification stream through framing and decoding offline and
print the merged telemetry as JSON. Reads stdin when no file is given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDecode,
}

var (
	decodeLegacy bool
	decodeFrames bool
)

func init() {
	decodeCmd.Flags().BoolVar(&decodeLegacy, "legacy", false, "Input uses carriage-return framing")
	decodeCmd.Flags().BoolVar(&decodeFrames, "frames", false, "Print every decoded frame as a JSON line instead")
}

func runDecode(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}

	mode, err := frame.ParseMode(cfg.Protocol.Framing)
	if err != nil {
		return err
	}
	if decodeLegacy {
		mode = frame.ModeLegacy
	}

	in := cmd.InOrStdin()
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open capture: %w", err)
		}
		defer f.Close()
		in = f
	}

	out := cmd.OutOrStdout()
	var onFrame func(frame.Frame, telemetry.Snapshot) error
	if decodeFrames {
		enc := json.NewEncoder(out)
		onFrame = func(f frame.Frame, s telemetry.Snapshot) error {
			return enc.Encode(struct {
				Tag    string `json:"tag"`
				Fields any    `json:"fields"`
			}{string(f.Tag()), s.Fields()})
		}
	}

	merged, stats, err := decodeStream(in, frame.Options{Mode: mode, MaxBuffer: cfg.Protocol.MaxBuffer}, logger, onFrame)
	if err != nil {
		return err
	}
	logger.WithFields(logrus.Fields{
		"frames":    stats.Frames,
		"corrupted": stats.Corrupted,
		"overflows": stats.Overflows,
	}).Info("Capture decoded")

	if decodeFrames {
		return nil
	}
	data, err := json.MarshalIndent(merged.Fields(), "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, string(data))
	return err
}

// decodeStream feeds r through an assembler in read-sized chunks and merges every decoded frame
func decodeStream(r io.Reader, opts frame.Options, logger *logrus.Logger, onFrame func(frame.Frame, telemetry.Snapshot) error) (telemetry.Snapshot, frame.Stats, error) {
	asm := frame.NewAssembler(opts, logger)
	br := bufio.NewReader(r)
	buf := make([]byte, 512)

	var merged telemetry.Snapshot
	for {
		n, readErr := br.Read(buf)
		for _, f := range asm.Feed(buf[:n]) {
			snap, err := packet.Decode(f)
			if err != nil {
				logger.WithError(err).WithField("frame", string(f)).Warn("Skipping frame")
				continue
			}
			snap = snap.Sanitize()
			merged = merged.Merge(snap)
			if onFrame != nil {
				if err := onFrame(f, snap); err != nil {
					return merged, asm.Stats(), err
				}
			}
		}
		if errors.Is(readErr, io.EOF) {
			return merged, asm.Stats(), nil
		}
		if readErr != nil {
			return merged, asm.Stats(), fmt.Errorf("failed to read capture: %w", readErr)
		}
	}
}
