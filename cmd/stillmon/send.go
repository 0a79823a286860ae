package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/srg/stillmon/internal/command"
	"github.com/srg/stillmon/pkg/connection"
)

var sendCmd = &cobra.Command{
	Use:   "send <address> <operation> [args...]",
	Short: "Send one command to a controller",
	Long: `Connect to a controller, send one command and disconnect.

Operations:
  rate <ml/h>                      set pump rate (0-3000)
  dose <ml>                        set dose (0-5000)
  start | stop                     start the pump / set rate 0
  reset-total                      zero the dispensed total
  calibrate <steps> [--save]       set pump steps per 100 ml
  mode <normal|force|stop>         set stabilizer mode
  voltage <0.1 V units>            set stabilizer target (0-2500)
  heat on <sensor> <bound>         tie forced heating to a sensor bound
  heat off                         disable heat control
  bound <sensor> <bound> <reaction>  set sensor alarm bound and reaction bits`,
	Args: cobra.MinimumNArgs(2),
	RunE: runSend,
}

var sendSave bool

func init() {
	sendCmd.Flags().BoolVar(&sendSave, "save", false, "Persist the calibration on the device")
}

// operation runs one command against a client
type operation func(ctx context.Context, c *command.Client) error

// validator checks arguments before connecting; clamp warnings come from the real send
var validator = command.NewClient(nil, discardLogger())

func runSend(cmd *cobra.Command, args []string) error {
	op, err := parseOperation(args[1], args[2:], sendSave)
	if err != nil {
		return err
	}

	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	cfg.Device.Address = args[0]

	opts, err := managerOptions(cfg, logger)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	manager := connection.NewManager(opts, logger)
	defer manager.Close()

	if err := manager.Connect(ctx); err != nil {
		return err
	}
	if err := op(ctx, manager.Commands()); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s sent\n", args[1])
	return nil
}

// parseOperation validates the operation name and its arguments before any connection is made
func parseOperation(name string, args []string, save bool) (operation, error) {
	want := func(n int) error {
		if len(args) != n {
			return fmt.Errorf("%s expects %d argument(s), got %d", name, n, len(args))
		}
		return nil
	}

	switch strings.ToLower(name) {
	case "rate":
		if err := want(1); err != nil {
			return nil, err
		}
		v, err := parseFloat("rate", args[0])
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context, c *command.Client) error { return c.SetPumpRate(ctx, v) }, nil

	case "dose":
		if err := want(1); err != nil {
			return nil, err
		}
		v, err := parseFloat("dose", args[0])
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context, c *command.Client) error { return c.SetDose(ctx, v) }, nil

	case "start":
		if err := want(0); err != nil {
			return nil, err
		}
		return func(ctx context.Context, c *command.Client) error { return c.StartPump(ctx) }, nil

	case "stop":
		if err := want(0); err != nil {
			return nil, err
		}
		return func(ctx context.Context, c *command.Client) error { return c.StopPump(ctx) }, nil

	case "reset-total":
		if err := want(0); err != nil {
			return nil, err
		}
		return func(ctx context.Context, c *command.Client) error { return c.ResetTotalCounter(ctx) }, nil

	case "calibrate":
		if err := want(1); err != nil {
			return nil, err
		}
		steps, err := strconv.ParseInt(args[0], 0, 64)
		if err != nil {
			return nil, &command.ValidationError{Param: "calibration", Value: args[0], Reason: "not an integer"}
		}
		if _, err := command.EncodeCalibration(steps, save); err != nil {
			return nil, err
		}
		return func(ctx context.Context, c *command.Client) error { return c.CalibratePump(ctx, steps, save) }, nil

	case "mode":
		if err := want(1); err != nil {
			return nil, err
		}
		mode, err := command.ParseStabilizerMode(args[0])
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context, c *command.Client) error { return c.SetStabilizerMode(ctx, mode) }, nil

	case "voltage":
		if err := want(1); err != nil {
			return nil, err
		}
		v, err := parseFloat("voltage", args[0])
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context, c *command.Client) error { return c.SetTargetVoltage(ctx, v) }, nil

	case "heat":
		if len(args) == 1 && strings.EqualFold(args[0], "off") {
			return func(ctx context.Context, c *command.Client) error { return c.SetHeatControl(ctx, false, 0, 0) }, nil
		}
		if len(args) != 3 || !strings.EqualFold(args[0], "on") {
			return nil, fmt.Errorf("heat expects 'on <sensor> <bound>' or 'off'")
		}
		sensor, err := parseInt("sensor", args[1])
		if err != nil {
			return nil, err
		}
		bound, err := parseFloat("bound", args[2])
		if err != nil {
			return nil, err
		}
		if _, err := validator.EncodeHeatControl(true, sensor, bound); err != nil {
			return nil, err
		}
		return func(ctx context.Context, c *command.Client) error { return c.SetHeatControl(ctx, true, sensor, bound) }, nil

	case "bound":
		if err := want(3); err != nil {
			return nil, err
		}
		sensor, err := parseInt("sensor", args[0])
		if err != nil {
			return nil, err
		}
		bound, err := parseFloat("bound", args[1])
		if err != nil {
			return nil, err
		}
		reaction, err := parseInt("reaction", args[2])
		if err != nil {
			return nil, err
		}
		if _, err := validator.EncodeSensorBound(sensor, bound, reaction); err != nil {
			return nil, err
		}
		return func(ctx context.Context, c *command.Client) error { return c.SetSensorBound(ctx, sensor, bound, reaction) }, nil
	}

	return nil, fmt.Errorf("unknown operation %q", name)
}

func parseFloat(param, s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, &command.ValidationError{Param: param, Value: s, Reason: "not a number"}
	}
	return v, nil
}

func parseInt(param, s string) (int, error) {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, &command.ValidationError{Param: param, Value: s, Reason: "not an integer"}
	}
	return v, nil
}

func discardLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
