// Package connection drives the link to a distillation controller: it finds the
// device, connects, locates the serial characteristics and turns notifications into
// throttled telemetry snapshots. Commands go back over the same link.
package connection

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/stillmon/internal/command"
	"github.com/srg/stillmon/internal/device"
	"github.com/srg/stillmon/internal/devicefactory"
	"github.com/srg/stillmon/internal/discovery"
	"github.com/srg/stillmon/internal/frame"
	"github.com/srg/stillmon/internal/groutine"
	"github.com/srg/stillmon/internal/metrics"
	"github.com/srg/stillmon/internal/packet"
	"github.com/srg/stillmon/internal/ringchan"
	"github.com/srg/stillmon/internal/telemetry"
	"github.com/srg/stillmon/internal/throttle"
)

var (
	// ErrBusy is returned by Connect while another attempt or session is active
	ErrBusy = errors.New("connection attempt already in progress")
	// ErrNoDeviceSelected is returned when no device address is available
	ErrNoDeviceSelected = errors.New("no device selected")
)

// Recorder receives every emitted snapshot; Add must not block
type Recorder interface {
	Add(telemetry.Snapshot)
}

// Options configures a Manager
type Options struct {
	Selector       Selector
	ConnectTimeout time.Duration

	Framing   frame.Options
	Discovery *discovery.Options

	ThrottleInterval time.Duration
	// Clock drives throttle flushes; nil selects the wall clock
	Clock throttle.Clock

	// DeviceFactory creates the device handle; nil selects the host BLE backend
	DeviceFactory func(address string, logger *logrus.Logger) device.Device

	Metrics  *metrics.Metrics
	Recorder Recorder
}

// DefaultOptions connects to address with the default framing and discovery tables
func DefaultOptions(address string) *Options {
	return &Options{
		Selector:         FixedAddress(address),
		ConnectTimeout:   30 * time.Second,
		Discovery:        discovery.DefaultOptions(),
		ThrottleInterval: throttle.DefaultInterval,
	}
}

// session owns the per-connection pipeline state
type session struct {
	gen       uint64
	dev       device.Device
	link      *discovery.Link
	assembler *frame.Assembler
	throttle  *throttle.Throttle
}

// Manager is the connection state machine. All methods are safe for concurrent use.
type Manager struct {
	opts   Options
	logger *logrus.Logger

	mu            sync.Mutex
	status        Status
	sess          *session
	connectCancel context.CancelFunc
	listeners     []func(Status)

	// gen changes on every teardown; callbacks from an older session compare it and bail out
	gen atomic.Uint64

	writeMu sync.Mutex

	snapMu   sync.RWMutex
	snapshot *telemetry.Snapshot
	updates  *ringchan.RingChannel[telemetry.Snapshot]

	commands *command.Client
}

// NewManager creates a disconnected Manager
func NewManager(opts *Options, logger *logrus.Logger) *Manager {
	if logger == nil {
		logger = logrus.New()
	}
	if opts == nil {
		opts = DefaultOptions("")
	}
	o := *opts
	if o.Discovery == nil {
		o.Discovery = discovery.DefaultOptions()
	}
	if o.DeviceFactory == nil {
		o.DeviceFactory = devicefactory.NewDevice
	}
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = 30 * time.Second
	}

	m := &Manager{
		opts:    o,
		logger:  logger,
		status:  Status{State: StateDisconnected, Text: TextNotConnected},
		updates: ringchan.New[telemetry.Snapshot](1),
	}
	m.commands = command.NewClient(m, logger)
	return m
}

// Status returns the current connection status
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// IsConnected reports whether the serial link is up
func (m *Manager) IsConnected() bool {
	return m.Status().State == StateConnected
}

// Snapshot returns the merged telemetry seen so far, or nil before the first emission
func (m *Manager) Snapshot() *telemetry.Snapshot {
	m.snapMu.RLock()
	defer m.snapMu.RUnlock()
	if m.snapshot == nil {
		return nil
	}
	s := *m.snapshot
	return &s
}

// Updates delivers the latest emitted snapshot. Slow readers only miss intermediate values.
func (m *Manager) Updates() <-chan telemetry.Snapshot {
	return m.updates.C()
}

// OnStatus registers fn for every status change. fn runs on the goroutine causing the change.
func (m *Manager) OnStatus(fn func(Status)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// Commands returns the command facade bound to this connection
func (m *Manager) Commands() *command.Client {
	return m.commands
}

// Connect searches for the device, connects, discovers the serial link and starts
// the telemetry pipeline. Every failure leaves the Manager disconnected.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	if m.status.State != StateDisconnected {
		m.mu.Unlock()
		return ErrBusy
	}
	gen := m.gen.Add(1)
	ctx, cancel := context.WithCancel(ctx)
	m.connectCancel = cancel
	m.mu.Unlock()
	defer cancel()

	// stale snapshot from a previous session
	m.snapMu.Lock()
	m.snapshot = nil
	m.snapMu.Unlock()

	m.setStatus(gen, Status{State: StateSearching, Text: TextSearching})
	if m.opts.Selector == nil {
		return m.fail(gen, nil, ErrNoDeviceSelected)
	}
	address, err := m.opts.Selector.Select(ctx)
	if err != nil {
		return m.fail(gen, nil, fmt.Errorf("device search failed: %w", err))
	}

	log := m.logger.WithField("address", address)
	m.setStatus(gen, Status{State: StateConnecting, Text: TextConnecting})
	log.Info("Connecting to device...")

	dev := m.opts.DeviceFactory(address, m.logger)
	connectCtx, connectCancel := context.WithTimeout(ctx, m.opts.ConnectTimeout)
	err = dev.Connect(connectCtx, &device.ConnectOptions{Address: address, ConnectTimeout: m.opts.ConnectTimeout})
	connectCancel()
	if err != nil {
		return m.fail(gen, nil, fmt.Errorf("failed to connect to %s: %w", address, err))
	}

	m.setStatus(gen, Status{State: StateDiscovering, Text: TextDiscovering})
	conn := dev.GetConnection()
	link, err := discovery.Discover(conn, m.opts.Discovery, m.logger)
	if err != nil {
		return m.fail(gen, &session{dev: dev}, err)
	}

	sess := &session{
		gen:       gen,
		dev:       dev,
		link:      link,
		assembler: frame.NewAssembler(m.opts.Framing, m.logger),
	}
	sess.throttle = throttle.New(m.opts.ThrottleInterval, m.opts.Clock, m.emitter(gen), m.logger)

	if err := link.TX.Subscribe(func(data []byte) { m.handleNotification(sess, data) }); err != nil {
		return m.fail(gen, sess, fmt.Errorf("failed to subscribe to %s: %w", link.TX.UUID(), err))
	}

	m.mu.Lock()
	if m.gen.Load() != gen || ctx.Err() != nil {
		m.mu.Unlock()
		m.teardown(sess)
		return context.Canceled
	}
	m.sess = sess
	m.connectCancel = nil
	m.mu.Unlock()

	m.setStatus(gen, Status{State: StateConnected, Text: TextConnected})
	log.WithField("link", link.String()).Info("Serial link established")

	if conn != nil {
		m.watchLink(gen, conn.ConnectionContext())
	}

	if err := m.commands.RequestCalibration(ctx); err != nil {
		return fmt.Errorf("failed to request calibration: %w", err)
	}
	return nil
}

// Disconnect tears the link down. It aborts an attempt in progress and is a no-op
// when already disconnected.
func (m *Manager) Disconnect() error {
	m.mu.Lock()
	if m.status.State == StateDisconnected {
		m.mu.Unlock()
		return nil
	}
	m.gen.Add(1)
	sess := m.sess
	m.sess = nil
	if m.connectCancel != nil {
		m.connectCancel()
		m.connectCancel = nil
	}
	m.mu.Unlock()

	m.teardown(sess)
	m.forceStatus(Status{State: StateDisconnected, Text: TextDisconnected})
	m.logger.Info("Disconnected")
	return nil
}

// Close disconnects and closes the Updates channel
func (m *Manager) Close() error {
	err := m.Disconnect()
	m.updates.Close()
	return err
}

// Send writes cmd to the RX characteristic, appending the terminator when missing.
// A failed write tears the link down.
func (m *Manager) Send(ctx context.Context, cmd string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	sess := m.sess
	m.mu.Unlock()
	if sess == nil {
		return device.ErrNotConnected
	}

	if !strings.HasSuffix(cmd, command.Terminator) {
		cmd += command.Terminator
	}

	m.writeMu.Lock()
	err := sess.link.RX.Write([]byte(cmd), !sess.link.WithoutResponse())
	m.writeMu.Unlock()

	m.opts.Metrics.Command(opcode(cmd), err)
	if err != nil {
		err = fmt.Errorf("failed to send %q: %w", strings.TrimSuffix(cmd, command.Terminator), err)
		m.drop(sess.gen, errorStatus(err))
		return err
	}
	m.logger.WithField("command", strings.TrimSuffix(cmd, command.Terminator)).Debug("Command sent")
	return nil
}

func (m *Manager) handleNotification(sess *session, data []byte) {
	if m.gen.Load() != sess.gen {
		return
	}
	m.opts.Metrics.AddBytes(len(data))

	before := sess.assembler.Stats()
	frames := sess.assembler.Feed(data)
	delta := sess.assembler.Stats().Sub(before)
	m.opts.Metrics.FramingDelta(delta.Corrupted, delta.Overflows)

	for _, f := range frames {
		snap, err := packet.Decode(f)
		if err != nil {
			m.opts.Metrics.DecodeError(f.Tag())
			m.logger.WithError(err).WithField("frame", string(f)).Warn("Failed to decode frame")
			continue
		}
		m.opts.Metrics.Frame(f.Tag())
		sess.throttle.Push(snap)
	}
}

// emitter returns the throttle callback for one session. It runs with the throttle
// locked, so it only touches snapshot state.
func (m *Manager) emitter(gen uint64) func(telemetry.Snapshot) {
	return func(s telemetry.Snapshot) {
		if m.gen.Load() != gen {
			return
		}
		m.snapMu.Lock()
		merged := s
		if m.snapshot != nil {
			merged = m.snapshot.Merge(s)
		}
		m.snapshot = &merged
		m.snapMu.Unlock()

		m.updates.Send(merged)
		if m.opts.Recorder != nil {
			m.opts.Recorder.Add(merged)
		}
		m.opts.Metrics.Emission()
	}
}

// watchLink turns a device-initiated disconnect into the same cleanup as Disconnect
func (m *Manager) watchLink(gen uint64, connCtx context.Context) {
	if connCtx == nil {
		return
	}
	groutine.Go(context.Background(), "link-monitor", func(context.Context) {
		<-connCtx.Done()
		cause := context.Cause(connCtx)
		if m.gen.Load() != gen {
			return
		}
		m.logger.WithField("cause", cause).Warn("Link lost")
		m.drop(gen, Status{State: StateDisconnected, Text: TextLinkLost, Err: cause})
	})
}

// drop tears down the session of generation gen, unless it is already gone
func (m *Manager) drop(gen uint64, st Status) {
	m.mu.Lock()
	if !m.gen.CompareAndSwap(gen, gen+1) {
		m.mu.Unlock()
		return
	}
	sess := m.sess
	m.sess = nil
	m.mu.Unlock()

	m.teardown(sess)
	m.forceStatus(st)
}

// fail ends a connect attempt of generation gen
func (m *Manager) fail(gen uint64, partial *session, err error) error {
	m.logger.WithError(err).Error("Connection attempt failed")

	m.mu.Lock()
	current := m.gen.CompareAndSwap(gen, gen+1)
	if current {
		m.connectCancel = nil
	}
	m.mu.Unlock()

	m.teardown(partial)
	if current {
		m.forceStatus(errorStatus(err))
	}
	return err
}

// teardown releases everything a session holds. Safe with a nil or partial session.
func (m *Manager) teardown(sess *session) {
	if sess == nil {
		return
	}
	if sess.throttle != nil {
		sess.throttle.Stop()
	}
	if sess.assembler != nil {
		sess.assembler.Reset()
	}
	if sess.link != nil {
		if err := sess.link.TX.Unsubscribe(); err != nil {
			m.logger.WithError(err).Debug("Unsubscribe failed during teardown")
		}
	}
	if sess.dev != nil && sess.dev.IsConnected() {
		if err := sess.dev.Disconnect(); err != nil {
			m.logger.WithError(err).Debug("Device disconnect failed during teardown")
		}
	}
}

// setStatus publishes st only while gen is still the current attempt
func (m *Manager) setStatus(gen uint64, st Status) {
	m.mu.Lock()
	if m.gen.Load() != gen {
		m.mu.Unlock()
		return
	}
	m.publishLocked(st)
}

func (m *Manager) forceStatus(st Status) {
	m.mu.Lock()
	m.publishLocked(st)
}

// publishLocked stores st, unlocks and notifies listeners
func (m *Manager) publishLocked(st Status) {
	m.status = st
	listeners := append([]func(Status){}, m.listeners...)
	m.mu.Unlock()

	m.opts.Metrics.State(st.State.String(), stateNames)
	m.logger.WithFields(logrus.Fields{
		"state":  st.State,
		"status": st.Text,
	}).Debug("Connection status changed")
	for _, fn := range listeners {
		fn(st)
	}
}

func opcode(cmd string) string {
	if cmd == "" {
		return ""
	}
	return cmd[:1]
}
