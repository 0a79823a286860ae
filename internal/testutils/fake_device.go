package testutils

import (
	"context"
	"errors"
	"sync"

	"github.com/srg/stillmon/internal/device"
)

// Write is one recorded characteristic write
type Write struct {
	Characteristic string
	Data           []byte
	WithResponse   bool
}

// FakeDevice is an in-memory peripheral implementing device.Device.
// Tests drive it with Notify, DropLink and FailWrites.
type FakeDevice struct {
	mu        sync.Mutex
	address   string
	name      string
	services  []*FakeService
	conn      *FakeConnection
	connErr   error
	connects  int
	writes    []Write
	writeErr  error
	connectFn func(ctx context.Context) error
}

var _ device.Device = (*FakeDevice)(nil)

func (d *FakeDevice) Address() string { return d.address }
func (d *FakeDevice) Name() string    { return d.name }

// FailConnect makes the next Connect calls return err
func (d *FakeDevice) FailConnect(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.connErr = err
}

// OnConnect installs a hook run inside Connect before the link is established
func (d *FakeDevice) OnConnect(fn func(ctx context.Context) error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.connectFn = fn
}

// FailWrites makes every characteristic write return err; nil restores writes.
func (d *FakeDevice) FailWrites(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.writeErr = err
}

func (d *FakeDevice) Connect(ctx context.Context, _ *device.ConnectOptions) error {
	d.mu.Lock()
	hook, connErr := d.connectFn, d.connErr
	if d.conn != nil {
		d.mu.Unlock()
		return device.ErrAlreadyConnected
	}
	d.mu.Unlock()

	if hook != nil {
		if err := hook(ctx); err != nil {
			return err
		}
	}
	if connErr != nil {
		return connErr
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	connCtx, cancel := context.WithCancelCause(context.Background())
	d.conn = &FakeConnection{device: d, ctx: connCtx, cancel: cancel}
	d.connects++
	return nil
}

func (d *FakeDevice) Disconnect() error {
	d.mu.Lock()
	conn := d.conn
	d.conn = nil
	d.mu.Unlock()

	if conn == nil {
		return device.ErrNotConnected
	}
	for _, s := range d.services {
		for _, c := range s.chars {
			_ = c.Unsubscribe()
		}
	}
	conn.cancel(context.Canceled)
	return nil
}

func (d *FakeDevice) IsConnected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conn != nil
}

func (d *FakeDevice) GetConnection() device.Connection {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.conn == nil {
		return nil
	}
	return d.conn
}

// Connects returns how many times Connect succeeded
func (d *FakeDevice) Connects() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.connects
}

// Writes returns a copy of every successful write
func (d *FakeDevice) Writes() []Write {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Write(nil), d.writes...)
}

// WrittenStrings returns the payloads of every successful write as strings
func (d *FakeDevice) WrittenStrings() []string {
	var out []string
	for _, w := range d.Writes() {
		out = append(out, string(w.Data))
	}
	return out
}

// Notify delivers data to the subscriber of the characteristic uuid.
// It reports whether a subscriber received it.
func (d *FakeDevice) Notify(uuid string, data []byte) bool {
	c := d.characteristic(uuid)
	if c == nil {
		return false
	}
	c.mu.Lock()
	h := c.handler
	c.mu.Unlock()
	if h == nil {
		return false
	}
	h(data)
	return true
}

// Subscribed reports whether the characteristic uuid has a subscriber
func (d *FakeDevice) Subscribed(uuid string) bool {
	c := d.characteristic(uuid)
	if c == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handler != nil
}

// DropLink simulates a device-initiated disconnect
func (d *FakeDevice) DropLink() {
	d.mu.Lock()
	conn := d.conn
	d.conn = nil
	d.mu.Unlock()
	if conn != nil {
		conn.cancel(device.ErrNotConnected)
	}
}

func (d *FakeDevice) characteristic(uuid string) *FakeCharacteristic {
	want := device.NormalizeUUID(uuid)
	for _, s := range d.services {
		for _, c := range s.chars {
			if c.uuid == want {
				return c
			}
		}
	}
	return nil
}

func (d *FakeDevice) write(uuid string, data []byte, withResponse bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.conn == nil {
		return device.ErrNotConnected
	}
	if d.writeErr != nil {
		return d.writeErr
	}
	d.writes = append(d.writes, Write{Characteristic: uuid, Data: append([]byte(nil), data...), WithResponse: withResponse})
	return nil
}

// FakeConnection implements device.Connection over the device profile
type FakeConnection struct {
	device *FakeDevice
	ctx    context.Context
	cancel context.CancelCauseFunc
}

func (c *FakeConnection) Services() []device.Service {
	out := make([]device.Service, 0, len(c.device.services))
	for _, s := range c.device.services {
		out = append(out, s)
	}
	return out
}

func (c *FakeConnection) GetService(uuid string) (device.Service, error) {
	want := device.NormalizeUUID(uuid)
	for _, s := range c.device.services {
		if s.uuid == want {
			return s, nil
		}
	}
	return nil, &device.NotFoundError{Resource: "service", UUIDs: []string{want}}
}

func (c *FakeConnection) ConnectionContext() context.Context {
	return c.ctx
}

// FakeService implements device.Service
type FakeService struct {
	uuid  string
	chars []*FakeCharacteristic
}

func (s *FakeService) UUID() string      { return s.uuid }
func (s *FakeService) KnownName() string { return "" }

func (s *FakeService) GetCharacteristics() []device.Characteristic {
	out := make([]device.Characteristic, 0, len(s.chars))
	for _, c := range s.chars {
		out = append(out, c)
	}
	return out
}

// FakeCharacteristic implements device.Characteristic
type FakeCharacteristic struct {
	mu      sync.Mutex
	device  *FakeDevice
	uuid    string
	props   fakeProperties
	handler func([]byte)
}

func (c *FakeCharacteristic) UUID() string                     { return c.uuid }
func (c *FakeCharacteristic) KnownName() string                { return "" }
func (c *FakeCharacteristic) GetProperties() device.Properties { return c.props }

func (c *FakeCharacteristic) Write(data []byte, withResponse bool) error {
	if !device.CanWrite(c.props) {
		return device.ErrUnsupported
	}
	return c.device.write(c.uuid, data, withResponse)
}

func (c *FakeCharacteristic) Subscribe(handler func([]byte)) error {
	if !device.CanNotify(c.props) {
		return device.ErrUnsupported
	}
	if handler == nil {
		return errors.New("nil notification handler")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = handler
	return nil
}

func (c *FakeCharacteristic) Unsubscribe() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = nil
	return nil
}

type fakeProperty struct {
	value int
	name  string
}

func (p fakeProperty) Value() int        { return p.value }
func (p fakeProperty) KnownName() string { return p.name }

type fakeProperties map[string]fakeProperty

func (p fakeProperties) get(name string) device.Property {
	if v, ok := p[name]; ok {
		return v
	}
	return nil
}

func (p fakeProperties) Read() device.Property                 { return p.get("read") }
func (p fakeProperties) Write() device.Property                { return p.get("write") }
func (p fakeProperties) WriteWithoutResponse() device.Property { return p.get("write-without-response") }
func (p fakeProperties) Notify() device.Property               { return p.get("notify") }
func (p fakeProperties) Indicate() device.Property             { return p.get("indicate") }
