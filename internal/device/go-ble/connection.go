package goble

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"
	"github.com/srg/stillmon/internal/device"
	"github.com/srg/stillmon/internal/groutine"
)

const (
	// DefaultBLEWriteChunkSize is the maximum number of bytes to write in a single BLE operation.
	// BLE 4.0/4.1 defines ATT_MTU of 23 bytes (20 bytes payload after ATT header overhead).
	DefaultBLEWriteChunkSize = 20

	// DefaultBLEWriteDelay is the delay between consecutive write chunks.
	DefaultBLEWriteDelay = 10 * time.Millisecond
)

// gattClient is the part of ble.Client a connection drives
type gattClient interface {
	DiscoverProfile(force bool) (*ble.Profile, error)
	WriteCharacteristic(c *ble.Characteristic, value []byte, noRsp bool) error
	Subscribe(c *ble.Characteristic, ind bool, h ble.NotificationHandler) error
	Unsubscribe(c *ble.Characteristic, ind bool) error
	CancelConnection() error
}

// Dial opens a GATT client to the given address (can be overridden in tests)
var Dial = func(ctx context.Context, address string) (gattClient, error) {
	if _, err := HostDevice(); err != nil {
		return nil, err
	}
	client, err := ble.Dial(ctx, ble.NewAddr(address))
	if err != nil {
		return nil, err
	}
	return client, nil
}

// BLEConnection represents a live BLE connection (notifications, writes)
type BLEConnection struct {
	client      gattClient
	logger      *logrus.Logger
	writeMutex  sync.Mutex
	connMutex   sync.RWMutex
	isConnected bool

	services []*BLEService

	ctx    context.Context
	cancel context.CancelCauseFunc
}

func NewBLEConnection(logger *logrus.Logger) *BLEConnection {
	if logger == nil {
		logger = logrus.New()
	}
	return &BLEConnection{
		ctx:    context.Background(),
		logger: logger,
	}
}

// Connect establishes a BLE connection and discovers the GATT profile
func (c *BLEConnection) Connect(ctx context.Context, address string, opts *device.ConnectOptions) error {
	c.connMutex.Lock()
	defer c.connMutex.Unlock()

	if strings.TrimSpace(address) == "" {
		c.logger.Error("Connection attempt with empty address")
		return fmt.Errorf("device address is empty")
	}

	if c.isConnectedInternal() {
		c.logger.WithField("address", address).Warn("Connection attempt while already connected")
		return device.ErrAlreadyConnected
	}

	c.logger.WithFields(logrus.Fields{
		"address": address,
		"timeout": opts.ConnectTimeout,
	}).Info("Connecting to BLE device...")

	connCtx := ctx
	if opts.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		connCtx, cancel = context.WithTimeout(ctx, opts.ConnectTimeout)
		defer cancel()
	}

	c.logger.WithField("address", address).Debug("Dialing BLE device...")
	client, err := Dial(connCtx, address)
	if err != nil {
		c.logger.WithFields(logrus.Fields{
			"address": address,
			"error":   err,
		}).Error("Failed to dial BLE device")
		return fmt.Errorf("failed to connect to device with address %q: %w", address, NormalizeError(err))
	}

	c.logger.WithField("address", address).Debug("Discovering services and characteristics...")
	profile, err := client.DiscoverProfile(true)
	if err != nil {
		c.logger.WithFields(logrus.Fields{
			"address": address,
			"error":   err,
		}).Error("Failed to discover profile")
		if cancelErr := client.CancelConnection(); cancelErr != nil {
			c.logger.WithField("cancel_error", cancelErr).Warn("Failed to cancel connection during profile discovery failure")
		}
		return fmt.Errorf("failed to discover profile: %w", NormalizeError(err))
	}

	services := make([]*BLEService, 0, len(profile.Services))
	totalChars := 0
	for _, s := range profile.Services {
		svc := newService(s, c)
		totalChars += len(svc.Characteristics)
		services = append(services, svc)
		c.logger.WithFields(logrus.Fields{
			"service_uuid":    svc.uuid,
			"characteristics": len(svc.Characteristics),
		}).Debug("Found service")
	}

	c.client = client
	c.services = services
	c.isConnected = true
	c.ctx, c.cancel = context.WithCancelCause(context.Background())

	// Watch for device-initiated disconnects when the platform client reports them
	if watcher, ok := client.(interface{ Disconnected() <-chan struct{} }); ok {
		linkCtx, cancel := c.ctx, c.cancel
		groutine.Go(context.Background(), "ble-connection-monitor", func(context.Context) {
			select {
			case <-watcher.Disconnected():
				c.logger.WithField("address", address).Warn("Peripheral reported disconnection, cancelling connection context")
				cancel(device.ErrNotConnected)
			case <-linkCtx.Done():
			}
		})
	} else {
		c.logger.Debug("Client does not report disconnections, link loss surfaces on the next write")
	}

	c.logger.WithFields(logrus.Fields{
		"address":         address,
		"services":        len(services),
		"characteristics": totalChars,
	}).Info("BLE device connected successfully")
	return nil
}

// Disconnect unsubscribes every active characteristic and releases the link
func (c *BLEConnection) Disconnect() error {
	c.connMutex.Lock()
	if !c.isConnectedInternal() {
		c.connMutex.Unlock()
		c.logger.Debug("Disconnect called but already disconnected")
		return nil
	}

	c.logger.WithField("services", len(c.services)).Info("Disconnecting BLE device...")

	client := c.client
	cancel := c.cancel
	services := c.services

	c.client = nil
	c.cancel = nil
	c.isConnected = false
	c.connMutex.Unlock()

	if cancel != nil {
		cancel(nil)
	}

	var unsubscribeErrors []string
	for _, svc := range services {
		for _, char := range svc.Characteristics {
			wasSubscribed, ind := char.release()
			if !wasSubscribed {
				continue
			}
			if err := NormalizeError(client.Unsubscribe(char.BLEChar, ind)); err != nil {
				unsubscribeErrors = append(unsubscribeErrors, fmt.Sprintf("%s: %v", char.uuid, err))
			}
		}
	}
	if len(unsubscribeErrors) > 0 {
		c.logger.WithField("errors", strings.Join(unsubscribeErrors, "; ")).Warn("Failed to unsubscribe from some characteristics during disconnect")
	}

	disconnectErr := NormalizeError(client.CancelConnection())
	if disconnectErr != nil {
		c.logger.WithField("error", disconnectErr).Warn("BLE device disconnected with errors")
	} else {
		c.logger.Info("BLE device disconnected successfully")
	}
	return disconnectErr
}

// isConnectedInternal checks the connection status without acquiring locks.
// Should only be called when the caller already holds connMutex.
func (c *BLEConnection) isConnectedInternal() bool {
	return c.client != nil && c.isConnected
}

func (c *BLEConnection) IsConnected() bool {
	c.connMutex.RLock()
	defer c.connMutex.RUnlock()
	return c.isConnectedInternal()
}

// Services returns all discovered services in GATT order
func (c *BLEConnection) Services() []device.Service {
	c.connMutex.RLock()
	defer c.connMutex.RUnlock()

	result := make([]device.Service, 0, len(c.services))
	for _, s := range c.services {
		result = append(result, s)
	}
	return result
}

// GetService retrieves a specific service by its UUID.
// The UUID is normalized for consistent lookup (lowercase, no dashes).
func (c *BLEConnection) GetService(uuid string) (device.Service, error) {
	c.connMutex.RLock()
	defer c.connMutex.RUnlock()

	normalized := device.NormalizeUUID(uuid)
	for _, s := range c.services {
		if s.uuid == normalized {
			return s, nil
		}
	}
	return nil, &device.NotFoundError{Resource: "service", UUIDs: []string{uuid}}
}

// ConnectionContext returns the connection context that is cancelled when the connection
// is lost or disconnected.
func (c *BLEConnection) ConnectionContext() context.Context {
	c.connMutex.RLock()
	defer c.connMutex.RUnlock()
	return c.ctx
}

func (c *BLEConnection) liveClient() (gattClient, error) {
	c.connMutex.RLock()
	defer c.connMutex.RUnlock()

	if !c.isConnectedInternal() {
		return nil, device.ErrNotConnected
	}
	return c.client, nil
}

func (c *BLEConnection) write(char *BLECharacteristic, data []byte, withResponse bool) error {
	client, err := c.liveClient()
	if err != nil {
		return err
	}

	c.writeMutex.Lock()
	defer c.writeMutex.Unlock()

	for len(data) > 0 {
		chunkSize := min(len(data), DefaultBLEWriteChunkSize)
		chunk := data[:chunkSize]
		data = data[chunkSize:]

		if err := client.WriteCharacteristic(char.BLEChar, chunk, !withResponse); err != nil {
			return fmt.Errorf("failed to write to characteristic %s: %w", char.uuid, NormalizeError(err))
		}

		c.logger.WithFields(logrus.Fields{
			"char_uuid": char.uuid,
			"bytes":     len(chunk),
		}).Debug("Wrote chunk to device")

		if len(data) > 0 {
			time.Sleep(DefaultBLEWriteDelay)
		}
	}
	return nil
}

func (c *BLEConnection) subscribe(char *BLECharacteristic, ind bool) error {
	client, err := c.liveClient()
	if err != nil {
		return err
	}
	if err := client.Subscribe(char.BLEChar, ind, char.deliver); err != nil {
		return fmt.Errorf("failed to subscribe to characteristic %s: %w", char.uuid, NormalizeError(err))
	}
	c.logger.WithFields(logrus.Fields{
		"char_uuid": char.uuid,
		"indicate":  ind,
	}).Debug("Subscribed to characteristic")
	return nil
}

func (c *BLEConnection) unsubscribe(char *BLECharacteristic, ind bool) error {
	client, err := c.liveClient()
	if err != nil {
		// Link already gone, nothing left to unsubscribe from
		return nil
	}
	if err := client.Unsubscribe(char.BLEChar, ind); err != nil {
		return fmt.Errorf("failed to unsubscribe from characteristic %s: %w", char.uuid, NormalizeError(err))
	}
	return nil
}
