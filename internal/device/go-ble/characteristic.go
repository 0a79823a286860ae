package goble

import (
	"fmt"
	"sync"

	"github.com/go-ble/ble"
	"github.com/srg/stillmon/internal/bledb"
	"github.com/srg/stillmon/internal/device"
)

// BLECharacteristic is a discovered characteristic bound to its parent connection
type BLECharacteristic struct {
	uuid       string
	knownName  string
	properties device.Properties
	BLEChar    *ble.Characteristic
	connection *BLEConnection

	mu         sync.RWMutex
	handler    func([]byte)
	subscribed bool
	indicate   bool
}

func NewCharacteristic(c *ble.Characteristic, conn *BLEConnection) *BLECharacteristic {
	rawUUID := c.UUID.String()

	return &BLECharacteristic{
		uuid:       device.NormalizeUUID(rawUUID),
		knownName:  bledb.LookupCharacteristic(rawUUID),
		BLEChar:    c,
		properties: NewProperties(c.Property),
		connection: conn,
	}
}

func (c *BLECharacteristic) UUID() string {
	return c.uuid
}

func (c *BLECharacteristic) KnownName() string {
	return c.knownName
}

func (c *BLECharacteristic) GetProperties() device.Properties {
	return c.properties
}

// Write sends data to the characteristic, split into ATT-sized chunks
func (c *BLECharacteristic) Write(data []byte, withResponse bool) error {
	return c.connection.write(c, data, withResponse)
}

// Subscribe enables notifications (or indications when notify is unsupported) and routes
// every payload to handler. A second Subscribe replaces the handler.
func (c *BLECharacteristic) Subscribe(handler func(data []byte)) error {
	if handler == nil {
		return fmt.Errorf("notification handler is nil")
	}

	var ind bool
	switch {
	case c.properties.Notify() != nil:
		ind = false
	case c.properties.Indicate() != nil:
		ind = true
	default:
		return fmt.Errorf("characteristic %s does not support notifications: %w", c.uuid, device.ErrUnsupported)
	}

	c.mu.Lock()
	c.handler = handler
	already := c.subscribed
	c.mu.Unlock()

	if already {
		return nil
	}

	if err := c.connection.subscribe(c, ind); err != nil {
		c.mu.Lock()
		c.handler = nil
		c.mu.Unlock()
		return err
	}

	c.mu.Lock()
	c.subscribed = true
	c.indicate = ind
	c.mu.Unlock()
	return nil
}

// Unsubscribe disables notifications and drops the handler
func (c *BLECharacteristic) Unsubscribe() error {
	c.mu.Lock()
	if !c.subscribed {
		c.handler = nil
		c.mu.Unlock()
		return nil
	}
	ind := c.indicate
	c.subscribed = false
	c.handler = nil
	c.mu.Unlock()

	return c.connection.unsubscribe(c, ind)
}

// deliver copies the payload out of the go-ble buffer before handing it to the handler
func (c *BLECharacteristic) deliver(data []byte) {
	c.mu.RLock()
	h := c.handler
	c.mu.RUnlock()

	if h == nil {
		return
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	h(buf)
}

// release forgets subscription state after the link is gone
func (c *BLECharacteristic) release() (wasSubscribed, ind bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	wasSubscribed, ind = c.subscribed, c.indicate
	c.subscribed = false
	c.handler = nil
	return wasSubscribed, ind
}
