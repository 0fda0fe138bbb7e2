package ble

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"tinygo.org/x/bluetooth"

	"ble-solar-monitor/pkg/config"
	"ble-solar-monitor/pkg/errors"
	"ble-solar-monitor/pkg/logger"
)

// notifyBufferCap bounds the notification channel. The transport pushes
// chunks, the connection manager consumes them; a full channel drops the
// chunk rather than blocking the BLE callback.
const notifyBufferCap = 16

// The host's default adapter is shared by every client and enabled once
var (
	adapter     = bluetooth.DefaultAdapter
	adapterOnce sync.Once
	adapterErr  error
)

func enableAdapter() error {
	adapterOnce.Do(func() {
		adapterErr = adapter.Enable()
	})
	return adapterErr
}

// Client is the GATT transport for one device: a write characteristic
// receiving command frames and ACKs, and a notify characteristic delivering
// response frames split across link-layer packets.
type Client struct {
	name    string
	address string

	serviceUUID bluetooth.UUID
	writeUUID   bluetooth.UUID
	notifyUUID  bluetooth.UUID

	mu         sync.Mutex
	connected  bool
	device     bluetooth.Device
	writeChar  bluetooth.DeviceCharacteristic
	notifyChar bluetooth.DeviceCharacteristic
	notifyCh   chan []byte
}

// NewClient creates a transport for the configured device. The GATT UUIDs
// are parsed eagerly so a config typo fails at startup, not mid-poll.
func NewClient(dev config.Device) (*Client, error) {
	serviceUUID, err := bluetooth.ParseUUID(dev.ServiceUUID)
	if err != nil {
		return nil, fmt.Errorf("device %s: bad service UUID %q: %w", dev.Name, dev.ServiceUUID, err)
	}
	writeUUID, err := bluetooth.ParseUUID(dev.WriteUUID)
	if err != nil {
		return nil, fmt.Errorf("device %s: bad write UUID %q: %w", dev.Name, dev.WriteUUID, err)
	}
	notifyUUID, err := bluetooth.ParseUUID(dev.NotifyUUID)
	if err != nil {
		return nil, fmt.Errorf("device %s: bad notify UUID %q: %w", dev.Name, dev.NotifyUUID, err)
	}

	return &Client{
		name:        dev.Name,
		address:     dev.Address,
		serviceUUID: serviceUUID,
		writeUUID:   writeUUID,
		notifyUUID:  notifyUUID,
	}, nil
}

// Connect scans for the device, opens the link and binds both
// characteristics, subscribing notifications into a fresh bounded channel.
// The caller bounds the whole operation through ctx; a scan that runs out of
// time is a definitive not-found, a connect that runs out of time is a
// retryable timeout.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		return nil
	}

	if err := enableAdapter(); err != nil {
		return errors.NewConnectError(errors.ConnectTransport, "enable adapter", err, c.address)
	}

	addr, err := c.scan(ctx)
	if err != nil {
		return err
	}

	device, err := c.open(ctx, addr)
	if err != nil {
		return err
	}

	writeChar, notifyChar, err := c.discover(device)
	if err != nil {
		_ = device.Disconnect()
		return errors.NewConnectError(errors.ConnectTransport, "discover characteristics", err, c.address)
	}

	notifyCh := make(chan []byte, notifyBufferCap)
	err = notifyChar.EnableNotifications(func(buf []byte) {
		// The stack reuses buf; copy before handing it off
		chunk := make([]byte, len(buf))
		copy(chunk, buf)
		select {
		case notifyCh <- chunk:
		default:
			logger.WithDevice(c.name).Warn("notification buffer full, chunk dropped")
		}
	})
	if err != nil {
		_ = device.Disconnect()
		return errors.NewConnectError(errors.ConnectTransport, "enable notifications", err, c.address)
	}

	c.device = device
	c.writeChar = writeChar
	c.notifyChar = notifyChar
	c.notifyCh = notifyCh
	c.connected = true

	logger.WithDevice(c.name).Debugf("connected to %s", c.address)
	return nil
}

// scan looks for the device's advertisement until ctx expires. Absence from
// scan range is the one failure retrying cannot fix.
func (c *Client) scan(ctx context.Context) (bluetooth.Address, error) {
	found := make(chan bluetooth.Address, 1)
	scanErr := make(chan error, 1)

	go func() {
		err := adapter.Scan(func(a *bluetooth.Adapter, result bluetooth.ScanResult) {
			if strings.EqualFold(result.Address.String(), c.address) {
				select {
				case found <- result.Address:
				default:
				}
				_ = a.StopScan()
			}
		})
		if err != nil {
			scanErr <- err
		}
	}()

	select {
	case addr := <-found:
		return addr, nil
	case err := <-scanErr:
		return bluetooth.Address{}, errors.NewConnectError(errors.ConnectTransport, "scan", err, c.address)
	case <-ctx.Done():
		_ = adapter.StopScan()
		if ctx.Err() == context.DeadlineExceeded {
			return bluetooth.Address{}, errors.NewConnectError(errors.ConnectNotFound, "scan",
				fmt.Errorf("device not seen before scan deadline"), c.address)
		}
		return bluetooth.Address{}, ctx.Err()
	}
}

// open establishes the link, bounded by the remaining ctx budget
func (c *Client) open(ctx context.Context, addr bluetooth.Address) (bluetooth.Device, error) {
	type result struct {
		device bluetooth.Device
		err    error
	}
	done := make(chan result, 1)

	go func() {
		device, err := adapter.Connect(addr, bluetooth.ConnectionParams{})
		done <- result{device, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return bluetooth.Device{}, errors.NewConnectError(errors.ConnectTransport, "connect", r.err, c.address)
		}
		return r.device, nil
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return bluetooth.Device{}, errors.NewConnectError(errors.ConnectTimeout, "connect",
				fmt.Errorf("link establishment exceeded deadline"), c.address)
		}
		return bluetooth.Device{}, ctx.Err()
	}
}

// discover walks all services for the write and notify characteristics.
// Some firmware revisions host them in different services, so the search is
// not limited to the configured service UUID.
func (c *Client) discover(device bluetooth.Device) (writeChar, notifyChar bluetooth.DeviceCharacteristic, err error) {
	services, err := device.DiscoverServices(nil)
	if err != nil {
		return writeChar, notifyChar, fmt.Errorf("discover services: %w", err)
	}

	var haveWrite, haveNotify bool
	for _, svc := range services {
		chars, err := svc.DiscoverCharacteristics(nil)
		if err != nil {
			continue
		}
		for _, char := range chars {
			switch char.UUID() {
			case c.writeUUID:
				writeChar = char
				haveWrite = true
			case c.notifyUUID:
				notifyChar = char
				haveNotify = true
			}
		}
	}

	if !haveWrite {
		return writeChar, notifyChar, fmt.Errorf("write characteristic %s not found", c.writeUUID.String())
	}
	if !haveNotify {
		return writeChar, notifyChar, fmt.Errorf("notify characteristic %s not found", c.notifyUUID.String())
	}
	return writeChar, notifyChar, nil
}

// Write sends raw bytes to the device's write characteristic
func (c *Client) Write(ctx context.Context, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return fmt.Errorf("device %s: not connected", c.name)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := c.writeChar.WriteWithoutResponse(data); err != nil {
		return fmt.Errorf("device %s: write failed: %w", c.name, err)
	}
	return nil
}

// Notifications returns the channel carrying raw notification chunks. The
// channel is replaced on every connect; callers must re-fetch it after a
// reconnect.
func (c *Client) Notifications() <-chan []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.notifyCh
}

// IsConnected reports whether the link is currently open
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Disconnect releases the link. Idempotent: calling it on an already
// disconnected client is a no-op, never an error.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return nil
	}
	c.connected = false

	// Best effort: stop notifications before dropping the link
	_ = c.notifyChar.EnableNotifications(nil)
	if err := c.device.Disconnect(); err != nil {
		logger.WithDevice(c.name).Debugf("disconnect: %v", err)
	}

	logger.WithDevice(c.name).Debug("disconnected")
	return nil
}
