// Package goble implements the gatt transport interfaces on top of
// github.com/go-ble/ble.
package goble

import (
	"context"
	"fmt"

	"github.com/go-ble/ble"

	"github.com/fitwire/fitwire/internal/gatt"
)

// DeviceFactory creates ble.Device instances (can be overridden in tests).
// The default builds the platform HCI device, see device_linux.go and
// device_darwin.go.
var DeviceFactory = func() (ble.Device, error) {
	return newDefaultDevice()
}

// bleScanner wraps ble.Device to implement the gatt.Scanner interface
type bleScanner struct {
	dev ble.Device
}

// NewScanner creates a gatt.Scanner instance for BLE scanning operations.
func NewScanner() (gatt.Scanner, error) {
	dev, err := DeviceFactory()
	if err != nil {
		return nil, NormalizeError(err)
	}
	return &bleScanner{dev: dev}, nil
}

// Scan wraps the raw ble.Device.Scan to convert ble.Advertisement values to
// the gatt.Advertisement interface.
func (s *bleScanner) Scan(ctx context.Context, allowDup bool, handler func(gatt.Advertisement)) error {
	bleHandler := func(adv ble.Advertisement) {
		handler(newAdvertisement(adv))
	}
	if err := s.dev.Scan(ctx, allowDup, bleHandler); err != nil {
		return NormalizeError(err)
	}
	return nil
}

// bleDialer connects to peripherals through the process-wide default device.
type bleDialer struct {
	dev ble.Device
}

// NewDialer creates a gatt.Dialer backed by a freshly enabled HCI device.
// The device is registered as the ble package default, so a process should
// construct at most one dialer.
func NewDialer() (gatt.Dialer, error) {
	dev, err := DeviceFactory()
	if err != nil {
		return nil, NormalizeError(err)
	}
	ble.SetDefaultDevice(dev)
	return &bleDialer{dev: dev}, nil
}

// Dial connects to the peripheral at addr. The caller bounds the attempt
// through ctx; cancellation aborts the in-flight connect.
func (d *bleDialer) Dial(ctx context.Context, addr string) (gatt.Peripheral, error) {
	client, err := ble.Dial(ctx, ble.NewAddr(addr))
	if err != nil {
		return nil, NormalizeError(err)
	}
	return &blePeripheral{addr: addr, client: client}, nil
}

// blePeripheral adapts ble.Client to gatt.Peripheral
type blePeripheral struct {
	addr   string
	client ble.Client
}

func (p *blePeripheral) Address() string {
	return p.addr
}

func (p *blePeripheral) DiscoverServices(uuids []string) ([]gatt.RemoteService, error) {
	filter, err := parseUUIDs(uuids)
	if err != nil {
		return nil, err
	}
	svcs, err := p.client.DiscoverServices(filter)
	if err != nil {
		return nil, NormalizeError(err)
	}
	result := make([]gatt.RemoteService, 0, len(svcs))
	for _, svc := range svcs {
		result = append(result, &bleService{client: p.client, svc: svc})
	}
	return result, nil
}

func (p *blePeripheral) Disconnected() <-chan struct{} {
	return p.client.Disconnected()
}

func (p *blePeripheral) Close() error {
	return NormalizeError(p.client.CancelConnection())
}

// bleService adapts *ble.Service to gatt.RemoteService
type bleService struct {
	client ble.Client
	svc    *ble.Service
}

func (s *bleService) UUID() string {
	return gatt.NormalizeUUID(s.svc.UUID.String())
}

func (s *bleService) DiscoverCharacteristics(uuids []string) ([]gatt.RemoteCharacteristic, error) {
	filter, err := parseUUIDs(uuids)
	if err != nil {
		return nil, err
	}
	chars, err := s.client.DiscoverCharacteristics(filter, s.svc)
	if err != nil {
		return nil, NormalizeError(err)
	}
	result := make([]gatt.RemoteCharacteristic, 0, len(chars))
	for _, char := range chars {
		result = append(result, &bleCharacteristic{client: s.client, char: char})
	}
	return result, nil
}

// bleCharacteristic adapts *ble.Characteristic to gatt.RemoteCharacteristic
type bleCharacteristic struct {
	client ble.Client
	char   *ble.Characteristic
}

func (c *bleCharacteristic) UUID() string {
	return gatt.NormalizeUUID(c.char.UUID.String())
}

func (c *bleCharacteristic) Subscribe(handler func(payload []byte)) error {
	return NormalizeError(c.client.Subscribe(c.char, false, handler))
}

func (c *bleCharacteristic) Unsubscribe() error {
	return NormalizeError(c.client.Unsubscribe(c.char, false))
}

// parseUUIDs converts a normalized string filter to the ble.UUID slice the
// library expects. A nil or empty input stays nil, which go-ble treats as
// "discover everything".
func parseUUIDs(uuids []string) ([]ble.UUID, error) {
	if len(uuids) == 0 {
		return nil, nil
	}
	filter := make([]ble.UUID, 0, len(uuids))
	for _, u := range uuids {
		parsed, err := ble.Parse(u)
		if err != nil {
			return nil, fmt.Errorf("invalid UUID %q: %w", u, err)
		}
		filter = append(filter, parsed)
	}
	return filter, nil
}
