package gatt

import (
	"context"
	"time"
)

// DefaultDialTimeout bounds a single connection attempt. Retrying callers
// apply it per attempt, not per address.
const DefaultDialTimeout = 30 * time.Second

// Advertisement is a single received BLE advertisement.
type Advertisement interface {
	LocalName() string
	Services() []string
	RSSI() int
	Addr() string
	Connectable() bool
}

// Scanner performs passive BLE discovery, invoking handler once per
// received advertisement. Scan blocks until ctx is cancelled or the
// underlying stack fails.
type Scanner interface {
	Scan(ctx context.Context, allowDup bool, handler func(Advertisement)) error
}

// Dialer establishes connections to peripherals by address.
type Dialer interface {
	Dial(ctx context.Context, addr string) (Peripheral, error)
}

// Peripheral is a connected remote device.
type Peripheral interface {
	// Address returns the address the peripheral was dialed with.
	Address() string

	// DiscoverServices probes the peripheral for the given service UUIDs
	// and returns the ones it actually hosts. An empty filter discovers
	// everything.
	DiscoverServices(uuids []string) ([]RemoteService, error)

	// Disconnected returns a channel that closes when the underlying
	// connection is lost for any reason.
	Disconnected() <-chan struct{}

	// Close tears the connection down.
	Close() error
}

// RemoteService is a GATT service hosted by a connected peripheral.
type RemoteService interface {
	UUID() string

	// DiscoverCharacteristics probes the service for the given
	// characteristic UUIDs and returns the ones present. An empty filter
	// discovers everything.
	DiscoverCharacteristics(uuids []string) ([]RemoteCharacteristic, error)
}

// RemoteCharacteristic is a GATT characteristic on a connected peripheral.
type RemoteCharacteristic interface {
	UUID() string

	// Subscribe enables notifications and invokes handler on the
	// transport callback goroutine for every value update. The payload
	// slice is only valid for the duration of the call.
	Subscribe(handler func(payload []byte)) error

	// Unsubscribe disables notifications previously enabled by Subscribe.
	Unsubscribe() error
}
