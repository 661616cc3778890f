//go:build darwin

package goble

import (
	"github.com/go-ble/ble"
	"github.com/go-ble/ble/darwin"
)

// newDefaultDevice builds a CoreBluetooth-backed device.
func newDefaultDevice() (ble.Device, error) {
	return darwin.NewDevice()
}
