//go:build linux

package goble

import (
	"github.com/go-ble/ble"
	"github.com/go-ble/ble/linux"
)

// newDefaultDevice opens the first available HCI device.
func newDefaultDevice() (ble.Device, error) {
	return linux.NewDevice()
}
