package main

import (
	"errors"

	"github.com/fitwire/fitwire/internal/gatt"
)

// FormatUserError maps transport errors to actionable messages. Anything
// unrecognized passes through as-is.
func FormatUserError(err error) string {
	switch {
	case errors.Is(err, gatt.ErrBluetoothOff):
		return "Bluetooth is powered off - turn it on and retry"
	case errors.Is(err, gatt.ErrTimeout):
		return "the device did not respond in time - check that it is powered on and in range"
	case errors.Is(err, gatt.ErrUnsupported):
		return "the adapter or device does not support this operation"
	case errors.Is(err, gatt.ErrNotConnected):
		return "the device is not connected"
	default:
		return err.Error()
	}
}
