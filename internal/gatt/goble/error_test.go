package goble

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fitwire/fitwire/internal/gatt"
)

// TestNormalizeError verifies mapping of raw go-ble error strings to the
// gatt sentinel errors
func TestNormalizeError(t *testing.T) {
	tests := []struct {
		name     string
		input    error
		sentinel error
	}{
		{
			name:     "CoreBluetooth powered-off state",
			input:    errors.New("central manager has invalid state: have=4 want=5: is Bluetooth turned on?"),
			sentinel: gatt.ErrBluetoothOff,
		},
		{
			name:     "HCI init failure",
			input:    errors.New("can't init hci: no devices available"),
			sentinel: gatt.ErrBluetoothOff,
		},
		{
			name:     "not connected",
			input:    errors.New("Device not connected"),
			sentinel: gatt.ErrNotConnected,
		},
		{
			name:     "disconnected mid-operation",
			input:    errors.New("peer disconnected unexpectedly"),
			sentinel: gatt.ErrNotConnected,
		},
		{
			name:     "already connected",
			input:    errors.New("device already connected"),
			sentinel: gatt.ErrAlreadyConnected,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NormalizeError(tt.input)
			assert.True(t, errors.Is(err, tt.sentinel), "expected %v to map to %v", tt.input, tt.sentinel)
			// Original message must survive wrapping
			assert.Contains(t, err.Error(), tt.input.Error())
		})
	}
}

// TestNormalizeErrorPassthrough verifies unknown and nil errors are returned untouched
func TestNormalizeErrorPassthrough(t *testing.T) {
	assert.NoError(t, NormalizeError(nil))

	plain := errors.New("ATT request failed")
	assert.Equal(t, plain, NormalizeError(plain))

	// Context errors pass through so callers can detect clean cancellation
	assert.Equal(t, context.Canceled, NormalizeError(context.Canceled))
}

// TestParseUUIDs verifies filter conversion and the empty-filter passthrough
func TestParseUUIDs(t *testing.T) {
	filter, err := parseUUIDs([]string{"180d", "2a37"})
	assert.NoError(t, err)
	assert.Len(t, filter, 2)
	assert.Equal(t, "180d", filter[0].String())

	filter, err = parseUUIDs(nil)
	assert.NoError(t, err)
	assert.Nil(t, filter)

	_, err = parseUUIDs([]string{"not-a-uuid"})
	assert.Error(t, err)
}
