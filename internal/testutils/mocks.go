package testutils

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/fitwire/fitwire/internal/gatt"
)

// Mock implementations of the gatt transport interfaces, built on
// testify/mock so tests can assert call counts and argument values.

// MockScanner mocks gatt.Scanner.
type MockScanner struct {
	mock.Mock
}

func (m *MockScanner) Scan(ctx context.Context, allowDup bool, handler func(gatt.Advertisement)) error {
	args := m.Called(ctx, allowDup, handler)
	return args.Error(0)
}

// MockDialer mocks gatt.Dialer.
type MockDialer struct {
	mock.Mock
}

func (m *MockDialer) Dial(ctx context.Context, addr string) (gatt.Peripheral, error) {
	args := m.Called(ctx, addr)
	if p := args.Get(0); p != nil {
		return p.(gatt.Peripheral), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockPeripheral mocks gatt.Peripheral.
type MockPeripheral struct {
	mock.Mock
}

func (m *MockPeripheral) Address() string {
	return m.Called().String(0)
}

func (m *MockPeripheral) DiscoverServices(uuids []string) ([]gatt.RemoteService, error) {
	args := m.Called(uuids)
	if svcs := args.Get(0); svcs != nil {
		return svcs.([]gatt.RemoteService), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockPeripheral) Disconnected() <-chan struct{} {
	return m.Called().Get(0).(<-chan struct{})
}

func (m *MockPeripheral) Close() error {
	return m.Called().Error(0)
}

// MockService mocks gatt.RemoteService.
type MockService struct {
	mock.Mock
}

func (m *MockService) UUID() string {
	return m.Called().String(0)
}

func (m *MockService) DiscoverCharacteristics(uuids []string) ([]gatt.RemoteCharacteristic, error) {
	args := m.Called(uuids)
	if chars := args.Get(0); chars != nil {
		return chars.([]gatt.RemoteCharacteristic), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockCharacteristic mocks gatt.RemoteCharacteristic. It captures the
// handler passed to Subscribe so tests can push synthetic notifications
// through Notify, mimicking the transport callback goroutine.
type MockCharacteristic struct {
	mock.Mock

	mu      sync.Mutex
	handler func(payload []byte)
}

func (m *MockCharacteristic) UUID() string {
	return m.Called().String(0)
}

func (m *MockCharacteristic) Subscribe(handler func(payload []byte)) error {
	args := m.Called(handler)
	if args.Error(0) == nil {
		m.mu.Lock()
		m.handler = handler
		m.mu.Unlock()
	}
	return args.Error(0)
}

func (m *MockCharacteristic) Unsubscribe() error {
	args := m.Called()
	if args.Error(0) == nil {
		m.mu.Lock()
		m.handler = nil
		m.mu.Unlock()
	}
	return args.Error(0)
}

// Notify delivers payload to the handler captured by the last successful
// Subscribe call. Returns false if no subscription is active.
func (m *MockCharacteristic) Notify(payload []byte) bool {
	m.mu.Lock()
	handler := m.handler
	m.mu.Unlock()

	if handler == nil {
		return false
	}
	handler(payload)
	return true
}

// Compile-time interface checks.
var (
	_ gatt.Scanner              = (*MockScanner)(nil)
	_ gatt.Dialer               = (*MockDialer)(nil)
	_ gatt.Peripheral           = (*MockPeripheral)(nil)
	_ gatt.RemoteService        = (*MockService)(nil)
	_ gatt.RemoteCharacteristic = (*MockCharacteristic)(nil)
)
