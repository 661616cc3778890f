// Package gatt defines the transport boundary between the telemetry
// aggregator and the underlying Bluetooth Low Energy stack.
//
// The interfaces here cover exactly the operations the aggregator needs:
//   - Passive advertisement scanning with a per-result callback
//   - Connecting to a peripheral by address
//   - Service discovery restricted to a UUID set
//   - Characteristic discovery restricted to a UUID set
//   - Notification subscription and unsubscription
//
// Production code obtains implementations from the goble subpackage;
// tests substitute mocks. Errors surfaced by implementations are
// normalized to the sentinel values declared in this package so callers
// can branch with errors.Is regardless of the stack in use.
package gatt
