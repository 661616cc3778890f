// Package telemetry turns raw GATT notification payloads from fitness
// sensors into typed metrics and fans them out to consumers.
//
// Decoders are pure functions over a single notification payload. A decoder
// produces at most one Metric; payloads that are malformed or carry no
// useful reading (idle zero-power frames, a heart-rate strap without skin
// contact) produce nothing and are not errors.
//
// MetricSource binds one remote characteristic to the decoder dispatch and
// delivers every decoded metric to each registered sink with blocking
// hand-off semantics: a stalled consumer stalls further delivery for that
// characteristic instead of dropping readings.
package telemetry
