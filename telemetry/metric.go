package telemetry

import "fmt"

// Kind identifies the physical quantity a Metric carries.
type Kind int

const (
	KindHeartRate Kind = iota
	KindCyclingPower
	KindCyclingSpeed
	KindCyclingCadence
)

// String returns the human-readable metric name.
func (k Kind) String() string {
	switch k {
	case KindHeartRate:
		return "heart_rate"
	case KindCyclingPower:
		return "cycling_power"
	case KindCyclingSpeed:
		return "cycling_speed"
	case KindCyclingCadence:
		return "cycling_cadence"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Unit returns the display unit for the kind.
func (k Kind) Unit() string {
	switch k {
	case KindHeartRate:
		return "bpm"
	case KindCyclingPower:
		return "W"
	case KindCyclingSpeed:
		return "km/h"
	case KindCyclingCadence:
		return "rpm"
	default:
		return ""
	}
}

// MarshalJSON encodes the kind as its string name.
func (k Kind) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%q", k.String())), nil
}

// Metric is a single decoded sensor reading. Values are immutable once
// produced; every metric originates from exactly one decoder invocation.
type Metric struct {
	Kind  Kind `json:"kind"`
	Value int  `json:"value"`
}

// String renders the metric for line-oriented output, e.g. "heart_rate: 72 bpm".
func (m Metric) String() string {
	return fmt.Sprintf("%s: %d %s", m.Kind, m.Value, m.Kind.Unit())
}
