package telemetry

import (
	"encoding/binary"

	"github.com/fitwire/fitwire/internal/profiledb"
)

// Decoder turns one notification payload into at most one Metric. The bool
// result reports whether a metric was produced; malformed and uninteresting
// payloads yield false, never an error.
type Decoder func(payload []byte) (Metric, bool)

// DecoderFor returns the decoder registered for a characteristic UUID.
// Characteristics without a decoder (currently CSC Measurement) stay in the
// discovery tables but never subscribe and produce no metrics.
func DecoderFor(charUUID string) (Decoder, bool) {
	switch profiledb.NormalizeUUID(charUUID) {
	case profiledb.CharHeartRateMeasurement:
		return DecodeHeartRateMeasurement, true
	case profiledb.CharCyclingPowerMeasurement:
		return DecodeCyclingPowerMeasurement, true
	default:
		return nil, false
	}
}

// Heart Rate Measurement flags, byte 0 of the payload.
const (
	// BPM size, 0 if u8, 1 if i16
	FlagHeartRateValue16Bit = 1 << 0

	// Two-bit sensor contact field:
	//   00 unsupported
	//   01 unsupported
	//   10 supported, not detected
	//   11 supported, detected
	FlagHeartRateContactMask = (1 << 1) | (1 << 2)

	FlagHeartRateEnergyExpended = 1 << 3
	FlagHeartRateRRInterval     = 1 << 4

	// bits 5-7 reserved
)

// DecodeHeartRateMeasurement parses a Heart Rate Measurement notification
// (characteristic 2a37). Energy-expended and R-R interval fields are flagged
// but trail the heart-rate value, so they are left unparsed.
func DecodeHeartRateMeasurement(payload []byte) (Metric, bool) {
	// malformed
	if len(payload) < 2 {
		return Metric{}, false
	}

	flags := payload[0]
	contact := (flags & FlagHeartRateContactMask) >> 1
	contactSupported := contact&0b10 != 0
	contactDetected := contact&0b01 != 0

	// No use sending this metric if the sensor isn't reading.
	if contactSupported && !contactDetected {
		return Metric{}, false
	}

	value := int(payload[1])
	if flags&FlagHeartRateValue16Bit != 0 {
		if len(payload) < 3 {
			return Metric{}, false
		}
		value = int(int16(binary.LittleEndian.Uint16(payload[1:])))
	}

	return Metric{Kind: KindHeartRate, Value: value}, true
}

// Cycling Power Measurement flags, little-endian u16 at bytes 0-1. Each bit
// gates an optional field after the instantaneous power reading.
const (
	FlagPowerPedalBalance           uint16 = 1 << 0
	FlagPowerPedalBalanceReference  uint16 = 1 << 1
	FlagPowerAccumulatedTorque      uint16 = 1 << 2
	FlagPowerAccumulatedTorqueSrc   uint16 = 1 << 3
	FlagPowerWheelRevolution        uint16 = 1 << 4
	FlagPowerCrankRevolution        uint16 = 1 << 5
	FlagPowerExtremeForceMagnitudes uint16 = 1 << 6
	FlagPowerExtremeTorqueMagnitude uint16 = 1 << 7
	FlagPowerExtremeAngles          uint16 = 1 << 8
	FlagPowerTopDeadSpotAngle       uint16 = 1 << 9
	FlagPowerBottomDeadSpotAngle    uint16 = 1 << 10
	FlagPowerAccumulatedEnergy      uint16 = 1 << 11
	FlagPowerOffsetCompensation     uint16 = 1 << 12

	// bits 13-15 reserved
)

// DecodeCyclingPowerMeasurement parses a Cycling Power Measurement
// notification (characteristic 2a63).
//
// Layout: two flag bytes, followed by a 16-bit signed instantaneous power
// reading in watts. All subsequent fields are optional, gated by the flag
// bits; see PowerTrailingOffset for their widths. None of the optional
// fields feed metrics yet, so the decoder stops after the power reading.
func DecodeCyclingPowerMeasurement(payload []byte) (Metric, bool) {
	// malformed: too short for the flags + power header
	if len(payload) < 4 {
		return Metric{}, false
	}

	watts := int16(binary.LittleEndian.Uint16(payload[2:]))

	// Power meters will send frames even if nothing's happening.
	if watts == 0 {
		return Metric{}, false
	}

	return Metric{Kind: KindCyclingPower, Value: int(watts)}, true
}

// PowerTrailingOffset returns the byte offset just past the optional fields
// gated by flags, counting from the start of a Cycling Power Measurement
// payload. The fixed header (flags + instantaneous power) ends at offset 4;
// pedal power balance adds 1 byte, accumulated torque 2, wheel revolution
// data 6 (u32 cumulative revolutions + u16 event time) and crank revolution
// data 4 (u16 cumulative revolutions + u16 event time).
//
// The offset marks where wheel and crank revolution parsing would resume
// once speed and cadence derivation lands; until then callers only use it
// to validate payload layout.
func PowerTrailingOffset(flags uint16) int {
	offset := 4
	if flags&FlagPowerPedalBalance != 0 {
		offset++
	}
	if flags&FlagPowerAccumulatedTorque != 0 {
		offset += 2
	}
	if flags&FlagPowerWheelRevolution != 0 {
		offset += 4 + 2
	}
	if flags&FlagPowerCrankRevolution != 0 {
		offset += 2 + 2
	}
	return offset
}
