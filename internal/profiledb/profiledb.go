// Package profiledb holds the static GATT profile tables the aggregator
// understands: fitness service UUIDs, the characteristics worth subscribing
// to within each service, and human-readable names for both.
//
// Tables are modeled as an immutable DB value constructed once and passed by
// reference into the components that need it. Nothing mutates a DB after
// construction, so lookups are safe from any goroutine without locking.
package profiledb

import (
	"fmt"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Assigned numbers from the Bluetooth SIG GATT specification, in normalized
// short form (lowercase, no dashes).
const (
	ServiceHeartRate           = "180d"
	ServiceCyclingPower        = "1818"
	ServiceCyclingSpeedCadence = "1816"

	CharHeartRateMeasurement    = "2a37"
	CharCyclingPowerMeasurement = "2a63"
	CharCSCMeasurement          = "2a5b"
)

// sigBaseSuffix is the tail of the Bluetooth SIG base UUID
// (0000xxxx-0000-1000-8000-00805f9b34fb) after normalization.
const sigBaseSuffix = "00001000800000805f9b34fb"

// DB is an immutable set of profile lookup tables.
type DB struct {
	serviceNames        map[string]string
	characteristicNames map[string]string

	// interests maps each known service to the ordered list of
	// characteristics to probe during discovery. Insertion order is
	// preserved so discovery requests and reports stay stable across runs.
	interests *orderedmap.OrderedMap[string, []string]
}

var defaultDB = newFitnessDB()

// Default returns the built-in fitness profile tables (Heart Rate, Cycling
// Power, Cycling Speed and Cadence). The same value is returned on every
// call; callers must treat it as read-only.
func Default() *DB {
	return defaultDB
}

func newFitnessDB() *DB {
	interests := orderedmap.New[string, []string]()
	interests.Set(ServiceHeartRate, []string{CharHeartRateMeasurement})
	interests.Set(ServiceCyclingPower, []string{CharCyclingPowerMeasurement})
	interests.Set(ServiceCyclingSpeedCadence, []string{CharCSCMeasurement})

	return &DB{
		serviceNames: map[string]string{
			ServiceHeartRate:           "Heart Rate",
			ServiceCyclingPower:        "Cycling Power",
			ServiceCyclingSpeedCadence: "Cycling Speed and Cadence",
		},
		characteristicNames: map[string]string{
			CharHeartRateMeasurement:    "Heart Rate Measurement",
			CharCyclingPowerMeasurement: "Cycling Power Measurement",
			CharCSCMeasurement:          "CSC Measurement",
		},
		interests: interests,
	}
}

// NormalizeUUID converts a UUID string to the internal BLE library format
// (lowercase, no dashes or braces). A 0x prefix is stripped (e.g. "0x2a37"
// -> "2a37"). Full 128-bit UUIDs in the Bluetooth SIG base format are
// reduced to their 16-bit short form.
func NormalizeUUID(uuid string) string {
	u := strings.ToLower(strings.TrimSpace(uuid))
	u = strings.TrimPrefix(u, "0x")
	u = strings.NewReplacer("-", "", "{", "", "}", "").Replace(u)
	if len(u) == 32 && strings.HasPrefix(u, "0000") && strings.HasSuffix(u, sigBaseSuffix) {
		return u[4:8]
	}
	return u
}

// NormalizeUUIDs normalizes a slice of UUID strings to internal format.
func NormalizeUUIDs(uuids []string) []string {
	result := make([]string, len(uuids))
	for i, u := range uuids {
		result[i] = NormalizeUUID(u)
	}
	return result
}

// ServiceName returns the display name for a service UUID. Unknown UUIDs
// yield "unknown:<uuid>" rather than an error so callers can always render
// something.
func (db *DB) ServiceName(uuid string) string {
	normalized := NormalizeUUID(uuid)
	if name, ok := db.serviceNames[normalized]; ok {
		return name
	}
	return fmt.Sprintf("unknown:%s", normalized)
}

// CharacteristicName returns the display name for a characteristic UUID,
// with the same "unknown:<uuid>" fallback as ServiceName.
func (db *DB) CharacteristicName(uuid string) string {
	normalized := NormalizeUUID(uuid)
	if name, ok := db.characteristicNames[normalized]; ok {
		return name
	}
	return fmt.Sprintf("unknown:%s", normalized)
}

// KnownService reports whether the UUID names a service the aggregator
// subscribes to.
func (db *DB) KnownService(uuid string) bool {
	_, ok := db.interests.Get(NormalizeUUID(uuid))
	return ok
}

// ServiceUUIDs returns all known service UUIDs in table order. The result
// is a fresh slice; callers may mutate it freely.
func (db *DB) ServiceUUIDs() []string {
	uuids := make([]string, 0, db.interests.Len())
	for pair := db.interests.Oldest(); pair != nil; pair = pair.Next() {
		uuids = append(uuids, pair.Key)
	}
	return uuids
}

// InterestSet returns the ordered characteristic UUIDs to probe within the
// given service, or nil for services outside the tables.
func (db *DB) InterestSet(serviceUUID string) []string {
	chars, ok := db.interests.Get(NormalizeUUID(serviceUUID))
	if !ok {
		return nil
	}
	result := make([]string, len(chars))
	copy(result, chars)
	return result
}
