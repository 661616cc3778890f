package gatt

import (
	"fmt"

	"github.com/fitwire/fitwire/internal/profiledb"
)

// NormalizeUUID is re-exported from profiledb for convenience.
// It converts a UUID string to the internal BLE library format (lowercase,
// no dashes), stripping any 0x prefix and reducing Bluetooth SIG base UUIDs
// to their 16-bit short form.
func NormalizeUUID(uuid string) string {
	return profiledb.NormalizeUUID(uuid)
}

// NormalizeUUIDs is re-exported from profiledb for convenience.
func NormalizeUUIDs(uuids []string) []string {
	return profiledb.NormalizeUUIDs(uuids)
}

// ValidateUUID validates that UUID strings are non-empty and well-formed.
// Returns normalized UUID strings or an error.
func ValidateUUID(uuids ...string) ([]string, error) {
	if len(uuids) == 0 {
		return nil, fmt.Errorf("at least one UUID is required")
	}

	result := make([]string, 0, len(uuids))
	for i, uuid := range uuids {
		if uuid == "" {
			return nil, fmt.Errorf("UUID at index %d cannot be empty", i)
		}
		normalized := NormalizeUUID(uuid)
		if normalized == "" {
			return nil, fmt.Errorf("invalid UUID format at index %d: %s", i, uuid)
		}
		result = append(result, normalized)
	}
	return result, nil
}
