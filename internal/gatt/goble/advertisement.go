package goble

import (
	"github.com/go-ble/ble"

	"github.com/fitwire/fitwire/internal/gatt"
)

// bleAdvertisement wraps ble.Advertisement to implement gatt.Advertisement
type bleAdvertisement struct {
	adv ble.Advertisement
}

func newAdvertisement(adv ble.Advertisement) gatt.Advertisement {
	return &bleAdvertisement{adv: adv}
}

func (a *bleAdvertisement) LocalName() string { return a.adv.LocalName() }
func (a *bleAdvertisement) RSSI() int         { return a.adv.RSSI() }
func (a *bleAdvertisement) Addr() string      { return a.adv.Addr().String() }
func (a *bleAdvertisement) Connectable() bool { return a.adv.Connectable() }

// Services returns the advertised service UUIDs in normalized form so
// callers can compare them against profiledb tables directly.
func (a *bleAdvertisement) Services() []string {
	bleServices := a.adv.Services()
	result := make([]string, len(bleServices))
	for i, svc := range bleServices {
		result[i] = gatt.NormalizeUUID(svc.String())
	}
	return result
}
