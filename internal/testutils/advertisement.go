package testutils

import (
	"github.com/fitwire/fitwire/internal/gatt"
)

// FakeAdvertisement is a plain-value gatt.Advertisement for scanner tests.
// Build one through NewAdvertisementBuilder.
type FakeAdvertisement struct {
	name        string
	addr        string
	rssi        int
	services    []string
	connectable bool
}

func (a *FakeAdvertisement) LocalName() string  { return a.name }
func (a *FakeAdvertisement) Addr() string       { return a.addr }
func (a *FakeAdvertisement) RSSI() int          { return a.rssi }
func (a *FakeAdvertisement) Services() []string { return a.services }
func (a *FakeAdvertisement) Connectable() bool  { return a.connectable }

var _ gatt.Advertisement = (*FakeAdvertisement)(nil)

// AdvertisementBuilder assembles FakeAdvertisements with a fluent API.
type AdvertisementBuilder struct {
	adv FakeAdvertisement
}

// NewAdvertisementBuilder starts a builder for a connectable advertisement
// with no name, address, or services.
func NewAdvertisementBuilder() *AdvertisementBuilder {
	return &AdvertisementBuilder{adv: FakeAdvertisement{connectable: true}}
}

// WithName sets the advertised local name.
func (b *AdvertisementBuilder) WithName(name string) *AdvertisementBuilder {
	b.adv.name = name
	return b
}

// WithAddress sets the device address.
func (b *AdvertisementBuilder) WithAddress(addr string) *AdvertisementBuilder {
	b.adv.addr = addr
	return b
}

// WithRSSI sets the received signal strength.
func (b *AdvertisementBuilder) WithRSSI(rssi int) *AdvertisementBuilder {
	b.adv.rssi = rssi
	return b
}

// WithServices appends advertised service UUIDs. Values are normalized the
// same way the transport adapter normalizes real advertisements.
func (b *AdvertisementBuilder) WithServices(uuids ...string) *AdvertisementBuilder {
	b.adv.services = append(b.adv.services, gatt.NormalizeUUIDs(uuids)...)
	return b
}

// WithConnectable marks the advertisement connectable or not.
func (b *AdvertisementBuilder) WithConnectable(connectable bool) *AdvertisementBuilder {
	b.adv.connectable = connectable
	return b
}

// Build returns the assembled advertisement.
func (b *AdvertisementBuilder) Build() gatt.Advertisement {
	adv := b.adv
	return &adv
}
