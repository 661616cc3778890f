// Package scanner implements the discovery half of the aggregator: it
// listens for BLE advertisements, filters them to devices advertising at
// least one known fitness service, and reports each qualifying device
// exactly once.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/cornelk/hashmap"
	"github.com/sirupsen/logrus"

	"github.com/fitwire/fitwire/internal/gatt"
	"github.com/fitwire/fitwire/internal/profiledb"
	"github.com/fitwire/fitwire/internal/ringchan"
)

// eventBufferSize bounds the mirrored discovery stream. Slow readers lose
// the oldest discoveries rather than stalling the scan callback.
const eventBufferSize = 100

// Discovery describes a newly seen device advertising at least one matched
// service.
type Discovery struct {
	Address      string   `json:"address"`
	Name         string   `json:"name,omitempty"`
	ServiceNames []string `json:"services"`
	RSSI         int      `json:"rssi"`
	Connectable  bool     `json:"connectable"`
}

// String renders the discovery as a single report line.
func (d Discovery) String() string {
	return fmt.Sprintf("%s %-20s %-30s [RSSI:%d]",
		d.Address, d.Name, strings.Join(d.ServiceNames, ","), d.RSSI)
}

// ScanOptions configures scanning behavior.
type ScanOptions struct {
	// AllowDuplicates asks the transport to deliver repeat advertisements
	// from the same device. Reports stay de-duplicated either way; this
	// only affects how much callback traffic the scan processes.
	AllowDuplicates bool

	// ServiceUUIDs narrows the match filter to these services instead of
	// the full profile table. UUIDs are accepted in any format; services
	// outside the table match too and render with the registry's
	// unknown fallback name.
	ServiceUUIDs []string
}

// DefaultScanOptions returns the options used when none are given.
func DefaultScanOptions() *ScanOptions {
	return &ScanOptions{AllowDuplicates: false}
}

// Scanner handles BLE device discovery. A Scanner is good for one Scan call
// at a time.
type Scanner struct {
	transport gatt.Scanner
	db        *profiledb.DB
	logger    *logrus.Logger
	events    *ringchan.RingChannel[Discovery]

	// Per-run state, reset by Scan. An address enters seen on first
	// sight whether or not it qualifies; it is never evaluated again in
	// the same run.
	matchUUIDs []string
	seen       *hashmap.Map[string, struct{}]
	report     func(Discovery)
	reported   atomic.Int64
}

// NewScanner creates a scanner on the given transport. A nil db falls back
// to the built-in fitness profiles, a nil logger to a default logger.
func NewScanner(transport gatt.Scanner, db *profiledb.DB, logger *logrus.Logger) (*Scanner, error) {
	if transport == nil {
		return nil, fmt.Errorf("scanner: transport is required")
	}
	if db == nil {
		db = profiledb.Default()
	}
	if logger == nil {
		logger = logrus.New()
	}

	return &Scanner{
		transport: transport,
		db:        db,
		logger:    logger,
		events:    ringchan.New[Discovery](eventBufferSize),
	}, nil
}

// Scan listens for advertisements until ctx is cancelled, invoking report
// once per newly seen qualifying device. Cancellation is the normal way to
// stop a scan and is not returned as an error; transport failures are.
func (s *Scanner) Scan(ctx context.Context, opts *ScanOptions, report func(Discovery)) error {
	if opts == nil {
		opts = DefaultScanOptions()
	}
	if report == nil {
		report = func(Discovery) {}
	}

	s.matchUUIDs = s.db.ServiceUUIDs()
	if len(opts.ServiceUUIDs) > 0 {
		s.matchUUIDs = profiledb.NormalizeUUIDs(opts.ServiceUUIDs)
	}
	s.seen = hashmap.New[string, struct{}]()
	s.report = report
	s.reported.Store(0)

	s.logger.WithField("services", s.matchUUIDs).Info("Starting BLE scan...")

	err := s.transport.Scan(ctx, opts.AllowDuplicates, s.handleAdvertisement)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("scan failed: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"seen":     s.seen.Len(),
		"reported": s.reported.Load(),
	}).Info("BLE scan completed")

	return nil
}

// Events returns the mirrored discovery stream. It carries the same
// discoveries handed to the report callback, buffered with
// overwrite-oldest semantics.
func (s *Scanner) Events() <-chan Discovery {
	return s.events.C()
}

// handleAdvertisement runs on the transport callback goroutine, possibly
// concurrently with itself.
func (s *Scanner) handleAdvertisement(adv gatt.Advertisement) {
	addr := adv.Addr()

	// First sight wins the address, matching or not.
	if _, loaded := s.seen.GetOrInsert(addr, struct{}{}); loaded {
		return
	}

	serviceNames := s.matchedServiceNames(adv)
	if len(serviceNames) == 0 {
		return
	}

	d := Discovery{
		Address:      addr,
		Name:         adv.LocalName(),
		ServiceNames: serviceNames,
		RSSI:         adv.RSSI(),
		Connectable:  adv.Connectable(),
	}
	s.reported.Add(1)

	s.logger.WithFields(logrus.Fields{
		"address":     d.Address,
		"name":        d.Name,
		"services":    d.ServiceNames,
		"rssi":        d.RSSI,
		"connectable": d.Connectable,
	}).Info("Discovered device")

	s.report(d)
	s.events.Send(d)
}

// matchedServiceNames returns display names for every matched service the
// advertisement carries, in filter order (profile-table order by default).
func (s *Scanner) matchedServiceNames(adv gatt.Advertisement) []string {
	advertised := adv.Services()

	var names []string
	for _, uuid := range s.matchUUIDs {
		for _, a := range advertised {
			if profiledb.NormalizeUUID(a) == uuid {
				names = append(names, s.db.ServiceName(uuid))
				break
			}
		}
	}
	return names
}
