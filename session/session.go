// Package session composes the aggregator's runtime. It takes live device
// connections from the connector, discovers the known fitness services and
// characteristics on each, binds a metric source per characteristic to one
// shared metrics channel, and drains that channel into the report until
// shutdown.
package session

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/fitwire/fitwire/connector"
	"github.com/fitwire/fitwire/internal/gatt"
	"github.com/fitwire/fitwire/internal/groutine"
	"github.com/fitwire/fitwire/internal/profiledb"
	"github.com/fitwire/fitwire/internal/status"
	"github.com/fitwire/fitwire/telemetry"
)

// Options configures session behavior.
type Options struct {
	// Out receives the line-oriented metric report. Defaults to os.Stdout.
	Out io.Writer

	// Colors enables colorized report lines.
	Colors bool

	// Recorder, when set, receives every delivered metric and the device
	// up/down transitions for the status endpoint.
	Recorder *status.Recorder
}

// Session wires connected devices into the metric pipeline and runs the
// consumption loop. A Session is good for a single Run call.
type Session struct {
	db       *profiledb.DB
	logger   *logrus.Logger
	out      io.Writer
	colors   bool
	recorder *status.Recorder

	// metrics is the shared sink every metric source fans out to. It is
	// unbuffered: delivery is a blocking hand-off, so a stalled report
	// stalls notification decoding instead of dropping readings.
	metrics chan telemetry.Metric

	mu          sync.Mutex
	sources     []*telemetry.MetricSource
	peripherals []gatt.Peripheral
}

// New creates a session. A nil db falls back to the built-in fitness
// profiles, nil opts and logger to defaults.
func New(db *profiledb.DB, opts *Options, logger *logrus.Logger) *Session {
	if db == nil {
		db = profiledb.Default()
	}
	if opts == nil {
		opts = &Options{}
	}
	if logger == nil {
		logger = logrus.New()
	}

	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	return &Session{
		db:       db,
		logger:   logger,
		out:      out,
		colors:   opts.Colors,
		recorder: opts.Recorder,
		metrics:  make(chan telemetry.Metric),
	}
}

// Run consumes connections from conns, wiring each into the pipeline as it
// arrives, and streams metrics until ctx is cancelled. The conns channel
// closing is not a termination condition: a session with every device wired
// keeps streaming until shutdown. Discovery and subscription failures end
// the run; per-address connect failures never reach here, the connector
// retries those indefinitely.
func (s *Session) Run(ctx context.Context, conns <-chan connector.Connected) error {
	defer s.teardown()

	groutine.Go(ctx, "metrics-drain", s.drain)

	for {
		select {
		case <-ctx.Done():
			return nil
		case conn, ok := <-conns:
			if !ok {
				<-ctx.Done()
				return nil
			}
			if err := s.attach(ctx, conn); err != nil {
				return err
			}
		}
	}
}

// attach discovers the interesting services and characteristics on a freshly
// connected peripheral and binds a metric source for each characteristic to
// the shared metrics channel.
func (s *Session) attach(ctx context.Context, conn connector.Connected) error {
	log := s.logger.WithField("device", conn.Addr)
	log.Info("Initializing device")

	s.mu.Lock()
	s.peripherals = append(s.peripherals, conn.Peripheral)
	s.mu.Unlock()

	fmt.Fprintf(s.out, "initializing %s\n", conn.Addr)

	services, err := conn.Peripheral.DiscoverServices(s.db.ServiceUUIDs())
	if err != nil {
		return fmt.Errorf("service discovery failed for %s: %w", conn.Addr, err)
	}

	for _, svc := range services {
		svcName := s.db.ServiceName(svc.UUID())
		log.WithField("service", svcName).Info("Discovered service")
		fmt.Fprintf(s.out, "\tservice: %s\n", svcName)

		chars, err := svc.DiscoverCharacteristics(s.db.InterestSet(svc.UUID()))
		if err != nil {
			return fmt.Errorf("characteristic discovery failed for %s: %w", svcName, err)
		}

		for _, char := range chars {
			src := telemetry.NewMetricSource(s.db, char, s.logger)
			if err := src.AddSink(s.metrics); err != nil {
				return err
			}

			s.mu.Lock()
			s.sources = append(s.sources, src)
			s.mu.Unlock()

			// Reported only once the sink is wired, so a line in the
			// report means the characteristic is live.
			fmt.Fprintf(s.out, "\t\tcharacteristic: %s\n", src.Name())
		}
	}

	if s.recorder != nil {
		s.recorder.DeviceUp(conn.Addr)
	}
	s.watchDisconnect(ctx, conn)

	return nil
}

// watchDisconnect tracks the peripheral's link state for the status
// endpoint. Reconnecting is the connector's job, not ours.
func (s *Session) watchDisconnect(ctx context.Context, conn connector.Connected) {
	groutine.Go(ctx, "disconnect-watch "+conn.Addr, func(ctx context.Context) {
		select {
		case <-ctx.Done():
		case <-conn.Peripheral.Disconnected():
			s.logger.WithField("device", conn.Addr).Warn("Device link lost")
			if s.recorder != nil {
				s.recorder.DeviceDown(conn.Addr)
			}
		}
	})
}

// drain is the single consumer end of the blocking hand-off.
func (s *Session) drain(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case m := <-s.metrics:
			s.deliver(m)
		}
	}
}

func (s *Session) deliver(m telemetry.Metric) {
	fmt.Fprintln(s.out, renderMetric(m, s.colors))
	if s.recorder != nil {
		s.recorder.Observe(m)
	}
}

// teardown removes notification subscriptions before dropping connections so
// no callback fires into a peripheral that is going away.
func (s *Session) teardown() {
	s.mu.Lock()
	sources := s.sources
	peripherals := s.peripherals
	s.sources = nil
	s.peripherals = nil
	s.mu.Unlock()

	for _, src := range sources {
		if err := src.Close(); err != nil {
			s.logger.WithError(err).WithField("characteristic", src.Name()).
				Warn("Failed to remove subscription")
		}
	}
	for _, p := range peripherals {
		if err := p.Close(); err != nil {
			s.logger.WithError(err).WithField("device", p.Address()).
				Warn("Failed to close connection")
		}
	}
}
