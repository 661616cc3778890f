package telemetry

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/fitwire/fitwire/internal/gatt"
	"github.com/fitwire/fitwire/internal/profiledb"
)

// MetricSource binds one remote characteristic to its decoder and fans every
// decoded metric out to the registered sinks.
//
// The notification subscription is installed lazily, on the first AddSink
// call, and exactly once for the lifetime of the source. Decoding runs on
// the transport callback goroutine; the sink list is guarded so late
// registration cannot race delivery.
type MetricSource struct {
	db     *profiledb.DB
	char   gatt.RemoteCharacteristic
	logger *logrus.Logger

	decoder Decoder

	mu         sync.RWMutex
	sinks      []chan<- Metric
	subscribed bool
}

// NewMetricSource creates a source for the given characteristic. The decoder
// is resolved from the characteristic UUID at construction time; a nil db or
// logger falls back to the package defaults.
func NewMetricSource(db *profiledb.DB, char gatt.RemoteCharacteristic, logger *logrus.Logger) *MetricSource {
	if db == nil {
		db = profiledb.Default()
	}
	if logger == nil {
		logger = logrus.New()
	}

	decoder, _ := DecoderFor(char.UUID())

	return &MetricSource{
		db:      db,
		char:    char,
		logger:  logger,
		decoder: decoder,
	}
}

// Name returns the display name of the bound characteristic, falling back to
// "unknown:<uuid>" for characteristics outside the profile tables.
func (s *MetricSource) Name() string {
	return s.db.CharacteristicName(s.char.UUID())
}

// UUID returns the bound characteristic UUID in normalized form.
func (s *MetricSource) UUID() string {
	return profiledb.NormalizeUUID(s.char.UUID())
}

// AddSink registers a delivery target. The first registration installs the
// notification subscription; later registrations only extend the fan-out
// list. Sinks receive metrics emitted after registration, never earlier
// ones.
func (s *MetricSource) AddSink(sink chan<- Metric) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Start listening the first time a sink is added.
	if len(s.sinks) == 0 && !s.subscribed {
		if err := s.subscribeLocked(); err != nil {
			return err
		}
	}

	s.sinks = append(s.sinks, sink)
	return nil
}

func (s *MetricSource) subscribeLocked() error {
	if s.decoder == nil {
		// Discovery is restricted to the interest tables, so a source
		// without a decoder means the tables and the dispatch have
		// drifted apart.
		s.logger.WithField("characteristic", s.UUID()).
			Error("BUG: no decoder registered for characteristic")
		return nil
	}

	if err := s.char.Subscribe(s.handleNotification); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", s.Name(), err)
	}
	s.subscribed = true

	s.logger.WithFields(logrus.Fields{
		"characteristic": s.Name(),
		"uuid":           s.UUID(),
	}).Debug("Notification subscription installed")

	return nil
}

// handleNotification decodes one payload and fans the result out. It runs on
// whatever goroutine the transport delivers callbacks on.
func (s *MetricSource) handleNotification(payload []byte) {
	m, ok := s.decoder(payload)
	if !ok {
		return
	}

	s.logger.WithFields(logrus.Fields{
		"characteristic": s.Name(),
		"kind":           m.Kind.String(),
		"value":          m.Value,
	}).Debug("Decoded metric")

	s.emit(m)
}

// emit delivers m to every sink registered at this moment, in registration
// order. Each hand-off blocks until the sink accepts the metric: a stalled
// consumer stalls further notification decoding for this characteristic
// instead of dropping readings.
func (s *MetricSource) emit(m Metric) {
	s.mu.RLock()
	sinks := make([]chan<- Metric, len(s.sinks))
	copy(sinks, s.sinks)
	s.mu.RUnlock()

	for _, sink := range sinks {
		sink <- m
	}
}

// Close removes the notification subscription if one was installed. It is
// safe to call multiple times and on sources that never subscribed.
func (s *MetricSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.subscribed {
		return nil
	}
	s.subscribed = false

	if err := s.char.Unsubscribe(); err != nil {
		return fmt.Errorf("failed to unsubscribe from %s: %w", s.Name(), err)
	}
	return nil
}
