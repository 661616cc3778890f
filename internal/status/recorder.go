// Package status exposes the aggregator's live state over HTTP: connected
// devices, the latest reading per metric kind, delivery counters, and a
// bounded ring of recent readings.
//
// The recorder sits on the consumer side of the metric pipeline. Recording
// uses only ring and atomic operations plus a short-lived mutex, so feeding
// it from the report loop does not change the pipeline's blocking hand-off.
package status

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hedzr/go-ringbuf/v2/mpmc"

	"github.com/fitwire/fitwire/telemetry"
)

// MaxRecentSize caps the recent-readings ring to guard against accidental
// misconfiguration.
const MaxRecentSize uint32 = 64 * 1024

// Observation is one delivered metric together with its arrival time.
type Observation struct {
	Metric     telemetry.Metric `json:"metric"`
	ObservedAt time.Time        `json:"observed_at"`
}

// Snapshot is the aggregate state document served by the status endpoint.
type Snapshot struct {
	StartedAt     time.Time              `json:"started_at"`
	UptimeSeconds int64                  `json:"uptime_seconds"`
	Devices       []string               `json:"devices"`
	Latest        map[string]Observation `json:"latest"`
	Delivered     int64                  `json:"delivered"`
	RecentDropped int64                  `json:"recent_dropped"`
}

// Recorder accumulates live state from the metric pipeline.
//
// All methods are thread-safe.
type Recorder struct {
	startedAt time.Time

	delivered atomic.Int64
	dropped   atomic.Int64

	recent mpmc.RichOverlappedRingBuffer[Observation]

	mu      sync.RWMutex
	latest  map[telemetry.Kind]Observation
	devices map[string]struct{}
}

// NewRecorder creates a recorder whose recent-readings ring holds up to
// recentSize observations, overwriting the oldest on overflow.
func NewRecorder(recentSize uint32) (*Recorder, error) {
	if recentSize == 0 {
		return nil, fmt.Errorf("recent ring size must be > 0")
	}
	if recentSize > MaxRecentSize {
		return nil, fmt.Errorf("recent ring size %d exceeds maximum %d", recentSize, MaxRecentSize)
	}

	return &Recorder{
		startedAt: time.Now(),
		recent:    mpmc.NewOverlappedRingBuffer[Observation](recentSize),
		latest:    make(map[telemetry.Kind]Observation),
		devices:   make(map[string]struct{}),
	}, nil
}

// Observe records one delivered metric.
func (r *Recorder) Observe(m telemetry.Metric) {
	obs := Observation{Metric: m, ObservedAt: time.Now()}

	r.mu.Lock()
	r.latest[m.Kind] = obs
	r.mu.Unlock()

	r.delivered.Add(1)

	// The ring handles overflow by overwriting the oldest observation.
	if overwrites, err := r.recent.EnqueueM(obs); err != nil {
		r.dropped.Add(1)
	} else {
		r.dropped.Add(int64(overwrites))
	}
}

// DeviceUp marks addr as connected.
func (r *Recorder) DeviceUp(addr string) {
	r.mu.Lock()
	r.devices[addr] = struct{}{}
	r.mu.Unlock()
}

// DeviceDown removes addr from the connected set.
func (r *Recorder) DeviceDown(addr string) {
	r.mu.Lock()
	delete(r.devices, addr)
	r.mu.Unlock()
}

// Snapshot returns the current aggregate state. Devices are sorted so the
// document is stable across calls.
func (r *Recorder) Snapshot() Snapshot {
	r.mu.RLock()
	devices := make([]string, 0, len(r.devices))
	for addr := range r.devices {
		devices = append(devices, addr)
	}
	latest := make(map[string]Observation, len(r.latest))
	for kind, obs := range r.latest {
		latest[kind.String()] = obs
	}
	r.mu.RUnlock()

	sort.Strings(devices)

	return Snapshot{
		StartedAt:     r.startedAt,
		UptimeSeconds: int64(time.Since(r.startedAt).Seconds()),
		Devices:       devices,
		Latest:        latest,
		Delivered:     r.delivered.Load(),
		RecentDropped: r.dropped.Load(),
	}
}

// Recent drains the recent-readings ring, oldest first. Draining is
// destructive: each observation is served once.
func (r *Recorder) Recent() []Observation {
	var out []Observation
	for !r.recent.IsEmpty() {
		obs, err := r.recent.Dequeue()
		if err != nil {
			break
		}
		out = append(out, obs)
	}
	return out
}
