// Package ringchan provides a bounded channel-like buffer with
// overwrite-oldest semantics.
//
// Producers never block: when the buffer is full the oldest element is
// discarded to make room. Consumers read through a plain receive channel, so
// a RingChannel drops into any select loop. Discovery event streams use this
// to keep slow readers from stalling the transport callback.
package ringchan

import "sync/atomic"

// RingChannel wraps a buffered channel and guarantees non-blocking sends by
// discarding the oldest buffered element on overflow.
type RingChannel[T any] struct {
	ch      chan T
	metrics Metrics
}

// New creates a RingChannel with the given capacity.
func New[T any](capacity int) *RingChannel[T] {
	if capacity <= 0 {
		panic("ringchan: capacity must be > 0")
	}
	return &RingChannel[T]{ch: make(chan T, capacity)}
}

// C returns the underlying receive-only channel. Consumers can range over it
// until Close.
//
// Reads through C bypass the Processed counter; use Receive or TryReceive
// when that matters.
func (rc *RingChannel[T]) C() <-chan T {
	return rc.ch
}

// Send inserts v, discarding the oldest buffered element if the buffer is
// full. It never blocks, even with concurrent senders competing for the
// freed slot. The result reports whether an element was dropped.
func (rc *RingChannel[T]) Send(v T) bool {
	dropped := false

	for {
		select {
		case rc.ch <- v:
			rc.metrics.addWritten(1)
			return dropped
		default:
		}

		select {
		case <-rc.ch:
			rc.metrics.addOverwritten(1)
			dropped = true
		default:
			// A concurrent reader drained the buffer between the two
			// selects; retry the send.
		}
	}
}

// TrySend attempts to insert without displacing anything. Returns false if
// the buffer is full.
func (rc *RingChannel[T]) TrySend(v T) bool {
	select {
	case rc.ch <- v:
		rc.metrics.addWritten(1)
		return true
	default:
		return false
	}
}

// Receive blocks until a value is available or the channel is closed. The ok
// result is false once the channel is closed and drained.
func (rc *RingChannel[T]) Receive() (v T, ok bool) {
	v, ok = <-rc.ch
	if ok {
		rc.metrics.addProcessed(1)
	}
	return
}

// TryReceive attempts a non-blocking receive, returning (zero, false) when
// nothing is buffered.
func (rc *RingChannel[T]) TryReceive() (v T, ok bool) {
	select {
	case v, ok = <-rc.ch:
		if ok {
			rc.metrics.addProcessed(1)
		}
		return
	default:
		var zero T
		return zero, false
	}
}

// Len returns the number of buffered elements.
func (rc *RingChannel[T]) Len() int {
	return len(rc.ch)
}

// Cap returns the buffer capacity.
func (rc *RingChannel[T]) Cap() int {
	return cap(rc.ch)
}

// Close closes the underlying channel. Sending after Close panics.
func (rc *RingChannel[T]) Close() {
	close(rc.ch)
}

// Snapshot returns the current metric values. Reads are atomic.
func (rc *RingChannel[T]) Snapshot() Metrics {
	return Metrics{
		Written:     atomic.LoadInt64(&rc.metrics.Written),
		Overwritten: atomic.LoadInt64(&rc.metrics.Overwritten),
		Processed:   atomic.LoadInt64(&rc.metrics.Processed),
	}
}

// Metrics counts RingChannel traffic. All fields are updated atomically.
type Metrics struct {
	Written     int64
	Overwritten int64
	Processed   int64
}

func (m *Metrics) addWritten(n int) {
	atomic.AddInt64(&m.Written, int64(n))
}

func (m *Metrics) addOverwritten(n int) {
	atomic.AddInt64(&m.Overwritten, int64(n))
}

func (m *Metrics) addProcessed(n int) {
	atomic.AddInt64(&m.Processed, int64(n))
}
