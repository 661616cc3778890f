// Package connector implements the connection half of the aggregator: given
// a set of target device addresses it dials each one concurrently, retrying
// failed attempts indefinitely, and streams live connections to the session
// as they come up.
package connector

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fitwire/fitwire/internal/gatt"
	"github.com/fitwire/fitwire/internal/groutine"
)

// Connected pairs a target address with its established connection. Each
// value is produced exactly once per successful attempt.
type Connected struct {
	Addr       string
	Peripheral gatt.Peripheral
}

// Options configures connection behavior.
type Options struct {
	// DialTimeout bounds a single dial attempt, not the whole per-address
	// retry loop. Zero means gatt.DefaultDialTimeout.
	DialTimeout time.Duration
}

// DefaultOptions returns the options used when none are given.
func DefaultOptions() *Options {
	return &Options{DialTimeout: gatt.DefaultDialTimeout}
}

// Connector dials target devices concurrently. An attempt that fails is
// retried until it succeeds or the context is cancelled; a failing address
// never aborts the others. A Connector is good for one Connect call.
type Connector struct {
	dialer      gatt.Dialer
	logger      *logrus.Logger
	dialTimeout time.Duration

	peripherals chan Connected
	done        chan struct{}
	started     atomic.Bool
}

// NewConnector creates a connector on the given dialer. A nil logger falls
// back to a default logger.
func NewConnector(dialer gatt.Dialer, opts *Options, logger *logrus.Logger) (*Connector, error) {
	if dialer == nil {
		return nil, fmt.Errorf("connector: dialer is required")
	}
	if opts == nil {
		opts = DefaultOptions()
	}
	if logger == nil {
		logger = logrus.New()
	}

	dialTimeout := opts.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = gatt.DefaultDialTimeout
	}

	return &Connector{
		dialer:      dialer,
		logger:      logger,
		dialTimeout: dialTimeout,
		peripherals: make(chan Connected),
		done:        make(chan struct{}),
	}, nil
}

// Connect launches one attempt goroutine per address and returns
// immediately. Successes stream on Peripherals in the order they land;
// early successes never wait for slower attempts.
func (c *Connector) Connect(ctx context.Context, addrs []string) error {
	if len(addrs) == 0 {
		return fmt.Errorf("connector: at least one address is required")
	}
	for _, addr := range addrs {
		if addr == "" {
			return fmt.Errorf("connector: empty device address")
		}
	}
	if !c.started.CompareAndSwap(false, true) {
		return fmt.Errorf("connector: Connect may only be called once")
	}

	var wg sync.WaitGroup
	for _, addr := range addrs {
		wg.Add(1)
		addr := addr
		groutine.Go(ctx, "dial-"+addr, func(ctx context.Context) {
			defer wg.Done()
			c.dialRetry(ctx, addr)
		})
	}

	groutine.Go(ctx, "dial-collector", func(context.Context) {
		wg.Wait()
		close(c.peripherals)
		close(c.done)
	})

	return nil
}

// Peripherals streams connections as attempts succeed. The channel closes
// once every attempt has concluded; with an unreachable address that may
// be never, so consumers must not gate early successes on closure.
func (c *Connector) Peripherals() <-chan Connected {
	return c.peripherals
}

// Done closes when every attempt has either delivered a connection or been
// cancelled. Addresses that never connect keep Done open until the context
// ends the run.
func (c *Connector) Done() <-chan struct{} {
	return c.done
}

// dialRetry dials addr until it succeeds or ctx is cancelled. There is
// deliberately no backoff and no attempt cap: the per-attempt dial timeout
// is the only pacing, and an absent device simply keeps its attempt task
// alive until shutdown.
func (c *Connector) dialRetry(ctx context.Context, addr string) {
	log := c.logger.WithField("address", addr)
	log.Info("Starting connection attempts")

	for attempt := 1; ; attempt++ {
		if ctx.Err() != nil {
			log.WithField("attempts", attempt-1).Debug("Connection attempts cancelled")
			return
		}

		dialCtx, cancel := context.WithTimeout(ctx, c.dialTimeout)
		p, err := c.dialer.Dial(dialCtx, addr)
		cancel()
		if err != nil {
			log.WithError(err).WithField("attempt", attempt).Debug("Connection attempt failed; retrying")
			continue
		}

		log.WithField("attempt", attempt).Info("Device connected")

		select {
		case c.peripherals <- Connected{Addr: addr, Peripheral: p}:
		case <-ctx.Done():
			// Nobody consumed the connection before shutdown.
			_ = p.Close()
		}
		return
	}
}
