package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/fitwire/fitwire/connector"
	"github.com/fitwire/fitwire/internal/gatt/goble"
	"github.com/fitwire/fitwire/internal/groutine"
	"github.com/fitwire/fitwire/internal/status"
	"github.com/fitwire/fitwire/session"
)

// connectCmd represents the connect command
var connectCmd = &cobra.Command{
	Use:   "connect <address> [address...]",
	Short: "Connect to fitness sensors and stream their metrics",
	Long: `Connect to one or more fitness sensors by address and stream their
decoded readings as a line-oriented report, one metric per line:

  heart_rate: 142 bpm
  cycling_power: 250 W

Each address is dialed on its own worker; failed attempts are retried until
they succeed or the run is interrupted. Devices join the report as they come
up, so one slow sensor never delays the others.

With --status-addr the aggregator also serves its live state as JSON:
connected devices, the latest reading per metric, and a ring of recent
readings.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runConnect,
}

var (
	connectDialTimeout time.Duration
	connectStatusAddr  string
)

func init() {
	connectCmd.Flags().DurationVar(&connectDialTimeout, "dial-timeout", 0, "Single connection attempt timeout (0 uses the configured default)")
	connectCmd.Flags().StringVar(&connectStatusAddr, "status-addr", "", "Listen address for the JSON status endpoint")
}

func runConnect(cmd *cobra.Command, args []string) error {
	cfg, logger, err := configureLogger(cmd)
	if err != nil {
		return err
	}

	// All arguments validated - don't show usage on runtime errors
	cmd.SilenceUsage = true

	dialTimeout := cfg.DialTimeout.Std()
	if cmd.Flags().Changed("dial-timeout") {
		dialTimeout = connectDialTimeout
	}
	statusAddr := cfg.StatusAddr
	if cmd.Flags().Changed("status-addr") {
		statusAddr = connectStatusAddr
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		fmt.Println("\nCtrl+C pressed, shutting down...")
		cancel()
	}()

	dialer, err := goble.NewDialer()
	if err != nil {
		return fmt.Errorf("failed to enable BLE adapter: %w", err)
	}

	conn, err := connector.NewConnector(dialer, &connector.Options{DialTimeout: dialTimeout}, logger)
	if err != nil {
		return err
	}

	opts := &session.Options{
		Colors: term.IsTerminal(int(os.Stdout.Fd())),
	}

	if statusAddr != "" {
		recorder, err := status.NewRecorder(cfg.RecentMetrics)
		if err != nil {
			return err
		}
		server, err := status.NewServer(statusAddr, recorder, logger)
		if err != nil {
			return err
		}
		groutine.Go(ctx, "status-server", func(ctx context.Context) {
			if err := server.Run(ctx); err != nil {
				logger.WithError(err).Error("Status endpoint failed")
			}
		})
		opts.Recorder = recorder
	}

	if err := conn.Connect(ctx, args); err != nil {
		return err
	}

	return session.New(nil, opts, logger).Run(ctx, conn.Peripherals())
}
