package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/fitwire/fitwire/internal/gatt"
	"github.com/fitwire/fitwire/internal/gatt/goble"
	"github.com/fitwire/fitwire/scanner"
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for fitness sensors",
	Long: `Scan for Bluetooth Low Energy devices advertising a known fitness
service (Heart Rate, Cycling Power, Cycling Speed and Cadence).

Each qualifying device is reported once, on first sight, with its address,
name, matched services, and signal strength.`,
	RunE: runScan,
}

var (
	scanDuration        time.Duration
	scanJSON            bool
	scanAllowDuplicates bool
	scanServices        []string
)

func init() {
	scanCmd.Flags().DurationVarP(&scanDuration, "duration", "d", 0, "Scan duration (0 scans until interrupted)")
	scanCmd.Flags().BoolVar(&scanJSON, "json", false, "Emit one JSON object per discovery instead of text")
	scanCmd.Flags().BoolVar(&scanAllowDuplicates, "allow-duplicates", false, "Ask the transport for repeat advertisements")
	scanCmd.Flags().StringSliceVar(&scanServices, "services", nil, "Match only these service UUIDs (default: all known fitness services)")
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, logger, err := configureLogger(cmd)
	if err != nil {
		return err
	}

	var serviceUUIDs []string
	if len(scanServices) > 0 {
		serviceUUIDs, err = gatt.ValidateUUID(scanServices...)
		if err != nil {
			return fmt.Errorf("invalid service UUID: %w", err)
		}
	}

	// All arguments validated - don't show usage on runtime errors
	cmd.SilenceUsage = true

	allowDuplicates := cfg.AllowDuplicates
	if cmd.Flags().Changed("allow-duplicates") {
		allowDuplicates = scanAllowDuplicates
	}

	baseCtx := context.Background()
	if scanDuration > 0 {
		var cancel context.CancelFunc
		baseCtx, cancel = context.WithTimeout(baseCtx, scanDuration)
		defer cancel()
	}

	ctx, cancel := context.WithCancel(baseCtx)
	defer cancel()

	// Listen for Ctrl+C to cancel
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		fmt.Println("\nCtrl+C pressed, cancelling scan...")
		cancel()
	}()

	transport, err := goble.NewScanner()
	if err != nil {
		return fmt.Errorf("failed to enable BLE adapter: %w", err)
	}

	s, err := scanner.NewScanner(transport, nil, logger)
	if err != nil {
		return err
	}

	opts := &scanner.ScanOptions{
		AllowDuplicates: allowDuplicates,
		ServiceUUIDs:    serviceUUIDs,
	}
	if err := s.Scan(ctx, opts, reportDiscovery(cmd.OutOrStdout(), scanJSON)); err != nil {
		return err
	}

	fmt.Fprintln(os.Stderr, "Scan complete.")
	return nil
}

// reportDiscovery builds the per-discovery report callback. It runs on the
// transport callback goroutine; nothing else writes to w during a scan.
func reportDiscovery(w io.Writer, asJSON bool) func(scanner.Discovery) {
	if asJSON {
		enc := json.NewEncoder(w)
		return func(d scanner.Discovery) {
			_ = enc.Encode(d)
		}
	}
	return func(d scanner.Discovery) {
		fmt.Fprintln(w, d)
	}
}
