package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/srg/btflow/discovery"
	"golang.org/x/sync/errgroup"
)

var validFormats = []string{"table", "json"}

func newScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Discover nearby devices",
		Long: `Discover nearby Bluetooth devices until the time limit elapses or Ctrl+C is pressed.

The adapter is power-cycled before discovery starts. Discovery cycles are restarted
until the request stops, so devices keep being reported for the whole time limit.
A device seen more than once is listed once, with its latest name and signal.`,
		Args: cobra.NoArgs,
		RunE: runScan,
	}

	cmd.Flags().String("prefix", "", "Only report devices whose name starts with this prefix (case-sensitive)")
	cmd.Flags().Int("min-signal", 0, "Only report devices whose normalized signal (0..100) is above this value")
	cmd.Flags().IntP("timeout", "t", 0, "Discovery time limit in seconds (default from config, 30)")
	cmd.Flags().StringP("format", "f", "table", "Output format (table, json)")

	return cmd
}

func runScan(cmd *cobra.Command, _ []string) error {
	format, _ := cmd.Flags().GetString("format")
	if !slices.Contains(validFormats, format) {
		return fmt.Errorf("invalid format '%s': must be one of %v", format, validFormats)
	}

	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if cmd.Flags().Changed("prefix") {
		cfg.Discovery.Prefix, _ = cmd.Flags().GetString("prefix")
	}
	if cmd.Flags().Changed("min-signal") {
		cfg.Discovery.MinSignal, _ = cmd.Flags().GetInt("min-signal")
	}
	if cmd.Flags().Changed("timeout") {
		cfg.Discovery.Timeout, _ = cmd.Flags().GetInt("timeout")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	// All arguments validated - don't show usage on runtime errors
	cmd.SilenceUsage = true

	b := newBackend(cfg, logger)
	defer b.Close()

	engine := discovery.NewEngine(b.ctrl, b.power, b.bridge, logger)
	req := discovery.NewRequest(engine, b.timer, logger,
		discovery.WithPrefix(cfg.Discovery.Prefix),
		discovery.WithMinSignal(cfg.Discovery.MinSignal),
		discovery.WithTimeout(cfg.Discovery.Timeout),
	)

	interrupt, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()

	var progress *ProgressPrinter
	if isTerminal(out) {
		limit := time.Duration(cfg.Discovery.Timeout) * cfg.TimerTick
		progress = NewCountdownProgressPrinter(out, "Discovering devices", "0 found", limit)
		progress.Start()
		defer progress.Stop()
	}

	err = collectDevices(interrupt, req, func(discovery.Device) {
		if progress != nil {
			progress.SetPhase(fmt.Sprintf("%d found", len(req.Devices())))
		}
	})
	if progress != nil {
		progress.Stop()
	}
	if interrupt.Err() != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "Interrupted, discovery stopped")
	}
	if err != nil {
		return err
	}

	return displayDevices(out, req.Devices(), format)
}

// collectDevices runs req until it completes. Cancelling interrupt asks the request to
// stop gracefully: the engine finishes the current cycle and the stream completes
// normally, so devices collected so far are kept.
func collectDevices(interrupt context.Context, req *discovery.Request, onDevice func(discovery.Device)) error {
	// The stream runs on its own context so an interrupt never cuts it short
	g, ctx := errgroup.WithContext(context.Background())
	done := make(chan struct{})

	g.Go(func() error {
		defer close(done)
		for d, err := range req.Perform(ctx) {
			if err != nil {
				return err
			}
			onDevice(d)
		}
		return nil
	})

	g.Go(func() error {
		select {
		case <-interrupt.Done():
			req.Stop()
		case <-done:
		}
		return nil
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func displayDevices(w io.Writer, devices []discovery.Device, format string) error {
	switch format {
	case "json":
		if devices == nil {
			devices = []discovery.Device{}
		}
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(devices)
	default:
		return displayDevicesTable(w, devices)
	}
}

func displayDevicesTable(w io.Writer, devices []discovery.Device) error {
	if len(devices) == 0 {
		_, err := fmt.Fprintln(w, "No devices discovered")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tADDRESS\tSIGNAL")
	for _, d := range devices {
		name := truncateName(d.Name, maxNameWidth)
		if name == "" {
			name = "(unknown)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d dBm\n", name, d.Address, d.Signal)
	}
	return tw.Flush()
}

const maxNameWidth = 24

// truncateName shortens name to at most width runes, marking the cut with "...".
func truncateName(name string, width int) string {
	runes := []rune(name)
	if len(runes) <= width {
		return name
	}
	return string(runes[:width-3]) + "..."
}
