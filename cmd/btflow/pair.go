package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/srg/btflow/pairing"
)

func newPairCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pair <address>",
		Short: "Pair with a device",
		Long: `Pair with the device at <address>.

The adapter is power-cycled first. A device that is already bonded is reported as
paired right away. Otherwise bonding is requested and supervised: every sign of
progress from the device restarts the timeout, and the attempt fails when the device
stays silent for the whole timeout, disconnects, or declines.`,
		Example: `  btflow pair 00:1A:7D:DA:71:13
  btflow pair 00:1A:7D:DA:71:13 --timeout 40`,
		Args: cobra.ExactArgs(1),
		RunE: runPair,
	}

	cmd.Flags().IntP("timeout", "t", 0, "Seconds without progress before pairing times out (default from config, 20)")

	return cmd
}

func runPair(cmd *cobra.Command, args []string) error {
	address := args[0]

	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("timeout") {
		cfg.Pairing.Timeout, _ = cmd.Flags().GetInt("timeout")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	cmd.SilenceUsage = true

	b := newBackend(cfg, logger)
	defer b.Close()

	engine := pairing.NewEngine(b.ctrl, b.power, b.bridge, b.bus, logger)
	req := pairing.NewRequest(address, engine, b.timer, logger, pairing.WithTimeout(cfg.Pairing.Timeout))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()

	var progress *ProgressPrinter
	if isTerminal(out) {
		progress = NewProgressPrinter(out, "Pairing with "+address, "power cycling")
		progress.Start()
		defer progress.Stop()
	}

	paired, err := req.Run(ctx, func(ev pairing.Event) {
		if progress != nil {
			progress.SetPhase(pairingPhase(ev.Action))
		}
	})
	if progress != nil {
		progress.Stop()
	}
	if err != nil {
		if ctx.Err() == nil {
			color.New(color.FgRed).Fprintf(out, "Pairing with %s failed\n", address)
		}
		return err
	}

	color.New(color.FgGreen).Fprintf(out, "Paired with %s\n", paired)
	return nil
}

func pairingPhase(a pairing.Action) string {
	switch a {
	case pairing.Started:
		return "waiting for device"
	case pairing.OnProgress:
		return "in progress"
	case pairing.Succeeded:
		return "bonded"
	default:
		return a.String()
	}
}
