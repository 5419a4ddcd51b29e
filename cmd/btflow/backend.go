package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/srg/btflow/bridge"
	"github.com/srg/btflow/internal/config"
	"github.com/srg/btflow/internal/notify"
	"github.com/srg/btflow/internal/radio"
	"github.com/srg/btflow/internal/radio/goble"
	"github.com/srg/btflow/internal/timer"
)

// backend bundles the infrastructure shared by the discovery and pairing flows.
type backend struct {
	cfg    *config.Config
	logger *logrus.Logger

	bus    *notify.Bus
	bridge *bridge.Bridge
	timer  *timer.Supervisor
	ctrl   radio.Controller
	power  *radio.Power
}

// loadConfig resolves the config file and applies the global flag overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, *logrus.Logger, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadOrDefault(path)
	if err != nil {
		return nil, nil, err
	}

	if b, _ := cmd.Flags().GetString("backend"); b != "" {
		cfg.Backend = b
	}

	logger, err := configureLogger(cmd, cfg)
	if err != nil {
		return nil, nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, logger, nil
}

// newBackend wires the notification bus, bridge, timer supervisor and radio for cfg.
func newBackend(cfg *config.Config, logger *logrus.Logger) *backend {
	bus := notify.NewBus(cfg.BusCapacity, logger)
	b := bridge.New(bus, logger)

	var ctrl radio.Controller
	switch cfg.Backend {
	case config.BackendBLE:
		ctrl = goble.NewController(bus, cfg.Discovery.ScanWindow, logger)
	default:
		opts := append(cfg.SimOptions(), radio.WithSimLogger(logger))
		ctrl = radio.NewSim(bus, opts...)
	}

	logger.WithFields(logrus.Fields{
		"backend": cfg.Backend,
		"tick":    cfg.TimerTick,
	}).Debug("Backend initialized")

	return &backend{
		cfg:    cfg,
		logger: logger,
		bus:    bus,
		bridge: b,
		timer:  timer.NewSupervisor(timer.WithTick(cfg.TimerTick), timer.WithLogger(logger)),
		ctrl:   ctrl,
		power:  radio.NewPower(ctrl, b, cfg.PowerTimeout, logger),
	}
}

// Close stops any discovery still running, cancels pending countdowns and shuts the bus down.
func (b *backend) Close() {
	if err := b.ctrl.CancelDiscovery(); err != nil {
		b.logger.WithError(err).Debug("Failed to cancel discovery on close")
	}
	b.timer.Close()
	b.bus.Close()
}
