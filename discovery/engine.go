// Package discovery runs repeating device discovery and accumulates filtered results.
//
// Engine turns adapter notifications into SearchStarted / DeviceFound events and keeps
// re-starting discovery cycles until Stop is called. Request puts a timeout, filters
// and a de-duplicated result list on top of an Engine.
package discovery

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/srg/btflow/bridge"
	"github.com/srg/btflow/internal/notify"
	"github.com/srg/btflow/internal/radio"
	"github.com/srg/btflow/internal/stream"
	"go.uber.org/atomic"
)

// PowerCycler leaves the adapter freshly enabled.
type PowerCycler interface {
	Cycle(ctx context.Context) error
}

// Engine drives discovery cycles on a radio controller.
type Engine struct {
	ctrl   radio.Controller
	power  PowerCycler
	bridge *bridge.Bridge
	logger *logrus.Logger

	stopping atomic.Bool
}

// NewEngine creates a discovery engine.
func NewEngine(ctrl radio.Controller, power PowerCycler, b *bridge.Bridge, logger *logrus.Logger) *Engine {
	if logger == nil {
		logger = logrus.New()
	}
	return &Engine{
		ctrl:   ctrl,
		power:  power,
		bridge: b,
		logger: logger,
	}
}

// Search power-cycles the adapter and streams discovery events. Finished cycles are
// restarted until Stop is called; the stream then completes on the next
// discovery-finished notification.
func (e *Engine) Search(ctx context.Context) stream.Stream[Event] {
	return func(yield func(Event, error) bool) {
		e.stopping.Store(false)

		if err := e.power.Cycle(ctx); err != nil {
			yield(Event{}, err)
			return
		}

		raw := e.bridge.Listen(ctx, bridge.Setup{
			Categories: []notify.Category{
				notify.DiscoveryStarted,
				notify.DiscoveryFinished,
				notify.DeviceFound,
			},
			Start: func(context.Context) ([]notify.Event, error) {
				e.startDiscovery()
				return nil, nil
			},
			Exit: func(ev notify.Event, _ int) bool {
				return ev.Is(notify.DiscoveryFinished) && e.stopping.Load()
			},
			SuppressExitEvent: true,
		})

		raw = stream.OnEach(raw, func(ev notify.Event) error {
			e.logger.WithField("event", ev.String()).Debug("Raw discovery event")
			return nil
		})

		stream.Map(raw, e.classify)(yield)
	}
}

// Stop requests the end of the search and cancels the running discovery cycle.
func (e *Engine) Stop() {
	e.stopping.Store(true)
	if err := e.ctrl.CancelDiscovery(); err != nil {
		e.logger.WithError(err).Warn("Failed to cancel discovery")
	}
	e.logger.Debug("Discovery stop requested")
}

// Stopping reports whether Stop was called since the last Search.
func (e *Engine) Stopping() bool {
	return e.stopping.Load()
}

func (e *Engine) classify(ev notify.Event) (Event, bool, error) {
	switch ev.Category {
	case notify.DiscoveryStarted:
		e.logger.Info("Discovery cycle started")
		return Event{Kind: SearchStarted}, true, nil

	case notify.DeviceFound:
		d, ok := DeviceFromEvent(ev)
		if !ok {
			e.logger.WithField("event", ev.String()).Debug("Dropping sighting without address")
			return Event{}, false, nil
		}
		return Event{Kind: DeviceFound, Device: &d}, true, nil

	case notify.DiscoveryFinished:
		// Only reached when the exit check saw no stop request. Restarting even if Stop
		// raced in since then keeps a finished event coming for the exit check.
		e.logger.Debug("Discovery cycle finished, restarting")
		e.startDiscovery()
	}
	return Event{}, false, nil
}

// startDiscovery failures are not fatal: the search keeps waiting for notifications.
func (e *Engine) startDiscovery() {
	if err := e.ctrl.StartDiscovery(); err != nil {
		e.logger.WithError(err).Warn("Failed to start discovery")
	}
}
