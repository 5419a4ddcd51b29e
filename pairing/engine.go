// Package pairing bonds with a single remote device under timeout supervision.
//
// Engine resets the adapter, starts bonding and classifies the notifications for the
// target device into Started / OnProgress / Succeeded / NotDone events, or a terminal
// failure. Request arms the pairing timeout on Started, extends it on progress and
// reports the result.
//
// Timeouts and late failures are looped back through the notification path, so they
// are classified like any platform notification:
//
//	timer expiry -> Engine.NotifyTimeout -> pairing-timeout event -> ErrTimeout
package pairing

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/srg/btflow/bridge"
	"github.com/srg/btflow/internal/groutine"
	"github.com/srg/btflow/internal/notify"
	"github.com/srg/btflow/internal/radio"
	"github.com/srg/btflow/internal/stream"
)

// PowerCycler leaves the adapter freshly enabled.
type PowerCycler interface {
	Cycle(ctx context.Context) error
}

var pairingCategories = []notify.Category{
	notify.BondStateChanged,
	notify.LinkConnected,
	notify.LinkDisconnected,
	notify.PairingRequest,
	notify.PairingFailed,
	notify.PairingTimeout,
}

// Engine runs pairing sessions.
type Engine struct {
	ctrl   radio.Controller
	power  PowerCycler
	bridge *bridge.Bridge
	pub    notify.Publisher
	logger *logrus.Logger
}

// NewEngine creates a pairing engine. pub must feed the source bridge listens on.
func NewEngine(ctrl radio.Controller, power PowerCycler, b *bridge.Bridge, pub notify.Publisher, logger *logrus.Logger) *Engine {
	if logger == nil {
		logger = logrus.New()
	}
	return &Engine{
		ctrl:   ctrl,
		power:  power,
		bridge: b,
		pub:    pub,
		logger: logger,
	}
}

// Pair power-cycles the adapter, starts bonding with address and streams its progress.
// The stream completes after the Succeeded event, or fails with a BondInitiationError,
// ErrAbandoned or ErrTimeout.
func (e *Engine) Pair(ctx context.Context, address string) stream.Stream[Event] {
	return func(yield func(Event, error) bool) {
		logger := e.logger.WithField("device", address)

		if err := e.power.Cycle(ctx); err != nil {
			yield(Event{}, err)
			return
		}

		raw := e.bridge.Listen(ctx, bridge.Setup{
			Categories: pairingCategories,
			Start: func(context.Context) ([]notify.Event, error) {
				return e.start(address, logger)
			},
			Exit: func(ev notify.Event, _ int) bool {
				return isBondState(ev, address, radio.BondBonded)
			},
		})

		raw = stream.OnEach(raw, func(ev notify.Event) error {
			logger.WithField("event", ev.String()).Debug("Raw pairing event")
			return nil
		})
		raw = stream.Filter(raw, func(ev notify.Event) (bool, error) {
			addr, _ := ev.Device()
			return addr == address, nil
		})

		events := stream.Map(raw, func(ev notify.Event) (Event, bool, error) {
			return e.classify(ev, address)
		})
		events = stream.OnEach(events, func(ev Event) error {
			logger.WithField("action", ev.Action).Debug("Handled pairing event")
			return nil
		})

		events(yield)
	}
}

func (e *Engine) start(address string, logger *logrus.Entry) ([]notify.Event, error) {
	if e.ctrl.BondState(address) == radio.BondBonded {
		logger.Info("Device already bonded")
		return []notify.Event{bondEvent(address, radio.BondBonded)}, nil
	}

	if err := e.ctrl.InitiateBonding(address); err != nil {
		return nil, &BondInitiationError{Address: address, Err: err}
	}

	logger.Info("Bonding initiated")
	return []notify.Event{notify.New(notify.PairingStarted).With(notify.AttrDevice, address)}, nil
}

func (e *Engine) classify(ev notify.Event, address string) (Event, bool, error) {
	switch ev.Category {
	case notify.LinkDisconnected, notify.PairingFailed:
		return Event{}, false, &Error{Kind: KindAbandoned, Address: address, Msg: string(ev.Category)}

	case notify.PairingTimeout:
		if err := e.ctrl.CancelBonding(address); err != nil {
			e.logger.WithError(err).WithField("device", address).Warn("Failed to cancel bonding")
		}
		return Event{}, false, &Error{Kind: KindTimedOut, Address: address}

	case notify.BondStateChanged:
		state, _ := ev.Int(notify.AttrBondState)
		switch radio.BondState(state) {
		case radio.BondBonded:
			return Event{Action: Succeeded, Device: address}, true, nil
		case radio.BondNone:
			return Event{Action: NotDone, Device: address}, true, nil
		}

	case notify.PairingStarted:
		return Event{Action: Started, Device: address}, true, nil

	case notify.PairingRequest, notify.LinkConnected:
		return Event{Action: OnProgress, Device: address}, true, nil
	}

	return Event{}, false, nil
}

// NotifyTimeout reports an elapsed pairing window for address through the notification
// path. It does not block.
func (e *Engine) NotifyTimeout(address string) {
	e.loopback(notify.PairingTimeout, address)
}

// NotifyError reports a failed pairing for address through the notification path.
// It does not block.
func (e *Engine) NotifyError(address string) {
	e.loopback(notify.PairingFailed, address)
}

func (e *Engine) loopback(category notify.Category, address string) {
	e.logger.WithFields(logrus.Fields{
		"device":   address,
		"category": category,
	}).Debug("Posting pairing signal")

	ev := notify.New(category).With(notify.AttrDevice, address)
	groutine.Go(context.Background(), "pairing-loopback", func(context.Context) {
		e.pub.Publish(ev)
	})
}

func bondEvent(address string, state radio.BondState) notify.Event {
	return notify.New(notify.BondStateChanged).
		With(notify.AttrDevice, address).
		With(notify.AttrBondState, int(state))
}

func isBondState(ev notify.Event, address string, want radio.BondState) bool {
	if !ev.Is(notify.BondStateChanged) {
		return false
	}
	addr, _ := ev.Device()
	state, ok := ev.Int(notify.AttrBondState)
	return ok && addr == address && radio.BondState(state) == want
}
