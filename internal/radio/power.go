package radio

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/btflow/bridge"
	"github.com/srg/btflow/internal/notify"
)

// DefaultPowerTimeout bounds a single power transition.
const DefaultPowerTimeout = 10 * time.Second

// Power switches the adapter and waits for the platform to confirm the new state.
type Power struct {
	ctrl    Controller
	bridge  *bridge.Bridge
	timeout time.Duration
	logger  *logrus.Logger
}

// NewPower creates a power helper. A non-positive timeout selects DefaultPowerTimeout.
func NewPower(ctrl Controller, b *bridge.Bridge, timeout time.Duration, logger *logrus.Logger) *Power {
	if timeout <= 0 {
		timeout = DefaultPowerTimeout
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Power{ctrl: ctrl, bridge: b, timeout: timeout, logger: logger}
}

// TurnOn enables the adapter and returns once it reports AdapterOn.
func (p *Power) TurnOn(ctx context.Context) error {
	if p.ctrl.IsEnabled() {
		return nil
	}
	return p.await(ctx, AdapterOn, p.ctrl.Enable)
}

// TurnOff disables the adapter and returns once it reports AdapterOff.
func (p *Power) TurnOff(ctx context.Context) error {
	if !p.ctrl.IsEnabled() {
		return nil
	}
	return p.await(ctx, AdapterOff, p.ctrl.Disable)
}

// Cycle leaves the adapter freshly enabled: it is turned off first when already on.
func (p *Power) Cycle(ctx context.Context) error {
	if err := p.TurnOff(ctx); err != nil {
		return err
	}
	return p.TurnOn(ctx)
}

func (p *Power) await(ctx context.Context, want AdapterState, action func() error) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	logger := p.logger.WithField("state", want.String())
	logger.Debug("Waiting for adapter state")

	reached := false
	events := p.bridge.Listen(ctx, bridge.Setup{
		Categories: []notify.Category{notify.AdapterStateChanged},
		Start: func(context.Context) ([]notify.Event, error) {
			return nil, action()
		},
		Exit: func(ev notify.Event, _ int) bool {
			state, ok := ev.Int(notify.AttrAdapterState)
			reached = ok && AdapterState(state) == want
			return reached
		},
		SuppressExitEvent: true,
	})

	for ev, err := range events {
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) && !reached {
				return fmt.Errorf("%w: %s after %s", ErrPowerTimeout, want, p.timeout)
			}
			return err
		}
		logger.WithField("event", ev.String()).Debug("Adapter state transition")
	}

	if !reached {
		return fmt.Errorf("%w: %s: notification source closed", ErrPowerTimeout, want)
	}

	logger.Debug("Adapter state reached")
	return nil
}
