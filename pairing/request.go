package pairing

import (
	"context"

	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"github.com/srg/btflow/internal/stream"
	"github.com/srg/btflow/internal/timer"
)

// Pairer is the engine surface a Request drives.
type Pairer interface {
	Pair(ctx context.Context, address string) stream.Stream[Event]
	NotifyTimeout(address string)
	NotifyError(address string)
}

// Timer arms and cancels countdowns.
type Timer interface {
	CountFor(seconds int, listener timer.Listener) timer.Handle
	Cancel(h timer.Handle)
}

var _ Timer = (*timer.Supervisor)(nil)

// Options configures a Request.
type Options struct {
	// Timeout is the pairing window in seconds. Every progress signal restarts it.
	Timeout int `default:"20"`
}

// Option customizes Options.
type Option func(*Options)

// DefaultOptions returns the default request options.
func DefaultOptions() *Options {
	opts := &Options{}
	defaults.SetDefaults(opts)
	return opts
}

// WithTimeout overrides the pairing window in seconds.
func WithTimeout(seconds int) Option {
	return func(o *Options) {
		if seconds > 0 {
			o.Timeout = seconds
		}
	}
}

// Request pairs with one device.
type Request struct {
	address string
	engine  Pairer
	timer   Timer
	opts    Options
	logger  *logrus.Logger
}

// NewRequest creates a pairing request for address.
func NewRequest(address string, engine Pairer, t Timer, logger *logrus.Logger, opts ...Option) *Request {
	if logger == nil {
		logger = logrus.New()
	}
	o := DefaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return &Request{
		address: address,
		engine:  engine,
		timer:   t,
		opts:    *o,
		logger:  logger,
	}
}

// Perform streams the device address of every pairing event. The stream completes
// after success and fails with the terminal pairing error otherwise.
func (r *Request) Perform(ctx context.Context) stream.Stream[string] {
	return stream.Map(r.events(ctx), func(ev Event) (string, bool, error) {
		return ev.Device, true, nil
	})
}

// Run pairs and returns the bonded address. It returns ErrNotPaired when the stream
// completes without a Succeeded event. Observers see every supervised event.
func (r *Request) Run(ctx context.Context, observers ...func(Event)) (string, error) {
	for ev, err := range r.events(ctx) {
		if err == nil {
			for _, observe := range observers {
				observe(ev)
			}
		}
		if err != nil {
			r.logger.WithError(err).WithField("device", r.address).Info("Pairing failed")
			return "", err
		}
		if ev.Action == Succeeded {
			r.logger.WithField("device", ev.Device).Info("Pairing succeeded")
			return ev.Device, nil
		}
	}
	return "", ErrNotPaired
}

// events applies timeout supervision to the engine stream. State is per stream, so
// every range over the result is an independent attempt.
func (r *Request) events(ctx context.Context) stream.Stream[Event] {
	return func(yield func(Event, error) bool) {
		var handle timer.Handle
		progressed := false

		events := stream.OnEach(r.engine.Pair(ctx, r.address), func(ev Event) error {
			if ev.Action != Started {
				return nil
			}
			if handle != nil {
				r.timer.Cancel(handle)
			}
			handle = r.timer.CountFor(r.opts.Timeout, r.onTimeout)
			r.logger.WithFields(logrus.Fields{
				"device":  r.address,
				"timeout": r.opts.Timeout,
			}).Debug("Pairing timeout armed")
			return nil
		})

		events = stream.Filter(events, func(ev Event) (bool, error) {
			switch {
			case ev.Action == NotDone && progressed:
				r.logger.WithField("device", r.address).Warn("Bond dropped after pairing request")
				r.engine.NotifyError(r.address)
				return false, nil
			case ev.Action == OnProgress:
				if handle != nil {
					handle.Reset()
				}
				progressed = true
			}
			return true, nil
		})

		events = stream.OnCompletion(events, func(error) {
			if handle != nil {
				r.timer.Cancel(handle)
			}
		})

		events(yield)
	}
}

func (r *Request) onTimeout() {
	r.logger.WithFields(logrus.Fields{
		"device":  r.address,
		"timeout": r.opts.Timeout,
	}).Info("Pairing timed out")
	r.engine.NotifyTimeout(r.address)
}
