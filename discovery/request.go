package discovery

import (
	"context"
	"strings"
	"sync"

	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"github.com/srg/btflow/internal/stream"
	"github.com/srg/btflow/internal/timer"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Searcher is the engine surface a Request drives.
type Searcher interface {
	Search(ctx context.Context) stream.Stream[Event]
	Stop()
}

// Timer arms and cancels countdowns.
type Timer interface {
	CountFor(seconds int, listener timer.Listener) timer.Handle
	Cancel(h timer.Handle)
}

var _ Timer = (*timer.Supervisor)(nil)

// Options configures a Request.
type Options struct {
	// Prefix keeps devices whose name starts with it (case-sensitive). Empty keeps all.
	Prefix string
	// MinSignal keeps devices whose normalized signal is above it. Zero keeps all.
	MinSignal int
	// Timeout stops the search this many seconds after the first discovery cycle started.
	Timeout int `default:"30"`
}

// Option customizes Options.
type Option func(*Options)

// DefaultOptions returns the default request options.
func DefaultOptions() *Options {
	opts := &Options{}
	defaults.SetDefaults(opts)
	return opts
}

// WithPrefix filters devices by name prefix.
func WithPrefix(prefix string) Option {
	return func(o *Options) {
		o.Prefix = prefix
	}
}

// WithMinSignal filters devices by normalized signal.
func WithMinSignal(signal int) Option {
	return func(o *Options) {
		o.MinSignal = signal
	}
}

// WithTimeout overrides the search timeout in seconds.
func WithTimeout(seconds int) Option {
	return func(o *Options) {
		if seconds > 0 {
			o.Timeout = seconds
		}
	}
}

// Request is one discovery session with timeout, filtering and result accumulation.
type Request struct {
	engine Searcher
	timer  Timer
	opts   Options
	logger *logrus.Logger

	mu      sync.Mutex
	devices *orderedmap.OrderedMap[string, Device]
	handle  timer.Handle
}

// NewRequest creates a discovery request.
func NewRequest(engine Searcher, t Timer, logger *logrus.Logger, opts ...Option) *Request {
	if logger == nil {
		logger = logrus.New()
	}
	o := DefaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	return &Request{
		engine:  engine,
		timer:   t,
		opts:    *o,
		logger:  logger,
		devices: orderedmap.New[string, Device](),
	}
}

// Perform starts a search and streams every sighting that passes the filters.
// Results from a previous Perform are cleared when the stream starts.
func (r *Request) Perform(ctx context.Context) stream.Stream[Device] {
	events := stream.OnStart(r.engine.Search(ctx), r.reset)
	events = stream.OnEach(events, r.detectStart)

	found := stream.Map(events, func(ev Event) (Device, bool, error) {
		if ev.Kind != DeviceFound || ev.Device == nil {
			return Device{}, false, nil
		}
		return *ev.Device, true, nil
	})
	found = stream.Filter(found, func(d Device) (bool, error) {
		return r.accept(d), nil
	})
	found = stream.OnEach(found, r.collect)

	return stream.OnCompletion(found, func(err error) {
		r.disarm()
		if err != nil {
			r.logger.WithError(err).Debug("Discovery stream ended with error")
		}
	})
}

// Devices returns a snapshot of the accumulated results in first-seen order.
func (r *Request) Devices() []Device {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Device, 0, r.devices.Len())
	for pair := r.devices.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value)
	}
	return out
}

// Stop cancels the timeout and stops the engine. The stream completes once the
// running cycle reports it finished.
func (r *Request) Stop() {
	r.disarm()
	r.engine.Stop()
}

func (r *Request) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.devices = orderedmap.New[string, Device]()
}

// detectStart arms the timeout on the first discovery cycle of the session.
func (r *Request) detectStart(ev Event) error {
	if ev.Kind != SearchStarted {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.handle != nil {
		return nil
	}

	r.handle = r.timer.CountFor(r.opts.Timeout, r.onTimeout)
	r.logger.WithField("timeout", r.opts.Timeout).Debug("Discovery timeout armed")
	return nil
}

func (r *Request) onTimeout() {
	r.logger.WithField("timeout", r.opts.Timeout).Info("Discovery timed out, stopping")
	r.engine.Stop()
}

func (r *Request) disarm() {
	r.mu.Lock()
	h := r.handle
	r.handle = nil
	r.mu.Unlock()

	if h != nil {
		r.timer.Cancel(h)
	}
}

func (r *Request) accept(d Device) bool {
	if r.opts.Prefix != "" && !strings.HasPrefix(d.Name, r.opts.Prefix) {
		return false
	}
	if r.opts.MinSignal > 0 && NormalizeSignal(d.Signal) <= r.opts.MinSignal {
		return false
	}
	return true
}

// collect appends new addresses and replaces known ones in place.
func (r *Request) collect(d Device) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, known := r.devices.Get(d.Address)
	r.devices.Set(d.Address, d)

	if !known {
		r.logger.WithFields(logrus.Fields{
			"device":  d.Name,
			"address": d.Address,
			"signal":  d.Signal,
		}).Info("Discovered new device")
	}
	return nil
}
