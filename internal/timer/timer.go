// Package timer supervises countdown operations on a shared tick source.
//
// Every operation counts ticks independently under its own lock, so operations never
// interfere with each other, and a tick racing with Cancel can neither fire twice nor
// fire after the cancel returned.
package timer

import (
	"context"
	"sync"
	"time"

	"github.com/cornelk/hashmap"
	"github.com/sirupsen/logrus"
	"github.com/srg/btflow/internal/groutine"
	"go.uber.org/atomic"
)

// DefaultTick is the granularity of one counted "second".
const DefaultTick = time.Second

// Listener is invoked once when an operation runs out of time.
type Listener func()

// Handle is a running countdown.
type Handle interface {
	// Reset zeroes the elapsed counter without stopping the countdown.
	Reset()
	// Extend adds seconds to the countdown duration.
	Extend(seconds int)
}

// Operation is the Handle returned by Supervisor.
type Operation struct {
	id uint64

	mu       sync.Mutex
	duration int
	elapsed  int
	listener Listener
}

// Reset zeroes the elapsed counter.
func (o *Operation) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.elapsed = 0
}

// Extend adds seconds to the duration.
func (o *Operation) Extend(seconds int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.duration += seconds
}

// Elapsed returns the number of ticks counted since start or the last Reset.
func (o *Operation) Elapsed() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.elapsed
}

// Duration returns the current duration in ticks.
func (o *Operation) Duration() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.duration
}

// Done reports whether the operation fired or was cancelled.
func (o *Operation) Done() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.listener == nil
}

// tick counts one tick and fires the listener when the duration is reached.
// It reports whether the operation is finished.
func (o *Operation) tick() bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.listener == nil {
		return true
	}

	o.elapsed++
	if o.elapsed < o.duration {
		return false
	}

	listener := o.listener
	o.listener = nil
	listener()

	return true
}

func (o *Operation) cancel() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.listener = nil
}

// Supervisor drives all operations from one ticking goroutine. The goroutine starts
// with the first operation and exits once no operation is left.
type Supervisor struct {
	tick   time.Duration
	logger *logrus.Logger

	ops    *hashmap.Map[uint64, *Operation]
	nextID atomic.Uint64

	mu      sync.Mutex
	running bool
	stop    chan struct{}
}

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithTick overrides the tick granularity.
func WithTick(d time.Duration) Option {
	return func(s *Supervisor) {
		if d > 0 {
			s.tick = d
		}
	}
}

// WithLogger sets the supervisor logger.
func WithLogger(logger *logrus.Logger) Option {
	return func(s *Supervisor) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSupervisor creates an idle supervisor.
func NewSupervisor(opts ...Option) *Supervisor {
	s := &Supervisor{
		tick:   DefaultTick,
		logger: logrus.New(),
		ops:    hashmap.New[uint64, *Operation](),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CountFor starts a countdown of seconds ticks that calls listener when it runs out.
func (s *Supervisor) CountFor(seconds int, listener Listener) Handle {
	op := &Operation{
		id:       s.nextID.Inc(),
		duration: seconds,
		listener: listener,
	}
	s.ops.Set(op.id, op)

	s.logger.WithFields(logrus.Fields{
		"operation": op.id,
		"duration":  seconds,
	}).Debug("Countdown started")

	s.ensureRunning()

	return op
}

// Cancel stops a countdown. Cancelling a fired or cancelled operation is a no-op.
func (s *Supervisor) Cancel(h Handle) {
	op, ok := h.(*Operation)
	if !ok || op == nil {
		return
	}

	op.cancel()
	s.ops.Del(op.id)

	s.logger.WithField("operation", op.id).Debug("Countdown cancelled")
}

// Close cancels every pending operation and stops the tick loop.
func (s *Supervisor) Close() {
	var ids []uint64
	s.ops.Range(func(id uint64, op *Operation) bool {
		op.cancel()
		ids = append(ids, id)
		return true
	})
	for _, id := range ids {
		s.ops.Del(id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		close(s.stop)
		s.running = false
	}
}

// Pending returns the number of operations still counting.
func (s *Supervisor) Pending() int {
	return s.ops.Len()
}

func (s *Supervisor) ensureRunning() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}
	s.running = true
	s.stop = make(chan struct{})

	stop := s.stop
	groutine.Go(context.Background(), "timer-supervisor", func(context.Context) {
		s.run(stop)
	})
}

func (s *Supervisor) run(stop <-chan struct{}) {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		var finished []uint64
		s.ops.Range(func(id uint64, op *Operation) bool {
			if op.tick() {
				finished = append(finished, id)
			}
			return true
		})
		for _, id := range finished {
			s.ops.Del(id)
			s.logger.WithField("operation", id).Debug("Countdown finished")
		}

		s.mu.Lock()
		if s.ops.Len() == 0 {
			// After a concurrent Close the running flag may belong to a newer loop.
			if s.running && s.stop == stop {
				s.running = false
			}
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()
	}
}
