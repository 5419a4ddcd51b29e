// Package notify is the boundary with the platform notification source.
//
// The core only depends on Source and Publisher. Bus is the in-process implementation
// used by the simulated and go-ble radios: it fans events out per Category with
// github.com/cskr/pubsub/v2.
package notify

import (
	"errors"
	"sync"

	"github.com/cskr/pubsub/v2"
	"github.com/sirupsen/logrus"
)

// DefaultCapacity is the per-subscriber buffer size of a Bus.
const DefaultCapacity = 64

// ErrClosed is returned when subscribing to a closed Bus.
var ErrClosed = errors.New("notification bus closed")

// Subscription delivers events of the subscribed categories until unsubscribed.
type Subscription interface {
	// C returns the delivery channel. It is closed after Unsubscribe.
	C() <-chan Event
	// Unsubscribe stops delivery. It is safe to call more than once.
	Unsubscribe()
}

// Source delivers platform notifications to subscribers. A subscriber only receives
// events for the categories it subscribed to.
type Source interface {
	Subscribe(categories ...Category) (Subscription, error)
}

// Publisher posts events into the notification path.
type Publisher interface {
	Publish(ev Event)
}

// Bus is an in-process Source and Publisher.
type Bus struct {
	ps     *pubsub.PubSub[Category, Event]
	logger *logrus.Logger

	mu     sync.RWMutex
	closed bool
}

// NewBus creates a bus whose subscribers buffer up to capacity events.
func NewBus(capacity int, logger *logrus.Logger) *Bus {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if logger == nil {
		logger = logrus.New()
	}

	return &Bus{
		ps:     pubsub.New[Category, Event](capacity),
		logger: logger,
	}
}

// Publish delivers ev to every subscriber of its category, in publish order.
// It blocks while a subscriber's buffer is full. Publishing on a closed bus is a no-op.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		b.logger.WithField("event", ev.String()).Debug("Dropping event published on closed bus")
		return
	}

	b.logger.WithField("event", ev.String()).Debug("Publishing event")
	b.ps.Pub(ev, ev.Category)
}

// Subscribe registers a subscriber for categories.
func (b *Bus) Subscribe(categories ...Category) (Subscription, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, ErrClosed
	}

	return &busSubscription{
		bus:        b,
		ch:         b.ps.Sub(categories...),
		categories: categories,
	}, nil
}

// Close shuts the bus down and closes every subscription channel.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	b.ps.Shutdown()
}

type busSubscription struct {
	bus        *Bus
	ch         chan Event
	categories []Category
	once       sync.Once
}

func (s *busSubscription) C() <-chan Event {
	return s.ch
}

// Unsubscribe drains the channel while unsubscribing: the pubsub loop may be blocked
// delivering to this subscriber, and it must get through before it can process the
// unsubscribe command. Draining starts before taking the bus lock, since a pending
// Close may be waiting behind a publisher stuck on this very subscriber.
func (s *busSubscription) Unsubscribe() {
	s.once.Do(func() {
		go func() {
			for range s.ch {
			}
		}()

		s.bus.mu.RLock()
		defer s.bus.mu.RUnlock()

		if s.bus.closed {
			return
		}
		s.bus.ps.Unsub(s.ch, s.categories...)
	})
}
