// Package bridge turns platform notifications into terminable event streams.
//
// A listen session subscribes to a set of categories, optionally runs a start action
// whose events are emitted first, and then forwards every delivered notification in
// arrival order until the exit predicate matches, the context is cancelled or the
// consumer stops ranging.
package bridge

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/srg/btflow/internal/notify"
	"github.com/srg/btflow/internal/stream"
)

// StartFunc runs once the subscription is registered. The returned events are emitted
// before any subscribed notification.
type StartFunc func(ctx context.Context) ([]notify.Event, error)

// ExitFunc reports whether ev ends the session. n is the 1-based position of ev within
// the session.
type ExitFunc func(ev notify.Event, n int) bool

// Setup describes a listen session.
type Setup struct {
	Categories []notify.Category
	Start      StartFunc // optional
	Exit       ExitFunc  // optional; nil never exits

	// SuppressExitEvent completes the stream without emitting the event matched by Exit.
	SuppressExitEvent bool
}

// Bridge opens listen sessions on a notification source.
type Bridge struct {
	source notify.Source
	logger *logrus.Logger
}

// New creates a bridge over source.
func New(source notify.Source, logger *logrus.Logger) *Bridge {
	if logger == nil {
		logger = logrus.New()
	}
	return &Bridge{source: source, logger: logger}
}

// Listen returns a stream of the session events. Nothing happens until the stream is
// ranged over; each range starts a new session.
func (b *Bridge) Listen(ctx context.Context, setup Setup) stream.Stream[notify.Event] {
	return func(yield func(notify.Event, error) bool) {
		session := uuid.NewString()
		logger := b.logger.WithFields(logrus.Fields{
			"session":    session,
			"categories": setup.Categories,
		})

		sub, err := b.source.Subscribe(setup.Categories...)
		if err != nil {
			yield(notify.Event{}, fmt.Errorf("failed to subscribe: %w", err))
			return
		}
		defer func() {
			sub.Unsubscribe()
			logger.Debug("Listen session closed")
		}()
		logger.Debug("Listen session opened")

		n := 0
		// emit reports whether the session must go on.
		emit := func(ev notify.Event) bool {
			n++
			ev.Seq = n

			if setup.Exit != nil && setup.Exit(ev, n) {
				logger.WithFields(logrus.Fields{
					"event":    ev.String(),
					"position": n,
				}).Debug("Exit event received")
				if !setup.SuppressExitEvent {
					yield(ev, nil)
				}
				return false
			}

			logger.WithField("event", ev.String()).Debug("Forwarding event")
			return yield(ev, nil)
		}

		if setup.Start != nil {
			events, err := setup.Start(ctx)
			if err != nil {
				logger.WithError(err).Debug("Start action failed")
				yield(notify.Event{}, err)
				return
			}
			for _, ev := range events {
				if !emit(ev) {
					return
				}
			}
		}

		for {
			select {
			case <-ctx.Done():
				yield(notify.Event{}, ctx.Err())
				return
			case ev, ok := <-sub.C():
				if !ok {
					logger.Debug("Notification source closed the subscription")
					return
				}
				if !emit(ev) {
					return
				}
			}
		}
	}
}
