package notify

import (
	"context"
	"sync"

	"github.com/srg/btflow/internal/groutine"
)

// Outbox is a Publisher that queues events and delivers them to the underlying
// publisher in order from a single background goroutine. Publish never blocks, so
// radios can report state changes from inside a listener's start action even when
// subscriber buffers are small.
type Outbox struct {
	pub Publisher

	mu         sync.Mutex
	queue      []Event
	delivering bool
	idle       *sync.Cond
}

// NewOutbox creates an outbox delivering to pub. Events sent to a nil pub are dropped.
func NewOutbox(pub Publisher) *Outbox {
	o := &Outbox{pub: pub}
	o.idle = sync.NewCond(&o.mu)
	return o
}

// Publish queues ev. The delivery goroutine is started on demand and exits once the
// queue is empty.
func (o *Outbox) Publish(ev Event) {
	if o.pub == nil {
		return
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	o.queue = append(o.queue, ev)
	if o.delivering {
		return
	}
	o.delivering = true
	groutine.Go(context.Background(), "notify-outbox", o.deliver)
}

// Flush blocks until every queued event has been handed to the underlying publisher.
func (o *Outbox) Flush() {
	o.mu.Lock()
	defer o.mu.Unlock()
	for o.delivering {
		o.idle.Wait()
	}
}

func (o *Outbox) deliver(context.Context) {
	for {
		o.mu.Lock()
		if len(o.queue) == 0 {
			o.delivering = false
			o.queue = nil
			o.idle.Broadcast()
			o.mu.Unlock()
			return
		}
		ev := o.queue[0]
		o.queue = o.queue[1:]
		o.mu.Unlock()

		o.pub.Publish(ev)
	}
}
