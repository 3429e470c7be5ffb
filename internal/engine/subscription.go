package engine

import (
	"sync/atomic"

	"github.com/roach88/offsync/internal/ir"
)

// View is one revision of a collection's merged records.
type View struct {
	// Revision increases with every state transition of the collection.
	Revision int64

	// Records is the merged view. The slice and its objects belong to the
	// receiver.
	Records []ir.Object
}

// subscription is one registered callback.
type subscription struct {
	fn      func(View)
	stopped atomic.Bool
}

func newSubscription(fn func(View)) *subscription {
	return &subscription{fn: fn}
}

// send calls the callback unless the subscription was stopped.
func (s *subscription) send(v View) {
	if s.stopped.Load() {
		return
	}
	s.fn(v)
}

// stop ends delivery. A callback already running is not interrupted.
func (s *subscription) stop() {
	s.stopped.Store(true)
}

// delivery is one queued callback invocation.
type delivery struct {
	sub  *subscription
	view View
}

// enqueueLocked queues v for every current subscriber. Views are queued in
// revision order because c.mu serializes commits.
func (c *Collection) enqueueLocked(rev int64) {
	for _, sub := range c.subs {
		c.queue = append(c.queue, delivery{
			sub:  sub,
			view: View{Revision: rev, Records: copyRecords(c.view)},
		})
	}
}

// deliver runs queued callbacks on the calling goroutine, in queue order,
// until the queue is empty. It must be called without c.mu held.
//
// If another call is already delivering, deliver returns at once and that
// call delivers what was queued. A callback that mutates the collection
// therefore gets its own view after it returns, never nested inside itself.
func (c *Collection) deliver() {
	c.mu.Lock()
	if c.delivering {
		c.mu.Unlock()
		return
	}
	c.delivering = true
	c.mu.Unlock()

	done := false
	defer func() {
		if !done {
			// a callback panicked
			c.mu.Lock()
			c.delivering = false
			c.mu.Unlock()
		}
	}()

	for {
		c.mu.Lock()
		batch := c.queue
		c.queue = nil
		if len(batch) == 0 {
			c.delivering = false
			c.mu.Unlock()
			done = true
			return
		}
		c.mu.Unlock()

		for _, d := range batch {
			d.sub.send(d.view)
		}
	}
}
