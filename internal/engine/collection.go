package engine

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/roach88/offsync/internal/changelog"
	"github.com/roach88/offsync/internal/connectivity"
	"github.com/roach88/offsync/internal/ir"
	"github.com/roach88/offsync/internal/metrics"
	"github.com/roach88/offsync/internal/remote"
)

// Collection is an offline-first view of one remote collection.
//
// Thread-safety model:
//   - every method is safe from any goroutine;
//   - subscriber callbacks run on the goroutine that caused the transition,
//     after the collection lock is released, and may call back into the
//     collection;
//   - every subscriber sees every revision, in revision order;
//   - remote calls never run under the collection lock.
type Collection struct {
	name      string
	source    remote.Source
	signal    connectivity.Signal
	logger    *slog.Logger
	newID     IDGenerator
	persister Persister
	metrics   *metrics.Collector

	fetches   *Clock // stamps fetches at start
	revisions *Clock

	mu       sync.Mutex
	snapshot []ir.Object
	changes  *changelog.Log
	view     []ir.Object
	applied  int64 // stamp of the last applied fetch
	subs     []*subscription // in subscribe order
	active   *activation // nil while nobody subscribes
	online   bool
	inflight int

	queue      []delivery // views not yet handed to subscribers
	delivering bool

	idle     chan struct{} // closed while inflight == 0
}

// activation holds what the first subscriber starts and the last one stops.
type activation struct {
	ctx        context.Context
	cancel     context.CancelFunc
	stopWatch  func()
	stopSignal func()
}

// NewCollection creates a collection over source. The initial state is
// loaded from the persister when one is configured; load failures are
// logged and leave the state empty.
func NewCollection(name string, source remote.Source, signal connectivity.Signal, opts ...Option) *Collection {
	c := &Collection{
		name:      name,
		source:    source,
		signal:    signal,
		logger:    slog.Default(),
		newID:     RandomUUID,
		fetches:   NewClock(),
		revisions: NewClock(),
		changes:   changelog.New(),
		idle:      make(chan struct{}),
	}
	close(c.idle)
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("collection", name)

	c.load(context.Background())
	c.view = Merge(c.snapshot, c.changes)
	c.metrics.SetPending(c.name, c.changes.Len())
	return c
}

func (c *Collection) load(ctx context.Context) {
	if c.persister == nil {
		return
	}
	snapshot, err := c.persister.LoadSnapshot(ctx, c.name)
	if err != nil {
		c.logger.Error("load snapshot failed", "error", err)
	} else {
		c.snapshot = snapshot
	}
	changes, err := c.persister.LoadChanges(ctx, c.name)
	if err != nil {
		c.logger.Error("load changes failed", "error", err)
	} else if changes != nil {
		c.changes = changes
	}
	c.logger.Debug("state loaded", "records", len(c.snapshot), "pending", c.changes.Len())
}

// Name returns the collection name.
func (c *Collection) Name() string {
	return c.name
}

// Current returns a copy of the merged view.
func (c *Collection) Current() []ir.Object {
	c.mu.Lock()
	defer c.mu.Unlock()
	return copyRecords(c.view)
}

// Snapshot returns a copy of the last fetched remote records.
func (c *Collection) Snapshot() []ir.Object {
	c.mu.Lock()
	defer c.mu.Unlock()
	return copyRecords(c.snapshot)
}

// Pending returns the pending changes in log order.
func (c *Collection) Pending() []changelog.Change {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.changes.Clone().Entries()
}

// Revision returns the revision of the current view.
func (c *Collection) Revision() int64 {
	return c.revisions.Current()
}

// Online reports the connectivity last observed while active.
func (c *Collection) Online() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active != nil && c.online
}

// Subscribe registers fn for merged views. fn receives the current view
// before Subscribe returns, then every later revision in order. Likewise a
// mutation delivers its view to every subscriber before it returns. The
// exception is a call made from inside a callback, or while another
// goroutine is delivering: the view is then handed on by that delivery.
//
// The first subscriber triggers the initial fetch, opens the remote change
// channel and starts observing connectivity. Calling the returned function
// unsubscribes; the last unsubscribe tears all of that down. It is safe to
// call more than once.
func (c *Collection) Subscribe(fn func(View)) (unsubscribe func()) {
	defer c.deliver()
	c.mu.Lock()
	defer c.mu.Unlock()

	sub := newSubscription(fn)
	c.subs = append(c.subs, sub)
	c.queue = append(c.queue, delivery{
		sub:  sub,
		view: View{Revision: c.revisions.Current(), Records: copyRecords(c.view)},
	})

	if len(c.subs) == 1 {
		c.activateLocked()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()

			c.subs = slices.DeleteFunc(c.subs, func(s *subscription) bool { return s == sub })
			sub.stop()
			if len(c.subs) == 0 {
				c.deactivateLocked()
			}
		})
	}
}

// Add records a local insert and returns the record's id.
//
// With generateID set, a fresh id from the configured generator replaces
// any id on the record. Without it the record's own id is used; a record
// with no usable id gets a generated one anyway. The caller's object is
// never modified.
func (c *Collection) Add(record ir.Object, generateID bool) ir.ID {
	defer c.deliver()
	c.mu.Lock()
	defer c.mu.Unlock()

	id, ok := record.ID()
	if generateID || !ok {
		if !generateID {
			c.logger.Warn("record has no usable id, generating one")
		}
		id = c.newID()
	}
	c.changes.Insert(id, record.WithID(id))
	c.logger.Debug("local insert", "id", id.String())
	c.commitLocked(true, false)
	return id
}

// Update records a field patch. The patch must carry the target id in its
// id field; a patch without one is logged and dropped.
func (c *Collection) Update(patch ir.Object) {
	id, ok := patch.ID()
	if !ok {
		c.logger.Warn("update dropped: patch has no id")
		return
	}

	defer c.deliver()
	c.mu.Lock()
	defer c.mu.Unlock()

	c.changes.Update(id, patch.WithID(id))
	c.logger.Debug("local update", "id", id.String())
	c.commitLocked(true, false)
}

// Delete records a local removal.
func (c *Collection) Delete(id ir.ID) {
	defer c.deliver()
	c.mu.Lock()
	defer c.mu.Unlock()

	c.changes.Delete(id)
	c.logger.Debug("local delete", "id", id.String())
	c.commitLocked(true, false)
}

// Push starts a push of every pending change if the collection is active
// and online, and returns the started tasks.
func (c *Collection) Push() []*PushTask {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active == nil || !c.online {
		return nil
	}
	return c.pushLocked(c.active)
}

// Refresh starts a fetch if the collection is active.
func (c *Collection) Refresh() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active != nil {
		c.fetchLocked(c.active)
	}
}

// Settle blocks until no fetch, push or change channel setup is in flight,
// or ctx is done. Operations started by notifications that arrive later
// are not waited for. Settle must not be called from a subscriber callback.
func (c *Collection) Settle(ctx context.Context) error {
	for {
		c.mu.Lock()
		if c.inflight == 0 {
			c.mu.Unlock()
			return nil
		}
		idle := c.idle
		c.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-idle:
		}
	}
}

func (c *Collection) activateLocked() {
	ctx, cancel := context.WithCancel(context.Background())
	a := &activation{ctx: ctx, cancel: cancel}
	c.active = a
	c.logger.Info("collection activated")

	c.fetchLocked(a)

	c.beginLocked()
	go c.openWatch(a)

	a.stopSignal = c.signal.Watch(c.setOnline)
	c.online = c.signal.Online()
	if c.online {
		c.pushLocked(a)
	}
}

func (c *Collection) deactivateLocked() {
	a := c.active
	c.active = nil
	a.cancel()
	if a.stopWatch != nil {
		a.stopWatch()
	}
	a.stopSignal()
	c.logger.Info("collection deactivated")
}

func (c *Collection) openWatch(a *activation) {
	stop, err := c.source.Watch(a.ctx, c.Refresh)

	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.endLocked()

	if err != nil {
		if a.ctx.Err() == nil {
			c.logger.Error("open change channel failed", "error", err)
		}
		return
	}
	if c.active != a {
		stop()
		return
	}
	a.stopWatch = stop
}

func (c *Collection) setOnline(online bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active == nil || c.online == online {
		return
	}
	c.online = online
	c.logger.Info("connectivity changed", "online", online)
	if online {
		c.pushLocked(c.active)
	}
}

func (c *Collection) fetchLocked(a *activation) {
	seq := c.fetches.Next()
	c.logger.Debug("fetch started", "seq", seq)
	c.beginLocked()
	go func() {
		records, err := c.source.FetchAll(a.ctx)
		c.applyFetch(a, seq, records, err)
	}()
}

// applyFetch stays in flight until subscribers have the resulting view, so
// Settle also waits for delivery.
func (c *Collection) applyFetch(a *activation, seq int64, records []ir.Object, err error) {
	defer c.end()
	defer c.deliver()
	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		if a.ctx.Err() != nil {
			c.logger.Debug("fetch abandoned", "seq", seq)
			return
		}
		c.metrics.ObserveFetch(c.name, err)
		c.logger.Error("fetch failed", "seq", seq, "error", NewFetchError(c.name, err))
		return
	}
	c.metrics.ObserveFetch(c.name, nil)

	if seq < c.applied {
		c.logger.Warn("stale fetch discarded", "seq", seq, "applied", c.applied)
		return
	}
	c.applied = seq
	c.snapshot = records

	retired := Reconcile(c.changes, records)
	for _, r := range retired {
		c.metrics.ObserveRetired(c.name, r.Change.Kind.String(), string(r.Reason))
		c.logger.Info("change retired",
			"id", r.Change.ID.String(),
			"type", r.Change.Kind.String(),
			"reason", string(r.Reason))
	}
	c.commitLocked(len(retired) > 0, true)
	c.logger.Info("fetch applied", "seq", seq, "records", len(records), "revision", c.revisions.Current())
}

func (c *Collection) pushLocked(a *activation) []*PushTask {
	entries := c.changes.Entries()
	if len(entries) == 0 {
		return nil
	}
	c.logger.Debug("pushing pending changes", "count", len(entries))

	// Pushes finish even if the last subscriber leaves meanwhile.
	ctx := context.WithoutCancel(a.ctx)
	tasks := make([]*PushTask, 0, len(entries))
	for _, change := range entries {
		task := newPushTask(change)
		c.beginLocked()
		go c.runPush(ctx, task)
		tasks = append(tasks, task)
	}
	return tasks
}

func (c *Collection) runPush(ctx context.Context, task *PushTask) {
	change := task.Change()
	err := sendChange(ctx, c.source, change)

	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.endLocked()

	c.metrics.ObservePush(c.name, change.Kind.String(), err)
	if err != nil {
		c.logger.Error("push failed", "error", NewPushError(c.name, change, err))
	} else {
		c.logger.Debug("change pushed", "id", change.ID.String(), "type", change.Kind.String())
	}
	task.finish(err)
}

// commitLocked publishes a state transition: new revision, merged view,
// persistence, queued subscriber views and, if the change log changed while
// online, a push round. The caller delivers the queue after unlocking.
func (c *Collection) commitLocked(changesDirty, snapshotDirty bool) {
	rev := c.revisions.Next()
	c.view = Merge(c.snapshot, c.changes)
	c.persistLocked(changesDirty, snapshotDirty)
	c.metrics.SetPending(c.name, c.changes.Len())

	c.enqueueLocked(rev)

	if changesDirty && c.active != nil && c.online {
		c.pushLocked(c.active)
	}
}

func (c *Collection) persistLocked(changesDirty, snapshotDirty bool) {
	if c.persister == nil {
		return
	}
	ctx := context.Background()
	if snapshotDirty {
		if err := c.persister.SaveSnapshot(ctx, c.name, c.snapshot); err != nil {
			c.logger.Error("save snapshot failed", "error", err)
		}
	}
	if changesDirty {
		if err := c.persister.SaveChanges(ctx, c.name, c.changes); err != nil {
			c.logger.Error("save changes failed", "error", err)
		}
	}
}

func (c *Collection) beginLocked() {
	if c.inflight == 0 {
		c.idle = make(chan struct{})
	}
	c.inflight++
}

func (c *Collection) end() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.endLocked()
}

func (c *Collection) endLocked() {
	c.inflight--
	if c.inflight == 0 {
		close(c.idle)
	}
}

func copyRecords(records []ir.Object) []ir.Object {
	out := make([]ir.Object, len(records))
	for i, rec := range records {
		out[i] = rec.Clone()
	}
	return out
}
