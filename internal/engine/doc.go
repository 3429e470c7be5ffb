// Package engine implements offline-first collections.
//
// A Collection combines three pieces of state:
//
//   - the snapshot: the last full record list fetched from the remote source;
//   - the change log: local mutations not yet confirmed remotely;
//   - the connectivity signal: whether pushes may be attempted.
//
// Subscribers see the merged view: the snapshot with pending changes
// applied (see Merge). Local mutations only touch the change log. Remote
// changes trigger a refetch, and every fetch result replaces the snapshot
// and retires the changes it shows to be applied or moot (see Reconcile).
// While online, every pending change is pushed to the remote source as an
// idempotent operation (see PushTask).
//
// CONCURRENCY:
//
// Each Collection serializes state transitions with one mutex. A transition
// increments the revision, recomputes the merged view, persists what changed
// and queues the view for every subscriber. Once the lock is released the
// goroutine that made the transition runs the queued callbacks in revision
// order, so all subscribers see the same sequence of views and a mutation
// returns only after they have seen its result. A callback that mutates the
// collection queues its view behind the current one instead of nesting.
// Remote calls (fetch, push, opening the change channel) run outside the
// lock.
//
// Fetch results are stamped with a sequence number from Clock when the
// fetch starts. A result older than the last applied one is discarded, so
// out-of-order completions never roll the snapshot back.
//
// LIFECYCLE:
//
// The first subscriber activates the collection: initial fetch, remote
// change channel, connectivity observation. The last unsubscribe closes the
// channel and stops observing connectivity. Pushes already in flight run to
// completion on a context that outlives teardown.
package engine
