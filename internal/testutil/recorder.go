package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/roach88/offsync/internal/ir"
	"github.com/roach88/offsync/internal/remote"
)

// Call is one remote call seen by a RecordingSource.
type Call struct {
	Op   string // "fetch", "insert", "update", "delete", "watch"
	ID   ir.ID
	Data ir.Object
}

// String renders the call for trace output, e.g. "update 3".
func (c Call) String() string {
	switch c.Op {
	case "insert", "update", "delete":
		return fmt.Sprintf("%s %s", c.Op, c.ID)
	default:
		return c.Op
	}
}

// RecordingSource wraps a remote.Source and records every call before
// forwarding it.
//
// With Mute set, change notifications from the wrapped source are
// swallowed, so each push produces exactly one remote call and no refetch.
type RecordingSource struct {
	remote.Source

	mu          sync.Mutex
	calls       []Call
	mute        bool
	failFetches int
	failPushes  int
}

// NewRecordingSource wraps src.
func NewRecordingSource(src remote.Source) *RecordingSource {
	return &RecordingSource{Source: src}
}

// Mute stops forwarding change notifications to watchers opened afterwards.
func (r *RecordingSource) Mute() *RecordingSource {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mute = true
	return r
}

// Calls returns a copy of the recorded calls.
func (r *RecordingSource) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// Pushes returns only insert, update and delete calls.
func (r *RecordingSource) Pushes() []Call {
	var out []Call
	for _, c := range r.Calls() {
		if c.Op == "insert" || c.Op == "update" || c.Op == "delete" {
			out = append(out, c)
		}
	}
	return out
}

// Reset clears the recorded calls.
func (r *RecordingSource) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}

// FailNextFetch makes the next n fetches fail with remote.ErrInjected
// without reaching the wrapped source. The calls are still recorded.
func (r *RecordingSource) FailNextFetch(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failFetches += n
}

// FailNextPush makes the next n inserts, updates or deletes fail with
// remote.ErrInjected without reaching the wrapped source.
func (r *RecordingSource) FailNextPush(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failPushes += n
}

// record appends c and reports whether the call must fail.
func (r *RecordingSource) record(c Call) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, c)

	budget := &r.failPushes
	switch c.Op {
	case "fetch":
		budget = &r.failFetches
	case "watch":
		return nil
	}
	if *budget > 0 {
		*budget--
		return fmt.Errorf("%s: %w", c, remote.ErrInjected)
	}
	return nil
}

// FetchAll implements remote.Source.
func (r *RecordingSource) FetchAll(ctx context.Context) ([]ir.Object, error) {
	if err := r.record(Call{Op: "fetch"}); err != nil {
		return nil, err
	}
	return r.Source.FetchAll(ctx)
}

// Insert implements remote.Source.
func (r *RecordingSource) Insert(ctx context.Context, record ir.Object) error {
	id, _ := record.ID()
	if err := r.record(Call{Op: "insert", ID: id, Data: record.Clone()}); err != nil {
		return err
	}
	return r.Source.Insert(ctx, record)
}

// Update implements remote.Source.
func (r *RecordingSource) Update(ctx context.Context, id ir.ID, patch ir.Object) error {
	if err := r.record(Call{Op: "update", ID: id, Data: patch.Clone()}); err != nil {
		return err
	}
	return r.Source.Update(ctx, id, patch)
}

// Delete implements remote.Source.
func (r *RecordingSource) Delete(ctx context.Context, id ir.ID) error {
	if err := r.record(Call{Op: "delete", ID: id}); err != nil {
		return err
	}
	return r.Source.Delete(ctx, id)
}

// Watch implements remote.Source.
func (r *RecordingSource) Watch(ctx context.Context, notify func()) (func(), error) {
	_ = r.record(Call{Op: "watch"})
	r.mu.Lock()
	mute := r.mute
	r.mu.Unlock()
	if mute {
		notify = func() {}
	}
	return r.Source.Watch(ctx, notify)
}

// Backend returns a remote.Backend that always serves this source.
func (r *RecordingSource) Backend() remote.Backend {
	return singleBackend{r}
}

type singleBackend struct{ src remote.Source }

func (b singleBackend) Source(string) remote.Source { return b.src }
