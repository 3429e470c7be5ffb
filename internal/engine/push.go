package engine

import (
	"context"
	"fmt"

	"github.com/roach88/offsync/internal/changelog"
	"github.com/roach88/offsync/internal/remote"
)

// PushTask tracks one in-flight push of a pending change.
//
// Pushes are fire-and-forget from the collection's point of view: success
// is only observed through a later fetch that reconciles the change away,
// and failure is logged and otherwise ignored. The task exists so callers
// such as the CLI and tests can wait for the attempt to finish.
type PushTask struct {
	change changelog.Change
	done   chan struct{}
	err    error
}

func newPushTask(change changelog.Change) *PushTask {
	return &PushTask{change: change, done: make(chan struct{})}
}

// Change returns the change being pushed.
func (t *PushTask) Change() changelog.Change {
	return t.change
}

// Done is closed once the remote call returned.
func (t *PushTask) Done() <-chan struct{} {
	return t.done
}

// Err returns the push failure. It is nil until Done is closed.
func (t *PushTask) Err() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}

// Wait blocks until the push finished or ctx is done.
func (t *PushTask) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.done:
		return t.err
	}
}

func (t *PushTask) finish(err error) {
	t.err = err
	close(t.done)
}

// sendChange issues the idempotent remote operation for change.
func sendChange(ctx context.Context, src remote.Source, change changelog.Change) error {
	switch change.Kind {
	case changelog.KindInsert:
		return src.Insert(ctx, change.Data.WithID(change.ID))
	case changelog.KindUpdate:
		return src.Update(ctx, change.ID, change.Data)
	case changelog.KindDelete:
		return src.Delete(ctx, change.ID)
	default:
		return fmt.Errorf("push %s: unsupported change type %s", change.ID, change.Kind)
	}
}
