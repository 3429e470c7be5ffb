// Package remote defines the authoritative data source an offline collection
// synchronizes with, plus two implementations:
//
//   - Memory: an in-process backend for tests, the scenario harness and demos.
//   - Redis: one hash per collection with a pub/sub change channel.
//
// Every mutation is idempotent by identifier (insert overwrites, delete is
// delete-if-exists, update patches by id), so callers may replay the same
// change any number of times.
package remote

import (
	"context"
	"errors"

	"github.com/roach88/offsync/internal/ir"
)

// ErrNotFound is returned by Update when the target record does not exist.
var ErrNotFound = errors.New("record not found")

// Source is one remote collection.
type Source interface {
	// FetchAll returns every record currently in the collection.
	FetchAll(ctx context.Context) ([]ir.Object, error)

	// Insert stores a full record, overwriting any record with the same id.
	Insert(ctx context.Context, record ir.Object) error

	// Update shallow-merges patch into the record with the given id.
	Update(ctx context.Context, id ir.ID, patch ir.Object) error

	// Delete removes the record with the given id if it exists.
	Delete(ctx context.Context, id ir.ID) error

	// Watch calls notify whenever the collection changes remotely. The
	// notification carries no payload; subscribers re-fetch. The returned
	// stop function closes the channel and is safe to call more than once.
	Watch(ctx context.Context, notify func()) (stop func(), err error)
}

// Backend opens Sources by collection name.
type Backend interface {
	Source(collection string) Source
}
