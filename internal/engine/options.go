package engine

import (
	"context"
	"log/slog"

	"github.com/roach88/offsync/internal/changelog"
	"github.com/roach88/offsync/internal/ir"
	"github.com/roach88/offsync/internal/metrics"
)

// Persister stores a collection's snapshot and change log across restarts.
// Load methods return empty values (nil, nil) when nothing was saved yet.
type Persister interface {
	LoadSnapshot(ctx context.Context, collection string) ([]ir.Object, error)
	SaveSnapshot(ctx context.Context, collection string, records []ir.Object) error
	LoadChanges(ctx context.Context, collection string) (*changelog.Log, error)
	SaveChanges(ctx context.Context, collection string, changes *changelog.Log) error
}

// Option configures a Collection.
type Option func(*Collection)

// WithLogger sets the logger. Default: slog.Default().
// The collection adds a "collection" attribute.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Collection) {
		c.logger = logger
	}
}

// WithIDGenerator sets the generator used by Add. Default: RandomUUID.
func WithIDGenerator(gen IDGenerator) Option {
	return func(c *Collection) {
		c.newID = gen
	}
}

// WithPersister enables durable snapshot and change log storage. The
// collection loads its initial state from p and saves on every change.
func WithPersister(p Persister) Option {
	return func(c *Collection) {
		c.persister = p
	}
}

// WithMetrics records sync counters in m.
func WithMetrics(m *metrics.Collector) Option {
	return func(c *Collection) {
		c.metrics = m
	}
}
