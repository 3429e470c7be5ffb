package engine

import (
	"slices"
	"sync"

	"github.com/roach88/offsync/internal/connectivity"
	"github.com/roach88/offsync/internal/remote"
)

// Registry hands out one Collection per name over a shared backend and
// connectivity signal.
//
// Collections are created on first request and kept for the lifetime of
// the registry, so a later subscriber sees the state (and pending changes)
// accumulated before, even after every earlier subscriber left.
type Registry struct {
	backend remote.Backend
	signal  connectivity.Signal
	opts    []Option

	mu          sync.Mutex
	collections map[string]*Collection
}

// NewRegistry creates a registry. opts apply to every collection.
func NewRegistry(backend remote.Backend, signal connectivity.Signal, opts ...Option) *Registry {
	return &Registry{
		backend:     backend,
		signal:      signal,
		opts:        opts,
		collections: make(map[string]*Collection),
	}
}

// Collection returns the named collection, creating it on first use. opts
// override the registry options and are ignored when the collection
// already exists.
func (r *Registry) Collection(name string, opts ...Option) *Collection {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.collections[name]; ok {
		return c
	}
	all := make([]Option, 0, len(r.opts)+len(opts))
	all = append(all, r.opts...)
	all = append(all, opts...)
	c := NewCollection(name, r.backend.Source(name), r.signal, all...)
	r.collections[name] = c
	return c
}

// Names returns the names of the created collections, sorted.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.collections))
	for name := range r.collections {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
