package remote

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/roach88/offsync/internal/ir"
)

// ErrInjected is the failure returned by Memory when a failure was armed
// with FailNextFetch or FailNextPush.
var ErrInjected = errors.New("injected remote failure")

// Memory is an in-process Backend. Collections are created on first use.
//
// Thread-safety: all methods are safe for concurrent use.
type Memory struct {
	mu          sync.Mutex
	collections map[string]*MemorySource
}

// NewMemory creates an empty in-memory backend.
func NewMemory() *Memory {
	return &Memory{collections: make(map[string]*MemorySource)}
}

// Source returns the named collection, creating it if needed.
func (m *Memory) Source(collection string) Source {
	return m.Collection(collection)
}

// Collection is Source with the concrete type, for test setup.
func (m *Memory) Collection(name string) *MemorySource {
	m.mu.Lock()
	defer m.mu.Unlock()

	src, ok := m.collections[name]
	if !ok {
		src = newMemorySource(name)
		m.collections[name] = src
	}
	return src
}

// MemorySource holds one collection's records in insertion order.
//
// Watchers are notified synchronously, after the lock is released, each
// time a mutation actually changes the stored records.
type MemorySource struct {
	name string

	mu        sync.Mutex
	order     []ir.ID
	records   map[ir.ID]ir.Object
	watchers  map[int]func()
	nextWatch int

	failFetches int
	failPushes  int
}

func newMemorySource(name string) *MemorySource {
	return &MemorySource{
		name:     name,
		records:  make(map[ir.ID]ir.Object),
		watchers: make(map[int]func()),
	}
}

// Name returns the collection name.
func (s *MemorySource) Name() string {
	return s.name
}

// FetchAll returns copies of the stored records in insertion order.
func (s *MemorySource) FetchAll(ctx context.Context) ([]ir.Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failFetches > 0 {
		s.failFetches--
		return nil, fmt.Errorf("fetch %s: %w", s.name, ErrInjected)
	}

	out := make([]ir.Object, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.records[id].Clone())
	}
	return out, nil
}

// Insert stores record under its id, replacing any existing record in place.
func (s *MemorySource) Insert(ctx context.Context, record ir.Object) error {
	id, ok := record.ID()
	if !ok {
		return fmt.Errorf("insert into %s: record has no id", s.name)
	}
	return s.mutate(ctx, func() bool {
		if prior, exists := s.records[id]; exists && ir.Equal(prior, record) {
			return false
		} else if !exists {
			s.order = append(s.order, id)
		}
		s.records[id] = record.Clone()
		return true
	})
}

// Update shallow-merges patch into the stored record.
func (s *MemorySource) Update(ctx context.Context, id ir.ID, patch ir.Object) error {
	missing := false
	err := s.mutate(ctx, func() bool {
		prior, exists := s.records[id]
		if !exists {
			missing = true
			return false
		}
		merged := ir.Merge(prior, patch)
		if ir.Equal(prior, merged) {
			return false
		}
		s.records[id] = merged
		return true
	})
	if err != nil {
		return err
	}
	if missing {
		return fmt.Errorf("update %s/%s: %w", s.name, id, ErrNotFound)
	}
	return nil
}

// Delete removes the record if present.
func (s *MemorySource) Delete(ctx context.Context, id ir.ID) error {
	return s.mutate(ctx, func() bool {
		if _, exists := s.records[id]; !exists {
			return false
		}
		delete(s.records, id)
		for i, existing := range s.order {
			if existing == id {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
		return true
	})
}

// Watch registers notify until stop is called or ctx is done.
func (s *MemorySource) Watch(ctx context.Context, notify func()) (func(), error) {
	s.mu.Lock()
	key := s.nextWatch
	s.nextWatch++
	s.watchers[key] = notify
	s.mu.Unlock()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.watchers, key)
			s.mu.Unlock()
		})
	}
	context.AfterFunc(ctx, stop)
	return stop, nil
}

// Watchers returns the number of open change channels.
func (s *MemorySource) Watchers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.watchers)
}

// Seed replaces the stored records without notifying watchers.
func (s *MemorySource) Seed(records ...ir.Object) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.order = s.order[:0]
	s.records = make(map[ir.ID]ir.Object, len(records))
	for _, rec := range records {
		id, ok := rec.ID()
		if !ok {
			continue
		}
		if _, exists := s.records[id]; !exists {
			s.order = append(s.order, id)
		}
		s.records[id] = rec.Clone()
	}
}

// Records returns copies of the stored records in insertion order. Unlike
// FetchAll it ignores injected failures.
func (s *MemorySource) Records() []ir.Object {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]ir.Object, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.records[id].Clone())
	}
	return out
}

// FailNextFetch makes the next n FetchAll calls fail with ErrInjected.
func (s *MemorySource) FailNextFetch(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failFetches += n
}

// FailNextPush makes the next n Insert/Update/Delete calls fail with ErrInjected.
func (s *MemorySource) FailNextPush(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failPushes += n
}

// mutate applies fn under the lock and notifies watchers if it changed anything.
func (s *MemorySource) mutate(ctx context.Context, fn func() bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	if s.failPushes > 0 {
		s.failPushes--
		s.mu.Unlock()
		return fmt.Errorf("push to %s: %w", s.name, ErrInjected)
	}
	changed := fn()
	var notify []func()
	if changed {
		notify = make([]func(), 0, len(s.watchers))
		for _, w := range s.watchers {
			notify = append(notify, w)
		}
	}
	s.mu.Unlock()

	for _, w := range notify {
		w()
	}
	return nil
}
