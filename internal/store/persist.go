package store

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/offsync/internal/changelog"
	"github.com/roach88/offsync/internal/ir"
)

// Key prefixes for collection state.
const (
	SnapshotPrefix = "data/"
	ChangesPrefix  = "changes/"
)

// SnapshotKey is the key holding a collection's snapshot.
func SnapshotKey(collection string) string {
	return SnapshotPrefix + collection
}

// ChangesKey is the key holding a collection's change log.
func ChangesKey(collection string) string {
	return ChangesPrefix + collection
}

// LoadSnapshot returns the saved snapshot, or nil if none was saved.
func (s *Store) LoadSnapshot(ctx context.Context, collection string) ([]ir.Object, error) {
	data, ok, err := s.Get(ctx, SnapshotKey(collection))
	if err != nil || !ok {
		return nil, err
	}
	records, err := unmarshalRecords(data)
	if err != nil {
		return nil, fmt.Errorf("load snapshot %s: %w", collection, err)
	}
	return records, nil
}

// SaveSnapshot replaces the saved snapshot.
func (s *Store) SaveSnapshot(ctx context.Context, collection string, records []ir.Object) error {
	data, err := marshalRecords(records)
	if err != nil {
		return fmt.Errorf("save snapshot %s: %w", collection, err)
	}
	return s.Put(ctx, SnapshotKey(collection), data)
}

// LoadChanges returns the saved change log, or nil if none was saved.
func (s *Store) LoadChanges(ctx context.Context, collection string) (*changelog.Log, error) {
	data, ok, err := s.Get(ctx, ChangesKey(collection))
	if err != nil || !ok {
		return nil, err
	}
	l, err := unmarshalChanges(data)
	if err != nil {
		return nil, fmt.Errorf("load changes %s: %w", collection, err)
	}
	return l, nil
}

// SaveChanges replaces the saved change log.
func (s *Store) SaveChanges(ctx context.Context, collection string, changes *changelog.Log) error {
	data, err := marshalChanges(changes)
	if err != nil {
		return fmt.Errorf("save changes %s: %w", collection, err)
	}
	return s.Put(ctx, ChangesKey(collection), data)
}

// Collections returns the names of collections with any saved state, sorted.
func (s *Store) Collections(ctx context.Context) ([]string, error) {
	var names []string
	for _, prefix := range []string{SnapshotPrefix, ChangesPrefix} {
		keys, err := s.List(ctx, prefix)
		if err != nil {
			return nil, err
		}
		for _, key := range keys {
			names = append(names, strings.TrimPrefix(key, prefix))
		}
	}
	slices.Sort(names)
	return slices.Compact(names), nil
}

// Forget removes all saved state of a collection.
func (s *Store) Forget(ctx context.Context, collection string) error {
	if err := s.Delete(ctx, SnapshotKey(collection)); err != nil {
		return err
	}
	return s.Delete(ctx, ChangesKey(collection))
}
