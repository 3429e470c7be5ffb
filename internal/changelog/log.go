package changelog

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/roach88/offsync/internal/ir"
)

// Log is an ordered-by-identifier mapping from record id to pending Change.
// The zero value is not usable; call New.
type Log struct {
	entries map[ir.ID]Change
}

// New returns an empty Log.
func New() *Log {
	return &Log{entries: make(map[ir.ID]Change)}
}

// FromChanges builds a Log from a list of changes. Later entries for the
// same id replace earlier ones.
func FromChanges(changes []Change) *Log {
	l := New()
	for _, c := range changes {
		l.entries[c.ID] = c
	}
	return l
}

// Len returns the number of pending entries.
func (l *Log) Len() int {
	return len(l.entries)
}

// Get returns the pending change for id.
func (l *Log) Get(id ir.ID) (Change, bool) {
	c, ok := l.entries[id]
	return c, ok
}

// Has reports whether id has a pending change.
func (l *Log) Has(id ir.ID) bool {
	_, ok := l.entries[id]
	return ok
}

// IDs returns the pending identifiers in iteration order.
func (l *Log) IDs() []ir.ID {
	ids := make([]ir.ID, 0, len(l.entries))
	for id := range l.entries {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, ir.CompareIDs)
	return ids
}

// Entries returns the pending changes in iteration order.
func (l *Log) Entries() []Change {
	ids := l.IDs()
	out := make([]Change, len(ids))
	for i, id := range ids {
		out[i] = l.entries[id]
	}
	return out
}

// Clone returns an independent copy. Change data maps are copied one level
// deep, matching the shallow merge semantics used everywhere else.
func (l *Log) Clone() *Log {
	out := &Log{entries: make(map[ir.ID]Change, len(l.entries))}
	for id, c := range l.entries {
		c.Data = c.Data.Clone()
		out.entries[id] = c
	}
	return out
}

// Insert installs an Insert entry, replacing any prior entry for the id.
func (l *Log) Insert(id ir.ID, record ir.Object) {
	l.entries[id] = Insert(id, record.Clone())
}

// Update records a field patch for id.
//
//   - pending Insert or Update: the new fields are merged into the pending
//     data (new fields win) and the entry keeps its kind;
//   - pending Delete: the Delete is overwritten by a fresh Update. This
//     resurrects the record once pushed; kept for compatibility with
//     existing stores until product intent says otherwise;
//   - nothing pending: a new Update entry is installed.
func (l *Log) Update(id ir.ID, patch ir.Object) {
	prior, ok := l.entries[id]
	if ok && (prior.Kind == KindInsert || prior.Kind == KindUpdate) {
		prior.Data = ir.Merge(prior.Data, patch)
		l.entries[id] = prior
		return
	}
	l.entries[id] = Update(id, patch.Clone())
}

// Delete records a removal for id. A pending Insert is cancelled outright
// since nothing was ever sent remotely; otherwise a Delete is installed.
func (l *Log) Delete(id ir.ID) {
	if prior, ok := l.entries[id]; ok && prior.Kind == KindInsert {
		delete(l.entries, id)
		return
	}
	l.entries[id] = Delete(id)
}

// Retire removes the entry for id. It reports whether an entry existed.
func (l *Log) Retire(id ir.ID) bool {
	if _, ok := l.entries[id]; !ok {
		return false
	}
	delete(l.entries, id)
	return true
}

// MarshalJSON encodes the log as an array of changes in iteration order.
func (l *Log) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.Entries())
}

// UnmarshalJSON decodes an array of changes.
func (l *Log) UnmarshalJSON(data []byte) error {
	var changes []Change
	if err := json.Unmarshal(data, &changes); err != nil {
		return fmt.Errorf("decode change log: %w", err)
	}
	*l = *FromChanges(changes)
	return nil
}
