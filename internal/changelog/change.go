// Package changelog holds the pending-change ledger of an offline collection.
//
// A Log maps each record identifier to at most one Change. Changes are
// created by local mutations and removed (retired) once the remote source
// is observed to reflect them. Iteration order is the identifier order
// defined by ir.CompareIDs, so every consumer sees the same sequence.
//
// A Log is not safe for concurrent use. The engine serializes access.
package changelog

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/offsync/internal/ir"
)

// Kind identifies the mutation a Change represents.
type Kind int

const (
	// KindInsert is a full new record not yet confirmed remotely.
	KindInsert Kind = iota + 1
	// KindUpdate is a field-level patch to an existing record.
	KindUpdate
	// KindDelete is a removal not yet confirmed remotely.
	KindDelete
)

// String returns the serialized name of the kind.
func (k Kind) String() string {
	switch k {
	case KindInsert:
		return "Insert"
	case KindUpdate:
		return "Update"
	case KindDelete:
		return "Delete"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "Insert":
		return KindInsert, nil
	case "Update":
		return KindUpdate, nil
	case "Delete":
		return KindDelete, nil
	default:
		return 0, fmt.Errorf("unknown change type %q", s)
	}
}

// Change is one pending mutation.
//
// Data holds the full record for KindInsert and the patch (including the
// id field) for KindUpdate. It is nil for KindDelete.
type Change struct {
	ID   ir.ID
	Kind Kind
	Data ir.Object
}

// Insert builds an Insert change for a record.
func Insert(id ir.ID, data ir.Object) Change {
	return Change{ID: id, Kind: KindInsert, Data: data}
}

// Update builds an Update change for a patch.
func Update(id ir.ID, patch ir.Object) Change {
	return Change{ID: id, Kind: KindUpdate, Data: patch}
}

// Delete builds a Delete change.
func Delete(id ir.ID) Change {
	return Change{ID: id, Kind: KindDelete}
}

// wireChange is the serialized form: {"id":..,"type":"Insert","data":{..}}.
type wireChange struct {
	ID   ir.ID     `json:"id"`
	Type string    `json:"type"`
	Data ir.Object `json:"data,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (c Change) MarshalJSON() ([]byte, error) {
	w := wireChange{ID: c.ID, Type: c.Kind.String()}
	if c.Kind != KindDelete {
		w.Data = c.Data
	}
	return json.Marshal(w)
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *Change) UnmarshalJSON(data []byte) error {
	var w wireChange
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("decode change: %w", err)
	}
	kind, err := ParseKind(w.Type)
	if err != nil {
		return err
	}
	*c = Change{ID: w.ID, Kind: kind}
	if kind != KindDelete {
		c.Data = w.Data
		if c.Data == nil {
			c.Data = ir.Object{}
		}
	}
	return nil
}
