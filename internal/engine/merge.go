package engine

import (
	"github.com/roach88/offsync/internal/changelog"
	"github.com/roach88/offsync/internal/ir"
)

// Merge computes the view a subscriber sees: snapshot records in snapshot
// order with pending changes applied, followed by pending inserts for ids
// the snapshot does not contain, in change log order.
//
// For a snapshot record with a pending change:
//   - Delete drops the record;
//   - Update shallow-merges the patch over the record;
//   - Insert leaves the record as is. The insert is already confirmed and
//     is retired by the next reconciliation.
//
// Records without a usable id pass through untouched. When the snapshot
// repeats an id, only the first occurrence is kept.
//
// Merge is pure: neither input is modified and the result shares no maps
// the caller can reach through changes.
func Merge(snapshot []ir.Object, changes *changelog.Log) []ir.Object {
	out := make([]ir.Object, 0, len(snapshot)+changes.Len())
	seen := make(map[ir.ID]struct{}, len(snapshot))

	for _, rec := range snapshot {
		id, ok := rec.ID()
		if !ok {
			out = append(out, rec)
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		change, pending := changes.Get(id)
		switch {
		case !pending:
			out = append(out, rec)
		case change.Kind == changelog.KindDelete:
		case change.Kind == changelog.KindUpdate:
			out = append(out, ir.Merge(rec, change.Data))
		default:
			out = append(out, rec)
		}
	}

	for _, change := range changes.Entries() {
		if change.Kind != changelog.KindInsert {
			continue
		}
		if _, ok := seen[change.ID]; ok {
			continue
		}
		out = append(out, change.Data.Clone())
	}
	return out
}
