package engine

import (
	"github.com/roach88/offsync/internal/changelog"
	"github.com/roach88/offsync/internal/ir"
)

// Reason explains why a change was retired.
type Reason string

const (
	// ReasonConfirmed means the remote records already reflect the change.
	ReasonConfirmed Reason = "confirmed"
	// ReasonMoot means the change targets a record the remote no longer has.
	ReasonMoot Reason = "moot"
)

// Retirement is one change removed from the log by Reconcile.
type Retirement struct {
	Change changelog.Change
	Reason Reason
}

// Reconcile removes from changes every entry the fetched records show to be
// applied or moot, and returns what it removed.
//
//   - Update: retired when merging the patch over the fetched record yields
//     a record deep-equal to the fetched one.
//   - Insert: retired as soon as the id is present, whatever the content.
//     Remote-side normalization of an inserted record does not keep the
//     insert alive.
//   - Update or Delete for an id absent from records: retired as moot. For
//     a Delete that means the delete took effect; for an Update the record
//     was removed elsewhere.
//   - Insert for an absent id stays: it still needs pushing.
//
// Records without a usable id are ignored.
func Reconcile(changes *changelog.Log, records []ir.Object) []Retirement {
	var retired []Retirement
	present := make(map[ir.ID]struct{}, len(records))

	for _, rec := range records {
		id, ok := rec.ID()
		if !ok {
			continue
		}
		present[id] = struct{}{}

		change, pending := changes.Get(id)
		if !pending {
			continue
		}
		switch change.Kind {
		case changelog.KindInsert:
			retired = append(retired, Retirement{Change: change, Reason: ReasonConfirmed})
			changes.Retire(id)
		case changelog.KindUpdate:
			if ir.Equal(ir.Merge(rec, change.Data), rec) {
				retired = append(retired, Retirement{Change: change, Reason: ReasonConfirmed})
				changes.Retire(id)
			}
		}
	}

	for _, change := range changes.Entries() {
		if change.Kind == changelog.KindInsert {
			continue
		}
		if _, ok := present[change.ID]; ok {
			continue
		}
		retired = append(retired, Retirement{Change: change, Reason: ReasonMoot})
		changes.Retire(change.ID)
	}
	return retired
}
