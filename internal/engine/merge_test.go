package engine

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/offsync/internal/changelog"
	"github.com/roach88/offsync/internal/ir"
)

func rec(id int64, kv ...any) ir.Object {
	obj := ir.Object{"id": ir.Int(id)}
	for i := 0; i+1 < len(kv); i += 2 {
		v, err := ir.FromAny(kv[i+1])
		if err != nil {
			panic(err)
		}
		obj[kv[i].(string)] = v
	}
	return obj
}

func TestMergeUpdateTakesPrecedence(t *testing.T) {
	changes := changelog.New()
	changes.Update(ir.IntID(1), rec(1, "x", "new"))

	got := Merge([]ir.Object{rec(1, "x", "old")}, changes)
	assert.Equal(t, []ir.Object{rec(1, "x", "new")}, got)
}

func TestMergeUpdateKeepsUnpatchedFields(t *testing.T) {
	changes := changelog.New()
	changes.Update(ir.IntID(1), rec(1, "done", true))

	got := Merge([]ir.Object{rec(1, "title", "milk", "done", false)}, changes)
	assert.Equal(t, []ir.Object{rec(1, "title", "milk", "done", true)}, got)
}

func TestMergeDeleteMasksSnapshot(t *testing.T) {
	changes := changelog.New()
	changes.Delete(ir.IntID(1))

	got := Merge([]ir.Object{rec(1)}, changes)
	assert.Empty(t, got)
}

func TestMergeSurfacesPendingInsert(t *testing.T) {
	changes := changelog.New()
	changes.Insert(ir.IntID(2), rec(2, "v", "a"))

	assert.Equal(t, []ir.Object{rec(2, "v", "a")}, Merge(nil, changes))

	// The insert shows up remotely: the snapshot record is used once and
	// reconciliation retires the insert.
	snapshot := []ir.Object{rec(2, "v", "a")}
	assert.Equal(t, []ir.Object{rec(2, "v", "a")}, Merge(snapshot, changes))

	retired := Reconcile(changes, snapshot)
	require.Len(t, retired, 1)
	assert.Equal(t, 0, changes.Len())
	assert.Equal(t, []ir.Object{rec(2, "v", "a")}, Merge(snapshot, changes))
}

func TestMergeOrder(t *testing.T) {
	changes := changelog.New()
	changes.Insert(ir.StringID("b"), ir.Object{"id": ir.String("b")})
	changes.Insert(ir.IntID(7), rec(7))
	changes.Insert(ir.StringID("a"), ir.Object{"id": ir.String("a")})
	changes.Update(ir.IntID(3), rec(3, "k", 1))

	snapshot := []ir.Object{rec(5), rec(3), rec(9)}
	got := Merge(snapshot, changes)

	var ids []string
	for _, r := range got {
		id, _ := r.ID()
		ids = append(ids, id.String())
	}
	assert.Equal(t, []string{"5", "3", "9", "7", "a", "b"}, ids,
		"snapshot order first, then pending inserts in change log order")
}

func TestMergeRecordsWithoutIDPassThrough(t *testing.T) {
	anon := ir.Object{"note": ir.String("no id")}
	got := Merge([]ir.Object{anon, rec(1)}, changelog.New())
	assert.Equal(t, []ir.Object{anon, rec(1)}, got)
}

func TestMergeDuplicateSnapshotIDKeepsFirst(t *testing.T) {
	got := Merge([]ir.Object{rec(1, "n", 1), rec(1, "n", 2)}, changelog.New())
	assert.Equal(t, []ir.Object{rec(1, "n", 1)}, got)
}

func TestMergeDoesNotModifyInputs(t *testing.T) {
	snapshot := []ir.Object{rec(1, "x", "old")}
	changes := changelog.New()
	changes.Update(ir.IntID(1), rec(1, "x", "new"))
	changes.Insert(ir.IntID(2), rec(2))

	got := Merge(snapshot, changes)
	got[0]["x"] = ir.String("mutated")
	got[1]["x"] = ir.String("mutated")

	assert.Equal(t, rec(1, "x", "old"), snapshot[0])
	c, _ := changes.Get(ir.IntID(2))
	assert.Equal(t, rec(2), c.Data)
}

// Randomized snapshot/log pairs: no duplicate ids, identical output for
// identical inputs.
func TestMergeNoDuplicatesAndDeterministic(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))

	for round := range 200 {
		var snapshot []ir.Object
		for range r.IntN(8) {
			snapshot = append(snapshot, rec(int64(r.IntN(10)), "v", r.IntN(3)))
		}
		changes := changelog.New()
		for range r.IntN(8) {
			id := int64(r.IntN(10))
			switch r.IntN(3) {
			case 0:
				changes.Insert(ir.IntID(id), rec(id, "v", "local"))
			case 1:
				changes.Update(ir.IntID(id), rec(id, "w", r.IntN(3)))
			default:
				changes.Delete(ir.IntID(id))
			}
		}

		first := Merge(snapshot, changes)
		second := Merge(snapshot, changes)
		require.Equal(t, first, second, "round %d", round)

		seen := make(map[ir.ID]bool)
		for _, obj := range first {
			id, ok := obj.ID()
			require.True(t, ok)
			require.False(t, seen[id], "round %d: duplicate id %s in %v", round, id, fmt.Sprint(first))
			seen[id] = true
		}
	}
}
