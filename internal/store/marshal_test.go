package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/offsync/internal/changelog"
	"github.com/roach88/offsync/internal/engine"
	"github.com/roach88/offsync/internal/ir"
)

var _ engine.Persister = (*Store)(nil)

func TestMarshalRecordsIsCanonical(t *testing.T) {
	data, err := marshalRecords([]ir.Object{
		{"title": ir.String("milk"), "id": ir.Int(1), "qty": ir.Float(1.5)},
		{"id": ir.String("x"), "tags": ir.Array{ir.String("a")}},
	})
	require.NoError(t, err)
	assert.Equal(t, `[{"id":1,"qty":1.5,"title":"milk"},{"id":"x","tags":["a"]}]`, string(data))
}

func TestUnmarshalRecordsKeepsLargeIntegers(t *testing.T) {
	records, err := unmarshalRecords([]byte(`[{"id":9007199254740993}]`))
	require.NoError(t, err)
	assert.Equal(t, []ir.Object{{"id": ir.Int(9007199254740993)}}, records)
}

func TestUnmarshalRecordsRejectsNonObjects(t *testing.T) {
	_, err := unmarshalRecords([]byte(`[{"id":1}, 2]`))
	assert.ErrorContains(t, err, "element 1")

	_, err = unmarshalRecords([]byte(`{"id":1}`))
	assert.Error(t, err)
}

func TestMarshalChangesShape(t *testing.T) {
	l := changelog.New()
	l.Insert(ir.StringID("n"), ir.Object{"id": ir.String("n"), "title": ir.String("draft")})
	l.Update(ir.IntID(3), ir.Object{"id": ir.Int(3), "done": ir.Bool(true)})
	l.Delete(ir.IntID(1))

	data, err := marshalChanges(l)
	require.NoError(t, err)
	assert.Equal(t,
		`[{"id":1,"type":"Delete"},`+
			`{"data":{"done":true,"id":3},"id":3,"type":"Update"},`+
			`{"data":{"id":"n","title":"draft"},"id":"n","type":"Insert"}]`,
		string(data))

	back, err := unmarshalChanges(data)
	require.NoError(t, err)
	assert.Equal(t, l.Entries(), back.Entries())
}

func TestSnapshotRoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	records, err := s.LoadSnapshot(ctx, "todos")
	require.NoError(t, err)
	assert.Nil(t, records, "nothing saved yet")

	want := []ir.Object{{"id": ir.Int(1), "title": ir.String("milk")}, {"id": ir.Int(2), "note": ir.Null{}}}
	require.NoError(t, s.SaveSnapshot(ctx, "todos", want))

	got, err := s.LoadSnapshot(ctx, "todos")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestEmptySnapshotIsNotAbsent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveSnapshot(ctx, "todos", nil))
	got, err := s.LoadSnapshot(ctx, "todos")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestChangesRoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	l, err := s.LoadChanges(ctx, "todos")
	require.NoError(t, err)
	assert.Nil(t, l)

	want := changelog.New()
	want.Update(ir.IntID(4), ir.Object{"id": ir.Int(4), "done": ir.Bool(true)})
	want.Delete(ir.StringID("gone"))
	require.NoError(t, s.SaveChanges(ctx, "todos", want))

	got, err := s.LoadChanges(ctx, "todos")
	require.NoError(t, err)
	assert.Equal(t, want.Entries(), got.Entries())
}

func TestCollectionsAndForget(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveSnapshot(ctx, "todos", nil))
	require.NoError(t, s.SaveChanges(ctx, "todos", changelog.New()))
	require.NoError(t, s.SaveChanges(ctx, "notes", changelog.New()))

	names, err := s.Collections(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"notes", "todos"}, names)

	require.NoError(t, s.Forget(ctx, "todos"))
	names, err = s.Collections(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"notes"}, names)
}

func TestLoadCorruptSnapshot(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, SnapshotKey("todos"), []byte(`not json`)))
	_, err := s.LoadSnapshot(ctx, "todos")
	assert.ErrorContains(t, err, "load snapshot todos")
}
