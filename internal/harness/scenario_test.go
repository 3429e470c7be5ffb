package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/offsync/internal/changelog"
	"github.com/roach88/offsync/internal/ir"
)

func TestParseScenario(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: basic
description: basic scenario
remote:
  - {id: 1, title: milk}
steps:
  - op: update
    record: {id: 1, done: true}
    expect:
      pending: [Update 1]
  - op: delete
    id: s1
  - op: fail_next_fetch
    count: 2
assertions:
  - type: trace_count
    call: update 1
    count: 1
`))
	require.NoError(t, err)

	assert.Equal(t, "basic", s.Name)
	assert.Equal(t, DefaultCollection, s.Collection)
	assert.False(t, s.Offline)
	require.Len(t, s.Steps, 3)
	assert.Equal(t, OpUpdate, s.Steps[0].Op)
	assert.Equal(t, []string{"Update 1"}, s.Steps[0].Expect.Pending)
	assert.Nil(t, s.Steps[0].Expect.Visible, "unset checks stay nil")
	assert.Equal(t, "s1", s.Steps[1].ID)
	assert.Equal(t, 2, s.Steps[2].Count)
	require.Len(t, s.Assertions, 1)
}

func TestParseScenarioEmptyPendingIsChecked(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: empty
description: empty pending
steps:
  - op: settle
    expect:
      pending: []
`))
	require.NoError(t, err)
	assert.NotNil(t, s.Steps[0].Expect.Pending)
	assert.Empty(t, s.Steps[0].Expect.Pending)
}

func TestParseScenarioErrors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "unknown field",
			yaml:    "name: x\ndescription: d\nstep:\n  - op: settle\n",
			wantErr: "field step not found",
		},
		{
			name:    "missing name",
			yaml:    "description: d\nsteps:\n  - op: settle\n",
			wantErr: "name is required",
		},
		{
			name:    "missing description",
			yaml:    "name: x\nsteps:\n  - op: settle\n",
			wantErr: "description is required",
		},
		{
			name:    "no steps",
			yaml:    "name: x\ndescription: d\n",
			wantErr: "steps list is required",
		},
		{
			name:    "unknown op",
			yaml:    "name: x\ndescription: d\nsteps:\n  - op: teleport\n",
			wantErr: `unknown op "teleport"`,
		},
		{
			name:    "update without id",
			yaml:    "name: x\ndescription: d\nsteps:\n  - op: update\n    record: {done: true}\n",
			wantErr: "record needs a string or integer id",
		},
		{
			name:    "add without record",
			yaml:    "name: x\ndescription: d\nsteps:\n  - op: add\n",
			wantErr: "record is required",
		},
		{
			name:    "delete without id",
			yaml:    "name: x\ndescription: d\nsteps:\n  - op: delete\n",
			wantErr: "id is required",
		},
		{
			name:    "float id",
			yaml:    "name: x\ndescription: d\nsteps:\n  - op: remote_delete\n    id: 1.5\n",
			wantErr: "id must be a string or integer",
		},
		{
			name:    "remote record without id",
			yaml:    "name: x\ndescription: d\nremote:\n  - {title: milk}\nsteps:\n  - op: settle\n",
			wantErr: "remote[0]",
		},
		{
			name:    "bad pending entry",
			yaml:    "name: x\ndescription: d\nsteps:\n  - op: settle\n    expect:\n      pending: [Upsert 1]\n",
			wantErr: `unknown change type "Upsert"`,
		},
		{
			name:    "pending entry without id",
			yaml:    "name: x\ndescription: d\nsteps:\n  - op: settle\n    expect:\n      pending: [Insert]\n",
			wantErr: "want \"<Type> <id>\"",
		},
		{
			name:    "unknown assertion",
			yaml:    "name: x\ndescription: d\nsteps:\n  - op: settle\nassertions:\n  - type: final_state\n",
			wantErr: `unknown assertion type "final_state"`,
		},
		{
			name:    "trace_order without calls",
			yaml:    "name: x\ndescription: d\nsteps:\n  - op: settle\nassertions:\n  - type: trace_order\n",
			wantErr: "calls list is required",
		},
		{
			name:    "negative count",
			yaml:    "name: x\ndescription: d\nsteps:\n  - op: settle\nassertions:\n  - type: trace_count\n    call: fetch\n    count: -1\n",
			wantErr: "count must be non-negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadScenarioMissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorContains(t, err, "failed to read scenario file")
}

func TestFindScenarios(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.yaml", "a.yml", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "golden"), 0o755))

	paths, err := FindScenarios(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.yml"), filepath.Join(dir, "b.yaml")}, paths)
}

func TestParsePending(t *testing.T) {
	kind, id, err := parsePending("Delete s:42")
	require.NoError(t, err)
	assert.Equal(t, changelog.KindDelete, kind)
	assert.Equal(t, ir.StringID("42"), id)

	kind, id, err = parsePending("Insert 7")
	require.NoError(t, err)
	assert.Equal(t, changelog.KindInsert, kind)
	assert.Equal(t, ir.IntID(7), id)
}
