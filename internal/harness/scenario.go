package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/offsync/internal/changelog"
	"github.com/roach88/offsync/internal/ir"
)

// DefaultCollection is used when a scenario names no collection.
const DefaultCollection = "items"

// Scenario describes one offline-sync story: the initial remote rows, a
// sequence of local and remote steps, and what must hold along the way.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Collection is the collection name. Defaults to DefaultCollection.
	Collection string `yaml:"collection,omitempty"`

	// Offline starts the run without connectivity.
	Offline bool `yaml:"offline,omitempty"`

	// Remote holds the initial remote records.
	Remote []map[string]any `yaml:"remote,omitempty"`

	// Steps run in order. Each step is followed by a settle.
	Steps []Step `yaml:"steps"`

	// Assertions validate the full trace after the last step.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step is one scenario action.
type Step struct {
	// Op selects the action, see the Op* constants.
	Op string `yaml:"op"`

	// Record is the record for add and remote_insert, or the patch (with
	// id) for update and remote_update.
	Record map[string]any `yaml:"record,omitempty"`

	// ID targets delete and remote_delete. Integer or string.
	ID any `yaml:"id,omitempty"`

	// Count is the number of failures for fail_next_push and
	// fail_next_fetch. Defaults to 1.
	Count int `yaml:"count,omitempty"`

	// Expect is checked after the step settles.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Step operations.
const (
	OpAdd           = "add"
	OpUpdate        = "update"
	OpDelete        = "delete"
	OpOnline        = "online"
	OpOffline       = "offline"
	OpRemoteInsert  = "remote_insert"
	OpRemoteUpdate  = "remote_update"
	OpRemoteDelete  = "remote_delete"
	OpFailNextPush  = "fail_next_push"
	OpFailNextFetch = "fail_next_fetch"
	OpPush          = "push"
	OpRestart       = "restart"
	OpSettle        = "settle"
)

var knownOps = map[string]bool{
	OpAdd: true, OpUpdate: true, OpDelete: true,
	OpOnline: true, OpOffline: true,
	OpRemoteInsert: true, OpRemoteUpdate: true, OpRemoteDelete: true,
	OpFailNextPush: true, OpFailNextFetch: true,
	OpPush: true, OpRestart: true, OpSettle: true,
}

// Expect lists the state checks for a step. Nil fields are not checked.
type Expect struct {
	// Visible is the merged view, in order.
	Visible []map[string]any `yaml:"visible,omitempty"`

	// Pending is the change log as "<Type> <id>" strings in id order,
	// e.g. "Update 3". An explicit empty list asserts an empty log.
	Pending []string `yaml:"pending"`

	// Remote is the remote collection, in remote order.
	Remote []map[string]any `yaml:"remote,omitempty"`
}

// Assertion validates the trace.
type Assertion struct {
	// Type is one of trace_contains, trace_order or trace_count.
	Type string `yaml:"type"`

	// Call is a remote call as rendered in the trace, e.g. "insert 1".
	Call string `yaml:"call,omitempty"`

	// Calls is the expected order for trace_order.
	Calls []string `yaml:"calls,omitempty"`

	// Count is the expected number of occurrences for trace_count.
	Count int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML with strict field checking.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	if scenario.Collection == "" {
		scenario.Collection = DefaultCollection
	}
	return &scenario, nil
}

// FindScenarios returns the .yaml and .yml files directly inside dir, sorted.
func FindScenarios(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".yaml", ".yml":
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, rec := range s.Remote {
		if _, err := recordWithID(rec); err != nil {
			return fmt.Errorf("remote[%d]: %w", i, err)
		}
	}
	for i, step := range s.Steps {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("steps[%d] (%s): %w", i, step.Op, err)
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(a); err != nil {
			return fmt.Errorf("assertions[%d]: %w", i, err)
		}
	}
	return nil
}

func validateStep(step Step) error {
	if !knownOps[step.Op] {
		return fmt.Errorf("unknown op %q", step.Op)
	}

	switch step.Op {
	case OpAdd:
		if step.Record == nil {
			return fmt.Errorf("record is required")
		}
		if _, err := ir.ObjectFromMap(step.Record); err != nil {
			return err
		}
	case OpUpdate, OpRemoteInsert, OpRemoteUpdate:
		if _, err := recordWithID(step.Record); err != nil {
			return err
		}
	case OpDelete, OpRemoteDelete:
		if _, err := parseID(step.ID); err != nil {
			return err
		}
	case OpFailNextPush, OpFailNextFetch:
		if step.Count < 0 {
			return fmt.Errorf("count must be non-negative")
		}
	}

	if step.Expect != nil {
		for _, p := range step.Expect.Pending {
			if _, _, err := parsePending(p); err != nil {
				return err
			}
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(a Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("type is required")
	case AssertTraceContains:
		if a.Call == "" {
			return fmt.Errorf("call is required for trace_contains")
		}
	case AssertTraceOrder:
		if len(a.Calls) == 0 {
			return fmt.Errorf("calls list is required for trace_order")
		}
	case AssertTraceCount:
		if a.Call == "" {
			return fmt.Errorf("call is required for trace_count")
		}
		if a.Count < 0 {
			return fmt.Errorf("count must be non-negative for trace_count")
		}
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}

// recordWithID converts m to a record that must carry an id.
func recordWithID(m map[string]any) (ir.Object, error) {
	if m == nil {
		return nil, fmt.Errorf("record is required")
	}
	obj, err := ir.ObjectFromMap(m)
	if err != nil {
		return nil, err
	}
	if _, ok := obj.ID(); !ok {
		return nil, fmt.Errorf("record needs a string or integer id")
	}
	return obj, nil
}

func parseID(v any) (ir.ID, error) {
	if v == nil {
		return ir.ID{}, fmt.Errorf("id is required")
	}
	val, err := ir.FromAny(v)
	if err != nil {
		return ir.ID{}, err
	}
	id, ok := ir.IDFromValue(val)
	if !ok {
		return ir.ID{}, fmt.Errorf("id must be a string or integer, got %v", v)
	}
	return id, nil
}

// parsePending splits "Update 3" into its kind and id.
func parsePending(s string) (changelog.Kind, ir.ID, error) {
	kind, id, ok := strings.Cut(s, " ")
	if !ok {
		return 0, ir.ID{}, fmt.Errorf("pending entry %q: want \"<Type> <id>\"", s)
	}
	k, err := changelog.ParseKind(kind)
	if err != nil {
		return 0, ir.ID{}, fmt.Errorf("pending entry %q: %w", s, err)
	}
	return k, ir.ParseID(id), nil
}
