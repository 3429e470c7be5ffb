package harness

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/offsync/internal/ir"
)

// GoldenDir is where golden traces live, relative to the test's package.
const GoldenDir = "testdata/golden"

// TraceSnapshot captures the complete trace for a scenario execution.
type TraceSnapshot struct {
	ScenarioName string
	Trace        []TraceEvent
}

// toValue converts the snapshot to an ir.Value for canonical serialization.
func (s *TraceSnapshot) toValue() ir.Object {
	events := make(ir.Array, len(s.Trace))
	for i, e := range s.Trace {
		event := ir.Object{
			"step":    ir.Int(e.Step),
			"op":      ir.String(e.Op),
			"visible": recordsValue(e.Visible),
		}
		if len(e.Calls) > 0 {
			event["calls"] = stringsValue(e.Calls)
		}
		if len(e.Pending) > 0 {
			event["pending"] = stringsValue(e.Pending)
		}
		events[i] = event
	}
	return ir.Object{
		"scenario_name": ir.String(s.ScenarioName),
		"trace":         events,
	}
}

func recordsValue(records []ir.Object) ir.Array {
	out := make(ir.Array, len(records))
	for i, r := range records {
		out[i] = r
	}
	return out
}

func stringsValue(ss []string) ir.Array {
	out := make(ir.Array, len(ss))
	for i, s := range ss {
		out[i] = ir.String(s)
	}
	return out
}

// MarshalTrace renders a trace as indented canonical JSON. Key order is
// canonical, so the output is byte-stable across runs.
func MarshalTrace(scenarioName string, trace []TraceEvent) ([]byte, error) {
	snapshot := TraceSnapshot{ScenarioName: scenarioName, Trace: trace}
	data, err := ir.MarshalCanonical(snapshot.toValue())
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		return nil, err
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns the result so callers can also check result.Pass.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares the given result's trace against a golden file.
// This is useful when you've already run a scenario and want to compare
// the result against a golden file without re-running.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	traceJSON, err := MarshalTrace(scenarioName, result.Trace)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir(GoldenDir),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, traceJSON)
	return nil
}
