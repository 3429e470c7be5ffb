package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/offsync/internal/ir"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Step     int          // Step the check ran after; -1 for trace assertions
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	if e.Step >= 0 {
		fmt.Fprintf(&buf, "Assertion failed: %s after step %d\n", e.Type, e.Step)
	} else {
		fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	}
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %v\n", event.Step, event.Op, event.Calls)
		}
	}
	return buf.String()
}

// check compares the collection state after a step against expect.
func (h *Harness) check(step int, expect *Expect, trace []TraceEvent) []string {
	var errs []string

	if expect.Visible != nil {
		if err := compareRecords("visible", step, expect.Visible, h.coll.Current(), trace); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if expect.Remote != nil {
		if err := compareRecords("remote", step, expect.Remote, h.mem.Records(), trace); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if expect.Pending != nil {
		if err := comparePending(step, expect.Pending, renderPending(h.coll.Pending()), trace); err != nil {
			errs = append(errs, err.Error())
		}
	}
	return errs
}

// compareRecords checks an ordered record list with ir.Equal.
func compareRecords(kind string, step int, expected []map[string]any, actual []ir.Object, trace []TraceEvent) error {
	want := make(ir.Array, 0, len(expected))
	for i, m := range expected {
		obj, err := ir.ObjectFromMap(m)
		if err != nil {
			return fmt.Errorf("%s[%d]: %w", kind, i, err)
		}
		want = append(want, obj)
	}
	got := make(ir.Array, 0, len(actual))
	for _, obj := range actual {
		got = append(got, obj)
	}
	if ir.Equal(want, got) {
		return nil
	}
	return &AssertionError{
		Type:     kind,
		Step:     step,
		Expected: renderJSON(want),
		Actual:   renderJSON(got),
		Trace:    trace,
	}
}

// comparePending checks change log entries by kind and id, in order.
func comparePending(step int, expected, actual []string, trace []TraceEvent) error {
	match := len(expected) == len(actual)
	for i := 0; match && i < len(expected); i++ {
		wantKind, wantID, err := parsePending(expected[i])
		if err != nil {
			return err
		}
		gotKind, gotID, err := parsePending(actual[i])
		match = err == nil && wantKind == gotKind && wantID == gotID
	}
	if match {
		return nil
	}
	return &AssertionError{
		Type:     "pending",
		Step:     step,
		Expected: fmt.Sprintf("%v", expected),
		Actual:   fmt.Sprintf("%v", actual),
		Trace:    trace,
	}
}

func renderJSON(v ir.Value) string {
	data, err := ir.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

// assertTraceContains checks that the call was made at least once.
func assertTraceContains(result *Result, a Assertion) error {
	for _, call := range result.Calls() {
		if call == a.Call {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Step:     -1,
		Expected: fmt.Sprintf("call %q", a.Call),
		Actual:   "not found in trace",
		Trace:    result.Trace,
	}
}

// assertTraceOrder checks that the first occurrences of the calls appear
// in the given order. Intervening calls are allowed.
func assertTraceOrder(result *Result, a Assertion) error {
	positions := make(map[string]int)
	for i, call := range result.Calls() {
		if _, seen := positions[call]; !seen {
			positions[call] = i + 1
		}
	}

	for _, call := range a.Calls {
		if positions[call] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Step:     -1,
				Expected: fmt.Sprintf("all calls present: %v", a.Calls),
				Actual:   fmt.Sprintf("missing call: %s", call),
				Trace:    result.Trace,
			}
		}
	}

	for i := 1; i < len(a.Calls); i++ {
		prev, curr := a.Calls[i-1], a.Calls[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Step:     -1,
				Expected: fmt.Sprintf("calls in order: %v", a.Calls),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: result.Trace,
			}
		}
	}
	return nil
}

// assertTraceCount checks that the call was made exactly Count times.
func assertTraceCount(result *Result, a Assertion) error {
	count := 0
	for _, call := range result.Calls() {
		if call == a.Call {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Step:     -1,
			Expected: fmt.Sprintf("%d occurrences of %q", a.Count, a.Call),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    result.Trace,
		}
	}
	return nil
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(result, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
