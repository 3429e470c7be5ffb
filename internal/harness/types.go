package harness

import (
	"github.com/roach88/offsync/internal/ir"
)

// TraceEvent records what one step did once it settled.
type TraceEvent struct {
	// Step is the 1-based step index; 0 is the initial subscribe.
	Step int `json:"step"`

	// Op is the step operation, or "start" for step 0.
	Op string `json:"op"`

	// Calls are the remote calls made while the step settled, sorted.
	Calls []string `json:"calls,omitempty"`

	// Visible is the merged view after the step.
	Visible []ir.Object `json:"visible"`

	// Pending lists change log entries as "<Type> <id>" in id order.
	Pending []string `json:"pending,omitempty"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass is true when every expect clause and assertion held.
	Pass bool `json:"pass"`

	// Trace has one event per step, starting with the initial subscribe.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddEvent appends a step event to the trace.
func (r *Result) AddEvent(e TraceEvent) {
	r.Trace = append(r.Trace, e)
}

// Calls flattens the trace into the ordered list of remote calls.
func (r *Result) Calls() []string {
	var out []string
	for _, e := range r.Trace {
		out = append(out, e.Calls...)
	}
	return out
}
