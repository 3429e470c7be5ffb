// Package harness runs offline-sync scenarios against a real collection.
//
// A scenario seeds an in-memory remote, opens an engine.Collection over it
// (persisted to an in-memory SQLite store) and applies steps one at a time.
// After every step the harness waits for in-flight work and, when online,
// fetches once so confirmed changes retire. The state after each step and
// the remote calls it caused form the trace, which is compared against a
// golden file.
//
// # Scenario Format
//
//	name: offline_add_then_sync
//	description: "What this scenario validates"
//	collection: todos          # default "items"
//	offline: true              # start without connectivity
//	remote:                    # initial remote records
//	  - {id: 1, title: milk}
//	steps:
//	  - op: add
//	    record: {title: eggs}  # no id: the harness generates new-1, new-2, ...
//	    expect:
//	      visible: [{id: 1, title: milk}, {id: new-1, title: eggs}]
//	      pending: [Insert new-1]
//	  - op: online
//	    expect:
//	      pending: []
//	      remote: [{id: 1, title: milk}, {id: new-1, title: eggs}]
//	assertions:
//	  - type: trace_count
//	    call: insert new-1
//	    count: 1
//
// # Steps
//
//   - add, update, delete: local mutations (update takes a patch with id)
//   - online, offline: flip connectivity
//   - remote_insert, remote_update, remote_delete: another client writes the remote
//   - fail_next_push, fail_next_fetch: the next count calls fail
//   - push: start a push round explicitly
//   - restart: rebuild the collection from the persisted state
//   - settle: do nothing but settle
//
// # Determinism
//
// Remote change notifications are muted and the only fetch per step is the
// harness's own, so a step's calls do not depend on goroutine scheduling.
// Pushes within one round still run concurrently: calls are sorted per step,
// and a failure armed with fail_next_push is only deterministic when a
// single change is pushed.
package harness
