package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/roach88/offsync/internal/changelog"
	"github.com/roach88/offsync/internal/connectivity"
	"github.com/roach88/offsync/internal/engine"
	"github.com/roach88/offsync/internal/ir"
	"github.com/roach88/offsync/internal/remote"
	"github.com/roach88/offsync/internal/store"
	"github.com/roach88/offsync/internal/testutil"
)

// SettleTimeout bounds how long one step may take to settle.
const SettleTimeout = 5 * time.Second

// Harness runs one scenario against a real engine.Collection backed by an
// in-memory remote and an in-memory SQLite store.
type Harness struct {
	scenario *Scenario
	store    *store.Store
	mem      *remote.MemorySource
	rec      *testutil.RecordingSource
	net      *connectivity.Var
	ids      *testutil.SequentialIDs
	logger   *slog.Logger

	coll        *engine.Collection
	unsubscribe func()
	seen        int // recorded calls already attributed to a step
}

// Option configures a run.
type Option func(*Harness)

// WithLogger routes engine logs to logger. Runs are silent by default.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Harness) {
		h.logger = logger
	}
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs against a fresh remote and a fresh in-memory database.
// Ids generated by add steps are "new-1", "new-2", ... so traces are
// reproducible.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	return RunContext(context.Background(), scenario, opts...)
}

// RunContext is Run with a caller-supplied context.
func RunContext(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	mem := remote.NewMemory().Collection(scenario.Collection)
	remoteRecords := make([]ir.Object, 0, len(scenario.Remote))
	for i, m := range scenario.Remote {
		rec, err := recordWithID(m)
		if err != nil {
			return nil, fmt.Errorf("remote[%d]: %w", i, err)
		}
		remoteRecords = append(remoteRecords, rec)
	}
	mem.Seed(remoteRecords...)

	h := &Harness{
		scenario: scenario,
		store:    st,
		mem:      mem,
		rec:      testutil.NewRecordingSource(mem).Mute(),
		net:      connectivity.NewVar(false),
		ids:      testutil.NewSequentialIDs("new"),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(h)
	}

	result := NewResult()
	if err := h.start(ctx, !scenario.Offline); err != nil {
		return nil, err
	}
	defer h.stop()
	result.AddEvent(h.observe(0, "start"))

	for i, step := range scenario.Steps {
		n := i + 1
		if err := h.apply(ctx, step); err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", n, step.Op, err)
		}
		if err := h.settle(ctx); err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", n, step.Op, err)
		}
		event := h.observe(n, step.Op)
		result.AddEvent(event)

		if step.Expect != nil {
			for _, msg := range h.check(n, step.Expect, result.Trace) {
				result.AddError(msg)
			}
		}
		h.logger.Info("step completed", "step", n, "op", step.Op, "calls", len(event.Calls))
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

// start opens the collection and subscribes while offline, so the first
// fetch never races with pushes, then restores connectivity.
func (h *Harness) start(ctx context.Context, online bool) error {
	h.net.Set(false)
	h.coll = engine.NewCollection(h.scenario.Collection, h.rec, h.net,
		engine.WithLogger(h.logger),
		engine.WithIDGenerator(h.ids.Next),
		engine.WithPersister(h.store),
	)
	h.unsubscribe = h.coll.Subscribe(func(engine.View) {})

	if err := h.waitIdle(ctx); err != nil {
		return err
	}
	if online {
		h.net.Set(true)
	}
	return h.settle(ctx)
}

func (h *Harness) stop() {
	if h.unsubscribe != nil {
		h.unsubscribe()
		h.unsubscribe = nil
	}
}

// restart drops the collection and builds a new one from the persisted
// state, as a process restart would.
func (h *Harness) restart(ctx context.Context) error {
	online := h.net.Online()
	if err := h.waitIdle(ctx); err != nil {
		return err
	}
	h.stop()
	return h.start(ctx, online)
}

func (h *Harness) apply(ctx context.Context, step Step) error {
	switch step.Op {
	case OpAdd:
		rec, err := ir.ObjectFromMap(step.Record)
		if err != nil {
			return err
		}
		_, hasID := rec.ID()
		h.coll.Add(rec, !hasID)
	case OpUpdate:
		rec, err := recordWithID(step.Record)
		if err != nil {
			return err
		}
		h.coll.Update(rec)
	case OpDelete:
		id, err := parseID(step.ID)
		if err != nil {
			return err
		}
		h.coll.Delete(id)
	case OpOnline:
		h.net.Set(true)
	case OpOffline:
		h.net.Set(false)
	case OpRemoteInsert:
		rec, err := recordWithID(step.Record)
		if err != nil {
			return err
		}
		return h.mem.Insert(ctx, rec)
	case OpRemoteUpdate:
		rec, err := recordWithID(step.Record)
		if err != nil {
			return err
		}
		id, _ := rec.ID()
		return h.mem.Update(ctx, id, rec)
	case OpRemoteDelete:
		id, err := parseID(step.ID)
		if err != nil {
			return err
		}
		return h.mem.Delete(ctx, id)
	case OpFailNextPush:
		h.rec.FailNextPush(countOrOne(step.Count))
	case OpFailNextFetch:
		h.rec.FailNextFetch(countOrOne(step.Count))
	case OpPush:
		h.coll.Push()
	case OpRestart:
		return h.restart(ctx)
	case OpSettle:
	default:
		return fmt.Errorf("unknown op %q", step.Op)
	}
	return nil
}

func countOrOne(n int) int {
	if n == 0 {
		return 1
	}
	return n
}

// settle waits for in-flight work, then, when online, fetches once more so
// confirmed changes retire. Change notifications are muted, so this fetch
// is the only one a step triggers.
func (h *Harness) settle(ctx context.Context) error {
	if err := h.waitIdle(ctx); err != nil {
		return err
	}
	if !h.net.Online() {
		return nil
	}
	h.coll.Refresh()
	return h.waitIdle(ctx)
}

func (h *Harness) waitIdle(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, SettleTimeout)
	defer cancel()
	if err := h.coll.Settle(ctx); err != nil {
		return fmt.Errorf("settle: %w", err)
	}
	return nil
}

// observe captures the collection state and the calls made since the
// previous observation.
func (h *Harness) observe(step int, op string) TraceEvent {
	all := h.rec.Calls()
	calls := make([]string, 0, len(all)-h.seen)
	for _, c := range all[h.seen:] {
		calls = append(calls, c.String())
	}
	h.seen = len(all)
	sort.Strings(calls)

	return TraceEvent{
		Step:    step,
		Op:      op,
		Calls:   calls,
		Visible: h.coll.Current(),
		Pending: renderPending(h.coll.Pending()),
	}
}

func renderPending(changes []changelog.Change) []string {
	out := make([]string, 0, len(changes))
	for _, c := range changes {
		out = append(out, c.Kind.String()+" "+c.ID.String())
	}
	return out
}
