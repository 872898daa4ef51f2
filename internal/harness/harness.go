package harness

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/roach88/kiosk/internal/ir"
	"github.com/roach88/kiosk/internal/store"
	"github.com/roach88/kiosk/internal/testutil"
)

// Harness executes scenarios against one store.
type Harness struct {
	store *store.Store
	log   zerolog.Logger
}

// New creates a harness over st.
func New(st *store.Store, log zerolog.Logger) *Harness {
	return &Harness{store: st, log: log}
}

// outcome is what a single step returned.
type outcome struct {
	doc   ir.Document
	docs  []ir.Document
	count int
	err   error
}

// Run executes the scenario against st. Setup errors abort the run and
// are returned. Failed expectations are recorded on the result.
func Run(ctx context.Context, st *store.Store, scenario *Scenario) (*Result, error) {
	return New(st, zerolog.Nop()).Run(ctx, scenario)
}

// RunIsolated executes the scenario in a fresh in-memory SQLite database
// with a deterministic clock and sequential ids.
func RunIsolated(ctx context.Context, scenario *Scenario) (*Result, error) {
	st, err := store.Open(ctx, store.Options{Dialect: "sqlite", DSN: ":memory:"},
		store.WithClock(testutil.NewDeterministicClock()),
		store.WithIDGenerator(testutil.NewSequentialIDs()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	return Run(ctx, st, scenario)
}

// Run executes the scenario.
func (h *Harness) Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	result := NewResult()
	h.log.Debug().Str("scenario", scenario.Name).Msg("running scenario")

	for i, step := range scenario.Setup {
		event, out := h.execute(ctx, PhaseSetup, i, step)
		result.AddTrace(event)
		if out.err != nil {
			return nil, fmt.Errorf("setup[%d] %s %s: %w", i, step.Op, step.Kind, out.err)
		}
	}

	for i, step := range scenario.Steps {
		event, out := h.execute(ctx, PhaseSteps, i, step)
		result.AddTrace(event)
		for _, msg := range checkStep(step, out) {
			result.AddError(fmt.Sprintf("steps[%d] %s %s: %s", i, step.Op, step.Kind, msg))
		}
	}

	h.log.Debug().
		Str("scenario", scenario.Name).
		Bool("pass", result.Pass).
		Int("errors", len(result.Errors)).
		Msg("scenario finished")
	return result, nil
}

func (h *Harness) execute(ctx context.Context, phase string, index int, step Step) (TraceEvent, outcome) {
	kind, _ := ir.ParseKind(step.Kind)
	event := TraceEvent{
		Phase: phase,
		Step:  index,
		Op:    step.Op,
		Kind:  string(kind),
	}
	driver := h.store.Resource(kind)

	var out outcome
	switch step.Op {
	case OpUpsert:
		doc := ir.Document(step.Doc).Clone()
		event.Key = doc.ID()
		out.doc, out.err = driver.UpsertIndexed(ctx, doc, step.Terms...)
		if out.err == nil {
			event.Key = out.doc.ID()
		}
	case OpGet:
		event.Key = step.ID
		out.doc, out.err = driver.Get(ctx, step.ID, step.Expand...)
	case OpRemove:
		event.Key = step.ID
		out.err = driver.Remove(ctx, step.ID)
	case OpList:
		q, err := step.Query.ApiQuery()
		if err != nil {
			out.err = err
			break
		}
		out.docs, out.err = driver.List(ctx, q)
		if out.err == nil {
			n := len(out.docs)
			event.Count = &n
			event.IDs = make([]string, n)
			for i, doc := range out.docs {
				event.IDs[i] = doc.ID()
			}
		}
	case OpCount:
		q, err := step.Query.ApiQuery()
		if err != nil {
			out.err = err
			break
		}
		out.count, out.err = driver.Count(ctx, q)
		if out.err == nil {
			n := out.count
			event.Count = &n
		}
	default:
		out.err = fmt.Errorf("unknown op %q", step.Op)
	}

	event.Outcome = OutcomeOK
	if out.err != nil {
		event.Outcome = outcomeCode(out.err)
		h.log.Debug().Err(out.err).Str("phase", phase).Int("step", index).Msg("step failed")
	}
	return event, out
}

func outcomeCode(err error) string {
	if code := ir.CodeOf(err); code != "" {
		return string(code)
	}
	return "ERROR"
}
