package harness

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/statekit/stash/engine/memory"
	"github.com/statekit/stash/persist"
	"github.com/statekit/stash/store"
)

// saveWait bounds how long a step waits for its save announcement.
const saveWait = 2 * time.Second

// TraceEvent is one observed pipeline event.
type TraceEvent struct {
	// Kind is "dispatch" (action entered the pipeline), "save" (engine
	// write), or "announce" (save action re-entered the pipeline).
	Kind     string `json:"kind"`
	Action   string `json:"action,omitempty"`
	Payload  any    `json:"payload,omitempty"`
	Snapshot any    `json:"snapshot,omitempty"`
	Origin   string `json:"origin,omitempty"`
}

// Trace is the full record of a scenario run.
type Trace struct {
	Scenario string       `json:"scenario"`
	Events   []TraceEvent `json:"events"`
	Final    any          `json:"final_state"`
}

// Run executes the scenario and returns its trace.
//
// Steps are dispatched strictly in order; a step expecting a save blocks
// until the save announcement has flowed through the pipeline, so traces
// are deterministic even though saves settle asynchronously.
func Run(t *testing.T, sc *Scenario) *Trace {
	t.Helper()

	sink := newSink(len(sc.Steps))
	eng := &tracingEngine{inner: memory.New(), sink: sink}

	st := store.New(
		persist.Reducer(reduce, nil),
		initialState(sc),
		sink.middleware(),
		persist.Middleware(eng, buildOptions(sc.Policy)...),
	)

	expected := 0
	for i, step := range sc.Steps {
		st.Dispatch(store.Action{Type: step.Type, Payload: step.Payload})
		if step.Saved {
			expected++
			select {
			case <-sink.announced:
			case <-time.After(saveWait):
				t.Fatalf("step %d (%s): save announcement never arrived", i, step.Type)
			}
		}
	}

	require.Equal(t, expected, eng.saveCount(), "engine save count")
	require.Equal(t, expected, sink.announceCount(), "save announcement count")

	return &Trace{
		Scenario: sc.Name,
		Events:   sink.events(),
		Final:    st.State(),
	}
}

func buildOptions(p PolicySettings) []persist.Option {
	var opts []persist.Option
	if len(p.Blacklist) > 0 {
		opts = append(opts, persist.WithBlacklist(p.Blacklist...))
	}
	if p.Whitelist != nil {
		opts = append(opts, persist.WithWhitelist(*p.Whitelist...))
	}
	if p.OriginMeta {
		opts = append(opts, persist.WithOriginMeta(true))
	}
	return opts
}

func initialState(sc *Scenario) any {
	if sc.Initial != nil {
		return sc.Initial
	}
	return map[string]any{"applied": []any{}, "saves": 0}
}

// reduce is the scenario reducer: it appends every applied action type to
// state["applied"] and counts save announcements in state["saves"]. Load
// actions never reach it (the persist reducer wrapper consumes them).
func reduce(state any, act store.Action) any {
	prev, _ := state.(map[string]any)
	next := make(map[string]any, len(prev))
	for k, v := range prev {
		next[k] = v
	}

	if act.Type == persist.ActionTypeSave {
		n, _ := next["saves"].(int)
		next["saves"] = n + 1
		return next
	}

	applied, _ := next["applied"].([]any)
	next["applied"] = append(append([]any{}, applied...), act.Type)
	return next
}

// sink collects trace events from the recorder middleware and the tracing
// engine, in the order they actually happened.
type sink struct {
	mu        sync.Mutex
	evs       []TraceEvent
	announces int
	announced chan struct{}
}

func newSink(capacity int) *sink {
	return &sink{announced: make(chan struct{}, capacity)}
}

func (s *sink) add(ev TraceEvent) {
	s.mu.Lock()
	s.evs = append(s.evs, ev)
	s.mu.Unlock()
}

func (s *sink) events() []TraceEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]TraceEvent{}, s.evs...)
}

func (s *sink) announceCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.announces
}

// middleware records every action entering the pipeline, including save
// announcements re-entering from the scheduler goroutine.
func (s *sink) middleware() store.Middleware {
	return func(api store.API, next store.Dispatcher) store.Dispatcher {
		return func(action any) any {
			announce := false
			if act, ok := action.(store.Action); ok {
				if act.Type == persist.ActionTypeSave {
					announce = true
					ev := TraceEvent{
						Kind:    "announce",
						Action:  act.Type,
						Payload: act.Payload,
					}
					if origin, ok := act.Meta[persist.MetaOrigin].(store.Action); ok {
						ev.Origin = origin.Type
					}
					s.add(ev)
				} else {
					s.add(TraceEvent{Kind: "dispatch", Action: act.Type, Payload: act.Payload})
				}
			}

			result := next(action)

			// Signal only after next() so the reducer has observed the
			// announcement before the runner dispatches the next step.
			if announce {
				s.mu.Lock()
				s.announces++
				s.mu.Unlock()
				s.announced <- struct{}{}
			}
			return result
		}
	}
}

// tracingEngine wraps the in-memory engine and records every write.
type tracingEngine struct {
	inner *memory.Engine
	sink  *sink

	mu    sync.Mutex
	saves int
}

func (e *tracingEngine) Save(ctx context.Context, snapshot any) error {
	e.sink.add(TraceEvent{Kind: "save", Snapshot: snapshot})
	e.mu.Lock()
	e.saves++
	e.mu.Unlock()
	return e.inner.Save(ctx, snapshot)
}

func (e *tracingEngine) Load(ctx context.Context) (any, error) {
	return e.inner.Load(ctx)
}

func (e *tracingEngine) saveCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.saves
}
