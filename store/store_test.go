package store

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counter(state any, action Action) any {
	n, _ := state.(int)
	switch action.Type {
	case "INCREMENT":
		return n + 1
	case "ADD":
		delta, _ := action.Payload.(int)
		return n + delta
	default:
		return n
	}
}

func TestStore_DispatchAppliesReducer(t *testing.T) {
	s := New(counter, 0)

	s.Dispatch(Action{Type: "INCREMENT"})
	s.Dispatch(Action{Type: "ADD", Payload: 4})

	assert.Equal(t, 5, s.State())
}

func TestStore_UnknownActionKeepsState(t *testing.T) {
	s := New(counter, 7)
	s.Dispatch(Action{Type: "NOPE"})
	assert.Equal(t, 7, s.State())
}

func TestStore_NonActionValuesPassThrough(t *testing.T) {
	s := New(counter, 1)

	require.NotPanics(t, func() {
		s.Dispatch("INCREMENT")
		s.Dispatch(42)
		s.Dispatch(func() {})
		s.Dispatch(nil)
	})
	assert.Equal(t, 1, s.State(), "foreign values never reach the reducer")
}

func TestStore_DispatchReturnsActionWithoutMiddleware(t *testing.T) {
	s := New(counter, 0)

	got := s.Dispatch(Action{Type: "INCREMENT"})
	assert.Equal(t, Action{Type: "INCREMENT"}, got)
}

func TestStore_MiddlewareOrderAndReturn(t *testing.T) {
	var order []string
	tag := func(name string) Middleware {
		return func(api API, next Dispatcher) Dispatcher {
			return func(action any) any {
				order = append(order, name)
				next(action)
				return name
			}
		}
	}

	s := New(counter, 0, tag("outer"), tag("inner"))
	got := s.Dispatch(Action{Type: "INCREMENT"})

	assert.Equal(t, []string{"outer", "inner"}, order)
	assert.Equal(t, "outer", got, "the caller sees the outermost stage's return value")
	assert.Equal(t, 1, s.State())
}

func TestStore_MiddlewareSeesPostReduceState(t *testing.T) {
	var observed any
	peek := func(api API, next Dispatcher) Dispatcher {
		return func(action any) any {
			result := next(action)
			observed = api.State()
			return result
		}
	}

	s := New(counter, 0, peek)
	s.Dispatch(Action{Type: "INCREMENT"})

	assert.Equal(t, 1, observed)
}

func TestStore_MiddlewareCanRedispatch(t *testing.T) {
	// A middleware that re-enters the pipeline from a goroutine must not
	// deadlock against the dispatch that spawned it.
	done := make(chan struct{})
	echo := func(api API, next Dispatcher) Dispatcher {
		return func(action any) any {
			result := next(action)
			if act, ok := action.(Action); ok && act.Type == "INCREMENT" {
				go func() {
					api.Dispatch(Action{Type: "ADD", Payload: 10})
					close(done)
				}()
			}
			return result
		}
	}

	s := New(counter, 0, echo)
	s.Dispatch(Action{Type: "INCREMENT"})
	<-done

	assert.Equal(t, 11, s.State())
}

func TestStore_ConcurrentDispatch(t *testing.T) {
	s := New(counter, 0)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Dispatch(Action{Type: "INCREMENT"})
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, s.State())
}
