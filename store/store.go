// Package store provides a minimal unidirectional state container: a single
// state value mutated exclusively by a reducer, fed by a dispatch pipeline
// that middleware can intercept.
//
// Dispatch accepts `any` rather than Action so that middleware (notably the
// persist admissibility filter) can observe and reject malformed values
// instead of the container panicking on them. The reducer only runs for
// well-formed Actions.
package store

import "sync"

// Action is a typed message dispatched through the pipeline.
// Type is the mandatory discriminator; Payload and Meta are free-form.
type Action struct {
	Type    string
	Payload any
	Meta    map[string]any
}

// Reducer computes the next state from the current state and an action.
// Reducers must be pure: no I/O, no mutation of the previous state value.
type Reducer func(state any, action Action) any

// Dispatcher is one stage of the dispatch pipeline.
type Dispatcher func(action any) any

// Middleware wraps the next pipeline stage. The api parameter exposes the
// container's read and re-entry capabilities; implementations must call
// next exactly once per action and return its result unchanged unless they
// deliberately swallow the action.
type Middleware func(api API, next Dispatcher) Dispatcher

// API is the capability surface handed to middleware.
type API interface {
	// State returns the current state. Safe from any goroutine.
	State() any
	// Dispatch re-enters the pipeline from the top. Safe from any
	// goroutine, including goroutines spawned by middleware.
	Dispatch(action any) any
}

// Store is a thread-safe state container.
//
// Reducer application is serialized under a write lock; the middleware
// chain itself runs outside the lock, so middleware may call State or
// Dispatch without deadlocking. Concurrent dispatches may interleave in
// middleware but each sees a consistent reduce step.
type Store struct {
	mu       sync.RWMutex
	state    any
	reducer  Reducer
	dispatch Dispatcher
}

// New builds a Store with the given reducer, initial state, and middleware
// chain. Middleware is applied in order: the first middleware sees actions
// first, and the innermost stage applies the reducer.
func New(reducer Reducer, initial any, middleware ...Middleware) *Store {
	s := &Store{
		state:   initial,
		reducer: reducer,
	}

	d := Dispatcher(s.reduce)
	for i := len(middleware) - 1; i >= 0; i-- {
		d = middleware[i](s, d)
	}
	s.dispatch = d
	return s
}

// State returns the current state value.
func (s *Store) State() any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Dispatch sends an action through the middleware chain and, if it reaches
// the end of the pipeline as a well-formed Action, applies the reducer.
// The return value is whatever the outermost pipeline stage returns; with
// no middleware installed this is the action itself.
func (s *Store) Dispatch(action any) any {
	return s.dispatch(action)
}

// reduce is the innermost pipeline stage. Values that are not Actions fall
// through untouched: shape policing is middleware's job, and a container
// must never panic on foreign input.
func (s *Store) reduce(action any) any {
	act, ok := action.(Action)
	if !ok {
		return action
	}

	s.mu.Lock()
	s.state = s.reducer(s.state, act)
	s.mu.Unlock()
	return action
}
