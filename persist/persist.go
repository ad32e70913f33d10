// Package persist is a filtering-and-persistence middleware for store
// pipelines. It sits between dispatch and the reducer, decides which
// actions warrant a state snapshot, hands the snapshot to an injected
// Engine, and announces completed saves back into the pipeline.
//
// The middleware never blocks dispatch and never surfaces engine failures
// to callers: persistence is best-effort, and a broken storage backend
// must not stall the state container.
package persist

import (
	"context"
	"fmt"

	"github.com/statekit/stash/store"
)

// Reserved action types used by the load/save protocol itself. Actions of
// these types are never eligible for persistence, which prevents a save
// completion from triggering another save.
const (
	// ActionTypeLoad carries a restored snapshot into the pipeline.
	ActionTypeLoad = "STASH_LOAD"
	// ActionTypeSave announces a completed save. Its payload is the exact
	// snapshot handed to the engine, not a re-read of current state.
	ActionTypeSave = "STASH_SAVE"
)

// MetaOrigin is the SaveAction meta key holding the action that triggered
// the save. Populated only when WithOriginMeta is enabled.
const MetaOrigin = "origin"

// Engine is the durable-storage capability consumed by the middleware.
//
// Save must tolerate overlapping calls: the middleware imposes no mutual
// exclusion across in-flight saves (completion order across concurrent
// eligible actions is deliberately unspecified).
type Engine interface {
	Save(ctx context.Context, snapshot any) error
	Load(ctx context.Context) (any, error)
}

// Load reads the persisted snapshot from the engine and re-enters the
// pipeline with a load action carrying it. An engine with nothing
// persisted returns a nil snapshot; the load action is dispatched anyway
// so reducers can observe that restoration ran.
func Load(ctx context.Context, api store.API, engine Engine) error {
	snapshot, err := engine.Load(ctx)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	api.Dispatch(store.Action{Type: ActionTypeLoad, Payload: snapshot})
	return nil
}

// Merge combines the pre-load state with a restored snapshot.
type Merge func(current, loaded any) any

// Reducer wraps next so that load actions apply the restored snapshot.
// A nil merge replaces the state wholesale; a nil loaded payload leaves
// the current state untouched either way.
func Reducer(next store.Reducer, merge Merge) store.Reducer {
	return func(state any, action store.Action) any {
		if action.Type == ActionTypeLoad {
			if action.Payload == nil {
				return state
			}
			if merge == nil {
				return action.Payload
			}
			return merge(state, action.Payload)
		}
		return next(state, action)
	}
}
