package persist

import "github.com/statekit/stash/store"

// Middleware builds the filtering-and-persistence middleware around the
// given engine.
//
// Every action is forwarded to the next pipeline stage first, so
// downstream reducers observe all traffic in dispatch order, including
// reserved and filtered-out actions. Eligible actions then schedule an
// asynchronous save of the post-reduce state; the next stage's return
// value is handed back to the caller before the save settles.
//
// Completion order across overlapping saves is unspecified: each save
// dispatches its save action whenever its own engine call resolves. There
// is no cancellation and no retry.
func Middleware(engine Engine, opts ...Option) store.Middleware {
	cfg := newConfig(opts)
	cfg.warnOverlap()

	return func(api store.API, next store.Dispatcher) store.Dispatcher {
		return func(action any) any {
			result := next(action)

			act, eligible := cfg.admit(action)
			if eligible {
				// Snapshot after next() so the save reflects the reducer
				// update caused by this very action.
				snapshot := api.State()
				go save(cfg, api, engine, snapshot, act)
			}

			return result
		}
	}
}

// save is the single suspension point of the scheduler: one pending engine
// call per eligible action, settled exactly once.
//
// A failed write is silently a no-op. Surfacing it would force every
// dispatch caller to handle storage errors, which defeats an injectable,
// swappable engine; absence of the save action is the only observable
// signal.
func save(cfg *config, api store.API, engine Engine, snapshot any, origin store.Action) {
	if err := engine.Save(cfg.ctx, snapshot); err != nil {
		return
	}

	// The payload is the snapshot handed to the engine, not a fresh read:
	// interleaved actions must not leak into this save's announcement.
	act := store.Action{Type: ActionTypeSave, Payload: snapshot}
	if cfg.originMeta {
		act.Meta = map[string]any{MetaOrigin: origin}
	}
	api.Dispatch(act)
}
