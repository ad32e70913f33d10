package persist

import (
	"fmt"
	"reflect"

	"github.com/statekit/stash/store"
)

// actionIgnored is the marker prefix for malformed-action diagnostics.
const actionIgnored = "ACTION IGNORED!"

// valueFragmentLimit caps how much of an offending value is echoed in a
// diagnostic.
const valueFragmentLimit = 64

// admit decides whether an action should trigger a save. Pure with respect
// to the pipeline: no state, same decision for the same inputs. Order
// matters and first match wins:
//
//  1. shape validation (diagnostic on failure)
//  2. reserved load/save types (silent: expected steady-state traffic)
//  3. blacklist
//  4. whitelist (membership set or predicate over the whole action)
//  5. eligible
//
// Filtering by configuration (3-5) is normal operation and never emits a
// diagnostic.
func (c *config) admit(action any) (store.Action, bool) {
	act, ok := c.checkShape(action)
	if !ok {
		return store.Action{}, false
	}

	if act.Type == ActionTypeLoad || act.Type == ActionTypeSave {
		return store.Action{}, false
	}

	if _, blocked := c.blacklist[act.Type]; blocked {
		return store.Action{}, false
	}

	if wl := c.whitelist; wl != nil {
		if wl.predicate != nil {
			if !wl.predicate(act) {
				return store.Action{}, false
			}
		} else if _, listed := wl.members[act.Type]; !listed {
			// An empty membership set rejects everything, taken literally.
			return store.Action{}, false
		}
	}

	return act, true
}

// checkShape validates that the dispatched value is an Action with a type.
// Malformed values get a diagnostic naming the specific failure and a
// fragment of the offending value.
func (c *config) checkShape(action any) (store.Action, bool) {
	switch v := action.(type) {
	case store.Action:
		if v.Type == "" {
			c.warnf("%s Action has no type: %s", actionIgnored, fragment(v))
			return store.Action{}, false
		}
		return v, true
	case nil:
		c.warnf("%s Expected an action, but received: <nil>", actionIgnored)
		return store.Action{}, false
	default:
		if reflect.ValueOf(action).Kind() == reflect.Func {
			c.warnf("%s Expected an action, but received a function. Did you forget to call it?",
				actionIgnored)
			return store.Action{}, false
		}
		c.warnf("%s Expected an action, but received: %s", actionIgnored, fragment(v))
		return store.Action{}, false
	}
}

func (c *config) warnf(format string, args ...any) {
	if !c.diagnostics {
		return
	}
	c.logger.Warn(fmt.Sprintf(format, args...))
}

func fragment(v any) string {
	s := fmt.Sprintf("%+v", v)
	if len(s) > valueFragmentLimit {
		s = s[:valueFragmentLimit] + "..."
	}
	return s
}
