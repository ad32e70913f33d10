package persist

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/statekit/stash/store"
)

func testConfig(buf *bytes.Buffer, opts ...Option) *config {
	if buf != nil {
		logger := slog.New(slog.NewTextHandler(buf, nil))
		opts = append(opts, WithDiagnostics(true), WithLogger(logger))
	}
	return newConfig(opts)
}

func TestAdmit_DefaultConfig(t *testing.T) {
	cfg := testConfig(nil)

	act, ok := cfg.admit(store.Action{Type: "ADD_TODO"})
	require.True(t, ok)
	assert.Equal(t, "ADD_TODO", act.Type)
}

func TestAdmit_ReservedTypes(t *testing.T) {
	// Reserved protocol traffic is skipped under every configuration,
	// including a whitelist that names it.
	configs := map[string]*config{
		"default":   testConfig(nil),
		"blacklist": testConfig(nil, WithBlacklist("OTHER")),
		"whitelist": testConfig(nil, WithWhitelist(ActionTypeLoad, ActionTypeSave)),
	}

	for name, cfg := range configs {
		for _, typ := range []string{ActionTypeLoad, ActionTypeSave} {
			_, ok := cfg.admit(store.Action{Type: typ})
			assert.False(t, ok, "config %s should skip %s", name, typ)
		}
	}
}

func TestAdmit_ReservedTypesSilent(t *testing.T) {
	var buf bytes.Buffer
	cfg := testConfig(&buf)

	cfg.admit(store.Action{Type: ActionTypeSave})
	assert.Empty(t, buf.String(), "reserved traffic is steady-state, not an error")
}

func TestAdmit_Blacklist(t *testing.T) {
	cfg := testConfig(nil, WithBlacklist("X"))

	_, ok := cfg.admit(store.Action{Type: "X"})
	assert.False(t, ok)

	_, ok = cfg.admit(store.Action{Type: "Y"})
	assert.True(t, ok)
}

func TestAdmit_WhitelistSet(t *testing.T) {
	cfg := testConfig(nil, WithWhitelist("Y"))

	_, ok := cfg.admit(store.Action{Type: "X"})
	assert.False(t, ok)

	_, ok = cfg.admit(store.Action{Type: "Y"})
	assert.True(t, ok)
}

func TestAdmit_EmptyWhitelistRejectsEverything(t *testing.T) {
	cfg := testConfig(nil, WithWhitelist())

	_, ok := cfg.admit(store.Action{Type: "ANYTHING"})
	assert.False(t, ok)
}

func TestAdmit_EmptyBlacklistIsNoOp(t *testing.T) {
	cfg := testConfig(nil, WithBlacklist())

	_, ok := cfg.admit(store.Action{Type: "ANYTHING"})
	assert.True(t, ok)
}

func TestAdmit_WhitelistPredicateSeesWholeAction(t *testing.T) {
	var seen store.Action
	cfg := testConfig(nil, WithWhitelistFunc(func(act store.Action) bool {
		seen = act
		return act.Payload == "keep"
	}))

	action := store.Action{Type: "X", Payload: "keep", Meta: map[string]any{"k": 1}}
	_, ok := cfg.admit(action)
	require.True(t, ok)
	assert.Equal(t, action, seen, "predicate receives the complete action record")

	_, ok = cfg.admit(store.Action{Type: "X", Payload: "drop"})
	assert.False(t, ok)
}

func TestAdmit_BlacklistWinsOverWhitelist(t *testing.T) {
	cfg := testConfig(nil, WithBlacklist("X"), WithWhitelist("X"))

	_, ok := cfg.admit(store.Action{Type: "X"})
	assert.False(t, ok)
}

func TestAdmit_Idempotent(t *testing.T) {
	cfg := testConfig(nil, WithBlacklist("X"), WithWhitelist("Y"))

	for _, typ := range []string{"X", "Y", "Z", ActionTypeSave} {
		action := store.Action{Type: typ}
		_, first := cfg.admit(action)
		_, second := cfg.admit(action)
		assert.Equal(t, first, second, "type %s", typ)
	}
}

func TestAdmit_MalformedFunction(t *testing.T) {
	var buf bytes.Buffer
	cfg := testConfig(&buf)

	_, ok := cfg.admit(func() {})
	assert.False(t, ok)
	assert.Contains(t, buf.String(), "ACTION IGNORED!")
	assert.Contains(t, buf.String(), "but received a function")
}

func TestAdmit_MalformedString(t *testing.T) {
	var buf bytes.Buffer
	cfg := testConfig(&buf)

	_, ok := cfg.admit("INCREMENT")
	assert.False(t, ok)
	assert.Contains(t, buf.String(), "ACTION IGNORED!")
	assert.Contains(t, buf.String(), "INCREMENT")
}

func TestAdmit_MissingType(t *testing.T) {
	var buf bytes.Buffer
	cfg := testConfig(&buf)

	_, ok := cfg.admit(store.Action{Payload: "orphan"})
	assert.False(t, ok)
	assert.Contains(t, buf.String(), "ACTION IGNORED!")
	assert.Contains(t, buf.String(), "no type")
}

func TestAdmit_MalformedNil(t *testing.T) {
	var buf bytes.Buffer
	cfg := testConfig(&buf)

	_, ok := cfg.admit(nil)
	assert.False(t, ok)
	assert.Contains(t, buf.String(), "ACTION IGNORED!")
}

func TestAdmit_DiagnosticsOffIsSilent(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	cfg := newConfig([]Option{WithLogger(logger)})

	_, ok := cfg.admit(func() {})
	assert.False(t, ok, "malformed actions are skipped either way")
	assert.Empty(t, buf.String())
}

func TestWarnOverlap(t *testing.T) {
	var buf bytes.Buffer
	cfg := testConfig(&buf, WithBlacklist("X"), WithWhitelist("X", "Y"))

	cfg.warnOverlap()
	out := buf.String()
	assert.Contains(t, out, "blacklisted and whitelisted")
	assert.Contains(t, out, "X")
	assert.NotContains(t, out, `type=Y`)
}

func TestWarnOverlap_PredicateWhitelist(t *testing.T) {
	var buf bytes.Buffer
	cfg := testConfig(&buf,
		WithBlacklist("X"),
		WithWhitelistFunc(func(store.Action) bool { return true }))

	// Membership cannot be checked against a predicate; no warning.
	cfg.warnOverlap()
	assert.Empty(t, buf.String())
}

func TestFragment_Truncates(t *testing.T) {
	long := make([]byte, 200)
	for i := range long {
		long[i] = 'a'
	}

	got := fragment(string(long))
	assert.Len(t, got, valueFragmentLimit+3)
	assert.Contains(t, got, "...")
}
