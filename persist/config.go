package persist

import (
	"context"
	"log/slog"

	"github.com/statekit/stash/store"
)

// Predicate decides whitelist membership from the full action record, not
// just its type.
type Predicate func(action store.Action) bool

// whitelist is a tagged variant: exactly one of members or predicate is
// set. A nil whitelist means "all non-reserved, non-blacklisted actions".
type whitelist struct {
	members   map[string]struct{}
	predicate Predicate
}

// config is built once per middleware instance and read-only thereafter.
type config struct {
	blacklist   map[string]struct{}
	whitelist   *whitelist
	diagnostics bool
	originMeta  bool
	logger      *slog.Logger
	ctx         context.Context
}

// Option configures the middleware at construction time.
type Option func(*config)

// WithBlacklist excludes the given action types from persistence. An empty
// list behaves as no blacklist.
func WithBlacklist(types ...string) Option {
	return func(c *config) {
		c.blacklist = make(map[string]struct{}, len(types))
		for _, t := range types {
			c.blacklist[t] = struct{}{}
		}
	}
}

// WithWhitelist restricts persistence to exactly the given action types.
// An empty list is taken literally: nothing is eligible.
// Overrides any previously set whitelist predicate.
func WithWhitelist(types ...string) Option {
	return func(c *config) {
		members := make(map[string]struct{}, len(types))
		for _, t := range types {
			members[t] = struct{}{}
		}
		c.whitelist = &whitelist{members: members}
	}
}

// WithWhitelistFunc restricts persistence to actions the predicate accepts.
// The predicate receives the entire action, so it may inspect payload and
// meta as well as the type. Overrides any previously set whitelist set.
func WithWhitelistFunc(fn Predicate) Option {
	return func(c *config) {
		c.whitelist = &whitelist{predicate: fn}
	}
}

// WithDiagnostics enables warning output for malformed actions and
// suspicious configuration. Off by default: production traffic stays
// silent. Resolved once at construction, never per dispatch.
func WithDiagnostics(enabled bool) Option {
	return func(c *config) {
		c.diagnostics = enabled
	}
}

// WithOriginMeta attaches the originating action to each save action under
// MetaOrigin. Off by default so user action payloads do not leak into
// downstream consumers of save actions unintentionally.
func WithOriginMeta(enabled bool) Option {
	return func(c *config) {
		c.originMeta = enabled
	}
}

// WithLogger sets the diagnostic logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithContext sets the context passed to engine saves. Defaults to
// context.Background(). Cancelling it does not abort in-flight saves at
// this layer; it is forwarded for the engine's own use.
func WithContext(ctx context.Context) Option {
	return func(c *config) {
		c.ctx = ctx
	}
}

func newConfig(opts []Option) *config {
	c := &config{
		ctx: context.Background(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// warnOverlap emits a construction-time diagnostic for types present in
// both lists. A whitelist already excludes everything not listed, so
// blacklisting a whitelisted entry is almost certainly a mistake. The
// filter still resolves it deterministically (blacklist wins).
func (c *config) warnOverlap() {
	if !c.diagnostics || c.whitelist == nil || c.whitelist.members == nil {
		return
	}
	for t := range c.blacklist {
		if _, ok := c.whitelist.members[t]; ok {
			c.logger.Warn("action type is both blacklisted and whitelisted; blacklist wins",
				"type", t)
		}
	}
}
