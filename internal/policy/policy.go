// Package policy loads persistence policies from CUE files.
//
// A policy file declares, declaratively, what the persist middleware is
// otherwise configured with in code: blacklist, whitelist, diagnostics,
// and origin metadata. Files are validated against the embedded #Policy
// schema before use, so a typoed field is a load error rather than a
// silently ignored setting.
//
// Example policy file:
//
//	policy: {
//	    blacklist:   ["TICK", "MOUSE_MOVE"]
//	    whitelist:   ["ADD_TODO", "REMOVE_TODO"]
//	    diagnostics: true
//	}
package policy

import (
	_ "embed"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/statekit/stash/persist"
)

//go:embed schema.cue
var schemaCUE string

// Policy is a decoded, validated persistence policy.
type Policy struct {
	Blacklist   []string `json:"blacklist"`
	Whitelist   []string `json:"whitelist"`
	Diagnostics bool     `json:"diagnostics"`
	OriginMeta  bool     `json:"originMeta"`

	// hasWhitelist distinguishes "no whitelist" from "empty whitelist":
	// the latter rejects everything and must survive decoding.
	hasWhitelist bool
}

// LoadError is a policy load failure with an optional CUE source position.
type LoadError struct {
	Path    string
	Message string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// Load reads, validates, and decodes the policy file at path.
func Load(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Message: fmt.Sprintf("reading policy file: %v", err)}
	}
	return Parse(path, string(data))
}

// Parse validates and decodes policy source. filename is used only for
// error positions.
func Parse(filename, src string) (*Policy, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile policy schema: %w", err)
	}

	val := ctx.CompileString(src, cue.Filename(filename))
	if err := val.Err(); err != nil {
		return nil, formatCUEError(filename, err)
	}

	policyVal := val.LookupPath(cue.ParsePath("policy"))
	if !policyVal.Exists() {
		return nil, &LoadError{Path: filename, Message: "policy field is required", Pos: val.Pos()}
	}

	unified := schema.LookupPath(cue.ParsePath("#Policy")).Unify(policyVal)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(filename, err)
	}

	p := &Policy{}
	if err := unified.Decode(p); err != nil {
		return nil, formatCUEError(filename, err)
	}
	p.hasWhitelist = policyVal.LookupPath(cue.ParsePath("whitelist")).Exists()
	return p, nil
}

// Options converts the policy into middleware options.
func (p *Policy) Options() []persist.Option {
	var opts []persist.Option
	if len(p.Blacklist) > 0 {
		opts = append(opts, persist.WithBlacklist(p.Blacklist...))
	}
	if p.hasWhitelist {
		opts = append(opts, persist.WithWhitelist(p.Whitelist...))
	}
	if p.Diagnostics {
		opts = append(opts, persist.WithDiagnostics(true))
	}
	if p.OriginMeta {
		opts = append(opts, persist.WithOriginMeta(true))
	}
	return opts
}

func formatCUEError(path string, err error) error {
	var pos token.Pos
	if cerrs := cueerrors.Errors(err); len(cerrs) > 0 {
		pos = cerrs[0].Position()
	}
	return &LoadError{
		Path:    path,
		Message: cueerrors.Details(err, &cueerrors.Config{Cwd: ""}),
		Pos:     pos,
	}
}
