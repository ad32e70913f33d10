package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/statekit/stash/internal/policy"
)

// ValidationResult holds the outcome of a policy validation.
type ValidationResult struct {
	Valid       bool     `json:"valid" yaml:"valid"`
	Path        string   `json:"path" yaml:"path"`
	Blacklist   []string `json:"blacklist,omitempty" yaml:"blacklist,omitempty"`
	Whitelist   []string `json:"whitelist,omitempty" yaml:"whitelist,omitempty"`
	Diagnostics bool     `json:"diagnostics" yaml:"diagnostics"`
	Overlap     []string `json:"overlap,omitempty" yaml:"overlap,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <policy.cue>",
		Short: "Validate a persistence policy file",
		Long: `Validate a CUE persistence policy file against the policy schema.

Reports schema violations and configuration that is legal but suspicious,
such as action types present in both blacklist and whitelist.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	p, err := policy.Load(path)
	if err != nil {
		if outErr := formatter.Error(ErrCodePolicyInvalid, err.Error()); outErr != nil {
			return outErr
		}
		return WrapExitError(ExitFailure, "policy validation failed", err)
	}

	result := ValidationResult{
		Valid:       true,
		Path:        path,
		Blacklist:   p.Blacklist,
		Whitelist:   p.Whitelist,
		Diagnostics: p.Diagnostics,
		Overlap:     overlap(p.Blacklist, p.Whitelist),
	}

	if opts.Format == "text" {
		formatter.VerboseLog("Validated %s", path)
		msg := fmt.Sprintf("%s: valid (blacklist=%d, whitelist=%d)",
			path, len(p.Blacklist), len(p.Whitelist))
		for _, t := range result.Overlap {
			msg += fmt.Sprintf("\nwarning: %q is both blacklisted and whitelisted", t)
		}
		return formatter.Success(msg)
	}
	return formatter.Success(result)
}

// overlap returns types present in both lists, in blacklist order.
func overlap(blacklist, whitelist []string) []string {
	listed := make(map[string]struct{}, len(whitelist))
	for _, t := range whitelist {
		listed[t] = struct{}{}
	}
	var both []string
	for _, t := range blacklist {
		if _, ok := listed[t]; ok {
			both = append(both, t)
		}
	}
	return both
}
