package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/statekit/stash/engine/sqlite"
	"github.com/statekit/stash/internal/canonical"
)

// NewSnapshotsCommand groups the snapshot database subcommands.
func NewSnapshotsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshots",
		Short: "Inspect a snapshot database",
	}

	cmd.AddCommand(newSnapshotsListCommand(rootOpts))
	cmd.AddCommand(newSnapshotsShowCommand(rootOpts))
	cmd.AddCommand(newSnapshotsPruneCommand(rootOpts))
	return cmd
}

// openEngine opens the snapshot database, mapping a missing file to a
// command error instead of letting sqlite create an empty database.
func openEngine(path string) (*sqlite.Engine, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, WrapExitError(ExitCommandError, fmt.Sprintf("snapshot database not found: %s", path), err)
	}
	eng, err := sqlite.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "opening snapshot database", err)
	}
	return eng, nil
}

func newSnapshotsListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list <db>",
		Short:         "List stored snapshots",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(rootOpts, cmd)

			eng, err := openEngine(args[0])
			if err != nil {
				return err
			}
			defer eng.Close()

			infos, err := eng.List(cmd.Context())
			if err != nil {
				if outErr := formatter.Error(ErrCodeDatabase, err.Error()); outErr != nil {
					return outErr
				}
				return WrapExitError(ExitFailure, "listing snapshots", err)
			}

			if rootOpts.Format == "text" {
				return formatter.Success(formatSnapshotTable(infos))
			}
			return formatter.Success(infos)
		},
	}
}

func newSnapshotsShowCommand(rootOpts *RootOptions) *cobra.Command {
	var latest bool

	cmd := &cobra.Command{
		Use:           "show <db> [id]",
		Short:         "Print a snapshot body",
		Long:          "Print the decoded body of a snapshot, addressed by id or with --latest.",
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(rootOpts, cmd)

			if !latest && len(args) < 2 {
				return WrapExitError(ExitCommandError, "either a snapshot id or --latest is required", nil)
			}

			eng, err := openEngine(args[0])
			if err != nil {
				return err
			}
			defer eng.Close()

			var body any
			if latest {
				body, err = eng.Load(cmd.Context())
			} else {
				body, err = eng.Get(cmd.Context(), args[1])
			}
			if err != nil {
				if outErr := formatter.Error(ErrCodeNotFound, err.Error()); outErr != nil {
					return outErr
				}
				return WrapExitError(ExitFailure, "reading snapshot", err)
			}

			if rootOpts.Format == "text" {
				data, err := canonical.Marshal(body)
				if err != nil {
					return WrapExitError(ExitFailure, "encoding snapshot", err)
				}
				return formatter.Success(string(data))
			}
			return formatter.Success(body)
		},
	}

	cmd.Flags().BoolVar(&latest, "latest", false, "show the newest snapshot")
	return cmd
}

func newSnapshotsPruneCommand(rootOpts *RootOptions) *cobra.Command {
	var keep int

	cmd := &cobra.Command{
		Use:           "prune <db>",
		Short:         "Delete all but the newest snapshots",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(rootOpts, cmd)

			eng, err := openEngine(args[0])
			if err != nil {
				return err
			}
			defer eng.Close()

			n, err := eng.Prune(cmd.Context(), keep)
			if err != nil {
				if outErr := formatter.Error(ErrCodeDatabase, err.Error()); outErr != nil {
					return outErr
				}
				return WrapExitError(ExitFailure, "pruning snapshots", err)
			}

			if rootOpts.Format == "text" {
				return formatter.Success(fmt.Sprintf("pruned %d snapshot(s), kept %d", n, keep))
			}
			return formatter.Success(map[string]any{"pruned": n, "kept": keep})
		},
	}

	cmd.Flags().IntVar(&keep, "keep", 10, "number of newest snapshots to keep")
	return cmd
}

// formatSnapshotTable renders snapshot metadata as aligned text, oldest
// first. Hashes are truncated for readability; use json output for full
// values.
func formatSnapshotTable(infos []sqlite.SnapshotInfo) string {
	if len(infos) == 0 {
		return "no snapshots"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%-5s  %-36s  %-30s  %-12s  %s", "SEQ", "ID", "CREATED", "HASH", "SIZE")
	for _, info := range infos {
		fmt.Fprintf(&b, "\n%-5d  %-36s  %-30s  %-12s  %d",
			info.Seq, info.ID, info.CreatedAt.Format("2006-01-02T15:04:05.000Z07:00"),
			truncateHash(info.Hash), info.Size)
	}
	return b.String()
}

func truncateHash(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}
