package cli

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/botsync/internal/bot"
	"github.com/roach88/botsync/internal/config"
	"github.com/roach88/botsync/internal/engine"
)

// SnapshotOptions holds flags for the snapshot subcommands.
type SnapshotOptions struct {
	*RootOptions
	Ref string // tag reference, e.g. refs/tags/v1.2.0
}

// NewSnapshotCommand creates the snapshot command and its create and delete
// subcommands.
func NewSnapshotCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Create or delete a named snapshot of the remote bot",
		Long: `Create or delete a named snapshot (label) of the remote bot.

The name is taken, in order, from the argument, from --ref (a tag reference
with its refs/tags/ prefix removed), or from the CI environment
(GITHUB_EVENT_PATH payload, then GITHUB_REF).`,
	}

	cmd.AddCommand(newSnapshotSubcommand(rootOpts, "create", "Create a snapshot",
		func(ctx context.Context, e *engine.Engine, name string) (engine.Report, error) {
			return e.CreateSnapshot(ctx, name)
		}))
	cmd.AddCommand(newSnapshotSubcommand(rootOpts, "delete", "Delete a snapshot",
		func(ctx context.Context, e *engine.Engine, name string) (engine.Report, error) {
			return e.DeleteSnapshot(ctx, name)
		}))

	return cmd
}

type snapshotFunc func(ctx context.Context, e *engine.Engine, name string) (engine.Report, error)

func newSnapshotSubcommand(rootOpts *RootOptions, use, short string, run snapshotFunc) *cobra.Command {
	opts := &SnapshotOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           use + " [name]",
		Short:         short,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSnapshot(opts, cmd, args, use, run)
		},
	}

	cmd.Flags().StringVar(&opts.Ref, "ref", "", "tag reference to derive the name from")

	return cmd
}

func runSnapshot(opts *SnapshotOptions, cmd *cobra.Command, args []string, use string, run snapshotFunc) error {
	formatter := opts.formatter(cmd)

	sess, err := openSession(cmd, opts.RootOptions)
	if err != nil {
		return fail(formatter, "cannot start snapshot "+use, err)
	}
	defer sess.Close()

	name, err := snapshotName(opts, args, sess.cfg)
	if err != nil {
		return fail(formatter, "cannot start snapshot "+use, err)
	}
	rep, err := run(cmd.Context(), sess.engine, name)
	if err != nil {
		return fail(formatter, "snapshot "+use+" failed", err)
	}
	return formatter.Result(rep.RunID, rep, func(w io.Writer) {
		writeReport(w, rep)
	})
}

func snapshotName(opts *SnapshotOptions, args []string, cfg *config.Config) (string, error) {
	switch {
	case len(args) == 1:
		return args[0], nil
	case opts.Ref != "":
		return bot.SnapshotNameFromRef(opts.Ref), nil
	}
	return cfg.SnapshotName()
}
