package cli

import (
	"io"

	"github.com/spf13/cobra"
)

// UpdateOptions holds flags for the update command.
type UpdateOptions struct {
	*RootOptions
	DryRun bool
}

// NewUpdateCommand creates the update command.
func NewUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &UpdateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Push local flows and AI rules to the remote bot",
		Long: `Reconcile the local flows with the remote bot by name and apply the
result: delete remote flows missing locally, update the ones present on
both sides, create the new ones. The AI rules are then replaced as a
whole.

With --dry-run the remote flows are fetched and the plan is printed, but
nothing is changed.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpdate(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "print the plan without applying it")

	return cmd
}

func runUpdate(opts *UpdateOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	sess, err := openSession(cmd, opts.RootOptions)
	if err != nil {
		return fail(formatter, "cannot start update", err)
	}
	defer sess.Close()

	run := sess.engine.Update
	if opts.DryRun {
		run = sess.engine.DryRun
	}
	rep, err := run(cmd.Context())
	if err != nil {
		return fail(formatter, "update failed", err)
	}

	return formatter.Result(rep.RunID, rep, func(w io.Writer) {
		writeReport(w, rep)
	})
}
