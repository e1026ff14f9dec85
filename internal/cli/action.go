package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/botsync/internal/engine"
)

// NewActionCommand creates the action command, the CI entry point.
func NewActionCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "action",
		Short: "Run the operations enabled by the CI inputs",
		Long: `Run the operations enabled through the CI environment, in this order:

  INPUT_SAVE          update flows and AI rules
  INPUT_BUILD         trigger a build
  INPUT_CREATE_LABEL  create a snapshot named after the tag
  INPUT_DELETE_LABEL  delete the snapshot named after the tag

An input is enabled by any non-empty value except false, 0 and no.
The first failure stops the run.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAction(rootOpts, cmd)
		},
	}
}

func runAction(opts *RootOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	sess, err := openSession(cmd, opts)
	if err != nil {
		return fail(formatter, "cannot start action", err)
	}
	defer sess.Close()

	t := sess.cfg.Triggers
	triggers := engine.Triggers{
		Update:         t.Update,
		Build:          t.Build,
		CreateSnapshot: t.CreateSnapshot,
		DeleteSnapshot: t.DeleteSnapshot,
	}
	if t.CreateSnapshot || t.DeleteSnapshot {
		if triggers.SnapshotName, err = sess.cfg.SnapshotName(); err != nil {
			return fail(formatter, "cannot start action", err)
		}
	}
	if !triggers.Any() {
		formatter.VerboseLog("no CI input enabled")
	}

	reports, err := sess.engine.RunTriggers(cmd.Context(), triggers)
	if err != nil {
		return fail(formatter, "action failed", err)
	}

	return formatter.Result("", reports, func(w io.Writer) {
		if len(reports) == 0 {
			fmt.Fprintln(w, "Nothing to do")
			return
		}
		for _, rep := range reports {
			writeReport(w, rep)
		}
	})
}
