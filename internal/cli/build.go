package cli

import (
	"io"

	"github.com/spf13/cobra"
)

// NewBuildCommand creates the build command.
func NewBuildCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "build",
		Short:         "Trigger a build of the remote bot",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(rootOpts, cmd)
		},
	}
}

func runBuild(opts *RootOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	sess, err := openSession(cmd, opts)
	if err != nil {
		return fail(formatter, "cannot start build", err)
	}
	defer sess.Close()

	rep, err := sess.engine.Build(cmd.Context())
	if err != nil {
		return fail(formatter, "build failed", err)
	}
	return formatter.Result(rep.RunID, rep, func(w io.Writer) {
		writeReport(w, rep)
	})
}
