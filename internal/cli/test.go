package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/botsync/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update    bool
	Filter    string
	GoldenDir string
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run sync scenarios against an in-memory Studio",
		Long: `Run every *.yaml scenario in a directory against an in-memory CSML
Studio and check its assertions. When a golden file <name>.golden exists
in the golden directory, the recorded request trace must match it byte
for byte.

The golden directory defaults to "golden" next to the scenarios
directory. No credentials or network access are needed.

Exit codes:
  0 - all scenarios passed
  1 - one or more scenarios failed
  2 - the directory or filter is invalid`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, cmd, args[0])
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "rewrite golden files from the recorded traces")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "only run scenarios whose file name matches this glob")
	cmd.Flags().StringVar(&opts.GoldenDir, "golden-dir", "", "directory of golden trace files")

	return cmd
}

func runTests(opts *TestOptions, cmd *cobra.Command, dir string) error {
	formatter := opts.formatter(cmd)

	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		msg := fmt.Sprintf("scenarios directory not found: %s", dir)
		if outErr := formatter.Error(ErrCodeLocalRead, msg, nil); outErr != nil {
			return WrapExitError(ExitFailure, "failed to write output", outErr)
		}
		return NewExitError(ExitCommandError, msg)
	}

	goldenDir := opts.GoldenDir
	if goldenDir == "" {
		goldenDir = filepath.Join(filepath.Dir(filepath.Clean(dir)), "golden")
	}
	formatter.VerboseLog("running scenarios in %s (golden files in %s)", dir, goldenDir)

	result, err := harness.RunDir(dir, harness.SuiteOptions{
		Filter:    opts.Filter,
		GoldenDir: goldenDir,
		Update:    opts.Update,
	})
	if err != nil {
		if outErr := formatter.Error(ErrCodeConfig, err.Error(), nil); outErr != nil {
			return WrapExitError(ExitFailure, "failed to write output", outErr)
		}
		return WrapExitError(ExitCommandError, "cannot run scenarios", err)
	}

	if formatter.Format == "json" {
		return outputTestJSON(formatter, result)
	}
	writeTestText(formatter.Writer, result)
	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}
	return nil
}

func outputTestJSON(f *OutputFormatter, result *harness.SuiteResult) error {
	if result.Failed == 0 {
		return f.Success(result)
	}

	msg := fmt.Sprintf("%d scenario(s) failed", result.Failed)
	err := f.encode(CLIResponse{
		Status: "error",
		Data:   result,
		Error:  &CLIError{Code: ErrCodeTestFailed, Message: msg},
	})
	if err != nil {
		return WrapExitError(ExitFailure, "failed to write output", err)
	}
	return NewExitError(ExitFailure, msg)
}

func writeTestText(w io.Writer, result *harness.SuiteResult) {
	if result.TotalScenarios == 0 {
		fmt.Fprintln(w, "No scenarios found.")
		return
	}

	for _, s := range result.Scenarios {
		if s.Pass {
			fmt.Fprintf(w, "PASS %s\n", s.Name)
			continue
		}
		fmt.Fprintf(w, "FAIL %s\n", s.Name)
		for _, e := range s.Errors {
			fmt.Fprintf(w, "    %s\n", e)
		}
	}

	fmt.Fprintf(w, "\nTest Summary: %d passed, %d failed, %d total\n",
		result.Passed, result.Failed, result.TotalScenarios)
}
