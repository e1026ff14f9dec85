package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/botsync/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Limit int
}

// RunView is the JSON shape of a journaled run.
type RunView struct {
	ID         string          `json:"id"`
	Command    string          `json:"command"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
	Status     string          `json:"status"`
	Error      string          `json:"error,omitempty"`
	Details    map[string]any  `json:"details,omitempty"`
	Operations []OperationView `json:"operations,omitempty"`
}

// OperationView is the JSON shape of a journaled operation.
type OperationView struct {
	Seq      int64  `json:"seq"`
	Kind     string `json:"kind"`
	Target   string `json:"target,omitempty"`
	RemoteID string `json:"remote_id,omitempty"`
	Digest   string `json:"digest,omitempty"`
	Status   string `json:"status"`
	Error    string `json:"error,omitempty"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show journaled runs",
		Long: `List the runs recorded in the journal, newest first, or show one run
with the remote operations it attempted.

Requires a journal (--journal or BOTSYNC_JOURNAL). No credentials are needed.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd, args)
		},
	}

	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "maximum number of runs to list (0 for all)")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command, args []string) error {
	formatter := opts.formatter(cmd)

	cfg, err := loadConfig(cmd, opts.RootOptions)
	if err != nil {
		return fail(formatter, "cannot read history", err)
	}
	if cfg.Journal == "" {
		return fail(formatter, "cannot read history", errNoJournal)
	}
	st, err := openJournal(cfg)
	if err != nil {
		return fail(formatter, "cannot read history", err)
	}
	defer st.Close()

	ctx := cmd.Context()
	if len(args) == 1 {
		run, err := st.ReadRun(ctx, args[0])
		if err != nil {
			return fail(formatter, "cannot read run", err)
		}
		ops, err := st.ReadOperations(ctx, run.ID)
		if err != nil {
			return fail(formatter, "cannot read run", err)
		}
		view := newRunView(run, ops)
		return formatter.Result(run.ID, view, func(w io.Writer) {
			writeRun(w, view)
		})
	}

	runs, err := st.ListRuns(ctx, opts.Limit)
	if err != nil {
		return fail(formatter, "cannot list runs", err)
	}
	views := make([]RunView, 0, len(runs))
	for _, run := range runs {
		views = append(views, newRunView(run, nil))
	}
	return formatter.Result("", views, func(w io.Writer) {
		if len(views) == 0 {
			fmt.Fprintln(w, "No runs recorded")
			return
		}
		for _, v := range views {
			fmt.Fprintf(w, "%s  %s  %-15s %s\n", v.StartedAt.UTC().Format(time.RFC3339), v.ID, v.Command, v.Status)
		}
	})
}

func newRunView(run store.Run, ops []store.Operation) RunView {
	v := RunView{
		ID:        run.ID,
		Command:   run.Command,
		StartedAt: run.StartedAt.UTC(),
		Status:    run.Status,
		Error:     run.Error,
		Details:   run.Details,
	}
	if !run.FinishedAt.IsZero() {
		finished := run.FinishedAt.UTC()
		v.FinishedAt = &finished
	}
	for _, op := range ops {
		v.Operations = append(v.Operations, OperationView{
			Seq:      op.Seq,
			Kind:     op.Kind,
			Target:   op.Target,
			RemoteID: op.RemoteID,
			Digest:   op.Digest,
			Status:   op.Status,
			Error:    op.Error,
		})
	}
	return v
}

func writeRun(w io.Writer, v RunView) {
	fmt.Fprintf(w, "Run %s (%s): %s\n", v.ID, v.Command, v.Status)
	fmt.Fprintf(w, "  started  %s\n", v.StartedAt.Format(time.RFC3339))
	if v.FinishedAt != nil {
		fmt.Fprintf(w, "  finished %s\n", v.FinishedAt.Format(time.RFC3339))
	}
	if v.Error != "" {
		fmt.Fprintf(w, "  error    %s\n", v.Error)
	}
	for _, op := range v.Operations {
		line := fmt.Sprintf("  %3d %-15s %s", op.Seq, op.Kind, op.Status)
		if op.Target != "" {
			line += " " + op.Target
		}
		if op.Error != "" {
			line += ": " + op.Error
		}
		fmt.Fprintln(w, line)
	}
}
