package cli

import (
	"fmt"
	"io"

	"github.com/roach88/botsync/internal/engine"
)

// writeReport renders an operation report as text.
func writeReport(w io.Writer, rep engine.Report) {
	switch rep.Command {
	case engine.CommandUpdate:
		writeUpdateReport(w, rep)
	case engine.CommandBuild:
		fmt.Fprintf(w, "Build triggered (run %s)\n", rep.RunID)
	case engine.CommandCreateSnapshot:
		fmt.Fprintf(w, "Snapshot %q created (run %s)\n", rep.Snapshot, rep.RunID)
	case engine.CommandDeleteSnapshot:
		fmt.Fprintf(w, "Snapshot %q deleted (run %s)\n", rep.Snapshot, rep.RunID)
	default:
		fmt.Fprintf(w, "%s finished (run %s)\n", rep.Command, rep.RunID)
	}
}

func writeUpdateReport(w io.Writer, rep engine.Report) {
	if rep.DryRun {
		fmt.Fprintf(w, "Dry run (run %s)\n", rep.RunID)
	} else {
		fmt.Fprintf(w, "Update (run %s)\n", rep.RunID)
	}
	if rep.Summary != nil {
		fmt.Fprintf(w, "  %s\n", rep.Summary)
	}
	for _, c := range rep.Changes {
		if c.RemoteID != "" {
			fmt.Fprintf(w, "  %-7s %s (%s)\n", c.Kind, c.Name, c.RemoteID)
		} else {
			fmt.Fprintf(w, "  %-7s %s\n", c.Kind, c.Name)
		}
	}
	if rep.Rules != nil {
		fmt.Fprintf(w, "  rules   %d (%s)\n", rep.Rules.Count, rep.Rules.Status)
		if rep.Rules.Warning != "" {
			fmt.Fprintf(w, "  warning: %s\n", rep.Rules.Warning)
		}
	}
	if !rep.DryRun {
		fmt.Fprintf(w, "Applied %d operations\n", rep.Applied)
	}
}
