// Package log holds the slog attribute helpers and logger construction
// shared by the CLI and the orchestrator.
package log

import (
	"io"
	"log/slog"
)

// New constructs a text slog.Logger writing to w. Debug level when verbose.
func New(w io.Writer, verbose bool) *slog.Logger {
	lvl := slog.LevelInfo
	if verbose {
		lvl = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}
