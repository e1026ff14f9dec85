package cli

import (
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/botsync/internal/log"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string

	// Overrides applied on top of file and environment configuration,
	// only when the flag was set explicitly.
	BaseURL   string
	FlowsDir  string
	RulesFile string
	Journal   string
	Timeout   time.Duration
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the botsync CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "botsync",
		Short: "Sync a CSML bot from its repository",
		Long: `Synchronize a CSML chatbot hosted on CSML Studio with the flows and
AI rules kept in a repository.

Flows are read from flows/*.csml and reconciled by name against the
remote bot: removed flows are deleted, existing ones updated, new ones
created. airules.json replaces the bot's AI rules as a whole.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			slog.SetDefault(log.New(cmd.ErrOrStderr(), opts.Verbose))
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "config file (default botsync.yaml if present)")
	cmd.PersistentFlags().StringVar(&opts.BaseURL, "base-url", "", "CSML client API base URL")
	cmd.PersistentFlags().StringVar(&opts.FlowsDir, "flows-dir", "", "directory holding the .csml flows")
	cmd.PersistentFlags().StringVar(&opts.RulesFile, "rules-file", "", "AI rules file")
	cmd.PersistentFlags().StringVar(&opts.Journal, "journal", "", "run journal database (disabled when empty)")
	cmd.PersistentFlags().DurationVar(&opts.Timeout, "timeout", 0, "HTTP timeout per remote call")

	cmd.AddCommand(NewUpdateCommand(opts))
	cmd.AddCommand(NewBuildCommand(opts))
	cmd.AddCommand(NewSnapshotCommand(opts))
	cmd.AddCommand(NewActionCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}
