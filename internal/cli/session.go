package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/roach88/botsync/internal/auth"
	"github.com/roach88/botsync/internal/config"
	"github.com/roach88/botsync/internal/engine"
	"github.com/roach88/botsync/internal/log"
	"github.com/roach88/botsync/internal/remote"
	"github.com/roach88/botsync/internal/store"
)

// errInvalidConfig marks configuration that could not be loaded or did not
// validate.
var errInvalidConfig = errors.New("invalid configuration")

// errNoJournal is returned by commands that need the journal when none is
// configured.
var errNoJournal = errors.New("no journal configured (set --journal or BOTSYNC_JOURNAL)")

// session is the state shared by the commands that talk to the remote.
type session struct {
	cfg     *config.Config
	engine  *engine.Engine
	journal *store.Store
}

// loadConfig builds the configuration and applies the explicitly set
// global flags on top of it.
func loadConfig(cmd *cobra.Command, opts *RootOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errInvalidConfig, err)
	}

	flags := cmd.Flags()
	if flags.Changed("base-url") {
		cfg.BaseURL = opts.BaseURL
	}
	if flags.Changed("flows-dir") {
		cfg.FlowsDir = opts.FlowsDir
	}
	if flags.Changed("rules-file") {
		cfg.RulesFile = opts.RulesFile
	}
	if flags.Changed("journal") {
		cfg.Journal = opts.Journal
	}
	if flags.Changed("timeout") {
		cfg.Timeout = opts.Timeout
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", errInvalidConfig, err)
	}

	if cfg.Debug && !opts.Verbose {
		slog.SetDefault(log.New(cmd.ErrOrStderr(), true))
	}
	return cfg, nil
}

// openJournal opens the configured journal, or returns nil when the
// journal is disabled.
func openJournal(cfg *config.Config) (*store.Store, error) {
	if cfg.Journal == "" {
		return nil, nil
	}
	st, err := store.Open(cfg.Journal)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	slog.Debug("journal ready", log.Path(cfg.Journal))
	return st, nil
}

// openSession loads the configuration and wires the signer, the remote
// client, the optional journal and the engine. Missing credentials fail here,
// before any local or remote work.
func openSession(cmd *cobra.Command, opts *RootOptions) (*session, error) {
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return nil, err
	}

	signer, err := auth.NewSigner(cfg.Credentials(), nil)
	if err != nil {
		return nil, err
	}
	client := remote.New(cfg.BaseURL, signer, &http.Client{Timeout: cfg.Timeout})

	engOpts := []engine.Option{
		engine.WithFlowsDir(cfg.FlowsDir),
		engine.WithRulesFile(cfg.RulesFile),
	}
	journal, err := openJournal(cfg)
	if err != nil {
		return nil, err
	}
	if journal != nil {
		engOpts = append(engOpts, engine.WithJournal(journal))
	}

	slog.Debug("session ready", slog.String("base_url", client.BaseURL()))
	return &session{
		cfg:     cfg,
		engine:  engine.New(client, engOpts...),
		journal: journal,
	}, nil
}

func (s *session) Close() {
	if s.journal == nil {
		return
	}
	if err := s.journal.Close(); err != nil {
		slog.Error("error closing journal", log.Error(err))
	}
}
