// Package config builds the run configuration once at startup.
//
// Sources, lowest precedence first: defaults, the YAML config file, the
// process environment (after a .env file has been merged into it), and
// finally command-line flags, which the CLI applies on top.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"

	"github.com/roach88/botsync/internal/auth"
	"github.com/roach88/botsync/internal/bot"
	"github.com/roach88/botsync/internal/loader"
	"github.com/roach88/botsync/internal/remote"
)

type (
	// Config holds the settings of one invocation
	Config struct {
		// Credentials never come from the config file
		APIKey    string `yaml:"-"`
		APISecret string `yaml:"-"`

		BaseURL   string        `yaml:"base_url"`
		FlowsDir  string        `yaml:"flows_dir"`
		RulesFile string        `yaml:"rules_file"`
		Timeout   time.Duration `yaml:"timeout"`
		Journal   string        `yaml:"journal"`
		Debug     bool          `yaml:"debug"`

		// CI inputs
		Triggers  Triggers `yaml:"-"`
		TagRef    string   `yaml:"-"` // GITHUB_REF
		EventPath string   `yaml:"-"` // GITHUB_EVENT_PATH, read on demand
	}

	// Triggers are the operations enabled through the CI inputs
	Triggers struct {
		Update         bool
		Build          bool
		CreateSnapshot bool
		DeleteSnapshot bool
	}
)

// Environment variables.
const (
	EnvAPIKey          = "CSML_CLIENT_API_KEY"
	EnvAPISecret       = "CSML_CLIENT_API_SECRET"
	EnvBaseURL         = "CSML_CLIENT_URL"
	EnvDebug           = "DEBUG"
	EnvFlowsDir        = "BOTSYNC_FLOWS_DIR"
	EnvRulesFile       = "BOTSYNC_RULES_FILE"
	EnvJournal         = "BOTSYNC_JOURNAL"
	EnvTimeout         = "BOTSYNC_TIMEOUT"
	EnvSave            = "INPUT_SAVE"
	EnvBuild           = "INPUT_BUILD"
	EnvCreateLabel     = "INPUT_CREATE_LABEL"
	EnvDeleteLabel     = "INPUT_DELETE_LABEL"
	EnvGitHubRef       = "GITHUB_REF"
	EnvGitHubEventPath = "GITHUB_EVENT_PATH"
)

const (
	DefaultConfigFile = "botsync.yaml"
	DefaultDotEnvFile = ".env"
	MaxTimeout        = 10 * time.Minute
)

var (
	ErrInvalidBaseURL = errors.New("invalid base URL")
	ErrInvalidTimeout = errors.New("timeout must be positive")
	ErrTimeoutTooLong = errors.New("timeout too long")
	ErrEmptyFlowsDir  = errors.New("flows directory must not be empty")
	ErrEmptyRulesFile = errors.New("rules file must not be empty")
	ErrEventPayload   = errors.New("cannot read CI event payload")
)

// NewDefaultConfig creates a configuration with the production endpoint and
// the conventional repository layout
func NewDefaultConfig() *Config {
	return &Config{
		BaseURL:   remote.DefaultBaseURL,
		FlowsDir:  loader.DefaultFlowsDir,
		RulesFile: loader.DefaultRulesFile,
		Timeout:   remote.DefaultTimeout,
	}
}

// Load builds a configuration from defaults, the config file at path, a
// .env file in the working directory, and the environment. An empty path
// means DefaultConfigFile, which may be absent; an explicit path must exist.
func Load(path string) (*Config, error) {
	if err := LoadDotEnv(DefaultDotEnvFile); err != nil {
		return nil, err
	}

	cfg := NewDefaultConfig()
	required := path != ""
	if path == "" {
		path = DefaultConfigFile
	}
	if err := cfg.LoadFile(path, required); err != nil {
		return nil, err
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDotEnv merges a .env file into the process environment. Variables
// already set are never overridden. A missing file is not an error.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// LoadFile overlays the YAML file at path. Unknown keys are rejected.
func (c *Config) LoadFile(path string, required bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if !required && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config %s: %w", path, err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// LoadFromEnv overlays values from environment variables. Returns an error
// if a value cannot be parsed. The CI event payload is not read here.
func (c *Config) LoadFromEnv() error {
	if v := os.Getenv(EnvAPIKey); v != "" {
		c.APIKey = v
	}
	if v := os.Getenv(EnvAPISecret); v != "" {
		c.APISecret = v
	}
	if v := os.Getenv(EnvBaseURL); v != "" {
		c.BaseURL = v
	}
	if os.Getenv(EnvDebug) != "" {
		c.Debug = true
	}
	if v := os.Getenv(EnvFlowsDir); v != "" {
		c.FlowsDir = v
	}
	if v := os.Getenv(EnvRulesFile); v != "" {
		c.RulesFile = v
	}
	if v := os.Getenv(EnvJournal); v != "" {
		c.Journal = v
	}
	if v := os.Getenv(EnvTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %q", EnvTimeout, v)
		}
		c.Timeout = d
	}

	c.Triggers = Triggers{
		Update:         ParseTrigger(os.Getenv(EnvSave)),
		Build:          ParseTrigger(os.Getenv(EnvBuild)),
		CreateSnapshot: ParseTrigger(os.Getenv(EnvCreateLabel)),
		DeleteSnapshot: ParseTrigger(os.Getenv(EnvDeleteLabel)),
	}

	c.TagRef = os.Getenv(EnvGitHubRef)
	c.EventPath = os.Getenv(EnvGitHubEventPath)
	return nil
}

// tagRef prefers the ref of the CI event payload and falls back to TagRef.
func (c *Config) tagRef() (string, error) {
	if c.EventPath == "" {
		return c.TagRef, nil
	}
	data, err := os.ReadFile(c.EventPath)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEventPayload, err)
	}
	if !gjson.ValidBytes(data) {
		return "", fmt.Errorf("%w: %s is not valid JSON", ErrEventPayload, c.EventPath)
	}
	if ref := gjson.GetBytes(data, "ref"); ref.Type == gjson.String && ref.Str != "" {
		return ref.Str, nil
	}
	return c.TagRef, nil
}

// ParseTrigger reports whether a CI input enables its operation: any
// non-empty value except false, 0 and no (case-insensitive).
func ParseTrigger(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "false", "0", "no":
		return false
	}
	return true
}

// Credentials returns the API key pair.
func (c *Config) Credentials() auth.Credentials {
	return auth.Credentials{APIKey: c.APIKey, APISecret: c.APISecret}
}

// SnapshotName derives the snapshot name from the tag reference. The CI
// event payload is read on each call, so only snapshot operations fail on a
// bad payload.
func (c *Config) SnapshotName() (string, error) {
	ref, err := c.tagRef()
	if err != nil {
		return "", err
	}
	return bot.SnapshotNameFromRef(ref), nil
}

// Validate checks that all configuration values are valid. Credentials are
// checked separately, only by commands that reach the remote.
func (c *Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidBaseURL, c.BaseURL)
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.Timeout > MaxTimeout {
		return fmt.Errorf("%w: %s > %s", ErrTimeoutTooLong, c.Timeout, MaxTimeout)
	}
	if c.FlowsDir == "" {
		return ErrEmptyFlowsDir
	}
	if c.RulesFile == "" {
		return ErrEmptyRulesFile
	}
	return nil
}
