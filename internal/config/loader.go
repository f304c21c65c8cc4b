package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lucasnoah/branchflow/internal/manifest"
	"github.com/lucasnoah/branchflow/internal/policy"
)

// FileName is the per-repository config file.
const FileName = ".branchflow.yaml"

// DatabaseURLEnv overrides event_log.database_url.
const DatabaseURLEnv = "BRANCHFLOW_DATABASE_URL"

const (
	defaultGitTimeout   = 2 * time.Minute
	defaultSetupTimeout = 10 * time.Minute
	defaultTestTimeout  = 15 * time.Minute
)

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load reads and parses a configuration from the given YAML file path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// LoadDefault searches for a config and loads the first one found, falling
// back to Default(). Search order: <repoDir>/.branchflow.yaml,
// ~/.config/branchflow/config.yaml. The second return value is the path used,
// or "" for defaults.
func LoadDefault(repoDir string) (*Config, string, error) {
	var candidates []string
	if repoDir != "" {
		candidates = append(candidates, filepath.Join(repoDir, FileName))
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "branchflow", "config.yaml"))
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			cfg, err := Load(path)
			return cfg, path, err
		}
	}
	return Default(), "", nil
}

// applyDefaults fills unset values and applies environment overrides.
func applyDefaults(cfg *Config) {
	if cfg.Remote == "" {
		cfg.Remote = "origin"
	}
	if cfg.IntegrateMode == "" {
		cfg.IntegrateMode = "pr"
	}
	if len(cfg.BranchTypes) == 0 {
		cfg.BranchTypes = append([]string(nil), policy.DefaultBranchTypes...)
	}
	if cfg.TrackRemote == nil {
		track := true
		cfg.TrackRemote = &track
	}
	if cfg.Timeouts.Git == "" {
		cfg.Timeouts.Git = defaultGitTimeout.String()
	}
	if cfg.Timeouts.Setup == "" {
		cfg.Timeouts.Setup = defaultSetupTimeout.String()
	}
	if cfg.Timeouts.Test == "" {
		cfg.Timeouts.Test = defaultTestTimeout.String()
	}
	if cfg.Policy.StaleBehindCommits == 0 {
		cfg.Policy.StaleBehindCommits = policy.DefaultStaleBehindCommits
	}
	if cfg.Policy.StaleAfter == "" {
		cfg.Policy.StaleAfter = policy.DefaultStaleAfter.String()
	}
	if url := os.Getenv(DatabaseURLEnv); url != "" {
		cfg.EventLog.DatabaseURL = url
	}
}

func durationOr(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// GitTimeout bounds each git invocation.
func (c *Config) GitTimeout() time.Duration {
	return durationOr(c.Timeouts.Git, defaultGitTimeout)
}

// SetupTimeout bounds each dependency-install invocation.
func (c *Config) SetupTimeout() time.Duration {
	return durationOr(c.Timeouts.Setup, defaultSetupTimeout)
}

// TestTimeout bounds each test invocation.
func (c *Config) TestTimeout() time.Duration {
	return durationOr(c.Timeouts.Test, defaultTestTimeout)
}

// ShouldTrackRemote reports whether new branches are pushed with an upstream.
func (c *Config) ShouldTrackRemote() bool {
	return c.TrackRemote == nil || *c.TrackRemote
}

// Staleness returns the configured staleness policy.
func (c *Config) Staleness() policy.Staleness {
	return policy.Staleness{
		BehindCommits: c.Policy.StaleBehindCommits,
		After:         durationOr(c.Policy.StaleAfter, policy.DefaultStaleAfter),
	}
}

// ManifestTable builds the manifest lookup with configured overrides applied.
func (c *Config) ManifestTable() (*manifest.Table, error) {
	var overrides []manifest.Entry
	for _, m := range c.Setup.Manifests {
		install, err := manifest.ParseCommand(m.Install)
		if err != nil {
			return nil, fmt.Errorf("manifest %s install: %w", m.File, err)
		}
		test, err := manifest.ParseCommand(m.Test)
		if err != nil {
			return nil, fmt.Errorf("manifest %s test: %w", m.File, err)
		}
		overrides = append(overrides, manifest.Entry{
			File:    m.File,
			Group:   m.Group,
			Install: install,
			Test:    test,
			Parser:  m.Parser,
		})
	}
	return manifest.NewTable(overrides), nil
}
