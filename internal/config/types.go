package config

// Config is the top-level configuration parsed from .branchflow.yaml.
type Config struct {
	Remote        string         `yaml:"remote"`
	Trunk         string         `yaml:"trunk"` // fallback when the remote HEAD cannot be resolved
	TrackRemote   *bool          `yaml:"track_remote"`
	IntegrateMode string         `yaml:"integrate_mode"`
	BranchTypes   []string       `yaml:"branch_types"`
	Timeouts      Timeouts       `yaml:"timeouts"`
	Policy        PolicyConfig   `yaml:"policy"`
	Setup         SetupConfig    `yaml:"setup"`
	Test          TestConfig     `yaml:"test"`
	EventLog      EventLogConfig `yaml:"event_log"`
}

// Timeouts bound individual tool invocations, as Go duration strings.
type Timeouts struct {
	Git   string `yaml:"git"`
	Setup string `yaml:"setup"`
	Test  string `yaml:"test"`
}

// PolicyConfig tunes the staleness rule.
type PolicyConfig struct {
	StaleBehindCommits int    `yaml:"stale_behind_commits"`
	StaleAfter         string `yaml:"stale_after"`
}

// SetupConfig controls dependency installation.
type SetupConfig struct {
	Skip      bool               `yaml:"skip"`
	Manifests []ManifestOverride `yaml:"manifests"`
}

// ManifestOverride adds a manifest or replaces the commands of a known one.
type ManifestOverride struct {
	File    string `yaml:"file"`
	Group   string `yaml:"group"`
	Install string `yaml:"install"`
	Test    string `yaml:"test"`
	Parser  string `yaml:"parser"`
}

// TestConfig controls the baseline test run.
type TestConfig struct {
	Skip   bool   `yaml:"skip"`
	Parser string `yaml:"parser"` // forces a parser for every test command
}

// EventLogConfig points at the optional Postgres step-event log.
type EventLogConfig struct {
	DatabaseURL string `yaml:"database_url"`
}
