package config

import (
	"fmt"
	"regexp"
	"time"

	"github.com/lucasnoah/branchflow/internal/checks"
	"github.com/lucasnoah/branchflow/internal/manifest"
)

// ValidationError represents a single validation issue with a config.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

var integrateModes = map[string]bool{
	"pr":    true,
	"merge": true,
}

var branchTypePattern = regexp.MustCompile(`^[a-z][a-z0-9-]*$`)

// Validate checks a Config for structural and semantic errors.
// It returns a slice of all validation errors found (empty if valid).
func Validate(cfg *Config) []ValidationError {
	var errs []ValidationError

	if cfg.Remote == "" {
		errs = append(errs, ValidationError{Field: "remote", Message: "is required"})
	}
	if !integrateModes[cfg.IntegrateMode] {
		errs = append(errs, ValidationError{
			Field:   "integrate_mode",
			Message: fmt.Sprintf("must be pr or merge, got %q", cfg.IntegrateMode),
		})
	}

	seen := make(map[string]bool)
	for i, t := range cfg.BranchTypes {
		field := fmt.Sprintf("branch_types[%d]", i)
		if !branchTypePattern.MatchString(t) {
			errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf("invalid branch type %q", t)})
		}
		if seen[t] {
			errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf("duplicate branch type %q", t)})
		}
		seen[t] = true
	}

	for _, d := range []struct {
		field string
		value string
	}{
		{"timeouts.git", cfg.Timeouts.Git},
		{"timeouts.setup", cfg.Timeouts.Setup},
		{"timeouts.test", cfg.Timeouts.Test},
		{"policy.stale_after", cfg.Policy.StaleAfter},
	} {
		v, err := time.ParseDuration(d.value)
		if err != nil {
			errs = append(errs, ValidationError{Field: d.field, Message: fmt.Sprintf("invalid duration %q", d.value)})
			continue
		}
		if v <= 0 {
			errs = append(errs, ValidationError{Field: d.field, Message: "must be positive"})
		}
	}

	if cfg.Policy.StaleBehindCommits < 0 {
		errs = append(errs, ValidationError{Field: "policy.stale_behind_commits", Message: "must not be negative"})
	}

	if cfg.Test.Parser != "" && !checks.Known(cfg.Test.Parser) {
		errs = append(errs, ValidationError{Field: "test.parser", Message: fmt.Sprintf("unrecognized parser %q", cfg.Test.Parser)})
	}

	for i, m := range cfg.Setup.Manifests {
		prefix := fmt.Sprintf("setup.manifests[%d]", i)
		if m.File == "" {
			errs = append(errs, ValidationError{Field: prefix + ".file", Message: "is required"})
		}
		if m.Install == "" && m.Test == "" && m.Parser == "" && m.Group == "" {
			errs = append(errs, ValidationError{Field: prefix, Message: "must set install, test, parser or group"})
		}
		if m.Parser != "" && !checks.Known(m.Parser) {
			errs = append(errs, ValidationError{Field: prefix + ".parser", Message: fmt.Sprintf("unrecognized parser %q", m.Parser)})
		}
		for _, c := range []struct {
			field string
			line  string
		}{
			{".install", m.Install},
			{".test", m.Test},
		} {
			if _, err := manifest.ParseCommand(c.line); err != nil {
				errs = append(errs, ValidationError{Field: prefix + c.field, Message: err.Error()})
			}
		}
	}

	return errs
}
