// Package policy holds the rules that are decisions rather than mechanism:
// branch naming, how much divergence is acceptable, and how force pushes are
// allowed to happen.
package policy

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// DefaultBranchTypes is the enumerated set of branch type prefixes.
var DefaultBranchTypes = []string{
	"feature", "bugfix", "fix", "hotfix", "experiment", "spike", "docs", "refactor",
}

// Defaults for the staleness rule. A branch this far behind trunk, or this
// long since its last sync, is reported as needing a resync.
const (
	DefaultStaleBehindCommits = 20
	DefaultStaleAfter         = 24 * time.Hour
)

// ErrInvalidName is wrapped by every naming violation.
var ErrInvalidName = errors.New("invalid branch name")

// slugPattern allows lowercase words separated by '-', '_', '.', with nested '/' segments.
var slugPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]*(/[a-z0-9][a-z0-9._-]*)*$`)

// Naming validates branch names against the "<type>/<slug>" convention.
type Naming struct {
	types map[string]bool
	order []string
}

// NewNaming builds a Naming over the given types; empty means DefaultBranchTypes.
func NewNaming(types []string) *Naming {
	if len(types) == 0 {
		types = DefaultBranchTypes
	}
	n := &Naming{types: make(map[string]bool, len(types))}
	for _, t := range types {
		n.types[t] = true
		n.order = append(n.order, t)
	}
	return n
}

// Types returns the allowed type prefixes in configuration order.
func (n *Naming) Types() []string {
	return append([]string(nil), n.order...)
}

// Validate checks name and returns an error wrapping ErrInvalidName on failure.
func (n *Naming) Validate(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty", ErrInvalidName)
	}
	if strings.ContainsAny(name, " \t\n") {
		return fmt.Errorf("%w: %q contains whitespace", ErrInvalidName, name)
	}
	typ, slug, ok := strings.Cut(name, "/")
	if !ok {
		return fmt.Errorf("%w: %q must have the form <type>/<slug>", ErrInvalidName, name)
	}
	if !n.types[typ] {
		return fmt.Errorf("%w: type %q is not one of %s", ErrInvalidName, typ, strings.Join(n.order, ", "))
	}
	if !slugPattern.MatchString(slug) {
		return fmt.Errorf("%w: slug %q must be lowercase letters, digits, '.', '_' or '-'", ErrInvalidName, slug)
	}
	if strings.Contains(slug, "..") || strings.HasSuffix(slug, ".lock") || strings.HasSuffix(slug, ".") {
		return fmt.Errorf("%w: slug %q is not a valid git ref component", ErrInvalidName, slug)
	}
	return nil
}

// ValidateBranchName checks name against the default type set.
func ValidateBranchName(name string) error {
	return NewNaming(nil).Validate(name)
}

// SyncAction is the verdict on a divergence between two refs.
type SyncAction string

const (
	SyncNone        SyncAction = "none"         // nothing to do
	SyncFastForward SyncAction = "fast_forward" // safe to advance
	SyncDecision    SyncAction = "decision"     // caller must pick rebase or merge
	SyncConflict    SyncAction = "conflict"     // cannot proceed without destructive resolution
)

// ClassifyTrunkSync decides what to do with local trunk given how it relates
// to the remote trunk. ahead counts local-only commits; behind counts remote-only.
func ClassifyTrunkSync(ahead, behind int) SyncAction {
	switch {
	case ahead > 0:
		return SyncConflict
	case behind == 0:
		return SyncNone
	default:
		return SyncFastForward
	}
}

// ClassifyResync decides what a feature branch needs given its divergence from
// trunk. Commits only on the branch are expected; any trunk commits missing
// from the branch need a decision.
func ClassifyResync(ahead, behind int) SyncAction {
	if behind == 0 {
		return SyncNone
	}
	return SyncDecision
}

// Staleness configures when a branch is flagged as overdue for a resync.
type Staleness struct {
	BehindCommits int
	After         time.Duration
}

// DefaultStaleness returns the documented defaults.
func DefaultStaleness() Staleness {
	return Staleness{BehindCommits: DefaultStaleBehindCommits, After: DefaultStaleAfter}
}

// Stale reports whether a branch behind trunk by behind commits and last
// synced at lastSync should be resynced. A zero lastSync is never stale by age.
func (s Staleness) Stale(behind int, lastSync, now time.Time) (bool, string) {
	if s.BehindCommits > 0 && behind >= s.BehindCommits {
		return true, fmt.Sprintf("%d commits behind trunk (threshold %d)", behind, s.BehindCommits)
	}
	if s.After > 0 && !lastSync.IsZero() && now.Sub(lastSync) >= s.After {
		return true, fmt.Sprintf("last synced %s ago (threshold %s)", now.Sub(lastSync).Round(time.Minute), s.After)
	}
	return false, ""
}

// ErrUnconditionalForce is returned when a force push lacks an expected remote tip.
var ErrUnconditionalForce = errors.New("refusing unconditional force push: expected remote tip required")

// ForcePushArgs builds git arguments for a lease-protected force push. The push
// fails on the remote if branch has moved away from expectedSHA.
func ForcePushArgs(remote, branch, expectedSHA string) ([]string, error) {
	if expectedSHA == "" {
		return nil, ErrUnconditionalForce
	}
	return []string{
		"push",
		fmt.Sprintf("--force-with-lease=%s:%s", branch, expectedSHA),
		remote,
		branch,
	}, nil
}
