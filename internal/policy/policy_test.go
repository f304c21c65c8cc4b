package policy

import (
	"errors"
	"testing"
	"time"
)

func TestValidateBranchName(t *testing.T) {
	tests := []struct {
		name  string
		valid bool
	}{
		{"feature/login-flow", true},
		{"bugfix/issue-42", true},
		{"fix/null_deref", true},
		{"hotfix/v1.2.3", true},
		{"experiment/new-parser", true},
		{"spike/grpc", true},
		{"docs/readme", true},
		{"refactor/store/split", true},
		{"bad name", false},
		{"feature", false},
		{"feature/", false},
		{"chore/cleanup", false},
		{"Feature/login", false},
		{"feature/Login", false},
		{"feature/-leading", false},
		{"feature/a..b", false},
		{"feature/thing.lock", false},
		{"feature/trailing.", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBranchName(tt.name)
			if tt.valid && err != nil {
				t.Errorf("expected %q to be valid, got %v", tt.name, err)
			}
			if !tt.valid {
				if err == nil {
					t.Errorf("expected %q to be rejected", tt.name)
				} else if !errors.Is(err, ErrInvalidName) {
					t.Errorf("error should wrap ErrInvalidName, got %v", err)
				}
			}
		})
	}
}

func TestNaming_CustomTypes(t *testing.T) {
	n := NewNaming([]string{"feat", "chore"})
	if err := n.Validate("chore/deps"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := n.Validate("feature/x"); err == nil {
		t.Error("feature should not be allowed with custom types")
	}
	if got := n.Types(); len(got) != 2 || got[0] != "feat" {
		t.Errorf("Types() = %v", got)
	}
}

func TestClassifyTrunkSync(t *testing.T) {
	tests := []struct {
		ahead, behind int
		want          SyncAction
	}{
		{0, 0, SyncNone},
		{0, 3, SyncFastForward},
		{1, 0, SyncConflict},
		{2, 4, SyncConflict},
	}
	for _, tt := range tests {
		if got := ClassifyTrunkSync(tt.ahead, tt.behind); got != tt.want {
			t.Errorf("ClassifyTrunkSync(%d, %d) = %s, want %s", tt.ahead, tt.behind, got, tt.want)
		}
	}
}

func TestClassifyResync(t *testing.T) {
	if got := ClassifyResync(5, 0); got != SyncNone {
		t.Errorf("branch-only commits should need nothing, got %s", got)
	}
	if got := ClassifyResync(0, 1); got != SyncDecision {
		t.Errorf("any trunk advance needs a decision, got %s", got)
	}
}

func TestStaleness(t *testing.T) {
	s := DefaultStaleness()
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)

	if stale, _ := s.Stale(3, now.Add(-time.Hour), now); stale {
		t.Error("fresh branch should not be stale")
	}
	if stale, reason := s.Stale(25, now, now); !stale || reason == "" {
		t.Error("25 commits behind should be stale")
	}
	if stale, _ := s.Stale(0, now.Add(-48*time.Hour), now); !stale {
		t.Error("48h since sync should be stale")
	}
	if stale, _ := s.Stale(0, time.Time{}, now); stale {
		t.Error("zero sync time should not be stale by age")
	}
}

func TestForcePushArgs(t *testing.T) {
	args, err := ForcePushArgs("origin", "feature/x", "deadbeef")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"push", "--force-with-lease=feature/x:deadbeef", "origin", "feature/x"}
	for i := range want {
		if args[i] != want[i] {
			t.Fatalf("args = %v, want %v", args, want)
		}
	}

	if _, err := ForcePushArgs("origin", "feature/x", ""); !errors.Is(err, ErrUnconditionalForce) {
		t.Errorf("expected ErrUnconditionalForce, got %v", err)
	}
}
