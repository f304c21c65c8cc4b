package git

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/lucasnoah/branchflow/internal/tool"
)

type mockGit struct {
	calls   []gitCall
	results []mockResult
	idx     int
}

type gitCall struct {
	Dir  string
	Args []string
}

type mockResult struct {
	Output   string
	Stderr   string
	ExitCode int
}

func (m *mockGit) Run(ctx context.Context, dir string, env []string, name string, args ...string) (string, string, int, error) {
	m.calls = append(m.calls, gitCall{Dir: dir, Args: args})
	if m.idx >= len(m.results) {
		return "", "", 0, nil
	}
	r := m.results[m.idx]
	m.idx++
	return r.Output, r.Stderr, r.ExitCode, nil
}

func newTestClient(results ...mockResult) (*Client, *mockGit) {
	m := &mockGit{results: results}
	return NewClient(tool.NewAdapter(m), "/repo", "origin", 0), m
}

func assertArgs(t *testing.T, got []string, want ...string) {
	t.Helper()
	if strings.Join(got, " ") != strings.Join(want, " ") {
		t.Errorf("args = %v, want %v", got, want)
	}
}

func TestStatus_ParsesPorcelain(t *testing.T) {
	c, m := newTestClient(mockResult{Output: " M main.go\n?? notes.txt\nA  new.go\n"})

	entries, err := c.Status(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d: %+v", len(entries), entries)
	}
	if entries[0].Code != "M" || entries[0].Path != "main.go" {
		t.Errorf("entry 0 = %+v", entries[0])
	}
	if entries[1].Code != "??" || entries[1].Path != "notes.txt" {
		t.Errorf("entry 1 = %+v", entries[1])
	}
	assertArgs(t, m.calls[0].Args, "status", "--porcelain")
	if m.calls[0].Dir != "/repo" {
		t.Errorf("dir = %q, want /repo", m.calls[0].Dir)
	}
}

func TestStatus_Clean(t *testing.T) {
	c, _ := newTestClient(mockResult{Output: ""})
	entries, err := c.Status(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected no entries, got %+v", entries)
	}
}

func TestDefaultBranch_StripsRemote(t *testing.T) {
	c, m := newTestClient(mockResult{Output: "origin/develop\n"})
	got, err := c.DefaultBranch(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "develop" {
		t.Errorf("DefaultBranch = %q, want develop", got)
	}
	assertArgs(t, m.calls[0].Args, "symbolic-ref", "--short", "refs/remotes/origin/HEAD")
}

func TestDivergence(t *testing.T) {
	c, m := newTestClient(mockResult{Output: "2\t5\n"})
	d, err := c.Divergence(context.Background(), "main", "origin/main")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Ahead != 2 || d.Behind != 5 {
		t.Errorf("divergence = %+v, want ahead 2 behind 5", d)
	}
	assertArgs(t, m.calls[0].Args, "rev-list", "--left-right", "--count", "main...origin/main")
}

func TestDivergence_BadOutput(t *testing.T) {
	c, _ := newTestClient(mockResult{Output: "garbage"})
	if _, err := c.Divergence(context.Background(), "a", "b"); err == nil {
		t.Error("expected error for unparseable output")
	}
}

func TestLocalBranchExists(t *testing.T) {
	tests := []struct {
		name     string
		exitCode int
		want     bool
		wantErr  bool
	}{
		{"exists", 0, true, false},
		{"missing", 1, false, false},
		{"broken repo", 128, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(mockResult{ExitCode: tt.exitCode})
			got, err := c.LocalBranchExists(context.Background(), "feature/x")
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRemoteBranchSHA(t *testing.T) {
	c, m := newTestClient(mockResult{Output: "abc123\trefs/heads/feature/x\n"})
	sha, err := c.RemoteBranchSHA(context.Background(), "feature/x")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sha != "abc123" {
		t.Errorf("sha = %q", sha)
	}
	assertArgs(t, m.calls[0].Args, "ls-remote", "--heads", "origin", "refs/heads/feature/x")
}

func TestIsAncestor(t *testing.T) {
	c, _ := newTestClient(mockResult{ExitCode: 1})
	ok, err := c.IsAncestor(context.Background(), "feature/x", "origin/main")
	if err != nil || ok {
		t.Errorf("expected (false, nil), got (%v, %v)", ok, err)
	}

	c, _ = newTestClient(mockResult{ExitCode: 0})
	ok, err = c.IsAncestor(context.Background(), "feature/x", "origin/main")
	if err != nil || !ok {
		t.Errorf("expected (true, nil), got (%v, %v)", ok, err)
	}
}

func TestRebase_ConflictReported(t *testing.T) {
	c, m := newTestClient(
		mockResult{Stderr: "CONFLICT (content): Merge conflict in a.go", ExitCode: 1},
		mockResult{Output: "a.go\nb.go\n"},
	)
	err := c.Rebase(context.Background(), "origin/main")
	var ce *ConflictError
	if !errors.As(err, &ce) {
		t.Fatalf("expected *ConflictError, got %v", err)
	}
	if ce.Op != "rebase" || len(ce.Paths) != 2 || ce.Paths[0] != "a.go" {
		t.Errorf("conflict = %+v", ce)
	}
	assertArgs(t, m.calls[1].Args, "diff", "--name-only", "--diff-filter=U")
}

func TestRebase_NonConflictFailure(t *testing.T) {
	c, _ := newTestClient(
		mockResult{Stderr: "fatal: invalid upstream", ExitCode: 128},
		mockResult{Output: ""},
	)
	err := c.Rebase(context.Background(), "nope")
	var ce *ConflictError
	if errors.As(err, &ce) {
		t.Fatal("did not expect a conflict error")
	}
	var ie *tool.InvocationError
	if !errors.As(err, &ie) {
		t.Fatalf("expected invocation error, got %v", err)
	}
}

func TestPushWithLease(t *testing.T) {
	c, m := newTestClient()
	if err := c.PushWithLease(context.Background(), "feature/x", "abc123"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertArgs(t, m.calls[0].Args, "push", "--force-with-lease=feature/x:abc123", "origin", "feature/x")
}

func TestPushWithLease_RequiresExpectedTip(t *testing.T) {
	c, m := newTestClient()
	if err := c.PushWithLease(context.Background(), "feature/x", ""); err == nil {
		t.Fatal("expected refusal without an expected remote tip")
	}
	if len(m.calls) != 0 {
		t.Errorf("no push should run, got %d calls", len(m.calls))
	}
}

func TestDeleteLocalBranch(t *testing.T) {
	c, m := newTestClient(mockResult{}, mockResult{})
	_ = c.DeleteLocalBranch(context.Background(), "feature/x", false)
	_ = c.DeleteLocalBranch(context.Background(), "feature/x", true)
	assertArgs(t, m.calls[0].Args, "branch", "-d", "feature/x")
	assertArgs(t, m.calls[1].Args, "branch", "-D", "feature/x")
}

func TestHasRemote(t *testing.T) {
	c, _ := newTestClient(mockResult{Output: "origin\nupstream\n"})
	ok, err := c.HasRemote(context.Background())
	if err != nil || !ok {
		t.Errorf("expected origin to be found, got (%v, %v)", ok, err)
	}
	c, _ = newTestClient(mockResult{Output: ""})
	ok, _ = c.HasRemote(context.Background())
	if ok {
		t.Error("expected no remote")
	}
}
