package git

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/lucasnoah/branchflow/internal/policy"
	"github.com/lucasnoah/branchflow/internal/tool"
)

// Scope says whether a ref lives in the local or remote namespace.
type Scope string

const (
	ScopeLocal  Scope = "local"
	ScopeRemote Scope = "remote"
)

// BranchRef is a view onto a branch in git's ref namespace. It is re-queried
// rather than cached when divergence matters.
type BranchRef struct {
	Name     string `json:"name"`
	Scope    Scope  `json:"scope"`
	Upstream string `json:"upstream,omitempty"`
}

// DivergenceReport counts the commits each side has that the other lacks.
type DivergenceReport struct {
	Left   string `json:"left"`
	Right  string `json:"right"`
	Ahead  int    `json:"ahead"`  // commits on Left missing from Right
	Behind int    `json:"behind"` // commits on Right missing from Left
}

// StatusEntry is one line of `git status --porcelain`.
type StatusEntry struct {
	Code string `json:"code"`
	Path string `json:"path"`
}

// ConflictError reports a rebase or merge that stopped on conflicting paths.
type ConflictError struct {
	Op    string // "rebase" or "merge"
	Paths []string
	Err   error
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s stopped on conflicts in %s", e.Op, strings.Join(e.Paths, ", "))
}

func (e *ConflictError) Unwrap() error {
	return e.Err
}

// Client runs git against one working directory. Every call goes through the
// tool adapter.
type Client struct {
	tool    *tool.Adapter
	dir     string
	remote  string
	timeout time.Duration
}

// NewClient creates a Client bound to dir and the named remote.
func NewClient(adapter *tool.Adapter, dir string, remote string, timeout time.Duration) *Client {
	if remote == "" {
		remote = "origin"
	}
	return &Client{tool: adapter, dir: dir, remote: remote, timeout: timeout}
}

// Dir returns the working directory the client operates on.
func (c *Client) Dir() string {
	return c.dir
}

// Remote returns the remote name.
func (c *Client) Remote() string {
	return c.remote
}

// RemoteRef returns "<remote>/<branch>".
func (c *Client) RemoteRef(branch string) string {
	return c.remote + "/" + branch
}

func (c *Client) invoke(ctx context.Context, readOnly bool, args ...string) (string, error) {
	res, err := c.tool.Invoke(ctx, tool.Invocation{
		Tool:     "git",
		Args:     args,
		Dir:      c.dir,
		Timeout:  c.timeout,
		ReadOnly: readOnly,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(res.Stdout), nil
}

func (c *Client) query(ctx context.Context, args ...string) (string, error) {
	return c.invoke(ctx, true, args...)
}

func (c *Client) mutate(ctx context.Context, args ...string) error {
	_, err := c.invoke(ctx, false, args...)
	return err
}

// exitCode extracts the exit status from an adapter error, or -1.
func exitCode(err error) int {
	var ie *tool.InvocationError
	if errors.As(err, &ie) {
		return ie.ExitCode
	}
	return -1
}

// Status returns the working tree's pending changes.
func (c *Client) Status(ctx context.Context) ([]StatusEntry, error) {
	res, err := c.tool.Invoke(ctx, tool.Invocation{
		Tool:     "git",
		Args:     []string{"status", "--porcelain"},
		Dir:      c.dir,
		Timeout:  c.timeout,
		ReadOnly: true,
	})
	if err != nil {
		return nil, err
	}
	return parsePorcelain(res.Stdout), nil
}

func parsePorcelain(out string) []StatusEntry {
	var entries []StatusEntry
	for _, line := range strings.Split(out, "\n") {
		if len(strings.TrimSpace(line)) == 0 {
			continue
		}
		if len(line) < 4 {
			entries = append(entries, StatusEntry{Code: strings.TrimSpace(line)})
			continue
		}
		entries = append(entries, StatusEntry{Code: strings.TrimSpace(line[:2]), Path: line[3:]})
	}
	return entries
}

// HasRemote reports whether the configured remote exists.
func (c *Client) HasRemote(ctx context.Context) (bool, error) {
	out, err := c.query(ctx, "remote")
	if err != nil {
		return false, err
	}
	for _, r := range strings.Fields(out) {
		if r == c.remote {
			return true, nil
		}
	}
	return false, nil
}

// DefaultBranch resolves the trunk name from the remote's HEAD pointer.
func (c *Client) DefaultBranch(ctx context.Context) (string, error) {
	out, err := c.query(ctx, "symbolic-ref", "--short", "refs/remotes/"+c.remote+"/HEAD")
	if err != nil {
		return "", fmt.Errorf("resolve %s/HEAD: %w", c.remote, err)
	}
	return strings.TrimPrefix(out, c.remote+"/"), nil
}

// CurrentBranch returns the checked-out branch name.
func (c *Client) CurrentBranch(ctx context.Context) (string, error) {
	return c.query(ctx, "rev-parse", "--abbrev-ref", "HEAD")
}

// RevParse resolves ref to a commit ID.
func (c *Client) RevParse(ctx context.Context, ref string) (string, error) {
	return c.query(ctx, "rev-parse", "--verify", ref+"^{commit}")
}

// GitDir returns the absolute path of the repository's .git directory.
func (c *Client) GitDir(ctx context.Context) (string, error) {
	out, err := c.query(ctx, "rev-parse", "--git-common-dir")
	if err != nil {
		return "", err
	}
	if !filepath.IsAbs(out) {
		out = filepath.Join(c.dir, out)
	}
	return out, nil
}

// CheckRefFormat asks git whether name is a legal branch name.
func (c *Client) CheckRefFormat(ctx context.Context, name string) error {
	_, err := c.query(ctx, "check-ref-format", "--branch", name)
	return err
}

// LocalBranchExists looks up refs/heads/<name>.
func (c *Client) LocalBranchExists(ctx context.Context, name string) (bool, error) {
	_, err := c.query(ctx, "rev-parse", "--verify", "--quiet", "refs/heads/"+name)
	if err == nil {
		return true, nil
	}
	if exitCode(err) == 1 {
		return false, nil
	}
	return false, err
}

// RemoteBranchSHA returns the remote tip of name, or "" when the remote has no such branch.
func (c *Client) RemoteBranchSHA(ctx context.Context, name string) (string, error) {
	out, err := c.query(ctx, "ls-remote", "--heads", c.remote, "refs/heads/"+name)
	if err != nil {
		return "", err
	}
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 2 && fields[1] == "refs/heads/"+name {
			return fields[0], nil
		}
	}
	return "", nil
}

// RemoteBranchExists is a dry lookup on the remote.
func (c *Client) RemoteBranchExists(ctx context.Context, name string) (bool, error) {
	sha, err := c.RemoteBranchSHA(ctx, name)
	return sha != "", err
}

// Fetch updates remote-tracking refs.
func (c *Client) Fetch(ctx context.Context) error {
	_, err := c.query(ctx, "fetch", "--prune", c.remote)
	return err
}

// Divergence counts commits on left not on right (ahead) and on right not on left (behind).
func (c *Client) Divergence(ctx context.Context, left, right string) (*DivergenceReport, error) {
	out, err := c.query(ctx, "rev-list", "--left-right", "--count", left+"..."+right)
	if err != nil {
		return nil, fmt.Errorf("divergence %s...%s: %w", left, right, err)
	}
	fields := strings.Fields(out)
	if len(fields) != 2 {
		return nil, fmt.Errorf("divergence %s...%s: unexpected output %q", left, right, out)
	}
	ahead, err := strconv.Atoi(fields[0])
	if err != nil {
		return nil, fmt.Errorf("parse ahead count %q: %w", fields[0], err)
	}
	behind, err := strconv.Atoi(fields[1])
	if err != nil {
		return nil, fmt.Errorf("parse behind count %q: %w", fields[1], err)
	}
	return &DivergenceReport{Left: left, Right: right, Ahead: ahead, Behind: behind}, nil
}

// IsAncestor reports whether ancestor is reachable from descendant.
func (c *Client) IsAncestor(ctx context.Context, ancestor, descendant string) (bool, error) {
	_, err := c.query(ctx, "merge-base", "--is-ancestor", ancestor, descendant)
	if err == nil {
		return true, nil
	}
	if exitCode(err) == 1 {
		return false, nil
	}
	return false, err
}

// ConflictedPaths lists unmerged paths.
func (c *Client) ConflictedPaths(ctx context.Context) ([]string, error) {
	out, err := c.query(ctx, "diff", "--name-only", "--diff-filter=U")
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, p := range strings.Split(out, "\n") {
		if p = strings.TrimSpace(p); p != "" {
			paths = append(paths, p)
		}
	}
	return paths, nil
}

// Checkout switches to ref.
func (c *Client) Checkout(ctx context.Context, ref string) error {
	return c.mutate(ctx, "checkout", ref)
}

// CreateBranch creates name at start and checks it out.
func (c *Client) CreateBranch(ctx context.Context, name, start string) error {
	return c.mutate(ctx, "checkout", "-b", name, start)
}

// CreateTrackingBranch creates a local branch following upstream without checking it out.
func (c *Client) CreateTrackingBranch(ctx context.Context, name, upstream string) error {
	return c.mutate(ctx, "branch", "--track", name, upstream)
}

// MergeFastForward advances the current branch to ref, refusing a real merge.
func (c *Client) MergeFastForward(ctx context.Context, ref string) error {
	return c.mutate(ctx, "merge", "--ff-only", ref)
}

// PullFastForward pulls branch from the remote, refusing a real merge.
func (c *Client) PullFastForward(ctx context.Context, branch string) error {
	return c.mutate(ctx, "pull", "--ff-only", c.remote, branch)
}

// MergeNoFF merges ref with an explicit merge commit.
func (c *Client) MergeNoFF(ctx context.Context, ref string) error {
	return c.conflictAware(ctx, "merge", "merge", "--no-ff", "--no-edit", ref)
}

// Merge merges ref into the current branch, fast-forwarding when possible.
func (c *Client) Merge(ctx context.Context, ref string) error {
	return c.conflictAware(ctx, "merge", "merge", "--no-edit", ref)
}

// Rebase replays the current branch onto onto.
func (c *Client) Rebase(ctx context.Context, onto string) error {
	return c.conflictAware(ctx, "rebase", "rebase", onto)
}

// RebaseContinue resumes a stopped rebase without opening an editor.
func (c *Client) RebaseContinue(ctx context.Context) error {
	return c.conflictAware(ctx, "rebase", "-c", "core.editor=true", "rebase", "--continue")
}

// RebaseAbort restores the branch to its pre-rebase state.
func (c *Client) RebaseAbort(ctx context.Context) error {
	return c.mutate(ctx, "rebase", "--abort")
}

// MergeAbort abandons a conflicted merge.
func (c *Client) MergeAbort(ctx context.Context) error {
	return c.mutate(ctx, "merge", "--abort")
}

// CommitNoEdit concludes a merge with the prepared message.
func (c *Client) CommitNoEdit(ctx context.Context) error {
	return c.conflictAware(ctx, "merge", "commit", "--no-edit")
}

// conflictAware runs a mutating command and converts a stop on conflicts into *ConflictError.
func (c *Client) conflictAware(ctx context.Context, op string, args ...string) error {
	err := c.mutate(ctx, args...)
	if err == nil {
		return nil
	}
	if tool.IsCancelled(err) || tool.IsTimeout(err) {
		return err
	}
	paths, perr := c.ConflictedPaths(ctx)
	if perr != nil || len(paths) == 0 {
		return err
	}
	return &ConflictError{Op: op, Paths: paths, Err: err}
}

// Add stages paths.
func (c *Client) Add(ctx context.Context, paths ...string) error {
	args := append([]string{"add", "--"}, paths...)
	return c.mutate(ctx, args...)
}

// Push pushes branch, optionally recording the upstream.
func (c *Client) Push(ctx context.Context, branch string, setUpstream bool) error {
	args := []string{"push"}
	if setUpstream {
		args = append(args, "--set-upstream")
	}
	args = append(args, c.remote, branch)
	return c.mutate(ctx, args...)
}

// PushWithLease force-pushes branch only if the remote tip is still expectedSHA.
func (c *Client) PushWithLease(ctx context.Context, branch, expectedSHA string) error {
	args, err := policy.ForcePushArgs(c.remote, branch, expectedSHA)
	if err != nil {
		return err
	}
	return c.mutate(ctx, args...)
}

// DeleteLocalBranch deletes a local branch; force uses -D.
func (c *Client) DeleteLocalBranch(ctx context.Context, name string, force bool) error {
	flag := "-d"
	if force {
		flag = "-D"
	}
	return c.mutate(ctx, "branch", flag, name)
}

// DeleteRemoteBranch removes the branch from the remote.
func (c *Client) DeleteRemoteBranch(ctx context.Context, name string) error {
	return c.mutate(ctx, "push", c.remote, "--delete", name)
}

// Stash shelves all pending changes including untracked files.
func (c *Client) Stash(ctx context.Context, message string) error {
	return c.mutate(ctx, "stash", "push", "--include-untracked", "-m", message)
}

// StashPop reapplies and drops the most recent stash entry.
func (c *Client) StashPop(ctx context.Context) error {
	return c.mutate(ctx, "stash", "pop")
}

// CommitAll stages everything and commits it.
func (c *Client) CommitAll(ctx context.Context, message string) error {
	if err := c.mutate(ctx, "add", "-A"); err != nil {
		return err
	}
	return c.mutate(ctx, "commit", "-m", message)
}

// Discard drops tracked modifications and untracked files.
func (c *Client) Discard(ctx context.Context) error {
	if err := c.mutate(ctx, "reset", "--hard", "HEAD"); err != nil {
		return err
	}
	return c.mutate(ctx, "clean", "-fd")
}
