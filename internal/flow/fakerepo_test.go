package flow

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lucasnoah/branchflow/internal/git"
	"github.com/lucasnoah/branchflow/internal/manifest"
	"github.com/lucasnoah/branchflow/internal/tool"
)

// toolResp is a canned response for a non-git command, keyed by the full
// command line or by the tool name.
type toolResp struct {
	stdout string
	stderr string
	exit   int
	hang   bool
}

// fakeRepo simulates just enough of git to drive the engine. Divergence and
// ancestry are table-driven rather than computed from a commit graph.
type fakeRepo struct {
	mu    sync.Mutex
	calls []string

	remoteName string
	hasRemote  bool
	remoteHead string

	local    map[string]string // refs/heads
	remote   map[string]string // branches on the remote
	tracking map[string]string // refs/remotes/<remote>
	head     string
	dirty    []string
	stashed  [][]string

	counts    map[string][2]int // "left...right" -> ahead, behind
	ancestors map[string]bool   // "a b" -> a is an ancestor of b

	conflicts      []string
	rebaseConflict []string // paths a rebase stops on
	mergeConflict  []string // paths a merge stops on
	pushFails      bool
	fetchFailures  int // transient failures before fetch succeeds
	tools          map[string]toolResp
	onCall         func(call string)
	seq            int
}

func newFakeRepo() *fakeRepo {
	r := &fakeRepo{
		remoteName: "origin",
		hasRemote:  true,
		remoteHead: "main",
		local:      map[string]string{"main": "aaaa1111"},
		remote:     map[string]string{"main": "aaaa1111"},
		tracking:   map[string]string{},
		head:       "main",
		counts:     map[string][2]int{},
		ancestors:  map[string]bool{},
		tools:      map[string]toolResp{},
	}
	return r
}

func (r *fakeRepo) Run(ctx context.Context, dir string, env []string, name string, args ...string) (string, string, int, error) {
	call := strings.TrimSpace(name + " " + strings.Join(args, " "))

	r.mu.Lock()
	r.calls = append(r.calls, call)
	hook := r.onCall
	r.mu.Unlock()
	if hook != nil {
		hook(call)
	}

	if name != "git" {
		r.mu.Lock()
		resp, ok := r.tools[call]
		if !ok {
			resp, ok = r.tools[name]
		}
		r.mu.Unlock()
		if !ok {
			return "ok", "", 0, nil
		}
		if resp.hang {
			<-ctx.Done()
			return "", "", -1, ctx.Err()
		}
		return resp.stdout, resp.stderr, resp.exit, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.git(args)
}

func (r *fakeRepo) nextSHA() string {
	r.seq++
	return fmt.Sprintf("c0ffee%02d", r.seq)
}

func (r *fakeRepo) resolve(ref string) (string, bool) {
	if sha, ok := r.local[ref]; ok {
		return sha, true
	}
	if b, ok := strings.CutPrefix(ref, r.remoteName+"/"); ok {
		sha, ok := r.tracking[b]
		return sha, ok
	}
	return "", false
}

func (r *fakeRepo) git(args []string) (string, string, int, error) {
	if len(args) >= 2 && args[0] == "-c" {
		args = args[2:]
	}
	joined := strings.Join(args, " ")
	fatal := func(msg string) (string, string, int, error) { return "", "fatal: " + msg, 128, nil }

	switch args[0] {
	case "status":
		return strings.Join(r.dirty, "\n"), "", 0, nil

	case "remote":
		if r.hasRemote {
			return r.remoteName + "\n", "", 0, nil
		}
		return "", "", 0, nil

	case "symbolic-ref":
		if r.remoteHead == "" {
			return fatal("ref refs/remotes/origin/HEAD is not a symbolic ref")
		}
		return r.remoteName + "/" + r.remoteHead + "\n", "", 0, nil

	case "rev-parse":
		switch {
		case joined == "rev-parse --abbrev-ref HEAD":
			return r.head + "\n", "", 0, nil
		case joined == "rev-parse --git-common-dir":
			return ".git\n", "", 0, nil
		case strings.HasPrefix(joined, "rev-parse --verify --quiet refs/heads/"):
			if sha, ok := r.local[strings.TrimPrefix(args[3], "refs/heads/")]; ok {
				return sha + "\n", "", 0, nil
			}
			return "", "", 1, nil
		case strings.HasPrefix(joined, "rev-parse --verify "):
			ref := strings.TrimSuffix(args[2], "^{commit}")
			if sha, ok := r.resolve(ref); ok {
				return sha + "\n", "", 0, nil
			}
			return fatal("Needed a single revision")
		}

	case "check-ref-format":
		name := args[len(args)-1]
		if strings.ContainsAny(name, " ~^:") || strings.Contains(name, "..") {
			return fatal("'" + name + "' is not a valid branch name")
		}
		return name + "\n", "", 0, nil

	case "ls-remote":
		name := strings.TrimPrefix(args[len(args)-1], "refs/heads/")
		if sha, ok := r.remote[name]; ok {
			return sha + "\trefs/heads/" + name + "\n", "", 0, nil
		}
		return "", "", 0, nil

	case "fetch":
		if r.fetchFailures > 0 {
			r.fetchFailures--
			return "", "fatal: unable to access 'https://example.com/repo.git/': Could not resolve host: example.com", 128, nil
		}
		r.tracking = map[string]string{}
		for b, sha := range r.remote {
			r.tracking[b] = sha
		}
		return "", "", 0, nil

	case "rev-list":
		c := r.counts[args[len(args)-1]]
		return fmt.Sprintf("%d\t%d\n", c[0], c[1]), "", 0, nil

	case "merge-base":
		if r.isAncestor(args[2], args[3]) {
			return "", "", 0, nil
		}
		return "", "", 1, nil

	case "diff":
		return strings.Join(r.conflicts, "\n"), "", 0, nil

	case "checkout":
		if args[1] == "-b" {
			name, start := args[2], args[3]
			if _, exists := r.local[name]; exists {
				return fatal("a branch named '" + name + "' already exists")
			}
			sha, _ := r.resolve(start)
			r.local[name] = sha
			r.head = name
			return "", "Switched to a new branch '" + name + "'", 0, nil
		}
		if _, ok := r.local[args[1]]; !ok {
			return "", "error: pathspec '" + args[1] + "' did not match", 1, nil
		}
		r.head = args[1]
		return "", "", 0, nil

	case "branch":
		switch args[1] {
		case "--track":
			sha, _ := r.resolve(args[3])
			r.local[args[2]] = sha
		case "-d", "-D":
			if r.head == args[2] {
				return "", "error: Cannot delete branch '" + args[2] + "' checked out", 1, nil
			}
			if args[1] == "-d" && !r.isAncestor(args[2], r.head) {
				return "", "error: The branch '" + args[2] + "' is not fully merged.", 1, nil
			}
			delete(r.local, args[2])
		}
		return "", "", 0, nil

	case "merge":
		switch args[1] {
		case "--ff-only":
			sha, _ := r.resolve(args[2])
			r.local[r.head] = sha
			r.counts[r.head+"..."+args[2]] = [2]int{0, 0}
			return "", "", 0, nil
		case "--abort":
			r.conflicts = nil
			return "", "", 0, nil
		case "--no-ff":
			branch := args[len(args)-1]
			if len(r.mergeConflict) > 0 {
				r.conflicts = r.mergeConflict
				return "", "CONFLICT (content): Merge conflict", 1, nil
			}
			r.local[r.head] = r.nextSHA()
			r.ancestors[branch+" "+r.head] = true
			return "", "", 0, nil
		default: // merge --no-edit <ref>
			ref := args[len(args)-1]
			if len(r.mergeConflict) > 0 {
				r.conflicts = r.mergeConflict
				return "", "CONFLICT (content): Merge conflict", 1, nil
			}
			c := r.counts[r.head+"..."+ref]
			r.counts[r.head+"..."+ref] = [2]int{c[0] + 1, 0}
			r.local[r.head] = r.nextSHA()
			return "", "", 0, nil
		}

	case "pull":
		branch := args[len(args)-1]
		r.local[branch] = r.remote[branch]
		return "", "", 0, nil

	case "rebase":
		switch args[1] {
		case "--abort":
			r.conflicts = nil
			return "", "", 0, nil
		case "--continue":
			r.conflicts = nil
			r.local[r.head] = r.nextSHA()
			for k, c := range r.counts {
				if strings.HasPrefix(k, r.head+"...") {
					r.counts[k] = [2]int{c[0], 0}
				}
			}
			return "", "", 0, nil
		}
		if len(r.rebaseConflict) > 0 {
			r.conflicts = r.rebaseConflict
			return "", "CONFLICT (content): Merge conflict in " + r.rebaseConflict[0], 1, nil
		}
		c := r.counts[r.head+"..."+args[1]]
		r.counts[r.head+"..."+args[1]] = [2]int{c[0], 0}
		r.local[r.head] = r.nextSHA()
		return "", "", 0, nil

	case "commit":
		r.dirty = nil
		r.conflicts = nil
		if r.head != "" {
			r.local[r.head] = r.nextSHA()
		}
		return "", "", 0, nil

	case "add":
		return "", "", 0, nil

	case "stash":
		if args[1] == "pop" {
			if len(r.stashed) == 0 {
				return "", "No stash entries found.", 1, nil
			}
			r.dirty = r.stashed[len(r.stashed)-1]
			r.stashed = r.stashed[:len(r.stashed)-1]
			return "", "", 0, nil
		}
		r.stashed = append(r.stashed, r.dirty)
		r.dirty = nil
		return "", "", 0, nil

	case "clean":
		r.dirty = nil
		return "", "", 0, nil

	case "reset":
		r.dirty = nil
		return "", "", 0, nil

	case "push":
		if r.pushFails {
			return "", "! [rejected] (fetch first)\nerror: failed to push some refs", 1, nil
		}
		rest := args[1:]
		if len(rest) == 3 && rest[1] == "--delete" {
			delete(r.remote, rest[2])
			delete(r.tracking, rest[2])
			return "", "", 0, nil
		}
		branch := rest[len(rest)-1]
		if lease, ok := strings.CutPrefix(rest[0], "--force-with-lease="); ok {
			want := strings.TrimPrefix(lease, branch+":")
			if r.remote[branch] != want {
				return "", "! [rejected] (stale info)", 1, nil
			}
		}
		r.remote[branch] = r.local[branch]
		for b := range r.ancestors {
			// a merge into trunk becomes visible on the remote trunk once pushed
			parts := strings.SplitN(b, " ", 2)
			if parts[1] == branch {
				r.ancestors[parts[0]+" "+r.remoteName+"/"+branch] = true
			}
		}
		return "", "", 0, nil
	}

	return "", "git: unsupported command in fake: " + joined, 1, nil
}

// isAncestor looks a up in the ancestry table. A remote-tracking ref at the
// same commit as its local branch shares the local branch's ancestry.
func (r *fakeRepo) isAncestor(a, b string) bool {
	if r.ancestors[a+" "+b] {
		return true
	}
	if name, ok := strings.CutPrefix(a, r.remoteName+"/"); ok {
		sha, tracked := r.tracking[name]
		if tracked && sha == r.local[name] {
			return r.ancestors[name+" "+b]
		}
	}
	return false
}

// Calls returns the recorded command lines.
func (r *fakeRepo) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

// mutatingVerbs are git subcommands that change refs, the index or the tree.
var mutatingVerbs = map[string]bool{
	"checkout": true, "branch": true, "merge": true, "pull": true, "push": true,
	"rebase": true, "commit": true, "add": true, "stash": true, "reset": true, "clean": true,
}

func isMutating(call string) bool {
	fields := strings.Fields(call)
	if len(fields) < 2 || fields[0] != "git" {
		return len(fields) > 0 && fields[0] != "git"
	}
	verb := fields[1]
	if verb == "-c" && len(fields) > 3 {
		verb = fields[3]
	}
	return mutatingVerbs[verb]
}

func mutatingCalls(calls []string) []string {
	var out []string
	for _, c := range calls {
		if isMutating(c) {
			out = append(out, c)
		}
	}
	return out
}

func hasCall(calls []string, prefix string) bool {
	for _, c := range calls {
		if strings.HasPrefix(c, prefix) {
			return true
		}
	}
	return false
}

// newTestEngine wires an engine to repo with a fresh working directory.
func newTestEngine(t *testing.T, repo *fakeRepo, opts Options) *Engine {
	t.Helper()
	adapter := tool.NewAdapter(repo)
	adapter.SetRetryDelay(time.Millisecond)
	gc := git.NewClient(adapter, t.TempDir(), repo.remoteName, time.Second)
	if opts.TestTimeout == 0 {
		opts.TestTimeout = time.Second
	}
	if opts.SetupTimeout == 0 {
		opts.SetupTimeout = time.Second
	}
	return NewEngine(adapter, gc, manifest.NewTable(nil), opts)
}
