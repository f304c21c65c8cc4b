package flow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/lucasnoah/branchflow/internal/checks"
	"github.com/lucasnoah/branchflow/internal/git"
	"github.com/lucasnoah/branchflow/internal/manifest"
	"github.com/lucasnoah/branchflow/internal/policy"
	"github.com/lucasnoah/branchflow/internal/session"
	"github.com/lucasnoah/branchflow/internal/tool"
)

// Resumption carries a caller's answer back into the step that asked for it.
type Resumption struct {
	Request  session.DecisionRequest
	Decision session.Decision
}

// Execution is what a handler observed while running.
type Execution struct {
	Result     string
	Pending    *session.DecisionRequest
	Failed     bool // ran to completion with a failing result, e.g. red tests
	Diagnostic string
}

// StepHandler runs one lifecycle step. Validate is only called on a fresh run,
// never when resuming a suspended step.
type StepHandler interface {
	ID() session.StepID
	Validate(ctx context.Context, ws *session.WorkflowSession) error
	Execute(ctx context.Context, ws *session.WorkflowSession, r *Resumption) (*Execution, error)
	Interpret(ws *session.WorkflowSession, ex *Execution, err error) session.StepOutcome
}

type base struct {
	e  *Engine
	id session.StepID
}

func (b base) ID() session.StepID {
	return b.id
}

func (b base) Validate(context.Context, *session.WorkflowSession) error {
	return nil
}

func (b base) Interpret(ws *session.WorkflowSession, ex *Execution, err error) session.StepOutcome {
	o := session.StepOutcome{Step: b.id}
	switch {
	case err != nil:
		o.Status = session.StatusFailure
		o.ErrorKind = ErrorKind(err)
		o.Diagnostic = Diagnostic(err)
		o.Timeout = tool.IsTimeout(err)
		if o.ErrorKind == KindCancelled {
			o.Result = session.ResultCancelled
		}
	case ex.Pending != nil:
		o.Status = session.StatusNeedsDecision
		o.Result = string(ex.Pending.Kind)
		o.Diagnostic = ex.Pending.Prompt
	case ex.Failed:
		o.Status = session.StatusFailure
		o.Result = ex.Result
		o.Diagnostic = ex.Diagnostic
		o.ErrorKind = KindTestsFailed
	default:
		o.Status = session.StatusSuccess
		o.Result = ex.Result
		o.Diagnostic = ex.Diagnostic
	}
	return o
}

// trunkRef is the ref the branch is compared against: the remote trunk, or
// the local one when the repository has no remote.
func (e *Engine) trunkRef(ws *session.WorkflowSession) string {
	if ws.LocalOnly {
		return ws.Base
	}
	return e.git.RemoteRef(ws.Base)
}

// conflictRequest builds the continue/abort decision for a stopped operation.
func conflictRequest(step session.StepID, ce *git.ConflictError) *session.DecisionRequest {
	return &session.DecisionRequest{
		Kind:      session.DecisionConflict,
		Step:      step,
		Options:   []string{session.ChoiceContinue, session.ChoiceAbort},
		Paths:     ce.Paths,
		Operation: ce.Op,
		Prompt:    fmt.Sprintf("%s stopped on conflicts in %d path(s); resolve them and continue, or abort", ce.Op, len(ce.Paths)),
	}
}

// --- clean_check ---

type cleanCheck struct{ base }

func (h *cleanCheck) Execute(ctx context.Context, ws *session.WorkflowSession, r *Resumption) (*Execution, error) {
	result := session.ResultClean
	if r != nil {
		if err := h.resolve(ctx, ws, r.Decision); err != nil {
			return nil, err
		}
		result = session.ResultResolved
	}

	entries, err := h.e.git.Status(ctx)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return &Execution{Result: result}, nil
	}

	paths := make([]string, 0, len(entries))
	for _, en := range entries {
		paths = append(paths, en.Path)
	}
	return &Execution{Pending: &session.DecisionRequest{
		Kind:    session.DecisionUncommitted,
		Options: []string{session.ChoiceStash, session.ChoiceCommit, session.ChoiceDiscard},
		Paths:   paths,
		Prompt:  fmt.Sprintf("working tree has %d uncommitted change(s): stash, commit or discard them", len(entries)),
	}}, nil
}

func (h *cleanCheck) resolve(ctx context.Context, ws *session.WorkflowSession, d session.Decision) error {
	switch d.Choice {
	case session.ChoiceStash:
		h.e.logf("stashing uncommitted changes")
		return h.e.git.Stash(ctx, "branchflow: before starting "+ws.Branch)
	case session.ChoiceCommit:
		msg := d.Message
		if msg == "" {
			msg = "WIP: save changes before starting " + ws.Branch
		}
		onTrunk, err := h.onTrunk(ctx)
		if err != nil {
			return err
		}
		if onTrunk {
			// Committing here would leave trunk ahead of the remote.
			h.e.logf("stashing uncommitted changes to commit them on %s", ws.Branch)
			if err := h.e.git.Stash(ctx, "branchflow: commit on "+ws.Branch); err != nil {
				return err
			}
			ws.CarryCommit = msg
			ws.Warn("changes on trunk were stashed to be committed on " + ws.Branch)
			return nil
		}
		h.e.logf("committing uncommitted changes")
		return h.e.git.CommitAll(ctx, msg)
	case session.ChoiceDiscard:
		h.e.logf("discarding uncommitted changes")
		return h.e.git.Discard(ctx)
	}
	return precondition(ReasonInvalidDecision, "unknown choice %q", d.Choice)
}

// onTrunk reports whether the checked-out branch is the trunk. An
// unresolvable trunk counts as not on trunk; trunk_sync reports it.
func (h *cleanCheck) onTrunk(ctx context.Context) (bool, error) {
	g := h.e.git
	current, err := g.CurrentBranch(ctx)
	if err != nil {
		return false, err
	}
	hasRemote, err := g.HasRemote(ctx)
	if err != nil {
		return false, err
	}
	trunk, err := h.e.resolveTrunk(ctx, hasRemote)
	if err != nil {
		return false, nil
	}
	return current == trunk, nil
}

// --- trunk_sync ---

type trunkSync struct{ base }

func (h *trunkSync) Execute(ctx context.Context, ws *session.WorkflowSession, _ *Resumption) (*Execution, error) {
	g := h.e.git

	hasRemote, err := g.HasRemote(ctx)
	if err != nil {
		return nil, err
	}
	ws.LocalOnly = !hasRemote

	trunk, err := h.e.resolveTrunk(ctx, hasRemote)
	if err != nil {
		return nil, err
	}
	ws.Base = trunk
	h.e.logf("trunk is %s", trunk)

	if ws.LocalOnly {
		h.e.logf("no remote %q configured, running local-only", g.Remote())
		if ok, err := g.LocalBranchExists(ctx, trunk); err != nil {
			return nil, err
		} else if !ok {
			return nil, fmt.Errorf("local trunk %s does not exist", trunk)
		}
		ws.Divergence = &git.DivergenceReport{Left: trunk, Right: trunk}
		ws.LastSync = h.e.now()
		return &Execution{Result: session.ResultUpToDate}, nil
	}

	if err := g.Fetch(ctx); err != nil {
		return nil, err
	}

	remoteRef := g.RemoteRef(trunk)
	exists, err := g.LocalBranchExists(ctx, trunk)
	if err != nil {
		return nil, err
	}
	if !exists {
		h.e.logf("creating local %s tracking %s", trunk, remoteRef)
		if err := g.CreateTrackingBranch(ctx, trunk, remoteRef); err != nil {
			return nil, err
		}
		ws.Divergence = &git.DivergenceReport{Left: trunk, Right: remoteRef}
		ws.LastSync = h.e.now()
		return &Execution{Result: session.ResultCreated}, nil
	}

	div, err := g.Divergence(ctx, trunk, remoteRef)
	if err != nil {
		return nil, err
	}
	ws.Divergence = div

	switch policy.ClassifyTrunkSync(div.Ahead, div.Behind) {
	case policy.SyncConflict:
		return nil, &DivergenceConflict{Left: trunk, Right: remoteRef, Ahead: div.Ahead, Behind: div.Behind}
	case policy.SyncNone:
		ws.LastSync = h.e.now()
		return &Execution{Result: session.ResultUpToDate}, nil
	}

	h.e.logf("fast-forwarding %s by %d commit(s)", trunk, div.Behind)
	current, err := g.CurrentBranch(ctx)
	if err != nil {
		return nil, err
	}
	if current != trunk {
		if err := g.Checkout(ctx, trunk); err != nil {
			return nil, err
		}
	}
	if err := g.MergeFastForward(ctx, remoteRef); err != nil {
		return nil, err
	}
	ws.Divergence = &git.DivergenceReport{Left: trunk, Right: remoteRef}
	ws.LastSync = h.e.now()
	return &Execution{Result: session.ResultFastForwarded}, nil
}

// resolveTrunk picks the trunk name: remote HEAD, then configured trunk, then
// the first of main/master that exists.
func (e *Engine) resolveTrunk(ctx context.Context, hasRemote bool) (string, error) {
	if hasRemote {
		if name, err := e.git.DefaultBranch(ctx); err == nil && name != "" {
			return name, nil
		}
	}
	if e.opts.Trunk != "" {
		return e.opts.Trunk, nil
	}
	for _, candidate := range []string{"main", "master"} {
		if ok, err := e.git.LocalBranchExists(ctx, candidate); err == nil && ok {
			return candidate, nil
		}
		if hasRemote {
			if _, err := e.git.RevParse(ctx, e.git.RemoteRef(candidate)); err == nil {
				return candidate, nil
			}
		}
	}
	return "", errors.New("cannot determine trunk: remote HEAD unset and neither main nor master exists")
}

// --- branch_create ---

type branchCreate struct{ base }

func (h *branchCreate) Validate(ctx context.Context, ws *session.WorkflowSession) error {
	g := h.e.git
	if err := h.e.naming.Validate(ws.Branch); err != nil {
		return precondition(ReasonInvalidName, "%v", err)
	}
	if err := g.CheckRefFormat(ctx, ws.Branch); err != nil {
		if tool.IsCancelled(err) {
			return err
		}
		return precondition(ReasonInvalidName, "git rejects %q as a branch name", ws.Branch)
	}
	exists, err := g.LocalBranchExists(ctx, ws.Branch)
	if err != nil {
		return err
	}
	if exists {
		return precondition(ReasonBranchExists, "branch %s already exists locally", ws.Branch)
	}
	if !ws.LocalOnly {
		remote, err := g.RemoteBranchExists(ctx, ws.Branch)
		if err != nil {
			return err
		}
		if remote {
			return precondition(ReasonBranchExists, "branch %s already exists on %s", ws.Branch, g.Remote())
		}
	}
	return nil
}

func (h *branchCreate) Execute(ctx context.Context, ws *session.WorkflowSession, _ *Resumption) (*Execution, error) {
	g := h.e.git
	base, err := g.RevParse(ctx, ws.Base)
	if err != nil {
		return nil, err
	}
	h.e.logf("creating %s from %s at %s", ws.Branch, ws.Base, shortSHA(base))
	if err := g.CreateBranch(ctx, ws.Branch, ws.Base); err != nil {
		return nil, err
	}
	ws.BaseCommit = base
	if ws.CarryCommit != "" {
		h.e.logf("committing stashed changes on %s", ws.Branch)
		if err := g.StashPop(ctx); err != nil {
			return nil, fmt.Errorf("restore stashed changes on %s: %w", ws.Branch, err)
		}
		if err := g.CommitAll(ctx, ws.CarryCommit); err != nil {
			return nil, err
		}
		ws.CarryCommit = ""
	}
	return &Execution{Result: session.ResultCreated}, nil
}

// --- remote_track ---

type remoteTrack struct{ base }

func (h *remoteTrack) Execute(ctx context.Context, ws *session.WorkflowSession, _ *Resumption) (*Execution, error) {
	if !ws.TrackRemote || ws.LocalOnly {
		return &Execution{Result: session.ResultSkipped}, nil
	}
	h.e.logf("publishing %s to %s", ws.Branch, h.e.git.Remote())
	if err := h.e.git.Push(ctx, ws.Branch, true); err != nil {
		return nil, err
	}
	if sha, err := h.e.git.RevParse(ctx, ws.Branch); err == nil {
		ws.PushedSHA = sha
	}
	return &Execution{Result: session.ResultTracked}, nil
}

// --- setup_run ---

type setupRun struct{ base }

func (h *setupRun) Execute(ctx context.Context, ws *session.WorkflowSession, _ *Resumption) (*Execution, error) {
	found := h.e.manifests.Detect(ws.Dir)

	ws.SetupCommands = nil
	ws.TestCommands = nil
	ws.TestParsers = nil
	for _, c := range manifest.InstallCommands(found) {
		ws.SetupCommands = append(ws.SetupCommands, c.String())
	}
	for _, d := range manifest.TestCommands(found) {
		ws.TestCommands = append(ws.TestCommands, d.Test.String())
		ws.TestParsers = append(ws.TestParsers, d.Parser)
	}

	if h.e.opts.SkipSetup {
		h.e.logf("setup disabled by configuration")
		return &Execution{Result: session.ResultSkipped}, nil
	}
	if len(ws.SetupCommands) == 0 {
		h.e.logf("no manifests detected, skipping setup")
		return &Execution{Result: session.ResultSkipped}, nil
	}

	for _, c := range manifest.InstallCommands(found) {
		h.e.logf("installing dependencies: %s", c)
		_, err := h.e.tool.Invoke(ctx, tool.Invocation{
			Tool:    c.Tool,
			Args:    c.Args,
			Dir:     ws.Dir,
			Timeout: h.e.opts.SetupTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("setup %q: %w", c, err)
		}
	}
	return &Execution{Result: session.ResultInstalled}, nil
}

// --- test_baseline ---

type testBaseline struct{ base }

func (h *testBaseline) Execute(ctx context.Context, ws *session.WorkflowSession, _ *Resumption) (*Execution, error) {
	if h.e.opts.SkipTests || len(ws.TestCommands) == 0 {
		h.e.logf("no baseline tests to run")
		return &Execution{Result: session.ResultSkipped}, nil
	}

	var results []*checks.Result
	for i, line := range ws.TestCommands {
		parser := h.e.opts.TestParser
		if parser == "" && i < len(ws.TestParsers) {
			parser = ws.TestParsers[i]
		}
		c, err := manifest.ParseCommand(line)
		if err != nil {
			return nil, err
		}
		h.e.logf("running baseline tests: %s", line)
		res, err := h.e.tests.Run(ctx, ws.Dir, c, parser)
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}

	summary := checks.Aggregate(results)
	ws.LastTest = &summary
	if !summary.OK {
		return &Execution{
			Result:     session.ResultTestsFailed,
			Failed:     true,
			Diagnostic: strings.TrimSpace(summary.Summary + "\n" + summary.Output),
		}, nil
	}
	return &Execution{Result: session.ResultTestsPassed, Diagnostic: summary.Summary}, nil
}

// --- resync_check ---

type resyncCheck struct{ base }

func (h *resyncCheck) Execute(ctx context.Context, ws *session.WorkflowSession, r *Resumption) (*Execution, error) {
	if r != nil {
		switch r.Request.Kind {
		case session.DecisionResyncStrategy:
			return h.apply(ctx, ws, r.Decision.Choice)
		case session.DecisionConflict:
			return h.e.resolveConflict(ctx, ws, h.id, r, func() (*Execution, error) {
				return h.finish(ctx, ws, r.Request.Operation)
			})
		}
		return nil, precondition(ReasonInvalidDecision, "resync cannot answer a %s decision", r.Request.Kind)
	}

	g := h.e.git
	if !ws.LocalOnly {
		if err := g.Fetch(ctx); err != nil {
			return nil, err
		}
	}
	div, err := g.Divergence(ctx, ws.Branch, h.e.trunkRef(ws))
	if err != nil {
		return nil, err
	}
	ws.Divergence = div

	if policy.ClassifyResync(div.Ahead, div.Behind) == policy.SyncNone {
		ws.LastSync = h.e.now()
		return &Execution{Result: session.ResultInSync}, nil
	}
	return &Execution{Pending: &session.DecisionRequest{
		Kind:    session.DecisionResyncStrategy,
		Options: []string{session.ChoiceRebase, session.ChoiceMerge},
		Prompt:  fmt.Sprintf("%s is %d commit(s) behind %s: rebase or merge", ws.Branch, div.Behind, div.Right),
	}}, nil
}

func (h *resyncCheck) apply(ctx context.Context, ws *session.WorkflowSession, choice string) (*Execution, error) {
	g := h.e.git
	onto := h.e.trunkRef(ws)

	var err error
	switch choice {
	case session.ChoiceRebase:
		h.e.logf("rebasing %s onto %s", ws.Branch, onto)
		err = g.Rebase(ctx, onto)
	case session.ChoiceMerge:
		h.e.logf("merging %s into %s", onto, ws.Branch)
		err = g.Merge(ctx, onto)
	default:
		return nil, precondition(ReasonInvalidDecision, "unknown resync strategy %q", choice)
	}

	var ce *git.ConflictError
	if errors.As(err, &ce) {
		return &Execution{Pending: conflictRequest(h.id, ce)}, nil
	}
	if err != nil {
		return nil, err
	}
	return h.finish(ctx, ws, choice)
}

// finish records a completed rebase or merge.
func (h *resyncCheck) finish(ctx context.Context, ws *session.WorkflowSession, op string) (*Execution, error) {
	result := session.ResultMerged
	if op == session.ChoiceRebase {
		result = session.ResultRebased
		ws.Rebased = true
	}
	ws.LastSync = h.e.now()
	if div, err := h.e.git.Divergence(ctx, ws.Branch, h.e.trunkRef(ws)); err == nil {
		ws.Divergence = div
	}
	return &Execution{Result: result}, nil
}

// resolveConflict dispatches a continue/abort answer. done runs once the
// operation has completed without further conflicts.
func (e *Engine) resolveConflict(ctx context.Context, ws *session.WorkflowSession, step session.StepID, r *Resumption, done func() (*Execution, error)) (*Execution, error) {
	g := e.git
	op := r.Request.Operation

	switch r.Decision.Choice {
	case session.ChoiceAbort:
		e.logf("aborting %s", op)
		var err error
		if op == "rebase" {
			err = g.RebaseAbort(ctx)
		} else {
			err = g.MergeAbort(ctx)
		}
		if err != nil {
			return nil, err
		}
		return &Execution{Result: session.ResultAborted}, nil

	case session.ChoiceContinue:
		paths := r.Decision.Paths
		if len(paths) == 0 {
			paths = r.Request.Paths
		}
		if len(paths) > 0 {
			if err := g.Add(ctx, paths...); err != nil {
				return nil, err
			}
		}
		e.logf("continuing %s", op)
		var err error
		if op == "rebase" {
			err = g.RebaseContinue(ctx)
		} else {
			err = g.CommitNoEdit(ctx)
		}
		var ce *git.ConflictError
		if errors.As(err, &ce) {
			return &Execution{Pending: conflictRequest(step, ce)}, nil
		}
		if err != nil {
			return nil, err
		}
		return done()
	}
	return nil, precondition(ReasonInvalidDecision, "unknown conflict choice %q", r.Decision.Choice)
}

// --- integrate ---

// Integration modes.
const (
	ModePR    = "pr"
	ModeMerge = "merge"
)

type integrate struct{ base }

func (h *integrate) Validate(ctx context.Context, ws *session.WorkflowSession) error {
	if ws.IntegrateMode == ModePR && ws.LocalOnly {
		return precondition(ReasonNoRemote, "pr mode needs a remote to push %s to", ws.Branch)
	}
	entries, err := h.e.git.Status(ctx)
	if err != nil {
		return err
	}
	if len(entries) > 0 {
		return precondition(ReasonDirtyTree, "working tree has %d uncommitted change(s); commit them before integrating", len(entries))
	}
	return nil
}

func (h *integrate) Execute(ctx context.Context, ws *session.WorkflowSession, r *Resumption) (*Execution, error) {
	if r != nil {
		if r.Request.Kind != session.DecisionConflict {
			return nil, precondition(ReasonInvalidDecision, "integrate cannot answer a %s decision", r.Request.Kind)
		}
		ex, err := h.e.resolveConflict(ctx, ws, h.id, r, func() (*Execution, error) {
			return h.publishTrunk(ctx, ws)
		})
		if err == nil && ex.Result == session.ResultAborted {
			if cerr := h.e.git.Checkout(ctx, ws.Branch); cerr != nil {
				return nil, cerr
			}
		}
		return ex, err
	}

	if ws.IntegrateMode == ModeMerge {
		return h.merge(ctx, ws)
	}
	return h.push(ctx, ws)
}

// push hands the branch off for review. A rebased branch is force-pushed only
// under a lease on the tip last seen on the remote.
func (h *integrate) push(ctx context.Context, ws *session.WorkflowSession) (*Execution, error) {
	g := h.e.git
	remoteSHA, err := g.RemoteBranchSHA(ctx, ws.Branch)
	if err != nil {
		return nil, err
	}
	if ws.Rebased && remoteSHA != "" {
		h.e.logf("force-pushing rebased %s (lease %s)", ws.Branch, shortSHA(remoteSHA))
		err = g.PushWithLease(ctx, ws.Branch, remoteSHA)
	} else {
		h.e.logf("pushing %s", ws.Branch)
		err = g.Push(ctx, ws.Branch, true)
	}
	if err != nil {
		return nil, err
	}
	ws.Rebased = false
	if sha, err := g.RevParse(ctx, ws.Branch); err == nil {
		ws.PushedSHA = sha
	}
	return &Execution{Result: session.ResultPushed, Diagnostic: fmt.Sprintf("%s pushed to %s; open a pull request against %s", ws.Branch, g.Remote(), ws.Base)}, nil
}

// merge lands the branch on trunk with an explicit merge commit.
func (h *integrate) merge(ctx context.Context, ws *session.WorkflowSession) (*Execution, error) {
	g := h.e.git
	if err := g.Checkout(ctx, ws.Base); err != nil {
		return nil, err
	}
	if !ws.LocalOnly {
		if err := g.PullFastForward(ctx, ws.Base); err != nil {
			return nil, err
		}
	}
	h.e.logf("merging %s into %s", ws.Branch, ws.Base)
	err := g.MergeNoFF(ctx, ws.Branch)
	var ce *git.ConflictError
	if errors.As(err, &ce) {
		return &Execution{Pending: conflictRequest(h.id, ce)}, nil
	}
	if err != nil {
		return nil, err
	}
	return h.publishTrunk(ctx, ws)
}

func (h *integrate) publishTrunk(ctx context.Context, ws *session.WorkflowSession) (*Execution, error) {
	if !ws.LocalOnly {
		h.e.logf("pushing %s", ws.Base)
		if err := h.e.git.Push(ctx, ws.Base, false); err != nil {
			return nil, err
		}
	}
	return &Execution{Result: session.ResultMerged}, nil
}

// --- cleanup ---

type cleanup struct {
	base
	force bool
	// merged is set once Validate has shown every ref being deleted is
	// contained in trunk.
	merged bool
}

func (h *cleanup) Validate(ctx context.Context, ws *session.WorkflowSession) error {
	g := h.e.git
	if !ws.LocalOnly {
		if err := g.Fetch(ctx); err != nil {
			return err
		}
	}
	if h.force {
		return nil
	}

	trunk := h.e.trunkRef(ws)
	refs, err := h.refsToDelete(ctx, ws)
	if err != nil {
		return err
	}
	for _, ref := range refs {
		merged, err := g.IsAncestor(ctx, ref, trunk)
		if err != nil {
			return err
		}
		if !merged {
			return precondition(ReasonNotMerged, "%s is not merged into %s; use --force to delete it anyway", ref, trunk)
		}
	}
	h.merged = true
	return nil
}

// refsToDelete lists the branch refs cleanup would remove: the local branch
// and, unless the session is local-only, the remote branch.
func (h *cleanup) refsToDelete(ctx context.Context, ws *session.WorkflowSession) ([]string, error) {
	g := h.e.git
	var refs []string
	exists, err := g.LocalBranchExists(ctx, ws.Branch)
	if err != nil {
		return nil, err
	}
	if exists {
		refs = append(refs, ws.Branch)
	}
	if !ws.LocalOnly {
		remote, err := g.RemoteBranchExists(ctx, ws.Branch)
		if err != nil {
			return nil, err
		}
		if remote {
			refs = append(refs, g.RemoteRef(ws.Branch))
		}
	}
	return refs, nil
}

func (h *cleanup) Execute(ctx context.Context, ws *session.WorkflowSession, _ *Resumption) (*Execution, error) {
	g := h.e.git

	exists, err := g.LocalBranchExists(ctx, ws.Branch)
	if err != nil {
		return nil, err
	}
	if exists {
		current, err := g.CurrentBranch(ctx)
		if err != nil {
			return nil, err
		}
		if current == ws.Branch {
			if err := g.Checkout(ctx, ws.Base); err != nil {
				return nil, err
			}
		}
		h.e.logf("deleting local branch %s", ws.Branch)
		// git branch -d compares against the local trunk, which is stale
		// after a host-side merge, so force once ancestry is proven.
		if err := g.DeleteLocalBranch(ctx, ws.Branch, h.force || h.merged); err != nil {
			return nil, err
		}
	}

	if !ws.LocalOnly {
		remote, err := g.RemoteBranchExists(ctx, ws.Branch)
		if err != nil {
			return nil, err
		}
		if remote {
			h.e.logf("deleting %s on %s", ws.Branch, g.Remote())
			if err := g.DeleteRemoteBranch(ctx, ws.Branch); err != nil {
				return nil, err
			}
		}
	}
	return &Execution{Result: session.ResultDeleted}, nil
}

func shortSHA(sha string) string {
	if len(sha) > 8 {
		return sha[:8]
	}
	return sha
}
