package flow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/lucasnoah/branchflow/internal/checks"
	"github.com/lucasnoah/branchflow/internal/git"
	"github.com/lucasnoah/branchflow/internal/manifest"
	"github.com/lucasnoah/branchflow/internal/policy"
	"github.com/lucasnoah/branchflow/internal/session"
	"github.com/lucasnoah/branchflow/internal/tool"
)

// Options tunes an Engine.
type Options struct {
	Trunk         string // fallback trunk when the remote HEAD is unset
	TrackRemote   bool
	IntegrateMode string
	BranchTypes   []string
	SetupTimeout  time.Duration
	TestTimeout   time.Duration
	SkipSetup     bool
	SkipTests     bool
	TestParser    string
}

// Recorder receives every step outcome as it is appended to a session.
type Recorder interface {
	LogStepOutcome(ctx context.Context, ws *session.WorkflowSession, o session.StepOutcome) error
}

// Engine drives a WorkflowSession through the branch lifecycle.
type Engine struct {
	git       *git.Client
	tool      *tool.Adapter
	tests     *checks.Runner
	manifests *manifest.Table
	naming    *policy.Naming
	opts      Options
	recorder  Recorder
	progress  io.Writer // live progress output; nil = silent
	now       func() time.Time
}

// NewEngine creates an engine over a git client and the adapter it was built on.
func NewEngine(adapter *tool.Adapter, gitClient *git.Client, manifests *manifest.Table, opts Options) *Engine {
	if manifests == nil {
		manifests = manifest.NewTable(nil)
	}
	if opts.IntegrateMode == "" {
		opts.IntegrateMode = ModePR
	}
	if opts.SetupTimeout <= 0 {
		opts.SetupTimeout = 10 * time.Minute
	}
	return &Engine{
		git:       gitClient,
		tool:      adapter,
		tests:     checks.NewRunner(adapter, opts.TestTimeout),
		manifests: manifests,
		naming:    policy.NewNaming(opts.BranchTypes),
		opts:      opts,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SetProgress sets a writer for live progress output (e.g. os.Stderr).
func (e *Engine) SetProgress(w io.Writer) {
	e.progress = w
}

// SetRecorder attaches an outcome sink such as the event log.
func (e *Engine) SetRecorder(r Recorder) {
	e.recorder = r
}

// SetClock overrides the time source (for testing).
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// logf prints a progress line if a progress writer is configured.
func (e *Engine) logf(format string, args ...interface{}) {
	if e.progress != nil {
		fmt.Fprintf(e.progress, "  → "+format+"\n", args...)
	}
}

// Naming returns the branch naming policy in force.
func (e *Engine) Naming() *policy.Naming {
	return e.naming
}

func (e *Engine) handler(step session.StepID) StepHandler {
	b := base{e: e, id: step}
	switch step {
	case session.StepCleanCheck:
		return &cleanCheck{b}
	case session.StepTrunkSync:
		return &trunkSync{b}
	case session.StepBranchCreate:
		return &branchCreate{b}
	case session.StepRemoteTrack:
		return &remoteTrack{b}
	case session.StepSetupRun:
		return &setupRun{b}
	case session.StepTestBaseline:
		return &testBaseline{b}
	case session.StepResyncCheck:
		return &resyncCheck{b}
	case session.StepIntegrate:
		return &integrate{b}
	case session.StepCleanup:
		return &cleanup{base: b}
	}
	return nil
}

// Start validates the branch name and drives a new session from clean_check
// until it rests, suspends or ends. An invalid name returns a
// PreconditionError and no session. A decision, when given, answers the
// uncommitted-changes question should it arise.
func (e *Engine) Start(ctx context.Context, branch string, decision *session.Decision) (*session.WorkflowSession, error) {
	if err := e.naming.Validate(branch); err != nil {
		return nil, precondition(ReasonInvalidName, "%v", err)
	}
	if decision != nil && !(&session.DecisionRequest{Options: []string{session.ChoiceStash, session.ChoiceCommit, session.ChoiceDiscard}}).Allows(decision.Choice) {
		return nil, precondition(ReasonInvalidDecision, "start accepts stash, commit or discard, got %q", decision.Choice)
	}

	ws := session.New(branch, e.git.Dir(), e.git.Remote(), e.opts.TrackRemote)
	ws.State = session.StateCleanCheck
	e.logf("starting %s", branch)

	if err := e.Run(ctx, ws); err != nil {
		return ws, err
	}
	if decision != nil && ws.Suspended() && ws.Pending.Kind == session.DecisionUncommitted {
		return ws, e.Resume(ctx, ws, *decision)
	}
	return ws, nil
}

// Run executes active states until the session rests, suspends or ends.
// Cancellation between steps aborts the session without undoing anything.
func (e *Engine) Run(ctx context.Context, ws *session.WorkflowSession) error {
	for !ws.State.Terminal() && !ws.Suspended() {
		step, ok := StepFor(ws.State)
		if !ok {
			return nil
		}
		if err := ctx.Err(); err != nil {
			e.Abort(ws, "interrupted before "+string(step))
			return nil
		}
		if err := e.runStep(ctx, ws, e.handler(step), nil); err != nil {
			return err
		}
	}
	return nil
}

// runStep validates (fresh runs only), executes and interprets one step, then
// applies the transition. The returned error is a PreconditionError to surface
// to the caller, or nil.
func (e *Engine) runStep(ctx context.Context, ws *session.WorkflowSession, h StepHandler, r *Resumption) error {
	var (
		ex  *Execution
		err error
	)
	if r == nil {
		err = h.Validate(ctx, ws)
		// A commanded step refused from a rest state leaves the session untouched.
		if IsPrecondition(err) && Resting(ws.State) {
			return err
		}
	}
	if err == nil {
		ex, err = h.Execute(ctx, ws, r)
	}

	o := h.Interpret(ws, ex, err)
	if o.Status == session.StatusFailure && ctx.Err() != nil {
		o.Result = session.ResultCancelled
		o.ErrorKind = KindCancelled
	}
	o.Timestamp = e.now()
	e.record(ctx, ws, o)

	next := Transition(ws, o)
	switch o.Status {
	case session.StatusNeedsDecision:
		req := *ex.Pending
		req.Step = h.ID()
		ws.Pending = &req
		e.logf("%s: waiting for a decision (%s)", h.ID(), req.Kind)
	case session.StatusFailure:
		switch next {
		case session.StateFailed:
			ws.FailingStep = h.ID()
			ws.Diagnostic = o.Diagnostic
			e.logf("%s failed: %s", h.ID(), firstLine(o.Diagnostic))
		case session.StateAborted:
			ws.FailingStep = h.ID()
			ws.Diagnostic = o.Diagnostic
			e.logf("%s interrupted", h.ID())
		default:
			ws.Warn(recoverableWarning(o))
			e.logf("%s failed, continuing: %s", h.ID(), firstLine(o.Diagnostic))
		}
	case session.StatusSuccess:
		ws.LastSuccessfulState = next
		e.logf("%s: %s", h.ID(), o.Result)
	}
	ws.State = next

	var pe *PreconditionError
	if errors.As(err, &pe) {
		return pe
	}
	return nil
}

func recoverableWarning(o session.StepOutcome) string {
	if o.Step == session.StepTestBaseline {
		return "baseline tests failing: " + firstLine(o.Diagnostic)
	}
	return fmt.Sprintf("%s failed: %s", o.Step, firstLine(o.Diagnostic))
}

// record appends o to the history and forwards it to the recorder. Recorder
// failures are reported on the progress writer only.
func (e *Engine) record(ctx context.Context, ws *session.WorkflowSession, o session.StepOutcome) {
	ws.Record(o)
	if e.recorder == nil {
		return
	}
	if err := e.recorder.LogStepOutcome(context.WithoutCancel(ctx), ws, o); err != nil {
		e.logf("event log: %v", err)
	}
}

// Resume answers the pending decision and re-runs the suspended step, then
// continues through any active states that follow.
func (e *Engine) Resume(ctx context.Context, ws *session.WorkflowSession, d session.Decision) error {
	if !ws.Suspended() {
		return precondition(ReasonWrongState, "session for %s is not waiting on a decision (state %s)", ws.Branch, ws.State)
	}
	if !ws.Pending.Allows(d.Choice) {
		return precondition(ReasonInvalidDecision, "%q is not one of %s", d.Choice, strings.Join(ws.Pending.Options, ", "))
	}
	if err := ctx.Err(); err != nil {
		e.Abort(ws, "interrupted while waiting on a decision")
		return nil
	}

	req := *ws.Pending
	ws.Pending = nil
	e.logf("%s: resuming with %s", req.Step, d.Choice)
	if err := e.runStep(ctx, ws, e.handler(req.Step), &Resumption{Request: req, Decision: d}); err != nil {
		return err
	}
	return e.Run(ctx, ws)
}

// Resync moves a resting session into resync_check, or answers a pending
// resync decision. A decision given with a fresh resync pre-answers the
// strategy question.
func (e *Engine) Resync(ctx context.Context, ws *session.WorkflowSession, d *session.Decision) error {
	if ws.Suspended() {
		if ws.Pending.Step != session.StepResyncCheck {
			return precondition(ReasonWrongState, "session is waiting on a %s decision for %s", ws.Pending.Kind, ws.Pending.Step)
		}
		if d == nil {
			return nil
		}
		return e.Resume(ctx, ws, *d)
	}

	switch ws.State {
	case session.StateReady, session.StateIntegrationReady:
	default:
		return precondition(ReasonWrongState, "cannot resync from state %s", ws.State)
	}

	ws.State = session.StateResyncCheck
	if err := e.Run(ctx, ws); err != nil {
		return err
	}
	if d != nil && ws.Suspended() && ws.Pending.Allows(d.Choice) {
		return e.Resume(ctx, ws, *d)
	}
	return nil
}

// Integrate hands the branch off (pr) or lands it on trunk (merge). From ready
// it resyncs first; integration only proceeds once the branch is up to date.
func (e *Engine) Integrate(ctx context.Context, ws *session.WorkflowSession, mode string, d *session.Decision) error {
	if ws.Suspended() {
		if d == nil {
			return nil
		}
		step := ws.Pending.Step
		if err := e.Resume(ctx, ws, *d); err != nil {
			return err
		}
		if step == session.StepIntegrate || ws.Suspended() || ws.State != session.StateIntegrationReady {
			return nil
		}
		d = nil
	}

	if mode == "" {
		mode = ws.IntegrateMode
	}
	if mode == "" {
		mode = e.opts.IntegrateMode
	}
	if mode != ModePR && mode != ModeMerge {
		return precondition(ReasonInvalidArgument, "integration mode must be pr or merge, got %q", mode)
	}

	if ws.State == session.StateReady {
		if err := e.Resync(ctx, ws, d); err != nil {
			return err
		}
		if ws.Suspended() || ws.State != session.StateIntegrationReady {
			return nil
		}
	}
	if ws.State != session.StateIntegrationReady {
		return precondition(ReasonWrongState, "cannot integrate from state %s", ws.State)
	}
	if err := ctx.Err(); err != nil {
		e.Abort(ws, "interrupted before integrate")
		return nil
	}

	ws.IntegrateMode = mode
	return e.runStep(ctx, ws, e.handler(session.StepIntegrate), nil)
}

// Cleanup deletes the branch locally and on the remote once it is merged. An
// unmerged branch without force returns a PreconditionError and leaves the
// session unchanged.
func (e *Engine) Cleanup(ctx context.Context, ws *session.WorkflowSession, force bool) error {
	if ws.Suspended() {
		return precondition(ReasonWrongState, "session is waiting on a %s decision; answer or abort it first", ws.Pending.Kind)
	}
	if !Resting(ws.State) {
		return precondition(ReasonWrongState, "cannot clean up from state %s", ws.State)
	}
	if err := ctx.Err(); err != nil {
		e.Abort(ws, "interrupted before cleanup")
		return nil
	}

	h := &cleanup{base: base{e: e, id: session.StepCleanup}, force: force}
	return e.runStep(ctx, ws, h, nil)
}

// Abort ends the session. Completed steps are not rolled back.
func (e *Engine) Abort(ws *session.WorkflowSession, reason string) {
	if ws.State.Terminal() {
		return
	}
	e.logf("aborting %s: %s", ws.Branch, reason)
	ws.Pending = nil
	ws.State = session.StateAborted
	ws.Warn("aborted: " + reason)
}

// Inspect refreshes divergence against trunk for reporting. It only reads.
func (e *Engine) Inspect(ctx context.Context, ws *session.WorkflowSession) error {
	if ws.Base == "" || ws.State.Terminal() {
		return nil
	}
	exists, err := e.git.LocalBranchExists(ctx, ws.Branch)
	if err != nil || !exists {
		return err
	}
	div, err := e.git.Divergence(ctx, ws.Branch, e.trunkRef(ws))
	if err != nil {
		return err
	}
	ws.Divergence = div
	return nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
