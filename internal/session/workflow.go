package session

import (
	"time"

	"github.com/google/uuid"

	"github.com/lucasnoah/branchflow/internal/checks"
	"github.com/lucasnoah/branchflow/internal/git"
)

// State is a position in the branch lifecycle.
type State string

const (
	StateIdle             State = "idle"
	StateCleanCheck       State = "clean_check"
	StateTrunkSync        State = "trunk_sync"
	StateBranchCreate     State = "branch_create"
	StateRemoteTrack      State = "remote_track"
	StateSetupRun         State = "setup_run"
	StateTestBaseline     State = "test_baseline"
	StateReady            State = "ready"
	StateResyncCheck      State = "resync_check"
	StateIntegrationReady State = "integration_ready"
	StateIntegrated       State = "integrated"
	StateCleanedUp        State = "cleaned_up"
	StateAborted          State = "aborted"
	StateFailed           State = "failed"
)

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateCleanedUp || s == StateAborted || s == StateFailed
}

// StepID names a lifecycle action.
type StepID string

const (
	StepCleanCheck   StepID = "clean_check"
	StepTrunkSync    StepID = "trunk_sync"
	StepBranchCreate StepID = "branch_create"
	StepRemoteTrack  StepID = "remote_track"
	StepSetupRun     StepID = "setup_run"
	StepTestBaseline StepID = "test_baseline"
	StepResyncCheck  StepID = "resync_check"
	StepIntegrate    StepID = "integrate"
	StepCleanup      StepID = "cleanup"
)

// Status is the verdict of one step execution.
type Status string

const (
	StatusSuccess       Status = "success"
	StatusFailure       Status = "failure"
	StatusNeedsDecision Status = "needs-user-decision"
)

// Result codes carried by outcomes so transitions can branch on them.
const (
	ResultClean         = "clean"
	ResultResolved      = "resolved"
	ResultUpToDate      = "up_to_date"
	ResultFastForwarded = "fast_forwarded"
	ResultCreated       = "created"
	ResultTracked       = "tracked"
	ResultSkipped       = "skipped"
	ResultInstalled     = "installed"
	ResultTestsPassed   = "tests_passed"
	ResultTestsFailed   = "tests_failed"
	ResultInSync        = "in_sync"
	ResultRebased       = "rebased"
	ResultMerged        = "merged"
	ResultAborted       = "aborted"
	ResultPushed        = "pushed"
	ResultDeleted       = "deleted"
	ResultCancelled     = "cancelled"
)

// StepOutcome is the immutable record of one step execution.
type StepOutcome struct {
	Step       StepID    `json:"step"`
	Status     Status    `json:"status"`
	Result     string    `json:"result,omitempty"`
	Diagnostic string    `json:"diagnostic,omitempty"`
	ErrorKind  string    `json:"error_kind,omitempty"`
	Timeout    bool      `json:"timeout,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// DecisionKind tags the variants of a decision request.
type DecisionKind string

const (
	DecisionUncommitted    DecisionKind = "uncommitted_changes"
	DecisionResyncStrategy DecisionKind = "resync_strategy"
	DecisionConflict       DecisionKind = "conflict"
)

// Decision choices.
const (
	ChoiceStash    = "stash"
	ChoiceCommit   = "commit"
	ChoiceDiscard  = "discard"
	ChoiceRebase   = "rebase"
	ChoiceMerge    = "merge"
	ChoiceContinue = "continue"
	ChoiceAbort    = "abort"
)

// DecisionRequest is what a suspended session is waiting on.
type DecisionRequest struct {
	Kind      DecisionKind `json:"kind"`
	Step      StepID       `json:"step"`
	Options   []string     `json:"options"`
	Paths     []string     `json:"paths,omitempty"`
	Operation string       `json:"operation,omitempty"` // "rebase" or "merge" for conflicts
	Prompt    string       `json:"prompt"`
}

// Allows reports whether choice is one of the offered options.
func (d *DecisionRequest) Allows(choice string) bool {
	for _, o := range d.Options {
		if o == choice {
			return true
		}
	}
	return false
}

// Decision is the caller's answer to a DecisionRequest.
type Decision struct {
	Choice  string   `json:"choice"`
	Paths   []string `json:"paths,omitempty"`
	Message string   `json:"message,omitempty"`
}

// WorkflowSession is one branch lifecycle.
type WorkflowSession struct {
	ID     string `json:"id"`
	Branch string `json:"branch"`
	Base   string `json:"base"`
	Remote string `json:"remote"`
	Dir    string `json:"dir"`
	State  State  `json:"state"`

	History []StepOutcome `json:"history"`

	SetupCommands []string `json:"setup_commands,omitempty"`
	TestCommands  []string `json:"test_commands,omitempty"`
	TestParsers   []string `json:"test_parsers,omitempty"`

	Pending  *DecisionRequest    `json:"pending,omitempty"`
	Warnings []string            `json:"warnings,omitempty"`
	LastTest *checks.TestSummary `json:"last_test,omitempty"`

	// CarryCommit is the message for changes stashed on trunk that
	// branch_create commits on the new branch.
	CarryCommit string `json:"carry_commit,omitempty"`

	BaseCommit string                `json:"base_commit,omitempty"`
	Divergence *git.DivergenceReport `json:"divergence,omitempty"`
	LastSync   time.Time             `json:"last_sync,omitempty"`

	LastSuccessfulState State  `json:"last_successful_state,omitempty"`
	FailingStep         StepID `json:"failing_step,omitempty"`
	Diagnostic          string `json:"diagnostic,omitempty"`

	TrackRemote   bool   `json:"track_remote"`
	LocalOnly     bool   `json:"local_only"`
	Rebased       bool   `json:"rebased"` // history rewritten since the last push
	PushedSHA     string `json:"pushed_sha,omitempty"`
	IntegrateMode string `json:"integrate_mode,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New creates an idle session for branch in dir.
func New(branch, dir, remote string, trackRemote bool) *WorkflowSession {
	now := time.Now().UTC()
	return &WorkflowSession{
		ID:          uuid.NewString(),
		Branch:      branch,
		Remote:      remote,
		Dir:         dir,
		State:       StateIdle,
		History:     []StepOutcome{},
		TrackRemote: trackRemote,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Record appends an outcome to the history.
func (s *WorkflowSession) Record(o StepOutcome) {
	if o.Timestamp.IsZero() {
		o.Timestamp = time.Now().UTC()
	}
	s.History = append(s.History, o)
	s.UpdatedAt = o.Timestamp
}

// LastOutcome returns the most recent outcome, or nil.
func (s *WorkflowSession) LastOutcome() *StepOutcome {
	if len(s.History) == 0 {
		return nil
	}
	o := s.History[len(s.History)-1]
	return &o
}

// Warn adds a warning annotation.
func (s *WorkflowSession) Warn(msg string) {
	s.Warnings = append(s.Warnings, msg)
}

// Suspended reports whether the session is waiting on a decision.
func (s *WorkflowSession) Suspended() bool {
	return s.Pending != nil
}

// DecisionCount returns how many decision points the session has emitted.
func (s *WorkflowSession) DecisionCount() int {
	n := 0
	for _, o := range s.History {
		if o.Status == StatusNeedsDecision {
			n++
		}
	}
	return n
}
