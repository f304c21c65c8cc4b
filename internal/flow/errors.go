package flow

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lucasnoah/branchflow/internal/git"
	"github.com/lucasnoah/branchflow/internal/tool"
)

// Reason classifies a PreconditionError.
type Reason string

const (
	ReasonDirtyTree       Reason = "dirty_tree"
	ReasonInvalidName     Reason = "invalid_name"
	ReasonBranchExists    Reason = "branch_exists"
	ReasonNotMerged       Reason = "not_merged"
	ReasonWrongState      Reason = "wrong_state"
	ReasonNoSession       Reason = "no_session"
	ReasonUnknownBranch   Reason = "unknown_branch"
	ReasonInvalidDecision Reason = "invalid_decision"
	ReasonInvalidArgument Reason = "invalid_argument"
	ReasonNoRemote        Reason = "no_remote"
)

// PreconditionError reports a request that cannot be honoured in the current
// repository or session state. Nothing has been changed when it is returned.
type PreconditionError struct {
	Reason Reason
	Detail string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("precondition failed (%s): %s", e.Reason, e.Detail)
}

func precondition(reason Reason, format string, args ...interface{}) *PreconditionError {
	return &PreconditionError{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

// IsPrecondition reports whether err is, or wraps, a PreconditionError.
func IsPrecondition(err error) bool {
	var pe *PreconditionError
	return errors.As(err, &pe)
}

// DivergenceConflict reports local commits that a sync would have to discard
// or rewrite. No destructive action is taken when it is returned.
type DivergenceConflict struct {
	Left   string
	Right  string
	Ahead  int
	Behind int
	Paths  []string
}

func (e *DivergenceConflict) Error() string {
	msg := fmt.Sprintf("%s has diverged from %s (%d local, %d remote commits)", e.Left, e.Right, e.Ahead, e.Behind)
	if len(e.Paths) > 0 {
		msg += ": " + strings.Join(e.Paths, ", ")
	}
	return msg
}

// Error kinds recorded on failed step outcomes.
const (
	KindPrecondition = "precondition"
	KindDivergence   = "divergence_conflict"
	KindConflict     = "conflict"
	KindTimeout      = "timeout"
	KindCancelled    = "cancelled"
	KindTool         = "tool_invocation"
	KindTestsFailed  = "tests_failed"
	KindInternal     = "internal"
)

// ErrorKind maps err onto the taxonomy recorded in step outcomes.
func ErrorKind(err error) string {
	var (
		pe *PreconditionError
		dc *DivergenceConflict
		ce *git.ConflictError
		ie *tool.InvocationError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &pe):
		return KindPrecondition
	case errors.As(err, &dc):
		return KindDivergence
	case errors.As(err, &ce):
		return KindConflict
	case tool.IsCancelled(err):
		return KindCancelled
	case tool.IsTimeout(err):
		return KindTimeout
	case errors.As(err, &ie):
		return KindTool
	default:
		return KindInternal
	}
}

// Diagnostic renders err with any captured tool output appended.
func Diagnostic(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	var ie *tool.InvocationError
	if errors.As(err, &ie) {
		if out := ie.Diagnostic(); out != "" {
			msg += "\n" + out
		}
	}
	return msg
}
