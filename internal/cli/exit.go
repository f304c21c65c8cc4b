package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lucasnoah/branchflow/internal/flow"
	"github.com/lucasnoah/branchflow/internal/session"
)

// Exit statuses.
const (
	ExitOK       = 0
	ExitFailed   = 1
	ExitDecision = 2
	ExitInvalid  = 3
)

// exitError carries a specific exit status out of a command.
type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string {
	return e.msg
}

// usageError is an invalid invocation: bad flags, arguments or config.
type usageError struct {
	msg string
}

func (e *usageError) Error() string {
	return e.msg
}

func usageErrorf(format string, args ...interface{}) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

// ExitCode maps an error returned by Execute to a process exit status.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	var ue *usageError
	if errors.As(err, &ue) || flow.IsPrecondition(err) {
		return ExitInvalid
	}
	return ExitFailed
}

// outcomeError turns the engine's verdict on ws into the command's error.
func outcomeError(ws *session.WorkflowSession, err error) error {
	if flow.IsPrecondition(err) {
		return err
	}
	if ws != nil && ws.State == session.StateFailed {
		msg := fmt.Sprintf("%s failed at %s", ws.Branch, ws.FailingStep)
		if err != nil {
			msg += ": " + err.Error()
		}
		return &exitError{code: ExitFailed, msg: msg}
	}
	if err != nil {
		return err
	}
	if ws != nil && ws.Suspended() {
		return &exitError{code: ExitDecision, msg: fmt.Sprintf("%s: awaiting decision (%s): %s",
			ws.Branch, strings.Join(ws.Pending.Options, "|"), ws.Pending.Prompt)}
	}
	return nil
}

// exactArgs is cobra.ExactArgs reported as an invalid invocation.
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			return &usageError{msg: err.Error()}
		}
		return nil
	}
}
