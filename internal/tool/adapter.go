package tool

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// DefaultTimeout bounds an invocation that does not set its own timeout.
const DefaultTimeout = 2 * time.Minute

// Invocation describes one external tool call.
type Invocation struct {
	Tool     string
	Args     []string
	Dir      string
	Timeout  time.Duration
	ReadOnly bool // read-only calls may be retried once on transient failure
	Env      []string
}

// String renders the invocation as a command line for logs and diagnostics.
func (inv Invocation) String() string {
	if len(inv.Args) == 0 {
		return inv.Tool
	}
	return inv.Tool + " " + strings.Join(inv.Args, " ")
}

// Result is the captured outcome of a completed invocation.
type Result struct {
	ExitCode int           `json:"exit_code"`
	Stdout   string        `json:"stdout,omitempty"`
	Stderr   string        `json:"stderr,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Runner executes a process. Interface for testing.
type Runner interface {
	Run(ctx context.Context, dir string, env []string, name string, args ...string) (stdout string, stderr string, exitCode int, err error)
}

// ExecRunner implements Runner with os/exec.
type ExecRunner struct{}

func (e *ExecRunner) Run(ctx context.Context, dir string, env []string, name string, args ...string) (string, string, int, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	if len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}

	var stdoutBuf, stderrBuf strings.Builder
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	err := cmd.Run()
	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && ctx.Err() == nil {
			exitCode = exitErr.ExitCode()
		} else {
			return stdoutBuf.String(), stderrBuf.String(), -1, fmt.Errorf("exec %s: %w", name, err)
		}
	}
	return stdoutBuf.String(), stderrBuf.String(), exitCode, nil
}

// Adapter is the single path every step takes to reach git and build tooling.
// It applies timeouts, retries read-only calls once, and logs each call.
type Adapter struct {
	runner     Runner
	progress   io.Writer
	retryDelay time.Duration
	calls      atomic.Int64
}

// NewAdapter creates an Adapter around the given runner.
func NewAdapter(runner Runner) *Adapter {
	return &Adapter{runner: runner, retryDelay: 2 * time.Second}
}

// SetProgress sets a writer for per-invocation log lines; nil is silent.
func (a *Adapter) SetProgress(w io.Writer) {
	a.progress = w
}

// SetRetryDelay overrides the pause before the single read-only retry (for testing).
func (a *Adapter) SetRetryDelay(d time.Duration) {
	a.retryDelay = d
}

// Calls returns the number of process launches made through the adapter.
func (a *Adapter) Calls() int64 {
	return a.calls.Load()
}

func (a *Adapter) logf(format string, args ...interface{}) {
	if a.progress != nil {
		fmt.Fprintf(a.progress, "    $ "+format+"\n", args...)
	}
}

// Invoke runs inv and returns its result. A non-zero exit or a timeout is
// returned as *InvocationError alongside the captured result.
func (a *Adapter) Invoke(ctx context.Context, inv Invocation) (*Result, error) {
	if !inv.ReadOnly {
		return a.invokeOnce(ctx, inv)
	}

	var (
		res     *Result
		lastErr error
	)
	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(a.retryDelay), 1), ctx)
	err := backoff.Retry(func() error {
		res, lastErr = a.invokeOnce(ctx, inv)
		if lastErr == nil {
			return nil
		}
		if IsTransient(lastErr) {
			a.logf("transient failure, retrying: %s", inv)
			return lastErr
		}
		return backoff.Permanent(lastErr)
	}, bo)
	if err != nil {
		// Prefer the typed invocation error over backoff's wrapping.
		if lastErr != nil {
			return res, lastErr
		}
		return res, err
	}
	return res, nil
}

func (a *Adapter) invokeOnce(ctx context.Context, inv Invocation) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, &InvocationError{Tool: inv.Tool, Args: inv.Args, ExitCode: -1, Cancelled: true, Err: err}
	}

	timeout := inv.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	a.calls.Add(1)
	a.logf("%s", inv)

	start := time.Now()
	stdout, stderr, exitCode, err := a.runner.Run(runCtx, inv.Dir, inv.Env, inv.Tool, inv.Args...)
	res := &Result{
		ExitCode: exitCode,
		Stdout:   stdout,
		Stderr:   stderr,
		Duration: time.Since(start),
	}

	if err != nil || runCtx.Err() != nil {
		ie := &InvocationError{
			Tool:     inv.Tool,
			Args:     inv.Args,
			ExitCode: -1,
			Stdout:   stdout,
			Stderr:   stderr,
			Err:      err,
		}
		switch {
		case ctx.Err() != nil:
			ie.Cancelled = true
			ie.Err = ctx.Err()
		case errors.Is(runCtx.Err(), context.DeadlineExceeded):
			ie.Timeout = true
			ie.Err = fmt.Errorf("timeout after %s", timeout)
		}
		res.ExitCode = -1
		return res, ie
	}

	if exitCode != 0 {
		return res, &InvocationError{
			Tool:     inv.Tool,
			Args:     inv.Args,
			ExitCode: exitCode,
			Stdout:   stdout,
			Stderr:   stderr,
		}
	}
	return res, nil
}
