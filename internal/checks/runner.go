package checks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lucasnoah/branchflow/internal/manifest"
	"github.com/lucasnoah/branchflow/internal/tool"
)

// Result holds the structured output of one test command.
type Result struct {
	Command    string      `json:"command"`
	Parser     string      `json:"parser"`
	ExitCode   int         `json:"exit_code"`
	DurationMs int         `json:"duration_ms"`
	Summary    TestSummary `json:"summary"`
}

// Runner executes test commands through the tool adapter and parses their output.
type Runner struct {
	tool    *tool.Adapter
	timeout time.Duration
}

// NewRunner creates a Runner; timeout bounds each command.
func NewRunner(adapter *tool.Adapter, timeout time.Duration) *Runner {
	if timeout <= 0 {
		timeout = 15 * time.Minute
	}
	return &Runner{tool: adapter, timeout: timeout}
}

// Run executes cmd in dir. A failing test run is a result, not an error;
// errors are reserved for commands that time out, are cancelled, or cannot start.
func (r *Runner) Run(ctx context.Context, dir string, cmd manifest.Command, parser string) (*Result, error) {
	res, err := r.tool.Invoke(ctx, tool.Invocation{
		Tool:    cmd.Tool,
		Args:    cmd.Args,
		Dir:     dir,
		Timeout: r.timeout,
	})
	if err != nil {
		var ie *tool.InvocationError
		if !errors.As(err, &ie) || ie.Timeout || ie.Cancelled || ie.Err != nil {
			return nil, fmt.Errorf("run tests %q: %w", cmd, err)
		}
	}

	if parser == "" {
		parser = "generic"
	}
	return &Result{
		Command:    cmd.String(),
		Parser:     parser,
		ExitCode:   res.ExitCode,
		DurationMs: int(res.Duration.Milliseconds()),
		Summary:    Lookup(parser).Parse(res.Stdout, res.Stderr, res.ExitCode),
	}, nil
}

// Aggregate combines per-command results into one summary.
func Aggregate(results []*Result) TestSummary {
	total := TestSummary{OK: true}
	var output string
	for _, r := range results {
		s := r.Summary
		total.Passed += s.Passed
		total.Failed += s.Failed
		total.Skipped += s.Skipped
		total.Counted = total.Counted || s.Counted
		if !s.OK {
			total.OK = false
			if output != "" {
				output += "\n"
			}
			output += s.Output
		}
	}
	total.Output = output
	switch {
	case len(results) == 0:
		total.Summary = "no tests run"
	case total.Counted:
		total.Summary = fmt.Sprintf("%d passed, %d failed, %d skipped", total.Passed, total.Failed, total.Skipped)
	case total.OK:
		total.Summary = "passed"
	default:
		total.Summary = "failed"
	}
	return total
}
