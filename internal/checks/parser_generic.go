package checks

import (
	"fmt"

	"github.com/lucasnoah/branchflow/internal/tool"
)

// GenericParser is the fallback parser that captures exit code and actual output.
type GenericParser struct{}

// maxOutputLen caps how much stdout/stderr the parsers retain.
const maxOutputLen = 8000

func (p *GenericParser) Parse(stdout string, stderr string, exitCode int) TestSummary {
	passed := exitCode == 0
	summary := fmt.Sprintf("exit code %d, stdout=%d bytes, stderr=%d bytes", exitCode, len(stdout), len(stderr))
	if passed {
		summary = "passed (exit code 0)"
	}
	s := TestSummary{OK: passed, Summary: summary}
	if !passed {
		s.Output = tail(stdout, stderr)
	}
	return s
}

// tail joins the streams and keeps the end, where failures are usually reported.
func tail(stdout, stderr string) string {
	combined := stdout
	if stderr != "" {
		if combined != "" {
			combined += "\n"
		}
		combined += stderr
	}
	return tool.Tail(combined, maxOutputLen)
}

// finish fills the common fields once counts are known.
func finish(s TestSummary, stdout, stderr string, exitCode int) TestSummary {
	s.OK = exitCode == 0 && s.Failed == 0
	if s.Counted {
		s.Summary = fmt.Sprintf("%d passed, %d failed, %d skipped", s.Passed, s.Failed, s.Skipped)
	} else {
		s.Summary = fmt.Sprintf("exit code %d (no test counts found)", exitCode)
	}
	if !s.OK {
		s.Output = tail(stdout, stderr)
	}
	return s
}
