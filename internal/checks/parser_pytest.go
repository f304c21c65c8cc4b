package checks

import (
	"regexp"
	"strings"
)

// PytestParser reads pytest's closing summary line, e.g.
// "===== 2 failed, 10 passed, 1 skipped in 0.52s =====".
type PytestParser struct{}

var pytestSummaryRe = regexp.MustCompile(`\d+ (passed|failed|skipped|errors?).* in [0-9.]+s`)

func (p *PytestParser) Parse(stdout string, stderr string, exitCode int) TestSummary {
	var s TestSummary
	for _, line := range strings.Split(stripANSI(stdout), "\n") {
		if pytestSummaryRe.MatchString(line) {
			s = TestSummary{}
			addCounts(&s, line)
		}
	}
	return finish(s, stdout, stderr, exitCode)
}
