package checks

import (
	"strings"
)

// CargoParser sums the "test result:" lines cargo prints per test binary.
type CargoParser struct{}

func (p *CargoParser) Parse(stdout string, stderr string, exitCode int) TestSummary {
	var s TestSummary
	for _, line := range strings.Split(stdout, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "test result:") {
			addCounts(&s, line)
		}
	}
	return finish(s, stdout, stderr, exitCode)
}
