package checks

import (
	"regexp"
	"strconv"
	"strings"
)

// JestParser reads the "Tests:" summary line printed by jest and vitest.
//
//	jest:   Tests:       1 failed, 2 skipped, 10 passed, 13 total
//	vitest: Tests  1 failed | 10 passed (11)
type JestParser struct{}

var (
	jestTestsLineRe = regexp.MustCompile(`^\s*Tests:?\s+`)
	countRe         = regexp.MustCompile(`(\d+) (passed|failed|skipped|todo|pending|errors?|ignored)`)
)

func (p *JestParser) Parse(stdout string, stderr string, exitCode int) TestSummary {
	var s TestSummary
	for _, line := range strings.Split(stripANSI(stdout+"\n"+stderr), "\n") {
		if !jestTestsLineRe.MatchString(line) {
			continue
		}
		// Later summaries (watch reruns) replace earlier ones.
		s = TestSummary{}
		addCounts(&s, line)
	}
	return finish(s, stdout, stderr, exitCode)
}

// addCounts accumulates "<n> <word>" pairs from line into s.
func addCounts(s *TestSummary, line string) {
	for _, m := range countRe.FindAllStringSubmatch(line, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		s.Counted = true
		switch m[2] {
		case "passed":
			s.Passed += n
		case "failed", "error", "errors":
			s.Failed += n
		default:
			s.Skipped += n
		}
	}
}

var ansiRe = regexp.MustCompile(`\x1b\[[0-9;]*m`)

func stripANSI(s string) string {
	return ansiRe.ReplaceAllString(s, "")
}
