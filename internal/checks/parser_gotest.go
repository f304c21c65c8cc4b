package checks

import (
	"regexp"
	"strings"
)

// GoTestParser reads `go test` output. With -v it counts individual tests,
// otherwise it counts package result lines.
type GoTestParser struct{}

var (
	goTestLineRe = regexp.MustCompile(`^\s*--- (PASS|FAIL|SKIP): `)
	goPkgOkRe    = regexp.MustCompile(`^ok\s+\S+`)
	goPkgFailRe  = regexp.MustCompile(`^FAIL\s+\S+`)
	goPkgNoneRe  = regexp.MustCompile(`^\?\s+\S+\s+\[no test files\]`)
)

func (p *GoTestParser) Parse(stdout string, stderr string, exitCode int) TestSummary {
	var tests, pkgs TestSummary
	for _, line := range strings.Split(stdout+"\n"+stderr, "\n") {
		if m := goTestLineRe.FindStringSubmatch(line); m != nil {
			tests.Counted = true
			switch m[1] {
			case "PASS":
				tests.Passed++
			case "FAIL":
				tests.Failed++
			case "SKIP":
				tests.Skipped++
			}
			continue
		}
		switch {
		case goPkgOkRe.MatchString(line):
			pkgs.Counted = true
			pkgs.Passed++
		case goPkgFailRe.MatchString(line):
			pkgs.Counted = true
			pkgs.Failed++
		case goPkgNoneRe.MatchString(line):
			pkgs.Counted = true
			pkgs.Skipped++
		}
	}

	s := pkgs
	if tests.Counted {
		s = tests
	}
	return finish(s, stdout, stderr, exitCode)
}
