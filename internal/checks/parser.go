package checks

// TestSummary is the normalized result of a test run.
type TestSummary struct {
	Passed  int    `json:"passed"`
	Failed  int    `json:"failed"`
	Skipped int    `json:"skipped"`
	Counted bool   `json:"counted"` // false when the output held no recognizable counts
	OK      bool   `json:"ok"`
	Summary string `json:"summary"`
	Output  string `json:"output,omitempty"` // tail of the output, kept on failure
}

// Parser converts raw test output into a TestSummary.
type Parser interface {
	Parse(stdout string, stderr string, exitCode int) TestSummary
}

// Parsers returns the registered parsers keyed by name.
func Parsers() map[string]Parser {
	return map[string]Parser{
		"gotest":  &GoTestParser{},
		"jest":    &JestParser{},
		"pytest":  &PytestParser{},
		"cargo":   &CargoParser{},
		"generic": &GenericParser{},
	}
}

// Lookup returns the named parser, falling back to the generic one.
func Lookup(name string) Parser {
	if p, ok := Parsers()[name]; ok {
		return p
	}
	return &GenericParser{}
}

// Known reports whether name is a registered parser.
func Known(name string) bool {
	_, ok := Parsers()[name]
	return ok
}
