package checks

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestGenericParser(t *testing.T) {
	p := &GenericParser{}
	r := p.Parse("all good", "", 0)
	if !r.OK || r.Summary != "passed (exit code 0)" {
		t.Errorf("unexpected result: %+v", r)
	}
	r = p.Parse("out", "boom", 2)
	if r.OK {
		t.Error("expected failure")
	}
	if !strings.Contains(r.Output, "boom") {
		t.Errorf("output should include stderr, got %q", r.Output)
	}
}

func TestGenericParser_TruncatesOnRuneBoundary(t *testing.T) {
	p := &GenericParser{}
	r := p.Parse(strings.Repeat("テスト失敗 ", maxOutputLen/5), "", 1)
	if !strings.HasPrefix(r.Output, "…(truncated)") {
		t.Fatalf("expected truncated output, got %d bytes", len(r.Output))
	}
	if !utf8.ValidString(r.Output) {
		t.Error("truncated output is not valid UTF-8")
	}
}

func TestGoTestParser_Verbose(t *testing.T) {
	out := `=== RUN   TestA
--- PASS: TestA (0.00s)
=== RUN   TestB
--- FAIL: TestB (0.01s)
    b_test.go:10: nope
=== RUN   TestC
--- SKIP: TestC (0.00s)
FAIL
FAIL	example.com/pkg	0.02s
`
	r := (&GoTestParser{}).Parse(out, "", 1)
	if !r.Counted || r.Passed != 1 || r.Failed != 1 || r.Skipped != 1 {
		t.Errorf("unexpected counts: %+v", r)
	}
	if r.OK {
		t.Error("expected failure")
	}
	if r.Summary != "1 passed, 1 failed, 1 skipped" {
		t.Errorf("summary = %q", r.Summary)
	}
}

func TestGoTestParser_PackageLines(t *testing.T) {
	out := "ok  \texample.com/a\t0.01s\nok  \texample.com/b\t(cached)\n?   \texample.com/c\t[no test files]\n"
	r := (&GoTestParser{}).Parse(out, "", 0)
	if !r.OK || r.Passed != 2 || r.Skipped != 1 || r.Failed != 0 {
		t.Errorf("unexpected result: %+v", r)
	}
}

func TestJestParser(t *testing.T) {
	out := "Test Suites: 1 failed, 3 passed, 4 total\nTests:       1 failed, 2 skipped, 10 passed, 13 total\n"
	r := (&JestParser{}).Parse(out, "", 1)
	if r.Passed != 10 || r.Failed != 1 || r.Skipped != 2 {
		t.Errorf("unexpected counts: %+v", r)
	}
}

func TestJestParser_Vitest(t *testing.T) {
	out := " Test Files  2 passed (2)\n      Tests  \x1b[32m12 passed\x1b[39m (12)\n"
	r := (&JestParser{}).Parse(out, "", 0)
	if !r.OK || r.Passed != 12 || r.Failed != 0 {
		t.Errorf("unexpected result: %+v", r)
	}
}

func TestPytestParser(t *testing.T) {
	out := "collected 13 items\n\n...F.s\n\n==== 1 failed, 11 passed, 1 skipped in 0.52s ====\n"
	r := (&PytestParser{}).Parse(out, "", 1)
	if r.Passed != 11 || r.Failed != 1 || r.Skipped != 1 {
		t.Errorf("unexpected counts: %+v", r)
	}
	if r.OK {
		t.Error("expected failure")
	}
}

func TestCargoParser_SumsBinaries(t *testing.T) {
	out := `running 3 tests
test result: ok. 3 passed; 0 failed; 1 ignored; 0 measured; 0 filtered out

running 2 tests
test result: FAILED. 1 passed; 1 failed; 0 ignored; 0 measured; 0 filtered out
`
	r := (&CargoParser{}).Parse(out, "", 101)
	if r.Passed != 4 || r.Failed != 1 || r.Skipped != 1 {
		t.Errorf("unexpected counts: %+v", r)
	}
}

func TestParser_NoCounts(t *testing.T) {
	r := (&PytestParser{}).Parse("ImportError: no module", "", 4)
	if r.Counted || r.OK {
		t.Errorf("unexpected result: %+v", r)
	}
	if !strings.Contains(r.Summary, "no test counts") {
		t.Errorf("summary = %q", r.Summary)
	}
}

func TestLookup_FallsBackToGeneric(t *testing.T) {
	if _, ok := Lookup("nope").(*GenericParser); !ok {
		t.Error("unknown parser should fall back to generic")
	}
	if !Known("gotest") || Known("nope") {
		t.Error("Known() mismatch")
	}
}
