package manifest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func touch(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, n := range names {
		if err := os.WriteFile(filepath.Join(dir, n), []byte("{}"), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestDetect_None(t *testing.T) {
	dir := t.TempDir()
	if found := NewTable(nil).Detect(dir); len(found) != 0 {
		t.Errorf("expected nothing, got %+v", found)
	}
}

func TestDetect_GoModule(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "go.mod")

	found := NewTable(nil).Detect(dir)
	if len(found) != 1 {
		t.Fatalf("expected 1 manifest, got %d", len(found))
	}
	if found[0].Install.String() != "go mod download" {
		t.Errorf("install = %q", found[0].Install)
	}
	if found[0].Test.String() != "go test ./..." {
		t.Errorf("test = %q", found[0].Test)
	}
	if found[0].Parser != "gotest" {
		t.Errorf("parser = %q", found[0].Parser)
	}
}

func TestDetect_LockfileWinsWithinGroup(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "package.json", "yarn.lock")

	found := NewTable(nil).Detect(dir)
	if len(found) != 1 {
		t.Fatalf("expected 1 node manifest, got %+v", found)
	}
	if found[0].File != "yarn.lock" {
		t.Errorf("expected yarn.lock to win, got %s", found[0].File)
	}
}

func TestDetect_MultipleGroupsInTableOrder(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "requirements.txt", "go.mod", "package-lock.json")

	found := NewTable(nil).Detect(dir)
	if len(found) != 3 {
		t.Fatalf("expected 3 manifests, got %d", len(found))
	}
	want := []string{"go.mod", "package-lock.json", "requirements.txt"}
	for i, w := range want {
		if found[i].File != w {
			t.Errorf("found[%d] = %s, want %s", i, found[i].File, w)
		}
	}
	if cmds := InstallCommands(found); len(cmds) != 3 || cmds[1].String() != "npm ci" {
		t.Errorf("install commands = %v", cmds)
	}
}

func TestDetect_IgnoresDirectories(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "go.mod"), 0755); err != nil {
		t.Fatal(err)
	}
	if found := NewTable(nil).Detect(dir); len(found) != 0 {
		t.Errorf("directory named go.mod should not match, got %+v", found)
	}
}

func TestNewTable_OverrideReplacesCommands(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "go.mod")

	table := NewTable([]Entry{{File: "go.mod", Test: mustParse(t, "go test -race ./...")}})
	found := table.Detect(dir)
	if len(found) != 1 {
		t.Fatalf("expected 1 manifest, got %d", len(found))
	}
	if found[0].Test.String() != "go test -race ./..." {
		t.Errorf("test = %q", found[0].Test)
	}
	if found[0].Install.String() != "go mod download" {
		t.Errorf("install should keep default, got %q", found[0].Install)
	}
}

func TestNewTable_CustomEntryFirst(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "Makefile", "go.mod")

	table := NewTable([]Entry{{File: "Makefile", Install: mustParse(t, "make deps"), Test: mustParse(t, "make test")}})
	found := table.Detect(dir)
	if len(found) != 2 {
		t.Fatalf("expected 2 manifests, got %d", len(found))
	}
	if found[0].File != "Makefile" || found[0].Parser != "generic" {
		t.Errorf("custom entry should come first with generic parser, got %+v", found[0])
	}
}

func mustParse(t *testing.T, line string) Command {
	t.Helper()
	c, err := ParseCommand(line)
	if err != nil {
		t.Fatalf("ParseCommand(%q): %v", line, err)
	}
	return c
}

func TestParseCommand(t *testing.T) {
	c := mustParse(t, "  npm   run test ")
	if c.Tool != "npm" || len(c.Args) != 2 || c.Args[1] != "test" {
		t.Errorf("ParseCommand = %+v", c)
	}
	if !mustParse(t, "").IsZero() {
		t.Error("empty line should give zero command")
	}
}

func TestParseCommand_Quoting(t *testing.T) {
	c := mustParse(t, `sh -c 'go test ./... && echo ok'`)
	if c.Tool != "sh" || len(c.Args) != 2 {
		t.Fatalf("ParseCommand = %+v", c)
	}
	if c.Args[0] != "-c" || c.Args[1] != "go test ./... && echo ok" {
		t.Errorf("args = %q", c.Args)
	}

	c = mustParse(t, `pytest -k "slow and not db"`)
	if len(c.Args) != 2 || c.Args[1] != "slow and not db" {
		t.Errorf("double-quoted args = %q", c.Args)
	}
}

func TestParseCommand_Unterminated(t *testing.T) {
	if _, err := ParseCommand(`sh -c 'go test`); err == nil {
		t.Error("unterminated quote should be an error")
	}
}

func TestCommandString_RoundTrip(t *testing.T) {
	for _, c := range []Command{
		{Tool: "go", Args: []string{"test", "./..."}},
		{Tool: "sh", Args: []string{"-c", "go test ./... && echo ok"}},
		{Tool: "echo", Args: []string{"it's done"}},
	} {
		got := mustParse(t, c.String())
		if got.Tool != c.Tool || strings.Join(got.Args, "|") != strings.Join(c.Args, "|") {
			t.Errorf("round trip of %+v via %q gave %+v", c, c.String(), got)
		}
	}
	if s := (Command{Tool: "go", Args: []string{"test", "./..."}}).String(); s != "go test ./..." {
		t.Errorf("plain command rendered as %q", s)
	}
}
