package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/shlex"
)

// Command is an opaque subprocess: a tool plus its arguments.
type Command struct {
	Tool string   `json:"tool" yaml:"tool"`
	Args []string `json:"args,omitempty" yaml:"args"`
}

// String renders the command as a command line that ParseCommand reads back
// to the same tool and arguments.
func (c Command) String() string {
	if c.IsZero() {
		return ""
	}
	parts := make([]string, 0, len(c.Args)+1)
	parts = append(parts, quote(c.Tool))
	for _, a := range c.Args {
		parts = append(parts, quote(a))
	}
	return strings.Join(parts, " ")
}

func quote(s string) string {
	if s == "" {
		return "''"
	}
	if !strings.ContainsAny(s, " \t\n'\"\\#") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}

// IsZero reports whether no command is set.
func (c Command) IsZero() bool {
	return c.Tool == ""
}

// ParseCommand splits a command line with shell-style quoting, so
// "sh -c 'go test ./... && echo ok'" yields two arguments for sh. The line is
// never handed to a shell. An empty line gives the zero Command.
func ParseCommand(line string) (Command, error) {
	fields, err := shlex.Split(line)
	if err != nil {
		return Command{}, fmt.Errorf("parse command %q: %w", line, err)
	}
	if len(fields) == 0 {
		return Command{}, nil
	}
	return Command{Tool: fields[0], Args: fields[1:]}, nil
}

// Entry maps one manifest file to its install and test invocations.
type Entry struct {
	File    string  `json:"file"`
	Group   string  `json:"group"` // only the first present manifest per group is used
	Install Command `json:"install"`
	Test    Command `json:"test"`
	Parser  string  `json:"parser"` // test output parser name
}

// Detected is a manifest found in a working directory.
type Detected struct {
	Entry
	Path string `json:"path"`
}

func cmd(line string) Command {
	c, err := ParseCommand(line)
	if err != nil {
		panic(err)
	}
	return c
}

// DefaultTable lists known manifests in priority order. Lockfiles come before
// the bare package manifest so the matching package manager wins.
var DefaultTable = []Entry{
	{File: "go.mod", Group: "go", Install: cmd("go mod download"), Test: cmd("go test ./..."), Parser: "gotest"},
	{File: "pnpm-lock.yaml", Group: "node", Install: cmd("pnpm install --frozen-lockfile"), Test: cmd("pnpm test"), Parser: "jest"},
	{File: "yarn.lock", Group: "node", Install: cmd("yarn install --frozen-lockfile"), Test: cmd("yarn test"), Parser: "jest"},
	{File: "package-lock.json", Group: "node", Install: cmd("npm ci"), Test: cmd("npm test"), Parser: "jest"},
	{File: "package.json", Group: "node", Install: cmd("npm install"), Test: cmd("npm test"), Parser: "jest"},
	{File: "poetry.lock", Group: "python", Install: cmd("poetry install"), Test: cmd("poetry run pytest"), Parser: "pytest"},
	{File: "requirements.txt", Group: "python", Install: cmd("pip install -r requirements.txt"), Test: cmd("pytest"), Parser: "pytest"},
	{File: "pyproject.toml", Group: "python", Install: cmd("pip install -e ."), Test: cmd("pytest"), Parser: "pytest"},
	{File: "Cargo.toml", Group: "rust", Install: cmd("cargo fetch"), Test: cmd("cargo test"), Parser: "cargo"},
	{File: "Gemfile", Group: "ruby", Install: cmd("bundle install"), Test: cmd("bundle exec rake test"), Parser: "generic"},
	{File: "pom.xml", Group: "jvm", Install: cmd("mvn -q -DskipTests install"), Test: cmd("mvn test"), Parser: "generic"},
	{File: "build.gradle", Group: "jvm", Install: cmd("./gradlew assemble"), Test: cmd("./gradlew test"), Parser: "generic"},
	{File: "build.gradle.kts", Group: "jvm", Install: cmd("./gradlew assemble"), Test: cmd("./gradlew test"), Parser: "generic"},
	{File: "composer.json", Group: "php", Install: cmd("composer install"), Test: cmd("composer test"), Parser: "generic"},
	{File: "mix.exs", Group: "elixir", Install: cmd("mix deps.get"), Test: cmd("mix test"), Parser: "generic"},
}

// Table is an ordered manifest lookup.
type Table struct {
	entries []Entry
}

// NewTable builds a table with overrides placed ahead of the defaults. An
// override for a file already in the defaults replaces that entry in place.
func NewTable(overrides []Entry) *Table {
	byFile := make(map[string]Entry, len(overrides))
	var extra []Entry
	for _, o := range overrides {
		byFile[o.File] = o
	}
	var entries []Entry
	seen := make(map[string]bool)
	for _, d := range DefaultTable {
		if o, ok := byFile[d.File]; ok {
			entries = append(entries, merge(d, o))
			seen[d.File] = true
			continue
		}
		entries = append(entries, d)
	}
	for _, o := range overrides {
		if !seen[o.File] {
			if o.Group == "" {
				o.Group = o.File
			}
			if o.Parser == "" {
				o.Parser = "generic"
			}
			extra = append(extra, o)
			seen[o.File] = true
		}
	}
	return &Table{entries: append(extra, entries...)}
}

func merge(base, o Entry) Entry {
	if o.Group != "" {
		base.Group = o.Group
	}
	if !o.Install.IsZero() {
		base.Install = o.Install
	}
	if !o.Test.IsZero() {
		base.Test = o.Test
	}
	if o.Parser != "" {
		base.Parser = o.Parser
	}
	return base
}

// Entries returns the table in lookup order.
func (t *Table) Entries() []Entry {
	return append([]Entry(nil), t.entries...)
}

// Detect returns the manifests present in dir, at most one per group, in
// table order.
func (t *Table) Detect(dir string) []Detected {
	var found []Detected
	groups := make(map[string]bool)
	for _, e := range t.entries {
		if groups[e.Group] {
			continue
		}
		path := filepath.Join(dir, e.File)
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}
		groups[e.Group] = true
		found = append(found, Detected{Entry: e, Path: path})
	}
	return found
}

// InstallCommands returns the non-empty install commands of detected manifests.
func InstallCommands(found []Detected) []Command {
	var out []Command
	for _, d := range found {
		if !d.Install.IsZero() {
			out = append(out, d.Install)
		}
	}
	return out
}

// TestCommands returns the non-empty test commands with their parser names.
func TestCommands(found []Detected) []Detected {
	var out []Detected
	for _, d := range found {
		if !d.Test.IsZero() {
			out = append(out, d)
		}
	}
	return out
}
