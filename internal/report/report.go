// Package report renders a session checkpoint for people (text) and tools (JSON).
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/lucasnoah/branchflow/internal/checks"
	"github.com/lucasnoah/branchflow/internal/git"
	"github.com/lucasnoah/branchflow/internal/policy"
	"github.com/lucasnoah/branchflow/internal/session"
)

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Report is the status emitted at every checkpoint.
type Report struct {
	SessionID  string                   `json:"session_id"`
	State      session.State            `json:"state"`
	Branch     string                   `json:"branch"`
	Base       string                   `json:"base,omitempty"`
	BaseCommit string                   `json:"base_commit,omitempty"`
	Remote     string                   `json:"remote,omitempty"`
	LocalOnly  bool                     `json:"local_only,omitempty"`
	Pending    *session.DecisionRequest `json:"pending_decision,omitempty"`
	LastTest   *checks.TestSummary      `json:"last_test,omitempty"`
	Warnings   []string                 `json:"warnings,omitempty"`
	Divergence *git.DivergenceReport    `json:"divergence,omitempty"`
	Stale      bool                     `json:"stale"`

	SetupCommands []string `json:"setup_commands,omitempty"`
	TestCommands  []string `json:"test_commands,omitempty"`

	LastSuccessfulState session.State  `json:"last_successful_state,omitempty"`
	FailingStep         session.StepID `json:"failing_step,omitempty"`
	Diagnostic          string         `json:"diagnostic,omitempty"`

	LastOutcome *session.StepOutcome `json:"last_outcome,omitempty"`
	Steps       int                  `json:"steps"`
	UpdatedAt   time.Time            `json:"updated_at"`
}

// New builds a report from ws. Staleness is judged against st at now and adds
// a "resync recommended" warning; it never changes the session.
func New(ws *session.WorkflowSession, st policy.Staleness, now time.Time) *Report {
	r := &Report{
		SessionID:     ws.ID,
		State:         ws.State,
		Branch:        ws.Branch,
		Base:          ws.Base,
		BaseCommit:    ws.BaseCommit,
		Remote:        ws.Remote,
		LocalOnly:     ws.LocalOnly,
		Pending:       ws.Pending,
		LastTest:      ws.LastTest,
		Warnings:      append([]string(nil), ws.Warnings...),
		Divergence:    ws.Divergence,
		SetupCommands: ws.SetupCommands,
		TestCommands:  ws.TestCommands,
		LastOutcome:   ws.LastOutcome(),
		Steps:         len(ws.History),
		UpdatedAt:     ws.UpdatedAt,
	}

	if ws.State == session.StateFailed || ws.State == session.StateAborted {
		r.LastSuccessfulState = ws.LastSuccessfulState
		r.FailingStep = ws.FailingStep
		r.Diagnostic = ws.Diagnostic
	}

	switch ws.State {
	case session.StateReady, session.StateIntegrationReady:
		behind := 0
		if d := ws.Divergence; d != nil && d.Left == ws.Branch {
			behind = d.Behind
		}
		if stale, why := st.Stale(behind, ws.LastSync, now); stale {
			r.Stale = true
			r.Warnings = append(r.Warnings, "resync recommended: "+why)
		}
	}
	return r
}

// Write renders r in the given format.
func Write(w io.Writer, format string, r *Report) error {
	switch format {
	case FormatJSON:
		return r.WriteJSON(w)
	case FormatText, "":
		return r.WriteText(w)
	}
	return fmt.Errorf("unknown format %q (want text or json)", format)
}

// WriteJSON writes r as indented JSON.
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// WriteText writes a human-readable summary.
func (r *Report) WriteText(w io.Writer) error {
	var b strings.Builder

	fmt.Fprintf(&b, "%s %s\n", stateIcon(r), accentStyle.Render(r.Branch))
	row(&b, "state", stateStyle(r.State).Render(string(r.State)))
	if r.Base != "" {
		base := r.Base
		if r.BaseCommit != "" {
			base += " @ " + shortSHA(r.BaseCommit)
		}
		if r.LocalOnly {
			base += mutedStyle.Render(" (local only)")
		}
		row(&b, "base", base)
	}
	if d := r.Divergence; d != nil && d.Left == r.Branch {
		row(&b, "divergence", fmt.Sprintf("%d ahead, %d behind %s", d.Ahead, d.Behind, d.Right))
	}
	if t := r.LastTest; t != nil {
		if t.OK {
			row(&b, "tests", passStyle.Render(iconPass+" "+t.Summary))
		} else {
			row(&b, "tests", failStyle.Render(iconFail+" "+t.Summary))
		}
	}
	if len(r.SetupCommands) > 0 {
		row(&b, "setup", strings.Join(r.SetupCommands, "; "))
	}

	if p := r.Pending; p != nil {
		b.WriteString("\n")
		b.WriteString(warnStyle.Render(iconWait+" decision needed: "+p.Prompt) + "\n")
		for _, path := range p.Paths {
			b.WriteString(mutedStyle.Render("    "+path) + "\n")
		}
		fmt.Fprintf(&b, "  options: %s\n", strings.Join(p.Options, ", "))
	}

	if len(r.Warnings) > 0 {
		b.WriteString("\n")
		for _, msg := range r.Warnings {
			b.WriteString(warnStyle.Render(iconWarn+" "+msg) + "\n")
		}
	}

	if r.FailingStep != "" {
		b.WriteString("\n")
		b.WriteString(failStyle.Render(fmt.Sprintf("%s %s stopped at %s", iconFail, r.State, r.FailingStep)) + "\n")
		if r.LastSuccessfulState != "" {
			row(&b, "last good", string(r.LastSuccessfulState))
		}
		if r.Diagnostic != "" {
			b.WriteString("\n" + r.Diagnostic + "\n")
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func row(b *strings.Builder, label, value string) {
	fmt.Fprintf(b, "  %s %s\n", labelStyle.Render(label), value)
}

func stateIcon(r *Report) string {
	switch {
	case r.State == session.StateFailed || r.State == session.StateAborted:
		return failStyle.Render(iconFail)
	case r.Pending != nil:
		return warnStyle.Render(iconWait)
	case len(r.Warnings) > 0:
		return warnStyle.Render(iconWarn)
	}
	return passStyle.Render(iconPass)
}

func stateStyle(s session.State) lipgloss.Style {
	switch s {
	case session.StateFailed, session.StateAborted:
		return failStyle
	case session.StateReady, session.StateIntegrationReady, session.StateIntegrated, session.StateCleanedUp:
		return passStyle
	}
	return warnStyle
}

func shortSHA(sha string) string {
	if len(sha) > 8 {
		return sha[:8]
	}
	return sha
}
