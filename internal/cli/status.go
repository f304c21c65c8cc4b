package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/lucasnoah/branchflow/internal/report"
	"github.com/lucasnoah/branchflow/internal/session"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the active session, or every checkpointed session with --all",
	Args:  exactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.close()

		all, _ := cmd.Flags().GetBool("all")
		branch := branchFlag(cmd)
		if !all && branch == "" {
			if _, err := a.store.Active(); errors.Is(err, session.ErrNotFound) {
				all = true
			}
		}
		if all {
			return a.statusAll(cmd)
		}

		ws, err := a.load(branch)
		if err != nil {
			return err
		}
		if err := a.engine.Inspect(cmd.Context(), ws); err != nil {
			fmt.Fprintf(a.progress, "  → divergence not refreshed: %v\n", err)
		}
		return a.report(cmd, ws)
	},
}

func (a *app) statusAll(cmd *cobra.Command) error {
	sessions, err := a.store.List()
	if err != nil {
		return err
	}
	now := time.Now().UTC()

	if flagFormat == report.FormatJSON {
		reports := make([]*report.Report, 0, len(sessions))
		for i := range sessions {
			reports = append(reports, report.New(&sessions[i], a.cfg.Staleness(), now))
		}
		return writeJSON(cmd.OutOrStdout(), reports)
	}

	if len(sessions) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No sessions found.")
		return nil
	}

	active, _ := a.store.Active()
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "  %-32s %-18s %-20s %s\n", "BRANCH", "STATE", "PENDING", "UPDATED")
	fmt.Fprintf(w, "  %-32s %-18s %-20s %s\n",
		strings.Repeat("-", 32),
		strings.Repeat("-", 18),
		strings.Repeat("-", 20),
		strings.Repeat("-", 7))
	for _, ws := range sessions {
		marker := " "
		if ws.Branch == active {
			marker = "*"
		}
		pending := ""
		if ws.Pending != nil {
			pending = string(ws.Pending.Kind)
		}
		name := ws.Branch
		if len(name) > 32 {
			name = name[:29] + "..."
		}
		fmt.Fprintf(w, "%s %-32s %-18s %-20s %s\n",
			marker, name, ws.State, pending, ago(now.Sub(ws.UpdatedAt)))
	}
	return nil
}

func ago(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 48*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}

func init() {
	statusCmd.Flags().Bool("all", false, "list every checkpointed session")
}

// writeJSON encodes v as indented JSON followed by a newline.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}
