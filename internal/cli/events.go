package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lucasnoah/branchflow/internal/db"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "List recorded step outcomes from the event log",
	Args:  exactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		branch, _ := cmd.Flags().GetString("branch")
		sessionID, _ := cmd.Flags().GetString("session")
		if limit <= 0 {
			return usageErrorf("--limit must be positive")
		}

		d, err := openConfiguredDB(cmd.Context())
		if err != nil {
			return err
		}
		defer d.Close()
		if err := d.Migrate(cmd.Context()); err != nil {
			return err
		}

		var events []db.StepEvent
		if sessionID != "" {
			events, err = d.SessionHistory(cmd.Context(), sessionID)
		} else {
			events, err = d.RecentEvents(cmd.Context(), branch, limit)
		}
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		if flagFormat == "json" {
			return writeJSON(w, events)
		}
		if len(events) == 0 {
			fmt.Fprintln(w, "No events recorded.")
			return nil
		}

		fmt.Fprintf(w, "%-20s %-28s %-14s %-20s %s\n", "TIME", "BRANCH", "STEP", "STATUS", "RESULT")
		fmt.Fprintf(w, "%-20s %-28s %-14s %-20s %s\n",
			strings.Repeat("-", 20),
			strings.Repeat("-", 28),
			strings.Repeat("-", 14),
			strings.Repeat("-", 20),
			strings.Repeat("-", 6))
		for _, e := range events {
			result := e.Result
			if e.ErrorKind != "" {
				result = e.ErrorKind
				if e.TimedOut {
					result += " (timeout)"
				}
			}
			name := e.Branch
			if len(name) > 28 {
				name = name[:25] + "..."
			}
			fmt.Fprintf(w, "%-20s %-28s %-14s %-20s %s\n",
				e.RecordedAt.Local().Format("2006-01-02 15:04:05"), name, e.Step, e.Status, result)
		}
		return nil
	},
}

func init() {
	eventsCmd.Flags().Int("limit", 20, "maximum number of events")
	eventsCmd.Flags().String("branch", "", "only events for this branch")
	eventsCmd.Flags().String("session", "", "every event of one session, oldest first")
}
