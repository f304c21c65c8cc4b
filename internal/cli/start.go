package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lucasnoah/branchflow/internal/config"
	"github.com/lucasnoah/branchflow/internal/flow"
	"github.com/lucasnoah/branchflow/internal/session"
)

var startCmd = &cobra.Command{
	Use:   "start <type>/<slug>",
	Short: "Create a branch from an up-to-date trunk and prepare it for work",
	Long: `Check the working tree, sync trunk, create the branch, publish it, install
dependencies and record a baseline test run. Ends in ready.

If the tree has uncommitted changes the command stops and exits 2. Answer by
running start again with --decision stash|commit|discard (and --message for
commit), or pass --decision up front.`,
	Args: exactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		branch := args[0]
		noTrack, _ := cmd.Flags().GetBool("no-track")

		a, err := newApp(cmd, func(cfg *config.Config) {
			if noTrack {
				off := false
				cfg.TrackRemote = &off
			}
		})
		if err != nil {
			return err
		}
		defer a.close()

		existing, err := a.store.Get(branch)
		if err == nil {
			if existing.Suspended() && existing.State == session.StateCleanCheck {
				d := decisionFrom(cmd)
				if d == nil {
					return a.finish(cmd, existing, nil)
				}
				err := a.engine.Resume(cmd.Context(), existing, *d)
				return a.finish(cmd, existing, err)
			}
			return &flow.PreconditionError{
				Reason: flow.ReasonBranchExists,
				Detail: fmt.Sprintf("a session for %q is already in progress (state %s)", branch, existing.State),
			}
		}

		ws, err := a.engine.Start(cmd.Context(), branch, decisionFrom(cmd))
		if ws == nil {
			return err
		}
		return a.finish(cmd, ws, err)
	},
}

func init() {
	startCmd.Flags().String("decision", "", "answer for uncommitted changes: stash, commit or discard")
	startCmd.Flags().String("message", "", "commit message when --decision=commit")
	startCmd.Flags().Bool("no-track", false, "do not push the new branch to the remote")
}
