package cli

import (
	"github.com/spf13/cobra"
)

var resyncCmd = &cobra.Command{
	Use:   "resync",
	Short: "Bring the branch up to date with trunk",
	Long: `Fetch and compare the branch with trunk. If trunk has moved on the command
asks whether to rebase or merge (exit 2); answer with --decision rebase|merge.
Conflicts stop the operation and ask again: resolve the files, then
--decision continue (optionally --paths), or --decision abort.`,
	Args: exactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.close()

		ws, err := a.load(branchFlag(cmd))
		if err != nil {
			return err
		}
		err = a.engine.Resync(cmd.Context(), ws, decisionFrom(cmd))
		return a.finish(cmd, ws, err)
	},
}

var integrateCmd = &cobra.Command{
	Use:   "integrate",
	Short: "Push the branch for review (pr) or merge it into trunk (merge)",
	Long: `Resync if needed, then integrate. In pr mode the branch is pushed (with a
lease if it was rebased) ready for a pull request. In merge mode it is merged
into trunk with a merge commit and trunk is pushed.`,
	Args: exactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.close()

		ws, err := a.load(branchFlag(cmd))
		if err != nil {
			return err
		}
		mode, _ := cmd.Flags().GetString("mode")
		err = a.engine.Integrate(cmd.Context(), ws, mode, decisionFrom(cmd))
		return a.finish(cmd, ws, err)
	},
}

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete the branch locally and on the remote",
	Long: `Delete the branch once it is merged into trunk. An unmerged branch is
refused unless --force is given.`,
	Args: exactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.close()

		ws, err := a.load(branchFlag(cmd))
		if err != nil {
			return err
		}
		force, _ := cmd.Flags().GetBool("force")
		err = a.engine.Cleanup(cmd.Context(), ws, force)
		return a.finish(cmd, ws, err)
	},
}

var abortCmd = &cobra.Command{
	Use:   "abort",
	Short: "End the session without undoing completed steps",
	Args:  exactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.close()

		ws, err := a.load(branchFlag(cmd))
		if err != nil {
			return err
		}
		reason, _ := cmd.Flags().GetString("reason")
		a.engine.Abort(ws, reason)
		return a.finish(cmd, ws, nil)
	},
}

func branchFlag(cmd *cobra.Command) string {
	b, _ := cmd.Flags().GetString("branch")
	return b
}

func init() {
	for _, c := range []*cobra.Command{resyncCmd, integrateCmd, cleanupCmd, abortCmd, statusCmd} {
		c.Flags().String("branch", "", "session branch (default: the active session)")
	}

	resyncCmd.Flags().String("decision", "", "answer: rebase, merge, continue or abort")
	resyncCmd.Flags().StringSlice("paths", nil, "resolved paths to stage on continue (default: the conflicted paths)")

	integrateCmd.Flags().String("mode", "", "pr or merge (default: from config)")
	integrateCmd.Flags().String("decision", "", "answer: rebase, merge, continue or abort")
	integrateCmd.Flags().StringSlice("paths", nil, "resolved paths to stage on continue (default: the conflicted paths)")

	cleanupCmd.Flags().Bool("force", false, "delete even if the branch is not merged into trunk")

	abortCmd.Flags().String("reason", "requested by user", "reason recorded on the session")
}
