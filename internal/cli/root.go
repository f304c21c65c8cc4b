package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var version = "dev"

func SetVersion(v string) {
	version = v
}

var (
	flagDir     string
	flagConfig  string
	flagFormat  string
	flagVerbose bool
)

var rootCmd = &cobra.Command{
	Use:   "branchflow",
	Short: "branchflow: drive a feature branch from creation to cleanup",
	Long: `branchflow takes a branch through its lifecycle: check the working tree,
sync trunk, create and publish the branch, install dependencies, record a test
baseline, keep it in sync with trunk, integrate it and clean it up.

Session checkpoints live under <git-dir>/branchflow/. When a step needs a
choice (uncommitted changes, rebase or merge, conflicts) the command exits
with status 2 and the next command answers it with --decision.

Exit status: 0 ok, 1 failed, 2 awaiting a decision, 3 invalid invocation.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. SIGINT and SIGTERM cancel the command
// context; the engine aborts the session at the next step boundary.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagDir, "dir", "C", "", "repository working directory (default: current directory)")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to config file (default: .branchflow.yaml, then ~/.config/branchflow/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&flagFormat, "format", "text", "report format: text or json")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "log steps and commands to stderr")
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return usageErrorf("%v", err)
	})

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(resyncCmd)
	rootCmd.AddCommand(integrateCmd)
	rootCmd.AddCommand(cleanupCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(abortCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(eventsCmd)
	rootCmd.AddCommand(dbCmd)
}
