package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/lucasnoah/branchflow/internal/config"
	"github.com/lucasnoah/branchflow/internal/db"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Event log database management",
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database schema migrations",
	Args:  exactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openConfiguredDB(cmd.Context())
		if err != nil {
			return err
		}
		defer d.Close()

		if err := d.Migrate(cmd.Context()); err != nil {
			return err
		}
		cmd.Println("Event log schema is up to date.")
		return nil
	},
}

var dbResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Drop and recreate the event log tables (destructive!)",
	Args:  exactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		if yes, _ := cmd.Flags().GetBool("yes"); !yes {
			return usageErrorf("db reset deletes every recorded event; pass --yes to confirm")
		}
		d, err := openConfiguredDB(cmd.Context())
		if err != nil {
			return err
		}
		defer d.Close()

		if err := d.Reset(cmd.Context()); err != nil {
			return err
		}
		cmd.Println("Event log reset.")
		return nil
	},
}

// openConfiguredDB connects to event_log.database_url.
func openConfiguredDB(ctx context.Context) (*db.DB, error) {
	cfg, _, err := readConfig()
	if err != nil {
		return nil, err
	}
	if cfg.EventLog.DatabaseURL == "" {
		return nil, usageErrorf("no event log configured: set event_log.database_url or %s", config.DatabaseURLEnv)
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	d, err := db.Open(ctx, cfg.EventLog.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("event log: %w", err)
	}
	return d, nil
}

func init() {
	dbResetCmd.Flags().Bool("yes", false, "confirm the reset")
	dbCmd.AddCommand(dbMigrateCmd)
	dbCmd.AddCommand(dbResetCmd)
}
