package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/cory-johannsen/encounter/internal/config"
	"github.com/cory-johannsen/encounter/migrations"
)

var (
	migrateDirection string
	migrateSteps     int
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply or roll back the PostgreSQL schema",
	RunE:  runMigrate,
}

func init() {
	migrateCmd.Flags().StringVar(&migrateDirection, "direction", "up", "migration direction: up or down")
	migrateCmd.Flags().IntVar(&migrateSteps, "steps", 0, "number of steps (0 = all)")
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	start := time.Now()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	dir := migrations.Direction(migrateDirection)
	if dir != migrations.Up && dir != migrations.Down {
		return fmt.Errorf("invalid direction %q: must be 'up' or 'down'", migrateDirection)
	}

	res, err := migrations.Run(cfg.Database.DSN(), dir, migrateSteps)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	elapsed := time.Since(start).Round(time.Millisecond)
	if res.NoChange {
		fmt.Fprintf(cmd.OutOrStdout(), "no changes (version=%d dirty=%v) [%s]\n", res.Version, res.Dirty, elapsed)
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "migrated %s to version=%d dirty=%v [%s]\n", dir, res.Version, res.Dirty, elapsed)
	return nil
}
