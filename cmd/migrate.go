package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/exoticlogicbuilder/auth-service/app/database"
	"github.com/exoticlogicbuilder/auth-service/config"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the database schema",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		dbCfg, err := config.LoadDatabase()
		if err != nil {
			return err
		}

		ctx := context.Background()
		db, err := database.Open(ctx, dbCfg)
		if err != nil {
			return err
		}
		defer db.Close()

		results, err := database.Migrate(ctx, db, dbCfg.Driver)
		if err != nil {
			return err
		}
		if len(results) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no pending migrations")
			return nil
		}
		for _, r := range results {
			fmt.Fprintf(cmd.OutOrStdout(), "applied %s (%s)\n", r.Source.Path, r.Duration.Round(time.Millisecond))
		}
		return nil
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show applied and pending migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		dbCfg, err := config.LoadDatabase()
		if err != nil {
			return err
		}

		ctx := context.Background()
		db, err := database.Open(ctx, dbCfg)
		if err != nil {
			return err
		}
		defer db.Close()

		statuses, err := database.MigrationStatus(ctx, db, dbCfg.Driver)
		if err != nil {
			return err
		}
		for _, s := range statuses {
			appliedAt := "-"
			if !s.AppliedAt.IsZero() {
				appliedAt = s.AppliedAt.Format(time.RFC3339)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%-40s %-10s %s\n", s.Source.Path, s.State, appliedAt)
		}
		return nil
	},
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateStatusCmd)
	rootCmd.AddCommand(migrateCmd)
}
