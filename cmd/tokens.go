package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/exoticlogicbuilder/auth-service/app/database"
	"github.com/exoticlogicbuilder/auth-service/app/service"
	"github.com/exoticlogicbuilder/auth-service/config"

	"github.com/spf13/cobra"
)

var tokensCmd = &cobra.Command{
	Use:   "tokens",
	Short: "Maintain stored refresh and email tokens",
}

var purgeOlderThanMinutes int

var tokensPurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete tokens that expired before the retention window",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if err := configureLogging(cfg); err != nil {
			return err
		}

		retention := cfg.Tokens.PurgeRetentionPeriod
		if cmd.Flags().Changed("older-than") {
			retention = time.Duration(purgeOlderThanMinutes) * time.Minute
		}

		ctx := context.Background()
		db, err := database.Open(ctx, cfg.Database)
		if err != nil {
			return err
		}
		defer db.Close()

		result, err := service.NewAuthService(db, cfg).PurgeExpiredTokens(ctx, retention)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "purged %d refresh token(s) and %d email token(s)\n", result.RefreshTokens, result.EmailTokens)
		return nil
	},
}

func init() {
	tokensPurgeCmd.Flags().IntVar(&purgeOlderThanMinutes, "older-than", 0, "retention window in minutes (defaults to TOKEN_PURGE_RETENTION)")
	tokensCmd.AddCommand(tokensPurgeCmd)
	rootCmd.AddCommand(tokensCmd)
}
