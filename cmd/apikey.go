package cmd

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/exoticlogicbuilder/auth-service/app/database"
	"github.com/exoticlogicbuilder/auth-service/app/repository"
	"github.com/exoticlogicbuilder/auth-service/app/service"
	"github.com/exoticlogicbuilder/auth-service/config"

	"github.com/spf13/cobra"
)

const defaultGraceMinutes = 60

var apiKeyCmd = &cobra.Command{
	Use:   "apikey",
	Short: "Manage API keys of services calling the internal endpoints",
}

var apiKeyGenerateCmd = &cobra.Command{
	Use:   "generate <service_name>",
	Short: "Generate the first API key for a service",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withInternalAuthService(func(svc service.InternalAuthService) error {
			serviceName := args[0]
			key, err := svc.GenerateInternalAPIKey(cmd.Context(), serviceName)
			if err != nil {
				return apiKeyError(serviceName, err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "service_name: %s\n", serviceName)
			fmt.Fprintf(out, "api_key: %s\n", key)
			fmt.Fprintln(out, "store the key now, it cannot be shown again")
			return nil
		})
	},
}

var apiKeyDeactivateCmd = &cobra.Command{
	Use:   "deactivate <service_name>",
	Short: "Deactivate every active API key of a service",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withInternalAuthService(func(svc service.InternalAuthService) error {
			serviceName := args[0]
			count, err := svc.DeactivateInternalAPIKeys(cmd.Context(), serviceName)
			if err != nil {
				return apiKeyError(serviceName, err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "deactivated %d key(s) for %s\n", count, serviceName)
			return nil
		})
	},
}

var regenerateGraceMinutes int

var apiKeyRegenerateCmd = &cobra.Command{
	Use:   "regenerate <service_name>",
	Short: "Issue a new API key and let the old ones expire after a grace period",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		grace := time.Duration(regenerateGraceMinutes) * time.Minute
		if !cmd.Flags().Changed("grace") {
			var err error
			grace, err = promptGracePeriod(cmd.InOrStdin(), cmd.OutOrStdout())
			if err != nil {
				return err
			}
		}

		return withInternalAuthService(func(svc service.InternalAuthService) error {
			serviceName := args[0]
			key, err := svc.RegenerateInternalAPIKey(cmd.Context(), serviceName, grace)
			if err != nil {
				return apiKeyError(serviceName, err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "service_name: %s\n", serviceName)
			fmt.Fprintf(out, "old_keys_expire_at: %s\n", time.Now().Add(grace).UTC().Format(time.RFC3339))
			fmt.Fprintf(out, "api_key: %s\n", key)
			return nil
		})
	},
}

var apiKeyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List API keys without their secrets",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withInternalAuthService(func(svc service.InternalAuthService) error {
			keys, err := svc.ListInternalAPIKeys(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSERVICE\tACTIVE\tEXPIRES_AT\tCREATED_AT")
			for _, key := range keys {
				fmt.Fprintf(w, "%d\t%s\t%t\t%s\t%s\n",
					key.ID,
					key.ServiceName,
					key.IsActive,
					key.ExpiresAt.UTC().Format(time.RFC3339),
					key.CreatedAt.UTC().Format(time.RFC3339),
				)
			}
			return w.Flush()
		})
	},
}

func init() {
	apiKeyRegenerateCmd.Flags().IntVar(&regenerateGraceMinutes, "grace", defaultGraceMinutes, "minutes the old keys stay valid (more than 5); prompts when omitted")

	apiKeyCmd.AddCommand(apiKeyGenerateCmd)
	apiKeyCmd.AddCommand(apiKeyDeactivateCmd)
	apiKeyCmd.AddCommand(apiKeyRegenerateCmd)
	apiKeyCmd.AddCommand(apiKeyListCmd)
	rootCmd.AddCommand(apiKeyCmd)
}

// withInternalAuthService opens the database from DATABASE_* settings only,
// so key management works without the JWT secrets.
func withInternalAuthService(fn func(service.InternalAuthService) error) error {
	dbCfg, err := config.LoadDatabase()
	if err != nil {
		return err
	}

	db, err := database.Open(context.Background(), dbCfg)
	if err != nil {
		return err
	}
	defer func(db *sql.DB) { _ = db.Close() }(db)

	return fn(service.NewInternalAuthService(repository.NewInternalAPIKeyRepository(db)))
}

func apiKeyError(serviceName string, err error) error {
	switch {
	case errors.Is(err, service.ErrServiceHasActiveAPIKey):
		return fmt.Errorf("service %q already has an active API key, use regenerate", serviceName)
	case errors.Is(err, service.ErrServiceHasNoActiveAPIKey):
		return fmt.Errorf("service %q has no active API key", serviceName)
	case errors.Is(err, service.ErrInvalidRegenerationTTL):
		return errors.New("grace period must be more than 5 minutes")
	}
	return err
}

func promptGracePeriod(in io.Reader, out io.Writer) (time.Duration, error) {
	fmt.Fprintf(out, "Expire old keys in minutes (>5) [%d]: ", defaultGraceMinutes)
	input, _ := bufio.NewReader(in).ReadString('\n')
	input = strings.TrimSpace(input)
	if input == "" {
		return defaultGraceMinutes * time.Minute, nil
	}

	minutes, err := strconv.Atoi(input)
	if err != nil {
		return 0, errors.New("invalid number of minutes")
	}
	if minutes <= 5 {
		return 0, errors.New("value must be greater than 5 minutes")
	}
	return time.Duration(minutes) * time.Minute, nil
}
