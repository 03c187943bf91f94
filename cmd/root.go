package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "auth",
	Short: "Credential and session service",
	Long: `Issues and verifies the credentials proving a user's identity: password login,
short-lived access tokens, rotating refresh tokens and single-use email tokens,
served over HTTP and gRPC.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
