/*
Copyright © 2025 tieubaoca
*/
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tieubaoca/rag-assistant/config"
	"github.com/tieubaoca/rag-assistant/utils"
)

// issueTokenCmd represents the issue-token command
var issueTokenCmd = &cobra.Command{
	Use:   "issue-token",
	Short: "Print an admin token for the write endpoints",
	RunE: func(cmd *cobra.Command, args []string) error {
		subject, _ := cmd.Flags().GetString("subject")
		ttl, _ := cmd.Flags().GetDuration("ttl")

		cfg, err := config.LoadConfig(cfgFile)
		if err != nil {
			return exitError(err)
		}
		if ttl <= 0 {
			ttl = cfg.Auth.TokenTTL
		}
		token, err := utils.GenerateAdminToken(cfg.Auth.AdminSecret, subject, ttl)
		if err != nil {
			return fmt.Errorf("failed to issue token: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(issueTokenCmd)

	issueTokenCmd.Flags().String("subject", "admin", "Token subject")
	issueTokenCmd.Flags().Duration("ttl", 0, "Token lifetime (default from config)")
}
