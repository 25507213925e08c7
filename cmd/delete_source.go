/*
Copyright © 2025 tieubaoca
*/
package cmd

import (
	"github.com/spf13/cobra"
)

// deleteSourceCmd represents the delete-source command
var deleteSourceCmd = &cobra.Command{
	Use:   "delete-source [source]",
	Short: "Delete every point whose source contains the given text",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), false)
		if err != nil {
			return exitError(err)
		}
		defer a.Close()

		resp, err := a.rag.DeleteBySource(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), resp)
	},
}

func init() {
	rootCmd.AddCommand(deleteSourceCmd)
}
