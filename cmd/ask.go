/*
Copyright © 2025 tieubaoca
*/
package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/tieubaoca/rag-assistant/types"
)

// askCmd represents the ask command
var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a question from the indexed documents",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		topK, _ := cmd.Flags().GetInt("top-k")
		filter, _ := cmd.Flags().GetString("filter")
		debug, _ := cmd.Flags().GetBool("debug")

		a, err := newApp(cmd.Context(), true)
		if err != nil {
			return exitError(err)
		}
		defer a.Close()

		resp, err := a.rag.Ask(cmd.Context(), types.AskRequest{
			Question:   strings.Join(args, " "),
			TopK:       topK,
			FilterText: filter,
			Debug:      debug,
		})
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), resp)
	},
}

func init() {
	rootCmd.AddCommand(askCmd)

	askCmd.Flags().IntP("top-k", "k", 0, "Number of passages to use (default from config)")
	askCmd.Flags().String("filter", "", "Only consider passages containing this text")
	askCmd.Flags().Bool("debug", false, "Include retrieval scores in the output")
}
