/*
Copyright © 2025 tieubaoca
*/
package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/tieubaoca/rag-assistant/types"
)

// upsertCmd represents the upsert command
var upsertCmd = &cobra.Command{
	Use:   "upsert",
	Short: "Index raw text under a source label",
	Long: `Reads text from --text, --file or stdin ("-"), splits it into fixed
windows and indexes them under --source.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		text, _ := cmd.Flags().GetString("text")
		filePath, _ := cmd.Flags().GetString("file")
		source, _ := cmd.Flags().GetString("source")
		maxChars, _ := cmd.Flags().GetInt("max-chars")
		deterministic, _ := cmd.Flags().GetBool("deterministic")

		if text == "" {
			if filePath == "" {
				return errors.New("one of --text or --file is required")
			}
			var data []byte
			var err error
			if filePath == "-" {
				data, err = io.ReadAll(cmd.InOrStdin())
			} else {
				data, err = os.ReadFile(filePath)
			}
			if err != nil {
				return fmt.Errorf("failed to read input: %w", err)
			}
			text = string(data)
		}

		a, err := newApp(cmd.Context(), false)
		if err != nil {
			return exitError(err)
		}
		defer a.Close()

		req := types.UpsertRequest{
			Text:             text,
			Source:           source,
			MaxChars:         maxChars,
			DeterministicIDs: &deterministic,
		}
		if cmd.Flags().Changed("overlap") {
			overlap, _ := cmd.Flags().GetInt("overlap")
			req.Overlap = &overlap
		}
		resp, err := a.rag.Upsert(cmd.Context(), req)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), resp)
	},
}

func init() {
	rootCmd.AddCommand(upsertCmd)

	upsertCmd.Flags().String("text", "", "Text to index")
	upsertCmd.Flags().StringP("file", "f", "", "Read the text from a file, - for stdin")
	upsertCmd.Flags().StringP("source", "s", "", "Source label (required)")
	upsertCmd.Flags().Int("max-chars", 0, "Window size in characters (default from config)")
	upsertCmd.Flags().Int("overlap", 0, "Window overlap in characters (default from config)")
	upsertCmd.Flags().Bool("deterministic", false, "Derive point ids from the text so re-runs overwrite")
	upsertCmd.MarkFlagRequired("source")
}
