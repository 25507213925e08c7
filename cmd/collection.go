/*
Copyright © 2025 tieubaoca
*/
package cmd

import (
	"github.com/spf13/cobra"
)

// createCollectionCmd represents the create-collection command
var createCollectionCmd = &cobra.Command{
	Use:   "create-collection",
	Short: "Create the collection and its text index if missing",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), false)
		if err != nil {
			return exitError(err)
		}
		defer a.Close()

		created, err := a.rag.EnsureCollection(cmd.Context())
		if err != nil {
			return err
		}
		if created {
			a.logger.Sugar().Infof("collection %s created", a.cfg.Collection)
		} else {
			a.logger.Sugar().Infof("collection %s already exists", a.cfg.Collection)
		}
		return nil
	},
}

// resetCollectionCmd represents the reset-collection command
var resetCollectionCmd = &cobra.Command{
	Use:   "reset-collection",
	Short: "Drop and recreate the collection, deleting every point",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), false)
		if err != nil {
			return exitError(err)
		}
		defer a.Close()

		if err := a.rag.ResetCollection(cmd.Context()); err != nil {
			return err
		}
		a.logger.Sugar().Infof("collection %s recreated", a.cfg.Collection)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(createCollectionCmd)
	rootCmd.AddCommand(resetCollectionCmd)
}
