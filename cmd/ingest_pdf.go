/*
Copyright © 2025 tieubaoca
*/
package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

// ingestPDFCmd represents the ingest-pdf command
var ingestPDFCmd = &cobra.Command{
	Use:   "ingest-pdf",
	Short: "Extract, segment and index PDF documents",
	Long: `Ingests one PDF (--file) or every PDF in a directory (--directory).
Chunks get deterministic ids, so ingesting the same file again overwrites
its points instead of duplicating them.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		filePath, _ := cmd.Flags().GetString("file")
		directory, _ := cmd.Flags().GetString("directory")
		source, _ := cmd.Flags().GetString("source")
		reinit, _ := cmd.Flags().GetBool("reinit")
		if (filePath == "") == (directory == "") {
			return errors.New("exactly one of --file or --directory is required")
		}

		ctx := cmd.Context()
		a, err := newApp(ctx, false)
		if err != nil {
			return exitError(err)
		}
		defer a.Close()
		log := a.logger.Sugar()

		if reinit {
			if err := a.rag.ResetCollection(ctx); err != nil {
				return fmt.Errorf("failed to reset collection: %w", err)
			}
			log.Infof("collection %s recreated", a.cfg.Collection)
		} else if _, err := a.rag.EnsureCollection(ctx); err != nil {
			return fmt.Errorf("failed to ensure collection: %w", err)
		}

		files := []string{filePath}
		if directory != "" {
			if files, err = listPDFs(directory); err != nil {
				return err
			}
			source = ""
		}

		failed := 0
		for _, f := range files {
			resp, err := a.rag.IngestDocument(ctx, f, source)
			if err != nil {
				failed++
				log.Errorf("failed to ingest %s: %v", f, err)
				continue
			}
			log.Infof("ingested %s: %d pages, %d chunks, %d upserted", resp.Source, resp.Pages, resp.Chunks, resp.Upserted)
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d documents failed", failed, len(files))
		}
		return nil
	},
}

func listPDFs(directory string) ([]string, error) {
	entries, err := os.ReadDir(directory)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".pdf") {
			continue
		}
		files = append(files, filepath.Join(directory, e.Name()))
	}
	return files, nil
}

func init() {
	rootCmd.AddCommand(ingestPDFCmd)

	ingestPDFCmd.Flags().StringP("file", "f", "", "Path to the PDF file to ingest")
	ingestPDFCmd.Flags().StringP("directory", "d", "", "Directory of PDF files to ingest")
	ingestPDFCmd.Flags().StringP("source", "s", "", "Source label for --file (default is the file name)")
	ingestPDFCmd.Flags().BoolP("reinit", "r", false, "Drop and recreate the collection first")
}
