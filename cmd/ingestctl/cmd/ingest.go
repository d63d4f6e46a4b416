package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/cobra"

	"github.com/markdave123-py/docingest/internal/app"
	"github.com/markdave123-py/docingest/internal/models"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [file-path...]",
	Short: "Index text files and store binaries for later processing",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		files, err := readFiles(args)
		if err != nil {
			return err
		}
		return withApp(cmd, func(a *app.App) error {
			res, err := a.Ingestor.IngestFiles(cmd.Context(), owner(), files)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		})
	},
}

func readFiles(paths []string) ([]models.IngestFile, error) {
	files := make([]models.IngestFile, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", p, err)
		}
		files = append(files, models.NewIngestFile(filepath.Base(p), data, mimetype.Detect(data).String(), int64(len(data))))
	}
	return files, nil
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}
