package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/markdave123-py/docingest/internal/app"
	"github.com/markdave123-py/docingest/internal/config"
	"github.com/markdave123-py/docingest/internal/models"
	"github.com/markdave123-py/docingest/pkg/logger"
)

var (
	ownerID    string
	ownerEmail string
)

var rootCmd = &cobra.Command{
	Use:   "ingestctl",
	Short: "Run document ingestion without the HTTP server",
	Long: `ingestctl drives the same ingestion pipeline as the API server.
Configuration is read from the environment (and .env when present).`,
	SilenceUsage: true,
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "ingestctl: %s\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&ownerID, "owner", "", "owner id to ingest as (anonymous when empty)")
	rootCmd.PersistentFlags().StringVar(&ownerEmail, "email", "", "owner email, used as the enrichment sender")
}

func owner() models.Owner {
	return models.Owner{ID: ownerID, Email: ownerEmail}
}

// withApp loads configuration, wires every dependency and hands the result
// to fn. Connections are released afterwards.
func withApp(cmd *cobra.Command, fn func(a *app.App) error) (err error) {
	cfg := config.LoadConfig()
	logger.Init(cfg.LogFormat, cfg.LogLevel)

	a, err := app.NewApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(a)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
