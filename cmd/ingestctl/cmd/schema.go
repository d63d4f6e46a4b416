package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/markdave123-py/docingest/internal/app"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Manage the vector index class",
}

var ensureCmd = &cobra.Command{
	Use:   "ensure",
	Short: "Create the index class if it does not exist",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd, func(a *app.App) error {
			if err := a.Schema.Ensure(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "class %q ready\n", a.Schema.Schema().ClassName)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(schemaCmd)
	schemaCmd.AddCommand(ensureCmd)
}
