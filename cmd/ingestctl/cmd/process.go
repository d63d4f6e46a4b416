package cmd

import (
	"github.com/spf13/cobra"

	"github.com/markdave123-py/docingest/internal/app"
)

var processCmd = &cobra.Command{
	Use:   "process [file-id...]",
	Short: "Extract and index previously stored binary files",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(a *app.App) error {
			res, err := a.Processor.ProcessBinaryFiles(cmd.Context(), owner(), args)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		})
	},
}

func init() {
	rootCmd.AddCommand(processCmd)
}
