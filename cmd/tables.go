package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

var tablesCmd = &cobra.Command{
	Use:   "tables",
	Short: "List the imported tables",
	Long: `List every table in the local database with its row count.
Results are returned as JSON.

Examples:
  sheetsql tables
  sheetsql tables --driver sqlite`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		app, cleanup, err := InitApp()
		if err != nil {
			HandleError(err, "Failed to initialize database")
		}
		defer cleanup()

		tables, err := app.Store.Tables(context.Background())
		if err != nil {
			HandleError(err, "Failed to list tables")
		}

		printJSON(tables)
	},
}

func init() {
	rootCmd.AddCommand(tablesCmd)
}
