package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"sheetsql/internal/store"
)

var (
	queryString string
	queryLimit  int
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Run a read-only SQL query against the imported tables",
	Long: `Execute the requested QUERY against the local database.
Only read-only statements are accepted: SELECT, WITH, EXPLAIN, DESCRIBE,
SHOW, SUMMARIZE, VALUES and TABLE.

Examples:
  sheetsql query --sql "SELECT * FROM Students LIMIT 5"
  sheetsql query --sql "SELECT COUNT(*) AS total FROM Students"
  sheetsql query --sql "SHOW TABLES" --driver duckdb`,
	Run: func(cmd *cobra.Command, args []string) {
		if queryString == "" {
			HandleError(fmt.Errorf("query is required"), "Missing query parameter")
		}

		app, cleanup, err := InitApp()
		if err != nil {
			HandleError(err, "Failed to initialize database")
		}
		defer cleanup()

		result, err := app.Store.Query(context.Background(), queryString, queryLimit)
		if err != nil {
			if errors.Is(err, store.ErrNotReadOnly) {
				HandleError(err, "Refusing to run statement")
			}
			HandleError(err, "Failed to execute query")
		}

		printJSON(result)
	},
}

func init() {
	queryCmd.Flags().StringVarP(&queryString, "sql", "q", "", "SQL query to execute (required)")
	queryCmd.Flags().IntVarP(&queryLimit, "limit", "l", 1000, "Maximum rows to return (0 for all)")
	_ = queryCmd.MarkFlagRequired("sql")
	rootCmd.AddCommand(queryCmd)
}
