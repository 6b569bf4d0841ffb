package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"sheetsql/internal/config"
	"sheetsql/internal/store"
)

var summarizeTable string

var summarizeCmd = &cobra.Command{
	Use:   "summarize",
	Short: "Summarize the columns of an imported table (DuckDB only)",
	Long: `The SUMMARIZE command computes a number of aggregates over all columns of a table
(min, max, approx_unique, avg, std, q25, q50, q75, count), and returns these along
with the column name, column type, and the percentage of NULL values in the column.
Note that the quantiles and percentiles are approximate values.

SUMMARIZE is a DuckDB statement, so this command needs the duckdb driver.

Examples:
  sheetsql summarize --table Students`,
	Run: func(cmd *cobra.Command, args []string) {
		if strings.TrimSpace(summarizeTable) == "" {
			HandleError(fmt.Errorf("table is required"), "Missing parameter")
		}

		app, cleanup, err := InitApp()
		if err != nil {
			HandleError(err, "Failed to initialize database")
		}
		defer cleanup()

		if app.Store.Driver() != config.DriverDuckDB {
			HandleError(fmt.Errorf("driver is %s", app.Store.Driver()), "SUMMARIZE needs the duckdb driver")
		}

		result, err := app.Store.Query(context.Background(), "SUMMARIZE "+store.QuoteIdent(summarizeTable), 0)
		if err != nil {
			HandleError(err, "Failed to execute summarize query")
		}

		printJSON(result)
	},
}

func init() {
	summarizeCmd.Flags().StringVarP(&summarizeTable, "table", "t", "", "Table to summarize (required)")
	_ = summarizeCmd.MarkFlagRequired("table")
	rootCmd.AddCommand(summarizeCmd)
}
