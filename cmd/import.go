package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"sheetsql/internal/importer"
	"sheetsql/internal/sheets"
)

// ImportOutput reports one imported sheet
type ImportOutput struct {
	Table   string `json:"table"`
	Rows    int    `json:"rows"`
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

var importCmd = &cobra.Command{
	Use:   "import <files...>",
	Short: "Import every sheet of the given workbooks as tables",
	Long: `Load the given Excel workbooks (.xlsx, .xlsm) or CSV files and import every
sheet into the local database as a table named after the sheet. An existing
table with the same name is replaced. When two files hold a sheet with the
same name, the later file wins.

A failing sheet is reported and the remaining sheets are still imported.

Examples:
  sheetsql import students.xlsx
  sheetsql import grades.xlsx courses.csv --driver sqlite`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		set, err := sheets.LoadPaths(args...)
		if err != nil {
			HandleError(err, "Failed to load files")
		}

		app, cleanup, err := InitApp()
		if err != nil {
			HandleError(err, "Failed to initialize database")
		}
		defer cleanup()

		notices := app.Importer().Import(context.Background(), set)
		printJSON(importOutputs(notices))

		if failed := importer.Failed(notices); len(failed) > 0 {
			HandleError(fmt.Errorf("%d of %d sheets failed", len(failed), len(notices)), "Import incomplete")
		}
	},
}

func importOutputs(notices []importer.Notice) []ImportOutput {
	out := make([]ImportOutput, len(notices))
	for i, n := range notices {
		out[i] = ImportOutput{Table: n.Table, Rows: n.Rows, OK: n.OK(), Message: n.Message()}
	}
	return out
}

func init() {
	rootCmd.AddCommand(importCmd)
}
