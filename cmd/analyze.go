package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"sheetsql/internal/session"
	"sheetsql/internal/sheets"
	"sheetsql/internal/workflow"
)

var analyzeJSON bool

var analyzeCmd = &cobra.Command{
	Use:   "analyze <files...>",
	Short: "Describe every sheet of the given workbooks",
	Long: `Load the given workbooks and, for every sheet, report its size, warn about
missing values and ask Claude to explain the first rows.

Requires ANTHROPIC_API_KEY environment variable to be set. Without it the
explanations read "(no answer available)".

Examples:
  sheetsql analyze students.xlsx
  sheetsql analyze --json grades.xlsx courses.csv`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		set, err := sheets.LoadPaths(args...)
		if err != nil {
			HandleError(err, "Failed to load files")
		}

		st := session.New()
		st.SetSheets(set)

		app := &App{Config: cfg, Logger: Logger}
		reports := app.Generator().Analyze(context.Background(), st)

		if analyzeJSON {
			printJSON(reports)
			return
		}
		fmt.Print(workflow.RenderReports(reports))
	},
}

func init() {
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "Print the reports as JSON")
	rootCmd.AddCommand(analyzeCmd)
}
