package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"sheetsql/internal/importer"
	"sheetsql/internal/session"
	"sheetsql/internal/sheets"
	"sheetsql/internal/store"
	"sheetsql/internal/workflow"
)

var (
	generateFiles []string
	generateTable string
	generateRun   bool
	generateLimit int
)

// GenerateOutput is the JSON printed by the generate command
type GenerateOutput struct {
	workflow.Outcome
	Result   *store.Result `json:"result,omitempty"`
	RunError string        `json:"run_error,omitempty"`
}

var generateCmd = &cobra.Command{
	Use:   "generate [prompt]",
	Short: "Generate an SQL query for a sheet from a plain-language prompt",
	Long: `Load the given workbooks, then ask Claude for a SQL query answering PROMPT
against the named sheet, followed by an explanation of how the query runs.

With --run the sheets are imported and the first statement of the generated
query is executed (read-only statements only).

Requires ANTHROPIC_API_KEY environment variable to be set.

Examples:
  sheetsql generate --file students.xlsx --table Students "Average score per class"
  sheetsql generate -f grades.xlsx -t Grades --run "Top 5 students by score"`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		set, err := sheets.LoadPaths(generateFiles...)
		if err != nil {
			HandleError(err, "Failed to load files")
		}

		app, cleanup, err := InitApp()
		if err != nil {
			HandleError(err, "Failed to initialize database")
		}
		defer cleanup()

		ctx := context.Background()
		st := session.New()
		st.SetSheets(set)

		out := GenerateOutput{Outcome: app.Generator().GenerateQuery(ctx, st, args[0], generateTable)}
		if out.OK() && generateRun {
			out.Result, out.RunError = runGenerated(ctx, app, set, out.Query)
		}

		printJSON(out)
		if !out.OK() {
			HandleError(fmt.Errorf("%s", out.Message), "Generation failed")
		}
	},
}

func runGenerated(ctx context.Context, app *App, set *sheets.Set, query string) (*store.Result, string) {
	if failed := importer.Failed(app.Importer().Import(ctx, set)); len(failed) > 0 {
		msgs := make([]string, len(failed))
		for i, n := range failed {
			msgs[i] = n.Message()
		}
		return nil, strings.Join(msgs, "; ")
	}

	result, err := workflow.Run(ctx, app.Store, query, generateLimit)
	if err != nil {
		app.Logger.Warn("Generated query failed", "error", err, "sql", query)
		return nil, err.Error()
	}
	return result, ""
}

func init() {
	generateCmd.Flags().StringSliceVarP(&generateFiles, "file", "f", nil, "Workbook or CSV file to load (repeatable, required)")
	generateCmd.Flags().StringVarP(&generateTable, "table", "t", "", "Sheet to generate the query for (required)")
	generateCmd.Flags().BoolVar(&generateRun, "run", false, "Import the sheets and run the generated query")
	generateCmd.Flags().IntVarP(&generateLimit, "limit", "l", 100, "Maximum rows to return with --run")
	_ = generateCmd.MarkFlagRequired("file")
	_ = generateCmd.MarkFlagRequired("table")
	rootCmd.AddCommand(generateCmd)
}
