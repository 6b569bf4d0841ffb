package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"sheetsql/internal/store"
)

// SchemaOutput represents the schema information for a table
type SchemaOutput struct {
	TableName   string         `json:"table_name"`
	RowCount    int64          `json:"row_count"`
	ColumnCount int            `json:"column_count"`
	Columns     []store.Column `json:"columns"`
}

var schemaCmd = &cobra.Command{
	Use:   "schema [table]",
	Short: "Show the columns of the imported tables",
	Long: `Retrieve a summary of the local database schema.
Without arguments this returns every imported table and its columns; with a
table name it returns just that table.

Examples:
  sheetsql schema
  sheetsql schema Students`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		app, cleanup, err := InitApp()
		if err != nil {
			HandleError(err, "Failed to initialize database")
		}
		defer cleanup()

		ctx := context.Background()

		if len(args) == 1 {
			schema, err := getTableSchema(ctx, app.Store, args[0])
			if err != nil {
				HandleError(err, "Failed to describe table")
			}
			printJSON(schema)
			return
		}

		tables, err := app.Store.Tables(ctx)
		if err != nil {
			HandleError(err, "Failed to list tables")
		}

		schemas := make([]SchemaOutput, 0, len(tables))
		for _, t := range tables {
			schema, err := getTableSchema(ctx, app.Store, t.Name)
			if err != nil {
				app.Logger.Warn("Skipping table without schema", "error", err, "table", t.Name)
				continue
			}
			schemas = append(schemas, schema)
		}
		printJSON(schemas)
	},
}

// getTableSchema retrieves schema information for a specific table
func getTableSchema(ctx context.Context, s store.Store, tableName string) (SchemaOutput, error) {
	cols, err := s.Describe(ctx, tableName)
	if err != nil {
		return SchemaOutput{}, err
	}
	n, err := s.RowCount(ctx, tableName)
	if err != nil {
		return SchemaOutput{}, err
	}

	return SchemaOutput{
		TableName:   tableName,
		RowCount:    n,
		ColumnCount: len(cols),
		Columns:     cols,
	}, nil
}

func init() {
	rootCmd.AddCommand(schemaCmd)
}
