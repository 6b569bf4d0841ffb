package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/duckdb/duckdb-go/v2"
)

// duckLocked records the database files whose shared DuckDB instance already
// has file access restricted. Open files share one instance per process.
var duckLocked = struct {
	sync.Mutex
	paths map[string]bool
}{paths: map[string]bool{}}

// openDuck opens the DuckDB file at path with file access limited to
// importDir. Both settings are instance-wide and external access cannot be
// re-enabled once off, so they are applied on the first connection only.
func openDuck(path, importDir string) (*sql.DB, error) {
	settings := []string{
		fmt.Sprintf("SET allowed_directories = [%s]", quoteLiteral(importDir+string(filepath.Separator))),
		"SET enable_external_access = false",
	}

	connector, err := duckdb.NewConnector(path, func(execer driver.ExecerContext) error {
		duckLocked.Lock()
		defer duckLocked.Unlock()
		if duckLocked.paths[path] {
			return nil
		}
		for _, stmt := range settings {
			if _, err := execer.ExecContext(context.Background(), stmt, nil); err != nil {
				return fmt.Errorf("%s: %w", stmt, err)
			}
		}
		duckLocked.paths[path] = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sql.OpenDB(connector), nil
}

// forgetDuck drops the record for path once its instance is closed.
func forgetDuck(path string) {
	duckLocked.Lock()
	delete(duckLocked.paths, path)
	duckLocked.Unlock()
}

type duckDialect struct{}

func (duckDialect) name() string { return "duckdb" }

// importCSV lets DuckDB sniff the CSV and swaps the table in one statement.
func (duckDialect) importCSV(ctx context.Context, db *sql.DB, table, path string) error {
	query := fmt.Sprintf(
		`CREATE OR REPLACE TABLE %s AS SELECT * FROM read_csv(%s, header=true, auto_detect=true)`,
		QuoteIdent(table), quoteLiteral(path),
	)
	_, err := db.ExecContext(ctx, query)
	return err
}

func (duckDialect) listTables(ctx context.Context, db *sql.DB) ([]string, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = 'main' AND table_type = 'BASE TABLE'
		ORDER BY table_name
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (duckDialect) describe(ctx context.Context, db *sql.DB, table string) ([]Column, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT column_name, data_type, is_nullable
		FROM information_schema.columns
		WHERE table_schema = 'main' AND table_name = ?
		ORDER BY ordinal_position
	`, table)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var cols []Column
	for rows.Next() {
		var c Column
		if err := rows.Scan(&c.Name, &c.Type, &c.Nullable); err != nil {
			return nil, err
		}
		cols = append(cols, c)
	}
	return cols, rows.Err()
}
