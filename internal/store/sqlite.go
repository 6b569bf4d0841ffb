package store

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"

	_ "modernc.org/sqlite" // register sqlite driver
)

type sqliteDialect struct{}

func (sqliteDialect) name() string { return "sqlite" }

// importCSV reads the CSV into memory, infers a column affinity per column
// and recreates the table inside one transaction.
func (sqliteDialect) importCSV(ctx context.Context, db *sql.DB, table, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening csv: %w", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return fmt.Errorf("reading csv: %w", err)
	}
	if len(records) == 0 {
		return fmt.Errorf("csv has no header row")
	}
	header, data := records[0], records[1:]

	defs := make([]string, len(header))
	for i, col := range header {
		defs[i] = QuoteIdent(col) + " " + inferAffinity(data, i)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+QuoteIdent(table)); err != nil {
		return fmt.Errorf("dropping old table: %w", err)
	}
	create := fmt.Sprintf("CREATE TABLE %s (%s)", QuoteIdent(table), strings.Join(defs, ", "))
	if _, err := tx.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("creating table: %w", err)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(header)), ", ")
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s VALUES (%s)", QuoteIdent(table), placeholders))
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	args := make([]interface{}, len(header))
	for n, rec := range data {
		for i := range args {
			if i < len(rec) && rec[i] != "" {
				args[i] = rec[i]
			} else {
				args[i] = nil
			}
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("inserting row %d: %w", n+1, err)
		}
	}

	return tx.Commit()
}

// inferAffinity picks INTEGER or REAL when every non-empty value in column
// col parses as one, and TEXT otherwise.
func inferAffinity(data [][]string, col int) string {
	affinity := ""
	for _, rec := range data {
		if col >= len(rec) {
			continue
		}
		v := strings.TrimSpace(rec[col])
		if v == "" {
			continue
		}
		if _, err := strconv.ParseInt(v, 10, 64); err == nil {
			if affinity == "" {
				affinity = "INTEGER"
			}
			continue
		}
		if _, err := strconv.ParseFloat(v, 64); err == nil {
			affinity = "REAL"
			continue
		}
		return "TEXT"
	}
	if affinity == "" {
		return "TEXT"
	}
	return affinity
}

func (sqliteDialect) listTables(ctx context.Context, db *sql.DB) ([]string, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT name FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name
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

func (sqliteDialect) describe(ctx context.Context, db *sql.DB, table string) ([]Column, error) {
	// PRAGMA table_info returns: cid, name, type, notnull, dflt_value, pk
	rows, err := db.QueryContext(ctx, "SELECT name, type, \"notnull\" FROM pragma_table_info(?)", table)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var cols []Column
	for rows.Next() {
		var (
			c       Column
			notnull int
		)
		if err := rows.Scan(&c.Name, &c.Type, &notnull); err != nil {
			return nil, err
		}
		c.Nullable = "YES"
		if notnull == 1 {
			c.Nullable = "NO"
		}
		cols = append(cols, c)
	}
	return cols, rows.Err()
}
