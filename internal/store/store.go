// Package store is the durable table store that uploaded sheets are imported
// into. DuckDB is the default backend; SQLite is available for parity with
// plain .db files.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

var (
	// ErrNotReadOnly is returned by Query for statements that may write.
	ErrNotReadOnly = errors.New("only read-only statements can be run")
	// ErrTableNotFound is returned by Describe for unknown tables.
	ErrTableNotFound = errors.New("table not found")
	// ErrOutsideImportDir is returned by ImportCSV for files that do not
	// live under the store's import directory.
	ErrOutsideImportDir = errors.New("csv file is outside the import directory")
)

// Column describes one column of a stored table.
type Column struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable string `json:"nullable"`
}

// TableInfo is a stored table and its row count.
type TableInfo struct {
	Name string `json:"name"`
	Rows int64  `json:"rows"`
}

// Result holds the rows returned by Query.
type Result struct {
	Columns   []string        `json:"columns"`
	Rows      [][]interface{} `json:"rows"`
	Truncated bool            `json:"truncated"`
}

// Store is a durable relational store.
type Store interface {
	// ImportCSV creates table from the CSV file at path, replacing any
	// existing table of the same name.
	ImportCSV(ctx context.Context, table, path string) error
	Tables(ctx context.Context) ([]TableInfo, error)
	Describe(ctx context.Context, table string) ([]Column, error)
	RowCount(ctx context.Context, table string) (int64, error)
	// Query runs a read-only statement and returns at most limit rows.
	Query(ctx context.Context, query string, limit int) (*Result, error)
	Driver() string
	Close() error
}

// dialect holds the backend-specific statements.
type dialect interface {
	name() string
	importCSV(ctx context.Context, db *sql.DB, table, path string) error
	listTables(ctx context.Context, db *sql.DB) ([]string, error)
	describe(ctx context.Context, db *sql.DB, table string) ([]Column, error)
}

// DB is a Store backed by database/sql.
type DB struct {
	conn      *sql.DB
	dialect   dialect
	path      string
	importDir string
	logger    *slog.Logger
}

// ImportDir is where CSV files bound for ImportCSV must be written. It is the
// only directory the DuckDB engine may read files from.
func ImportDir(dataDir string) string {
	return filepath.Join(dataDir, "imports")
}

// Open opens (creating if needed) the store for driver inside dataDir.
func Open(driver, dataDir string, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	importDir, err := filepath.Abs(ImportDir(dataDir))
	if err != nil {
		return nil, fmt.Errorf("resolving import dir: %w", err)
	}
	if err := os.MkdirAll(importDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating import dir: %w", err)
	}
	root := filepath.Dir(importDir)

	var (
		d    dialect
		path string
		conn *sql.DB
	)
	switch driver {
	case "duckdb":
		d = duckDialect{}
		path = filepath.Join(root, "data.duckdb")
		conn, err = openDuck(path, importDir)
	case "sqlite":
		d = sqliteDialect{}
		path = filepath.Join(root, "database.db")
		conn, err = sql.Open(driver, path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
	if err != nil {
		logger.Error("Failed to open database", "error", err, "driver", driver, "db_path", path)
		return nil, fmt.Errorf("failed to open %s: %w", driver, err)
	}
	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		logger.Error("Failed to connect to database", "error", err, "driver", driver, "db_path", path)
		return nil, fmt.Errorf("failed to connect to %s: %w", driver, err)
	}

	logger.Info("Store opened", "driver", driver, "db_path", path, "import_dir", importDir)
	return &DB{conn: conn, dialect: d, path: path, importDir: importDir, logger: logger}, nil
}

// Driver returns the backend name.
func (d *DB) Driver() string {
	return d.dialect.name()
}

// Path returns the database file location.
func (d *DB) Path() string {
	return d.path
}

// ImportDir returns the absolute directory ImportCSV reads from.
func (d *DB) ImportDir() string {
	return d.importDir
}

// Close closes the database.
func (d *DB) Close() error {
	err := d.conn.Close()
	if d.Driver() == "duckdb" {
		forgetDuck(d.path)
	}
	return err
}

// ImportCSV replaces table with the contents of the CSV file at path.
func (d *DB) ImportCSV(ctx context.Context, table, path string) error {
	if strings.TrimSpace(table) == "" {
		return fmt.Errorf("table name cannot be empty")
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", path, err)
	}
	if rel, err := filepath.Rel(d.importDir, abs); err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		d.logger.Warn("Refused import outside import dir", "table", table, "path", abs, "import_dir", d.importDir)
		return fmt.Errorf("%w: %s", ErrOutsideImportDir, path)
	}

	start := time.Now()
	if err := d.dialect.importCSV(ctx, d.conn, table, abs); err != nil {
		d.logger.Error("Failed to import table", "error", err, "table", table, "driver", d.Driver())
		return fmt.Errorf("failed to import table %s: %w", table, err)
	}

	d.logger.Info("Imported table", "table", table, "driver", d.Driver(), "elapsed", time.Since(start))
	return nil
}

// Tables lists stored tables with their row counts.
func (d *DB) Tables(ctx context.Context) ([]TableInfo, error) {
	names, err := d.dialect.listTables(ctx, d.conn)
	if err != nil {
		d.logger.Error("Failed to list tables", "error", err)
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}

	tables := make([]TableInfo, 0, len(names))
	for _, name := range names {
		n, err := d.RowCount(ctx, name)
		if err != nil {
			return nil, err
		}
		tables = append(tables, TableInfo{Name: name, Rows: n})
	}
	return tables, nil
}

// Describe returns the columns of table.
func (d *DB) Describe(ctx context.Context, table string) ([]Column, error) {
	cols, err := d.dialect.describe(ctx, d.conn, table)
	if err != nil {
		d.logger.Error("Failed to describe table", "error", err, "table", table)
		return nil, fmt.Errorf("failed to describe table %s: %w", table, err)
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, table)
	}
	return cols, nil
}

// RowCount returns the number of rows in table.
func (d *DB) RowCount(ctx context.Context, table string) (int64, error) {
	var n int64
	err := d.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+QuoteIdent(table)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count rows in %s: %w", table, err)
	}
	return n, nil
}

// Query runs a read-only statement and returns at most limit rows. A limit
// of zero or less returns every row. The statement runs inside a transaction
// that is always rolled back, so anything it writes is discarded.
func (d *DB) Query(ctx context.Context, query string, limit int) (*Result, error) {
	if !IsReadOnly(query) {
		return nil, ErrNotReadOnly
	}
	query, _, _ = CutStatement(query)
	return d.queryRolledBack(ctx, query, limit)
}

// queryRolledBack runs query in a transaction that is never committed. Rows
// are fully read before the rollback.
func (d *DB) queryRolledBack(ctx context.Context, query string, limit int) (*Result, error) {
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin query transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, query)
	if err != nil {
		d.logger.Warn("Query failed", "error", err, "sql", query)
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	res := &Result{Columns: columns, Rows: [][]interface{}{}}
	for rows.Next() {
		if limit > 0 && len(res.Rows) >= limit {
			res.Truncated = true
			break
		}

		values := make([]interface{}, len(columns))
		ptrs := make([]interface{}, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		res.Rows = append(res.Rows, values)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

// QuoteIdent quotes name as a SQL identifier.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// quoteLiteral quotes s as a SQL string literal.
func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
