// Package importer writes loaded sheets into the durable store.
package importer

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"sheetsql/internal/sheets"
	"sheetsql/internal/store"
)

// Target is the part of the store the importer needs.
type Target interface {
	ImportCSV(ctx context.Context, table, path string) error
}

// Notice reports the outcome of importing one sheet.
type Notice struct {
	Table string `json:"table"`
	Rows  int    `json:"rows"`
	Err   error  `json:"-"`
}

// OK reports whether the sheet was imported.
func (n Notice) OK() bool {
	return n.Err == nil
}

// Message is the user-facing text for the notice.
func (n Notice) Message() string {
	if n.Err != nil {
		return fmt.Sprintf("An error occurred while creating the table %s: %v", n.Table, n.Err)
	}
	return fmt.Sprintf("Table created for sheet: %s", n.Table)
}

// Importer serializes each sheet to a CSV file and imports it.
type Importer struct {
	target  Target
	workDir string
	logger  *slog.Logger
}

// New returns an Importer writing its intermediate CSV files under workDir
// (the OS temp dir when empty).
func New(target Target, workDir string, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Importer{target: target, workDir: workDir, logger: logger}
}

// Import imports every sheet in set, replacing tables of the same name.
// A failing sheet is reported in its Notice and does not stop the rest.
func (im *Importer) Import(ctx context.Context, set *sheets.Set) []Notice {
	notices := make([]Notice, 0, set.Len())
	for _, sh := range set.Sheets() {
		n := Notice{Table: sh.Name, Rows: sh.NumRows()}
		if err := im.importSheet(ctx, sh); err != nil {
			n.Err = err
			im.logger.Error("Sheet import failed", "error", err, "table", sh.Name)
		} else {
			im.logger.Info("Sheet imported", "table", sh.Name, "rows", sh.NumRows())
		}
		notices = append(notices, n)
	}
	return notices
}

func (im *Importer) importSheet(ctx context.Context, sh *sheets.Sheet) error {
	f, err := os.CreateTemp(im.workDir, "sheet-*.csv")
	if err != nil {
		return fmt.Errorf("failed to create csv file: %w", err)
	}
	defer func() { _ = os.Remove(f.Name()) }()

	if err := sh.WriteCSV(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to serialize sheet: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write csv file: %w", err)
	}

	return im.target.ImportCSV(ctx, sh.Name, f.Name())
}

// Failed returns the notices that carry an error.
func Failed(notices []Notice) []Notice {
	var out []Notice
	for _, n := range notices {
		if !n.OK() {
			out = append(out, n)
		}
	}
	return out
}

var _ Target = (*store.DB)(nil)
