// Package sheets reads uploaded workbooks into named, in-memory tables.
package sheets

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

// Sheet is one named table parsed from a workbook. The first workbook row
// supplies the column names. An empty cell is treated as null.
type Sheet struct {
	Name    string
	Columns []string
	Rows    [][]string
}

// NormalizeColumn turns a column name into a SQL-friendly identifier by
// replacing spaces with underscores.
func NormalizeColumn(name string) string {
	return strings.ReplaceAll(name, " ", "_")
}

// NumRows returns the number of data rows (the header row is not counted).
func (s *Sheet) NumRows() int {
	return len(s.Rows)
}

// NumColumns returns the number of columns.
func (s *Sheet) NumColumns() int {
	return len(s.Columns)
}

// columnKey is the form the stores compare column names in: normalized and
// case-insensitive.
func columnKey(name string) string {
	return strings.ToLower(NormalizeColumn(name))
}

// uniqueColumn returns name, or name with the first free _N suffix when its
// key is already taken, and marks the result as taken.
func uniqueColumn(taken map[string]bool, name string) string {
	out := name
	for n := 2; taken[columnKey(out)]; n++ {
		out = fmt.Sprintf("%s_%d", name, n)
	}
	taken[columnKey(out)] = true
	return out
}

// NormalizedColumns returns the column names with NormalizeColumn applied.
// Names that would collide once normalized get a _N suffix.
func (s *Sheet) NormalizedColumns() []string {
	taken := make(map[string]bool, len(s.Columns))
	cols := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		cols[i] = uniqueColumn(taken, NormalizeColumn(c))
	}
	return cols
}

// HasMissing reports whether any cell in the sheet is empty.
func (s *Sheet) HasMissing() bool {
	for _, row := range s.Rows {
		for i := range s.Columns {
			if i >= len(row) || strings.TrimSpace(row[i]) == "" {
				return true
			}
		}
	}
	return false
}

// ColumnFill returns the percentage of rows with a non-empty value in
// column c. A sheet without rows is 100% filled.
func (s *Sheet) ColumnFill(c int) float64 {
	if len(s.Rows) == 0 {
		return 100
	}
	filled := 0
	for r := range s.Rows {
		if strings.TrimSpace(s.Cell(r, c)) != "" {
			filled++
		}
	}
	return float64(filled) * 100 / float64(len(s.Rows))
}

// Cell returns the value at row r, column c, or "" if the row is short.
func (s *Sheet) Cell(r, c int) string {
	if r < 0 || r >= len(s.Rows) || c < 0 || c >= len(s.Rows[r]) {
		return ""
	}
	return s.Rows[r][c]
}

// Head renders the first n rows as an aligned text table, with the row
// index in the first column.
func (s *Sheet) Head(n int) string {
	if n > len(s.Rows) {
		n = len(s.Rows)
	}

	var b strings.Builder
	tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "\t%s\n", strings.Join(s.Columns, "\t"))
	for r := 0; r < n; r++ {
		cells := make([]string, len(s.Columns))
		for c := range s.Columns {
			v := s.Cell(r, c)
			if v == "" {
				v = "NaN"
			}
			cells[c] = v
		}
		fmt.Fprintf(tw, "%d\t%s\n", r, strings.Join(cells, "\t"))
	}
	_ = tw.Flush()
	return strings.TrimRight(b.String(), "\n")
}

// WriteCSV serializes the sheet as CSV with a normalized header row. Every
// data row is padded or cut to the header width.
func (s *Sheet) WriteCSV(w io.Writer) error {
	if len(s.Columns) == 0 {
		return fmt.Errorf("sheet %q has no columns", s.Name)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(s.NormalizedColumns()); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	record := make([]string, len(s.Columns))
	for r := range s.Rows {
		for c := range record {
			record[c] = s.Cell(r, c)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write row %d: %w", r+1, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// Set is an ordered mapping from sheet name to Sheet. Putting a sheet whose
// name already exists replaces it in place.
type Set struct {
	names  []string
	byName map[string]*Sheet
}

// NewSet returns a set holding the given sheets, later names winning.
func NewSet(sheets ...*Sheet) *Set {
	s := &Set{byName: make(map[string]*Sheet)}
	for _, sh := range sheets {
		s.Put(sh)
	}
	return s
}

// Put adds or replaces a sheet.
func (s *Set) Put(sh *Sheet) {
	if s.byName == nil {
		s.byName = make(map[string]*Sheet)
	}
	if _, ok := s.byName[sh.Name]; !ok {
		s.names = append(s.names, sh.Name)
	}
	s.byName[sh.Name] = sh
}

// Get returns the sheet with the given name.
func (s *Set) Get(name string) (*Sheet, bool) {
	if s == nil {
		return nil, false
	}
	sh, ok := s.byName[name]
	return sh, ok
}

// Names returns sheet names in insertion order.
func (s *Set) Names() []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// Sheets returns the sheets in insertion order.
func (s *Set) Sheets() []*Sheet {
	if s == nil {
		return nil
	}
	out := make([]*Sheet, 0, len(s.names))
	for _, name := range s.names {
		out = append(out, s.byName[name])
	}
	return out
}

// Len returns the number of sheets.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.names)
}
