package sheets

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ErrUnsupportedFile is returned for uploads that are neither workbooks nor CSV.
var ErrUnsupportedFile = errors.New("unsupported file type")

// File is one uploaded file.
type File struct {
	Name   string
	Reader io.Reader
}

// Supported reports whether a file name has an extension the loader reads.
func Supported(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm", ".xltx", ".xltm", ".csv":
		return true
	}
	return false
}

// Load reads every sheet of every file into a Set. Files are read in order,
// so a sheet in a later file replaces an earlier sheet of the same name.
func Load(files ...File) (*Set, error) {
	set := NewSet()
	for _, f := range files {
		sheets, err := LoadFile(f)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", f.Name, err)
		}
		for _, sh := range sheets {
			set.Put(sh)
		}
	}
	return set, nil
}

// LoadPaths opens the named files and loads them with Load.
func LoadPaths(paths ...string) (*Set, error) {
	files := make([]File, 0, len(paths))
	for _, p := range paths {
		fh, err := os.Open(p)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", p, err)
		}
		defer fh.Close()
		files = append(files, File{Name: filepath.Base(p), Reader: fh})
	}
	return Load(files...)
}

// LoadFile parses one file. Workbooks yield one sheet per worksheet in
// workbook order; a CSV file yields a single sheet named after the file.
func LoadFile(f File) ([]*Sheet, error) {
	ext := strings.ToLower(filepath.Ext(f.Name))
	switch ext {
	case ".csv":
		name := strings.TrimSuffix(filepath.Base(f.Name), filepath.Ext(f.Name))
		sh, err := readCSV(name, f.Reader)
		if err != nil {
			return nil, err
		}
		return []*Sheet{sh}, nil
	case ".xlsx", ".xlsm", ".xltx", ".xltm":
		return readWorkbook(f.Reader)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFile, ext)
	}
}

func readWorkbook(r io.Reader) ([]*Sheet, error) {
	wb, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer wb.Close()

	var out []*Sheet
	for _, name := range wb.GetSheetList() {
		rows, err := wb.GetRows(name)
		if err != nil {
			return nil, fmt.Errorf("failed to read sheet %q: %w", name, err)
		}
		out = append(out, fromRows(name, rows))
	}
	return out, nil
}

func readCSV(name string, r io.Reader) (*Sheet, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}
	return fromRows(name, rows), nil
}

// fromRows builds a Sheet from raw rows, using the first row as the header.
// Blank or missing header cells become Column_N and duplicates get a _N suffix.
func fromRows(name string, rows [][]string) *Sheet {
	sh := &Sheet{Name: name}
	if len(rows) == 0 {
		return sh
	}

	width := 0
	for _, row := range rows {
		if len(row) > width {
			width = len(row)
		}
	}

	taken := make(map[string]bool, width)
	sh.Columns = make([]string, width)
	for i := 0; i < width; i++ {
		h := ""
		if i < len(rows[0]) {
			h = strings.TrimSpace(rows[0][i])
		}
		if h == "" {
			h = fmt.Sprintf("Column_%d", i+1)
		}
		sh.Columns[i] = uniqueColumn(taken, h)
	}

	sh.Rows = make([][]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		padded := make([]string, width)
		copy(padded, row)
		sh.Rows = append(sh.Rows, padded)
	}
	return sh
}
