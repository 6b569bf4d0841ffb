package sheets

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

// buildWorkbook creates an in-memory xlsx with one worksheet per entry, in order
func buildWorkbook(t *testing.T, sheets []string, data map[string][][]interface{}) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	for i, name := range sheets {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", name); err != nil {
				t.Fatalf("failed to rename sheet: %v", err)
			}
		} else if _, err := f.NewSheet(name); err != nil {
			t.Fatalf("failed to create sheet %s: %v", name, err)
		}
		for r, row := range data[name] {
			cell, _ := excelize.CoordinatesToCellName(1, r+1)
			if err := f.SetSheetRow(name, cell, &row); err != nil {
				t.Fatalf("failed to write row: %v", err)
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("failed to write workbook: %v", err)
	}
	return buf.Bytes()
}

func TestNormalizeColumn(t *testing.T) {
	testCases := []struct {
		in, want string
	}{
		{"Student Name", "Student_Name"},
		{"Grade", "Grade"},
		{"Final  Exam Score", "Final__Exam_Score"},
		{"", ""},
	}

	for _, tc := range testCases {
		if got := NormalizeColumn(tc.in); got != tc.want {
			t.Errorf("NormalizeColumn(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

// TestLoadWorkbook tests that every sheet in a workbook is parsed in order
func TestLoadWorkbook(t *testing.T) {
	data := buildWorkbook(t, []string{"Students", "Courses"}, map[string][][]interface{}{
		"Students": {
			{"Student Name", "Grade"},
			{"Ada", 91},
			{"Linus", nil},
		},
		"Courses": {
			{"Code", "Title"},
			{"CS101", "Intro"},
		},
	})

	set, err := Load(File{Name: "school.xlsx", Reader: bytes.NewReader(data)})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	names := set.Names()
	if len(names) != 2 || names[0] != "Students" || names[1] != "Courses" {
		t.Fatalf("Expected [Students Courses], got %v", names)
	}

	students, _ := set.Get("Students")
	if students.NumRows() != 2 {
		t.Errorf("Expected 2 rows, got %d", students.NumRows())
	}
	if students.Columns[0] != "Student Name" {
		t.Errorf("Expected raw column name preserved, got %q", students.Columns[0])
	}
	if students.Cell(0, 1) != "91" {
		t.Errorf("Expected grade 91, got %q", students.Cell(0, 1))
	}
	if !students.HasMissing() {
		t.Error("Expected missing value to be detected")
	}

	courses, _ := set.Get("Courses")
	if courses.HasMissing() {
		t.Error("Expected no missing values in Courses")
	}
}

// TestLoadLastWriteWins tests that a later file replaces a same-named sheet
func TestLoadLastWriteWins(t *testing.T) {
	first := buildWorkbook(t, []string{"Students", "Extra"}, map[string][][]interface{}{
		"Students": {{"Name"}, {"a"}, {"b"}, {"c"}},
		"Extra":    {{"X"}, {"1"}},
	})
	second := buildWorkbook(t, []string{"Students"}, map[string][][]interface{}{
		"Students": {{"Name"}, {"z"}},
	})

	set, err := Load(
		File{Name: "one.xlsx", Reader: bytes.NewReader(first)},
		File{Name: "two.xlsx", Reader: bytes.NewReader(second)},
	)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if set.Len() != 2 {
		t.Fatalf("Expected 2 sheets, got %d", set.Len())
	}
	if names := set.Names(); names[0] != "Students" {
		t.Errorf("Expected replaced sheet to keep its position, got %v", names)
	}
	students, _ := set.Get("Students")
	if students.NumRows() != 1 || students.Cell(0, 0) != "z" {
		t.Errorf("Expected sheet from second file, got %v", students.Rows)
	}
}

func TestLoadCSV(t *testing.T) {
	csvData := "Student Name,Score\nAda,10\nGrace\n"

	set, err := Load(File{Name: "grades.csv", Reader: strings.NewReader(csvData)})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	sh, ok := set.Get("grades")
	if !ok {
		t.Fatalf("Expected sheet named after file stem, got %v", set.Names())
	}
	if sh.NumRows() != 2 {
		t.Errorf("Expected 2 rows, got %d", sh.NumRows())
	}
	if len(sh.Rows[1]) != 2 {
		t.Errorf("Expected short row to be padded to header width, got %v", sh.Rows[1])
	}
}

func TestLoadUnsupported(t *testing.T) {
	_, err := Load(File{Name: "notes.txt", Reader: strings.NewReader("hello")})
	if !errors.Is(err, ErrUnsupportedFile) {
		t.Errorf("Expected ErrUnsupportedFile, got %v", err)
	}

	if Supported("notes.txt") {
		t.Error("Expected .txt to be unsupported")
	}
	if !Supported("Report.XLSX") {
		t.Error("Expected .XLSX to be supported")
	}
}

func TestLoadCorruptWorkbook(t *testing.T) {
	_, err := Load(File{Name: "broken.xlsx", Reader: strings.NewReader("not a zip")})
	if err == nil {
		t.Error("Expected error for corrupt workbook")
	}
}

// TestFromRowsHeaders tests blank and duplicate header handling
func TestFromRowsHeaders(t *testing.T) {
	sh := fromRows("T", [][]string{
		{"Name", "", "Name"},
		{"a", "b", "c", "d"},
	})

	want := []string{"Name", "Column_2", "Name_2", "Column_4"}
	if len(sh.Columns) != len(want) {
		t.Fatalf("Expected columns %v, got %v", want, sh.Columns)
	}
	for i := range want {
		if sh.Columns[i] != want[i] {
			t.Errorf("Column %d: expected %q, got %q", i, want[i], sh.Columns[i])
		}
	}

	empty := fromRows("Empty", nil)
	if empty.NumColumns() != 0 || empty.NumRows() != 0 {
		t.Errorf("Expected empty sheet, got %+v", empty)
	}
}

// TestHeadersUniqueAfterNormalizing tests headers that only differ by a space,
// an underscore or case
func TestHeadersUniqueAfterNormalizing(t *testing.T) {
	testCases := []struct {
		name   string
		header []string
		want   []string
	}{
		{
			name:   "space and underscore",
			header: []string{"Student Name", "Student_Name"},
			want:   []string{"Student_Name", "Student_Name_2"},
		},
		{
			name:   "case",
			header: []string{"Grade", "grade"},
			want:   []string{"Grade", "grade_2"},
		},
		{
			name:   "suffix already used",
			header: []string{"Name", "Name_2", "Name"},
			want:   []string{"Name", "Name_2", "Name_3"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			sh := fromRows("T", [][]string{tc.header})
			got := sh.NormalizedColumns()
			if strings.Join(got, ",") != strings.Join(tc.want, ",") {
				t.Errorf("Expected %v, got %v", tc.want, got)
			}
		})
	}

	handBuilt := &Sheet{Columns: []string{"Student Name", "Student_Name"}}
	if got := handBuilt.NormalizedColumns(); got[0] == got[1] {
		t.Errorf("Expected distinct normalized columns, got %v", got)
	}
}

// TestWriteCSV tests the import interchange format
func TestWriteCSV(t *testing.T) {
	sh := &Sheet{
		Name:    "Students",
		Columns: []string{"Student Name", "Note"},
		Rows: [][]string{
			{"Ada", "likes, commas"},
			{"Linus"},
		},
	}

	var buf bytes.Buffer
	if err := sh.WriteCSV(&buf); err != nil {
		t.Fatalf("WriteCSV failed: %v", err)
	}

	want := "Student_Name,Note\nAda,\"likes, commas\"\nLinus,\n"
	if buf.String() != want {
		t.Errorf("Expected CSV:\n%q\ngot:\n%q", want, buf.String())
	}

	if err := (&Sheet{Name: "Empty"}).WriteCSV(&buf); err == nil {
		t.Error("Expected error for sheet without columns")
	}
}

func TestHead(t *testing.T) {
	sh := &Sheet{
		Name:    "T",
		Columns: []string{"a", "b"},
		Rows:    [][]string{{"1", ""}, {"2", "x"}, {"3", "y"}},
	}

	head := sh.Head(2)
	lines := strings.Split(head, "\n")
	if len(lines) != 3 {
		t.Fatalf("Expected header plus 2 rows, got %d lines:\n%s", len(lines), head)
	}
	if !strings.Contains(lines[1], "NaN") {
		t.Errorf("Expected missing value rendered as NaN, got %q", lines[1])
	}
	if strings.Contains(head, "3") {
		t.Errorf("Expected third row to be omitted:\n%s", head)
	}
}

func TestColumnFill(t *testing.T) {
	sh := &Sheet{
		Name:    "T",
		Columns: []string{"a", "b", "c"},
		Rows:    [][]string{{"1", "", "x"}, {"2", " "}, {"3", "y", "z"}, {"4", "", "w"}},
	}

	tests := []struct {
		col  int
		want float64
	}{
		{0, 100},
		{1, 25},
		{2, 75},
		{5, 0},
	}
	for _, tt := range tests {
		if got := sh.ColumnFill(tt.col); got != tt.want {
			t.Errorf("ColumnFill(%d) = %v, want %v", tt.col, got, tt.want)
		}
	}

	if got := (&Sheet{Columns: []string{"a"}}).ColumnFill(0); got != 100 {
		t.Errorf("Expected empty sheet to be fully filled, got %v", got)
	}
}
