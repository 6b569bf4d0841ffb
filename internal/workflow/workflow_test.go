package workflow

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"sheetsql/internal/assistant"
	"sheetsql/internal/importer"
	"sheetsql/internal/session"
	"sheetsql/internal/sheets"
	"sheetsql/internal/store"
)

type sentMessage struct {
	prompt string
	system string
}

// fakeSender replays canned replies in order and records every call
type fakeSender struct {
	replies []assistant.Reply
	calls   []sentMessage
}

func (f *fakeSender) Send(ctx context.Context, prompt, system string) assistant.Reply {
	f.calls = append(f.calls, sentMessage{prompt: prompt, system: system})
	if len(f.replies) == 0 {
		return assistant.Reply{Err: errors.New("no reply queued")}
	}
	r := f.replies[0]
	f.replies = f.replies[1:]
	return r
}

func ok(text string) assistant.Reply {
	return assistant.Reply{Text: text}
}

func failed() assistant.Reply {
	return assistant.Reply{Err: errors.New("service unavailable")}
}

func newTestState(t *testing.T) *session.State {
	t.Helper()

	st := session.New()
	st.SetSheets(sheets.NewSet(
		&sheets.Sheet{
			Name:    "Students",
			Columns: []string{"Student Name", "Score"},
			Rows:    [][]string{{"Ana", "90"}, {"Ben", ""}},
		},
		&sheets.Sheet{
			Name:    "Courses",
			Columns: []string{"Code"},
			Rows:    [][]string{{"C1"}},
		},
	))
	return st
}

func TestGenerateQuery(t *testing.T) {
	testCases := []struct {
		name          string
		prompt        string
		table         string
		replies       []assistant.Reply
		expectPhase   Phase
		expectTrace   []Phase
		expectMessage string
		expectCalls   int
		expectHistory int
		expectQuery   string
		expectExplain string
	}{
		{
			name:          "Empty prompt",
			prompt:        "",
			table:         "Students",
			expectPhase:   Failed,
			expectTrace:   []Phase{Idle, Failed},
			expectMessage: MsgEmptyPrompt,
		},
		{
			name:          "Unknown table",
			prompt:        "list students",
			table:         "Teachers",
			expectPhase:   Failed,
			expectTrace:   []Phase{Idle, PromptEntered, Failed},
			expectMessage: "Table 'Teachers' not found in the uploaded data. Available tables are: Students, Courses.",
		},
		{
			name:          "Primary reply failed",
			prompt:        "list students",
			table:         "Students",
			replies:       []assistant.Reply{failed()},
			expectPhase:   Failed,
			expectTrace:   []Phase{Idle, PromptEntered, AwaitingModel, Failed},
			expectMessage: MsgNoAnswer,
			expectCalls:   1,
			expectHistory: 1,
		},
		{
			name:          "Answered with explanation",
			prompt:        "list students",
			table:         "Students",
			replies:       []assistant.Reply{ok("Here:\nSELECT * FROM Students;"), ok("It scans the table.")},
			expectPhase:   Answered,
			expectTrace:   []Phase{Idle, PromptEntered, AwaitingModel, Answered},
			expectCalls:   2,
			expectHistory: 1,
			expectQuery:   "SELECT * FROM Students;",
			expectExplain: "It scans the table.",
		},
		{
			name:          "Explanation failure is swallowed",
			prompt:        "list students",
			table:         "Students",
			replies:       []assistant.Reply{ok("SELECT 1"), failed()},
			expectPhase:   Answered,
			expectTrace:   []Phase{Idle, PromptEntered, AwaitingModel, Answered},
			expectCalls:   2,
			expectHistory: 1,
			expectQuery:   "SELECT 1",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			st := newTestState(t)
			sender := &fakeSender{replies: tc.replies}
			g := New(sender, nil)

			out := g.GenerateQuery(context.Background(), st, tc.prompt, tc.table)

			if out.Phase != tc.expectPhase {
				t.Errorf("Expected phase %s, got %s", tc.expectPhase, out.Phase)
			}
			if !reflect.DeepEqual(out.Trace, tc.expectTrace) {
				t.Errorf("Expected trace %v, got %v", tc.expectTrace, out.Trace)
			}
			if out.Message != tc.expectMessage {
				t.Errorf("Expected message %q, got %q", tc.expectMessage, out.Message)
			}
			if len(sender.calls) != tc.expectCalls {
				t.Errorf("Expected %d assistant calls, got %d", tc.expectCalls, len(sender.calls))
			}
			if got := len(st.History()); got != tc.expectHistory {
				t.Errorf("Expected %d history entries, got %d", tc.expectHistory, got)
			}
			if out.Recorded() != (tc.expectHistory > 0) {
				t.Errorf("Recorded() = %v with %d history entries", out.Recorded(), tc.expectHistory)
			}
			if out.Query != tc.expectQuery {
				t.Errorf("Expected query %q, got %q", tc.expectQuery, out.Query)
			}
			if out.Explanation != tc.expectExplain {
				t.Errorf("Expected explanation %q, got %q", tc.expectExplain, out.Explanation)
			}
		})
	}
}

func TestGenerateQueryRecordsExchange(t *testing.T) {
	st := newTestState(t)
	sender := &fakeSender{replies: []assistant.Reply{ok("prose\nselect * from Students"), ok("explained")}}

	New(sender, nil).GenerateQuery(context.Background(), st, "all students", "Students")

	h := st.History()
	if len(h) != 1 {
		t.Fatalf("Expected 1 exchange, got %d", len(h))
	}
	if h[0].Prompt != "all students" || h[0].Response != "prose\nselect * from Students" || !h[0].Answered {
		t.Errorf("Unexpected exchange: %+v", h[0])
	}

	// System instruction carries normalized columns; second call explains the extracted query
	if !strings.Contains(sender.calls[0].system, "Student_Name, Score") {
		t.Errorf("Expected normalized columns in system prompt, got %q", sender.calls[0].system)
	}
	if sender.calls[1].prompt != "Explain how the following SQL query will be executed:\nselect * from Students" {
		t.Errorf("Unexpected explain prompt %q", sender.calls[1].prompt)
	}
	if sender.calls[1].system != sender.calls[0].system {
		t.Error("Expected explanation to use the generation system prompt")
	}
}

func TestGenerateQueryFailedReplyRecordsAbsentResponse(t *testing.T) {
	st := newTestState(t)
	out := New(&fakeSender{replies: []assistant.Reply{failed()}}, nil).
		GenerateQuery(context.Background(), st, "all students", "Students")

	if out.Err == nil {
		t.Error("Expected reply error on the outcome")
	}
	h := st.History()
	if len(h) != 1 || h[0].Answered || h[0].Response != "" {
		t.Errorf("Expected one unanswered exchange, got %+v", h)
	}
}

func TestAnalyze(t *testing.T) {
	st := newTestState(t)
	sender := &fakeSender{replies: []assistant.Reply{ok("Student scores."), failed()}}

	reports := New(sender, nil).Analyze(context.Background(), st)
	if len(reports) != 2 {
		t.Fatalf("Expected 2 reports, got %d", len(reports))
	}

	students, courses := reports[0], reports[1]
	if students.Table != "Students" || students.Rows != 2 || students.Columns != 2 || !students.Missing {
		t.Errorf("Unexpected Students report: %+v", students)
	}
	if courses.Missing || courses.Answered || courses.Explanation != NoExplanation {
		t.Errorf("Unexpected Courses report: %+v", courses)
	}

	if !strings.HasPrefix(sender.calls[0].prompt, "Explain the contents of the following table:\n") {
		t.Errorf("Unexpected analysis prompt %q", sender.calls[0].prompt)
	}
	if sender.calls[0].system != assistant.AnalystSystemPrompt {
		t.Errorf("Expected analyst system prompt, got %q", sender.calls[0].system)
	}

	text := RenderReports(reports)
	for _, want := range []string{
		"Table 'Students' has 2 rows and 2 columns.",
		"Warning: The sheet 'Students' contains missing values. This might affect SQL generation.",
		"Explanation: Student scores.",
		"Table 'Courses' has 1 rows and 1 columns.",
		"Explanation: (no answer available)",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("Expected report text to contain %q\n%s", want, text)
		}
	}
	if strings.Contains(text, "sheet 'Courses' contains missing") {
		t.Error("Did not expect a missing-values warning for Courses")
	}
}

func TestAnalyzeNoSheets(t *testing.T) {
	sender := &fakeSender{}
	if reports := New(sender, nil).Analyze(context.Background(), session.New()); len(reports) != 0 {
		t.Errorf("Expected no reports, got %d", len(reports))
	}
	if len(sender.calls) != 0 {
		t.Error("Expected no assistant calls")
	}
}

type countingTarget struct{ tables []string }

func (c *countingTarget) ImportCSV(ctx context.Context, table, path string) error {
	c.tables = append(c.tables, table)
	return nil
}

func TestAddData(t *testing.T) {
	target := &countingTarget{}
	im := importer.New(target, t.TempDir(), nil)

	if _, err := AddData(context.Background(), session.New(), im); !errors.Is(err, ErrNoData) {
		t.Errorf("Expected ErrNoData, got %v", err)
	}
	if ErrNoData.Error() != MsgNoData {
		t.Errorf("Unexpected no-data message %q", ErrNoData.Error())
	}

	notices, err := AddData(context.Background(), newTestState(t), im)
	if err != nil {
		t.Fatalf("AddData failed: %v", err)
	}
	if len(notices) != 2 || strings.Join(target.tables, ",") != "Students,Courses" {
		t.Errorf("Expected both sheets re-imported, got %v", target.tables)
	}
}

func TestStatement(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "Plain", input: "SELECT 1", expected: "SELECT 1"},
		{name: "Cut at semicolon", input: "SELECT *\nFROM t;\nThis lists rows.", expected: "SELECT *\nFROM t"},
		{name: "Cut at fence", input: "SELECT a FROM b\n```\nMore prose", expected: "SELECT a FROM b"},
		{name: "Leading fence skipped", input: "```sql\nSELECT 2\n```", expected: "SELECT 2"},
		{name: "Empty", input: "", expected: ""},
		{
			name:     "Semicolon in literal",
			input:    "SELECT * FROM t WHERE note = 'a;b';\nDone.",
			expected: "SELECT * FROM t WHERE note = 'a;b'",
		},
		{
			name:     "Semicolon in quoted identifier",
			input:    "```sql\nSELECT \"x;y\" FROM t\n```",
			expected: "SELECT \"x;y\" FROM t",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Statement(tc.input); got != tc.expected {
				t.Errorf("Statement(%q) = %q, want %q", tc.input, got, tc.expected)
			}
		})
	}
}

type recordingQuerier struct{ got string }

func (r *recordingQuerier) Query(ctx context.Context, query string, limit int) (*store.Result, error) {
	r.got = query
	return &store.Result{Columns: []string{"n"}}, nil
}

func TestRun(t *testing.T) {
	q := &recordingQuerier{}
	if _, err := Run(context.Background(), q, "SELECT 1;\nextra prose", 10); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if q.got != "SELECT 1" {
		t.Errorf("Expected first statement to run, got %q", q.got)
	}

	if _, err := Run(context.Background(), q, "   ", 10); err == nil {
		t.Error("Expected error for empty statement")
	}
}

func TestPhaseString(t *testing.T) {
	if Answered.String() != "answered" || Phase(42).String() != "phase(42)" {
		t.Error("Unexpected phase names")
	}
}
