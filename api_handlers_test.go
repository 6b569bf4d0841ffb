package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"sheetsql/internal/assistant"
	"sheetsql/internal/workflow"
)

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("failed to decode response %q: %v", rec.Body.String(), err)
	}
}

// TestAPIUpload tests the JSON upload response and status codes
func TestAPIUpload(t *testing.T) {
	app := SetupTestApp(t, nil)
	c := &sessionClient{t: t, handler: NewRouter(NewWorkspace(app))}

	rec := c.do(uploadRequest(t, "/api/upload", map[string][]byte{
		"school.xlsx": studentsWorkbook(t),
	}))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Message string       `json:"message"`
		Tables  []string     `json:"tables"`
		Notices []noticeJSON `json:"notices"`
	}
	decodeBody(t, rec, &resp)

	if resp.Message != uploadSuccess {
		t.Errorf("Expected message %q, got %q", uploadSuccess, resp.Message)
	}
	if strings.Join(resp.Tables, ",") != "Students,Courses" {
		t.Errorf("Expected tables Students,Courses, got %v", resp.Tables)
	}
	for _, n := range resp.Notices {
		if !n.OK {
			t.Errorf("Expected %s to import, got %q", n.Table, n.Message)
		}
	}

	rec = c.do(uploadRequest(t, "/api/upload", map[string][]byte{"notes.txt": []byte("x")}))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for unsupported file, got %d", rec.Code)
	}
}

// TestAPIAddData tests re-importing with and without uploaded sheets
func TestAPIAddData(t *testing.T) {
	app := SetupTestApp(t, nil)
	c := &sessionClient{t: t, handler: NewRouter(NewWorkspace(app))}

	rec := c.do(httptest.NewRequest(http.MethodPost, "/api/add", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 without data, got %d", rec.Code)
	}

	c.do(uploadRequest(t, "/api/upload", map[string][]byte{"school.xlsx": studentsWorkbook(t)}))
	rec = c.do(httptest.NewRequest(http.MethodPost, "/api/add", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var resp struct {
		Notices []noticeJSON `json:"notices"`
	}
	decodeBody(t, rec, &resp)
	if len(resp.Notices) != 2 {
		t.Errorf("Expected 2 notices, got %d", len(resp.Notices))
	}
}

// TestAPIGenerateStatus tests the status code for each way generation ends
func TestAPIGenerateStatus(t *testing.T) {
	testCases := []struct {
		name       string
		replies    []assistant.Reply
		body       string
		wantStatus int
		wantPhase  string
	}{
		{
			name:       "invalid body",
			body:       "{",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "empty prompt",
			body:       `{"prompt":"","table":"Students"}`,
			wantStatus: http.StatusBadRequest,
			wantPhase:  "failed",
		},
		{
			name:       "unknown table",
			body:       `{"prompt":"all","table":"Nope"}`,
			wantStatus: http.StatusNotFound,
			wantPhase:  "failed",
		},
		{
			name:       "assistant failed",
			replies:    []assistant.Reply{{Err: errors.New("overloaded")}},
			body:       `{"prompt":"all","table":"Students"}`,
			wantStatus: http.StatusBadGateway,
			wantPhase:  "failed",
		},
		{
			name:       "answered",
			replies:    []assistant.Reply{{Text: "SELECT * FROM Students;"}, {Text: "All rows."}},
			body:       `{"prompt":"all","table":"Students"}`,
			wantStatus: http.StatusOK,
			wantPhase:  "answered",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			app := SetupTestApp(t, &scriptedSender{replies: tc.replies})
			c := &sessionClient{t: t, handler: NewRouter(NewWorkspace(app))}
			c.do(uploadRequest(t, "/api/upload", map[string][]byte{"school.xlsx": studentsWorkbook(t)}))

			rec := c.do(jsonRequest(http.MethodPost, "/api/generate", tc.body))
			if rec.Code != tc.wantStatus {
				t.Fatalf("Expected %d, got %d: %s", tc.wantStatus, rec.Code, rec.Body.String())
			}
			if tc.wantPhase == "" {
				return
			}

			var out struct {
				Phase string `json:"phase"`
				Query string `json:"query"`
			}
			decodeBody(t, rec, &out)
			if out.Phase != tc.wantPhase {
				t.Errorf("Expected phase %q, got %q", tc.wantPhase, out.Phase)
			}
			if tc.wantStatus == http.StatusOK && out.Query != "SELECT * FROM Students;" {
				t.Errorf("Expected extracted query, got %q", out.Query)
			}
		})
	}
}

// TestAPIQuery tests read-only enforcement and row limits
func TestAPIQuery(t *testing.T) {
	app := SetupTestApp(t, nil)
	c := &sessionClient{t: t, handler: NewRouter(NewWorkspace(app))}
	c.do(uploadRequest(t, "/api/upload", map[string][]byte{"school.xlsx": studentsWorkbook(t)}))

	rec := c.do(jsonRequest(http.MethodPost, "/api/query", `{"sql":"SELECT * FROM Students","limit":2}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var result struct {
		Columns   []string        `json:"columns"`
		Rows      [][]interface{} `json:"rows"`
		Truncated bool            `json:"truncated"`
	}
	decodeBody(t, rec, &result)
	if len(result.Rows) != 2 || !result.Truncated {
		t.Errorf("Expected 2 truncated rows, got %d (truncated=%v)", len(result.Rows), result.Truncated)
	}

	rec = c.do(jsonRequest(http.MethodPost, "/api/query", `{"sql":"DELETE FROM Students"}`))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for a write, got %d", rec.Code)
	}
}

// TestAPITables tests listing and describing stored tables
func TestAPITables(t *testing.T) {
	app := SetupTestApp(t, nil)
	c := &sessionClient{t: t, handler: NewRouter(NewWorkspace(app))}
	c.do(uploadRequest(t, "/api/upload", map[string][]byte{"school.xlsx": studentsWorkbook(t)}))

	rec := c.do(httptest.NewRequest(http.MethodGet, "/api/tables", nil))
	var list struct {
		Count int `json:"count"`
	}
	decodeBody(t, rec, &list)
	if list.Count != 2 {
		t.Errorf("Expected 2 tables, got %d", list.Count)
	}

	rec = c.do(httptest.NewRequest(http.MethodGet, "/api/tables/Students", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var table struct {
		Rows int `json:"rows"`
	}
	decodeBody(t, rec, &table)
	if table.Rows != 3 {
		t.Errorf("Expected 3 rows, got %d", table.Rows)
	}

	rec = c.do(httptest.NewRequest(http.MethodGet, "/api/tables/Missing", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", rec.Code)
	}
}

// TestAPIHistoryAndEndSession tests that history is per session and ends with it
func TestAPIHistoryAndEndSession(t *testing.T) {
	sender := &scriptedSender{replies: []assistant.Reply{{Text: "SELECT 1"}}}
	app := SetupTestApp(t, sender)
	handler := NewRouter(NewWorkspace(app))
	c := &sessionClient{t: t, handler: handler}
	other := &sessionClient{t: t, handler: handler}

	c.do(uploadRequest(t, "/api/upload", map[string][]byte{"school.xlsx": studentsWorkbook(t)}))
	c.do(jsonRequest(http.MethodPost, "/api/generate", `{"prompt":"count","table":"Courses"}`))

	history := func(sc *sessionClient) int {
		rec := sc.do(httptest.NewRequest(http.MethodGet, "/api/history", nil))
		var resp struct {
			History []json.RawMessage `json:"history"`
		}
		decodeBody(t, rec, &resp)
		return len(resp.History)
	}

	if n := history(c); n != 1 {
		t.Errorf("Expected 1 exchange, got %d", n)
	}
	if n := history(other); n != 0 {
		t.Errorf("Expected other session to have no history, got %d", n)
	}

	rec := c.do(httptest.NewRequest(http.MethodDelete, "/api/session", nil))
	if rec.Code != http.StatusNoContent {
		t.Errorf("Expected 204, got %d", rec.Code)
	}
	if n := history(c); n != 0 {
		t.Errorf("Expected fresh session after end, got %d exchanges", n)
	}
}

func TestGenerateStatusMapping(t *testing.T) {
	if got := generateStatus(workflow.Outcome{}); got != http.StatusInternalServerError {
		t.Errorf("Expected 500 for an outcome without a trace, got %d", got)
	}
}
