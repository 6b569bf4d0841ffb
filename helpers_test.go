package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/xuri/excelize/v2"

	"sheetsql/cmd"
	"sheetsql/internal/assistant"
	"sheetsql/internal/config"
	"sheetsql/internal/store"
)

// scriptedSender replays canned replies in order, repeating the last one
type scriptedSender struct {
	mu      sync.Mutex
	replies []assistant.Reply
	prompts []string
}

func (s *scriptedSender) Send(ctx context.Context, prompt, system string) assistant.Reply {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.prompts = append(s.prompts, prompt)
	if len(s.replies) == 0 {
		return assistant.Reply{}
	}
	r := s.replies[0]
	if len(s.replies) > 1 {
		s.replies = s.replies[1:]
	}
	return r
}

func (s *scriptedSender) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.prompts)
}

// SetupTestApp creates an App backed by a sqlite store in a temp dir
func SetupTestApp(t *testing.T, sender assistant.Sender) *cmd.App {
	t.Helper()

	cfg := config.Default()
	cfg.General.DataDir = t.TempDir()
	cfg.General.Driver = config.DriverSQLite

	logger := slog.New(slog.DiscardHandler)
	db, err := store.Open(cfg.General.Driver, cfg.General.DataDir, logger)
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	app := &cmd.App{Config: cfg, Store: db, Logger: logger}
	if sender != nil {
		app.SetAssistant(sender)
	} else {
		app.SetAssistant(assistant.Unavailable(io.ErrUnexpectedEOF))
	}
	return app
}

// studentsWorkbook returns an xlsx with a Students and a Courses sheet
func studentsWorkbook(t *testing.T) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", "Students"); err != nil {
		t.Fatalf("failed to rename sheet: %v", err)
	}
	if _, err := f.NewSheet("Courses"); err != nil {
		t.Fatalf("failed to add sheet: %v", err)
	}

	rows := map[string][][]interface{}{
		"Students": {
			{"Student Name", "Grade"},
			{"Ada", 91},
			{"Linus", 78},
			{"Grace", nil},
		},
		"Courses": {
			{"Code", "Title"},
			{"CS101", "Intro"},
		},
	}
	for name, data := range rows {
		for r, row := range data {
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

// uploadRequest builds a multipart POST with the given files
func uploadRequest(t *testing.T, target string, files map[string][]byte) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for name, data := range files {
		part, err := mw.CreateFormFile(uploadField, name)
		if err != nil {
			t.Fatalf("failed to create form file: %v", err)
		}
		if _, err := part.Write(data); err != nil {
			t.Fatalf("failed to write form file: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("failed to close multipart writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

// sessionClient replays the session cookie across requests to one handler
type sessionClient struct {
	t       *testing.T
	handler http.Handler
	cookie  *http.Cookie
}

func (c *sessionClient) do(req *http.Request) *httptest.ResponseRecorder {
	c.t.Helper()

	if c.cookie != nil {
		req.AddCookie(c.cookie)
	}
	rec := httptest.NewRecorder()
	c.handler.ServeHTTP(rec, req)

	for _, ck := range rec.Result().Cookies() {
		if ck.Name == sessionCookie {
			if ck.MaxAge < 0 {
				c.cookie = nil
			} else {
				c.cookie = ck
			}
		}
	}
	return rec
}
