package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	"sheetsql/cmd"
	"sheetsql/internal/importer"
	"sheetsql/internal/session"
	"sheetsql/internal/sheets"
	"sheetsql/internal/store"
	"sheetsql/internal/workflow"
)

const (
	sessionCookie = "sheetsql_session"
	uploadField   = "files"
	runRowLimit   = 100
)

var errNoFiles = errors.New("no files uploaded")

// Workspace holds what the web and API handlers share: the app and the
// per-browser sessions.
type Workspace struct {
	App      *cmd.App
	Sessions *session.Manager
	Logger   *slog.Logger
}

// NewWorkspace creates a Workspace whose sessions expire after the
// configured idle TTL.
func NewWorkspace(app *cmd.App) *Workspace {
	return &Workspace{
		App:      app,
		Sessions: session.NewManager(app.Config.Server.SessionTTL(), app.Logger),
		Logger:   app.Logger,
	}
}

// session returns the caller's session, starting one (and setting the
// cookie) when the request has none or it expired.
func (ws *Workspace) session(w http.ResponseWriter, r *http.Request) *session.State {
	id := ""
	if c, err := r.Cookie(sessionCookie); err == nil {
		id = c.Value
	}

	st, created := ws.Sessions.GetOrStart(id)
	if created {
		http.SetCookie(w, &http.Cookie{
			Name:     sessionCookie,
			Value:    st.ID,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}
	return st
}

// endSession ends the caller's session and clears the cookie.
func (ws *Workspace) endSession(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(sessionCookie); err == nil {
		if err := ws.Sessions.End(c.Value); err != nil && !errors.Is(err, session.ErrNotFound) {
			ws.Logger.Warn("Failed to end session", "error", err, "session_id", c.Value)
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
	})
}

// readUpload parses the multipart files of r into sheets.
func (ws *Workspace) readUpload(w http.ResponseWriter, r *http.Request) (*sheets.Set, error) {
	limit := ws.App.Config.Server.MaxUploadBytes()
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(limit); err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}

	headers := r.MultipartForm.File[uploadField]
	if len(headers) == 0 {
		return nil, errNoFiles
	}

	files := make([]sheets.File, 0, len(headers))
	for _, fh := range headers {
		f, err := openPart(fh)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		files = append(files, sheets.File{Name: fh.Filename, Reader: f})
	}
	return sheets.Load(files...)
}

func openPart(fh *multipart.FileHeader) (multipart.File, error) {
	if !sheets.Supported(fh.Filename) {
		return nil, fmt.Errorf("%w: %s", sheets.ErrUnsupportedFile, fh.Filename)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", fh.Filename, err)
	}
	return f, nil
}

// upload replaces the session's sheets with set and imports them.
func (ws *Workspace) upload(ctx context.Context, st *session.State, set *sheets.Set) []importer.Notice {
	st.SetSheets(set)
	ws.Logger.Info("Documents uploaded", "session_id", st.ID, "sheets", set.Len())
	return ws.App.Importer().Import(ctx, set)
}

func (ws *Workspace) addData(ctx context.Context, st *session.State) ([]importer.Notice, error) {
	return workflow.AddData(ctx, st, ws.App.Importer())
}

func (ws *Workspace) generate(ctx context.Context, st *session.State, prompt, table string) workflow.Outcome {
	return ws.App.Generator().GenerateQuery(ctx, st, prompt, table)
}

func (ws *Workspace) analyze(ctx context.Context, st *session.State) []workflow.TableReport {
	return ws.App.Generator().Analyze(ctx, st)
}

func (ws *Workspace) run(ctx context.Context, query string) (*store.Result, error) {
	return workflow.Run(ctx, ws.App.Store, query, runRowLimit)
}

// uploadStatus maps an upload error to an HTTP status.
func uploadStatus(err error) int {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, errNoFiles), errors.Is(err, sheets.ErrUnsupportedFile):
		return http.StatusBadRequest
	default:
		return http.StatusUnprocessableEntity
	}
}

// generateStatus maps a generation outcome to an HTTP status.
func generateStatus(o workflow.Outcome) int {
	if o.OK() {
		return http.StatusOK
	}
	if len(o.Trace) < 2 {
		return http.StatusInternalServerError
	}
	switch o.Trace[len(o.Trace)-2] {
	case workflow.Idle:
		return http.StatusBadRequest
	case workflow.PromptEntered:
		return http.StatusNotFound
	default:
		return http.StatusBadGateway
	}
}
