package main

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"sheetsql/internal/importer"
	"sheetsql/internal/store"
	"sheetsql/internal/workflow"
)

// APIHandler handles JSON API requests
type APIHandler struct {
	ws *Workspace
}

// noticeJSON is an import notice as returned by the API
type noticeJSON struct {
	Table   string `json:"table"`
	Rows    int    `json:"rows"`
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

func noticesJSON(notices []importer.Notice) []noticeJSON {
	out := make([]noticeJSON, len(notices))
	for i, n := range notices {
		out[i] = noticeJSON{Table: n.Table, Rows: n.Rows, OK: n.OK(), Message: n.Message()}
	}
	return out
}

// Upload handles multipart workbook uploads
func (h *APIHandler) Upload(w http.ResponseWriter, r *http.Request) {
	st := h.ws.session(w, r)

	set, err := h.ws.readUpload(w, r)
	if err != nil {
		h.ws.Logger.Warn("Upload rejected", "error", err, "session_id", st.ID)
		respondJSON(w, uploadStatus(err), map[string]string{
			"error": err.Error(),
		})
		return
	}

	notices := h.ws.upload(r.Context(), st, set)
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"message": uploadSuccess,
		"tables":  st.TableNames(),
		"notices": noticesJSON(notices),
	})
}

// AddData re-imports the session's sheets
func (h *APIHandler) AddData(w http.ResponseWriter, r *http.Request) {
	st := h.ws.session(w, r)

	notices, err := h.ws.addData(r.Context(), st)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"notices": noticesJSON(notices),
	})
}

// generateRequest is the body of POST /api/generate
type generateRequest struct {
	Prompt string `json:"prompt"`
	Table  string `json:"table"`
}

// Generate runs query generation for the session
func (h *APIHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{
			"error": "Invalid JSON body",
		})
		return
	}
	st := h.ws.session(w, r)

	out := h.ws.generate(r.Context(), st, req.Prompt, req.Table)
	respondJSON(w, generateStatus(out), out)
}

// Analyze reports on every loaded sheet
func (h *APIHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	st := h.ws.session(w, r)
	reports := h.ws.analyze(r.Context(), st)
	if reports == nil {
		reports = []workflow.TableReport{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"reports": reports,
		"text":    workflow.RenderReports(reports),
	})
}

// queryRequest is the body of POST /api/query
type queryRequest struct {
	SQL   string `json:"sql"`
	Limit int    `json:"limit"`
}

// Query runs a read-only statement against the store
func (h *APIHandler) Query(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{
			"error": "Invalid JSON body",
		})
		return
	}
	if req.Limit <= 0 {
		req.Limit = runRowLimit
	}

	result, err := workflow.Run(r.Context(), h.ws.App.Store, req.SQL, req.Limit)
	if err != nil {
		if !errors.Is(err, store.ErrNotReadOnly) {
			h.ws.Logger.Warn("API query failed", "error", err)
		}
		respondJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// Tables lists the stored tables
func (h *APIHandler) Tables(w http.ResponseWriter, r *http.Request) {
	tables, err := h.ws.App.Store.Tables(r.Context())
	if err != nil {
		h.ws.Logger.Error("Failed to list tables", "error", err)
		respondJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "Internal server error",
		})
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"tables": tables,
		"count":  len(tables),
	})
}

// Table describes one stored table
func (h *APIHandler) Table(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	cols, err := h.ws.App.Store.Describe(r.Context(), name)
	if err != nil {
		if errors.Is(err, store.ErrTableNotFound) {
			respondJSON(w, http.StatusNotFound, map[string]string{
				"error": "Table not found",
			})
			return
		}
		h.ws.Logger.Error("Failed to describe table", "error", err, "table", name)
		respondJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "Internal server error",
		})
		return
	}

	rows, err := h.ws.App.Store.RowCount(r.Context(), name)
	if err != nil {
		h.ws.Logger.Error("Failed to count rows", "error", err, "table", name)
		respondJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "Internal server error",
		})
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"table":   name,
		"rows":    rows,
		"columns": cols,
	})
}

// History returns the session's exchanges
func (h *APIHandler) History(w http.ResponseWriter, r *http.Request) {
	st := h.ws.session(w, r)
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"history": st.History(),
	})
}

// EndSession clears the caller's session
func (h *APIHandler) EndSession(w http.ResponseWriter, r *http.Request) {
	h.ws.endSession(w, r)
	w.WriteHeader(http.StatusNoContent)
}

// respondJSON is a helper function to send JSON responses
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
