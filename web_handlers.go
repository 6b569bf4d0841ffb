package main

import (
	"embed"
	"fmt"
	"html/template"
	"net/http"

	"sheetsql/internal/importer"
	"sheetsql/internal/workflow"
)

//go:embed templates static
var assets embed.FS

const uploadSuccess = "Documents uploaded and processed successfully."

// WebHandler handles HTMX HTML requests
type WebHandler struct {
	ws        *Workspace
	templates *template.Template
}

// NewWebHandler creates a new WebHandler with parsed templates
func NewWebHandler(ws *Workspace) *WebHandler {
	return &WebHandler{
		ws:        ws,
		templates: parseTemplates(),
	}
}

func parseTemplates() *template.Template {
	funcs := template.FuncMap{
		"cell": func(v interface{}) string {
			if v == nil {
				return "NULL"
			}
			return fmt.Sprint(v)
		},
	}
	return template.Must(template.New("").Funcs(funcs).ParseFS(assets,
		"templates/*.html",
		"templates/partials/*.html",
	))
}

func (h *WebHandler) render(w http.ResponseWriter, status int, name string, data interface{}) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.templates.ExecuteTemplate(w, name, data); err != nil {
		h.ws.Logger.Error("Template error", "error", err, "template", name)
	}
}

// IndexPage renders the main page
func (h *WebHandler) IndexPage(w http.ResponseWriter, r *http.Request) {
	st := h.ws.session(w, r)
	h.render(w, http.StatusOK, "index.html", map[string]interface{}{
		"Title":  "sheetsql",
		"Tables": st.TableNames(),
	})
}

// Upload loads the posted workbooks into the session and imports them
func (h *WebHandler) Upload(w http.ResponseWriter, r *http.Request) {
	st := h.ws.session(w, r)

	set, err := h.ws.readUpload(w, r)
	if err != nil {
		h.ws.Logger.Warn("Upload rejected", "error", err, "session_id", st.ID, "status", uploadStatus(err))
		// HTMX only swaps 2xx responses
		h.render(w, http.StatusOK, "notices.html", map[string]interface{}{
			"Error": err.Error(),
		})
		return
	}

	notices := h.ws.upload(r.Context(), st, set)
	h.render(w, http.StatusOK, "notices.html", map[string]interface{}{
		"Success": uploadSuccess,
		"Notices": notices,
		"Tables":  st.TableNames(),
	})
}

// AddData re-imports the session's sheets
func (h *WebHandler) AddData(w http.ResponseWriter, r *http.Request) {
	st := h.ws.session(w, r)

	notices, err := h.ws.addData(r.Context(), st)
	if err != nil {
		h.render(w, http.StatusOK, "notices.html", map[string]interface{}{
			"Error": err.Error(),
		})
		return
	}

	data := map[string]interface{}{
		"Notices": notices,
		"Tables":  st.TableNames(),
	}
	if len(importer.Failed(notices)) == 0 {
		data["Success"] = workflow.MsgDataAdded
	}
	h.render(w, http.StatusOK, "notices.html", data)
}

// Generate asks the assistant for a query and its explanation
func (h *WebHandler) Generate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	st := h.ws.session(w, r)

	out := h.ws.generate(r.Context(), st, r.FormValue("prompt"), r.FormValue("table"))

	// Refresh the history panel when an exchange was recorded
	if out.Recorded() {
		w.Header().Set("HX-Trigger", "refreshHistory")
	}
	h.render(w, http.StatusOK, "outcome.html", map[string]interface{}{
		"Outcome": out,
	})
}

// Analyze describes every loaded sheet
func (h *WebHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	st := h.ws.session(w, r)
	h.render(w, http.StatusOK, "analysis.html", map[string]interface{}{
		"Reports": h.ws.analyze(r.Context(), st),
	})
}

// Run executes a generated query against the store
func (h *WebHandler) Run(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	result, err := h.ws.run(r.Context(), r.FormValue("query"))
	data := map[string]interface{}{"Result": result}
	if err != nil {
		h.ws.Logger.Warn("Query run failed", "error", err)
		data["Error"] = fmt.Sprintf("Query failed: %v", err)
	}
	h.render(w, http.StatusOK, "result.html", data)
}

// History lists the session's prompts and responses
func (h *WebHandler) History(w http.ResponseWriter, r *http.Request) {
	st := h.ws.session(w, r)
	h.render(w, http.StatusOK, "history.html", map[string]interface{}{
		"History": st.History(),
	})
}

// EndSession clears the session and reloads the page
func (h *WebHandler) EndSession(w http.ResponseWriter, r *http.Request) {
	h.ws.endSession(w, r)
	w.Header().Set("HX-Redirect", "/")
	w.WriteHeader(http.StatusNoContent)
}
