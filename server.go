package main

import (
	"fmt"
	"io/fs"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"sheetsql/cmd"
)

// ServerConfig holds configuration for the web server
type ServerConfig struct {
	Port int
	App  *cmd.App
}

// NewRouter builds the routes for the web UI and the JSON API
func NewRouter(ws *Workspace) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	// Assistant calls are synchronous and can take a while
	r.Use(middleware.Timeout(5 * time.Minute))

	// Static files
	staticFS, err := fs.Sub(assets, "static")
	if err != nil {
		panic(err)
	}
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(staticFS))))

	// Web handlers (HTMX HTML responses)
	webHandler := NewWebHandler(ws)
	r.Get("/", webHandler.IndexPage)
	r.Post("/upload", webHandler.Upload)
	r.Post("/add", webHandler.AddData)
	r.Post("/generate", webHandler.Generate)
	r.Post("/analyze", webHandler.Analyze)
	r.Post("/run", webHandler.Run)
	r.Get("/history", webHandler.History)
	r.Post("/session/end", webHandler.EndSession)

	// API handlers (JSON responses)
	apiHandler := &APIHandler{ws: ws}
	r.Route("/api", func(r chi.Router) {
		r.Post("/upload", apiHandler.Upload)
		r.Post("/add", apiHandler.AddData)
		r.Post("/generate", apiHandler.Generate)
		r.Post("/analyze", apiHandler.Analyze)
		r.Post("/query", apiHandler.Query)
		r.Get("/tables", apiHandler.Tables)
		r.Get("/tables/{name}", apiHandler.Table)
		r.Get("/history", apiHandler.History)
		r.Delete("/session", apiHandler.EndSession)
	})

	return r
}

// StartServer initializes and starts the HTTP server
func StartServer(config ServerConfig) error {
	ws := NewWorkspace(config.App)

	addr := fmt.Sprintf(":%d", config.Port)
	ws.Logger.Info("Starting server", "addr", addr)
	fmt.Printf("Starting server on http://localhost%s\n", addr)

	srv := &http.Server{
		Addr:              addr,
		Handler:           NewRouter(ws),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return srv.ListenAndServe()
}
