package cmd

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"sheetsql/internal/assistant"
	"sheetsql/internal/config"
	"sheetsql/internal/importer"
	"sheetsql/internal/store"
	"sheetsql/internal/workflow"
)

// App bundles the long-lived dependencies shared by the CLI, TUI and web
// server.
type App struct {
	Config config.Config
	Store  *store.DB
	Logger *slog.Logger

	sender assistant.Sender
}

// InitApp opens the store for the loaded config. The returned cleanup
// closes it.
func InitApp() (*App, func(), error) {
	logger := Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	db, err := store.Open(cfg.General.Driver, cfg.General.DataDir, logger)
	if err != nil {
		return nil, nil, err
	}

	app := &App{Config: cfg, Store: db, Logger: logger}
	cleanup := func() {
		if err := db.Close(); err != nil {
			logger.Warn("Failed to close store", "error", err)
		}
	}
	return app, cleanup, nil
}

// Assistant returns the Claude client, or a Sender that fails every call
// when the client cannot be created (for example without an API key).
func (a *App) Assistant() assistant.Sender {
	if a.sender != nil {
		return a.sender
	}

	c := a.Config.Assistant
	client, err := assistant.NewClient(assistant.Config{
		APIKey:     c.APIKey,
		BaseURL:    c.BaseURL,
		Model:      c.Model,
		MaxTokens:  c.MaxTokens,
		Timeout:    c.Timeout(),
		MaxRetries: c.MaxRetries,
	}, a.Logger)
	if err != nil {
		a.Logger.Warn("Assistant unavailable", "error", err)
		a.sender = assistant.Unavailable(err)
	} else {
		a.sender = client
	}
	return a.sender
}

// SetAssistant replaces the assistant, mainly for tests.
func (a *App) SetAssistant(s assistant.Sender) {
	a.sender = s
}

// Importer returns an importer into the app's store. Its CSV files go to the
// store's import directory, the only place the store reads files from.
func (a *App) Importer() *importer.Importer {
	return importer.New(a.Store, a.Store.ImportDir(), a.Logger)
}

// Generator returns a workflow generator using the app's assistant.
func (a *App) Generator() *workflow.Generator {
	return workflow.New(a.Assistant(), a.Logger)
}

// These variables will be set by main package
var (
	LaunchTUI   func(app *App, files []string) error
	StartServer func(app *App, port int) error
)

// HandleError prints error and exits
func HandleError(err error, message string) {
	if Logger != nil {
		Logger.Error(message, "error", err)
	}
	fmt.Fprintf(os.Stderr, "Error: %s: %v\n", message, err)
	os.Exit(1)
}

// printJSON writes v to stdout as indented JSON
func printJSON(v interface{}) {
	output, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		HandleError(err, "Failed to encode JSON")
	}
	fmt.Println(string(output))
}
