package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"sheetsql/cmd"
	"sheetsql/internal/session"
)

// launchTUI starts the interactive TUI application, loading files first
// when any are given
func launchTUI(app *cmd.App, files []string) error {
	// The TUI is a single session; it ends when the program exits
	st := session.New()
	m := initialModel(app, st)

	fmt.Println("\nsheetsql configuration:")
	fmt.Printf("   • Store: %s (%s)\n", app.Store.Driver(), app.Store.Path())
	if app.Config.Assistant.APIKey != "" {
		fmt.Printf("   • Assistant: ✓ %s\n", app.Config.Assistant.Model)
	} else {
		fmt.Println("   • Assistant: ✗ Not configured (set ANTHROPIC_API_KEY)")
	}
	fmt.Println()

	var startup tea.Cmd
	if len(files) > 0 {
		m.busy = "Importing workbooks"
		startup = tea.Batch(loadFiles(app, st, files), m.spinner.Tick)
	}

	p := tea.NewProgram(
		startModel{model: m, startup: startup},
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)

	if _, err := p.Run(); err != nil {
		app.Logger.Error("TUI exited with error", "error", err)
		return fmt.Errorf("error running program: %w", err)
	}
	return nil
}

// startModel runs a startup command alongside the model's own Init
type startModel struct {
	model
	startup tea.Cmd
}

func (s startModel) Init() tea.Cmd {
	return tea.Batch(s.model.Init(), s.startup)
}

func startServer(app *cmd.App, port int) error {
	return StartServer(ServerConfig{Port: port, App: app})
}

func main() {
	// Set up cmd package callbacks
	cmd.LaunchTUI = launchTUI
	cmd.StartServer = startServer

	// Execute the CLI
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
