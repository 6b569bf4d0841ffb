package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	port     int
	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Start the web server",
		Long: `Start the HTTP web server with HTMX interface.

The web server provides a browser-based interface for uploading workbooks,
analyzing them and generating SQL, with the same functionality as the TUI
plus JSON API endpoints under /api.`,
		Run: func(cmd *cobra.Command, args []string) {
			runServe(cmd.Flags().Changed("port"))
		},
	}
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntVarP(&port, "port", "p", 3000, "Port to run the server on")
}

func runServe(portSet bool) {
	app, cleanup, err := InitApp()
	if err != nil {
		HandleError(err, "Failed to initialize database")
	}
	defer cleanup()

	// The flag wins over the config file only when given
	if !portSet && app.Config.Server.Port > 0 {
		port = app.Config.Server.Port
	}

	fmt.Printf("Starting sheetsql web server...\n")
	fmt.Printf("Data directory: %s\n", app.Config.General.DataDir)
	fmt.Printf("Store: %s\n", app.Store.Driver())
	fmt.Printf("Port: %d\n\n", port)

	if err := StartServer(app, port); err != nil {
		HandleError(err, "Server failed")
	}
}
