package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"sheetsql/internal/config"
)

var (
	dataDir    string
	configPath string
	driverFlag string
	verbose    bool

	// Logger and cfg are set up by the root command before any subcommand runs.
	Logger *slog.Logger
	cfg    config.Config

	rootCmd = &cobra.Command{
		Use:   "sheetsql [files...]",
		Short: "sheetsql - Turn spreadsheets into SQL tables and ask questions about them",
		Long: `sheetsql imports every sheet of uploaded Excel workbooks (or CSV files) into a
local database and uses Claude to explain the tables and to write SQL queries
from plain-language prompts.

When run without commands, it launches an interactive TUI. Workbooks given as
arguments are loaded and imported first.
Use subcommands for CLI mode with JSON output.`,
		Args:              cobra.ArbitraryArgs,
		PersistentPreRunE: setup,
		Run: func(cmd *cobra.Command, args []string) {
			app, cleanup, err := InitApp()
			if err != nil {
				HandleError(err, "Failed to initialize")
			}
			defer cleanup()

			// No subcommand specified - launch TUI
			if err := LaunchTUI(app, args); err != nil {
				HandleError(err, "TUI failed")
			}
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&dataDir, "data-dir", "d", "tmpdata/", "Directory holding the database, config and logs")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default <data-dir>/sheetsql.toml)")
	rootCmd.PersistentFlags().StringVar(&driverFlag, "driver", "", "Store driver: duckdb or sqlite (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log at debug level")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// setup loads config, creates the data directory and opens the log file.
// The config file is looked up under the data-dir flag; the data_dir it
// names is used unless the flag was given explicitly.
func setup(cmd *cobra.Command, args []string) error {
	path := configPath
	if path == "" {
		path = config.Path(dataDir)
	}
	loaded, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}

	loaded.General.DataDir = resolveDataDir(cmd.Flags().Changed("data-dir"), dataDir, loaded.General.DataDir)
	if driverFlag != "" {
		loaded.General.Driver = driverFlag
		if err := loaded.Validate(); err != nil {
			return err
		}
	}

	if err := os.MkdirAll(loaded.General.DataDir, 0o755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}
	logger, err := SetupLogger(loaded.General.DataDir, verbose)
	if err != nil {
		return err
	}
	Logger = logger
	cfg = loaded

	Logger.Info("Application started", "command", cmd.Name(), "data_dir", cfg.General.DataDir, "config_path", path, "driver", cfg.General.Driver)
	return nil
}

// resolveDataDir picks the data directory: an explicit flag, then the
// config file, then the flag default.
func resolveDataDir(flagSet bool, flagValue, configured string) string {
	if flagSet || configured == "" {
		return flagValue
	}
	return configured
}

// SetupLogger creates the application logger writing JSON lines to
// <dataDir>/err.log.
func SetupLogger(dataDir string, debug bool) (*slog.Logger, error) {
	logPath := filepath.Join(dataDir, "err.log")

	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	return newLogger(logFile, debug), nil
}

func newLogger(w io.Writer, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:     level,
		AddSource: true, // Include file:line information
	})
	return slog.New(handler)
}
