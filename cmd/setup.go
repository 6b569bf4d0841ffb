package cmd

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"sheetsql/internal/config"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Interactive setup wizard",
	Long:  `Asks for the Anthropic API key, store driver, model and server port, then writes the config file.`,
	RunE:  runSetup,
}

// setupValues backs the setup form fields
type setupValues struct {
	APIKey string
	Driver string
	Model  string
	Port   string
}

func newSetupValues(c config.Config) *setupValues {
	return &setupValues{
		Driver: c.General.Driver,
		Model:  c.Assistant.Model,
		Port:   strconv.Itoa(c.Server.Port),
	}
}

// apply copies the form answers onto c. A blank API key keeps the current one.
func (v *setupValues) apply(c config.Config) (config.Config, error) {
	if key := strings.TrimSpace(v.APIKey); key != "" {
		c.Assistant.APIKey = key
	}
	c.General.Driver = v.Driver
	if model := strings.TrimSpace(v.Model); model != "" {
		c.Assistant.Model = model
	}
	port, err := validatePort(v.Port)
	if err != nil {
		return c, err
	}
	c.Server.Port = port

	if err := c.Validate(); err != nil {
		return c, err
	}
	return c, nil
}

func validatePort(s string) (int, error) {
	port, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || port < 1 || port > 65535 {
		return 0, fmt.Errorf("port must be a number between 1 and 65535")
	}
	return port, nil
}

func newSetupForm(v *setupValues, existingKey string) *huh.Form {
	keyDesc := "Used for query generation and analysis. Leave blank to skip."
	if existingKey != "" {
		keyDesc = fmt.Sprintf("Current: %s. Leave blank to keep it.", maskAPIKey(existingKey))
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Anthropic API key").
				Description(keyDesc).
				EchoMode(huh.EchoModePassword).
				Value(&v.APIKey),
			huh.NewSelect[string]().
				Title("Store driver").
				Options(
					huh.NewOption("DuckDB", config.DriverDuckDB),
					huh.NewOption("SQLite", config.DriverSQLite),
				).
				Value(&v.Driver),
			huh.NewInput().
				Title("Model").
				Value(&v.Model),
			huh.NewInput().
				Title("Server port").
				Validate(func(s string) error {
					_, err := validatePort(s)
					return err
				}).
				Value(&v.Port),
		),
	)
}

func runSetup(_ *cobra.Command, _ []string) error {
	path := configPath
	if path == "" {
		path = config.Path(dataDir)
	}

	values := newSetupValues(cfg)
	if err := newSetupForm(values, cfg.Assistant.APIKey).Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			fmt.Println("Setup cancelled, nothing saved.")
			return nil
		}
		return fmt.Errorf("setup form: %w", err)
	}

	updated, err := values.apply(cfg)
	if err != nil {
		return err
	}
	if err := config.Save(path, updated); err != nil {
		Logger.Error("Failed to save config", "error", err, "config_path", path)
		return fmt.Errorf("saving config: %w", err)
	}

	Logger.Info("Config saved", "config_path", path)
	fmt.Printf("Saved to %s\n", path)
	fmt.Println("Run `sheetsql setup` anytime to reconfigure.")
	return nil
}

func maskAPIKey(key string) string {
	if len(key) > 16 {
		return key[:8] + "..." + key[len(key)-4:]
	}
	if len(key) > 4 {
		return key[:4] + "..."
	}
	return "****"
}

func init() {
	rootCmd.AddCommand(setupCmd)
}
