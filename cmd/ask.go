package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"sheetsql/internal/agent"
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question about the imported tables using Claude AI via Fantasy",
	Long: `Ask a natural language question and get an AI-powered answer.
This command uses the Fantasy library to run a Claude agent that can list the
imported tables, inspect their columns and run read-only queries.

Requires ANTHROPIC_API_KEY environment variable to be set.

Example:
  sheetsql ask "Which class has the highest average score?"
  sheetsql ask "How many students are missing a grade?"`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		question := strings.Join(args, " ")

		app, cleanup, err := InitApp()
		if err != nil {
			HandleError(err, "Failed to initialize database")
		}
		defer cleanup()

		opts := []agent.AgentOption{
			agent.WithModel(app.Config.Assistant.Model),
			agent.WithStore(app.Store),
			agent.WithLogger(app.Logger),
		}
		if app.Config.Assistant.APIKey != "" {
			opts = append(opts, agent.WithAPIKey(app.Config.Assistant.APIKey))
		} else {
			opts = append(opts, agent.WithAPIKeyFromEnv())
		}

		answer, err := agent.GenerateResponse(context.Background(), question, opts...)
		if err != nil {
			HandleError(err, "Failed to generate response")
		}

		fmt.Println(answer)
	},
}

func init() {
	rootCmd.AddCommand(askCmd)
}
