package agent

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"charm.land/fantasy"
	"charm.land/fantasy/providers/anthropic"

	"sheetsql/internal/store"
)

const (
	defaultModel        = "claude-haiku-4-5"
	defaultSystemPrompt = "You are a data analyst answering questions about spreadsheets that were imported into a SQL database. " +
		"Use the tools to list the tables, inspect their columns and run read-only queries. " +
		"Base every answer on query results and show the SQL you ran."
	defaultRowLimit = 50
)

// AgentConfig holds the configuration for creating an ask agent
type AgentConfig struct {
	apiKey       string
	model        string
	systemPrompt string
	rowLimit     int
	store        store.Store
	logger       *slog.Logger
}

// AgentOption is a functional option for configuring the agent
type AgentOption func(*AgentConfig) error

// WithAPIKey sets the Anthropic API key
func WithAPIKey(apiKey string) AgentOption {
	return func(c *AgentConfig) error {
		if apiKey == "" {
			return fmt.Errorf("API key cannot be empty")
		}
		c.apiKey = apiKey
		return nil
	}
}

// WithAPIKeyFromEnv sets the API key from the ANTHROPIC_API_KEY environment variable
func WithAPIKeyFromEnv() AgentOption {
	return func(c *AgentConfig) error {
		apiKey := os.Getenv("ANTHROPIC_API_KEY")
		if apiKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY environment variable not set")
		}
		c.apiKey = apiKey
		return nil
	}
}

// WithModel sets the Claude model to use (default: claude-haiku-4-5)
func WithModel(model string) AgentOption {
	return func(c *AgentConfig) error {
		if model == "" {
			return fmt.Errorf("model cannot be empty")
		}
		c.model = model
		return nil
	}
}

// WithSystemPrompt sets a custom system prompt
func WithSystemPrompt(prompt string) AgentOption {
	return func(c *AgentConfig) error {
		c.systemPrompt = prompt
		return nil
	}
}

// WithStore sets the store the tools read from
func WithStore(s store.Store) AgentOption {
	return func(c *AgentConfig) error {
		if s == nil {
			return fmt.Errorf("store cannot be nil")
		}
		c.store = s
		return nil
	}
}

// WithRowLimit caps the rows returned by run_query
func WithRowLimit(n int) AgentOption {
	return func(c *AgentConfig) error {
		if n <= 0 {
			return fmt.Errorf("row limit must be positive, got %d", n)
		}
		c.rowLimit = n
		return nil
	}
}

// WithLogger sets the logger used by the tools
func WithLogger(logger *slog.Logger) AgentOption {
	return func(c *AgentConfig) error {
		c.logger = logger
		return nil
	}
}

func newConfig(opts ...AgentOption) (*AgentConfig, error) {
	config := &AgentConfig{
		model:        defaultModel,
		systemPrompt: defaultSystemPrompt,
		rowLimit:     defaultRowLimit,
	}

	for _, opt := range opts {
		if err := opt(config); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if config.apiKey == "" {
		return nil, fmt.Errorf("API key is required (use WithAPIKey or WithAPIKeyFromEnv)")
	}
	if config.store == nil {
		return nil, fmt.Errorf("store is required (use WithStore)")
	}
	if config.logger == nil {
		config.logger = slog.New(slog.DiscardHandler)
	}
	return config, nil
}

// NewAskAgent creates a Fantasy agent that answers questions about the
// imported tables.
func NewAskAgent(ctx context.Context, opts ...AgentOption) (fantasy.Agent, error) {
	config, err := newConfig(opts...)
	if err != nil {
		return nil, err
	}

	provider, err := anthropic.New(anthropic.WithAPIKey(config.apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Anthropic provider: %w", err)
	}

	model, err := provider.LanguageModel(ctx, config.model)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Claude model: %w", err)
	}

	tools := NewTools(config.store, config.rowLimit, config.logger)

	return fantasy.NewAgent(
		model,
		fantasy.WithSystemPrompt(config.systemPrompt),
		fantasy.WithTools(tools...),
	), nil
}

// GenerateResponse is a convenience function that creates an agent and generates a response in one call
func GenerateResponse(ctx context.Context, question string, opts ...AgentOption) (string, error) {
	agent, err := NewAskAgent(ctx, opts...)
	if err != nil {
		return "", fmt.Errorf("failed to create agent: %w", err)
	}

	result, err := agent.Generate(ctx, fantasy.AgentCall{Prompt: question})
	if err != nil {
		return "", fmt.Errorf("failed to generate response: %w", err)
	}

	return result.Response.Content.Text(), nil
}
