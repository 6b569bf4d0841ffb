// Package assistant wraps the Anthropic Messages API for single-turn
// question/answer calls and pulls SQL out of the replies.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// ErrEmptyReply is carried by a Reply whose message had no text.
var ErrEmptyReply = errors.New("no text response from Claude")

// Reply is the outcome of one Send: the text on success, or the reason it
// failed. Send never returns a failure any other way.
type Reply struct {
	Text string
	Err  error
}

// OK reports whether the reply carries an answer.
func (r Reply) OK() bool {
	return r.Err == nil
}

// Sender sends one prompt with a system instruction.
type Sender interface {
	Send(ctx context.Context, prompt, system string) Reply
}

// Config holds Client settings.
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	MaxTokens  int64
	Timeout    time.Duration
	MaxRetries int
}

// Client sends prompts to Claude.
type Client struct {
	client    *anthropic.Client
	model     anthropic.Model
	maxTokens int64
	logger    *slog.Logger
}

// NewClient creates a Client. The API key is required.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if cfg.APIKey == "" {
		logger.Error("Assistant initialization failed: missing API key")
		return nil, fmt.Errorf("ANTHROPIC_API_KEY environment variable not set")
	}
	if cfg.Model == "" {
		cfg.Model = string(anthropic.ModelClaudeHaiku4_5)
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 2048
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}

	client := anthropic.NewClient(opts...)

	logger.Info("Assistant initialized", "model", cfg.Model, "max_tokens", cfg.MaxTokens, "max_retries", cfg.MaxRetries)

	return &Client{
		client:    &client,
		model:     anthropic.Model(cfg.Model),
		maxTokens: cfg.MaxTokens,
		logger:    logger,
	}, nil
}

// Model returns the configured model identifier.
func (c *Client) Model() string {
	return string(c.model)
}

// Send asks for a single completion of prompt under the system instruction.
func (c *Client) Send(ctx context.Context, prompt, system string) Reply {
	params := anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	start := time.Now()
	message, err := c.client.Messages.New(ctx, params)
	if err != nil {
		c.logger.Error("Claude API call failed", "error", err, "model", c.model, "prompt_preview", truncate(prompt, 120))
		return Reply{Err: fmt.Errorf("Claude API error: %w", err)}
	}

	var b strings.Builder
	for _, block := range message.Content {
		if textBlock, ok := block.AsAny().(anthropic.TextBlock); ok {
			b.WriteString(textBlock.Text)
		}
	}
	if b.Len() == 0 {
		c.logger.Warn("No text content in Claude response", "model", c.model, "stop_reason", message.StopReason)
		return Reply{Err: ErrEmptyReply}
	}

	c.logger.Info("Claude reply received",
		"model", c.model,
		"elapsed", time.Since(start),
		"input_tokens", message.Usage.InputTokens,
		"output_tokens", message.Usage.OutputTokens)

	return Reply{Text: b.String()}
}

// Unavailable returns a Sender whose every reply fails with err. It stands
// in for a Client that could not be created.
func Unavailable(err error) Sender {
	return unavailable{err: err}
}

type unavailable struct{ err error }

func (u unavailable) Send(ctx context.Context, prompt, system string) Reply {
	return Reply{Err: u.err}
}

// truncate cuts s to maxLen bytes, adding "..." if it was longer.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
