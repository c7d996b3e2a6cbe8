// Package llm adapts the Anthropic Messages API to the single-prompt
// completion interface used by the lyrics pipeline.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const (
	DefaultModel      = "claude-3-5-haiku-latest"
	DefaultMaxTokens  = 2048
	DefaultTimeout    = 60 * time.Second
	DefaultMaxRetries = 2
)

// ErrEmptyCompletion is returned when the model produced no text.
var ErrEmptyCompletion = errors.New("model returned no text")

// Config configures the client.
type Config struct {
	APIKey      string        `env:"ANTHROPIC_API_KEY"  yaml:"api_key"`
	BaseURL     string        `env:"ANTHROPIC_BASE_URL" yaml:"base_url"`
	Model       string        `env:"LLM_MODEL"          yaml:"model"`
	MaxTokens   int64         `yaml:"max_tokens"`
	Temperature float64       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
	// MaxRetries of zero takes the default; a negative value disables retries.
	MaxRetries int `yaml:"max_retries"`
	// System is sent as the system prompt on every request.
	System string `yaml:"system"`
}

// SetDefaults fills zero values.
func (c *Config) SetDefaults() {
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = DefaultMaxTokens
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = DefaultMaxRetries
	}
}

// Client completes prompts with a fixed model.
type Client struct {
	client      anthropic.Client
	model       string
	maxTokens   int64
	temperature float64
	system      string
}

// New validates cfg and builds a client.
func New(cfg Config) (*Client, error) {
	cfg.SetDefaults()
	if cfg.APIKey == "" {
		return nil, errors.New("llm api key is required")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithRequestTimeout(cfg.Timeout),
		option.WithMaxRetries(max(cfg.MaxRetries, 0)),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Client{
		client:      anthropic.NewClient(opts...),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		system:      cfg.System,
	}, nil
}

// Complete sends prompt as a single user turn and returns the concatenated
// text blocks of the reply.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: c.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if c.system != "" {
		params.System = []anthropic.TextBlockParam{{Text: c.system}}
	}
	if c.temperature > 0 {
		params.Temperature = anthropic.Float(c.temperature)
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("model request failed with status %d: %w", apiErr.StatusCode, err)
		}
		return "", fmt.Errorf("model request failed: %w", err)
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", ErrEmptyCompletion
	}
	return text, nil
}
