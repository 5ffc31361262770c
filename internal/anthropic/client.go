// Package anthropic implements the inference provider on the Anthropic Messages API.
package anthropic

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"
)

// Client wraps the Anthropic Messages API
type Client struct {
	client      anthropic.Client
	modelName   string
	temperature float64
	maxTokens   int64
	logger      *zap.Logger
	maxRetries  int
	retryDelay  time.Duration
}

// Config for Anthropic client
type Config struct {
	APIKey      string
	BaseURL     string
	ModelName   string
	Temperature float64
	MaxTokens   int64
	MaxRetries  int
	RetryDelay  time.Duration
}

// NewClient creates a new Anthropic client
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}

	if cfg.ModelName == "" {
		cfg.ModelName = string(anthropic.ModelClaude3_5Sonnet20241022)
	}

	if cfg.Temperature == 0 {
		cfg.Temperature = 0.1
	}

	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 1024
	}

	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}

	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 2 * time.Second
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	logger.Info("Anthropic client initialized",
		zap.String("model", cfg.ModelName),
		zap.Int("max_retries", cfg.MaxRetries))

	return &Client{
		client:      anthropic.NewClient(opts...),
		modelName:   cfg.ModelName,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		logger:      logger,
		maxRetries:  cfg.MaxRetries,
		retryDelay:  cfg.RetryDelay,
	}, nil
}

// Close is a no-op
func (c *Client) Close() error {
	return nil
}

// Generate sends prompt as a single user turn and concatenates the text blocks of the reply
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(c.modelName),
		MaxTokens:   c.maxTokens,
		Temperature: anthropic.Float(c.temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			c.logger.Warn("Retrying Anthropic request",
				zap.Int("attempt", attempt+1),
				zap.Int("max_retries", c.maxRetries))
			select {
			case <-time.After(c.retryDelay):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		resp, err := c.client.Messages.New(ctx, params)
		if err != nil {
			lastErr = fmt.Errorf("anthropic api error: %w", err)
			c.logger.Error("Anthropic API error", zap.Error(err), zap.Int("attempt", attempt+1))
			continue
		}

		var sb strings.Builder
		for _, block := range resp.Content {
			if block.Type == "text" {
				sb.WriteString(block.AsText().Text)
			}
		}

		out := strings.TrimSpace(sb.String())
		if out == "" {
			lastErr = fmt.Errorf("empty response from anthropic (stop reason %q)", resp.StopReason)
			c.logger.Error("Empty response from Anthropic", zap.Int("attempt", attempt+1))
			continue
		}

		return out, nil
	}

	return "", fmt.Errorf("failed after %d attempts: %w", c.maxRetries, lastErr)
}

// GetModelInfo returns model information
func (c *Client) GetModelInfo() map[string]interface{} {
	return map[string]interface{}{
		"provider":    "anthropic",
		"model":       c.modelName,
		"max_retries": c.maxRetries,
		"retry_delay": c.retryDelay.String(),
	}
}
