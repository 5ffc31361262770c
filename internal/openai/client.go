// Package openai implements the inference provider for any OpenAI-compatible
// chat completions endpoint: OpenAI itself, Groq, OpenRouter and Ollama.
package openai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.uber.org/zap"
)

// Client wraps an OpenAI-compatible chat completions API
type Client struct {
	client      openai.Client
	provider    string
	modelName   string
	temperature float64
	logger      *zap.Logger
	maxRetries  int
	retryDelay  time.Duration
}

// Config holds configuration for the client
type Config struct {
	Provider    string // label reported in model info, e.g. "groq"
	APIKey      string
	BaseURL     string // empty means api.openai.com
	ModelName   string
	Temperature float64
	MaxRetries  int
	RetryDelay  time.Duration
}

// NewClient creates a new OpenAI-compatible client
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%s API key is required", cfg.Provider)
	}

	if cfg.ModelName == "" {
		return nil, fmt.Errorf("%s model name is required", cfg.Provider)
	}

	if cfg.Provider == "" {
		cfg.Provider = "openai"
	}

	if cfg.Temperature == 0 {
		cfg.Temperature = 0.1
	}

	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}

	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 2 * time.Second
	}

	// Retries are handled below so they show up in our logs.
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
		option.WithRequestTimeout(60 * time.Second),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	logger.Info("OpenAI-compatible client initialized",
		zap.String("provider", cfg.Provider),
		zap.String("model", cfg.ModelName),
		zap.String("base_url", cfg.BaseURL),
		zap.Int("max_retries", cfg.MaxRetries))

	return &Client{
		client:      openai.NewClient(opts...),
		provider:    cfg.Provider,
		modelName:   cfg.ModelName,
		temperature: cfg.Temperature,
		logger:      logger,
		maxRetries:  cfg.MaxRetries,
		retryDelay:  cfg.RetryDelay,
	}, nil
}

// Close is a no-op; the underlying HTTP client holds no resources.
func (c *Client) Close() error {
	return nil
}

// Generate sends prompt as a single user message and returns the reply text
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: c.modelName,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Temperature: openai.Float(c.temperature),
	}

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			c.logger.Warn("Retrying chat completion request",
				zap.String("provider", c.provider),
				zap.Int("attempt", attempt+1),
				zap.Int("max_retries", c.maxRetries))
			select {
			case <-time.After(c.retryDelay):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		resp, err := c.client.Chat.Completions.New(ctx, params)
		if err != nil {
			lastErr = fmt.Errorf("%s API error: %w", c.provider, err)
			c.logger.Error("Chat completion API error",
				zap.String("provider", c.provider),
				zap.Error(err),
				zap.Int("attempt", attempt+1))
			continue
		}

		if len(resp.Choices) == 0 {
			lastErr = fmt.Errorf("empty response from %s", c.provider)
			c.logger.Error("Empty chat completion response",
				zap.String("provider", c.provider),
				zap.Int("attempt", attempt+1))
			continue
		}

		content := strings.TrimSpace(resp.Choices[0].Message.Content)
		if content == "" {
			lastErr = fmt.Errorf("empty content from %s (finish reason %q)", c.provider, resp.Choices[0].FinishReason)
			continue
		}

		return content, nil
	}

	return "", fmt.Errorf("failed after %d attempts: %w", c.maxRetries, lastErr)
}

// GetModelInfo returns model information
func (c *Client) GetModelInfo() map[string]interface{} {
	return map[string]interface{}{
		"provider":    c.provider,
		"model":       c.modelName,
		"max_retries": c.maxRetries,
		"retry_delay": c.retryDelay.String(),
	}
}
