// Package oracle wraps the chat-completion API behind a one-method
// interface so the search tools can be exercised against fakes.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

var (
	// ErrAPIKeyMissing is returned by a client constructed without a key.
	ErrAPIKeyMissing = errors.New("oracle API key not configured")
	// ErrQuotaExceeded marks rate-limit and quota responses.
	ErrQuotaExceeded = errors.New("oracle quota exceeded")
	// ErrNoChoices marks a well-formed response carrying no completion.
	ErrNoChoices = errors.New("oracle returned no choices")
)

// Options tune a single completion call.
type Options struct {
	Temperature float32
	MaxTokens   int
}

// Completer produces a text completion for a prompt.
type Completer interface {
	Complete(ctx context.Context, prompt string, opts Options) (string, error)
}

// Config carries the connection settings for the completion endpoint.
// BaseURL overrides the default endpoint for OpenAI-compatible servers.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Client is a Completer backed by an OpenAI-compatible chat endpoint.
// Without an API key the client stays constructible and every call fails
// fast with ErrAPIKeyMissing, which the search cascade treats as a
// fallback trigger rather than an outage.
type Client struct {
	api     *openai.Client
	model   string
	timeout time.Duration
	logger  *zap.Logger
}

func NewClient(cfg Config, logger *zap.Logger) *Client {
	c := &Client{model: cfg.Model, timeout: cfg.Timeout, logger: logger}
	if cfg.APIKey == "" {
		logger.Warn("oracle API key not set, AI search tools will fall back")
		return c
	}
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	c.api = openai.NewClientWithConfig(oc)
	return c
}

func (c *Client) Complete(ctx context.Context, prompt string, opts Options) (string, error) {
	if c.api == nil {
		return "", ErrAPIKeyMissing
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	})
	if err != nil {
		return "", classify(err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoChoices
	}

	c.logger.Debug("oracle completion",
		zap.String("model", c.model),
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("prompt_chars", len(prompt)))

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == http.StatusTooManyRequests ||
			strings.Contains(strings.ToLower(apiErr.Message), "quota") {
			return fmt.Errorf("%w: %v", ErrQuotaExceeded, err)
		}
	}
	return err
}
