// Package matcher scores grants against a project using the Anthropic
// messages API and generates per-grant application checklists.
package matcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/jonesrussell/grant-matcher/internal/orchestrator"
)

// statusOverloaded is Anthropic's non-standard capacity status code. It is
// retryable the same way 429 is.
const statusOverloaded = 529

// Completer produces one model completion for a system + user prompt pair.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
	Model() string
}

// AnthropicCompleter is the production Completer backed by the messages API.
type AnthropicCompleter struct {
	client    anthropic.Client
	model     string
	maxTokens int
}

// NewAnthropicCompleter creates a completer using the given API key and model.
func NewAnthropicCompleter(apiKey, model string, maxTokens int) *AnthropicCompleter {
	return &AnthropicCompleter{
		client:    anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:     model,
		maxTokens: maxTokens,
	}
}

// Model returns the configured model name.
func (c *AnthropicCompleter) Model() string {
	return c.model
}

// Complete sends one message and returns the concatenated text blocks of the
// response. API errors are classified so the retry loop can tell rate limits
// and malformed requests apart from transient failures.
func (c *AnthropicCompleter) Complete(ctx context.Context, system, prompt string) (string, error) {
	message, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: int64(c.maxTokens),
		System: []anthropic.TextBlockParam{
			{Text: system},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", classifyAPIError(err)
	}

	var text string
	for _, block := range message.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	if text == "" {
		return "", fmt.Errorf("empty completion from %s", c.model)
	}
	return text, nil
}

func classifyAPIError(err error) error {
	var apiErr *anthropic.Error
	if !errors.As(err, &apiErr) {
		// Network-level failure, treated as transient.
		return fmt.Errorf("messages api: %w", err)
	}

	switch {
	case apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode == statusOverloaded:
		return orchestrator.Throttled(err, retryAfterHint(apiErr.Response))
	case apiErr.StatusCode >= http.StatusInternalServerError:
		return fmt.Errorf("messages api: %w", err)
	default:
		// 4xx other than 429: the request itself is bad, retrying is useless.
		return orchestrator.Structural(fmt.Errorf("messages api: %w", err))
	}
}

// retryAfterHint reads a Retry-After header as either seconds or an HTTP
// date. Returns 0 when absent or unparseable.
func retryAfterHint(resp *http.Response) time.Duration {
	if resp == nil {
		return 0
	}
	header := resp.Header.Get("Retry-After")
	if header == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(header); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(header); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}
