package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"perfaudit/internal/domain"
	"perfaudit/internal/port"
)

// AnthropicClient is a Completer backed by the Anthropic Messages API. The SDK's
// own retries are disabled so RetryingClient owns the schedule.
type AnthropicClient struct {
	client    anthropic.Client
	model     string
	system    string
	maxTokens int64
	temp      float64
}

func NewAnthropicClient(apiKey, model, baseURL, system string, maxTokens int, temperature float64) *AnthropicClient {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return &AnthropicClient{
		client:    anthropic.NewClient(opts...),
		model:     model,
		system:    system,
		maxTokens: int64(maxTokens),
		temp:      temperature,
	}
}

// NewAnthropicClientFromEnv reads the API key from apiKeyEnv.
func NewAnthropicClientFromEnv(apiKeyEnv, model, baseURL, system string, maxTokens int, temperature float64) (*AnthropicClient, error) {
	apiKey := os.Getenv(apiKeyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("API key not found in environment variable %s", apiKeyEnv)
	}
	return NewAnthropicClient(apiKey, model, baseURL, system, maxTokens, temperature), nil
}

func (c *AnthropicClient) Complete(ctx context.Context, req port.CompletionRequest) (string, error) {
	text, _, err := c.complete(ctx, req)
	return text, err
}

// Stream adapts a single non-streaming call to the Streamer contract: the
// whole reply arrives as one delta and max_tokens maps to a length finish.
func (c *AnthropicClient) Stream(ctx context.Context, req port.CompletionRequest, onDelta func(string)) (string, error) {
	text, stop, err := c.complete(ctx, req)
	if err != nil {
		return "", err
	}
	if text != "" {
		onDelta(text)
	}
	if stop == "max_tokens" {
		return port.FinishLength, nil
	}
	return port.FinishStop, nil
}

func (c *AnthropicClient) complete(ctx context.Context, req port.CompletionRequest) (string, string, error) {
	temp := c.temp
	if req.Temperature != nil {
		temp = *req.Temperature
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		MaxTokens:   c.maxTokens,
		Temperature: anthropic.Float(temp),
		Messages:    toAnthropicMessages(req.Messages),
	}
	if c.system != "" {
		params.System = []anthropic.TextBlockParam{{Text: c.system}}
	}

	message, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", "", mapAnthropicError(ctx, err)
	}

	var b strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return b.String(), string(message.StopReason), nil
}

func toAnthropicMessages(msgs []port.Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case "assistant":
			out = append(out, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		case "system":
			// system turns are carried by the client's fixed instruction
		default:
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	return out
}

func mapAnthropicError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	var apiErr *anthropic.Error
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("anthropic request failed: %w", err)
	}
	if apiErr.StatusCode == http.StatusTooManyRequests {
		rl := &domain.RateLimitError{}
		if apiErr.Response != nil {
			rl.RetryAfter = parseRetryAfter(apiErr.Response.Header.Get("Retry-After"))
		}
		return rl
	}
	return &domain.UpstreamError{Status: apiErr.StatusCode, Message: apiErr.Error()}
}

func (c *AnthropicClient) ModelName() string {
	return c.model
}

var (
	_ port.Completer = (*AnthropicClient)(nil)
	_ port.Streamer  = (*AnthropicClient)(nil)
)
