package backend

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"claimsift/internal/model"
)

// openaiCompatible speaks /v1/models and /v1/chat/completions through the
// go-openai client pointed at the configured base URL.
type openaiCompatible struct {
	client      *openai.Client
	temperature float32
	maxTokens   int
}

func newOpenAICompatible(cfg model.BackendConfig) *openaiCompatible {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = "local" // local backends ignore the bearer token
	}

	clientConfig := openai.DefaultConfig(apiKey)
	clientConfig.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/") + "/v1"
	clientConfig.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return &openaiCompatible{
		client:      openai.NewClientWithConfig(clientConfig),
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}
}

func (c *openaiCompatible) ListModels(ctx context.Context) ([]string, error) {
	resp, err := c.client.ListModels(ctx)
	if err != nil {
		return nil, classify(err)
	}

	names := make([]string, 0, len(resp.Models))
	for _, m := range resp.Models {
		if m.ID != "" {
			names = append(names, m.ID)
		}
	}
	return names, nil
}

func (c *openaiCompatible) Chat(ctx context.Context, modelName string, messages []Message) (string, error) {
	chatMessages := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		chatMessages[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       modelName,
		Messages:    chatMessages,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		return "", classify(err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices: %w", ErrTransient)
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("chat completion returned empty content: %w", ErrTransient)
	}
	return content, nil
}

// classify maps go-openai and transport errors onto the backend error
// kinds. 400/404 mean the endpoint family is not served and trigger the
// legacy fallback; 429/5xx and timeouts are retryable; refused
// connections mean the backend is down.
func classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return classifyStatus(apiErr.HTTPStatusCode, err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return classifyStatus(reqErr.HTTPStatusCode, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%v: %w", err, ErrTransient)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%v: %w", err, ErrTransient)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%v: %w", err, ErrUnavailable)
}

func classifyStatus(status int, err error) error {
	switch {
	case status == http.StatusNotFound || status == http.StatusBadRequest:
		return fmt.Errorf("%v: %w", err, errUnsupported)
	case status == http.StatusTooManyRequests || status >= 500:
		return fmt.Errorf("%v: %w", err, ErrTransient)
	default:
		return err
	}
}
