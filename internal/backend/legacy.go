package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"claimsift/internal/model"
)

// legacyClient speaks the Ollama-style /api/tags and /api/chat endpoints
// for backends that predate the OpenAI-compatible surface.
type legacyClient struct {
	baseURL     string
	httpClient  *http.Client
	temperature float32
	maxTokens   int
}

func newLegacyClient(cfg model.BackendConfig) *legacyClient {
	return &legacyClient{
		baseURL:     strings.TrimSuffix(cfg.BaseURL, "/"),
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}
}

type legacyTagsResponse struct {
	Models []struct {
		Name  string `json:"name"`
		Model string `json:"model"`
	} `json:"models"`
}

func (c *legacyClient) ListModels(ctx context.Context) ([]string, error) {
	body, err := c.request(ctx, http.MethodGet, "/api/tags", nil)
	if err != nil {
		return nil, err
	}

	var tags legacyTagsResponse
	if err := json.Unmarshal(body, &tags); err != nil {
		return nil, fmt.Errorf("parse /api/tags response: %w", err)
	}

	var names []string
	for _, m := range tags.Models {
		name := m.Name
		if name == "" {
			name = m.Model
		}
		if name != "" {
			names = append(names, name)
		}
	}
	return names, nil
}

type legacyChatRequest struct {
	Model    string            `json:"model"`
	Messages []Message         `json:"messages"`
	Stream   bool              `json:"stream"`
	Format   string            `json:"format,omitempty"`
	Options  legacyChatOptions `json:"options"`
}

type legacyChatOptions struct {
	Temperature float32 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type legacyChatResponse struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Response string `json:"response"`
}

func (c *legacyClient) Chat(ctx context.Context, modelName string, messages []Message) (string, error) {
	payload := legacyChatRequest{
		Model:    modelName,
		Messages: messages,
		Stream:   false,
		Format:   "json",
		Options: legacyChatOptions{
			Temperature: c.temperature,
			NumPredict:  c.maxTokens,
		},
	}

	body, err := c.request(ctx, http.MethodPost, "/api/chat", payload)
	if err != nil {
		return "", err
	}

	var resp legacyChatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("parse /api/chat response: %w", err)
	}

	content := strings.TrimSpace(resp.Message.Content)
	if content == "" {
		content = strings.TrimSpace(resp.Response)
	}
	if content == "" {
		return "", fmt.Errorf("legacy chat returned empty content: %w", ErrTransient)
	}
	return content, nil
}

func (c *legacyClient) request(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classify(err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", ErrTransient)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus(resp.StatusCode, fmt.Errorf("%s %s: HTTP %d: %s", method, path, resp.StatusCode, firstLine(body)))
	}
	return body, nil
}

func firstLine(body []byte) string {
	s := strings.TrimSpace(string(body))
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
