// Package backend adapts OpenAI-compatible and legacy Ollama endpoints
// behind one client capability: list models, send a chat prompt, get text
// back. Failures carry a transient-vs-unavailable kind so the pipeline can
// decide between retrying, skipping a chunk, or switching to heuristics.
package backend

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"claimsift/internal/model"
)

// Error kinds, checked with errors.Is.
var (
	// ErrTransient marks failures worth retrying (timeouts, 5xx, 429).
	ErrTransient = errors.New("transient backend error")

	// ErrUnavailable marks a backend that cannot be reached at all.
	ErrUnavailable = errors.New("backend unavailable")
)

// errUnsupported marks an endpoint family the backend does not serve;
// the fallback client moves on to the next family. Never surfaced.
var errUnsupported = errors.New("endpoint not supported")

// Message is one chat message sent to the backend.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Client is the backend capability the pipeline consumes. The response
// text is expected, not guaranteed, to contain JSON rows.
type Client interface {
	ListModels(ctx context.Context) ([]string, error)
	Chat(ctx context.Context, modelName string, messages []Message) (string, error)
}

// New builds the standard client: the OpenAI-compatible endpoints are
// tried first, the legacy Ollama endpoints serve as fallback, matching
// how local model servers expose one or both families.
func New(cfg model.BackendConfig) Client {
	return &fallbackClient{
		primary: newOpenAICompatible(cfg),
		legacy:  newLegacyClient(cfg),
	}
}

type fallbackClient struct {
	primary Client
	legacy  Client
}

func (c *fallbackClient) ListModels(ctx context.Context) ([]string, error) {
	names, err := c.primary.ListModels(ctx)
	if err == nil && len(names) > 0 {
		return names, nil
	}

	legacyNames, legacyErr := c.legacy.ListModels(ctx)
	if legacyErr == nil {
		return legacyNames, nil
	}
	if err == nil {
		// The primary probe succeeded with an empty list.
		return names, nil
	}
	if errors.Is(legacyErr, errUnsupported) {
		// Neither endpoint family is served.
		return nil, fmt.Errorf("%v: %w", legacyErr, ErrUnavailable)
	}
	return nil, legacyErr
}

func (c *fallbackClient) Chat(ctx context.Context, modelName string, messages []Message) (string, error) {
	text, err := c.primary.Chat(ctx, modelName, messages)
	if err == nil {
		return text, nil
	}
	if errors.Is(err, errUnsupported) {
		text, legacyErr := c.legacy.Chat(ctx, modelName, messages)
		if legacyErr != nil && errors.Is(legacyErr, errUnsupported) {
			return "", fmt.Errorf("%v: %w", legacyErr, ErrUnavailable)
		}
		return text, legacyErr
	}
	return "", err
}

// renderMessages flattens a message list into the canonical prompt text
// used for cache keys.
func renderMessages(messages []Message) string {
	var b strings.Builder
	for _, m := range messages {
		b.WriteString(m.Role)
		b.WriteByte('\n')
		b.WriteString(m.Content)
		b.WriteByte('\n')
	}
	return b.String()
}
