package backend

import (
	"context"
	"time"

	"claimsift/internal/cache"
)

// CachedClient serves chat responses from the response cache before
// touching the network. Model listing is never cached; availability must
// reflect the live backend.
type CachedClient struct {
	inner Client
	store cache.Cache
	ttl   time.Duration
}

// NewCached wraps client with the given response cache.
func NewCached(client Client, store cache.Cache, ttl time.Duration) *CachedClient {
	return &CachedClient{inner: client, store: store, ttl: ttl}
}

func (c *CachedClient) ListModels(ctx context.Context) ([]string, error) {
	return c.inner.ListModels(ctx)
}

func (c *CachedClient) Chat(ctx context.Context, modelName string, messages []Message) (string, error) {
	key := cache.ChatKey(modelName, renderMessages(messages))
	if cached, found := c.store.Get(key); found {
		return string(cached), nil
	}

	text, err := c.inner.Chat(ctx, modelName, messages)
	if err != nil {
		return "", err
	}
	_ = c.store.Set(key, []byte(text), c.ttl) // cache failure never fails the call
	return text, nil
}
