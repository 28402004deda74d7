// Package cache stores model backend responses so identical prompts are
// answered without a network call, keeping re-runs cheap and reproducible.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Cache defines the interface for response caching.
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// ChatKey derives the cache key for one chat call. The key covers the
// model and the full rendered prompt, so any prompt change is a miss.
func ChatKey(modelName, prompt string) string {
	h := sha256.New()
	h.Write([]byte(modelName))
	h.Write([]byte{0})
	h.Write([]byte(prompt))
	return "claimsift:v1:" + hex.EncodeToString(h.Sum(nil))
}
