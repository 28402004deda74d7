package model

import (
	"os"
	"path/filepath"
	"time"
)

// Config is the complete runtime configuration for a pipeline run.
// One value is built per run; nothing here is process-global.
type Config struct {
	Backend     BackendConfig     `yaml:"backend" mapstructure:"backend"`
	Chunking    ChunkingConfig    `yaml:"chunking" mapstructure:"chunking"`
	Retry       RetryConfig       `yaml:"retry" mapstructure:"retry"`
	Concurrency ConcurrencyConfig `yaml:"concurrency" mapstructure:"concurrency"`
	Cache       CacheConfig       `yaml:"cache" mapstructure:"cache"`
	Output      OutputConfig      `yaml:"output" mapstructure:"output"`
}

// BackendConfig configures the model backend adapter.
type BackendConfig struct {
	BaseURL     string        `yaml:"base_url" mapstructure:"base_url"`
	APIKey      string        `yaml:"api_key,omitempty" mapstructure:"api_key"`
	Timeout     time.Duration `yaml:"timeout" mapstructure:"timeout"`
	Temperature float32       `yaml:"temperature" mapstructure:"temperature"`
	MaxTokens   int           `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// ChunkingConfig controls transcript and claim windowing.
type ChunkingConfig struct {
	MaxChars          int `yaml:"max_chars" mapstructure:"max_chars"`
	OverlapChars      int `yaml:"overlap_chars" mapstructure:"overlap_chars"`
	QueryChunkSize    int `yaml:"query_chunk_size" mapstructure:"query_chunk_size"`
	QueryChunkOverlap int `yaml:"query_chunk_overlap" mapstructure:"query_chunk_overlap"`
	MaxSegments       int `yaml:"max_segments" mapstructure:"max_segments"`
}

// RetryConfig bounds the per-chunk retry loop for transient backend errors.
type RetryConfig struct {
	Attempts       int           `yaml:"attempts" mapstructure:"attempts"`
	InitialBackoff time.Duration `yaml:"initial_backoff" mapstructure:"initial_backoff"`
}

// ConcurrencyConfig controls parallel chunk generation.
type ConcurrencyConfig struct {
	Workers           int     `yaml:"workers" mapstructure:"workers"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Burst             int     `yaml:"burst" mapstructure:"burst"`
}

// CacheConfig controls backend response caching.
type CacheConfig struct {
	Enabled bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir     string        `yaml:"dir" mapstructure:"dir"`
	TTL     time.Duration `yaml:"ttl" mapstructure:"ttl"`
}

// OutputConfig controls user-facing output.
type OutputConfig struct {
	Verbose     bool `yaml:"verbose" mapstructure:"verbose"`
	ListClaims  bool `yaml:"list_claims" mapstructure:"list_claims"`
	ListQueries bool `yaml:"list_queries" mapstructure:"list_queries"`
}

// DefaultConfig returns sensible defaults for local backends.
func DefaultConfig() Config {
	cacheDir := ".claimsift/cache"
	if home, err := os.UserHomeDir(); err == nil {
		cacheDir = filepath.Join(home, ".claimsift", "cache")
	}

	return Config{
		Backend: BackendConfig{
			BaseURL:     "http://127.0.0.1:11434",
			Timeout:     180 * time.Second,
			Temperature: 0,
			MaxTokens:   1200,
		},
		Chunking: ChunkingConfig{
			MaxChars:          6000,
			OverlapChars:      1500,
			QueryChunkSize:    25,
			QueryChunkOverlap: 5,
			MaxSegments:       0,
		},
		Retry: RetryConfig{
			Attempts:       3,
			InitialBackoff: 500 * time.Millisecond,
		},
		Concurrency: ConcurrencyConfig{
			Workers:           4,
			RequestsPerSecond: 4,
			Burst:             4,
		},
		Cache: CacheConfig{
			Enabled: true,
			Dir:     cacheDir,
			TTL:     24 * time.Hour,
		},
		Output: OutputConfig{
			Verbose:     false,
			ListClaims:  true,
			ListQueries: true,
		},
	}
}
