// Package pipeline orchestrates the claim and query stages: load, chunk,
// generate concurrently, normalize, deduplicate, cover, write. Stage
// boundaries are all-or-nothing on the output side; inside a stage,
// per-chunk failures degrade to diagnostics instead of failing the run.
package pipeline

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"os"
	"sort"
	"time"

	"github.com/google/uuid"

	"claimsift/internal/backend"
	"claimsift/internal/model"
	"claimsift/internal/worker"
)

// Runner executes pipeline stages against one backend with one config.
type Runner struct {
	cfg     model.Config
	client  backend.Client
	limiter *worker.Limiter
	host    string

	// RunID tags log lines from one run. Outputs never embed it, so
	// re-runs over the same input stay byte-identical.
	RunID string

	// Status receives human-readable progress lines. Defaults to stderr.
	Status func(format string, args ...any)

	diags []model.Diagnostic
}

// NewRunner builds a runner for the given backend client.
func NewRunner(cfg model.Config, client backend.Client) *Runner {
	host := cfg.Backend.BaseURL
	if u, err := url.Parse(cfg.Backend.BaseURL); err == nil && u.Host != "" {
		host = u.Host
	}

	return &Runner{
		cfg:     cfg,
		client:  client,
		limiter: worker.NewLimiter(cfg.Concurrency.RequestsPerSecond, cfg.Concurrency.Burst),
		host:    host,
		RunID:   newRunID(),
		Status: func(format string, args ...any) {
			fmt.Fprintf(os.Stderr, format+"\n", args...)
		},
	}
}

func newRunID() string {
	id := uuid.New()
	return "run_" + hex.EncodeToString(id[:])[:12]
}

// Diagnostics returns every absorbed row rejection and chunk failure so
// far, in the order they were recorded.
func (r *Runner) Diagnostics() []model.Diagnostic {
	return r.diags
}

func (r *Runner) note(d model.Diagnostic) {
	r.diags = append(r.diags, d)
	if r.cfg.Output.Verbose {
		r.Status("[%s] %s", r.RunID, d)
	}
}

func (r *Runner) status(format string, args ...any) {
	r.Status("[%s] "+format, append([]any{r.RunID}, args...)...)
}

// chatWithRetry sends one prompt with bounded retries. Only transient
// failures retry; unavailable backends and cancellations surface at once.
func (r *Runner) chatWithRetry(ctx context.Context, modelName string, messages []backend.Message) (string, error) {
	attempts := r.cfg.Retry.Attempts
	if attempts <= 0 {
		attempts = 1
	}
	backoff := r.cfg.Retry.InitialBackoff
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := r.limiter.Wait(ctx, r.host); err != nil {
			return "", err
		}

		text, err := r.client.Chat(ctx, modelName, messages)
		if err == nil {
			return text, nil
		}
		lastErr = err

		if !errors.Is(err, backend.ErrTransient) {
			return "", err
		}
		if attempt == attempts {
			break
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return "", lastErr
}

// generateJob is one prompt against one model for one chunk.
type generateJob struct {
	runner    *Runner
	modelName string
	chunk     int
	messages  []backend.Message
}

type generateResult struct {
	modelName string
	chunk     int
	text      string
	err       error
}

func (res *generateResult) GetError() error { return res.err }

func (j *generateJob) Execute(ctx context.Context) worker.Result {
	text, err := j.runner.chatWithRetry(ctx, j.modelName, j.messages)
	return &generateResult{
		modelName: j.modelName,
		chunk:     j.chunk,
		text:      text,
		err:       err,
	}
}

// runGeneration dispatches jobs over the worker pool and returns results
// ordered by model then chunk index, so downstream normalization and
// dedupe see a deterministic sequence regardless of worker scheduling.
// Results abandoned by a cancel are simply absent, which keeps partial
// runs a prefix-consistent subset of a full run.
func (r *Runner) runGeneration(ctx context.Context, jobs []*generateJob) ([]*generateResult, error) {
	pool := worker.NewPool(ctx, r.cfg.Concurrency.Workers)
	pool.Start()
	for _, job := range jobs {
		pool.Submit(job)
	}

	var results []*generateResult
	for _, res := range pool.Wait() {
		gr, ok := res.(*generateResult)
		if !ok {
			continue
		}
		if gr.err != nil && (errors.Is(gr.err, context.Canceled) || errors.Is(gr.err, context.DeadlineExceeded)) {
			continue
		}
		results = append(results, gr)
	}

	sort.Slice(results, func(a, b int) bool {
		if results[a].modelName != results[b].modelName {
			return results[a].modelName < results[b].modelName
		}
		return results[a].chunk < results[b].chunk
	})

	// An unreachable backend fails the whole stage; there is no point
	// grinding through the remaining chunks.
	for _, res := range results {
		if res.err != nil && errors.Is(res.err, backend.ErrUnavailable) {
			return nil, res.err
		}
	}

	if err := ctx.Err(); err != nil {
		return results, err
	}
	return results, nil
}
