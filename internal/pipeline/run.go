package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"claimsift/internal/backend"
	"claimsift/internal/cache"
	"claimsift/internal/model"
)

// BuildClient assembles the backend client for a config, wrapping it in
// the layered response cache unless caching is disabled.
func BuildClient(cfg model.Config) backend.Client {
	client := backend.New(cfg.Backend)
	if !cfg.Cache.Enabled {
		return client
	}

	ttl := cfg.Cache.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	store := cache.NewLayeredCache(ttl, cfg.Cache.Dir, ttl)
	return backend.NewCached(client, store, ttl)
}

// Preflight lists the backend's models and warns about requested ones it
// does not serve. The returned list feeds query-model selection; an
// unreachable backend returns ErrUnavailable.
func (r *Runner) Preflight(ctx context.Context, requested []string) ([]string, error) {
	available, err := r.client.ListModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("backend preflight: %w", err)
	}

	for _, name := range requested {
		if !serves(available, name) {
			r.status("warning: backend does not list model %q", name)
		}
	}
	return available, nil
}

// RunPipeline chains extraction and query generation and writes both
// JSONL outputs. Each output is written atomically once its stage
// finishes, so an interrupted run leaves either a complete file or none.
func RunPipeline(ctx context.Context, r *Runner, transcript model.Transcript, models []string, queryModel, claimsPath, queriesPath string) error {
	// Extraction needs the backend; there is nothing to degrade to
	// before any claims exist.
	available, err := r.Preflight(ctx, models)
	if err != nil {
		return err
	}

	kept, _ := FilterModels(models, available)
	if len(kept) == 0 {
		return fmt.Errorf("backend serves none of the requested models %v", models)
	}

	claims, err := ExtractClaims(ctx, r, transcript, kept)
	if err != nil {
		// A cancelled run still persists the claims from the chunks that
		// finished; they are a consistent prefix of a full run.
		if (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) && len(claims) > 0 {
			if werr := WriteClaims(claimsPath, claims); werr == nil {
				r.status("run cancelled; wrote %d claims from completed chunks to %s", len(claims), claimsPath)
			}
		}
		return err
	}
	if err := WriteClaims(claimsPath, claims); err != nil {
		return err
	}
	r.status("wrote %d claims to %s", len(claims), claimsPath)

	chosen := ChooseQueryModel(queryModel, kept, available)
	queries, err := GenerateQueries(ctx, r, claims, chosen)
	if err != nil {
		return err
	}
	if err := WriteQueries(queriesPath, queries); err != nil {
		return err
	}
	r.status("wrote %d queries to %s", len(queries), queriesPath)
	return nil
}
