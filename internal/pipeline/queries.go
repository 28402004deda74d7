package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"claimsift/internal/backend"
	"claimsift/internal/chunk"
	"claimsift/internal/dedupe"
	"claimsift/internal/heuristic"
	"claimsift/internal/model"
	"claimsift/internal/normalize"
)

// GenerateQueries runs the query stage over deduplicated claims. With an
// empty queryModel the backend is skipped and every query is synthesized
// heuristically. Either way the output references every claim at least
// once; heuristic synthesis fills whatever the model left uncovered.
func GenerateQueries(ctx context.Context, r *Runner, claims []model.ClaimRecord, queryModel string) ([]model.ValidationQueryRecord, error) {
	if len(claims) == 0 {
		r.status("no claims; skipping query generation")
		return nil, nil
	}

	var queries []model.ValidationQueryRecord
	var runErr error

	if queryModel != "" {
		windows := chunk.Claims(claims, r.cfg.Chunking.QueryChunkSize, r.cfg.Chunking.QueryChunkOverlap)
		r.status("generating queries: %d claims, %d windows, model %s",
			len(claims), len(windows), queryModel)

		var jobs []*generateJob
		for i, window := range windows {
			label := fmt.Sprintf("%d/%d", i+1, len(windows))
			jobs = append(jobs, &generateJob{
				runner:    r,
				modelName: queryModel,
				chunk:     i,
				messages:  queryPrompt(window, label),
			})
		}

		results, err := r.runGeneration(ctx, jobs)
		switch {
		case err == nil:
		case errors.Is(err, backend.ErrUnavailable):
			// Unlike extraction, this stage never depends on the backend:
			// heuristic synthesis below covers every claim on its own.
			r.note(model.Diagnostic{
				Stage:  "queries",
				Model:  queryModel,
				Reason: fmt.Sprintf("backend unavailable; switching to heuristic synthesis: %v", err),
			})
			r.status("backend unavailable; covering all remaining claims heuristically")
		case len(results) == 0:
			return nil, err
		default:
			runErr = err
		}

		for _, res := range results {
			if res.err != nil {
				r.note(model.Diagnostic{
					Stage: "queries", Model: res.modelName, Chunk: res.chunk,
					Reason: fmt.Sprintf("window failed after retries: %v", res.err),
				})
				continue
			}

			rows, err := decodeRows(res.text, "queries")
			if err != nil {
				r.note(model.Diagnostic{
					Stage: "queries", Model: res.modelName, Chunk: res.chunk,
					Reason: fmt.Sprintf("unusable response: %v", err),
				})
				continue
			}

			records, diags := normalize.Queries(rows, normalize.QueryContext{
				Model: res.modelName,
				Chunk: res.chunk,
			})
			for _, d := range diags {
				r.note(d)
			}
			queries = append(queries, records...)
		}

		queries = dedupe.Queries(queries)
	} else {
		r.status("no query model; synthesizing all %d queries heuristically", len(claims))
	}

	synthesized := heuristic.Queries(claims, queries)
	if len(synthesized) > 0 {
		r.status("synthesized %d heuristic queries for uncovered claims", len(synthesized))
	}
	queries = append(queries, synthesized...)

	r.status("generated %d validation queries", len(queries))
	if runErr != nil {
		return queries, runErr
	}
	return queries, nil
}

// serves reports whether the backend's model list includes name, either
// exactly or as a tag-qualified variant ("llama3" matches "llama3:8b").
func serves(available []string, name string) bool {
	for _, a := range available {
		if a == name || strings.HasPrefix(a, name+":") {
			return true
		}
	}
	return false
}

// FilterModels splits requested models into those the backend serves and
// those it does not.
func FilterModels(requested, available []string) (kept, missing []string) {
	for _, name := range requested {
		if serves(available, name) {
			kept = append(kept, name)
		} else {
			missing = append(missing, name)
		}
	}
	return kept, missing
}

// ChooseQueryModel picks the model for the query stage. The requested
// model wins when the backend serves it; otherwise the first requested
// extraction model that is available; otherwise empty, which routes the
// stage to pure heuristics.
func ChooseQueryModel(requested string, extractionModels, available []string) string {
	if requested != "" && serves(available, requested) {
		return requested
	}
	for _, m := range extractionModels {
		if serves(available, m) {
			return m
		}
	}
	return ""
}
