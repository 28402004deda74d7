package pipeline

import (
	"context"
	"fmt"

	"claimsift/internal/chunk"
	"claimsift/internal/dedupe"
	"claimsift/internal/model"
	"claimsift/internal/normalize"
)

// ExtractClaims runs the extraction stage: chunk the transcript, prompt
// every requested model over every chunk, normalize and deduplicate the
// output. Running several models widens recall; the final dedupe pass
// collapses their agreement into one record per claim.
func ExtractClaims(ctx context.Context, r *Runner, transcript model.Transcript, models []string) ([]model.ClaimRecord, error) {
	if err := transcript.Validate(); err != nil {
		return nil, fmt.Errorf("%v: %w", err, ErrMalformedInput)
	}
	if len(models) == 0 {
		return nil, fmt.Errorf("no extraction models given: %w", ErrMalformedInput)
	}

	segments := transcript.Segments
	if limit := r.cfg.Chunking.MaxSegments; limit > 0 && len(segments) > limit {
		r.status("capping transcript at %d of %d segments", limit, len(segments))
		segments = segments[:limit]
	}

	chunks := chunk.Build(segments, r.cfg.Chunking.MaxChars, r.cfg.Chunking.OverlapChars)
	r.status("extracting claims: %d segments, %d chunks, %d models",
		len(segments), len(chunks), len(models))

	var jobs []*generateJob
	for _, modelName := range models {
		for _, c := range chunks {
			label := fmt.Sprintf("%d/%d", c.Index+1, len(chunks))
			jobs = append(jobs, &generateJob{
				runner:    r,
				modelName: modelName,
				chunk:     c.Index,
				messages:  claimPrompt(transcript.DocID, c, label),
			})
		}
	}

	results, runErr := r.runGeneration(ctx, jobs)
	if runErr != nil && len(results) == 0 {
		return nil, runErr
	}

	perModel := make(map[string][]model.ClaimRecord, len(models))
	for _, res := range results {
		if res.err != nil {
			r.note(model.Diagnostic{
				Stage: "extract", Model: res.modelName, Chunk: res.chunk,
				Reason: fmt.Sprintf("chunk failed after retries: %v", res.err),
			})
			continue
		}

		rows, err := decodeRows(res.text, "claims")
		if err != nil {
			r.note(model.Diagnostic{
				Stage: "extract", Model: res.modelName, Chunk: res.chunk,
				Reason: fmt.Sprintf("unusable response: %v", err),
			})
			continue
		}

		records, diags := normalize.Claims(rows, normalize.ClaimContext{
			DocID: transcript.DocID,
			Model: res.modelName,
			Chunk: res.chunk,
			Span:  chunks[res.chunk].TimeSpan(),
		})
		for _, d := range diags {
			r.note(d)
		}
		perModel[res.modelName] = append(perModel[res.modelName], records...)
	}

	// Per-model dedupe first, so overlapping chunks within one model
	// collapse before models are merged; then one global pass picks the
	// best representative across models.
	var merged []model.ClaimRecord
	for _, modelName := range models {
		merged = append(merged, dedupe.Claims(perModel[modelName])...)
	}
	claims := dedupe.Claims(merged)

	r.status("extracted %d claims (%d before cross-model dedupe)", len(claims), len(merged))
	if runErr != nil {
		return claims, runErr
	}
	return claims, nil
}
