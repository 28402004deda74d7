package pipeline

import (
	"fmt"
	"strings"

	"claimsift/internal/backend"
	"claimsift/internal/chunk"
	"claimsift/internal/model"
)

const claimSystemPrompt = `You extract health and medical claims from transcripts. ` +
	`Return JSON only with this shape: ` +
	`{"claims":[{"speaker":"...","claim_text":"...","evidence":[{"seg_id":"...","quote":"..."}],` +
	`"time_range_s":{"start":0,"end":0},"claim_type":"medical_risk","boldness_rating":2}]}. ` +
	`Do not add markdown or commentary.`

const querySystemPrompt = `You write validation queries for extracted health claims. ` +
	`Return JSON only with this shape: ` +
	`{"queries":[{"claim_id":"...","query":"...","why_this_query":"...",` +
	`"preferred_sources":["..."]}]}. ` +
	`Do not add markdown or commentary.`

// segID labels a segment stably across overlapping chunks.
func segID(index int) string {
	return fmt.Sprintf("seg_%06d", index+1)
}

// buildSegmentBlock renders a chunk's segments as compact prompt lines.
func buildSegmentBlock(c chunk.Chunk) string {
	var lines []string
	for i, seg := range c.Segments {
		text := strings.Join(strings.Fields(seg.Text), " ")
		if text == "" {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s | %d | %s | %s",
			segID(c.FirstSegment+i), int(seg.StartTimeS), seg.Speaker, text))
	}
	return strings.Join(lines, "\n")
}

// claimPrompt builds the extraction messages for one chunk.
func claimPrompt(docID string, c chunk.Chunk, label string) []backend.Message {
	user := fmt.Sprintf(`Document ID: %s

Chunk: %s

Task:
1) Extract as many distinct health claims as possible from the transcript segments below.
2) A claim must be either factual health/medical information presented as generally true, or advice intended to change listener behavior.
3) Exclude purely personal anecdotes unless they are generalized to others or used as advice.
4) Use claim_type from this set only: medical_risk, treatment_effect, nutrition_claim, exercise_claim, epidemiology, other.
5) Each claim must include at least one evidence item with an exact seg_id and quote.
6) time_range_s.start and end are seconds derived from the evidence segments.
7) Rate boldness_rating 1-3: 1 = mainstream, 2 = moderately strong, 3 = very bold or counter-intuitive.
8) Prefer recall over precision.

Transcript segments:
%s
`, docID, label, buildSegmentBlock(c))

	return []backend.Message{
		{Role: "system", Content: claimSystemPrompt},
		{Role: "user", Content: user},
	}
}

// buildClaimBlock renders deduplicated claims as compact prompt lines.
func buildClaimBlock(claims []model.ClaimRecord) string {
	var lines []string
	for _, c := range claims {
		lines = append(lines, fmt.Sprintf("%s | %s | %s", c.ClaimID, c.ClaimType, c.ClaimText))
	}
	return strings.Join(lines, "\n")
}

// queryPrompt builds the query-generation messages for one claim window.
func queryPrompt(claims []model.ClaimRecord, label string) []backend.Message {
	user := fmt.Sprintf(`Chunk: %s

Task:
1) For each claim below, write one concise validation query a researcher could run against scientific literature.
2) Reference the claim by its exact claim_id.
3) Phrase the query as a direct question about the claim itself, without boilerplate prefixes.
4) Explain in why_this_query what evidence the query would surface.
5) List preferred_sources such as systematic reviews, meta-analyses, or specific databases.

Claims:
%s
`, label, buildClaimBlock(claims))

	return []backend.Message{
		{Role: "system", Content: querySystemPrompt},
		{Role: "user", Content: user},
	}
}
