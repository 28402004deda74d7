package normalize

import (
	"strings"

	"claimsift/internal/model"
)

// QueryContext identifies the chunk a batch of raw query rows came from.
type QueryContext struct {
	Model string
	Chunk int
}

// Queries coerces raw backend rows into ValidationQueryRecords with the
// same totality discipline as Claims: the only rejection cause is an empty
// query after coercion.
func Queries(rows []map[string]any, qc QueryContext) ([]model.ValidationQueryRecord, []model.Diagnostic) {
	var records []model.ValidationQueryRecord
	var diags []model.Diagnostic

	for i, row := range rows {
		query := collapseWhitespace(NaturalizeQuestion(asString(row["query"])))
		if query == "" {
			diags = append(diags, rejectRow("queries", qc.Model, qc.Chunk, i, "empty query after coercion"))
			continue
		}

		records = append(records, model.ValidationQueryRecord{
			ClaimID:          collapseWhitespace(asString(row["claim_id"])),
			Query:            query,
			WhyThisQuery:     collapseWhitespace(asString(row["why_this_query"])),
			PreferredSources: asStringSlice(row["preferred_sources"]),
			Origin:           model.OriginGenerated,
		})
	}

	return records, diags
}

// Local models pad questions with the same throat-clearing prefixes.
// Matched case-insensitively; the remainder keeps its original casing.
var repetitivePrefixes = []string{
	"what is the current scientific consensus on whether ",
	"what does the current scientific evidence say about whether ",
	"what is the scientific consensus on whether ",
	"what does the evidence say about whether ",
}

// NaturalizeQuestion rewrites a repetitive generated prefix down to the
// bare question. A query that is nothing but prefix is returned unchanged.
func NaturalizeQuestion(query string) string {
	trimmed := strings.TrimSpace(query)
	lower := strings.ToLower(trimmed)
	for _, prefix := range repetitivePrefixes {
		if strings.HasPrefix(lower, prefix) {
			rest := strings.TrimSpace(trimmed[len(prefix):])
			if rest != "" {
				return rest
			}
		}
	}
	return trimmed
}
