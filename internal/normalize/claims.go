package normalize

import (
	"claimsift/internal/model"
)

// ClaimContext carries the chunk-level fields every coerced claim inherits.
type ClaimContext struct {
	DocID string
	Model string
	Chunk int
	Span  model.TimeRange
}

var knownClaimTypes = map[string]bool{
	model.ClaimTypeMedicalRisk:     true,
	model.ClaimTypeTreatmentEffect: true,
	model.ClaimTypeNutrition:       true,
	model.ClaimTypeExercise:        true,
	model.ClaimTypeEpidemiology:    true,
	model.ClaimTypeOther:           true,
}

// Claims coerces raw backend rows into ClaimRecords. It is total: every
// row yields either exactly one record or exactly one diagnostic. The only
// rejection cause is an empty claim_text after coercion; everything else
// is repaired or defaulted.
func Claims(rows []map[string]any, cc ClaimContext) ([]model.ClaimRecord, []model.Diagnostic) {
	var records []model.ClaimRecord
	var diags []model.Diagnostic

	for i, row := range rows {
		claimText := collapseWhitespace(asString(row["claim_text"]))
		if claimText == "" {
			diags = append(diags, rejectRow("extract", cc.Model, cc.Chunk, i, "empty claim_text after coercion"))
			continue
		}

		claimType := collapseWhitespace(asString(row["claim_type"]))
		if !knownClaimTypes[claimType] {
			claimType = model.ClaimTypeUnspecified
		}

		boldness, ok := asInt(row["boldness_rating"])
		if !ok || boldness < 0 {
			boldness = 0
		}

		records = append(records, model.ClaimRecord{
			DocID:          cc.DocID,
			Speaker:        collapseWhitespace(asString(row["speaker"])),
			ClaimText:      claimText,
			Evidence:       asEvidence(row["evidence"]),
			TimeRange:      asTimeRange(row["time_range_s"], cc.Span),
			ClaimType:      claimType,
			BoldnessRating: boldness,
			Model:          cc.Model,
		})
	}

	return records, diags
}
