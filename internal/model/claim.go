package model

// TimeRange is the transcript span a record traces back to, in seconds.
type TimeRange struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Width returns the span width in seconds.
func (r TimeRange) Width() float64 {
	return r.End - r.Start
}

// Evidence is one quoted snippet supporting a claim.
type Evidence struct {
	SegID string `json:"seg_id,omitempty"`
	Quote string `json:"quote"`
}

// ClaimRecord is one extracted factual assertion.
// ClaimID is a pure function of (doc_id, normalized claim text, speaker),
// so identical claims collapse across chunks, models and re-runs.
type ClaimRecord struct {
	ClaimID        string     `json:"claim_id"`
	DocID          string     `json:"doc_id"`
	Speaker        string     `json:"speaker"`
	ClaimText      string     `json:"claim_text"`
	Evidence       []Evidence `json:"evidence"`
	TimeRange      TimeRange  `json:"time_range_s"`
	ClaimType      string     `json:"claim_type"`
	BoldnessRating int        `json:"boldness_rating"`
	Model          string     `json:"model"`
}

// Claim type vocabulary used in extraction prompts. Anything outside this
// set normalizes to ClaimTypeUnspecified.
const (
	ClaimTypeMedicalRisk     = "medical_risk"
	ClaimTypeTreatmentEffect = "treatment_effect"
	ClaimTypeNutrition       = "nutrition_claim"
	ClaimTypeExercise        = "exercise_claim"
	ClaimTypeEpidemiology    = "epidemiology"
	ClaimTypeOther           = "other"
	ClaimTypeUnspecified     = "unspecified"
)
