package model

// Query origin values.
const (
	OriginGenerated = "generated"
	OriginHeuristic = "heuristic"
)

// ValidationQueryRecord is a follow-up question for checking one claim
// against external sources. ClaimID references the claim it validates.
type ValidationQueryRecord struct {
	ClaimID          string   `json:"claim_id"`
	Query            string   `json:"query"`
	WhyThisQuery     string   `json:"why_this_query"`
	PreferredSources []string `json:"preferred_sources"`
	Origin           string   `json:"origin"`
}
