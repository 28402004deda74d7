package model

import "fmt"

// Segment is a speaker-attributed, timestamped span of transcript text.
// Segments are produced by the upstream normalizer and are read-only here.
type Segment struct {
	Speaker    string  `json:"speaker"`
	StartTimeS float64 `json:"start_time_s"`
	EndTimeS   float64 `json:"end_time_s"`
	Text       string  `json:"text"`
}

// Transcript is the normalized input document for a pipeline run.
type Transcript struct {
	DocID    string    `json:"doc_id"`
	Segments []Segment `json:"segments"`
}

// Validate checks the structural requirements of an input transcript.
// A transcript that fails here is malformed input, not a degraded run.
func (t Transcript) Validate() error {
	if t.DocID == "" {
		return fmt.Errorf("transcript missing doc_id")
	}
	if len(t.Segments) == 0 {
		return fmt.Errorf("transcript has no segments")
	}
	return nil
}
