package model

import "fmt"

// Diagnostic records a row or chunk that was absorbed instead of failing
// the run. Every dropped row and skipped chunk leaves one of these.
type Diagnostic struct {
	Stage  string `json:"stage"`
	Model  string `json:"model,omitempty"`
	Chunk  int    `json:"chunk"`
	Row    int    `json:"row,omitempty"`
	Reason string `json:"reason"`
}

func (d Diagnostic) String() string {
	if d.Model != "" {
		return fmt.Sprintf("%s: model %s chunk %d row %d: %s", d.Stage, d.Model, d.Chunk, d.Row, d.Reason)
	}
	return fmt.Sprintf("%s: chunk %d row %d: %s", d.Stage, d.Chunk, d.Row, d.Reason)
}
