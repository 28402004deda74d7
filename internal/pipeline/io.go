package pipeline

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"claimsift/internal/model"
)

// Sentinel error kinds for the pipeline edges, checked with errors.Is.
var (
	// ErrMalformedInput marks structurally invalid transcripts or claim
	// files. Always fatal; there is nothing to degrade to.
	ErrMalformedInput = errors.New("malformed input")

	// ErrWriteFailure marks a failed output write. The run aborts and
	// leaves no partial output file behind.
	ErrWriteFailure = errors.New("write failure")
)

// LoadTranscript reads a normalized transcript JSON document.
func LoadTranscript(path string) (model.Transcript, error) {
	var t model.Transcript

	data, err := os.ReadFile(path)
	if err != nil {
		return t, fmt.Errorf("read transcript: %w", err)
	}
	if err := json.Unmarshal(data, &t); err != nil {
		return t, fmt.Errorf("parse transcript %s: %v: %w", path, err, ErrMalformedInput)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("%s: %v: %w", path, err, ErrMalformedInput)
	}
	return t, nil
}

// LoadClaims reads a claims JSONL file written by the extraction stage.
func LoadClaims(path string) ([]model.ClaimRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open claims: %w", err)
	}
	defer func() { _ = f.Close() }()

	var claims []model.ClaimRecord
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var claim model.ClaimRecord
		if err := json.Unmarshal(raw, &claim); err != nil {
			return nil, fmt.Errorf("%s line %d: %v: %w", path, line, err, ErrMalformedInput)
		}
		claims = append(claims, claim)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan claims: %w", err)
	}
	return claims, nil
}

// LoadQueries reads a validation-query JSONL file.
func LoadQueries(path string) ([]model.ValidationQueryRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open queries: %w", err)
	}
	defer func() { _ = f.Close() }()

	var queries []model.ValidationQueryRecord
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var query model.ValidationQueryRecord
		if err := json.Unmarshal(raw, &query); err != nil {
			return nil, fmt.Errorf("%s line %d: %v: %w", path, line, err, ErrMalformedInput)
		}
		queries = append(queries, query)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan queries: %w", err)
	}
	return queries, nil
}

// WriteClaims persists the extraction stage output as JSONL.
func WriteClaims(path string, claims []model.ClaimRecord) error {
	return writeJSONL(path, claims)
}

// WriteQueries persists the query stage output as JSONL.
func WriteQueries(path string, queries []model.ValidationQueryRecord) error {
	return writeJSONL(path, queries)
}

// writeJSONL writes all rows to a temp file in the target directory and
// renames it into place, so a crashed run never leaves a truncated file.
func writeJSONL[T any](path string, rows []T) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %v: %w", err, ErrWriteFailure)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp output: %v: %w", err, ErrWriteFailure)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	w := bufio.NewWriter(tmp)
	enc := json.NewEncoder(w)
	for _, row := range rows {
		if encErr := enc.Encode(row); encErr != nil {
			_ = tmp.Close()
			return fmt.Errorf("encode row: %v: %w", encErr, ErrWriteFailure)
		}
	}
	if flushErr := w.Flush(); flushErr != nil {
		_ = tmp.Close()
		return fmt.Errorf("flush output: %v: %w", flushErr, ErrWriteFailure)
	}
	if closeErr := tmp.Close(); closeErr != nil {
		return fmt.Errorf("close output: %v: %w", closeErr, ErrWriteFailure)
	}
	if renameErr := os.Rename(tmp.Name(), path); renameErr != nil {
		return fmt.Errorf("rename output: %v: %w", renameErr, ErrWriteFailure)
	}
	return nil
}
