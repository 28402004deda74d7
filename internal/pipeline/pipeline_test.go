package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"claimsift/internal/backend"
	"claimsift/internal/dedupe"
	"claimsift/internal/model"
)

// fakeClient scripts backend behavior per test.
type fakeClient struct {
	models  []string
	listErr error
	chatFn  func(modelName string, messages []backend.Message) (string, error)

	mu    sync.Mutex
	calls int
}

func (c *fakeClient) ListModels(ctx context.Context) ([]string, error) {
	if c.listErr != nil {
		return nil, c.listErr
	}
	return c.models, nil
}

func (c *fakeClient) Chat(ctx context.Context, modelName string, messages []backend.Message) (string, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return c.chatFn(modelName, messages)
}

func testConfig() model.Config {
	cfg := model.DefaultConfig()
	cfg.Backend.Timeout = time.Second
	cfg.Retry.Attempts = 1
	cfg.Retry.InitialBackoff = time.Millisecond
	cfg.Concurrency = model.ConcurrencyConfig{Workers: 2, RequestsPerSecond: 1000, Burst: 1000}
	cfg.Cache.Enabled = false
	return cfg
}

func newTestRunner(cfg model.Config, client backend.Client) *Runner {
	r := NewRunner(cfg, client)
	r.Status = func(string, ...any) {}
	return r
}

func testTranscript() model.Transcript {
	return model.Transcript{
		DocID: "doc1",
		Segments: []model.Segment{
			{Speaker: "A", StartTimeS: 0, EndTimeS: 5, Text: "Eating X cures Y."},
			{Speaker: "B", StartTimeS: 5, EndTimeS: 10, Text: "really?"},
		},
	}
}

const claimResponse = `{"claims":[{` +
	`"speaker":"A","claim_text":"Eating X cures Y",` +
	`"evidence":[{"seg_id":"seg_000001","quote":"Eating X cures Y."}],` +
	`"time_range_s":{"start":0,"end":5},` +
	`"claim_type":"treatment_effect","boldness_rating":3}]}`

func TestExtractClaims_EndToEnd(t *testing.T) {
	client := &fakeClient{
		chatFn: func(modelName string, messages []backend.Message) (string, error) {
			return claimResponse, nil
		},
	}
	r := newTestRunner(testConfig(), client)

	claims, err := ExtractClaims(context.Background(), r, testTranscript(), []string{"m"})
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(claims) != 1 {
		t.Fatalf("expected 1 claim, got %d", len(claims))
	}

	c := claims[0]
	if want := dedupe.ClaimID("doc1", "Eating X cures Y", "A"); c.ClaimID != want {
		t.Errorf("claim id = %q, want %q", c.ClaimID, want)
	}
	if c.DocID != "doc1" || c.Speaker != "A" || c.Model != "m" {
		t.Errorf("unexpected provenance fields: %+v", c)
	}
	if c.TimeRange != (model.TimeRange{Start: 0, End: 5}) {
		t.Errorf("unexpected time range: %+v", c.TimeRange)
	}
	if c.ClaimType != model.ClaimTypeTreatmentEffect || c.BoldnessRating != 3 {
		t.Errorf("unexpected classification: %+v", c)
	}
}

func TestExtractClaims_SameClaimFromTwoModelsCollapses(t *testing.T) {
	client := &fakeClient{
		chatFn: func(modelName string, messages []backend.Message) (string, error) {
			return claimResponse, nil
		},
	}
	r := newTestRunner(testConfig(), client)

	claims, err := ExtractClaims(context.Background(), r, testTranscript(), []string{"m1", "m2"})
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(claims) != 1 {
		t.Fatalf("expected cross-model dedupe to 1 claim, got %d", len(claims))
	}
}

func TestExtractClaims_MalformedTranscript(t *testing.T) {
	r := newTestRunner(testConfig(), &fakeClient{})
	if _, err := ExtractClaims(context.Background(), r, model.Transcript{}, []string{"m"}); !errors.Is(err, ErrMalformedInput) {
		t.Errorf("expected ErrMalformedInput, got %v", err)
	}
}

func TestExtractClaims_UnavailableBackendIsFatal(t *testing.T) {
	client := &fakeClient{
		chatFn: func(modelName string, messages []backend.Message) (string, error) {
			return "", fmt.Errorf("dial failed: %w", backend.ErrUnavailable)
		},
	}
	r := newTestRunner(testConfig(), client)

	if _, err := ExtractClaims(context.Background(), r, testTranscript(), []string{"m"}); !errors.Is(err, backend.ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}

func TestExtractClaims_FailedModelDegradesToDiagnostic(t *testing.T) {
	client := &fakeClient{
		chatFn: func(modelName string, messages []backend.Message) (string, error) {
			if modelName == "bad" {
				return "", fmt.Errorf("model exploded")
			}
			return claimResponse, nil
		},
	}
	r := newTestRunner(testConfig(), client)

	claims, err := ExtractClaims(context.Background(), r, testTranscript(), []string{"good", "bad"})
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(claims) != 1 {
		t.Errorf("expected claims from the surviving model, got %d", len(claims))
	}
	if len(r.Diagnostics()) != 1 {
		t.Errorf("expected 1 diagnostic for the failed model, got %d", len(r.Diagnostics()))
	}
}

func TestExtractClaims_UnusableResponseDegradesToDiagnostic(t *testing.T) {
	client := &fakeClient{
		chatFn: func(modelName string, messages []backend.Message) (string, error) {
			return "I found no claims, sorry.", nil
		},
	}
	r := newTestRunner(testConfig(), client)

	claims, err := ExtractClaims(context.Background(), r, testTranscript(), []string{"m"})
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(claims) != 0 {
		t.Errorf("expected no claims, got %d", len(claims))
	}
	if len(r.Diagnostics()) != 1 {
		t.Errorf("expected 1 diagnostic, got %d", len(r.Diagnostics()))
	}
}

func TestExtractClaims_RetriesTransientFailures(t *testing.T) {
	var attempts int
	var mu sync.Mutex
	client := &fakeClient{
		chatFn: func(modelName string, messages []backend.Message) (string, error) {
			mu.Lock()
			attempts++
			n := attempts
			mu.Unlock()
			if n == 1 {
				return "", fmt.Errorf("429: %w", backend.ErrTransient)
			}
			return claimResponse, nil
		},
	}
	cfg := testConfig()
	cfg.Retry.Attempts = 3
	r := newTestRunner(cfg, client)

	claims, err := ExtractClaims(context.Background(), r, testTranscript(), []string{"m"})
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(claims) != 1 {
		t.Errorf("expected the retry to recover the chunk, got %d claims", len(claims))
	}
	if attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", attempts)
	}
}

func TestExtractClaims_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := &fakeClient{
		chatFn: func(modelName string, messages []backend.Message) (string, error) {
			return claimResponse, nil
		},
	}
	r := newTestRunner(testConfig(), client)

	if _, err := ExtractClaims(ctx, r, testTranscript(), []string{"m"}); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestExtractClaims_ManyChunksCompletes(t *testing.T) {
	// Many more chunk jobs than the worker pool buffers hold; the run
	// must finish without stalling on result backpressure.
	transcript := model.Transcript{DocID: "doc1"}
	for i := 0; i < 60; i++ {
		transcript.Segments = append(transcript.Segments, model.Segment{
			Speaker: "A", StartTimeS: float64(i), EndTimeS: float64(i + 1),
			Text: fmt.Sprintf("topic %02d fact statement", i),
		})
	}

	client := &fakeClient{
		chatFn: func(modelName string, messages []backend.Message) (string, error) {
			return claimResponse, nil
		},
	}
	cfg := testConfig()
	cfg.Chunking.MaxChars = 25
	cfg.Chunking.OverlapChars = 0
	r := newTestRunner(cfg, client)

	type outcome struct {
		claims []model.ClaimRecord
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		claims, err := ExtractClaims(context.Background(), r, transcript, []string{"m"})
		done <- outcome{claims, err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			t.Fatalf("extract: %v", out.err)
		}
		if len(out.claims) != 1 {
			t.Errorf("expected identical chunk claims to dedupe to 1, got %d", len(out.claims))
		}
	case <-time.After(10 * time.Second):
		t.Fatal("extraction stalled with more jobs than the pool buffers")
	}
}

func TestExtractClaims_MaxSegmentsCap(t *testing.T) {
	transcript := model.Transcript{DocID: "doc1"}
	for i := 0; i < 10; i++ {
		transcript.Segments = append(transcript.Segments, model.Segment{
			Speaker: "A", StartTimeS: float64(i), EndTimeS: float64(i + 1),
			Text: fmt.Sprintf("segment number %d text", i),
		})
	}

	var seen []string
	var mu sync.Mutex
	client := &fakeClient{
		chatFn: func(modelName string, messages []backend.Message) (string, error) {
			mu.Lock()
			seen = append(seen, messages[1].Content)
			mu.Unlock()
			return `{"claims":[]}`, nil
		},
	}
	cfg := testConfig()
	cfg.Chunking.MaxSegments = 3
	r := newTestRunner(cfg, client)

	if _, err := ExtractClaims(context.Background(), r, transcript, []string{"m"}); err != nil {
		t.Fatalf("extract: %v", err)
	}
	for _, prompt := range seen {
		if strings.Contains(prompt, "segment number 3") {
			t.Error("prompt contains a segment past the cap")
		}
	}
}

func TestGenerateQueries_HeuristicOnlyCoversEveryClaim(t *testing.T) {
	claims := []model.ClaimRecord{
		{ClaimID: "clm_aaa", ClaimText: "Eating X cures Y", ClaimType: model.ClaimTypeTreatmentEffect},
		{ClaimID: "clm_bbb", ClaimText: "Running improves mood", ClaimType: model.ClaimTypeExercise},
	}
	r := newTestRunner(testConfig(), &fakeClient{})

	queries, err := GenerateQueries(context.Background(), r, claims, "")
	if err != nil {
		t.Fatalf("queries: %v", err)
	}
	if len(queries) != 2 {
		t.Fatalf("expected 2 heuristic queries, got %d", len(queries))
	}
	covered := map[string]bool{}
	for _, q := range queries {
		if q.Origin != model.OriginHeuristic {
			t.Errorf("expected heuristic origin, got %q", q.Origin)
		}
		covered[q.ClaimID] = true
	}
	for _, c := range claims {
		if !covered[c.ClaimID] {
			t.Errorf("claim %s has no query", c.ClaimID)
		}
	}
}

func TestGenerateQueries_HeuristicFillsUncoveredClaims(t *testing.T) {
	claims := []model.ClaimRecord{
		{ClaimID: "clm_aaa", ClaimText: "Vitamin D supplementation prevents influenza infections", ClaimType: model.ClaimTypeOther},
		{ClaimID: "clm_bbb", ClaimText: "Running improves mood", ClaimType: model.ClaimTypeExercise},
	}
	client := &fakeClient{
		chatFn: func(modelName string, messages []backend.Message) (string, error) {
			return `{"queries":[{` +
				`"claim_id":"clm_aaa",` +
				`"query":"Does vitamin D supplementation prevent influenza infections in trials?",` +
				`"why_this_query":"Direct test of the claim.",` +
				`"preferred_sources":["PubMed"]}]}`, nil
		},
	}
	r := newTestRunner(testConfig(), client)

	queries, err := GenerateQueries(context.Background(), r, claims, "m")
	if err != nil {
		t.Fatalf("queries: %v", err)
	}
	if len(queries) != 2 {
		t.Fatalf("expected 2 queries (1 generated, 1 heuristic), got %d", len(queries))
	}

	byClaim := map[string]model.ValidationQueryRecord{}
	for _, q := range queries {
		byClaim[q.ClaimID] = q
	}
	if byClaim["clm_aaa"].Origin != model.OriginGenerated {
		t.Errorf("expected generated query to cover clm_aaa, got %+v", byClaim["clm_aaa"])
	}
	if byClaim["clm_bbb"].Origin != model.OriginHeuristic {
		t.Errorf("expected heuristic fill for clm_bbb, got %+v", byClaim["clm_bbb"])
	}
}

func TestGenerateQueries_UnavailableBackendDegradesToHeuristics(t *testing.T) {
	claims := []model.ClaimRecord{
		{ClaimID: "clm_aaa", ClaimText: "Eating X cures Y", ClaimType: model.ClaimTypeTreatmentEffect},
		{ClaimID: "clm_bbb", ClaimText: "Running improves mood", ClaimType: model.ClaimTypeExercise},
	}
	client := &fakeClient{
		chatFn: func(modelName string, messages []backend.Message) (string, error) {
			return "", fmt.Errorf("connection refused: %w", backend.ErrUnavailable)
		},
	}
	r := newTestRunner(testConfig(), client)

	queries, err := GenerateQueries(context.Background(), r, claims, "m")
	if err != nil {
		t.Fatalf("expected heuristic degradation, got error: %v", err)
	}
	if len(queries) != 2 {
		t.Fatalf("expected 2 heuristic queries, got %d", len(queries))
	}
	referenced := map[string]bool{}
	for _, q := range queries {
		if q.Origin != model.OriginHeuristic {
			t.Errorf("expected heuristic origin, got %q", q.Origin)
		}
		referenced[q.ClaimID] = true
	}
	for _, c := range claims {
		if !referenced[c.ClaimID] {
			t.Errorf("claim %s has no query after degradation", c.ClaimID)
		}
	}
	if len(r.Diagnostics()) == 0 {
		t.Error("expected a diagnostic recording the backend loss")
	}
}

func TestGenerateQueries_NoClaims(t *testing.T) {
	r := newTestRunner(testConfig(), &fakeClient{})
	queries, err := GenerateQueries(context.Background(), r, nil, "m")
	if err != nil {
		t.Fatalf("queries: %v", err)
	}
	if len(queries) != 0 {
		t.Errorf("expected no queries, got %d", len(queries))
	}
}

func TestFilterModels(t *testing.T) {
	available := []string{"llama3:8b", "qwen2.5:7b"}
	kept, missing := FilterModels([]string{"llama3", "qwen2.5:7b", "mistral"}, available)
	if len(kept) != 2 || kept[0] != "llama3" || kept[1] != "qwen2.5:7b" {
		t.Errorf("unexpected kept models: %v", kept)
	}
	if len(missing) != 1 || missing[0] != "mistral" {
		t.Errorf("unexpected missing models: %v", missing)
	}
}

func TestChooseQueryModel(t *testing.T) {
	available := []string{"llama3:8b", "qwen2.5:7b"}
	cases := []struct {
		name       string
		requested  string
		extraction []string
		want       string
	}{
		{"requested available", "qwen2.5:7b", []string{"llama3:8b"}, "qwen2.5:7b"},
		{"requested matches tag prefix", "llama3", []string{}, "llama3"},
		{"requested missing falls back", "mistral", []string{"llama3:8b"}, "llama3:8b"},
		{"no requested picks first available extraction model", "", []string{"mistral", "qwen2.5:7b"}, "qwen2.5:7b"},
		{"nothing available", "mistral", []string{"phi3"}, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ChooseQueryModel(tc.requested, tc.extraction, available); got != tc.want {
				t.Errorf("ChooseQueryModel(%q, %v) = %q, want %q", tc.requested, tc.extraction, got, tc.want)
			}
		})
	}
}

func TestRunPipeline_WritesBothOutputs(t *testing.T) {
	dir := t.TempDir()
	claimsPath := filepath.Join(dir, "claims.jsonl")
	queriesPath := filepath.Join(dir, "queries.jsonl")
	claimID := dedupe.ClaimID("doc1", "Eating X cures Y", "A")

	client := &fakeClient{
		models: []string{"m"},
		chatFn: func(modelName string, messages []backend.Message) (string, error) {
			if strings.Contains(messages[0].Content, `"queries"`) {
				return fmt.Sprintf(`{"queries":[{`+
					`"claim_id":%q,`+
					`"query":"What is the treatment effect of eating on cures?",`+
					`"why_this_query":"Direct test.",`+
					`"preferred_sources":["PubMed"]}]}`, claimID), nil
			}
			return claimResponse, nil
		},
	}
	r := newTestRunner(testConfig(), client)

	if err := RunPipeline(context.Background(), r, testTranscript(), []string{"m"}, "m", claimsPath, queriesPath); err != nil {
		t.Fatalf("pipeline: %v", err)
	}

	claims, err := LoadClaims(claimsPath)
	if err != nil {
		t.Fatalf("load claims: %v", err)
	}
	if len(claims) != 1 || claims[0].ClaimID != claimID {
		t.Fatalf("unexpected claims output: %+v", claims)
	}

	queries, err := LoadQueries(queriesPath)
	if err != nil {
		t.Fatalf("load queries: %v", err)
	}
	referenced := map[string]bool{}
	for _, q := range queries {
		referenced[q.ClaimID] = true
	}
	for _, c := range claims {
		if !referenced[c.ClaimID] {
			t.Errorf("claim %s is not referenced by any query", c.ClaimID)
		}
	}
}

func TestRunPipeline_CancelWritesCompletedClaimPrefix(t *testing.T) {
	dir := t.TempDir()
	claimsPath := filepath.Join(dir, "claims.jsonl")
	queriesPath := filepath.Join(dir, "queries.jsonl")

	transcript := model.Transcript{DocID: "doc1"}
	for i := 0; i < 5; i++ {
		transcript.Segments = append(transcript.Segments, model.Segment{
			Speaker: "A", StartTimeS: float64(i), EndTimeS: float64(i + 1),
			Text: fmt.Sprintf("topic %02d fact statement", i),
		})
	}

	// The backend dies after answering the first chunk.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	client := &fakeClient{
		models: []string{"m"},
		chatFn: func(modelName string, messages []backend.Message) (string, error) {
			cancel()
			return claimResponse, nil
		},
	}
	cfg := testConfig()
	cfg.Chunking.MaxChars = 25
	cfg.Chunking.OverlapChars = 0
	cfg.Concurrency.Workers = 1
	r := newTestRunner(cfg, client)

	err := RunPipeline(ctx, r, transcript, []string{"m"}, "", claimsPath, queriesPath)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	claims, loadErr := LoadClaims(claimsPath)
	if loadErr != nil {
		t.Fatalf("expected claims from completed chunks on disk: %v", loadErr)
	}
	if len(claims) != 1 {
		t.Errorf("expected 1 claim from the finished chunk, got %d", len(claims))
	}
	if _, statErr := os.Stat(queriesPath); statErr == nil {
		t.Error("expected no queries output from a cancelled run")
	}
}

func TestRunPipeline_NoRequestedModelServed(t *testing.T) {
	dir := t.TempDir()
	client := &fakeClient{models: []string{"other-model"}}
	r := newTestRunner(testConfig(), client)

	err := RunPipeline(context.Background(), r, testTranscript(), []string{"m"}, "",
		filepath.Join(dir, "claims.jsonl"), filepath.Join(dir, "queries.jsonl"))
	if err == nil {
		t.Fatal("expected error when the backend serves none of the requested models")
	}
}

func TestRunPipeline_UnavailableBackendFailsPreflight(t *testing.T) {
	dir := t.TempDir()
	claimsPath := filepath.Join(dir, "claims.jsonl")
	queriesPath := filepath.Join(dir, "queries.jsonl")

	client := &fakeClient{listErr: fmt.Errorf("dial failed: %w", backend.ErrUnavailable)}
	r := newTestRunner(testConfig(), client)

	err := RunPipeline(context.Background(), r, testTranscript(), []string{"m"}, "", claimsPath, queriesPath)
	if !errors.Is(err, backend.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if _, statErr := LoadClaims(claimsPath); statErr == nil {
		t.Error("expected no claims output after preflight failure")
	}
}
