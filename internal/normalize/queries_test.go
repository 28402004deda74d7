package normalize

import (
	"testing"

	"claimsift/internal/model"
)

func TestNaturalizeQuestion_RewritesRepetitivePrefix(t *testing.T) {
	query := "What is the current scientific consensus on whether " +
		"LDL cholesterol is an independent risk factor for heart disease?"

	got := NaturalizeQuestion(query)
	want := "LDL cholesterol is an independent risk factor for heart disease?"
	if got != want {
		t.Errorf("NaturalizeQuestion() = %q, want %q", got, want)
	}
}

func TestNaturalizeQuestion_LeavesPlainQuestionsAlone(t *testing.T) {
	query := "Does creatine improve strength in older adults?"
	if got := NaturalizeQuestion(query); got != query {
		t.Errorf("plain question rewritten to %q", got)
	}
}

func TestNaturalizeQuestion_PrefixOnlyUnchanged(t *testing.T) {
	query := "What is the scientific consensus on whether "
	if got := NaturalizeQuestion(query); got != "What is the scientific consensus on whether" {
		t.Errorf("prefix-only query mangled: %q", got)
	}
}

func TestQueries_WellFormedRow(t *testing.T) {
	rows := []map[string]any{
		{
			"claim_id":          "clm_000001",
			"query":             "Does X cause Y in controlled studies?",
			"why_this_query":    "Tests the causal mechanism directly.",
			"preferred_sources": []any{"systematic review", "PubMed"},
		},
	}

	records, diags := Queries(rows, QueryContext{Model: "qwen3:4b", Chunk: 1})
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	r := records[0]
	if r.ClaimID != "clm_000001" {
		t.Errorf("claim_id = %q", r.ClaimID)
	}
	if r.Origin != model.OriginGenerated {
		t.Errorf("origin = %q, want generated", r.Origin)
	}
	if len(r.PreferredSources) != 2 {
		t.Errorf("preferred_sources = %v", r.PreferredSources)
	}
}

func TestQueries_RejectsEmptyQueryOnly(t *testing.T) {
	rows := []map[string]any{
		{"claim_id": "clm_000001", "query": ""},
		{"claim_id": "clm_000002"},
		{"query": "Is there evidence that X?"}, // missing claim_id still kept
	}

	records, diags := Queries(rows, QueryContext{Chunk: 0})
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if len(diags) != 2 {
		t.Fatalf("expected 2 diagnostics, got %d", len(diags))
	}
	if records[0].ClaimID != "" {
		t.Errorf("claim_id should be empty, got %q", records[0].ClaimID)
	}
}

func TestQueries_NaturalizesBeforeEmitting(t *testing.T) {
	rows := []map[string]any{
		{
			"claim_id": "clm_000001",
			"query":    "What does the evidence say about whether fasting lowers blood pressure?",
		},
	}
	records, _ := Queries(rows, QueryContext{})
	if records[0].Query != "fasting lowers blood pressure?" {
		t.Errorf("query not naturalized: %q", records[0].Query)
	}
}

func TestQueries_TotalOverHostileRows(t *testing.T) {
	rows := []map[string]any{
		nil,
		{"query": 42.0},
		{"query": []any{"not", "a", "string"}},
		{"query": "ok", "preferred_sources": "PubMed"},
	}
	records, diags := Queries(rows, QueryContext{})
	if len(records)+len(diags) != len(rows) {
		t.Fatalf("totality broken: %d records + %d diags for %d rows", len(records), len(diags), len(rows))
	}
}
