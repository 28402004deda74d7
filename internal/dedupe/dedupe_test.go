package dedupe

import (
	"reflect"
	"strings"
	"testing"

	"claimsift/internal/model"
)

func TestClaimID_Deterministic(t *testing.T) {
	a := ClaimID("doc_1", "Eating X cures Y", "A")
	b := ClaimID("doc_1", "Eating X cures Y", "A")
	if a != b {
		t.Errorf("same inputs produced different ids: %s vs %s", a, b)
	}
	if !strings.HasPrefix(a, "clm_") {
		t.Errorf("id missing prefix: %s", a)
	}
	if len(a) != len("clm_")+12 {
		t.Errorf("unexpected id length: %s", a)
	}
}

func TestClaimID_CanonicalizesTextAndSpeaker(t *testing.T) {
	a := ClaimID("doc_1", "Eating  X   cures Y", "A")
	b := ClaimID("doc_1", "eating x cures y", "a")
	if a != b {
		t.Error("cosmetic differences should not change identity")
	}

	if ClaimID("doc_1", "x", "A") == ClaimID("doc_2", "x", "A") {
		t.Error("doc_id must contribute to identity")
	}
	if ClaimID("doc_1", "x", "A") == ClaimID("doc_1", "x", "B") {
		t.Error("speaker must contribute to identity")
	}
}

func claim(text, speaker string, evidence int, start, end float64) model.ClaimRecord {
	rec := model.ClaimRecord{
		DocID:     "doc_1",
		Speaker:   speaker,
		ClaimText: text,
		TimeRange: model.TimeRange{Start: start, End: end},
	}
	for i := 0; i < evidence; i++ {
		rec.Evidence = append(rec.Evidence, model.Evidence{Quote: "q"})
	}
	return rec
}

func TestClaims_AssignsIDsAndCollapses(t *testing.T) {
	records := []model.ClaimRecord{
		claim("Eating X cures Y", "A", 0, 0, 5),
		claim("Sleep matters", "B", 1, 10, 20),
		claim("eating x cures y", "A", 0, 0, 5), // duplicate of first
	}

	out := Claims(records)
	if len(out) != 2 {
		t.Fatalf("expected 2 unique claims, got %d", len(out))
	}
	if out[0].ClaimID == "" || out[1].ClaimID == "" {
		t.Error("claim ids not assigned")
	}
	if out[0].ClaimText != "Eating X cures Y" {
		t.Errorf("first-seen order not preserved: %q", out[0].ClaimText)
	}
}

func TestClaims_PrefersEvidenceThenWidestSpan(t *testing.T) {
	records := []model.ClaimRecord{
		claim("LDL raises risk", "A", 0, 10, 60), // wide but no evidence
		claim("LDL raises risk", "A", 1, 20, 25), // evidence wins
		claim("LDL raises risk", "A", 1, 5, 90),  // evidence + wider span wins
		claim("LDL raises risk", "A", 1, 5, 90),  // tie: first-seen keeps
	}

	out := Claims(records)
	if len(out) != 1 {
		t.Fatalf("expected 1 claim, got %d", len(out))
	}
	rep := out[0]
	if len(rep.Evidence) == 0 {
		t.Error("representative should carry evidence")
	}
	if rep.TimeRange.Start != 5 || rep.TimeRange.End != 90 {
		t.Errorf("representative should have widest span, got %+v", rep.TimeRange)
	}
}

func TestClaims_OrderIsFirstAppearance(t *testing.T) {
	records := []model.ClaimRecord{
		claim("c", "A", 0, 0, 1),
		claim("a", "A", 0, 0, 1),
		claim("b", "A", 0, 0, 1),
		claim("a", "A", 1, 0, 2),
	}

	out := Claims(records)
	texts := []string{out[0].ClaimText, out[1].ClaimText, out[2].ClaimText}
	if !reflect.DeepEqual(texts, []string{"c", "a", "b"}) {
		t.Errorf("output order %v, want first-appearance order", texts)
	}
}

func TestClaims_Idempotent(t *testing.T) {
	records := []model.ClaimRecord{
		claim("x", "A", 1, 0, 5),
		claim("y", "B", 0, 5, 10),
		claim("x", "A", 0, 0, 3),
	}

	once := Claims(records)
	twice := Claims(once)
	if !reflect.DeepEqual(once, twice) {
		t.Error("deduplicating a deduplicated set must be a no-op")
	}
}

func TestQueries_DedupeByCanonicalText(t *testing.T) {
	records := []model.ValidationQueryRecord{
		{ClaimID: "clm_1", Query: "Does X cause Y?"},
		{ClaimID: "clm_2", Query: "does  x cause y?"},
		{ClaimID: "clm_3", Query: "Is Z safe?"},
	}

	out := Queries(records)
	if len(out) != 2 {
		t.Fatalf("expected 2 queries, got %d", len(out))
	}
	if out[0].ClaimID != "clm_1" {
		t.Error("first occurrence should win")
	}

	if again := Queries(out); !reflect.DeepEqual(out, again) {
		t.Error("query dedup must be idempotent")
	}
}
