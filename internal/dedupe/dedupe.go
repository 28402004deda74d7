// Package dedupe collapses near-identical records produced by overlapping
// chunks and multiple models into a canonical, stably ordered set.
package dedupe

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"claimsift/internal/model"
)

// canonicalText lowercases and squeezes whitespace so cosmetic differences
// between chunks never split an identity.
func canonicalText(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// ClaimID derives the deterministic claim identifier. Identical
// (doc, claim text, speaker) always hash to the same id, which makes
// re-runs idempotent and cross-chunk dedup possible.
func ClaimID(docID, claimText, speaker string) string {
	h := sha256.Sum256([]byte(docID + "\x00" + canonicalText(claimText) + "\x00" + canonicalText(speaker)))
	return "clm_" + hex.EncodeToString(h[:6])
}

// Claims assigns claim ids and keeps one representative per id. Preference
// order: a record with evidence beats one without, then the widest time
// span wins, then first-seen. Output order is first appearance of each id,
// so repeated runs over the same input emit the same sequence.
func Claims(records []model.ClaimRecord) []model.ClaimRecord {
	var out []model.ClaimRecord
	index := make(map[string]int)

	for _, rec := range records {
		rec.ClaimID = ClaimID(rec.DocID, rec.ClaimText, rec.Speaker)

		at, seen := index[rec.ClaimID]
		if !seen {
			index[rec.ClaimID] = len(out)
			out = append(out, rec)
			continue
		}
		if betterRepresentative(rec, out[at]) {
			out[at] = rec
		}
	}

	return out
}

// betterRepresentative reports whether candidate should replace current.
// Ties keep current, preserving first-seen order.
func betterRepresentative(candidate, current model.ClaimRecord) bool {
	candidateHasEvidence := len(candidate.Evidence) > 0
	currentHasEvidence := len(current.Evidence) > 0
	if candidateHasEvidence != currentHasEvidence {
		return candidateHasEvidence
	}
	return candidate.TimeRange.Width() > current.TimeRange.Width()
}

// Queries drops duplicate queries by exact canonical query text, keeping
// the first occurrence. Coverage lost here is restored by the heuristic
// generator, which runs after global dedup.
func Queries(records []model.ValidationQueryRecord) []model.ValidationQueryRecord {
	var out []model.ValidationQueryRecord
	seen := make(map[string]bool)

	for _, rec := range records {
		key := canonicalText(rec.Query)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, rec)
	}

	return out
}
