package normalize

import (
	"fmt"
	"strconv"
	"strings"

	"claimsift/internal/model"
)

// Coercion helpers for untyped backend rows. Every helper is total: bad
// shapes fall back to a zero value instead of failing.

func asString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		if s == float64(int64(s)) {
			return strconv.FormatInt(int64(s), 10)
		}
		return strconv.FormatFloat(s, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(s)
	case nil:
		return ""
	default:
		return ""
	}
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func asInt(v any) (int, bool) {
	f, ok := asFloat(v)
	if !ok {
		return 0, false
	}
	return int(f), true
}

func asStringSlice(v any) []string {
	items, ok := v.([]any)
	if !ok {
		if s := collapseWhitespace(asString(v)); s != "" {
			return []string{s}
		}
		return nil
	}
	var out []string
	for _, item := range items {
		if s := collapseWhitespace(asString(item)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// collapseWhitespace trims and squeezes runs of whitespace to one space.
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// asTimeRange accepts {"start":s,"end":e} objects or [s,e] pairs, with
// numeric-like strings coerced. Values outside span are clamped, and an
// inverted range is swapped rather than rejected.
func asTimeRange(v any, span model.TimeRange) model.TimeRange {
	out := span

	switch r := v.(type) {
	case map[string]any:
		if start, ok := asFloat(r["start"]); ok {
			out.Start = start
		}
		if end, ok := asFloat(r["end"]); ok {
			out.End = end
		}
	case []any:
		if len(r) >= 1 {
			if start, ok := asFloat(r[0]); ok {
				out.Start = start
			}
		}
		if len(r) >= 2 {
			if end, ok := asFloat(r[1]); ok {
				out.End = end
			}
		}
	}

	if out.Start > out.End {
		out.Start, out.End = out.End, out.Start
	}
	out.Start = clamp(out.Start, span.Start, span.End)
	out.End = clamp(out.End, span.Start, span.End)
	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// asEvidence accepts a list of {seg_id, quote} objects or bare strings.
func asEvidence(v any) []model.Evidence {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	var out []model.Evidence
	for _, item := range items {
		switch e := item.(type) {
		case map[string]any:
			ev := model.Evidence{
				SegID: collapseWhitespace(asString(e["seg_id"])),
				Quote: collapseWhitespace(asString(e["quote"])),
			}
			if ev.Quote != "" || ev.SegID != "" {
				out = append(out, ev)
			}
		case string:
			if quote := collapseWhitespace(e); quote != "" {
				out = append(out, model.Evidence{Quote: quote})
			}
		}
	}
	return out
}

func rejectRow(stage, backendModel string, chunkIndex, rowIndex int, reason string) model.Diagnostic {
	return model.Diagnostic{
		Stage:  stage,
		Model:  backendModel,
		Chunk:  chunkIndex,
		Row:    rowIndex,
		Reason: fmt.Sprintf("row rejected: %s", reason),
	}
}
