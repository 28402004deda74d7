package pipeline

import (
	"encoding/json"
	"fmt"
	"strings"
)

// decodeRows pulls the row objects out of a backend response. Models wrap
// JSON in prose or code fences, so the text is scanned for the first
// position where a complete JSON value decodes; the decoder stops at the
// value's end, which also discards trailing commentary. Rows live either
// under key in an object or in a bare array.
func decodeRows(text, key string) ([]map[string]any, error) {
	for i := 0; i < len(text); i++ {
		if text[i] != '{' && text[i] != '[' {
			continue
		}

		var value any
		dec := json.NewDecoder(strings.NewReader(text[i:]))
		if err := dec.Decode(&value); err != nil {
			continue
		}

		switch v := value.(type) {
		case []any:
			return coerceRowList(v), nil
		case map[string]any:
			if list, ok := v[key].([]any); ok {
				return coerceRowList(list), nil
			}
			return nil, fmt.Errorf("response object has no %q list", key)
		}
	}
	return nil, fmt.Errorf("no JSON rows found in response")
}

// coerceRowList keeps object rows and replaces anything else with an
// empty row so normalization records a rejection diagnostic for it.
func coerceRowList(items []any) []map[string]any {
	rows := make([]map[string]any, 0, len(items))
	for _, item := range items {
		if row, ok := item.(map[string]any); ok {
			rows = append(rows, row)
			continue
		}
		rows = append(rows, map[string]any{})
	}
	return rows
}
