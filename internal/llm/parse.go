package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/kailas-cloud/partcat/internal/domain"
)

// Item is one classification as returned by the model.
type Item struct {
	Index       int // 1-based position in the prompt; 0 when absent
	Category    string
	Subcategory string
	PartType    string
	Confidence  float64
}

// IsEmpty reports whether the model gave no usable answer.
func (it Item) IsEmpty() bool {
	return it.Category == "" && it.Subcategory == "" && it.PartType == ""
}

// UnmarshalJSON accepts the key spellings models actually produce.
func (it *Item) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err //nolint:wrapcheck // decoder error is reported by the cascade
	}
	for k, v := range raw {
		switch strings.NewReplacer("_", "", " ", "", "-", "").Replace(strings.ToLower(k)) {
		case "index", "idx", "productindex":
			if n, ok := number(v); ok {
				it.Index = int(n)
			}
		case "category", "suggestedcategory":
			it.Category = text(v)
		case "subcategory", "suggestedsubcategory":
			it.Subcategory = text(v)
		case "parttype", "suggestedparttype", "type":
			it.PartType = text(v)
		case "confidence", "score":
			if n, ok := number(v); ok {
				it.Confidence = n
			}
		}
	}
	return nil
}

func text(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

func number(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(t), "%"), 64)
		return f, err == nil
	}
	return 0, false
}

var fenceRe = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*(.*?)```")

var unescaper = strings.NewReplacer(`\"`, `"`, `\n`, "\n", `\t`, "\t", `\\`, `\`)

// ParseResponse decodes the model answer, trying progressively looser readings:
// direct JSON, markdown fences stripped, the outermost [...] span, common escapes
// removed, and finally a JSON string holding the array.
func ParseResponse(content string) ([]Item, error) {
	content = strings.TrimSpace(content)
	strategies := []func(string) (string, bool){
		func(s string) (string, bool) { return s, true },
		stripFences,
		outerArray,
		func(s string) (string, bool) { return unescaper.Replace(s), strings.Contains(s, `\`) },
		decodeString,
	}
	for _, strategy := range strategies {
		candidate, ok := strategy(content)
		if !ok {
			continue
		}
		if items, ok := decodeItems(candidate); ok {
			return items, nil
		}
		// Each strategy may expose an inner array only after bracket extraction.
		if inner, ok := outerArray(candidate); ok {
			if items, ok := decodeItems(inner); ok {
				return items, nil
			}
		}
	}
	return nil, fmt.Errorf("llm response: %w", domain.ErrUnparsableResponse)
}

func stripFences(s string) (string, bool) {
	m := fenceRe.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	return strings.TrimSpace(m[1]), true
}

func outerArray(s string) (string, bool) {
	start := strings.Index(s, "[")
	end := strings.LastIndex(s, "]")
	if start < 0 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}

func decodeString(s string) (string, bool) {
	var inner string
	if err := json.Unmarshal([]byte(s), &inner); err != nil {
		return "", false
	}
	// Double-encoded strings are decoded once more.
	var twice string
	if err := json.Unmarshal([]byte(inner), &twice); err == nil {
		return twice, true
	}
	return inner, true
}

// decodeItems accepts a bare array or an object wrapping one ({"results": [...]}).
func decodeItems(s string) ([]Item, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, false
	}
	var items []Item
	if err := json.Unmarshal([]byte(s), &items); err == nil {
		return items, true
	}
	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal([]byte(s), &wrapper); err != nil {
		return nil, false
	}
	for _, key := range []string{"results", "classifications", "products", "items"} {
		if raw, ok := wrapper[key]; ok {
			if err := json.Unmarshal(raw, &items); err == nil {
				return items, true
			}
		}
	}
	return nil, false
}

// Align maps parsed items onto n input positions. Indexed items are placed by
// index (first occurrence wins); otherwise items are positional, with exact
// duplicates dropped before truncating an oversized answer. Missing positions
// are empty items. The second return value counts missing or dropped items.
func Align(items []Item, n int) ([]Item, int) {
	out := make([]Item, n)

	if indexed(items, n) {
		filled := make([]bool, n)
		placed := 0
		for _, it := range items {
			i := it.Index - 1
			if i < 0 || i >= n || filled[i] {
				continue
			}
			out[i], filled[i] = it, true
			placed++
		}
		return out, n - placed + (len(items) - placed)
	}

	if len(items) > n {
		deduped := make([]Item, 0, len(items))
		for i, it := range items {
			if i > 0 && it == items[i-1] {
				continue
			}
			deduped = append(deduped, it)
		}
		items = deduped
	}
	copied := copy(out, items)
	mismatch := n - copied
	if len(items) > n {
		mismatch = len(items) - n
	}
	return out, mismatch
}

// indexed reports whether every item carries an index inside 1..n.
func indexed(items []Item, n int) bool {
	if len(items) == 0 {
		return false
	}
	for _, it := range items {
		if it.Index < 1 || it.Index > n {
			return false
		}
	}
	return true
}
