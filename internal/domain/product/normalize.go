package product

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// aliases maps every accepted input key (lowercased, separators stripped) to a canonical field.
var aliases = map[string]string{
	"id":             "id",
	"productid":      "id",
	"name":           "name",
	"productname":    "name",
	"title":          "title",
	"producttitle":   "title",
	"description":    "description",
	"desc":           "description",
	"longdesc":       "description",
	"brand":          "brand",
	"manufacturer":   "brand",
	"make":           "brand",
	"partnumber":     "partNumber",
	"partno":         "partNumber",
	"sku":            "partNumber",
	"mpn":            "partNumber",
	"specs":          "specs",
	"specification":  "specs",
	"specifications": "specs",
}

func canonicalKey(k string) string {
	k = strings.ToLower(strings.TrimSpace(k))
	return strings.NewReplacer(" ", "", "_", "", "-", "").Replace(k)
}

// Normalize maps a loosely keyed record (CSV row, JSON object) onto a Product.
// Keys are visited in sorted order and the first non-empty alias wins per field. A missing id is generated.
func Normalize(raw map[string]any) (*Product, error) {
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fields := make(map[string]string, len(raw))
	for _, k := range keys {
		field, ok := aliases[canonicalKey(k)]
		if !ok {
			continue
		}
		s := stringify(raw[k])
		if s == "" || fields[field] != "" {
			continue
		}
		fields[field] = s
	}

	if fields["name"] == "" && fields["title"] == "" && fields["description"] == "" {
		return nil, fmt.Errorf("product has no name, title or description")
	}

	p := &Product{
		ID:          fields["id"],
		Name:        fields["name"],
		Title:       fields["title"],
		Description: fields["description"],
		Brand:       fields["brand"],
		PartNumber:  fields["partNumber"],
		Specs:       fields["specs"],
		Status:      StatusPending,
	}
	if p.Name == "" {
		p.Name = p.Title
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return p, nil
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

// carried holds the pipeline fields a record may bring back from an earlier run.
type carried struct {
	Status               Status    `json:"status"`
	SuggestedCategory    string    `json:"suggested_category"`
	SuggestedSubcategory string    `json:"suggested_subcategory"`
	SuggestedPartType    string    `json:"suggested_part_type"`
	Confidence           int       `json:"confidence"`
	Embedding            []float32 `json:"embedding"`
}

// Decode normalizes one JSON record and keeps its status, suggestion and embedding
// so that manual assignments and precomputed vectors survive a round trip.
func Decode(data []byte) (*Product, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode product: %w", err)
	}
	p, err := Normalize(raw)
	if err != nil {
		return nil, err
	}

	var c carried
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode product fields: %w", err)
	}
	if c.Status != "" {
		p.Status = c.Status
	}
	p.SuggestedCategory = c.SuggestedCategory
	p.SuggestedSubcategory = c.SuggestedSubcategory
	p.SuggestedPartType = c.SuggestedPartType
	p.Confidence = c.Confidence
	p.Embedding = c.Embedding
	return p, nil
}

// DecodeAll decodes a JSON array of records. The error names the failing index.
func DecodeAll(data []byte) ([]*Product, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("decode products: %w", err)
	}
	out := make([]*Product, 0, len(items))
	for i, it := range items {
		p, err := Decode(it)
		if err != nil {
			return nil, fmt.Errorf("product %d: %w", i, err)
		}
		out = append(out, p)
	}
	return out, nil
}
