package product

import (
	"strings"
	"testing"
)

func TestNormalize_Aliases(t *testing.T) {
	p, err := Normalize(map[string]any{
		"Product Name":   "Ceramic Brake Pads",
		"Title":          "Front pad set",
		"desc":           "Low dust ceramic compound",
		"Manufacturer":   "Bosch",
		"SKU":            "BC905",
		"specifications": "Front axle",
		"unknown":        "ignored",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Name != "Ceramic Brake Pads" || p.Title != "Front pad set" || p.Description != "Low dust ceramic compound" {
		t.Errorf("text fields = %q / %q / %q", p.Name, p.Title, p.Description)
	}
	if p.Brand != "Bosch" || p.PartNumber != "BC905" || p.Specs != "Front axle" {
		t.Errorf("brand/part/specs = %q / %q / %q", p.Brand, p.PartNumber, p.Specs)
	}
	if p.ID == "" {
		t.Error("expected generated id")
	}
	if p.Status != StatusPending || p.SuggestedCategory != "" || p.Confidence != 0 {
		t.Errorf("new product must be pending with empty suggestion, got %+v", p)
	}
}

func TestNormalize_TitleOnlyAndKeepsID(t *testing.T) {
	p, err := Normalize(map[string]any{"id": "p-1", "title": "Oil Filter", "part_number": 51515})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ID != "p-1" {
		t.Errorf("ID = %q, want p-1", p.ID)
	}
	if p.Name != "Oil Filter" {
		t.Errorf("Name = %q, want title fallback", p.Name)
	}
	if p.PartNumber != "51515" {
		t.Errorf("PartNumber = %q", p.PartNumber)
	}
}

func TestNormalize_Empty(t *testing.T) {
	if _, err := Normalize(map[string]any{"brand": "3M"}); err == nil {
		t.Fatal("expected error for record without text")
	}
}

func TestApply_StatusFromConfidence(t *testing.T) {
	tests := []struct {
		confidence int
		want       Status
	}{
		{90, StatusSuggested},
		{70, StatusSuggested},
		{69, StatusNeedsReview},
		{1, StatusNeedsReview},
		{0, StatusUnclassified},
	}
	for _, tc := range tests {
		p := New("x", "")
		p.Apply(Suggestion{Category: "A", Subcategory: "B", PartType: "C", Confidence: tc.confidence})
		if p.Status != tc.want {
			t.Errorf("confidence %d: status = %q, want %q", tc.confidence, p.Status, tc.want)
		}
		if p.SuggestedCategory != "A" || p.SuggestedPartType != "C" {
			t.Errorf("suggestion not applied: %+v", p)
		}
	}
}

func TestAssignManual(t *testing.T) {
	p := New("Wiper", "")
	p.AssignManual("Body & Exterior", "Mirrors & Glass", "Windshield Wiper Blade")
	if !p.IsManual() || p.Confidence != 100 {
		t.Errorf("got status %q confidence %d", p.Status, p.Confidence)
	}
}

func TestContentHash(t *testing.T) {
	a := &Product{Name: "Spark  Plug", Description: "Iridium"}
	b := &Product{Name: "spark plug", Description: " iridium "}
	c := &Product{Name: "spark plug", Description: "copper"}

	if a.ContentHash() != b.ContentHash() {
		t.Error("hash must ignore case and whitespace")
	}
	if a.ContentHash() == c.ContentHash() {
		t.Error("different descriptions must hash differently")
	}
	if len(a.ContentHash()) != 64 {
		t.Errorf("hash length = %d, want 64", len(a.ContentHash()))
	}
}

func TestText(t *testing.T) {
	p := &Product{Name: "3M Sandpaper P320", Description: "Body work sanding disc", Brand: "3M"}
	if got := p.Text(); got != "3M Sandpaper P320 Body work sanding disc 3M" {
		t.Errorf("Text() = %q", got)
	}
	if got := p.EmbeddingText(); got != "3M Sandpaper P320. Body work sanding disc" {
		t.Errorf("EmbeddingText() = %q", got)
	}
}

func TestDecode_KeepsManualAssignmentAndEmbedding(t *testing.T) {
	p, err := Decode([]byte(`{
		"productId": 42, "name": "Brake Pad Set", "status": "manual-assigned",
		"suggested_category": "Brake System", "confidence": 100, "embedding": [0.5, 0.5]
	}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ID != "42" || !p.IsManual() || p.SuggestedCategory != "Brake System" || p.Confidence != 100 {
		t.Errorf("unexpected product: %+v", p)
	}
	if len(p.Embedding) != 2 {
		t.Errorf("embedding = %v", p.Embedding)
	}
}

func TestDecodeAll_NamesFailingIndex(t *testing.T) {
	_, err := DecodeAll([]byte(`[{"name": "Oil Filter"}, {"brand": "3M"}]`))
	if err == nil || !strings.HasPrefix(err.Error(), "product 1:") {
		t.Fatalf("expected error for product 1, got %v", err)
	}

	ps, err := DecodeAll([]byte(`[{"name": "Oil Filter"}, {"title": "Air Filter"}]`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ps) != 2 || ps[1].Name != "Air Filter" || ps[0].Status != StatusPending {
		t.Errorf("unexpected products: %+v", ps)
	}
}
