package product

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Status is the review state of a product suggestion.
type Status string

const (
	StatusPending        Status = "pending"
	StatusSuggested      Status = "suggested"
	StatusNeedsReview    Status = "needs-review"
	StatusUnclassified   Status = "unclassified"
	StatusManualAssigned Status = "manual-assigned"
)

// SuggestedThreshold is the confidence at which a suggestion reads as confident.
const SuggestedThreshold = 70

// Product is a mutable record that round-trips through the whole pipeline.
// Classifiers only mutate the suggestion fields via Apply.
type Product struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description"`
	Brand       string `json:"brand,omitempty"`
	PartNumber  string `json:"part_number,omitempty"`
	Specs       string `json:"specs,omitempty"`

	SuggestedCategory    string   `json:"suggested_category"`
	SuggestedSubcategory string   `json:"suggested_subcategory"`
	SuggestedPartType    string   `json:"suggested_part_type"`
	Confidence           int      `json:"confidence"`
	Status               Status   `json:"status"`
	MatchReasons         []string `json:"match_reasons,omitempty"`

	Embedding []float32 `json:"embedding,omitempty"`
}

// Suggestion is the classifier output applied to a product.
type Suggestion struct {
	Category    string
	Subcategory string
	PartType    string
	Confidence  int
	Reasons     []string
}

// New creates a pending product with a generated id.
func New(name, description string) *Product {
	return &Product{
		ID:          uuid.NewString(),
		Name:        strings.TrimSpace(name),
		Description: strings.TrimSpace(description),
		Status:      StatusPending,
	}
}

// IsManual reports whether a user assignment protects the product.
func (p *Product) IsManual() bool { return p.Status == StatusManualAssigned }

// Apply writes a classifier suggestion in place. Status follows confidence.
func (p *Product) Apply(s Suggestion) {
	p.SuggestedCategory = s.Category
	p.SuggestedSubcategory = s.Subcategory
	p.SuggestedPartType = s.PartType
	p.Confidence = s.Confidence
	p.MatchReasons = s.Reasons
	p.Status = StatusFor(s.Confidence)
}

// AssignManual records a user decision.
func (p *Product) AssignManual(category, subcategory, partType string) {
	p.SuggestedCategory = category
	p.SuggestedSubcategory = subcategory
	p.SuggestedPartType = partType
	p.Confidence = 100
	p.Status = StatusManualAssigned
	p.MatchReasons = []string{"manually assigned"}
}

// StatusFor maps a confidence to a review status.
func StatusFor(confidence int) Status {
	switch {
	case confidence >= SuggestedThreshold:
		return StatusSuggested
	case confidence > 0:
		return StatusNeedsReview
	default:
		return StatusUnclassified
	}
}

// Text concatenates the descriptive fields for matchers.
func (p *Product) Text() string {
	parts := make([]string, 0, 5)
	for _, s := range []string{p.Name, p.Title, p.Description, p.Brand, p.Specs} {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

// EmbeddingText is the text sent to the embedding provider.
func (p *Product) EmbeddingText() string {
	parts := make([]string, 0, 3)
	for _, s := range []string{p.Name, p.Title, p.Description} {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ". ")
}

// ContentHash identifies a product by normalized name and description.
func (p *Product) ContentHash() string {
	norm := func(s string) string { return strings.Join(strings.Fields(strings.ToLower(s)), " ") }
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s", norm(p.Name), norm(p.Description))))
	return hex.EncodeToString(sum[:])
}
