package partcat

import (
	"github.com/kailas-cloud/partcat/internal/domain/classification"
	"github.com/kailas-cloud/partcat/internal/domain/product"
	"github.com/kailas-cloud/partcat/internal/domain/taxonomy"
	"github.com/kailas-cloud/partcat/internal/keyword"
	categorizeuc "github.com/kailas-cloud/partcat/internal/usecase/categorize"
)

// Product is a catalog record; classification fills its Suggested* fields in place.
type Product = product.Product

// Status is the review state of a product.
type Status = product.Status

// Product statuses.
const (
	StatusPending        = product.StatusPending
	StatusSuggested      = product.StatusSuggested
	StatusNeedsReview    = product.StatusNeedsReview
	StatusUnclassified   = product.StatusUnclassified
	StatusManualAssigned = product.StatusManualAssigned
)

// SuggestedThreshold is the confidence at which a product counts as suggested
// rather than needing review.
const SuggestedThreshold = product.SuggestedThreshold

// Mode selects the classification path.
type Mode = categorizeuc.Mode

// Classification modes.
const (
	ModeAuto    = categorizeuc.ModeAuto
	ModeVector  = categorizeuc.ModeVector
	ModeLLM     = categorizeuc.ModeLLM
	ModeKeyword = categorizeuc.ModeKeyword
)

// Report is the outcome of one Classify call.
type Report = categorizeuc.Report

// Result is the classification of one product.
type Result = classification.Result

// Progress is reported after each embedding chunk or LLM wave.
type Progress = classification.Progress

// ProgressFunc receives progress synchronously.
type ProgressFunc = classification.ProgressFunc

// SuggestInput is the text of a single product for Suggest.
type SuggestInput = keyword.Input

// Suggestion is a keyword matcher answer.
type Suggestion = keyword.Suggestion

// TaxonomySummary describes a registered taxonomy.
type TaxonomySummary = taxonomy.Summary

// TaxonomyNode is a category with its subcategories and part types, in order.
type TaxonomyNode = taxonomy.NestedCategory

// NewProduct normalizes a loosely keyed record into a pending product.
func NewProduct(raw map[string]any) (*Product, error) {
	return product.Normalize(raw)
}

// DecodeProducts decodes a JSON array of records. Status, suggestions and
// embeddings carried from an earlier run are kept.
func DecodeProducts(data []byte) ([]*Product, error) {
	return product.DecodeAll(data)
}
