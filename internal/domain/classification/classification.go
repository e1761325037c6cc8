package classification

import (
	"context"
	"math"

	"github.com/kailas-cloud/partcat/internal/domain/product"
)

// Method names the path that produced a result.
type Method string

const (
	MethodCache           Method = "cache"
	MethodVector          Method = "vector"
	MethodLLM             Method = "llm"
	MethodKeyword         Method = "keyword"
	MethodKeywordFallback Method = "keyword-fallback"
	MethodNone            Method = "none"
	// MethodManual marks a protected user assignment reported back unchanged.
	MethodManual Method = "manual"
)

// Result is one product's classification.
type Result struct {
	ProductID        string   `json:"product_id"`
	Category         string   `json:"category"`
	Subcategory      string   `json:"subcategory"`
	PartType         string   `json:"part_type"`
	Confidence       int      `json:"confidence"`
	Method           Method   `json:"method"`
	CacheHit         bool     `json:"cache_hit"`
	Reasons          []string `json:"reasons,omitempty"`
	ValidationReason string   `json:"validation_reason,omitempty"`
}

// Empty is the zero-confidence terminal result.
func Empty(productID, reason string) Result {
	r := Result{ProductID: productID, Method: MethodNone}
	if reason != "" {
		r.Reasons = []string{reason}
	}
	return r
}

// HasCategory reports whether a non-empty category was assigned.
func (r Result) HasCategory() bool { return r.Category != "" }

// Suggestion converts the result for product.Apply.
func (r Result) Suggestion() product.Suggestion {
	reasons := r.Reasons
	if r.ValidationReason != "" {
		reasons = append(append([]string(nil), reasons...), r.ValidationReason)
	}
	return product.Suggestion{
		Category:    r.Category,
		Subcategory: r.Subcategory,
		PartType:    r.PartType,
		Confidence:  ClampConfidence(float64(r.Confidence)),
		Reasons:     reasons,
	}
}

// ClampConfidence rounds to an integer in [0,100].
func ClampConfidence(v float64) int {
	if math.IsNaN(v) || v <= 0 {
		return 0
	}
	if v >= 100 {
		return 100
	}
	return int(math.Round(v))
}

// Stats is the run diagnostic summary.
type Stats struct {
	Total     int   `json:"total"`
	Trusted   int   `json:"trusted"`
	Uncertain int   `json:"uncertain"`
	Skipped   int   `json:"skipped"`
	Batches   int   `json:"batches"`
	Retries   int   `json:"retries"`
	TimeMs    int64 `json:"time_ms"`
}

// Add merges another component's counters (time is not summed).
func (s *Stats) Add(o Stats) {
	s.Trusted += o.Trusted
	s.Skipped += o.Skipped
	s.Batches += o.Batches
	s.Retries += o.Retries
}

// Level is a diagnostic event severity.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Event is a structured diagnostic returned as data.
type Event struct {
	Level     Level  `json:"level"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	ProductID string `json:"product_id,omitempty"`
}

// Progress is reported after each wave or chunk.
type Progress struct {
	Processed    int
	Total        int
	BatchIndex   int
	TotalBatches int
	Message      string
}

// ProgressFunc is invoked synchronously between waves; the run waits for it to return.
type ProgressFunc func(ctx context.Context, p Progress)
