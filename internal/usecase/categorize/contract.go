package categorize

import (
	"context"

	"github.com/kailas-cloud/partcat/internal/domain"
	"github.com/kailas-cloud/partcat/internal/domain/classification"
	"github.com/kailas-cloud/partcat/internal/domain/product"
	"github.com/kailas-cloud/partcat/internal/domain/taxonomy"
	"github.com/kailas-cloud/partcat/internal/keyword"
	"github.com/kailas-cloud/partcat/internal/llm"
	"github.com/kailas-cloud/partcat/internal/vector"
)

// Embedder vectorizes product text.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// VectorClassifier classifies products that carry embeddings.
type VectorClassifier interface {
	Classify(ctx context.Context, tax *taxonomy.Taxonomy, products []*product.Product) (vector.Output, error)
}

// LLMClassifier classifies products in LLM batches.
type LLMClassifier interface {
	Classify(
		ctx context.Context, tax *taxonomy.Taxonomy, products []*product.Product, progress classification.ProgressFunc,
	) (llm.Batch, error)
}

// KeywordMatcher is the rule-based last resort.
type KeywordMatcher interface {
	Suggest(tax *taxonomy.Taxonomy, in keyword.Input) keyword.Suggestion
}
