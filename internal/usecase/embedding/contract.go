package embedding

import (
	"context"

	"github.com/kailas-cloud/partcat/internal/domain"
)

// Embedder is the single-text provider contract. Providers that also implement
// domain.BatchEmbedder are called once per chunk.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
