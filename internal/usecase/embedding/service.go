// Package embedding computes label embeddings for a taxonomy snapshot, so the
// vector classifier can run against trees that ship without vectors.
package embedding

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/partcat/internal/domain"
	"github.com/kailas-cloud/partcat/internal/domain/taxonomy"
)

// DefaultMaxAPIBatchSize is the largest number of labels sent in one provider call.
const DefaultMaxAPIBatchSize = 256

// Service embeds taxonomy labels.
type Service struct {
	inner     Embedder
	dim       int
	chunkSize int
	logger    *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithChunkSize overrides DefaultMaxAPIBatchSize.
func WithChunkSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.chunkSize = n
		}
	}
}

// WithDimensions overrides domain.EmbeddingDim.
func WithDimensions(dim int) Option {
	return func(s *Service) {
		if dim > 0 {
			s.dim = dim
		}
	}
}

// New creates a taxonomy embedding service.
func New(inner Embedder, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		inner:     inner,
		dim:       domain.EmbeddingDim,
		chunkSize: DefaultMaxAPIBatchSize,
		logger:    logger,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Label texts carry the ancestor path, so "Filters" under two categories embed differently.
func categoryLabel(c taxonomy.Category) string { return c.Name }

func subcategoryLabel(c taxonomy.Category, s taxonomy.Subcategory) string {
	return c.Name + " > " + s.Name
}

func partTypeLabel(c taxonomy.Category, s taxonomy.Subcategory, p taxonomy.PartType) string {
	return c.Name + " > " + s.Name + " > " + p.Name
}

// EmbedTaxonomy returns a copy of tax with every node embedded and normalized.
// The input snapshot is never modified. Nodes that already carry a valid vector keep it.
func (s *Service) EmbedTaxonomy(ctx context.Context, tax *taxonomy.Taxonomy) (*taxonomy.Taxonomy, error) {
	if tax.IsEmpty() {
		return nil, fmt.Errorf("embed taxonomy: %w", domain.ErrEmptyTaxonomy)
	}

	cats := tax.Categories()
	subs := tax.Subcategories()
	parts := tax.PartTypes()

	// Every node gets a slot; slots with a valid vector are not sent.
	texts := make([]string, 0, len(cats)+len(subs)+len(parts))
	vectors := make([][]float32, 0, cap(texts))
	for _, c := range cats {
		texts = append(texts, categoryLabel(c))
		vectors = append(vectors, s.keep(c.Embedding))
	}
	for _, sub := range subs {
		c, _ := tax.Category(sub.CategoryID)
		texts = append(texts, subcategoryLabel(c, sub))
		vectors = append(vectors, s.keep(sub.Embedding))
	}
	for _, p := range parts {
		c, sub, _, _ := tax.Path(p.ID)
		texts = append(texts, partTypeLabel(c, sub, p))
		vectors = append(vectors, s.keep(p.Embedding))
	}

	var missing []int
	for i, v := range vectors {
		if v == nil {
			missing = append(missing, i)
		}
	}

	start := time.Now()
	tokens := 0
	for offset := 0; offset < len(missing); offset += s.chunkSize {
		end := min(offset+s.chunkSize, len(missing))
		idx := missing[offset:end]

		chunk := make([]string, len(idx))
		for j, i := range idx {
			chunk[j] = texts[i]
		}
		res, err := s.embedChunk(ctx, chunk)
		if err != nil {
			s.logger.Error("Taxonomy embedding request failed",
				zap.String("taxonomy", tax.Name()),
				zap.Int("chunk_offset", offset),
				zap.Int("chunk_size", len(chunk)),
				zap.Error(err),
			)
			return nil, fmt.Errorf("embed taxonomy %q: %w", tax.Name(), err)
		}
		if len(res.Embeddings) != len(chunk) {
			return nil, fmt.Errorf("embed taxonomy %q: got %d vectors for %d labels: %w",
				tax.Name(), len(res.Embeddings), len(chunk), domain.ErrInvalidEmbedding)
		}
		for j, i := range idx {
			v := res.Embeddings[j]
			if !domain.ValidEmbedding(v, s.dim) {
				return nil, fmt.Errorf("embed taxonomy %q: label %q has %d dimensions: %w",
					tax.Name(), texts[i], len(v), domain.ErrInvalidEmbedding)
			}
			vectors[i] = domain.Normalize(v)
		}
		tokens += res.TotalTokens
	}

	out, err := rebuild(tax, vectors)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Taxonomy embedded",
		zap.String("taxonomy", tax.Name()),
		zap.Int("labels", len(texts)),
		zap.Int("embedded", len(missing)),
		zap.Int("total_tokens", tokens),
		zap.Duration("duration", time.Since(start)),
	)
	return out, nil
}

func (s *Service) keep(v []float32) []float32 {
	if domain.ValidEmbedding(v, s.dim) {
		return v
	}
	return nil
}

func (s *Service) embedChunk(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if be, ok := s.inner.(domain.BatchEmbedder); ok {
		res, err := be.BatchEmbed(ctx, texts)
		if err != nil {
			return domain.BatchEmbeddingResult{}, fmt.Errorf("batch embed: %w", err)
		}
		return res, nil
	}
	res, err := domain.BatchFallback(ctx, s.inner, texts)
	if err != nil {
		return domain.BatchEmbeddingResult{}, fmt.Errorf("batch fallback: %w", err)
	}
	return res, nil
}

// rebuild copies tax into a new snapshot with vectors laid out as
// categories, then subcategories, then part types.
func rebuild(tax *taxonomy.Taxonomy, vectors [][]float32) (*taxonomy.Taxonomy, error) {
	b := taxonomy.NewBuilder(tax.Name())
	i := 0
	for _, c := range tax.Categories() {
		c.Embedding = vectors[i]
		i++
		if _, err := b.AddCategory(c); err != nil {
			return nil, fmt.Errorf("rebuild taxonomy: %w", err)
		}
	}
	for _, sub := range tax.Subcategories() {
		sub.Embedding = vectors[i]
		i++
		if _, err := b.AddSubcategory(sub); err != nil {
			return nil, fmt.Errorf("rebuild taxonomy: %w", err)
		}
	}
	for _, p := range tax.PartTypes() {
		p.Embedding = vectors[i]
		i++
		if _, err := b.AddPartType(p); err != nil {
			return nil, fmt.Errorf("rebuild taxonomy: %w", err)
		}
	}
	return b.Build(), nil
}
