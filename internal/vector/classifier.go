// Package vector classifies products by hierarchical nearest-neighbour search
// over taxonomy node embeddings.
package vector

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/kailas-cloud/partcat/internal/cache"
	"github.com/kailas-cloud/partcat/internal/domain"
	"github.com/kailas-cloud/partcat/internal/domain/classification"
	"github.com/kailas-cloud/partcat/internal/domain/product"
	"github.com/kailas-cloud/partcat/internal/domain/taxonomy"
)

// Config holds the similarity thresholds and confidence weights.
type Config struct {
	Dimensions int
	// CacheThreshold is the similarity at which a cached entry is reused.
	CacheThreshold float64
	// SubcategoryBroaden widens subcategory search tree-wide below this similarity.
	SubcategoryBroaden float64
	// PartTypeCategoryWiden widens part-type search to the whole category.
	PartTypeCategoryWiden float64
	// PartTypeTreeWiden widens part-type search to the whole tree.
	PartTypeTreeWiden float64

	CategoryWeight    float64
	SubcategoryWeight float64
	PartTypeWeight    float64

	// Raw scores at or above BoostFloor map linearly onto [70,100] over BoostSpan points.
	BoostFloor float64
	BoostSpan  float64
}

// DefaultConfig returns the production thresholds.
func DefaultConfig() Config {
	return Config{
		Dimensions:            domain.EmbeddingDim,
		CacheThreshold:        0.85,
		SubcategoryBroaden:    0.3,
		PartTypeCategoryWiden: 0.35,
		PartTypeTreeWiden:     0.3,
		CategoryWeight:        0.2,
		SubcategoryWeight:     0.3,
		PartTypeWeight:        0.5,
		BoostFloor:            30,
		BoostSpan:             80,
	}
}

// Output is the result of one classification pass.
// Results keep input order and omit skipped products.
type Output struct {
	Results []classification.Result
	// Index[k] is the input position of Results[k]; product IDs need not be unique.
	Index   []int
	Skipped []string
	Stats   classification.Stats
	Events  []classification.Event
}

// Classifier is the vector similarity classifier. It reads the classification
// cache but never writes new entries.
type Classifier struct {
	cfg   Config
	cache cache.ClassificationCache
}

// New creates a classifier. A nil cache disables cache lookups.
func New(cfg Config, c cache.ClassificationCache) *Classifier {
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = domain.EmbeddingDim
	}
	return &Classifier{cfg: cfg, cache: c}
}

// Classify assigns a category path to every product carrying a valid embedding.
func (c *Classifier) Classify(
	ctx context.Context, tax *taxonomy.Taxonomy, products []*product.Product,
) (Output, error) {
	start := time.Now()
	if tax.IsEmpty() {
		return Output{}, fmt.Errorf("vector classify: %w", domain.ErrEmptyTaxonomy)
	}
	if !tax.HasEmbeddings() {
		return Output{}, fmt.Errorf("vector classify: %w", domain.ErrNoTaxonomyEmbeddings)
	}

	out := Output{
		Results: make([]classification.Result, 0, len(products)),
		Index:   make([]int, 0, len(products)),
	}
	out.Stats.Total = len(products)

	for i, p := range products {
		if err := ctx.Err(); err != nil {
			return out, fmt.Errorf("vector classify: %w", err)
		}
		if !domain.ValidEmbedding(p.Embedding, c.cfg.Dimensions) {
			out.Skipped = append(out.Skipped, p.ID)
			out.Stats.Skipped++
			out.Events = append(out.Events, classification.Event{
				Level:     classification.LevelWarn,
				Code:      "embedding_missing",
				Message:   fmt.Sprintf("product has no valid %d-dim embedding, skipped", c.cfg.Dimensions),
				ProductID: p.ID,
			})
			continue
		}

		if r, ok := c.fromCache(ctx, p, &out); ok {
			out.Stats.Trusted++
			out.Results = append(out.Results, r)
			out.Index = append(out.Index, i)
			continue
		}

		r := c.classifyOne(tax, p)
		if r.Confidence < product.SuggestedThreshold {
			out.Stats.Uncertain++
		}
		out.Results = append(out.Results, r)
		out.Index = append(out.Index, i)
	}

	out.Stats.TimeMs = time.Since(start).Milliseconds()
	return out, nil
}

// fromCache reuses a near-duplicate's classification verbatim. Cache failures are
// reported as events and treated as a miss.
func (c *Classifier) fromCache(ctx context.Context, p *product.Product, out *Output) (classification.Result, bool) {
	if c.cache == nil {
		return classification.Result{}, false
	}
	entry, sim, ok, err := c.cache.Nearest(ctx, p.Embedding)
	if err != nil {
		out.Events = append(out.Events, cacheEvent("cache_lookup_failed", p.ID, err))
		return classification.Result{}, false
	}
	if !ok || sim < c.cfg.CacheThreshold {
		return classification.Result{}, false
	}
	if err := c.cache.Touch(ctx, entry.ID); err != nil {
		out.Events = append(out.Events, cacheEvent("cache_touch_failed", p.ID, err))
	}
	return classification.Result{
		ProductID:   p.ID,
		Category:    entry.Category,
		Subcategory: entry.Subcategory,
		PartType:    entry.PartType,
		Confidence:  classification.ClampConfidence(float64(entry.Confidence)),
		Method:      classification.MethodCache,
		CacheHit:    true,
		Reasons:     []string{fmt.Sprintf("cache hit (similarity %.2f)", sim)},
	}, true
}

func cacheEvent(code, productID string, err error) classification.Event {
	return classification.Event{
		Level:     classification.LevelWarn,
		Code:      code,
		Message:   err.Error(),
		ProductID: productID,
	}
}

func (c *Classifier) classifyOne(tax *taxonomy.Taxonomy, p *product.Product) classification.Result {
	v := p.Embedding

	cat, _ := bestCategory(v, tax.Categories())

	sub, subSim, subOK := bestSubcategory(v, tax.SubcategoriesOf(cat.ID))
	if !subOK || subSim < c.cfg.SubcategoryBroaden {
		if g, gSim, ok := bestSubcategory(v, tax.Subcategories()); ok && (!subOK || gSim > subSim) {
			sub, subOK = g, true
		}
	}
	if subOK {
		if owner, ok := tax.Category(sub.CategoryID); ok {
			cat = owner
		}
	}

	var (
		part   taxonomy.PartType
		partOK bool
	)
	if subOK {
		var partSim float64
		part, partSim, partOK = bestPartType(v, tax.PartTypesOf(sub.ID))
		if !partOK || partSim < c.cfg.PartTypeCategoryWiden {
			if w, wSim, ok := bestPartType(v, tax.PartTypesInCategory(cat.ID, sub.ID)); ok && (!partOK || wSim > partSim) {
				part, partSim, partOK = w, wSim, true
			}
		}
		if !partOK || partSim < c.cfg.PartTypeTreeWiden {
			if w, wSim, ok := bestPartType(v, tax.PartTypes()); ok && (!partOK || wSim > partSim) {
				part, partOK = w, true
			}
		}
	}

	r := classification.Result{ProductID: p.ID, Method: classification.MethodVector, Category: cat.Name}
	var catSim, finalSubSim, finalPartSim float64
	if partOK {
		fc, fs, fp, _ := tax.Path(part.ID)
		cat, sub = fc, fs
		r.Category, r.Subcategory, r.PartType = fc.Name, fs.Name, fp.Name
		finalPartSim = domain.Similarity(v, fp.Embedding)
	} else if subOK {
		r.Subcategory = sub.Name
	}
	catSim = domain.Similarity(v, cat.Embedding)
	if subOK {
		finalSubSim = domain.Similarity(v, sub.Embedding)
	}

	r.Confidence = c.Confidence(catSim, finalSubSim, finalPartSim)
	r.Reasons = []string{fmt.Sprintf(
		"vector similarity: category %.2f, subcategory %.2f, part type %.2f", catSim, finalSubSim, finalPartSim)}
	return r
}

// Confidence converts node similarities into the 0-100 user-facing score.
func (c *Classifier) Confidence(catSim, subSim, partSim float64) int {
	raw := 100 * (c.cfg.CategoryWeight*catSim + c.cfg.SubcategoryWeight*subSim + c.cfg.PartTypeWeight*partSim)
	if raw >= c.cfg.BoostFloor && c.cfg.BoostSpan > 0 {
		raw = 70 + (raw-c.cfg.BoostFloor)/c.cfg.BoostSpan*30
	}
	return classification.ClampConfidence(math.Min(raw, 100))
}

// The best* helpers pick the most similar node. Nodes without an embedding score 0
// and ties keep the first node.
func bestCategory(v []float32, nodes []taxonomy.Category) (taxonomy.Category, float64) {
	best, bestSim := taxonomy.Category{}, -1.0
	for _, n := range nodes {
		if s := domain.Similarity(v, n.Embedding); s > bestSim {
			best, bestSim = n, s
		}
	}
	return best, math.Max(bestSim, 0)
}

func bestSubcategory(v []float32, nodes []taxonomy.Subcategory) (taxonomy.Subcategory, float64, bool) {
	best, bestSim := taxonomy.Subcategory{}, -1.0
	for _, n := range nodes {
		if s := domain.Similarity(v, n.Embedding); s > bestSim {
			best, bestSim = n, s
		}
	}
	return best, math.Max(bestSim, 0), bestSim >= 0
}

func bestPartType(v []float32, nodes []taxonomy.PartType) (taxonomy.PartType, float64, bool) {
	best, bestSim := taxonomy.PartType{}, -1.0
	for _, n := range nodes {
		if s := domain.Similarity(v, n.Embedding); s > bestSim {
			best, bestSim = n, s
		}
	}
	return best, math.Max(bestSim, 0), bestSim >= 0
}
