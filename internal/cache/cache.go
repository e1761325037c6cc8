// Package cache defines the classification caches shared by the classifiers
// and their in-memory implementations.
package cache

import (
	"context"
	"time"

	"github.com/kailas-cloud/partcat/internal/domain/classification"
)

// Entry is a cached classification keyed by the product embedding.
type Entry struct {
	ID          string
	Embedding   []float32
	Category    string
	Subcategory string
	PartType    string
	Confidence  int
	UsageCount  int64
	LastUsedAt  time.Time
}

// ClassificationCache finds near-duplicate products by embedding.
// Writers are last-write-wins; entries are never evicted.
type ClassificationCache interface {
	// Nearest returns the closest entry and its similarity; ok is false when the cache is empty.
	Nearest(ctx context.Context, vec []float32) (entry Entry, similarity float64, ok bool, err error)
	Put(ctx context.Context, e Entry) error
	// Touch bumps the usage counter and last-used time.
	Touch(ctx context.Context, id string) error
}

// HashCache stores LLM results by product content hash.
type HashCache interface {
	Get(ctx context.Context, hash string) (classification.Result, bool, error)
	Put(ctx context.Context, hash string, r classification.Result) error
}
