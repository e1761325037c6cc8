// Package classcache stores classification cache entries as Valkey/Redis hashes
// behind an FT index with a cosine vector field.
package classcache

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kailas-cloud/partcat/internal/cache"
	"github.com/kailas-cloud/partcat/internal/db"
	"github.com/kailas-cloud/partcat/internal/domain"
)

const (
	defaultPrefix = "partcat:"
	vectorField   = "vector"
)

// Hash field names.
const (
	fieldCategory    = "category"
	fieldSubcategory = "subcategory"
	fieldPartType    = "part_type"
	fieldConfidence  = "confidence"
	fieldUsageCount  = "usage_count"
	fieldLastUsedAt  = "last_used_at"
)

var returnFields = []string{
	fieldCategory, fieldSubcategory, fieldPartType,
	fieldConfidence, fieldUsageCount, fieldLastUsedAt,
}

// Compile-time check: Store implements cache.ClassificationCache.
var _ cache.ClassificationCache = (*Store)(nil)

// store is the consumer interface for the classification cache (ISP).
//
//nolint:interfacebloat // hash writes + index lifecycle + KNN
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HIncrBy(ctx context.Context, key, field string, val int64) (int64, error)
	Exists(ctx context.Context, key string) (bool, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
}

// Store implements cache.ClassificationCache.
type Store struct {
	store  store
	prefix string
	dim    int
	now    func() time.Time
}

// New creates a classification cache over s. prefix defaults to "partcat:".
func New(s store, prefix string, dim int) *Store {
	if prefix == "" {
		prefix = defaultPrefix
	}
	if dim <= 0 {
		dim = domain.EmbeddingDim
	}
	return &Store{store: s, prefix: prefix, dim: dim, now: time.Now}
}

// EnsureIndex creates the FT index when it does not exist yet.
func (s *Store) EnsureIndex(ctx context.Context) error {
	exists, err := s.store.IndexExists(ctx, s.indexName())
	if err != nil {
		return fmt.Errorf("check cache index: %w", err)
	}
	if exists {
		return nil
	}

	def, err := db.NewIndex(s.indexName()).
		Prefix(s.entryPrefix()).
		Tag(fieldCategory).
		Numeric(fieldConfidence).
		Vector(vectorField, s.dim, db.VectorHNSW, db.DistanceCosine).
		Build()
	if err != nil {
		return fmt.Errorf("build cache index: %w", err)
	}

	if err := s.store.CreateIndex(ctx, def); err != nil && !errors.Is(err, db.ErrIndexExists) {
		return fmt.Errorf("create cache index: %w", err)
	}
	return nil
}

// Nearest runs a KNN 1 query. Similarity is 1 - cosine distance.
func (s *Store) Nearest(ctx context.Context, vec []float32) (cache.Entry, float64, bool, error) {
	if len(vec) != s.dim {
		return cache.Entry{}, 0, false, fmt.Errorf("query vector has %d dims, want %d: %w",
			len(vec), s.dim, domain.ErrInvalidEmbedding)
	}

	res, err := s.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    s.indexName(),
		VectorField:  vectorField,
		Vector:       vec,
		K:            1,
		ReturnFields: returnFields,
	})
	if err != nil {
		return cache.Entry{}, 0, false, fmt.Errorf("search cache: %w", err)
	}
	if len(res.Entries) == 0 {
		return cache.Entry{}, 0, false, nil
	}

	hit := res.Entries[0]
	return s.entryFromHash(hit.Key, hit.Fields), hit.Score, true, nil
}

// Put writes an entry; an existing id is overwritten.
func (s *Store) Put(ctx context.Context, e cache.Entry) error {
	if !domain.ValidEmbedding(e.Embedding, s.dim) {
		return fmt.Errorf("cache entry %q: %w", e.ID, domain.ErrInvalidEmbedding)
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.LastUsedAt.IsZero() {
		e.LastUsedAt = s.now()
	}

	fields := map[string]string{
		vectorField:      encodeVector(e.Embedding),
		fieldCategory:    e.Category,
		fieldSubcategory: e.Subcategory,
		fieldPartType:    e.PartType,
		fieldConfidence:  strconv.Itoa(e.Confidence),
		fieldUsageCount:  strconv.FormatInt(e.UsageCount, 10),
		fieldLastUsedAt:  strconv.FormatInt(e.LastUsedAt.UnixMilli(), 10),
	}
	if err := s.store.HSet(ctx, s.entryKey(e.ID), fields); err != nil {
		return fmt.Errorf("hset cache entry %s: %w", e.ID, err)
	}
	return nil
}

// Touch bumps usage_count and sets last_used_at.
func (s *Store) Touch(ctx context.Context, id string) error {
	key := s.entryKey(id)
	exists, err := s.store.Exists(ctx, key)
	if err != nil {
		return fmt.Errorf("check cache entry %s: %w", id, err)
	}
	if !exists {
		return domain.ErrNotFound
	}

	if _, err := s.store.HIncrBy(ctx, key, fieldUsageCount, 1); err != nil {
		return fmt.Errorf("bump usage %s: %w", id, err)
	}
	ts := strconv.FormatInt(s.now().UnixMilli(), 10)
	if err := s.store.HSet(ctx, key, map[string]string{fieldLastUsedAt: ts}); err != nil {
		return fmt.Errorf("set last used %s: %w", id, err)
	}
	return nil
}

func (s *Store) entryFromHash(key string, m map[string]string) cache.Entry {
	e := cache.Entry{
		ID:          strings.TrimPrefix(key, s.entryPrefix()),
		Category:    m[fieldCategory],
		Subcategory: m[fieldSubcategory],
		PartType:    m[fieldPartType],
	}
	if v, err := strconv.Atoi(m[fieldConfidence]); err == nil {
		e.Confidence = v
	}
	if v, err := strconv.ParseInt(m[fieldUsageCount], 10, 64); err == nil {
		e.UsageCount = v
	}
	if v, err := strconv.ParseInt(m[fieldLastUsedAt], 10, 64); err == nil {
		e.LastUsedAt = time.UnixMilli(v)
	}
	return e
}

func (s *Store) indexName() string {
	return strings.TrimSuffix(s.prefix, ":") + "_cache_idx"
}

func (s *Store) entryPrefix() string {
	return s.prefix + "cache:"
}

func (s *Store) entryKey(id string) string {
	return s.entryPrefix() + id
}

func encodeVector(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}
