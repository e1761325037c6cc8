// Package hashcache keeps LLM classification results in a key-value store,
// keyed by product content hash.
package hashcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kailas-cloud/partcat/internal/cache"
	"github.com/kailas-cloud/partcat/internal/db"
	"github.com/kailas-cloud/partcat/internal/domain/classification"
)

const defaultPrefix = "partcat:"

// Compile-time check: Store implements cache.HashCache.
var _ cache.HashCache = (*Store)(nil)

// store is the consumer interface for the hash cache (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// entry is the stored JSON document.
type entry struct {
	Category    string `json:"category"`
	Subcategory string `json:"subcategory"`
	PartType    string `json:"part_type"`
	Confidence  int    `json:"confidence"`
	Method      string `json:"method"`
	StoredAt    int64  `json:"stored_at"`
}

// Store implements cache.HashCache.
type Store struct {
	store  store
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

// New creates a hash cache. A zero ttl keeps entries forever.
func New(s store, prefix string, ttl time.Duration) *Store {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &Store{store: s, prefix: prefix, ttl: ttl, now: time.Now}
}

// Get returns the result stored for hash. A missing key is a miss, not an error.
func (s *Store) Get(ctx context.Context, hash string) (classification.Result, bool, error) {
	data, err := s.store.Get(ctx, s.key(hash))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return classification.Result{}, false, nil
		}
		return classification.Result{}, false, fmt.Errorf("get llm cache %s: %w", hash, err)
	}

	var e entry
	if err := json.Unmarshal(data, &e); err != nil {
		return classification.Result{}, false, fmt.Errorf("decode llm cache %s: %w", hash, err)
	}
	return classification.Result{
		Category:    e.Category,
		Subcategory: e.Subcategory,
		PartType:    e.PartType,
		Confidence:  e.Confidence,
		Method:      classification.Method(e.Method),
	}, true, nil
}

// Put stores r under hash; the product id is not part of the cached value.
func (s *Store) Put(ctx context.Context, hash string, r classification.Result) error {
	data, err := json.Marshal(entry{
		Category:    r.Category,
		Subcategory: r.Subcategory,
		PartType:    r.PartType,
		Confidence:  r.Confidence,
		Method:      string(r.Method),
		StoredAt:    s.now().Unix(),
	})
	if err != nil {
		return fmt.Errorf("encode llm cache %s: %w", hash, err)
	}

	if s.ttl > 0 {
		err = s.store.SetWithTTL(ctx, s.key(hash), data, s.ttl)
	} else {
		err = s.store.Set(ctx, s.key(hash), data)
	}
	if err != nil {
		return fmt.Errorf("set llm cache %s: %w", hash, err)
	}
	return nil
}

func (s *Store) key(hash string) string {
	return s.prefix + "llm_cache:" + hash
}
