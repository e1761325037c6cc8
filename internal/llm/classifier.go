// Package llm classifies products in concurrent batches through a chat model and
// validates every answer against the keyword rules and the active taxonomy.
package llm

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/partcat/internal/cache"
	"github.com/kailas-cloud/partcat/internal/domain"
	"github.com/kailas-cloud/partcat/internal/domain/classification"
	"github.com/kailas-cloud/partcat/internal/domain/product"
	"github.com/kailas-cloud/partcat/internal/domain/taxonomy"
	"github.com/kailas-cloud/partcat/internal/keyword"
	"github.com/kailas-cloud/partcat/internal/metrics"
)

const (
	exhaustedFloor   = 35
	exhaustedPenalty = 15
	safetyFloor      = 40
	safetyPenalty    = 10
)

// Batch is the result of one LLM pass. Results hold exactly one entry per input
// product, in input order.
type Batch struct {
	Results []classification.Result
	Stats   classification.Stats
	Events  []classification.Event
}

// Classifier is the LLM batch classifier.
type Classifier struct {
	chat      domain.ChatCompleter
	matcher   *keyword.Matcher
	validator *Validator
	cfg       Config
	model     string

	hashes  cache.HashCache
	vectors cache.ClassificationCache
	dim     int

	sleep  func(ctx context.Context, d time.Duration) error
	jitter func(limit time.Duration) time.Duration
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithHashCache enables the content-hash pre-filter and its writes.
func WithHashCache(h cache.HashCache) Option {
	return func(c *Classifier) { c.hashes = h }
}

// WithClassificationCache makes LLM results seed the vector cache.
func WithClassificationCache(v cache.ClassificationCache, dim int) Option {
	return func(c *Classifier) {
		c.vectors = v
		c.dim = dim
	}
}

// WithModel sets the model label used in metrics.
func WithModel(model string) Option {
	return func(c *Classifier) { c.model = model }
}

// WithSleep replaces the retry wait, for tests.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Classifier) { c.sleep = fn }
}

// New creates an LLM classifier.
func New(chat domain.ChatCompleter, m *keyword.Matcher, cfg Config, opts ...Option) *Classifier {
	cfg.applyDefaults()
	c := &Classifier{
		chat:      chat,
		matcher:   m,
		validator: NewValidator(m, cfg.Validation),
		cfg:       cfg,
		model:     "unknown",
		dim:       domain.EmbeddingDim,
		sleep:     sleepCtx,
		jitter: func(limit time.Duration) time.Duration {
			if limit <= 0 {
				return 0
			}
			return time.Duration(rand.Int64N(int64(limit))) //nolint:gosec // jitter only
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type batchOutcome struct {
	results []classification.Result
	events  []classification.Event
	retries int
}

// Classify runs the content-hash pre-filter, then batches the remaining products
// into waves of concurrent requests. A fatal provider error aborts the run.
func (c *Classifier) Classify(
	ctx context.Context, tax *taxonomy.Taxonomy, products []*product.Product, progress classification.ProgressFunc,
) (Batch, error) {
	start := time.Now()
	if tax.IsEmpty() {
		return Batch{}, fmt.Errorf("llm classify: %w", domain.ErrEmptyTaxonomy)
	}

	out := Batch{Results: make([]classification.Result, len(products))}
	out.Stats.Total = len(products)

	pending := make([]int, 0, len(products))
	for i, p := range products {
		if r, ok := c.fromHashCache(ctx, p, &out); ok {
			out.Results[i] = r
			out.Stats.Trusted++
			continue
		}
		pending = append(pending, i)
	}

	batches := chunk(pending, c.cfg.BatchSize)
	out.Stats.Batches = len(batches)
	system := SystemPrompt(tax, c.matcher.Rules())
	processed := len(products) - len(pending)

	for w := 0; w < len(batches); w += c.cfg.Concurrency {
		wave := batches[w:min(w+c.cfg.Concurrency, len(batches))]
		outcomes := make([]batchOutcome, len(wave))

		g, gctx := errgroup.WithContext(ctx)
		for i, idx := range wave {
			batch := make([]*product.Product, len(idx))
			for j, pi := range idx {
				batch[j] = products[pi]
			}
			g.Go(func() error {
				o, err := c.runBatch(gctx, tax, system, batch)
				outcomes[i] = o
				return err
			})
		}
		if err := g.Wait(); err != nil {
			return out, fmt.Errorf("llm classify: %w", err)
		}

		for i, idx := range wave {
			for j, pi := range idx {
				out.Results[pi] = outcomes[i].results[j]
			}
			out.Events = append(out.Events, outcomes[i].events...)
			out.Stats.Retries += outcomes[i].retries
			processed += len(idx)
		}
		if progress != nil {
			progress(ctx, classification.Progress{
				Processed:    processed,
				Total:        len(products),
				BatchIndex:   w + len(wave),
				TotalBatches: len(batches),
				Message:      fmt.Sprintf("llm wave %d done", w/c.cfg.Concurrency+1),
			})
		}
	}

	for i, p := range products {
		r := out.Results[i]
		if !r.HasCategory() {
			r = c.safetyNet(tax, p, r)
			out.Results[i] = r
		}
		if r.Method == classification.MethodLLM {
			c.store(ctx, p, r, &out)
		}
		if r.Confidence < product.SuggestedThreshold {
			out.Stats.Uncertain++
		}
	}

	out.Stats.TimeMs = time.Since(start).Milliseconds()
	return out, nil
}

func (c *Classifier) fromHashCache(ctx context.Context, p *product.Product, out *Batch) (classification.Result, bool) {
	if c.hashes == nil {
		return classification.Result{}, false
	}
	r, ok, err := c.hashes.Get(ctx, p.ContentHash())
	if err != nil {
		metrics.ClassificationCacheTotal.WithLabelValues("hash", "error").Inc()
		out.Events = append(out.Events, warn("hash_cache_lookup_failed", p.ID, err.Error()))
		return classification.Result{}, false
	}
	if !ok || r.Confidence < c.cfg.CacheTrust || !r.HasCategory() {
		metrics.ClassificationCacheTotal.WithLabelValues("hash", "miss").Inc()
		return classification.Result{}, false
	}
	metrics.ClassificationCacheTotal.WithLabelValues("hash", "hit").Inc()
	r.ProductID = p.ID
	r.Method = classification.MethodCache
	r.CacheHit = true
	r.Reasons = append(append([]string(nil), r.Reasons...), "content hash cache hit")
	return r, true
}

// runBatch classifies one batch with retries. Only fatal errors and cancellation
// are returned; everything else degrades to keyword results.
func (c *Classifier) runBatch(
	ctx context.Context, tax *taxonomy.Taxonomy, system string, batch []*product.Product,
) (batchOutcome, error) {
	o := batchOutcome{results: make([]classification.Result, len(batch))}
	user := UserPrompt(batch, c.cfg.DescriptionLimit)

	var lastErr error
	for attempt := 0; attempt < c.cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			if err := c.sleep(ctx, c.backoff(attempt-1, lastErr)); err != nil {
				return o, err
			}
			o.retries++
			metrics.LLMRetriesTotal.WithLabelValues(retryReason(lastErr)).Inc()
		}

		items, err := c.request(ctx, system, user)
		if err == nil {
			aligned, mismatch := Align(items, len(batch))
			if mismatch > 0 {
				o.events = append(o.events, warn("length_mismatch", "",
					fmt.Sprintf("llm returned %d items for %d products", len(items), len(batch))))
			}
			for j, p := range batch {
				o.results[j] = c.validator.Validate(tax, p, aligned[j])
			}
			return o, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return o, ctxErr
		}
		if domain.IsFatal(err) {
			return o, err
		}
		if errors.Is(err, domain.ErrUnparsableResponse) {
			o.events = append(o.events, warn("unparsable_response", "", err.Error()))
			c.fallbackAll(tax, batch, &o, "llm response unparsable")
			return o, nil
		}
		lastErr = err
	}

	o.events = append(o.events, classification.Event{
		Level:   classification.LevelError,
		Code:    "retries_exhausted",
		Message: fmt.Sprintf("llm batch failed after %d attempts: %v", c.cfg.MaxAttempts, lastErr),
	})
	c.fallbackAll(tax, batch, &o, "llm retries exhausted")
	return o, nil
}

func (c *Classifier) request(ctx context.Context, system, user string) ([]Item, error) {
	rctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	start := time.Now()
	comp, err := c.chat.Complete(rctx, system, user)
	metrics.LLMRequestDuration.WithLabelValues(c.model).Observe(time.Since(start).Seconds())
	if err != nil {
		if errors.Is(rctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil && !domain.IsTimeout(err) {
			err = fmt.Errorf("%w: %w", err, context.DeadlineExceeded)
		}
		metrics.LLMRequestsTotal.WithLabelValues(c.model, requestStatus(err)).Inc()
		return nil, err //nolint:wrapcheck // classified by the caller
	}
	metrics.LLMTokensTotal.WithLabelValues(c.model, "prompt").Add(float64(comp.PromptTokens))
	metrics.LLMTokensTotal.WithLabelValues(c.model, "total").Add(float64(comp.TotalTokens))

	items, err := ParseResponse(comp.Content)
	if err != nil {
		metrics.LLMRequestsTotal.WithLabelValues(c.model, "unparsable").Inc()
		return nil, err
	}
	metrics.LLMRequestsTotal.WithLabelValues(c.model, "ok").Inc()
	return items, nil
}

// backoff returns the wait before the next attempt after a failed one.
func (c *Classifier) backoff(attempt int, err error) time.Duration {
	if domain.IsRateLimit(err) {
		return c.cfg.BaseBackoff<<attempt + c.jitter(c.cfg.BaseBackoff)
	}
	return c.cfg.RetryDelay
}

func (c *Classifier) fallbackAll(tax *taxonomy.Taxonomy, batch []*product.Product, o *batchOutcome, reason string) {
	for j, p := range batch {
		o.results[j] = c.keywordResult(tax, p, exhaustedFloor, exhaustedPenalty, reason)
	}
}

// safetyNet replaces an empty answer with the keyword matcher's suggestion.
func (c *Classifier) safetyNet(tax *taxonomy.Taxonomy, p *product.Product, r classification.Result) classification.Result {
	if r.Method == classification.MethodKeywordFallback || r.Method == classification.MethodNone {
		return r
	}
	return c.keywordResult(tax, p, safetyFloor, safetyPenalty, "safety net: llm left category empty")
}

func (c *Classifier) keywordResult(
	tax *taxonomy.Taxonomy, p *product.Product, floor, penalty int, reason string,
) classification.Result {
	kw := c.matcher.Suggest(tax, keyword.InputFrom(p))
	if kw.Category == "" {
		return classification.Empty(p.ID, reason+", no keyword match")
	}
	return classification.Result{
		ProductID:   p.ID,
		Category:    kw.Category,
		Subcategory: kw.Subcategory,
		PartType:    kw.PartType,
		Confidence:  classification.ClampConfidence(float64(max(floor, kw.Confidence-penalty))),
		Method:      classification.MethodKeywordFallback,
		Reasons:     append([]string{reason}, kw.MatchReasons...),
	}
}

// store writes an LLM-derived result to both caches. Failures are reported as events.
func (c *Classifier) store(ctx context.Context, p *product.Product, r classification.Result, out *Batch) {
	if c.hashes != nil {
		if err := c.hashes.Put(ctx, p.ContentHash(), r); err != nil {
			out.Events = append(out.Events, warn("hash_cache_write_failed", p.ID, err.Error()))
		}
	}
	if c.vectors == nil || !domain.ValidEmbedding(p.Embedding, c.dim) {
		return
	}
	err := c.vectors.Put(ctx, cache.Entry{
		Embedding:   p.Embedding,
		Category:    r.Category,
		Subcategory: r.Subcategory,
		PartType:    r.PartType,
		Confidence:  r.Confidence,
	})
	if err != nil {
		out.Events = append(out.Events, warn("cache_write_failed", p.ID, err.Error()))
	}
}

func warn(code, productID, msg string) classification.Event {
	return classification.Event{Level: classification.LevelWarn, Code: code, Message: msg, ProductID: productID}
}

func requestStatus(err error) string {
	switch {
	case domain.IsRateLimit(err):
		return "rate_limited"
	case domain.IsTimeout(err):
		return "timeout"
	case domain.IsFatal(err):
		return "fatal"
	default:
		return "error"
	}
}

func retryReason(err error) string {
	switch {
	case domain.IsRateLimit(err):
		return "rate_limit"
	case domain.IsTimeout(err):
		return "timeout"
	default:
		return "error"
	}
}

func chunk(idx []int, size int) [][]int {
	var out [][]int
	for len(idx) > 0 {
		n := min(size, len(idx))
		out = append(out, idx[:n:n])
		idx = idx[n:]
	}
	return out
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err() //nolint:wrapcheck // cancellation propagates as-is
	case <-t.C:
		return nil
	}
}
