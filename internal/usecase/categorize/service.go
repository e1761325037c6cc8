// Package categorize runs the per-product fallback chain: cache, vector
// similarity, LLM batches and keyword rules, guaranteeing one result per product.
package categorize

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/partcat/internal/domain"
	"github.com/kailas-cloud/partcat/internal/domain/classification"
	"github.com/kailas-cloud/partcat/internal/domain/product"
	"github.com/kailas-cloud/partcat/internal/domain/taxonomy"
	"github.com/kailas-cloud/partcat/internal/keyword"
	"github.com/kailas-cloud/partcat/internal/logger"
	"github.com/kailas-cloud/partcat/internal/metrics"
)

// Mode selects the classification path.
type Mode string

const (
	ModeAuto    Mode = "auto"
	ModeVector  Mode = "vector"
	ModeLLM     Mode = "llm"
	ModeKeyword Mode = "keyword"
)

// ParseMode validates a mode name. Empty means auto.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case "":
		return ModeAuto, nil
	case ModeAuto, ModeVector, ModeLLM, ModeKeyword:
		return m, nil
	default:
		return "", fmt.Errorf("unknown mode %q: %w", s, domain.ErrInvalidRequest)
	}
}

// Config holds the orchestration thresholds.
type Config struct {
	// EmbedChunkSize is the number of concurrent embedding calls per chunk.
	EmbedChunkSize int
	// EscalateBelow sends vector results under this confidence to the LLM (or keywords).
	EscalateBelow int
	Dimensions    int
}

// DefaultConfig returns the production settings.
func DefaultConfig() Config {
	return Config{EmbedChunkSize: 20, EscalateBelow: 40, Dimensions: domain.EmbeddingDim}
}

// Request is one classification run. Taxonomy is the snapshot used for the whole run.
type Request struct {
	Products []*product.Product
	Taxonomy *taxonomy.Taxonomy
	Mode     Mode
	// Force re-classifies manually assigned products.
	Force    bool
	Progress classification.ProgressFunc
}

// Report carries one result per input product, in input order.
type Report struct {
	Mode    Mode                    `json:"mode"`
	Results []classification.Result `json:"results"`
	Stats   classification.Stats    `json:"stats"`
	Events  []classification.Event  `json:"events,omitempty"`
}

// Service orchestrates the classifiers.
type Service struct {
	keyword KeywordMatcher
	vector  VectorClassifier
	llm     LLMClassifier
	embed   Embedder
	cfg     Config
}

// Option configures optional classifiers.
type Option func(*Service)

// WithVector enables the vector path.
func WithVector(v VectorClassifier) Option { return func(s *Service) { s.vector = v } }

// WithLLM enables the LLM path.
func WithLLM(l LLMClassifier) Option { return func(s *Service) { s.llm = l } }

// WithEmbedder enables embedding products that arrive without one.
func WithEmbedder(e Embedder) Option { return func(s *Service) { s.embed = e } }

// New creates a Service. The keyword matcher is mandatory; it is the last resort of every path.
func New(kw KeywordMatcher, cfg Config, opts ...Option) *Service {
	def := DefaultConfig()
	if cfg.EmbedChunkSize <= 0 {
		cfg.EmbedChunkSize = def.EmbedChunkSize
	}
	if cfg.EscalateBelow < 0 {
		cfg.EscalateBelow = def.EscalateBelow
	}
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = def.Dimensions
	}
	s := &Service{keyword: kw, cfg: cfg}
	for _, o := range opts {
		o(s)
	}
	return s
}

// HasLLM reports whether an LLM classifier is configured.
func (s *Service) HasLLM() bool { return s.llm != nil }

// run is the per-call state.
type run struct {
	req    Request
	report Report
	log    *zap.Logger
}

func (r *run) product(i int) *product.Product { return r.req.Products[i] }

func (r *run) pick(idx []int) []*product.Product {
	out := make([]*product.Product, len(idx))
	for k, i := range idx {
		out[k] = r.req.Products[i]
	}
	return out
}

func (r *run) merge(st classification.Stats, events []classification.Event) {
	r.report.Stats.Add(st)
	r.report.Events = append(r.report.Events, events...)
}

// Run classifies every product of the request and applies the results in place.
// Only fatal errors are returned. On error the suggestion fields are left untouched,
// though embeddings fetched before the failure stay attached.
func (s *Service) Run(ctx context.Context, req Request) (Report, error) {
	start := time.Now()
	mode, err := ParseMode(string(req.Mode))
	if err != nil {
		return Report{}, err
	}
	if req.Taxonomy.IsEmpty() {
		return Report{}, fmt.Errorf("categorize: %w", domain.ErrEmptyTaxonomy)
	}
	ctx = logger.WithFields(ctx,
		zap.String("taxonomy", req.Taxonomy.Name()),
		zap.String("mode", string(mode)),
	)

	r := &run{
		req: req,
		report: Report{
			Mode:    mode,
			Results: make([]classification.Result, len(req.Products)),
		},
		log: logger.FromContext(ctx),
	}

	targets := make([]int, 0, len(req.Products))
	for i, p := range req.Products {
		if p.IsManual() && !req.Force {
			r.report.Results[i] = manualResult(p)
			continue
		}
		targets = append(targets, i)
	}
	if manual := len(req.Products) - len(targets); manual > 0 {
		r.report.Events = append(r.report.Events, classification.Event{
			Level:   classification.LevelInfo,
			Code:    "manual_protected",
			Message: fmt.Sprintf("%d manually assigned products left unchanged", manual),
		})
	}

	switch mode {
	case ModeAuto:
		err = s.runAuto(ctx, r, targets)
	case ModeVector:
		err = s.runVector(ctx, r, targets)
	case ModeLLM:
		err = s.runLLM(ctx, r, targets)
	case ModeKeyword:
		s.classifyKeyword(r, targets)
	}
	if err != nil {
		return Report{}, fmt.Errorf("categorize: %w", err)
	}

	stats := &r.report.Stats
	stats.Total = len(req.Products)
	stats.Uncertain = 0
	for _, i := range targets {
		p := r.product(i)
		res := r.report.Results[i]
		if res.ProductID == "" {
			res = classification.Empty(p.ID, "no classifier produced a result")
		}
		res.Confidence = classification.ClampConfidence(float64(res.Confidence))
		r.report.Results[i] = res

		p.Apply(res.Suggestion())
		if res.Confidence < product.SuggestedThreshold {
			stats.Uncertain++
		}
		metrics.ClassificationsTotal.WithLabelValues(string(res.Method)).Inc()
	}
	stats.TimeMs = time.Since(start).Milliseconds()
	metrics.RunDuration.WithLabelValues(string(mode)).Observe(time.Since(start).Seconds())

	for _, e := range r.report.Events {
		logEvent(r.log, e)
	}
	r.log.Info("categorize run finished",
		zap.Int("total", stats.Total),
		zap.Int("trusted", stats.Trusted),
		zap.Int("uncertain", stats.Uncertain),
		zap.Int("skipped", stats.Skipped),
		zap.Int("batches", stats.Batches),
		zap.Int("retries", stats.Retries),
		zap.Int64("time_ms", stats.TimeMs))

	return r.report, nil
}

// runAuto walks cache/vector, then escalates skipped and weak products.
func (s *Service) runAuto(ctx context.Context, r *run, targets []int) error {
	pending := targets
	if s.vector != nil && r.req.Taxonomy.HasEmbeddings() {
		if err := s.embedMissing(ctx, r, pending); err != nil {
			return err
		}
		escalated, err := s.classifyVector(ctx, r, pending, s.cfg.EscalateBelow)
		if err != nil {
			return err
		}
		pending = escalated
	}
	if len(pending) == 0 {
		return nil
	}
	if s.llm != nil {
		return s.classifyLLM(ctx, r, pending)
	}
	s.classifyKeyword(r, pending)
	return nil
}

// runVector trusts every vector result; only products without embeddings fall to keywords.
func (s *Service) runVector(ctx context.Context, r *run, targets []int) error {
	if s.vector == nil {
		return fmt.Errorf("vector mode is not configured: %w", domain.ErrInvalidRequest)
	}
	if err := s.embedMissing(ctx, r, targets); err != nil {
		return err
	}
	skipped, err := s.classifyVector(ctx, r, targets, 0)
	if err != nil {
		return err
	}
	s.classifyKeyword(r, skipped)
	return nil
}

func (s *Service) runLLM(ctx context.Context, r *run, targets []int) error {
	if s.llm == nil {
		return fmt.Errorf("llm mode requires a configured provider: %w", domain.ErrInvalidRequest)
	}
	return s.classifyLLM(ctx, r, targets)
}

// classifyVector records vector results and returns the indexes to escalate:
// skipped products plus non-cache results under escalateBelow.
func (s *Service) classifyVector(ctx context.Context, r *run, idx []int, escalateBelow int) ([]int, error) {
	if len(idx) == 0 {
		return nil, nil
	}
	out, err := s.vector.Classify(ctx, r.req.Taxonomy, r.pick(idx))
	if err != nil {
		return nil, err
	}
	r.merge(out.Stats, out.Events)

	// Results omit skipped products; out.Index maps each back to its position in idx.
	settled := make([]bool, len(idx))
	for k, res := range out.Results {
		if k >= len(out.Index) || out.Index[k] < 0 || out.Index[k] >= len(idx) {
			continue
		}
		pos := out.Index[k]
		settled[pos] = true
		i := idx[pos]
		r.report.Results[i] = res
		if !res.CacheHit && res.Confidence < escalateBelow {
			settled[pos] = false
		}
	}
	var escalate []int
	for pos, i := range idx {
		if !settled[pos] {
			escalate = append(escalate, i)
		}
	}
	return escalate, nil
}

// classifyLLM replaces provisional results unless the earlier one is more confident.
func (s *Service) classifyLLM(ctx context.Context, r *run, idx []int) error {
	out, err := s.llm.Classify(ctx, r.req.Taxonomy, r.pick(idx), r.req.Progress)
	if err != nil {
		return err
	}
	r.merge(out.Stats, out.Events)

	for k, i := range idx {
		res := out.Results[k]
		if prev := r.report.Results[i]; keepPrevious(prev, res) {
			continue
		}
		r.report.Results[i] = res
	}
	return nil
}

// classifyKeyword is the terminal step; a product without any match ends empty.
func (s *Service) classifyKeyword(r *run, idx []int) {
	for _, i := range idx {
		p := r.product(i)
		sug := s.keyword.Suggest(r.req.Taxonomy, keyword.InputFrom(p))

		var res classification.Result
		if sug.Confidence > 0 && sug.Category != "" {
			res = classification.Result{
				ProductID:   p.ID,
				Category:    sug.Category,
				Subcategory: sug.Subcategory,
				PartType:    sug.PartType,
				Confidence:  sug.Confidence,
				Method:      classification.MethodKeyword,
				Reasons:     sug.MatchReasons,
			}
		} else {
			res = classification.Empty(p.ID, "no keyword match")
		}

		if keepPrevious(r.report.Results[i], res) {
			continue
		}
		r.report.Results[i] = res
	}
}

func keepPrevious(prev, next classification.Result) bool {
	return prev.ProductID != "" && prev.HasCategory() && prev.Confidence > next.Confidence
}

// embedMissing embeds products without a valid embedding, chunk by chunk. A failing
// product is left without an embedding; a fatal provider error aborts the run.
func (s *Service) embedMissing(ctx context.Context, r *run, idx []int) error {
	if s.embed == nil {
		return nil
	}
	var need []int
	for _, i := range idx {
		if !domain.ValidEmbedding(r.product(i).Embedding, s.cfg.Dimensions) {
			need = append(need, i)
		}
	}
	if len(need) == 0 {
		return nil
	}

	chunks := (len(need) + s.cfg.EmbedChunkSize - 1) / s.cfg.EmbedChunkSize
	for c := 0; c < chunks; c++ {
		chunk := need[c*s.cfg.EmbedChunkSize : min((c+1)*s.cfg.EmbedChunkSize, len(need))]
		errs := make([]error, len(chunk))

		var g errgroup.Group
		for k, i := range chunk {
			p := r.product(i)
			g.Go(func() error {
				res, err := s.embed.Embed(ctx, p.EmbeddingText())
				if err != nil {
					errs[k] = err
					return nil
				}
				if !domain.ValidEmbedding(res.Embedding, s.cfg.Dimensions) {
					errs[k] = fmt.Errorf("provider returned %d dims: %w", len(res.Embedding), domain.ErrInvalidEmbedding)
					return nil
				}
				p.Embedding = domain.Normalize(res.Embedding)
				return nil
			})
		}
		_ = g.Wait()

		for k, err := range errs {
			if err == nil {
				continue
			}
			if domain.IsFatal(err) || ctx.Err() != nil {
				return fmt.Errorf("embed products: %w", err)
			}
			r.report.Events = append(r.report.Events, classification.Event{
				Level:     classification.LevelWarn,
				Code:      "embedding_failed",
				Message:   err.Error(),
				ProductID: r.product(chunk[k]).ID,
			})
		}

		if r.req.Progress != nil {
			r.req.Progress(ctx, classification.Progress{
				Processed:    c*s.cfg.EmbedChunkSize + len(chunk),
				Total:        len(need),
				BatchIndex:   c + 1,
				TotalBatches: chunks,
				Message:      "embedding products",
			})
		}
	}
	return nil
}

func manualResult(p *product.Product) classification.Result {
	return classification.Result{
		ProductID:   p.ID,
		Category:    p.SuggestedCategory,
		Subcategory: p.SuggestedSubcategory,
		PartType:    p.SuggestedPartType,
		Confidence:  p.Confidence,
		Method:      classification.MethodManual,
		Reasons:     p.MatchReasons,
	}
}

func logEvent(log *zap.Logger, e classification.Event) {
	fields := []zap.Field{zap.String("code", e.Code)}
	if e.ProductID != "" {
		fields = append(fields, zap.String("product_id", e.ProductID))
	}
	switch e.Level {
	case classification.LevelError:
		log.Error(e.Message, fields...)
	case classification.LevelWarn:
		log.Warn(e.Message, fields...)
	case classification.LevelInfo:
		log.Info(e.Message, fields...)
	default:
		log.Debug(e.Message, fields...)
	}
}
