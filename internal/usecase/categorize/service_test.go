package categorize

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kailas-cloud/partcat/internal/cache"
	"github.com/kailas-cloud/partcat/internal/domain"
	"github.com/kailas-cloud/partcat/internal/domain/classification"
	"github.com/kailas-cloud/partcat/internal/domain/product"
	"github.com/kailas-cloud/partcat/internal/domain/taxonomy"
	"github.com/kailas-cloud/partcat/internal/keyword"
	"github.com/kailas-cloud/partcat/internal/llm"
	"github.com/kailas-cloud/partcat/internal/vector"
)

// --- fakes ---

type fakeVector struct {
	calls    int
	received []string
	classify func(p *product.Product) (classification.Result, bool)
	err      error
}

func (f *fakeVector) Classify(_ context.Context, _ *taxonomy.Taxonomy, products []*product.Product) (vector.Output, error) {
	f.calls++
	if f.err != nil {
		return vector.Output{}, f.err
	}
	var out vector.Output
	for i, p := range products {
		f.received = append(f.received, p.ID)
		r, ok := f.classify(p)
		if !ok {
			out.Skipped = append(out.Skipped, p.ID)
			out.Stats.Skipped++
			continue
		}
		out.Results = append(out.Results, r)
		out.Index = append(out.Index, i)
	}
	return out, nil
}

type fakeLLM struct {
	calls    int
	received []string
	classify func(p *product.Product) classification.Result
	err      error
}

func (f *fakeLLM) Classify(
	_ context.Context, _ *taxonomy.Taxonomy, products []*product.Product, _ classification.ProgressFunc,
) (llm.Batch, error) {
	f.calls++
	if f.err != nil {
		return llm.Batch{}, f.err
	}
	out := llm.Batch{Results: make([]classification.Result, len(products))}
	for i, p := range products {
		f.received = append(f.received, p.ID)
		out.Results[i] = f.classify(p)
	}
	out.Stats.Batches = 1
	return out, nil
}

type fakeEmbedder struct {
	calls       atomic.Int32
	inflight    atomic.Int32
	maxInflight atomic.Int32
	fail        func(text string) error
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	f.calls.Add(1)
	cur := f.inflight.Add(1)
	defer f.inflight.Add(-1)
	for {
		prev := f.maxInflight.Load()
		if cur <= prev || f.maxInflight.CompareAndSwap(prev, cur) {
			break
		}
	}
	time.Sleep(time.Millisecond)
	if f.fail != nil {
		if err := f.fail(text); err != nil {
			return domain.EmbeddingResult{}, err
		}
	}
	v := make([]float32, domain.EmbeddingDim)
	v[0] = 3
	return domain.EmbeddingResult{Embedding: v, TotalTokens: 1}, nil
}

// fakeChat answers every batch with an Engine Oil Filter classification.
type fakeChat struct {
	calls atomic.Int32
}

func (f *fakeChat) Complete(_ context.Context, _, user string) (domain.Completion, error) {
	f.calls.Add(1)
	var n int
	if _, err := fmt.Sscanf(user, "Classify these %d products", &n); err != nil {
		return domain.Completion{}, err
	}
	items := make([]map[string]any, n)
	for i := range items {
		items[i] = map[string]any{
			"index": i + 1, "category": "Engine", "subcategory": "Filters",
			"partType": "Engine Oil Filter", "confidence": 88,
		}
	}
	b, _ := json.Marshal(items)
	return domain.Completion{Content: string(b), Model: "test"}, nil
}

// --- fixtures ---

func matcher(t *testing.T) *keyword.Matcher {
	t.Helper()
	m, err := keyword.NewMatcher(keyword.DefaultRules())
	if err != nil {
		t.Fatalf("NewMatcher: %v", err)
	}
	return m
}

func acesTaxonomy(t *testing.T) *taxonomy.Taxonomy {
	t.Helper()
	tax, err := taxonomy.ACES()
	if err != nil {
		t.Fatalf("ACES: %v", err)
	}
	return tax
}

func axis(i int) []float32 {
	v := make([]float32, domain.EmbeddingDim)
	v[i] = 1
	return v
}

// embeddedTaxonomy has node embeddings on axes 1..6, all orthogonal to axis 0.
func embeddedTaxonomy(t *testing.T) *taxonomy.Taxonomy {
	t.Helper()
	b := taxonomy.NewBuilder("embedded")
	add := func(cat, sub, part string, base int) {
		c, err := b.AddCategory(taxonomy.Category{Name: cat, Embedding: axis(base)})
		if err != nil {
			t.Fatal(err)
		}
		s, err := b.AddSubcategory(taxonomy.Subcategory{Name: sub, CategoryID: c.ID, Embedding: axis(base + 1)})
		if err != nil {
			t.Fatal(err)
		}
		if _, err := b.AddPartType(taxonomy.PartType{Name: part, SubcategoryID: s.ID, Embedding: axis(base + 2)}); err != nil {
			t.Fatal(err)
		}
	}
	add("Engine", "Filters", "Engine Oil Filter", 1)
	add("HVAC", "Heating & AC", "Cabin Air Filter", 4)
	return b.Build()
}

func products(names ...string) []*product.Product {
	out := make([]*product.Product, len(names))
	for i, n := range names {
		out[i] = &product.Product{ID: fmt.Sprintf("p%d", i+1), Name: n, Status: product.StatusPending}
	}
	return out
}

func embedded(ps []*product.Product) []*product.Product {
	for _, p := range ps {
		p.Embedding = axis(0)
	}
	return ps
}

func result(id string, conf int, m classification.Method) classification.Result {
	return classification.Result{
		ProductID: id, Category: "Engine", Subcategory: "Filters", PartType: "Engine Oil Filter",
		Confidence: conf, Method: m,
	}
}

// byConfidence maps product id to a vector confidence; missing ids are skipped.
func byConfidence(conf map[string]int) func(p *product.Product) (classification.Result, bool) {
	return func(p *product.Product) (classification.Result, bool) {
		c, ok := conf[p.ID]
		if !ok {
			return classification.Result{}, false
		}
		return result(p.ID, c, classification.MethodVector), true
	}
}

func assertCoverage(t *testing.T, ps []*product.Product, rep Report) {
	t.Helper()
	if len(rep.Results) != len(ps) {
		t.Fatalf("results = %d, want %d", len(rep.Results), len(ps))
	}
	for i, p := range ps {
		if rep.Results[i].ProductID != p.ID {
			t.Errorf("result %d is for %q, want %q", i, rep.Results[i].ProductID, p.ID)
		}
	}
	if rep.Stats.Total != len(ps) {
		t.Errorf("stats total = %d, want %d", rep.Stats.Total, len(ps))
	}
}

// --- tests ---

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"", ModeAuto, false},
		{"auto", ModeAuto, false},
		{"vector", ModeVector, false},
		{"llm", ModeLLM, false},
		{"keyword", ModeKeyword, false},
		{"magic", "", true},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if tt.wantErr {
			if !errors.Is(err, domain.ErrInvalidRequest) {
				t.Errorf("ParseMode(%q) err = %v, want ErrInvalidRequest", tt.in, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParseMode(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestRun_EmptyTaxonomy(t *testing.T) {
	svc := New(matcher(t), DefaultConfig())
	_, err := svc.Run(context.Background(), Request{Products: products("x"), Taxonomy: nil})
	if !errors.Is(err, domain.ErrEmptyTaxonomy) {
		t.Fatalf("expected ErrEmptyTaxonomy, got %v", err)
	}
}

func TestRun_KeywordMode_CoversEveryProduct(t *testing.T) {
	svc := New(matcher(t), DefaultConfig())
	ps := products("Engine Oil Filter for Toyota Camry", "Qwerty zxcv")

	rep, err := svc.Run(context.Background(), Request{Products: ps, Taxonomy: acesTaxonomy(t), Mode: ModeKeyword})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertCoverage(t, ps, rep)

	if got := rep.Results[0]; got.Method != classification.MethodKeyword || got.PartType != "Engine Oil Filter" {
		t.Errorf("first result = %+v", got)
	}
	if got := rep.Results[1]; got.Method != classification.MethodNone || got.Confidence != 0 || got.HasCategory() {
		t.Errorf("second result = %+v, want empty", got)
	}
	if ps[0].SuggestedPartType != "Engine Oil Filter" || ps[0].Status != product.StatusSuggested {
		t.Errorf("product not updated in place: %+v", ps[0])
	}
	if ps[1].Status != product.StatusUnclassified {
		t.Errorf("unmatched product status = %q", ps[1].Status)
	}
	if rep.Stats.Uncertain != 1 {
		t.Errorf("uncertain = %d, want 1", rep.Stats.Uncertain)
	}
}

func TestRun_ManualProductsProtected(t *testing.T) {
	llmFake := &fakeLLM{classify: func(p *product.Product) classification.Result {
		return result(p.ID, 90, classification.MethodLLM)
	}}
	svc := New(matcher(t), DefaultConfig(), WithLLM(llmFake))

	ps := products("Brake Pad Set", "Engine Oil Filter")
	ps[0].AssignManual("Brake System", "Brake Pads & Shoes", "Brake Pad")

	rep, err := svc.Run(context.Background(), Request{Products: ps, Taxonomy: acesTaxonomy(t), Mode: ModeLLM})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertCoverage(t, ps, rep)

	if len(llmFake.received) != 1 || llmFake.received[0] != "p2" {
		t.Errorf("llm received %v, want only p2", llmFake.received)
	}
	if got := rep.Results[0]; got.Method != classification.MethodManual || got.Category != "Brake System" {
		t.Errorf("manual result = %+v", got)
	}
	if ps[0].Status != product.StatusManualAssigned || ps[0].SuggestedPartType != "Brake Pad" {
		t.Errorf("manual product changed: %+v", ps[0])
	}
}

func TestRun_ForceReclassifiesManual(t *testing.T) {
	llmFake := &fakeLLM{classify: func(p *product.Product) classification.Result {
		return result(p.ID, 90, classification.MethodLLM)
	}}
	svc := New(matcher(t), DefaultConfig(), WithLLM(llmFake))

	ps := products("Engine Oil Filter")
	ps[0].AssignManual("Brake System", "Brake Pads & Shoes", "Brake Pad")

	rep, err := svc.Run(context.Background(), Request{
		Products: ps, Taxonomy: acesTaxonomy(t), Mode: ModeLLM, Force: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rep.Results[0].Method != classification.MethodLLM || ps[0].SuggestedCategory != "Engine" {
		t.Errorf("forced product not reclassified: %+v", ps[0])
	}
}

func TestRun_AutoEscalatesWeakAndSkippedToLLM(t *testing.T) {
	vec := &fakeVector{classify: byConfidence(map[string]int{"p1": 85, "p2": 20})}
	llmFake := &fakeLLM{classify: func(p *product.Product) classification.Result {
		return result(p.ID, 75, classification.MethodLLM)
	}}
	svc := New(matcher(t), DefaultConfig(), WithVector(vec), WithLLM(llmFake))

	ps := embedded(products("a", "b", "c"))
	ps[2].Embedding = nil

	rep, err := svc.Run(context.Background(), Request{Products: ps, Taxonomy: embeddedTaxonomy(t)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertCoverage(t, ps, rep)

	if strings.Join(llmFake.received, ",") != "p2,p3" {
		t.Errorf("llm received %v, want [p2 p3]", llmFake.received)
	}
	want := []classification.Method{classification.MethodVector, classification.MethodLLM, classification.MethodLLM}
	for i, m := range want {
		if rep.Results[i].Method != m {
			t.Errorf("result %d method = %q, want %q", i, rep.Results[i].Method, m)
		}
	}
	if rep.Mode != ModeAuto || rep.Stats.Skipped != 1 {
		t.Errorf("unexpected report header: mode=%q stats=%+v", rep.Mode, rep.Stats)
	}
}

func TestRun_AutoKeepsStrongerVectorResult(t *testing.T) {
	vec := &fakeVector{classify: byConfidence(map[string]int{"p1": 35})}
	llmFake := &fakeLLM{classify: func(p *product.Product) classification.Result {
		return classification.Empty(p.ID, "llm returned no category")
	}}
	svc := New(matcher(t), DefaultConfig(), WithVector(vec), WithLLM(llmFake))

	ps := embedded(products("a"))
	rep, err := svc.Run(context.Background(), Request{Products: ps, Taxonomy: embeddedTaxonomy(t)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if llmFake.calls != 1 {
		t.Errorf("llm calls = %d, want 1", llmFake.calls)
	}
	if got := rep.Results[0]; got.Method != classification.MethodVector || got.Confidence != 35 {
		t.Errorf("result = %+v, want vector at 35", got)
	}
}

func TestRun_AutoWithoutLLMFallsBackToKeyword(t *testing.T) {
	vec := &fakeVector{classify: byConfidence(map[string]int{"p1": 10})}
	svc := New(matcher(t), DefaultConfig(), WithVector(vec))

	ps := embedded(products("Engine Oil Filter for Toyota Camry"))
	rep, err := svc.Run(context.Background(), Request{Products: ps, Taxonomy: embeddedTaxonomy(t)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := rep.Results[0]; got.Method != classification.MethodKeyword || got.Confidence <= 10 {
		t.Errorf("result = %+v, want keyword above vector", got)
	}
}

func TestRun_AutoSkipsVectorWithoutTaxonomyEmbeddings(t *testing.T) {
	vec := &fakeVector{classify: byConfidence(nil)}
	llmFake := &fakeLLM{classify: func(p *product.Product) classification.Result {
		return result(p.ID, 80, classification.MethodLLM)
	}}
	svc := New(matcher(t), DefaultConfig(), WithVector(vec), WithLLM(llmFake))

	ps := embedded(products("a", "b"))
	rep, err := svc.Run(context.Background(), Request{Products: ps, Taxonomy: acesTaxonomy(t)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if vec.calls != 0 {
		t.Errorf("vector called %d times on a taxonomy without embeddings", vec.calls)
	}
	assertCoverage(t, ps, rep)
}

func TestRun_VectorModeSkippedGoToKeyword(t *testing.T) {
	vec := &fakeVector{classify: byConfidence(map[string]int{"p1": 15})}
	svc := New(matcher(t), DefaultConfig(), WithVector(vec))

	ps := embedded(products("a", "Engine Oil Filter for Toyota Camry"))
	ps[1].Embedding = nil

	rep, err := svc.Run(context.Background(), Request{Products: ps, Taxonomy: embeddedTaxonomy(t), Mode: ModeVector})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := rep.Results[0]; got.Method != classification.MethodVector || got.Confidence != 15 {
		t.Errorf("weak vector result should be kept in vector mode, got %+v", got)
	}
	if got := rep.Results[1]; got.Method != classification.MethodKeyword {
		t.Errorf("skipped product should fall to keyword, got %+v", got)
	}
}

func TestRun_FatalErrorKeepsFetchedEmbeddings(t *testing.T) {
	emb := &fakeEmbedder{}
	vec := &fakeVector{classify: byConfidence(map[string]int{"p1": 10})}
	llmFake := &fakeLLM{err: fmt.Errorf("llm classify: %w", domain.ErrQuotaExceeded)}
	svc := New(matcher(t), DefaultConfig(), WithVector(vec), WithLLM(llmFake), WithEmbedder(emb))

	ps := products("Engine Oil Filter")
	_, err := svc.Run(context.Background(), Request{Products: ps, Taxonomy: embeddedTaxonomy(t), Mode: ModeAuto})
	if !errors.Is(err, domain.ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded, got %v", err)
	}
	p := ps[0]
	if len(p.Embedding) != domain.EmbeddingDim {
		t.Errorf("embedding fetched before the failure should stay attached, got %d dims", len(p.Embedding))
	}
	if p.Status != product.StatusPending || p.SuggestedCategory != "" || p.SuggestedPartType != "" {
		t.Errorf("suggestion fields modified: %+v", p)
	}
}

func TestRun_DuplicateIDsKeepPositions(t *testing.T) {
	for _, mode := range []Mode{ModeAuto, ModeVector} {
		t.Run(string(mode), func(t *testing.T) {
			svc := New(matcher(t), DefaultConfig(), WithVector(vector.New(vector.DefaultConfig(), nil)))

			ps := []*product.Product{
				{ID: "dup", Name: "Gift Voucher", Status: product.StatusPending},
				{ID: "dup", Name: "Cabin filter", Status: product.StatusPending, Embedding: axis(6)},
			}
			rep, err := svc.Run(context.Background(), Request{Products: ps, Taxonomy: embeddedTaxonomy(t), Mode: mode})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := rep.Results[1]; got.Method != classification.MethodVector || got.PartType != "Cabin Air Filter" {
				t.Errorf("embedded product should keep its vector result, got %+v", got)
			}
			if got := rep.Results[0]; got.Method == classification.MethodVector || got.PartType == "Cabin Air Filter" {
				t.Errorf("skipped product must not inherit a sibling's vector result, got %+v", got)
			}
			if ps[1].SuggestedPartType != "Cabin Air Filter" {
				t.Errorf("second product suggestion = %q", ps[1].SuggestedPartType)
			}
		})
	}
}

func TestRun_ModeRequiresClassifier(t *testing.T) {
	svc := New(matcher(t), DefaultConfig())
	for _, m := range []Mode{ModeVector, ModeLLM} {
		_, err := svc.Run(context.Background(), Request{Products: products("a"), Taxonomy: acesTaxonomy(t), Mode: m})
		if !errors.Is(err, domain.ErrInvalidRequest) {
			t.Errorf("mode %q: expected ErrInvalidRequest, got %v", m, err)
		}
	}
}

func TestRun_FatalErrorLeavesProductsUntouched(t *testing.T) {
	llmFake := &fakeLLM{err: fmt.Errorf("llm classify: %w", domain.ErrQuotaExceeded)}
	svc := New(matcher(t), DefaultConfig(), WithLLM(llmFake))

	ps := products("Engine Oil Filter", "Brake Pad")
	rep, err := svc.Run(context.Background(), Request{Products: ps, Taxonomy: acesTaxonomy(t), Mode: ModeLLM})
	if !errors.Is(err, domain.ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded, got %v", err)
	}
	if len(rep.Results) != 0 {
		t.Errorf("expected empty report on fatal error, got %d results", len(rep.Results))
	}
	for _, p := range ps {
		if p.Status != product.StatusPending || p.SuggestedCategory != "" {
			t.Errorf("product %s modified: %+v", p.ID, p)
		}
	}
}

func TestRun_EmbedsMissingInChunks(t *testing.T) {
	emb := &fakeEmbedder{}
	vec := &fakeVector{classify: func(p *product.Product) (classification.Result, bool) {
		if !domain.ValidEmbedding(p.Embedding, domain.EmbeddingDim) {
			return classification.Result{}, false
		}
		return result(p.ID, 90, classification.MethodVector), true
	}}
	svc := New(matcher(t), DefaultConfig(), WithVector(vec), WithEmbedder(emb))

	names := make([]string, 46)
	for i := range names {
		names[i] = fmt.Sprintf("Engine Oil Filter #%d", i)
	}
	ps := products(names...)
	ps[45].Embedding = axis(0)

	var (
		mu       sync.Mutex
		progress []classification.Progress
	)
	rep, err := svc.Run(context.Background(), Request{
		Products: ps, Taxonomy: embeddedTaxonomy(t), Mode: ModeVector,
		Progress: func(_ context.Context, p classification.Progress) {
			mu.Lock()
			defer mu.Unlock()
			progress = append(progress, p)
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertCoverage(t, ps, rep)

	if emb.calls.Load() != 45 {
		t.Errorf("embed calls = %d, want 45", emb.calls.Load())
	}
	if emb.maxInflight.Load() > 20 {
		t.Errorf("max concurrent embeds = %d, want <= 20", emb.maxInflight.Load())
	}
	if len(progress) != 3 || progress[2].Processed != 45 || progress[2].TotalBatches != 3 {
		t.Errorf("unexpected progress: %+v", progress)
	}
	if ps[0].Embedding[0] != 1 {
		t.Errorf("embedding not normalized: %v", ps[0].Embedding[0])
	}
	for i, r := range rep.Results {
		if r.Method != classification.MethodVector {
			t.Errorf("result %d method = %q", i, r.Method)
		}
	}
}

func TestRun_EmbeddingFailureBecomesEvent(t *testing.T) {
	emb := &fakeEmbedder{fail: func(text string) error {
		if strings.Contains(text, "broken") {
			return fmt.Errorf("embed: %w", domain.ErrEmbeddingProviderError)
		}
		return nil
	}}
	vec := &fakeVector{classify: func(p *product.Product) (classification.Result, bool) {
		if p.Embedding == nil {
			return classification.Result{}, false
		}
		return result(p.ID, 90, classification.MethodVector), true
	}}
	svc := New(matcher(t), DefaultConfig(), WithVector(vec), WithEmbedder(emb))

	ps := products("Engine Oil Filter", "broken Engine Oil Filter for Toyota Camry")
	rep, err := svc.Run(context.Background(), Request{Products: ps, Taxonomy: embeddedTaxonomy(t)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var found bool
	for _, e := range rep.Events {
		if e.Code == "embedding_failed" && e.ProductID == "p2" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected embedding_failed event for p2, got %+v", rep.Events)
	}
	if rep.Results[1].Method != classification.MethodKeyword {
		t.Errorf("product without embedding should fall to keyword, got %+v", rep.Results[1])
	}
}

func TestRun_FatalEmbeddingErrorAborts(t *testing.T) {
	emb := &fakeEmbedder{fail: func(string) error { return domain.ErrInvalidCredentials }}
	vec := &fakeVector{classify: byConfidence(nil)}
	svc := New(matcher(t), DefaultConfig(), WithVector(vec), WithEmbedder(emb))

	_, err := svc.Run(context.Background(), Request{Products: products("a"), Taxonomy: embeddedTaxonomy(t)})
	if !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if vec.calls != 0 {
		t.Error("vector classifier should not run after a fatal embedding error")
	}
}

func TestRun_LLMResultsSeedVectorCache(t *testing.T) {
	mem := cache.NewMemory()
	chat := &fakeChat{}
	m := matcher(t)
	svc := New(m, DefaultConfig(),
		WithVector(vector.New(vector.DefaultConfig(), mem)),
		WithLLM(llm.New(chat, m, llm.DefaultConfig(), llm.WithClassificationCache(mem, domain.EmbeddingDim))),
	)
	tax := embeddedTaxonomy(t)

	first := embedded(products("Engine Oil Filter for Toyota Camry"))
	rep, err := svc.Run(context.Background(), Request{Products: first, Taxonomy: tax})
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if got := rep.Results[0]; got.Method != classification.MethodLLM || got.PartType != "Engine Oil Filter" {
		t.Fatalf("first run result = %+v, want llm", got)
	}
	if mem.Len() != 1 {
		t.Fatalf("cache entries = %d, want 1", mem.Len())
	}

	second := embedded(products("Engine Oil Filter for Toyota Camry"))
	rep, err = svc.Run(context.Background(), Request{Products: second, Taxonomy: tax})
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	got := rep.Results[0]
	if got.Method != classification.MethodCache || !got.CacheHit || got.PartType != "Engine Oil Filter" {
		t.Errorf("second run result = %+v, want cache hit", got)
	}
	if chat.calls.Load() != 1 {
		t.Errorf("llm requests = %d, want 1", chat.calls.Load())
	}
	if rep.Stats.Trusted != 1 {
		t.Errorf("trusted = %d, want 1", rep.Stats.Trusted)
	}
}
