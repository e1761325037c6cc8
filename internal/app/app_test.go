package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/kailas-cloud/partcat/internal/config"
	"github.com/kailas-cloud/partcat/internal/domain"
	"github.com/kailas-cloud/partcat/internal/domain/product"
	"github.com/kailas-cloud/partcat/internal/domain/taxonomy"
	categorizeuc "github.com/kailas-cloud/partcat/internal/usecase/categorize"
	healthuc "github.com/kailas-cloud/partcat/internal/usecase/health"
)

func defaults() config.Config {
	var cfg config.Config
	cfg.ApplyDefaults()
	return cfg
}

func TestNew_MemoryWithoutProviders(t *testing.T) {
	a, err := New(context.Background(), defaults(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer a.Close()

	if a.Taxonomies.ActiveName() != taxonomy.ACESName {
		t.Errorf("active = %q, want %q", a.Taxonomies.ActiveName(), taxonomy.ACESName)
	}
	if a.Categorize.HasLLM() {
		t.Error("LLM must not be wired without an api key")
	}
	if a.LabelEmbedder != nil {
		t.Error("label embedder must not be wired without an api key")
	}

	if rep := a.Health.Check(context.Background()); rep.Status != healthuc.Healthy {
		t.Errorf("health = %q, want ok", rep.Status)
	}

	tax, err := a.Taxonomies.Get("")
	if err != nil {
		t.Fatalf("get active: %v", err)
	}
	p := &product.Product{ID: "p1", Name: "Engine Oil Filter", Status: product.StatusPending}
	rep, err := a.Categorize.Run(context.Background(), categorizeuc.Request{
		Products: []*product.Product{p},
		Taxonomy: tax,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if rep.Stats.Total != 1 || len(rep.Results) != 1 {
		t.Fatalf("expected one result, got %+v", rep.Stats)
	}
	if p.SuggestedPartType == "" {
		t.Error("expected the keyword path to classify the product")
	}
}

func TestNew_TaxonomyFileAndRules(t *testing.T) {
	dir := t.TempDir()
	taxPath := filepath.Join(dir, "shop.yaml")
	if err := os.WriteFile(taxPath, []byte("Engine:\n  Filters: [Oil Filter]\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg := defaults()
	cfg.Taxonomy.File = taxPath
	cfg.Taxonomy.Active = "shop"

	a, err := New(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer a.Close()

	if got := len(a.Taxonomies.List()); got != 2 {
		t.Errorf("registered taxonomies = %d, want 2", got)
	}
	tax, err := a.Taxonomies.Get("")
	if err != nil {
		t.Fatalf("get active: %v", err)
	}
	if tax.Name() != "shop" {
		t.Errorf("active = %q, want shop", tax.Name())
	}
}

func TestNew_Errors(t *testing.T) {
	t.Run("missing rules file", func(t *testing.T) {
		cfg := defaults()
		cfg.Taxonomy.RulesFile = filepath.Join(t.TempDir(), "absent.yaml")
		if _, err := New(context.Background(), cfg, nil); err == nil {
			t.Fatal("expected error for a missing rules file")
		}
	})

	t.Run("unknown active taxonomy", func(t *testing.T) {
		cfg := defaults()
		cfg.Taxonomy.Active = "absent"
		_, err := New(context.Background(), cfg, nil)
		if !errors.Is(err, domain.ErrTaxonomyNotFound) {
			t.Fatalf("expected ErrTaxonomyNotFound, got %v", err)
		}
	})
}

func TestEmbedTaxonomies_RequiresProvider(t *testing.T) {
	a, err := New(context.Background(), defaults(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer a.Close()

	if err := a.EmbedTaxonomies(context.Background()); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestComponentConfigs(t *testing.T) {
	cfg := defaults()
	cfg.Cache.SimilarityThreshold = 0.9
	cfg.LLM.TimeoutSec = 5

	if v := vectorConfig(cfg); v.CacheThreshold != 0.9 || v.Dimensions != domain.EmbeddingDim {
		t.Errorf("vector config = %+v", v)
	}
	l := llmConfig(cfg)
	if l.RequestTimeout.Seconds() != 5 {
		t.Errorf("request timeout = %v, want 5s", l.RequestTimeout)
	}
	if l.BatchSize != 30 || l.Concurrency != 4 || l.CacheTrust != 60 {
		t.Errorf("llm config = %+v", l)
	}
}
