// Package app wires configuration into the categorization services. It is the
// composition shared by the HTTP server and the CLI.
package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/partcat/internal/cache"
	"github.com/kailas-cloud/partcat/internal/config"
	dbRedis "github.com/kailas-cloud/partcat/internal/db/redis"
	"github.com/kailas-cloud/partcat/internal/domain"
	"github.com/kailas-cloud/partcat/internal/domain/taxonomy"
	"github.com/kailas-cloud/partcat/internal/keyword"
	"github.com/kailas-cloud/partcat/internal/llm"
	"github.com/kailas-cloud/partcat/internal/metrics"
	"github.com/kailas-cloud/partcat/internal/repository/classcache"
	"github.com/kailas-cloud/partcat/internal/repository/embcache"
	"github.com/kailas-cloud/partcat/internal/repository/hashcache"
	taxrepo "github.com/kailas-cloud/partcat/internal/repository/taxonomy"
	openaiTransport "github.com/kailas-cloud/partcat/internal/transport/openai"
	categorizeuc "github.com/kailas-cloud/partcat/internal/usecase/categorize"
	embeddinguc "github.com/kailas-cloud/partcat/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/partcat/internal/usecase/health"
	"github.com/kailas-cloud/partcat/internal/vector"
)

// App holds the wired services.
type App struct {
	Config     config.Config
	Taxonomies *taxonomy.Registry
	Matcher    *keyword.Matcher
	Categorize *categorizeuc.Service
	Health     *healthuc.Service
	// LabelEmbedder is nil without an embedding provider.
	LabelEmbedder *embeddinguc.Service

	logger  *zap.Logger
	closers []func()
}

// New builds every component named by cfg. Optional components (Valkey, Postgres,
// embedding and LLM providers) are skipped when unconfigured.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{Config: cfg, logger: logger}

	rules, err := loadRules(cfg.Taxonomy.RulesFile)
	if err != nil {
		return nil, err
	}
	a.Matcher, err = keyword.NewMatcher(rules)
	if err != nil {
		return nil, fmt.Errorf("keyword rules: %w", err)
	}

	var healthOpts []healthuc.Option

	// Cache backends
	var (
		classCache cache.ClassificationCache = cache.NewMemory()
		hashCache  cache.HashCache           = cache.NewMemoryHash()
		store      *dbRedis.Store
	)
	if cfg.Cache.Backend == "valkey" {
		store, err = dbRedis.NewStore(dbRedis.Config{
			Addrs:      cfg.Database.Addrs,
			Password:   cfg.Database.Password,
			ClientName: "partcat",
		})
		if err != nil {
			return nil, fmt.Errorf("create cache store: %w", err)
		}
		a.closers = append(a.closers, store.Close)

		if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
			a.Close()
			return nil, fmt.Errorf("cache store not ready: %w", err)
		}
		cc := classcache.New(store, cfg.Database.KeyPrefix, cfg.Embedding.Dimensions)
		if err := cc.EnsureIndex(ctx); err != nil {
			a.Close()
			return nil, fmt.Errorf("classification cache index: %w", err)
		}
		classCache = cc
		hashCache = hashcache.New(store, cfg.Database.KeyPrefix, time.Duration(cfg.Cache.HashTTLHours)*time.Hour)
		healthOpts = append(healthOpts, healthuc.WithCache(store))
		logger.Info("Connected to cache store", zap.Strings("addrs", cfg.Database.Addrs))
	}

	// Providers
	var (
		productEmbedder domain.Embedder
		chat            *openaiTransport.Chat
	)
	if cfg.Embedding.APIKey != "" {
		base := openaiTransport.NewEmbedder(&openaiTransport.Config{
			APIKey:     cfg.Embedding.APIKey,
			BaseURL:    cfg.Embedding.BaseURL,
			Model:      cfg.Embedding.Model,
			Dimensions: cfg.Embedding.Dimensions,
			Provider:   cfg.Embedding.Provider,
			Logger:     logger,
		})
		productEmbedder = base
		if store != nil {
			productEmbedder = embcache.New(base, store, metrics.EmbeddingCacheTotal, logger,
				embcache.WithPrefix(cfg.Database.KeyPrefix),
				embcache.WithModel(cfg.Embedding.Model),
			)
		}
		// Labels bypass the product cache.
		a.LabelEmbedder = embeddinguc.New(base, logger, embeddinguc.WithDimensions(cfg.Embedding.Dimensions))
		healthOpts = append(healthOpts, healthuc.WithEmbedding(base))
	}
	if cfg.LLM.APIKey != "" {
		chat = openaiTransport.NewChat(&openaiTransport.Config{
			APIKey:      cfg.LLM.APIKey,
			BaseURL:     cfg.LLM.BaseURL,
			Model:       cfg.LLM.Model,
			Temperature: cfg.LLM.Temperature,
			Provider:    "openai",
			Logger:      logger,
		})
		healthOpts = append(healthOpts, healthuc.WithLLM(chat))
	}

	// Taxonomies
	a.Taxonomies, err = a.loadTaxonomies(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	if cfg.Taxonomy.EmbedOnStart && a.LabelEmbedder != nil {
		if err := a.EmbedTaxonomies(ctx); err != nil {
			a.Close()
			return nil, err
		}
	}

	// Classifiers
	catOpts := []categorizeuc.Option{
		categorizeuc.WithVector(vector.New(vectorConfig(cfg), classCache)),
	}
	if productEmbedder != nil {
		catOpts = append(catOpts, categorizeuc.WithEmbedder(productEmbedder))
	}
	if chat != nil {
		catOpts = append(catOpts, categorizeuc.WithLLM(llm.New(chat, a.Matcher, llmConfig(cfg),
			llm.WithHashCache(hashCache),
			llm.WithClassificationCache(classCache, cfg.Embedding.Dimensions),
			llm.WithModel(cfg.LLM.Model),
		)))
	}
	catCfg := categorizeuc.DefaultConfig()
	catCfg.EscalateBelow = cfg.Classifier.EscalateBelow
	catCfg.EmbedChunkSize = cfg.Classifier.EmbedChunkSize
	catCfg.Dimensions = cfg.Embedding.Dimensions
	a.Categorize = categorizeuc.New(a.Matcher, catCfg, catOpts...)

	a.Health = healthuc.New(a.Taxonomies, healthOpts...)

	logger.Info("Categorization engine ready",
		zap.String("cache_backend", cfg.Cache.Backend),
		zap.Bool("embedding", productEmbedder != nil),
		zap.Bool("llm", chat != nil),
		zap.String("active_taxonomy", a.Taxonomies.ActiveName()),
	)
	return a, nil
}

// Close releases store connections in reverse order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// EmbedTaxonomies replaces every registered snapshot that has no vectors with an
// embedded copy. Runs already holding the old snapshot are unaffected.
func (a *App) EmbedTaxonomies(ctx context.Context) error {
	if a.LabelEmbedder == nil {
		return fmt.Errorf("embed taxonomies: no embedding provider: %w", domain.ErrInvalidRequest)
	}
	for _, s := range a.Taxonomies.List() {
		if s.Embedded {
			continue
		}
		tax, err := a.Taxonomies.Get(s.Name)
		if err != nil {
			return fmt.Errorf("embed taxonomies: %w", err)
		}
		embedded, err := a.LabelEmbedder.EmbedTaxonomy(ctx, tax)
		if err != nil {
			return fmt.Errorf("embed taxonomies: %w", err)
		}
		a.Taxonomies.Put(embedded)
	}
	return nil
}

func loadRules(path string) (keyword.Rules, error) {
	if path == "" {
		return keyword.DefaultRules(), nil
	}
	rules, err := keyword.LoadRulesFile(path)
	if err != nil {
		return keyword.Rules{}, fmt.Errorf("load keyword rules: %w", err)
	}
	return rules, nil
}

// loadTaxonomies registers the built-in tree, the optional file and the optional
// remote tables. A remote load failure is logged and leaves the other snapshots usable.
func (a *App) loadTaxonomies(ctx context.Context) (*taxonomy.Registry, error) {
	cfg := a.Config
	reg := taxonomy.NewRegistry(cfg.Taxonomy.Active)

	aces, err := taxonomy.ACES()
	if err != nil {
		return nil, err
	}
	reg.Put(aces)

	if cfg.Taxonomy.File != "" {
		t, err := taxrepo.LoadFile(cfg.Taxonomy.File, "")
		if err != nil {
			return nil, err
		}
		reg.Put(t)
		a.logger.Info("Loaded taxonomy file", zap.String("path", cfg.Taxonomy.File), zap.String("taxonomy", t.Name()))
	}

	if cfg.Postgres.DSN != "" {
		if t, err := a.loadRemote(ctx); err != nil {
			a.logger.Error("Remote taxonomy not loaded", zap.Error(err))
		} else {
			reg.Put(t)
		}
	}

	if _, err := reg.Get(""); err != nil {
		return nil, fmt.Errorf("active taxonomy: %w", err)
	}
	return reg, nil
}

func (a *App) loadRemote(ctx context.Context) (*taxonomy.Taxonomy, error) {
	pool, err := taxrepo.NewPool(ctx, a.Config.Postgres.DSN)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, pool.Close)
	t, err := taxrepo.NewPostgresLoader(pool, a.Config.Postgres.TaxonomyName, a.logger).Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load remote taxonomy: %w", err)
	}
	return t, nil
}

func vectorConfig(cfg config.Config) vector.Config {
	v := vector.DefaultConfig()
	v.Dimensions = cfg.Embedding.Dimensions
	v.CacheThreshold = cfg.Cache.SimilarityThreshold
	v.SubcategoryBroaden = cfg.Classifier.SubcategoryBroaden
	v.PartTypeCategoryWiden = cfg.Classifier.PartTypeCategoryWiden
	v.PartTypeTreeWiden = cfg.Classifier.PartTypeTreeWiden
	return v
}

func llmConfig(cfg config.Config) llm.Config {
	l := llm.DefaultConfig()
	l.BatchSize = cfg.LLM.BatchSize
	l.Concurrency = cfg.LLM.Concurrency
	l.RequestTimeout = time.Duration(cfg.LLM.TimeoutSec) * time.Second
	l.MaxAttempts = cfg.LLM.MaxAttempts
	l.BaseBackoff = time.Duration(cfg.LLM.BaseBackoffMs) * time.Millisecond
	l.RetryDelay = time.Duration(cfg.LLM.RetryDelayMs) * time.Millisecond
	l.CacheTrust = cfg.Cache.TrustThreshold
	l.DescriptionLimit = cfg.LLM.DescriptionLimit
	return l
}
