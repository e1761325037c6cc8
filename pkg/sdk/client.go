package partcat

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/partcat/internal/app"
	"github.com/kailas-cloud/partcat/internal/config"
	"github.com/kailas-cloud/partcat/internal/domain/taxonomy"
	"github.com/kailas-cloud/partcat/internal/keyword"
	categorizeuc "github.com/kailas-cloud/partcat/internal/usecase/categorize"
	healthuc "github.com/kailas-cloud/partcat/internal/usecase/health"
)

// Internal interfaces, substituted in tests.
type categorizer interface {
	Run(ctx context.Context, req categorizeuc.Request) (categorizeuc.Report, error)
}

type suggester interface {
	Suggest(tax *taxonomy.Taxonomy, in keyword.Input) keyword.Suggestion
}

type registry interface {
	Get(name string) (*taxonomy.Taxonomy, error)
	Put(t *taxonomy.Taxonomy)
	SetActive(name string) error
	ActiveName() string
	List() []taxonomy.Summary
}

type healthUseCase interface {
	Check(ctx context.Context) healthuc.Report
}

// Client is the partcat SDK entry point. It is safe for concurrent use.
type Client struct {
	app        *app.App
	categorize categorizer
	suggester  suggester
	taxonomies registry
	health     healthUseCase
	obs        *observer
}

// New builds the engine in-process. The context bounds startup work:
// the Valkey readiness wait and taxonomy embedding.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{}
	for _, o := range opts {
		o.apply(cfg)
	}

	engineCfg, err := cfg.engineConfig()
	if err != nil {
		return nil, err
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	a, err := app.New(ctx, engineCfg, zap.NewNop())
	if err != nil {
		return nil, fmt.Errorf("partcat: %w", err)
	}
	return &Client{
		app:        a,
		categorize: a.Categorize,
		suggester:  a.Matcher,
		taxonomies: a.Taxonomies,
		health:     a.Health,
		obs:        obs,
	}, nil
}

// engineConfig maps options onto the server configuration defaults.
func (c *clientConfig) engineConfig() (config.Config, error) {
	var cfg config.Config
	if len(c.valkeyAddrs) > 0 {
		cfg.Cache.Backend = "valkey"
		cfg.Database.Addrs = c.valkeyAddrs
		cfg.Database.Password = c.valkeyPassword
	}
	cfg.LLM.APIKey = c.llm.apiKey
	cfg.LLM.BaseURL = c.llm.baseURL
	cfg.LLM.Model = c.llm.model
	cfg.Embedding.APIKey = c.embedding.apiKey
	cfg.Embedding.BaseURL = c.embedding.baseURL
	cfg.Embedding.Model = c.embedding.model
	cfg.Taxonomy.File = c.taxonomyFile
	cfg.Taxonomy.RulesFile = c.rulesFile
	cfg.Taxonomy.Active = c.activeTaxonomy
	cfg.Taxonomy.EmbedOnStart = c.embedTaxonomy
	cfg.ApplyDefaults()

	// A file snapshot is named after the file.
	if c.taxonomyFile != "" && c.activeTaxonomy == "" {
		base := filepath.Base(c.taxonomyFile)
		cfg.Taxonomy.Active = strings.TrimSuffix(base, filepath.Ext(base))
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("partcat: %w", err)
	}
	return cfg, nil
}

// Close releases store connections.
func (c *Client) Close() {
	if c.app != nil {
		c.app.Close()
	}
}

// Classify classifies products in place and returns one result per product, in
// input order. Manually assigned products are left untouched unless WithForce.
func (c *Client) Classify(ctx context.Context, products []*Product, opts ...ClassifyOption) (report Report, err error) {
	cc := classifyConfig{mode: ModeAuto}
	for _, o := range opts {
		o(&cc)
	}

	start := time.Now()
	defer func() {
		c.obs.observe("classify", start, err,
			"products", len(products),
			"mode", string(cc.mode),
			"uncertain", report.Stats.Uncertain,
		)
	}()

	tax, err := c.taxonomies.Get(cc.taxonomy)
	if err != nil {
		return Report{}, fmt.Errorf("classify: %w", err)
	}
	report, err = c.categorize.Run(ctx, categorizeuc.Request{
		Products: products,
		Taxonomy: tax,
		Mode:     cc.mode,
		Force:    cc.force,
		Progress: cc.progress,
	})
	if err != nil {
		return Report{}, fmt.Errorf("classify: %w", err)
	}
	c.obs.classified(report.Results)
	return report, nil
}

// Suggest runs the keyword and brand matcher on one product against the active taxonomy.
func (c *Client) Suggest(ctx context.Context, in SuggestInput) (s Suggestion, err error) {
	start := time.Now()
	defer func() { c.obs.observe("suggest", start, err, "confidence", s.Confidence) }()

	if err = ctx.Err(); err != nil {
		return Suggestion{}, fmt.Errorf("suggest: %w", err)
	}
	tax, err := c.taxonomies.Get("")
	if err != nil {
		return Suggestion{}, fmt.Errorf("suggest: %w", err)
	}
	return c.suggester.Suggest(tax, in), nil
}

// LoadTaxonomy parses a nested {category: {subcategory: [part types]}} YAML or
// JSON document and registers it under name, replacing any snapshot of that name.
// Runs in progress keep the snapshot they started with.
func (c *Client) LoadTaxonomy(name string, data []byte) (TaxonomySummary, error) {
	t, err := taxonomy.ParseNested(name, data)
	if err != nil {
		return TaxonomySummary{}, fmt.Errorf("load taxonomy: %w", err)
	}
	c.taxonomies.Put(t)
	return t.Summary(), nil
}

// SetActiveTaxonomy selects the taxonomy used when Classify names none.
func (c *Client) SetActiveTaxonomy(name string) error {
	if err := c.taxonomies.SetActive(name); err != nil {
		return fmt.Errorf("set active taxonomy: %w", err)
	}
	return nil
}

// ActiveTaxonomy returns the active taxonomy name.
func (c *Client) ActiveTaxonomy() string { return c.taxonomies.ActiveName() }

// Taxonomies lists registered taxonomies sorted by name.
func (c *Client) Taxonomies() []TaxonomySummary { return c.taxonomies.List() }

// Taxonomy returns the ordered tree of a registered taxonomy ("" for the active one).
func (c *Client) Taxonomy(name string) ([]TaxonomyNode, error) {
	t, err := c.taxonomies.Get(name)
	if err != nil {
		return nil, fmt.Errorf("taxonomy: %w", err)
	}
	return t.Nested(), nil
}

// AssignManual records a reviewer's decision; later Classify calls skip the product.
func AssignManual(p *Product, category, subcategory, partType string) {
	p.AssignManual(category, subcategory, partType)
}
