package partcat

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type providerConfig struct {
	apiKey  string
	baseURL string
	model   string
}

type clientConfig struct {
	valkeyAddrs    []string
	valkeyPassword string

	llm       providerConfig
	embedding providerConfig

	taxonomyFile   string
	rulesFile      string
	activeTaxonomy string
	embedTaxonomy  bool

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// WithValkey stores the classification and content-hash caches in Valkey
// (or Redis 8+) instead of process memory.
func WithValkey(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.valkeyAddrs = []string{addr}
		c.valkeyPassword = password
	})
}

// WithLLM enables LLM batch classification against an OpenAI-compatible API.
// Empty baseURL and model keep the defaults.
func WithLLM(apiKey, baseURL, model string) Option {
	return optionFunc(func(c *clientConfig) {
		c.llm = providerConfig{apiKey: apiKey, baseURL: baseURL, model: model}
	})
}

// WithEmbedding enables product embeddings (384 dimensions) for the vector path.
func WithEmbedding(apiKey, baseURL, model string) Option {
	return optionFunc(func(c *clientConfig) {
		c.embedding = providerConfig{apiKey: apiKey, baseURL: baseURL, model: model}
	})
}

// WithTaxonomyFile registers a nested YAML or JSON taxonomy and makes it active.
func WithTaxonomyFile(path string) Option {
	return optionFunc(func(c *clientConfig) {
		c.taxonomyFile = path
	})
}

// WithRulesFile replaces the built-in keyword and brand rules.
func WithRulesFile(path string) Option {
	return optionFunc(func(c *clientConfig) {
		c.rulesFile = path
	})
}

// WithActiveTaxonomy selects the taxonomy used when Classify names none.
func WithActiveTaxonomy(name string) Option {
	return optionFunc(func(c *clientConfig) {
		c.activeTaxonomy = name
	})
}

// WithEmbedTaxonomy embeds taxonomy labels at startup. Requires WithEmbedding.
func WithEmbedTaxonomy() Option {
	return optionFunc(func(c *clientConfig) {
		c.embedTaxonomy = true
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}

// ClassifyOption configures one Classify call.
type ClassifyOption func(*classifyConfig)

type classifyConfig struct {
	mode     Mode
	taxonomy string
	force    bool
	progress ProgressFunc
}

// WithMode selects the classification path (default ModeAuto).
func WithMode(m Mode) ClassifyOption {
	return func(c *classifyConfig) { c.mode = m }
}

// WithTaxonomy classifies against a registered taxonomy instead of the active one.
func WithTaxonomy(name string) ClassifyOption {
	return func(c *classifyConfig) { c.taxonomy = name }
}

// WithForce re-classifies manually assigned products.
func WithForce() ClassifyOption {
	return func(c *classifyConfig) { c.force = true }
}

// WithProgress receives progress after each embedding chunk and LLM wave.
func WithProgress(fn ProgressFunc) ClassifyOption {
	return func(c *classifyConfig) { c.progress = fn }
}
