package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the partcat configuration.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Auth       AuthConfig       `yaml:"auth"`
	Logging    LoggingConfig    `yaml:"logging"`
	Database   DatabaseConfig   `yaml:"database"`
	Postgres   PostgresConfig   `yaml:"postgres"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	LLM        LLMConfig        `yaml:"llm"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Cache      CacheConfig      `yaml:"cache"`
	Taxonomy   TaxonomyConfig   `yaml:"taxonomy"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int   `yaml:"port"`
	ReadTimeoutSec  int   `yaml:"read_timeout_sec"`
	WriteTimeoutSec int   `yaml:"write_timeout_sec"`
	ShutdownSec     int   `yaml:"shutdown_timeout_sec"`
	MaxBodyBytes    int64 `yaml:"max_body_bytes"`
}

// DatabaseConfig holds the Valkey/Redis cache store connection.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
	KeyPrefix        string   `yaml:"key_prefix"`
}

// PostgresConfig holds the remote taxonomy tables connection. Empty DSN disables it.
type PostgresConfig struct {
	DSN          string `yaml:"dsn"`
	TaxonomyName string `yaml:"taxonomy_name"`
}

// EmbeddingConfig holds embedding provider settings. Empty API key disables embedding.
type EmbeddingConfig struct {
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	Provider   string `yaml:"provider"`
}

// LLMConfig holds the chat provider and batching settings. Empty API key disables the LLM path.
type LLMConfig struct {
	APIKey           string  `yaml:"api_key"`
	BaseURL          string  `yaml:"base_url"`
	Model            string  `yaml:"model"`
	Temperature      float32 `yaml:"temperature"`
	BatchSize        int     `yaml:"batch_size"`
	Concurrency      int     `yaml:"concurrency"`
	TimeoutSec       int     `yaml:"timeout_sec"`
	MaxAttempts      int     `yaml:"max_attempts"`
	BaseBackoffMs    int     `yaml:"base_backoff_ms"`
	RetryDelayMs     int     `yaml:"retry_delay_ms"`
	DescriptionLimit int     `yaml:"description_limit"`
}

// ClassifierConfig holds the vector and orchestration thresholds.
type ClassifierConfig struct {
	SubcategoryBroaden    float64 `yaml:"subcategory_broaden"`
	PartTypeCategoryWiden float64 `yaml:"part_type_category_widen"`
	PartTypeTreeWiden     float64 `yaml:"part_type_tree_widen"`
	EscalateBelow         int     `yaml:"escalate_below"`
	EmbedChunkSize        int     `yaml:"embed_chunk_size"`
}

// CacheConfig selects the classification cache backend.
type CacheConfig struct {
	Backend             string  `yaml:"backend"` // memory, valkey (default: memory)
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	TrustThreshold      int     `yaml:"trust_threshold"`
	HashTTLHours        int     `yaml:"hash_ttl_hours"` // 0 = no expiry
}

// TaxonomyConfig holds the taxonomy and keyword rule sources.
type TaxonomyConfig struct {
	Active    string `yaml:"active"`
	File      string `yaml:"file"`
	RulesFile string `yaml:"rules_file"`
	// EmbedOnStart embeds labels of snapshots loaded without vectors when an
	// embedding provider is configured.
	EmbedOnStart bool `yaml:"embed_on_start"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8080
	}
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 120
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.HTTP.MaxBodyBytes <= 0 {
		c.HTTP.MaxBodyBytes = 16 << 20
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Database.KeyPrefix == "" {
		c.Database.KeyPrefix = "partcat:"
	}
	if c.Postgres.TaxonomyName == "" {
		c.Postgres.TaxonomyName = "remote"
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = "BAAI/bge-small-en-v1.5"
	}
	if c.Embedding.Dimensions <= 0 {
		c.Embedding.Dimensions = 384
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "openai"
	}
	if c.LLM.Model == "" {
		c.LLM.Model = "gpt-4o-mini"
	}
	if c.LLM.Temperature <= 0 {
		c.LLM.Temperature = 0.1
	}
	if c.LLM.BatchSize <= 0 {
		c.LLM.BatchSize = 30
	}
	if c.LLM.Concurrency <= 0 {
		c.LLM.Concurrency = 4
	}
	if c.LLM.TimeoutSec <= 0 {
		c.LLM.TimeoutSec = 90
	}
	if c.LLM.MaxAttempts <= 0 {
		c.LLM.MaxAttempts = 4
	}
	if c.LLM.BaseBackoffMs <= 0 {
		c.LLM.BaseBackoffMs = 1000
	}
	if c.LLM.RetryDelayMs <= 0 {
		c.LLM.RetryDelayMs = 500
	}
	if c.LLM.DescriptionLimit <= 0 {
		c.LLM.DescriptionLimit = 200
	}
	if c.Classifier.SubcategoryBroaden <= 0 {
		c.Classifier.SubcategoryBroaden = 0.3
	}
	if c.Classifier.PartTypeCategoryWiden <= 0 {
		c.Classifier.PartTypeCategoryWiden = 0.35
	}
	if c.Classifier.PartTypeTreeWiden <= 0 {
		c.Classifier.PartTypeTreeWiden = 0.3
	}
	if c.Classifier.EscalateBelow <= 0 {
		c.Classifier.EscalateBelow = 40
	}
	if c.Classifier.EmbedChunkSize <= 0 {
		c.Classifier.EmbedChunkSize = 20
	}
	if c.Cache.Backend == "" {
		c.Cache.Backend = "memory"
	}
	if c.Cache.SimilarityThreshold <= 0 {
		c.Cache.SimilarityThreshold = 0.85
	}
	if c.Cache.TrustThreshold <= 0 {
		c.Cache.TrustThreshold = 60
	}
	if c.Taxonomy.Active == "" {
		c.Taxonomy.Active = "aces"
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	switch c.Cache.Backend {
	case "memory":
	case "valkey":
		if len(c.Database.Addrs) == 0 {
			return fmt.Errorf("database.addrs is required for cache.backend \"valkey\"")
		}
	default:
		return fmt.Errorf("cache.backend must be \"memory\" or \"valkey\", got %q", c.Cache.Backend)
	}
	if c.Cache.SimilarityThreshold > 1 {
		return fmt.Errorf("cache.similarity_threshold must be in (0,1], got %g", c.Cache.SimilarityThreshold)
	}
	if c.Cache.TrustThreshold > 100 {
		return fmt.Errorf("cache.trust_threshold must be in [1,100], got %d", c.Cache.TrustThreshold)
	}
	if c.Classifier.EscalateBelow > 100 {
		return fmt.Errorf("classifier.escalate_below must be in [1,100], got %d", c.Classifier.EscalateBelow)
	}
	if c.Embedding.APIKey != "" && c.Embedding.Dimensions != 384 {
		return fmt.Errorf("embedding.dimensions must be 384, got %d", c.Embedding.Dimensions)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
