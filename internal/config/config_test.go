package config

import (
	"os"
	"path/filepath"
	"testing"
)

func validConfig() Config {
	cfg := Config{HTTP: HTTPConfig{Port: 8080}}
	cfg.ApplyDefaults()
	return cfg
}

func TestValidate_Defaults(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_InvalidPort(t *testing.T) {
	cfg := validConfig()
	cfg.HTTP.Port = 0

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for invalid port")
	}
}

func TestValidate_ValkeyRequiresAddrs(t *testing.T) {
	cfg := validConfig()
	cfg.Cache.Backend = "valkey"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for missing valkey addrs")
	}

	cfg.Database.Addrs = []string{"localhost:6379"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error with addrs: %v", err)
	}
}

func TestValidate_UnknownBackend(t *testing.T) {
	cfg := validConfig()
	cfg.Cache.Backend = "memcached"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for unknown backend")
	}
	expected := `cache.backend must be "memory" or "valkey", got "memcached"`
	if err.Error() != expected {
		t.Errorf("unexpected error message:\ngot:  %q\nwant: %q", err.Error(), expected)
	}
}

func TestValidate_Ranges(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"similarity above one", func(c *Config) { c.Cache.SimilarityThreshold = 1.5 }},
		{"trust above 100", func(c *Config) { c.Cache.TrustThreshold = 101 }},
		{"escalation above 100", func(c *Config) { c.Classifier.EscalateBelow = 120 }},
		{"wrong embedding dims", func(c *Config) {
			c.Embedding.APIKey = "key"
			c.Embedding.Dimensions = 768
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.HTTP.Port != 8080 {
		t.Errorf("expected Port=8080, got %d", cfg.HTTP.Port)
	}
	if cfg.HTTP.ReadTimeoutSec != 10 {
		t.Errorf("expected ReadTimeoutSec=10, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.HTTP.WriteTimeoutSec != 120 {
		t.Errorf("expected WriteTimeoutSec=120, got %d", cfg.HTTP.WriteTimeoutSec)
	}
	if cfg.Database.KeyPrefix != "partcat:" {
		t.Errorf("expected KeyPrefix='partcat:', got %q", cfg.Database.KeyPrefix)
	}
	if cfg.Embedding.Dimensions != 384 {
		t.Errorf("expected Dimensions=384, got %d", cfg.Embedding.Dimensions)
	}
	if cfg.LLM.BatchSize != 30 || cfg.LLM.Concurrency != 4 || cfg.LLM.TimeoutSec != 90 || cfg.LLM.MaxAttempts != 4 {
		t.Errorf("unexpected llm defaults: %+v", cfg.LLM)
	}
	if cfg.LLM.BaseBackoffMs != 1000 || cfg.LLM.RetryDelayMs != 500 {
		t.Errorf("unexpected llm backoff defaults: %+v", cfg.LLM)
	}
	if cfg.Classifier.EscalateBelow != 40 || cfg.Classifier.EmbedChunkSize != 20 {
		t.Errorf("unexpected classifier defaults: %+v", cfg.Classifier)
	}
	if cfg.Cache.Backend != "memory" || cfg.Cache.SimilarityThreshold != 0.85 || cfg.Cache.TrustThreshold != 60 {
		t.Errorf("unexpected cache defaults: %+v", cfg.Cache)
	}
	if cfg.Taxonomy.Active != "aces" {
		t.Errorf("expected active taxonomy 'aces', got %q", cfg.Taxonomy.Active)
	}
}

func TestApplyDefaults_NoOverride(t *testing.T) {
	cfg := Config{
		HTTP:     HTTPConfig{ReadTimeoutSec: 30, WriteTimeoutSec: 60, ShutdownSec: 5},
		Database: DatabaseConfig{ReadinessTimeout: 15, KeyPrefix: "custom:"},
		LLM:      LLMConfig{BatchSize: 10, Model: "llama"},
		Cache:    CacheConfig{Backend: "valkey", SimilarityThreshold: 0.9},
	}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 30 {
		t.Errorf("expected ReadTimeoutSec=30, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.HTTP.WriteTimeoutSec != 60 {
		t.Errorf("expected WriteTimeoutSec=60, got %d", cfg.HTTP.WriteTimeoutSec)
	}
	if cfg.Database.KeyPrefix != "custom:" {
		t.Errorf("expected KeyPrefix='custom:', got %q", cfg.Database.KeyPrefix)
	}
	if cfg.LLM.BatchSize != 10 || cfg.LLM.Model != "llama" {
		t.Errorf("llm overrides lost: %+v", cfg.LLM)
	}
	if cfg.Cache.Backend != "valkey" || cfg.Cache.SimilarityThreshold != 0.9 {
		t.Errorf("cache overrides lost: %+v", cfg.Cache)
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("PARTCAT_TEST_KEY", "secret")

	got := string(expandEnvVars([]byte("a: ${PARTCAT_TEST_KEY}\nb: ${PARTCAT_TEST_UNSET:-fallback}\nc: ${PARTCAT_TEST_UNSET}")))
	want := "a: secret\nb: fallback\nc: "
	if got != want {
		t.Errorf("expandEnvVars = %q, want %q", got, want)
	}
}

func TestLoad_FromConfigDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "config"), 0o750); err != nil {
		t.Fatal(err)
	}
	data := []byte("http:\n  port: 9090\nllm:\n  api_key: ${PARTCAT_TEST_LLM_KEY}\n")
	if err := os.WriteFile(filepath.Join(dir, "config", "unittest.yaml"), data, 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PARTCAT_TEST_LLM_KEY", "sk-test")
	t.Chdir(dir)

	cfg, err := Load("unittest")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTP.Port != 9090 || cfg.LLM.APIKey != "sk-test" {
		t.Errorf("unexpected config: port=%d key=%q", cfg.HTTP.Port, cfg.LLM.APIKey)
	}
	if cfg.LLM.BatchSize != 30 {
		t.Errorf("defaults not applied: batch=%d", cfg.LLM.BatchSize)
	}
}

func TestGetEnv(t *testing.T) {
	t.Setenv("ENV", "")
	if got := GetEnv(); got != "local" {
		t.Errorf("GetEnv() = %q, want local", got)
	}
	t.Setenv("ENV", "prod")
	if got := GetEnv(); got != "prod" {
		t.Errorf("GetEnv() = %q, want prod", got)
	}
}
