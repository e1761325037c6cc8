package llm

import "time"

// Config tunes batching, retries and trust thresholds of the LLM classifier.
type Config struct {
	BatchSize      int
	Concurrency    int // requests per wave
	RequestTimeout time.Duration
	MaxAttempts    int
	BaseBackoff    time.Duration // rate limits wait BaseBackoff*2^attempt plus jitter
	RetryDelay     time.Duration // other recoverable errors

	// CacheTrust is the minimum confidence for reusing a content-hash cache hit.
	CacheTrust int
	// DescriptionLimit caps the description runes sent per product.
	DescriptionLimit int

	Validation ValidationConfig
}

// DefaultConfig returns the production settings.
func DefaultConfig() Config {
	return Config{
		BatchSize:        30,
		Concurrency:      4,
		RequestTimeout:   90 * time.Second,
		MaxAttempts:      4,
		BaseBackoff:      time.Second,
		RetryDelay:       500 * time.Millisecond,
		CacheTrust:       60,
		DescriptionLimit: 200,
		Validation:       DefaultValidationConfig(),
	}
}

func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.BatchSize <= 0 {
		c.BatchSize = d.BatchSize
	}
	if c.Concurrency <= 0 {
		c.Concurrency = d.Concurrency
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = d.RequestTimeout
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = d.BaseBackoff
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = d.RetryDelay
	}
	if c.CacheTrust <= 0 {
		c.CacheTrust = d.CacheTrust
	}
	if c.DescriptionLimit <= 0 {
		c.DescriptionLimit = d.DescriptionLimit
	}
	if c.Validation == (ValidationConfig{}) {
		c.Validation = d.Validation
	}
}
