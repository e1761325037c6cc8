package health

import (
	"context"

	"github.com/kailas-cloud/partcat/internal/domain/taxonomy"
)

// CachePinger checks the cache store.
type CachePinger interface {
	Ping(ctx context.Context) error
}

// ProviderChecker checks an LLM or embedding provider.
type ProviderChecker interface {
	HealthCheck(ctx context.Context) error
}

// TaxonomySource resolves the active taxonomy.
type TaxonomySource interface {
	Get(name string) (*taxonomy.Taxonomy, error)
}
