package partcat

import "github.com/kailas-cloud/partcat/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrInvalidRequest         = domain.ErrInvalidRequest
	ErrTaxonomyNotFound       = domain.ErrTaxonomyNotFound
	ErrEmptyTaxonomy          = domain.ErrEmptyTaxonomy
	ErrNoTaxonomyEmbeddings   = domain.ErrNoTaxonomyEmbeddings
	ErrInvalidCredentials     = domain.ErrInvalidCredentials
	ErrQuotaExceeded          = domain.ErrQuotaExceeded
	ErrRateLimited            = domain.ErrRateLimited
	ErrLLMProviderError       = domain.ErrLLMProviderError
	ErrEmbeddingProviderError = domain.ErrEmbeddingProviderError
)

// IsFatal reports whether err aborts a classification run (credentials, quota,
// rejected request, unusable taxonomy) rather than degrading it.
func IsFatal(err error) bool { return domain.IsFatal(err) }
