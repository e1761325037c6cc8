package domain

import (
	"context"
	"errors"
)

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists signals a duplicate taxonomy node within its parent scope.
	ErrAlreadyExists = errors.New("already exists")
	// ErrTaxonomyNotFound signals an unknown taxonomy name in the registry.
	ErrTaxonomyNotFound = errors.New("taxonomy not found")
	// ErrEmptyTaxonomy signals a taxonomy without any category.
	ErrEmptyTaxonomy = errors.New("taxonomy has no categories")
	// ErrNoTaxonomyEmbeddings signals a taxonomy where no node carries an embedding.
	ErrNoTaxonomyEmbeddings = errors.New("taxonomy has no embeddings")
	// ErrInvalidEmbedding signals a missing or malformed vector.
	ErrInvalidEmbedding = errors.New("invalid embedding")
	// ErrInvalidRules signals a malformed keyword rule table.
	ErrInvalidRules = errors.New("invalid keyword rules")
	// ErrInvalidRequest signals a malformed classification request.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrInvalidCredentials signals a rejected API key.
	ErrInvalidCredentials = errors.New("invalid provider credentials")
	// ErrQuotaExceeded signals an exhausted provider quota.
	ErrQuotaExceeded = errors.New("provider quota exceeded")
	// ErrBadRequest signals a 4xx client error from a provider.
	ErrBadRequest = errors.New("provider rejected request")
	// ErrRateLimited signals a rate limit hit.
	ErrRateLimited = errors.New("rate limited")
	// ErrLLMProviderError signals a transient LLM provider failure.
	ErrLLMProviderError = errors.New("llm provider error")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrUnparsableResponse signals an LLM response no parse strategy could decode.
	ErrUnparsableResponse = errors.New("unparsable llm response")
)

// IsFatal reports whether err must abort a whole classification run.
// Rate limits, provider 5xx, network failures and timeouts are retryable.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	for _, fatal := range []error{
		ErrInvalidCredentials,
		ErrQuotaExceeded,
		ErrBadRequest,
		ErrEmptyTaxonomy,
		ErrNoTaxonomyEmbeddings,
	} {
		if errors.Is(err, fatal) {
			return true
		}
	}
	return false
}

// IsRateLimit reports whether err is a provider rate limit.
func IsRateLimit(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

// IsTimeout reports whether err is a request timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}
