package chi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/kailas-cloud/partcat/internal/domain"
)

// ErrorCode is the machine-readable error code of an API error body.
type ErrorCode string

const (
	CodeBadRequest           ErrorCode = "bad_request"
	CodeUnauthorized         ErrorCode = "unauthorized"
	CodeValidationFailed     ErrorCode = "validation_failed"
	CodeTaxonomyNotFound     ErrorCode = "taxonomy_not_found"
	CodeEmptyTaxonomy        ErrorCode = "empty_taxonomy"
	CodeNoTaxonomyEmbeddings ErrorCode = "no_taxonomy_embeddings"
	CodeInvalidCredentials   ErrorCode = "provider_credentials_invalid"
	CodeQuotaExceeded        ErrorCode = "provider_quota_exceeded"
	CodeProviderBadRequest   ErrorCode = "provider_bad_request"
	CodeRateLimited          ErrorCode = "rate_limited"
	CodeProviderError        ErrorCode = "provider_error"
	CodeInternalError        ErrorCode = "internal_error"
)

// ErrorResponse is the JSON error body.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

// defaultErrorHandlers is ordered: the first matching sentinel wins.
func defaultErrorHandlers() []errorHandler {
	return []errorHandler{
		sentinelHandler(domain.ErrTaxonomyNotFound, http.StatusNotFound, CodeTaxonomyNotFound),
		sentinelHandler(domain.ErrEmptyTaxonomy, http.StatusUnprocessableEntity, CodeEmptyTaxonomy),
		sentinelHandler(domain.ErrNoTaxonomyEmbeddings, http.StatusUnprocessableEntity, CodeNoTaxonomyEmbeddings),
		sentinelHandler(domain.ErrInvalidRequest, http.StatusBadRequest, CodeValidationFailed),
		sentinelHandler(domain.ErrInvalidEmbedding, http.StatusBadRequest, CodeValidationFailed),
		sentinelHandler(domain.ErrInvalidCredentials, http.StatusBadGateway, CodeInvalidCredentials),
		sentinelHandler(domain.ErrQuotaExceeded, http.StatusPaymentRequired, CodeQuotaExceeded),
		sentinelHandler(domain.ErrBadRequest, http.StatusBadGateway, CodeProviderBadRequest),
		sentinelHandler(domain.ErrRateLimited, http.StatusTooManyRequests, CodeRateLimited),
		sentinelHandler(domain.ErrLLMProviderError, http.StatusBadGateway, CodeProviderError),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, CodeProviderError),
	}
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrTaxonomyNotFound,
		domain.ErrEmptyTaxonomy,
		domain.ErrNoTaxonomyEmbeddings,
		domain.ErrInvalidEmbedding,
		domain.ErrInvalidCredentials,
		domain.ErrQuotaExceeded,
		domain.ErrBadRequest,
		domain.ErrRateLimited,
		domain.ErrLLMProviderError,
		domain.ErrEmbeddingProviderError,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	// Validation messages are written for the caller.
	if errors.Is(err, domain.ErrInvalidRequest) {
		return err.Error()
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, safeDomainMessage(err))
		return true
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}
