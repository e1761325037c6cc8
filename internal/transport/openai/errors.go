package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/kailas-cloud/partcat/internal/domain"
)

// parseAPIError maps an OpenAI-compatible API failure onto the domain sentinels.
// Unclassified failures, provider 5xx and network errors wrap fallback.
// Context errors are kept unwrapped so timeouts stay recognizable.
func parseAPIError(kind string, err error, fallback error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s request: %w", kind, err)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		hint := fmt.Sprintf("%v %s %s", apiErr.Code, apiErr.Type, apiErr.Message)
		return fmt.Errorf("%s API error %d: %s: %w",
			kind, apiErr.HTTPStatusCode, apiErr.Message, sentinelFor(apiErr.HTTPStatusCode, hint, fallback))
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		detail := extractDetail(reqErr.Body)
		if detail == "" {
			detail = string(reqErr.Body)
		}
		return fmt.Errorf("%s API error %d: %s: %w",
			kind, reqErr.HTTPStatusCode, detail, sentinelFor(reqErr.HTTPStatusCode, detail, fallback))
	}

	return fmt.Errorf("%s request failed: %v: %w", kind, err, fallback) //nolint:errorlint // provider error flattened
}

func sentinelFor(status int, hint string, fallback error) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return domain.ErrInvalidCredentials
	case status == http.StatusPaymentRequired,
		status == http.StatusTooManyRequests && strings.Contains(hint, "insufficient_quota"):
		return domain.ErrQuotaExceeded
	case status == http.StatusTooManyRequests:
		return domain.ErrRateLimited
	case status == http.StatusRequestTimeout || status >= http.StatusInternalServerError:
		return fallback
	case status >= http.StatusBadRequest:
		return domain.ErrBadRequest
	default:
		return fallback
	}
}

// extractDetail extracts the "detail" field from a JSON error body (Nebius error format).
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}
