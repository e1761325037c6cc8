package health

import (
	"context"

	"github.com/kailas-cloud/partcat/internal/domain"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure; keyword classification still works.
	Degraded Status = "degraded"
	// Unhealthy indicates nothing can be classified.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks.
type Service struct {
	taxonomies TaxonomySource
	cache      CachePinger
	llm        ProviderChecker
	embedding  ProviderChecker
}

// Option adds an optional component to the checks.
type Option func(*Service)

// WithCache checks the cache store.
func WithCache(c CachePinger) Option { return func(s *Service) { s.cache = c } }

// WithLLM checks the LLM provider.
func WithLLM(c ProviderChecker) Option { return func(s *Service) { s.llm = c } }

// WithEmbedding checks the embedding provider.
func WithEmbedding(c ProviderChecker) Option { return func(s *Service) { s.embedding = c } }

// New creates a Service. Components not configured are absent from the report.
func New(taxonomies TaxonomySource, opts ...Option) *Service {
	s := &Service{taxonomies: taxonomies}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Check runs health checks against all components.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)

	checks["taxonomy"] = result(s.checkTaxonomy())
	if s.cache != nil {
		checks["cache"] = result(s.cache.Ping(ctx))
	}
	if s.llm != nil {
		checks["llm"] = result(s.llm.HealthCheck(ctx))
	}
	if s.embedding != nil {
		checks["embedding"] = result(s.embedding.HealthCheck(ctx))
	}

	status := Healthy
	for _, v := range checks {
		if v == CheckError {
			status = Degraded
			break
		}
	}
	if checks["taxonomy"] == CheckError {
		status = Unhealthy
	}

	return Report{Status: status, Checks: checks}
}

func (s *Service) checkTaxonomy() error {
	tax, err := s.taxonomies.Get("")
	if err != nil {
		return err
	}
	if tax.IsEmpty() {
		return domain.ErrEmptyTaxonomy
	}
	return nil
}

func result(err error) CheckResult {
	if err != nil {
		return CheckError
	}
	return CheckOK
}
