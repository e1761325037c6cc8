// Package chi exposes the categorization engine over HTTP using the chi router.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	chirouter "github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/partcat/internal/domain/product"
	"github.com/kailas-cloud/partcat/internal/domain/taxonomy"
	"github.com/kailas-cloud/partcat/internal/keyword"
	logpkg "github.com/kailas-cloud/partcat/internal/logger"
	"github.com/kailas-cloud/partcat/internal/metrics"
	categorizeuc "github.com/kailas-cloud/partcat/internal/usecase/categorize"
	healthuc "github.com/kailas-cloud/partcat/internal/usecase/health"
)

const defaultMaxProducts = 5000

// Categorizer runs a classification.
type Categorizer interface {
	Run(ctx context.Context, req categorizeuc.Request) (categorizeuc.Report, error)
}

// Suggester is the single-product keyword matcher.
type Suggester interface {
	Suggest(tax *taxonomy.Taxonomy, in keyword.Input) keyword.Suggestion
}

// Taxonomies is the taxonomy registry as seen by the API.
type Taxonomies interface {
	Get(name string) (*taxonomy.Taxonomy, error)
	SetActive(name string) error
	ActiveName() string
	List() []taxonomy.Summary
}

// HealthChecker aggregates component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// RouterConfig holds the HTTP surface settings.
type RouterConfig struct {
	APIKeys      []string
	MaxBodyBytes int64
	MaxProducts  int
}

// Server holds the HTTP handlers.
type Server struct {
	categorizer   Categorizer
	suggester     Suggester
	taxonomies    Taxonomies
	health        HealthChecker
	logger        *zap.Logger
	maxProducts   int
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	categorizer Categorizer,
	suggester Suggester,
	taxonomies Taxonomies,
	health HealthChecker,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		categorizer:   categorizer,
		suggester:     suggester,
		taxonomies:    taxonomies,
		health:        health,
		logger:        logger,
		maxProducts:   defaultMaxProducts,
		errorHandlers: defaultErrorHandlers(),
	}
}

// Router mounts the API with its middleware chain.
func (s *Server) Router(cfg RouterConfig) http.Handler {
	if cfg.MaxProducts > 0 {
		s.maxProducts = cfg.MaxProducts
	}

	r := chirouter.NewRouter()
	r.Use(jsonRecoverer(s.logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(s.logger))
	r.Use(BearerAuthMiddleware(cfg.APIKeys))
	r.Use(metrics.Middleware())
	r.Use(maxBody(cfg.MaxBodyBytes))

	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Route("/v1", func(r chirouter.Router) {
		r.Post("/classify", s.Classify)
		r.Post("/suggest", s.Suggest)
		r.Get("/taxonomies", s.ListTaxonomies)
		r.Put("/taxonomies/active", s.SetActiveTaxonomy)
		r.Get("/taxonomies/{name}", s.GetTaxonomy)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, CodeBadRequest, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, CodeBadRequest, "method not allowed")
	})
	return r
}

type classifyRequest struct {
	Products          []json.RawMessage `json:"products"`
	Taxonomy          string            `json:"taxonomy"`
	Mode              string            `json:"mode"`
	Force             bool              `json:"force"`
	IncludeEmbeddings bool              `json:"include_embeddings"`
}

type classifyResponse struct {
	categorizeuc.Report
	Taxonomy string             `json:"taxonomy"`
	Products []*product.Product `json:"products"`
}

// Classify handles POST /v1/classify.
func (s *Server) Classify(w http.ResponseWriter, r *http.Request) {
	var req classifyRequest
	if !s.decode(w, r, &req) {
		return
	}
	if len(req.Products) == 0 || len(req.Products) > s.maxProducts {
		writeError(w, http.StatusBadRequest, CodeValidationFailed,
			fmt.Sprintf("products count must be between 1 and %d", s.maxProducts))
		return
	}
	mode, err := categorizeuc.ParseMode(req.Mode)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	products := make([]*product.Product, 0, len(req.Products))
	for i, raw := range req.Products {
		p, err := product.Decode(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, CodeValidationFailed, fmt.Sprintf("product %d: %v", i, err))
			return
		}
		products = append(products, p)
	}

	tax, err := s.taxonomies.Get(req.Taxonomy)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	report, err := s.categorizer.Run(r.Context(), categorizeuc.Request{
		Products: products,
		Taxonomy: tax,
		Mode:     mode,
		Force:    req.Force,
	})
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	if !req.IncludeEmbeddings {
		for _, p := range products {
			p.Embedding = nil
		}
	}
	writeJSON(w, http.StatusOK, classifyResponse{Report: report, Taxonomy: tax.Name(), Products: products})
}

type suggestRequest struct {
	Name        string `json:"name"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Brand       string `json:"brand"`
	Taxonomy    string `json:"taxonomy"`
}

type suggestResponse struct {
	Category     string   `json:"category"`
	Subcategory  string   `json:"subcategory"`
	PartType     string   `json:"part_type"`
	Confidence   int      `json:"confidence"`
	MatchReasons []string `json:"match_reasons"`
}

// Suggest handles POST /v1/suggest: the keyword matcher for a single product.
func (s *Server) Suggest(w http.ResponseWriter, r *http.Request) {
	var req suggestRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Name == "" && req.Title == "" && req.Description == "" {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "name, title or description is required")
		return
	}
	tax, err := s.taxonomies.Get(req.Taxonomy)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	sug := s.suggester.Suggest(tax, keyword.Input{
		Name: req.Name, Title: req.Title, Description: req.Description, Brand: req.Brand,
	})
	reasons := sug.MatchReasons
	if reasons == nil {
		reasons = []string{}
	}
	writeJSON(w, http.StatusOK, suggestResponse{
		Category:     sug.Category,
		Subcategory:  sug.Subcategory,
		PartType:     sug.PartType,
		Confidence:   sug.Confidence,
		MatchReasons: reasons,
	})
}

// ListTaxonomies handles GET /v1/taxonomies.
func (s *Server) ListTaxonomies(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"active": s.taxonomies.ActiveName(),
		"items":  s.taxonomies.List(),
	})
}

// GetTaxonomy handles GET /v1/taxonomies/{name}.
func (s *Server) GetTaxonomy(w http.ResponseWriter, r *http.Request) {
	tax, err := s.taxonomies.Get(chirouter.URLParam(r, "name"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"summary":    tax.Summary(),
		"categories": tax.Nested(),
	})
}

// SetActiveTaxonomy handles PUT /v1/taxonomies/active.
func (s *Server) SetActiveTaxonomy(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "name is required")
		return
	}
	if err := s.taxonomies.SetActive(req.Name); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	logpkg.FromContext(r.Context()).Info("active taxonomy changed", zap.String("taxonomy", req.Name))
	writeJSON(w, http.StatusOK, map[string]string{"active": s.taxonomies.ActiveName()})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, map[string]any{
		"status": report.Status,
		"checks": report.Checks,
	})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil {
		return true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, CodeBadRequest,
			fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
		return false
	}
	writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
	return false
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logpkg.FromContext(r.Context())
	for _, h := range s.errorHandlers {
		if h(w, err) {
			log.Warn("domain error", zap.Error(err))
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}
