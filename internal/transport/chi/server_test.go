package chi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/partcat/internal/domain"
	"github.com/kailas-cloud/partcat/internal/domain/classification"
	"github.com/kailas-cloud/partcat/internal/domain/taxonomy"
	"github.com/kailas-cloud/partcat/internal/keyword"
	categorizeuc "github.com/kailas-cloud/partcat/internal/usecase/categorize"
	healthuc "github.com/kailas-cloud/partcat/internal/usecase/health"
)

// --- Mocks ---

type mockCategorizer struct {
	got categorizeuc.Request
	err error
}

func (m *mockCategorizer) Run(_ context.Context, req categorizeuc.Request) (categorizeuc.Report, error) {
	m.got = req
	if m.err != nil {
		return categorizeuc.Report{}, m.err
	}
	rep := categorizeuc.Report{Mode: req.Mode, Results: make([]classification.Result, len(req.Products))}
	for i, p := range req.Products {
		rep.Results[i] = classification.Result{
			ProductID: p.ID, Category: "Engine", Subcategory: "Filters", PartType: "Engine Oil Filter",
			Confidence: 88, Method: classification.MethodLLM,
		}
		p.Apply(rep.Results[i].Suggestion())
	}
	rep.Stats.Total = len(req.Products)
	return rep, nil
}

type mockSuggester struct {
	got keyword.Input
}

func (m *mockSuggester) Suggest(_ *taxonomy.Taxonomy, in keyword.Input) keyword.Suggestion {
	m.got = in
	if !strings.Contains(strings.ToLower(in.Name), "filter") {
		return keyword.Suggestion{}
	}
	return keyword.Suggestion{
		Category: "Engine", Subcategory: "Filters", PartType: "Engine Oil Filter",
		Confidence: 80, MatchReasons: []string{"exact part type name"},
	}
}

type mockHealth struct {
	status healthuc.Status
}

func (m *mockHealth) Check(_ context.Context) healthuc.Report {
	return healthuc.Report{Status: m.status, Checks: map[string]healthuc.CheckResult{"taxonomy": healthuc.CheckOK}}
}

type fixture struct {
	cat    *mockCategorizer
	sug    *mockSuggester
	health *mockHealth
	reg    *taxonomy.Registry
	router http.Handler
}

func newFixture(t *testing.T, cfg RouterConfig) *fixture {
	t.Helper()
	aces, err := taxonomy.ACES()
	if err != nil {
		t.Fatalf("ACES: %v", err)
	}
	small, err := taxonomy.ParseNested("small", []byte(`{"Engine": {"Filters": ["Engine Oil Filter"]}}`))
	if err != nil {
		t.Fatalf("ParseNested: %v", err)
	}
	reg := taxonomy.NewRegistry(taxonomy.ACESName)
	reg.Put(aces)
	reg.Put(small)

	f := &fixture{
		cat:    &mockCategorizer{},
		sug:    &mockSuggester{},
		health: &mockHealth{status: healthuc.Healthy},
		reg:    reg,
	}
	f.router = NewServer(f.cat, f.sug, reg, f.health, nil).Router(cfg)
	return f
}

func (f *fixture) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var e ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&e); err != nil {
		t.Fatalf("decode error body: %v (%s)", err, rr.Body.String())
	}
	return e
}

// --- Tests ---

func TestClassify_OK(t *testing.T) {
	f := newFixture(t, RouterConfig{})
	rr := f.do(http.MethodPost, "/v1/classify", `{
		"mode": "llm",
		"products": [
			{"id": "a", "Product Name": "Engine Oil Filter", "embedding": [0.1, 0.2]},
			{"sku": "X1", "title": "Oil filter wrench"}
		]
	}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header")
	}

	if f.cat.got.Mode != categorizeuc.ModeLLM || f.cat.got.Taxonomy.Name() != taxonomy.ACESName {
		t.Errorf("request = mode %q taxonomy %q", f.cat.got.Mode, f.cat.got.Taxonomy.Name())
	}
	if len(f.cat.got.Products) != 2 || f.cat.got.Products[0].Name != "Engine Oil Filter" {
		t.Fatalf("products not normalized: %+v", f.cat.got.Products)
	}

	var resp struct {
		Mode     string                  `json:"mode"`
		Taxonomy string                  `json:"taxonomy"`
		Results  []classification.Result `json:"results"`
		Stats    classification.Stats    `json:"stats"`
		Products []map[string]any        `json:"products"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Mode != "llm" || resp.Taxonomy != "aces" || len(resp.Results) != 2 || resp.Stats.Total != 2 {
		t.Errorf("unexpected response: %+v", resp)
	}
	if resp.Products[0]["status"] != "suggested" || resp.Products[0]["suggested_part_type"] != "Engine Oil Filter" {
		t.Errorf("product not updated: %v", resp.Products[0])
	}
	if _, ok := resp.Products[0]["embedding"]; ok {
		t.Error("embeddings should be omitted unless requested")
	}
}

func TestClassify_NamedTaxonomyAndForce(t *testing.T) {
	f := newFixture(t, RouterConfig{})
	rr := f.do(http.MethodPost, "/v1/classify",
		`{"taxonomy": "small", "force": true, "products": [{"name": "Oil Filter", "status": "manual-assigned"}]}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	if f.cat.got.Taxonomy.Name() != "small" || !f.cat.got.Force || f.cat.got.Mode != categorizeuc.ModeAuto {
		t.Errorf("unexpected request: %+v", f.cat.got)
	}
}

func TestClassify_Validation(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
		code   ErrorCode
	}{
		{"invalid json", `{`, http.StatusBadRequest, CodeBadRequest},
		{"no products", `{"products": []}`, http.StatusBadRequest, CodeValidationFailed},
		{"too many products", `{"products": [{"name":"a"},{"name":"b"},{"name":"c"}]}`,
			http.StatusBadRequest, CodeValidationFailed},
		{"product without text", `{"products": [{"brand": "3M"}]}`, http.StatusBadRequest, CodeValidationFailed},
		{"unknown mode", `{"mode": "magic", "products": [{"name": "a"}]}`, http.StatusBadRequest, CodeValidationFailed},
		{"unknown taxonomy", `{"taxonomy": "nope", "products": [{"name": "a"}]}`,
			http.StatusNotFound, CodeTaxonomyNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, RouterConfig{MaxProducts: 2})
			rr := f.do(http.MethodPost, "/v1/classify", tt.body)
			if rr.Code != tt.status {
				t.Fatalf("status = %d, want %d (%s)", rr.Code, tt.status, rr.Body.String())
			}
			if e := decodeError(t, rr); e.Code != tt.code {
				t.Errorf("code = %q, want %q", e.Code, tt.code)
			}
		})
	}
}

func TestClassify_ErrorMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   ErrorCode
		msg    string
	}{
		{fmt.Errorf("categorize: llm classify: %w", domain.ErrQuotaExceeded),
			http.StatusPaymentRequired, CodeQuotaExceeded, domain.ErrQuotaExceeded.Error()},
		{fmt.Errorf("categorize: %w", domain.ErrInvalidCredentials),
			http.StatusBadGateway, CodeInvalidCredentials, domain.ErrInvalidCredentials.Error()},
		{fmt.Errorf("categorize: vector classify: %w", domain.ErrNoTaxonomyEmbeddings),
			http.StatusUnprocessableEntity, CodeNoTaxonomyEmbeddings, domain.ErrNoTaxonomyEmbeddings.Error()},
		{fmt.Errorf("llm mode requires a configured provider: %w", domain.ErrInvalidRequest),
			http.StatusBadRequest, CodeValidationFailed, "llm mode requires a configured provider: invalid request"},
		{fmt.Errorf("secret connection string leaked"), http.StatusInternalServerError, CodeInternalError, "internal error"},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			f := newFixture(t, RouterConfig{})
			f.cat.err = tt.err
			rr := f.do(http.MethodPost, "/v1/classify", `{"products": [{"name": "a"}]}`)
			if rr.Code != tt.status {
				t.Fatalf("status = %d, want %d", rr.Code, tt.status)
			}
			if e := decodeError(t, rr); e.Code != tt.code || e.Message != tt.msg {
				t.Errorf("error = %+v, want %s %q", e, tt.code, tt.msg)
			}
		})
	}
}

func TestClassify_BodyTooLarge(t *testing.T) {
	f := newFixture(t, RouterConfig{MaxBodyBytes: 32})
	rr := f.do(http.MethodPost, "/v1/classify", `{"products": [{"name": "a very long product name"}]}`)
	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413", rr.Code)
	}
}

func TestSuggest(t *testing.T) {
	f := newFixture(t, RouterConfig{})

	rr := f.do(http.MethodPost, "/v1/suggest", `{"name": "Engine Oil Filter", "brand": "Fram"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var got suggestResponse
	if err := json.NewDecoder(rr.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.PartType != "Engine Oil Filter" || got.Confidence != 80 || f.sug.got.Brand != "Fram" {
		t.Errorf("unexpected suggestion: %+v", got)
	}

	rr = f.do(http.MethodPost, "/v1/suggest", `{"name": "Qwerty"}`)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"match_reasons":[]`) {
		t.Errorf("no-match response = %d %s", rr.Code, rr.Body.String())
	}

	rr = f.do(http.MethodPost, "/v1/suggest", `{"brand": "Fram"}`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("missing text: status = %d, want 400", rr.Code)
	}
}

func TestTaxonomies(t *testing.T) {
	f := newFixture(t, RouterConfig{})

	rr := f.do(http.MethodGet, "/v1/taxonomies", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("list status = %d", rr.Code)
	}
	var list struct {
		Active string             `json:"active"`
		Items  []taxonomy.Summary `json:"items"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if list.Active != "aces" || len(list.Items) != 2 {
		t.Errorf("unexpected list: %+v", list)
	}

	rr = f.do(http.MethodGet, "/v1/taxonomies/small", "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"Engine Oil Filter"`) {
		t.Errorf("get = %d %s", rr.Code, rr.Body.String())
	}

	rr = f.do(http.MethodPut, "/v1/taxonomies/active", `{"name": "small"}`)
	if rr.Code != http.StatusOK || f.reg.ActiveName() != "small" {
		t.Errorf("set active = %d, active %q", rr.Code, f.reg.ActiveName())
	}

	rr = f.do(http.MethodPut, "/v1/taxonomies/active", `{"name": "missing"}`)
	if rr.Code != http.StatusNotFound {
		t.Errorf("set unknown active = %d, want 404", rr.Code)
	}
}

func TestHealthCheck(t *testing.T) {
	for status, want := range map[healthuc.Status]int{
		healthuc.Healthy:   http.StatusOK,
		healthuc.Degraded:  http.StatusOK,
		healthuc.Unhealthy: http.StatusServiceUnavailable,
	} {
		f := newFixture(t, RouterConfig{APIKeys: []string{"secret"}})
		f.health.status = status
		rr := f.do(http.MethodGet, "/health", "")
		if rr.Code != want {
			t.Errorf("%s: status = %d, want %d", status, rr.Code, want)
		}
		if !strings.Contains(rr.Body.String(), `"status":"`+string(status)+`"`) {
			t.Errorf("%s: body = %s", status, rr.Body.String())
		}
	}
}

func TestRouter_AuthAndNotFound(t *testing.T) {
	f := newFixture(t, RouterConfig{APIKeys: []string{"secret"}})

	if rr := f.do(http.MethodPost, "/v1/suggest", `{"name": "Oil Filter"}`); rr.Code != http.StatusUnauthorized {
		t.Errorf("unauthenticated: status = %d, want 401", rr.Code)
	}
	if rr := f.do(http.MethodGet, "/metrics", ""); rr.Code != http.StatusOK {
		t.Errorf("metrics: status = %d, want 200", rr.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/unknown", http.NoBody)
	req.Header.Set("Authorization", "Bearer secret")
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Errorf("unknown route: status = %d, want 404", rr.Code)
	}
}

func TestRecoverer_ReturnsJSON(t *testing.T) {
	h := jsonRecoverer(zap.NewNop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/classify", http.NoBody))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rr.Code)
	}
	if e := decodeError(t, rr); e.Code != CodeInternalError {
		t.Errorf("code = %q", e.Code)
	}
}
