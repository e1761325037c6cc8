package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsMiddleware_LabelsByRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware())
	r.Get("/v1/taxonomies/{name}", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/v1/taxonomies/{name}", "200"))
	for _, name := range []string{"aces", "remote"} {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest("GET", "/v1/taxonomies/"+name, http.NoBody))
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}
	}

	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/v1/taxonomies/{name}", "200"))
	if after-before != 2 {
		t.Errorf("expected 2 requests under the route pattern, got %f", after-before)
	}
	if testutil.CollectAndCount(httpRequestDuration) == 0 {
		t.Error("expected http_request_duration_seconds to have observations")
	}
	if v := testutil.ToFloat64(httpInFlight); v != 0 {
		t.Errorf("expected no requests in flight, got %f", v)
	}
}

func TestMetricsMiddleware_StatusCodes(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware())
	r.Post("/v1/classify", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("fail") != "" {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("{}"))
	})

	tests := []struct {
		target string
		status string
	}{
		{"/v1/classify", "200"},
		{"/v1/classify?fail=1", "502"},
	}
	for _, tc := range tests {
		t.Run(tc.status, func(t *testing.T) {
			r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("POST", tc.target, http.NoBody))

			if val := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("POST", "/v1/classify", tc.status)); val < 1 {
				t.Errorf("expected requests_total with status %s >= 1, got %f", tc.status, val)
			}
		})
	}
}

func TestRouteLabel_Unmatched(t *testing.T) {
	if got := routeLabel(httptest.NewRequest("GET", "/anything", http.NoBody)); got != "unmatched" {
		t.Errorf("routeLabel without chi context = %q, want unmatched", got)
	}
}

func TestRegisterHTTPMetrics_Idempotent(t *testing.T) {
	RegisterHTTPMetrics()
	RegisterHTTPMetrics()
	if !httpMetricsRegistered {
		t.Error("expected metrics to be registered")
	}
}
