package health

import (
	"context"
	"errors"
	"testing"

	"github.com/kailas-cloud/partcat/internal/domain/taxonomy"
)

// --- Mocks ---

type mockCachePinger struct {
	err error
}

func (m *mockCachePinger) Ping(_ context.Context) error { return m.err }

type mockProvider struct {
	err error
}

func (m *mockProvider) HealthCheck(_ context.Context) error { return m.err }

func registry(t *testing.T) *taxonomy.Registry {
	t.Helper()
	tax, err := taxonomy.ACES()
	if err != nil {
		t.Fatalf("ACES: %v", err)
	}
	r := taxonomy.NewRegistry(tax.Name())
	r.Put(tax)
	return r
}

// --- Tests ---

func TestCheck_AllHealthy(t *testing.T) {
	svc := New(registry(t),
		WithCache(&mockCachePinger{}), WithLLM(&mockProvider{}), WithEmbedding(&mockProvider{}))
	r := svc.Check(context.Background())

	if r.Status != Healthy {
		t.Errorf("expected %q, got %q", Healthy, r.Status)
	}
	for _, name := range []string{"taxonomy", "cache", "llm", "embedding"} {
		if r.Checks[name] != CheckOK {
			t.Errorf("expected %s %q, got %q", name, CheckOK, r.Checks[name])
		}
	}
}

func TestCheck_CacheError(t *testing.T) {
	svc := New(registry(t), WithCache(&mockCachePinger{err: errors.New("conn refused")}), WithLLM(&mockProvider{}))
	r := svc.Check(context.Background())

	if r.Status != Degraded {
		t.Errorf("expected %q, got %q", Degraded, r.Status)
	}
	if r.Checks["cache"] != CheckError {
		t.Errorf("expected cache %q, got %q", CheckError, r.Checks["cache"])
	}
	if r.Checks["llm"] != CheckOK {
		t.Errorf("expected llm %q, got %q", CheckOK, r.Checks["llm"])
	}
}

func TestCheck_ProviderErrors(t *testing.T) {
	svc := New(registry(t),
		WithLLM(&mockProvider{err: errors.New("401")}),
		WithEmbedding(&mockProvider{err: errors.New("timeout")}),
	)
	r := svc.Check(context.Background())

	if r.Status != Degraded {
		t.Errorf("expected %q, got %q", Degraded, r.Status)
	}
	if r.Checks["llm"] != CheckError || r.Checks["embedding"] != CheckError {
		t.Errorf("expected provider errors, got %v", r.Checks)
	}
}

func TestCheck_NoActiveTaxonomy(t *testing.T) {
	svc := New(taxonomy.NewRegistry("missing"), WithCache(&mockCachePinger{}))
	r := svc.Check(context.Background())

	if r.Status != Unhealthy {
		t.Errorf("expected %q, got %q", Unhealthy, r.Status)
	}
	if r.Checks["taxonomy"] != CheckError {
		t.Error("expected taxonomy error")
	}
}

func TestCheck_OptionalComponentsAbsent(t *testing.T) {
	svc := New(registry(t))
	r := svc.Check(context.Background())

	if r.Status != Healthy {
		t.Errorf("expected %q, got %q", Healthy, r.Status)
	}
	for _, name := range []string{"cache", "llm", "embedding"} {
		if _, ok := r.Checks[name]; ok {
			t.Errorf("%s check should be absent when not configured", name)
		}
	}
}
