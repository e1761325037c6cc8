package partcat

import (
	"context"

	"github.com/kailas-cloud/partcat/internal/domain/taxonomy"
	"github.com/kailas-cloud/partcat/internal/keyword"
	categorizeuc "github.com/kailas-cloud/partcat/internal/usecase/categorize"
	healthuc "github.com/kailas-cloud/partcat/internal/usecase/health"
)

// --- categorizer mock ---

type mockCategorizer struct {
	runFn func(ctx context.Context, req categorizeuc.Request) (categorizeuc.Report, error)
	last  categorizeuc.Request
}

func (m *mockCategorizer) Run(ctx context.Context, req categorizeuc.Request) (categorizeuc.Report, error) {
	m.last = req
	return m.runFn(ctx, req)
}

// --- suggester mock ---

type mockSuggester struct {
	suggestFn func(tax *taxonomy.Taxonomy, in keyword.Input) keyword.Suggestion
}

func (m *mockSuggester) Suggest(tax *taxonomy.Taxonomy, in keyword.Input) keyword.Suggestion {
	return m.suggestFn(tax, in)
}

// --- health mock ---

type mockHealth struct {
	report healthuc.Report
}

func (m *mockHealth) Check(_ context.Context) healthuc.Report { return m.report }

// newTestClient wires mocks around a real registry holding the built-in tree.
func newTestClient(cat categorizer, sug suggester, h healthUseCase) *Client {
	reg := taxonomy.NewRegistry(taxonomy.ACESName)
	aces, err := taxonomy.ACES()
	if err != nil {
		panic(err)
	}
	reg.Put(aces)
	return &Client{
		categorize: cat,
		suggester:  sug,
		taxonomies: reg,
		health:     h,
	}
}
