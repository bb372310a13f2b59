package search

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/research-report-service/internal/domain"
	"github.com/helixir/research-report-service/internal/papersources"
)

// fakeBackend is a scripted papersources.Source for gateway tests. Results
// and errors are consumed per call in order; queries are recorded.
type fakeBackend struct {
	name    string
	enabled bool
	queries []string
	results [][]*domain.AcademicSource
	errs    []error
	calls   int
}

func (f *fakeBackend) Search(_ context.Context, params papersources.SearchParams) (*papersources.SearchResult, error) {
	f.queries = append(f.queries, params.Query)
	i := f.calls
	f.calls++

	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}

	var sources []*domain.AcademicSource
	if i < len(f.results) {
		sources = f.results[i]
	}
	return &papersources.SearchResult{
		Sources:      sources,
		TotalResults: len(sources),
		Source:       domain.SourceTypeOpenAlex,
	}, nil
}

func (f *fakeBackend) SourceType() domain.SourceType { return domain.SourceTypeOpenAlex }
func (f *fakeBackend) Name() string                  { return f.name }
func (f *fakeBackend) IsEnabled() bool               { return f.enabled }

// fakeResolver returns canned works by DOI key.
type fakeResolver struct {
	works map[string]*domain.AcademicSource
	calls []string
}

func (f *fakeResolver) GetByDOI(_ context.Context, doi string) (*domain.AcademicSource, error) {
	f.calls = append(f.calls, doi)
	if w, ok := f.works[domain.DOIKey(doi)]; ok {
		return w, nil
	}
	return nil, domain.ErrNotFound
}

func src(doi, title string) *domain.AcademicSource {
	return &domain.AcademicSource{
		Title:      title,
		DOI:        doi,
		Abstract:   "about " + title,
		Provenance: domain.SourceTypeOpenAlex,
	}
}

func srcs(n int, prefix string) []*domain.AcademicSource {
	out := make([]*domain.AcademicSource, n)
	for i := range out {
		out[i] = src(fmt.Sprintf("10.1/%s%d", prefix, i), fmt.Sprintf("%s %d", prefix, i))
	}
	return out
}

func newGateway(primary *fakeBackend, resolver papersources.DOIResolver, secondary *fakeBackend, cfg Config) *Gateway {
	var sec papersources.Source
	if secondary != nil {
		sec = secondary
	}
	return New(primary, resolver, sec, cfg, zerolog.Nop(), nil)
}

func TestSplitKeywords(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{name: "four keywords", query: "CRISPR, gene editing, Cas9, off-target", want: []string{"CRISPR", "gene editing", "Cas9", "off-target"}},
		{name: "no commas is atomic", query: "CRISPR gene editing", want: []string{"CRISPR gene editing"}},
		{name: "empty segments dropped", query: "a,, ,b", want: []string{"a", "b"}},
		{name: "empty input", query: "", want: nil},
		{name: "whitespace only", query: "  ,  ", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := SplitKeywords(tt.query)
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildTierQueries(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		terms []string
		want  []string
	}{
		{
			name:  "three terms produce all tiers",
			terms: []string{"a", "b", "c"},
			want: []string{
				"(a) AND (b) AND (c)",
				"(a) AND ((b) OR (c))",
				"(a) OR (b) OR (c)",
			},
		},
		{
			name:  "two terms skip the middle tier",
			terms: []string{"a", "b"},
			want: []string{
				"(a) AND (b)",
				"(a) OR (b)",
			},
		},
		{
			name:  "single term",
			terms: []string{"a"},
			want:  []string{"(a)"},
		},
		{
			name:  "four terms",
			terms: []string{"a", "b", "c", "d"},
			want: []string{
				"(a) AND (b) AND (c) AND (d)",
				"(a) AND ((b) OR (c) OR (d))",
				"(a) OR (b) OR (c) OR (d)",
			},
		},
		{
			name:  "no terms",
			terms: nil,
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, BuildTierQueries(tt.terms))
		})
	}
}

func TestGateway_Search_FirstTierWins(t *testing.T) {
	t.Parallel()

	primary := &fakeBackend{
		name:    "OpenAlex",
		enabled: true,
		results: [][]*domain.AcademicSource{srcs(12, "a")},
	}

	g := newGateway(primary, nil, nil, Config{})

	got := g.Search(context.Background(), "a, b, c")
	assert.Len(t, got, 12)

	// Only the narrowest tier was queried.
	require.Len(t, primary.queries, 1)
	assert.Equal(t, "(a) AND (b) AND (c)", primary.queries[0])
}

func TestGateway_Search_BroadensOnEmptyTier(t *testing.T) {
	t.Parallel()

	primary := &fakeBackend{
		name:    "OpenAlex",
		enabled: true,
		results: [][]*domain.AcademicSource{nil, srcs(11, "b")},
	}

	g := newGateway(primary, nil, nil, Config{})

	got := g.Search(context.Background(), "a, b, c")
	assert.Len(t, got, 11)

	require.Len(t, primary.queries, 2)
	assert.Equal(t, "(a) AND (b) AND (c)", primary.queries[0])
	assert.Equal(t, "(a) AND ((b) OR (c))", primary.queries[1])
}

func TestGateway_Search_BroadensOnTierError(t *testing.T) {
	t.Parallel()

	primary := &fakeBackend{
		name:    "OpenAlex",
		enabled: true,
		errs:    []error{errors.New("backend down"), nil},
		results: [][]*domain.AcademicSource{nil, srcs(10, "c")},
	}

	g := newGateway(primary, nil, nil, Config{})

	got := g.Search(context.Background(), "a, b")
	assert.Len(t, got, 10)
	require.Len(t, primary.queries, 2)
	assert.Equal(t, "(a) OR (b)", primary.queries[1])
}

func TestGateway_Search_AllTiersFailYieldsEmpty(t *testing.T) {
	t.Parallel()

	primary := &fakeBackend{
		name:    "OpenAlex",
		enabled: true,
		errs:    []error{errors.New("x"), errors.New("x"), errors.New("x")},
	}

	g := newGateway(primary, nil, nil, Config{})

	got := g.Search(context.Background(), "a, b, c")
	assert.Empty(t, got)
	assert.Len(t, primary.queries, 3)
}

func TestGateway_Search_SecondaryTriggeredBelowThreshold(t *testing.T) {
	t.Parallel()

	primary := &fakeBackend{
		name:    "OpenAlex",
		enabled: true,
		results: [][]*domain.AcademicSource{srcs(3, "p")},
	}
	secondary := &fakeBackend{
		name:    "WebSearch",
		enabled: true,
		results: [][]*domain.AcademicSource{srcs(4, "w")},
	}

	g := newGateway(primary, nil, secondary, Config{SecondaryThreshold: 10})

	got := g.Search(context.Background(), "rare topic")
	assert.Len(t, got, 7)

	require.Len(t, secondary.queries, 1)
	assert.Equal(t, "rare topic academic research paper", secondary.queries[0])
}

func TestGateway_Search_SecondarySkippedAtThreshold(t *testing.T) {
	t.Parallel()

	primary := &fakeBackend{
		name:    "OpenAlex",
		enabled: true,
		results: [][]*domain.AcademicSource{srcs(10, "p")},
	}
	secondary := &fakeBackend{name: "WebSearch", enabled: true}

	g := newGateway(primary, nil, secondary, Config{SecondaryThreshold: 10})

	got := g.Search(context.Background(), "common topic")
	assert.Len(t, got, 10)
	assert.Empty(t, secondary.queries, "secondary should not run when primary meets the threshold")
}

func TestGateway_Search_SecondaryDisabled(t *testing.T) {
	t.Parallel()

	primary := &fakeBackend{
		name:    "OpenAlex",
		enabled: true,
		results: [][]*domain.AcademicSource{srcs(1, "p")},
	}
	secondary := &fakeBackend{name: "WebSearch", enabled: false}

	g := newGateway(primary, nil, secondary, Config{})

	got := g.Search(context.Background(), "topic")
	assert.Len(t, got, 1)
	assert.Empty(t, secondary.queries)
}

func TestGateway_Search_DedupAndCap(t *testing.T) {
	t.Parallel()

	primarySources := srcs(5, "p")
	// Duplicate DOI differing only in case.
	dup := src("10.1/P0", "duplicate of p 0")
	primarySources = append(primarySources, dup)

	primary := &fakeBackend{
		name:    "OpenAlex",
		enabled: true,
		results: [][]*domain.AcademicSource{primarySources},
	}
	secondary := &fakeBackend{
		name:    "WebSearch",
		enabled: true,
		results: [][]*domain.AcademicSource{srcs(20, "w")},
	}

	g := newGateway(primary, nil, secondary, Config{MaxResults: 20, SecondaryThreshold: 10})

	got := g.Search(context.Background(), "topic")
	assert.Len(t, got, 20)

	// First-seen wins: the primary's version of 10.1/p0 is kept.
	assert.Equal(t, "p 0", got[0].Title)

	seen := make(map[string]bool)
	for _, s := range got {
		key := domain.DOIKey(s.DOI)
		assert.False(t, seen[key], "duplicate DOI %s", s.DOI)
		seen[key] = true
	}
}

func TestGateway_Search_AbstractBackfill(t *testing.T) {
	t.Parallel()

	missing := &domain.AcademicSource{
		Title:      "no abstract yet",
		DOI:        "10.1/miss",
		Provenance: domain.SourceTypeOpenAlex,
	}
	unresolvable := &domain.AcademicSource{
		Title:      "never resolves",
		DOI:        "10.1/gone",
		Provenance: domain.SourceTypeOpenAlex,
	}
	complete := src("10.1/full", "already complete")

	primary := &fakeBackend{
		name:    "OpenAlex",
		enabled: true,
		results: [][]*domain.AcademicSource{{missing, unresolvable, complete}},
	}
	resolver := &fakeResolver{
		works: map[string]*domain.AcademicSource{
			"10.1/miss": {
				DOI:      "10.1/miss",
				Abstract: "backfilled abstract",
				Journal:  "Nature",
				Year:     2022,
				Authors:  []domain.Author{{Name: "Jane Smith"}},
			},
		},
	}

	g := newGateway(primary, resolver, nil, Config{SecondaryThreshold: 1})

	got := g.Search(context.Background(), "topic")
	require.Len(t, got, 3)

	assert.Equal(t, "backfilled abstract", got[0].Abstract)
	assert.Equal(t, "Nature", got[0].Journal)
	assert.Equal(t, 2022, got[0].Year)

	// Unresolvable DOI stays without an abstract but is not dropped.
	assert.Empty(t, got[1].Abstract)

	// Sources that already have an abstract are not re-fetched.
	assert.Equal(t, []string{"10.1/miss", "10.1/gone"}, resolver.calls)
}

func TestGateway_Search_EmptyQuery(t *testing.T) {
	t.Parallel()

	primary := &fakeBackend{name: "OpenAlex", enabled: true}
	g := newGateway(primary, nil, nil, Config{})

	assert.Empty(t, g.Search(context.Background(), ""))
	assert.Empty(t, primary.queries)
}

func TestGateway_Search_PrimaryDisabled(t *testing.T) {
	t.Parallel()

	primary := &fakeBackend{name: "OpenAlex", enabled: false}
	secondary := &fakeBackend{
		name:    "WebSearch",
		enabled: true,
		results: [][]*domain.AcademicSource{srcs(2, "w")},
	}

	g := newGateway(primary, nil, secondary, Config{})

	got := g.Search(context.Background(), "topic")
	assert.Len(t, got, 2)
	assert.Empty(t, primary.queries)
}
