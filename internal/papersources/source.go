// Package papersources provides clients for locating academic sources.
//
// Two kinds of backends implement the Source interface: scholarly indexes
// that return structured paper metadata (OpenAlex) and general web search
// engines whose results are mined for DOIs. The search gateway queries a
// primary scholarly backend per tier and falls back to the web backend when
// the primary yields too few DOI-bearing results.
package papersources

import (
	"context"
	"time"

	"github.com/helixir/research-report-service/internal/domain"
)

// SearchParams defines the parameters for a single backend query.
type SearchParams struct {
	// Query is the search query string (required). Scholarly backends
	// receive boolean expressions ("a AND b"); web backends receive the
	// query as free text.
	Query string

	// MaxResults limits the number of results returned in a single request.
	// A value of 0 uses the backend's default limit.
	MaxResults int
}

// SearchResult contains the results from one backend query.
type SearchResult struct {
	// Sources contains the DOI-bearing sources returned by the search.
	// May be empty if nothing matched.
	Sources []*domain.AcademicSource

	// TotalResults is the total number of hits matching the query as
	// reported by the backend, regardless of MaxResults. May be an
	// estimate for large result sets.
	TotalResults int

	// Source identifies which backend produced these results.
	Source domain.SourceType

	// SearchDuration is the time taken to execute the search, including
	// network latency and response parsing.
	SearchDuration time.Duration
}

// Source defines the interface that all search backends implement.
type Source interface {
	// Search queries the backend for sources matching the given parameters.
	// The context should be used for cancellation and deadline propagation.
	//
	// Implementations should:
	//   - Respect context cancellation
	//   - Apply rate limiting as needed
	//   - Transform backend responses to domain.AcademicSource
	//   - Include appropriate error wrapping with backend context
	Search(ctx context.Context, params SearchParams) (*SearchResult, error)

	// SourceType returns the type identifier for this backend.
	// Used for provenance attribution and metrics.
	SourceType() domain.SourceType

	// Name returns a human-readable name for this backend.
	Name() string

	// IsEnabled returns whether this backend is currently enabled and
	// available for searches. A backend may be disabled due to
	// configuration or missing credentials.
	IsEnabled() bool
}

// DOIResolver is implemented by backends that can look up a single work by
// its DOI. The gateway uses it to backfill abstracts for sources that arrive
// without one.
type DOIResolver interface {
	// GetByDOI retrieves a specific work by DOI.
	// Returns domain.ErrNotFound if the work does not exist.
	GetByDOI(ctx context.Context, doi string) (*domain.AcademicSource, error)
}
