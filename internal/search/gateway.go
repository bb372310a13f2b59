// Package search implements the literature search gateway.
//
// The gateway turns a comma-separated keyword string into tiered boolean
// queries, runs them against the primary scholarly backend in narrowing-first
// order, backfills missing abstracts, and tops up from the secondary web
// backend when the primary yield is thin. Backend failures degrade to zero
// results; a search never aborts the research pipeline.
package search

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/helixir/research-report-service/internal/domain"
	"github.com/helixir/research-report-service/internal/observability"
	"github.com/helixir/research-report-service/internal/papersources"
)

const (
	// DefaultMaxResults caps the number of sources one gateway search returns.
	DefaultMaxResults = 20

	// DefaultSecondaryThreshold is the minimum primary yield below which the
	// secondary backend is consulted.
	DefaultSecondaryThreshold = 10

	// secondaryQualifier is appended to the raw query for the web backend so
	// general search engines favor scholarly results.
	secondaryQualifier = "academic research paper"
)

// Config holds the tuning knobs for the gateway.
type Config struct {
	// MaxResults caps the merged result list. Defaults to 20.
	MaxResults int

	// SecondaryThreshold triggers the secondary backend when the primary
	// returns fewer sources. Defaults to 10.
	SecondaryThreshold int
}

// Gateway queries the configured backends with progressive query broadening.
type Gateway struct {
	primary   papersources.Source
	resolver  papersources.DOIResolver
	secondary papersources.Source
	cfg       Config
	logger    zerolog.Logger
	metrics   *observability.Metrics
}

// New creates a search gateway. primary is required; resolver and secondary
// may be nil. resolver is usually the primary backend itself when it supports
// per-DOI lookup. metrics may be nil.
func New(primary papersources.Source, resolver papersources.DOIResolver, secondary papersources.Source, cfg Config, logger zerolog.Logger, metrics *observability.Metrics) *Gateway {
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = DefaultMaxResults
	}
	if cfg.SecondaryThreshold <= 0 {
		cfg.SecondaryThreshold = DefaultSecondaryThreshold
	}

	return &Gateway{
		primary:   primary,
		resolver:  resolver,
		secondary: secondary,
		cfg:       cfg,
		logger:    logger.With().Str("component", "search_gateway").Logger(),
		metrics:   metrics,
	}
}

// SplitKeywords splits a comma-separated keyword string into trimmed terms.
// An input without commas yields a single atomic term.
func SplitKeywords(query string) []string {
	parts := strings.Split(query, ",")
	terms := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			terms = append(terms, t)
		}
	}
	return terms
}

// BuildTierQueries builds the progressively broader boolean queries for the
// given terms, narrowest first:
//
//	tier 1: (a) AND (b) AND (c)
//	tier 2: (a) AND ((b) OR (c))   — only when three or more terms
//	tier 3: (a) OR (b) OR (c)
//
// A single term produces one query. Two terms produce tiers 1 and 3 only,
// since the middle tier would duplicate tier 1.
func BuildTierQueries(terms []string) []string {
	if len(terms) == 0 {
		return nil
	}

	wrapped := make([]string, len(terms))
	for i, t := range terms {
		wrapped[i] = "(" + t + ")"
	}

	if len(wrapped) == 1 {
		return []string{wrapped[0]}
	}

	queries := []string{strings.Join(wrapped, " AND ")}

	if len(wrapped) >= 3 {
		rest := strings.Join(wrapped[1:], " OR ")
		queries = append(queries, fmt.Sprintf("%s AND (%s)", wrapped[0], rest))
	}

	queries = append(queries, strings.Join(wrapped, " OR "))
	return queries
}

// Search resolves a keyword query into at most MaxResults DOI-bearing
// sources, deduplicated by normalized DOI with first-seen order retained.
// All failures are absorbed; the worst outcome is an empty slice.
func (g *Gateway) Search(ctx context.Context, query string) []*domain.AcademicSource {
	terms := SplitKeywords(query)
	if len(terms) == 0 {
		return nil
	}

	sources := g.searchPrimary(ctx, terms)
	g.backfillAbstracts(ctx, sources)

	if len(sources) < g.cfg.SecondaryThreshold && g.secondary != nil && g.secondary.IsEnabled() {
		sources = append(sources, g.searchSecondary(ctx, query)...)
	}

	merged := dedupeByDOI(sources, g.cfg.MaxResults)

	if g.metrics != nil {
		g.metrics.RecordSearchResults(len(merged))
	}
	g.logger.Debug().
		Str("query", query).
		Int("sources", len(merged)).
		Msg("search complete")

	return merged
}

// searchPrimary tries each tier against the primary backend in order and
// returns the first tier's results. A tier that errors counts as empty; the
// next broader tier is still attempted.
func (g *Gateway) searchPrimary(ctx context.Context, terms []string) []*domain.AcademicSource {
	if g.primary == nil || !g.primary.IsEnabled() {
		return nil
	}

	for i, query := range BuildTierQueries(terms) {
		if ctx.Err() != nil {
			return nil
		}

		tier := strconv.Itoa(i + 1)
		result, err := g.primary.Search(ctx, papersources.SearchParams{
			Query:      query,
			MaxResults: g.cfg.MaxResults,
		})
		if g.metrics != nil {
			var duration float64
			if result != nil {
				duration = result.SearchDuration.Seconds()
			}
			g.metrics.RecordSearch(g.primary.Name(), tier, duration, err != nil)
		}
		if err != nil {
			g.logger.Warn().Err(err).
				Str("tier", tier).
				Str("query", query).
				Msg("primary backend query failed")
			continue
		}
		if len(result.Sources) == 0 {
			continue
		}

		if g.metrics != nil {
			g.metrics.RecordSourcesDiscovered(g.primary.Name(), len(result.Sources))
		}
		return result.Sources
	}

	return nil
}

// backfillAbstracts fetches abstracts for sources that arrived without one.
// Failures leave the abstract empty.
func (g *Gateway) backfillAbstracts(ctx context.Context, sources []*domain.AcademicSource) {
	if g.resolver == nil {
		return
	}

	for _, src := range sources {
		if src.Abstract != "" || src.DOI == "" {
			continue
		}
		if ctx.Err() != nil {
			return
		}

		full, err := g.resolver.GetByDOI(ctx, src.DOI)
		if err != nil {
			g.logger.Debug().Err(err).
				Str("doi", src.DOI).
				Msg("abstract backfill failed")
			continue
		}
		src.Abstract = full.Abstract
		if len(src.Authors) == 0 {
			src.Authors = full.Authors
		}
		if src.Journal == "" {
			src.Journal = full.Journal
		}
		if src.Year == 0 {
			src.Year = full.Year
		}
	}
}

// searchSecondary issues one web search with the qualifying phrase appended.
func (g *Gateway) searchSecondary(ctx context.Context, query string) []*domain.AcademicSource {
	if ctx.Err() != nil {
		return nil
	}

	result, err := g.secondary.Search(ctx, papersources.SearchParams{
		Query:      query + " " + secondaryQualifier,
		MaxResults: g.cfg.MaxResults,
	})
	if g.metrics != nil {
		var duration float64
		if result != nil {
			duration = result.SearchDuration.Seconds()
		}
		g.metrics.RecordSearch(g.secondary.Name(), "secondary", duration, err != nil)
	}
	if err != nil {
		g.logger.Warn().Err(err).
			Str("query", query).
			Msg("secondary backend query failed")
		return nil
	}

	if g.metrics != nil {
		g.metrics.RecordSourcesDiscovered(g.secondary.Name(), len(result.Sources))
	}
	return result.Sources
}

// dedupeByDOI keeps the first occurrence of each DOI and caps the result.
func dedupeByDOI(sources []*domain.AcademicSource, limit int) []*domain.AcademicSource {
	seen := make(map[string]bool, len(sources))
	out := make([]*domain.AcademicSource, 0, len(sources))
	for _, src := range sources {
		if src == nil || src.DOI == "" {
			continue
		}
		key := domain.DOIKey(src.DOI)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, src)
		if len(out) >= limit {
			break
		}
	}
	return out
}
