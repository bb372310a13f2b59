package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the research report service.
// Metrics are organized by subsystem: sessions, searches, citations, events,
// and LLM operations. All counters and histograms are registered via promauto
// for automatic registration with the default Prometheus registry.
type Metrics struct {
	// SessionsStarted counts the total number of research sessions initiated.
	SessionsStarted prometheus.Counter

	// SessionsCompleted counts the total number of sessions that reached the
	// completed status, including the completed-with-error path.
	SessionsCompleted prometheus.Counter

	// SessionsCancelled counts the total number of sessions cancelled by the user.
	SessionsCancelled prometheus.Counter

	// SessionsPaused counts pause transitions across all sessions.
	SessionsPaused prometheus.Counter

	// SessionDuration observes the end-to-end duration of sessions in seconds.
	SessionDuration prometheus.Histogram

	// SectionsResearched counts the total number of plan sections processed.
	SectionsResearched prometheus.Counter

	// SearchesTotal counts gateway searches, labeled by backend and query tier.
	SearchesTotal *prometheus.CounterVec

	// SearchesFailed counts failed backend queries, labeled by backend and tier.
	SearchesFailed *prometheus.CounterVec

	// SearchDuration observes backend query duration in seconds, labeled by backend.
	SearchDuration *prometheus.HistogramVec

	// SourcesPerSearch observes the distribution of sources returned per
	// gateway search.
	SourcesPerSearch prometheus.Histogram

	// SourcesDiscovered counts unique sources discovered, labeled by backend.
	SourcesDiscovered *prometheus.CounterVec

	// CitationsVerified counts citation markers rewritten against the allow-list.
	CitationsVerified prometheus.Counter

	// CitationsRemoved counts citation markers stripped as unverifiable.
	CitationsRemoved prometheus.Counter

	// EventsEmitted counts progress events published, labeled by event type.
	EventsEmitted *prometheus.CounterVec

	// LLMRequestsTotal counts LLM API requests, labeled by operation and model.
	LLMRequestsTotal *prometheus.CounterVec

	// LLMRequestsFailed counts failed LLM API requests, labeled by operation,
	// model, and error type.
	LLMRequestsFailed *prometheus.CounterVec

	// LLMRequestDuration observes LLM API request duration in seconds,
	// labeled by operation and model.
	LLMRequestDuration *prometheus.HistogramVec

	// LLMTokensUsed counts tokens consumed by LLM operations, labeled by
	// operation, model, and token type.
	LLMTokensUsed *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
// The namespace is used as a prefix for all metric names.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		// Sessions
		SessionsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_started_total",
			Help:      "Total number of research sessions started",
		}),
		SessionsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_completed_total",
			Help:      "Total number of research sessions completed",
		}),
		SessionsCancelled: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_cancelled_total",
			Help:      "Total number of research sessions cancelled",
		}),
		SessionsPaused: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_paused_total",
			Help:      "Total number of pause transitions",
		}),
		SessionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_duration_seconds",
			Help:      "Duration of research sessions in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1200, 1800, 3600},
		}),
		SectionsResearched: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sections_researched_total",
			Help:      "Total number of plan sections researched",
		}),

		// Searches
		SearchesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_total",
			Help:      "Total number of backend searches by backend and tier",
		}, []string{"backend", "tier"}),
		SearchesFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_failed_total",
			Help:      "Total number of failed backend searches by backend and tier",
		}, []string{"backend", "tier"}),
		SearchDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Duration of backend searches in seconds by backend",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"backend"}),
		SourcesPerSearch: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sources_per_search",
			Help:      "Number of sources returned per gateway search",
			Buckets:   []float64{0, 1, 2, 5, 10, 15, 20},
		}),
		SourcesDiscovered: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sources_discovered_total",
			Help:      "Total number of unique sources discovered by backend",
		}, []string{"backend"}),

		// Citations
		CitationsVerified: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "citations_verified_total",
			Help:      "Total number of citation markers verified and rewritten",
		}),
		CitationsRemoved: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "citations_removed_total",
			Help:      "Total number of citation markers removed as unverifiable",
		}),

		// Events
		EventsEmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_emitted_total",
			Help:      "Total number of progress events emitted by type",
		}, []string{"type"}),

		// LLM
		LLMRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_total",
			Help:      "Total number of LLM requests by operation",
		}, []string{"operation", "model"}),
		LLMRequestsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_failed_total",
			Help:      "Total number of failed LLM requests by operation",
		}, []string{"operation", "model", "error_type"}),
		LLMRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_request_duration_seconds",
			Help:      "Duration of LLM requests in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"operation", "model"}),
		LLMTokensUsed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_tokens_used_total",
			Help:      "Total number of tokens used by LLM operations",
		}, []string{"operation", "model", "token_type"}),
	}
}

// RecordSessionStarted records that a session has started.
func (m *Metrics) RecordSessionStarted() {
	m.SessionsStarted.Inc()
}

// RecordSessionCompleted records that a session has completed.
func (m *Metrics) RecordSessionCompleted(durationSeconds float64) {
	m.SessionsCompleted.Inc()
	m.SessionDuration.Observe(durationSeconds)
}

// RecordSessionCancelled records that a session has been cancelled.
func (m *Metrics) RecordSessionCancelled(durationSeconds float64) {
	m.SessionsCancelled.Inc()
	m.SessionDuration.Observe(durationSeconds)
}

// RecordSessionPaused records a pause transition.
func (m *Metrics) RecordSessionPaused() {
	m.SessionsPaused.Inc()
}

// RecordSectionResearched records that one plan section has been processed.
func (m *Metrics) RecordSectionResearched() {
	m.SectionsResearched.Inc()
}

// RecordSearch records a backend query with its outcome.
func (m *Metrics) RecordSearch(backend, tier string, durationSeconds float64, failed bool) {
	m.SearchesTotal.WithLabelValues(backend, tier).Inc()
	m.SearchDuration.WithLabelValues(backend).Observe(durationSeconds)
	if failed {
		m.SearchesFailed.WithLabelValues(backend, tier).Inc()
	}
}

// RecordSearchResults records the outcome of one gateway search.
func (m *Metrics) RecordSearchResults(count int) {
	m.SourcesPerSearch.Observe(float64(count))
}

// RecordSourcesDiscovered records unique sources contributed by a backend.
func (m *Metrics) RecordSourcesDiscovered(backend string, count int) {
	m.SourcesDiscovered.WithLabelValues(backend).Add(float64(count))
}

// RecordCitations records the outcome of a citation verification pass.
func (m *Metrics) RecordCitations(verified, removed int) {
	m.CitationsVerified.Add(float64(verified))
	m.CitationsRemoved.Add(float64(removed))
}

// RecordEventEmitted records a progress event publication.
func (m *Metrics) RecordEventEmitted(eventType string) {
	m.EventsEmitted.WithLabelValues(eventType).Inc()
}

// RecordLLMRequest records an LLM request.
func (m *Metrics) RecordLLMRequest(operation, model string, durationSeconds float64, inputTokens, outputTokens int) {
	m.LLMRequestsTotal.WithLabelValues(operation, model).Inc()
	m.LLMRequestDuration.WithLabelValues(operation, model).Observe(durationSeconds)
	m.LLMTokensUsed.WithLabelValues(operation, model, "input").Add(float64(inputTokens))
	m.LLMTokensUsed.WithLabelValues(operation, model, "output").Add(float64(outputTokens))
}

// RecordLLMRequestFailed records a failed LLM request.
func (m *Metrics) RecordLLMRequestFailed(operation, model, errorType string) {
	m.LLMRequestsFailed.WithLabelValues(operation, model, errorType).Inc()
}
