package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/helixir/research-report-service/internal/domain"
	"github.com/helixir/research-report-service/internal/papersources"
)

const (
	// DefaultRateLimit is the default rate limit for requests per second.
	DefaultRateLimit = 5.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 5

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 20 * time.Second

	// DefaultMaxResults is the default maximum results per search request.
	DefaultMaxResults = 20
)

// doiPattern matches a DOI embedded in a URL or text snippet. Registrant
// codes are 4-9 digits; the suffix runs to the next whitespace or markup
// delimiter and is trimmed of trailing punctuation afterwards.
var doiPattern = regexp.MustCompile(`10\.\d{4,9}/[^\s"'<>]+`)

// Config holds configuration for the web search client.
type Config struct {
	// BaseURL is the SearxNG instance base URL (required).
	BaseURL string

	// Timeout is the request timeout.
	// Defaults to 20 seconds.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	// Defaults to 5 req/sec.
	RateLimit float64

	// BurstSize is the maximum burst of requests allowed.
	// Defaults to 5.
	BurstSize int

	// MaxResults is the maximum results to return per search request.
	// Defaults to 20.
	MaxResults int

	// Enabled indicates whether this backend is enabled for searches.
	Enabled bool
}

// applyDefaults sets default values for unset configuration fields.
func (c *Config) applyDefaults() {
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.RateLimit == 0 {
		c.RateLimit = DefaultRateLimit
	}
	if c.BurstSize == 0 {
		c.BurstSize = DefaultBurstSize
	}
	if c.MaxResults == 0 {
		c.MaxResults = DefaultMaxResults
	}
}

// Client implements the papersources.Source interface for a SearxNG-compatible
// web search instance.
type Client struct {
	config     Config
	httpClient *papersources.HTTPClient
}

// Compile-time interface check.
var _ papersources.Source = (*Client)(nil)

// New creates a new web search client with the given configuration.
func New(cfg Config) *Client {
	cfg.applyDefaults()

	httpClient := papersources.NewHTTPClient(papersources.HTTPClientConfig{
		Timeout:   cfg.Timeout,
		RateLimit: cfg.RateLimit,
		BurstSize: cfg.BurstSize,
	})

	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// NewWithHTTPClient creates a new web search client with a custom HTTP client.
// This is useful for testing with mock servers.
func NewWithHTTPClient(cfg Config, httpClient *papersources.HTTPClient) *Client {
	cfg.applyDefaults()

	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// Search queries the web search instance and extracts DOI-bearing results.
// Results without a recoverable DOI are dropped; the result URL is checked
// before the snippet text. Duplicate DOIs within one response keep the
// first occurrence.
func (c *Client) Search(ctx context.Context, params papersources.SearchParams) (*papersources.SearchResult, error) {
	startTime := time.Now()

	searchURL, err := c.buildSearchURL(params)
	if err != nil {
		return nil, fmt.Errorf("building search URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return nil, domain.NewExternalAPIError(
			"websearch",
			resp.StatusCode,
			string(body),
			nil,
		)
	}

	// Limit body to 10MB to prevent resource exhaustion.
	var searchResp searchResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 10<<20)).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	maxResults := params.MaxResults
	if maxResults <= 0 {
		maxResults = c.config.MaxResults
	}

	seen := make(map[string]bool)
	sources := make([]*domain.AcademicSource, 0, len(searchResp.Results))
	for _, result := range searchResp.Results {
		doi := ExtractDOI(result.URL)
		if doi == "" {
			doi = ExtractDOI(result.Content)
		}
		if doi == "" {
			continue
		}

		key := domain.DOIKey(doi)
		if seen[key] {
			continue
		}
		seen[key] = true

		sources = append(sources, &domain.AcademicSource{
			Title:      result.Title,
			DOI:        doi,
			Abstract:   result.Content,
			Provenance: domain.SourceTypeWebSearch,
		})

		if len(sources) >= maxResults {
			break
		}
	}

	return &papersources.SearchResult{
		Sources:        sources,
		TotalResults:   searchResp.NumberOfResults,
		Source:         domain.SourceTypeWebSearch,
		SearchDuration: time.Since(startTime),
	}, nil
}

// SourceType returns the backend type identifier.
func (c *Client) SourceType() domain.SourceType {
	return domain.SourceTypeWebSearch
}

// Name returns the human-readable name for this backend.
func (c *Client) Name() string {
	return "WebSearch"
}

// IsEnabled returns whether this backend is enabled and configured.
func (c *Client) IsEnabled() bool {
	return c.config.Enabled && c.config.BaseURL != ""
}

// buildSearchURL constructs the search URL with query parameters.
func (c *Client) buildSearchURL(params papersources.SearchParams) (string, error) {
	baseURL, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base URL: %w", err)
	}

	baseURL.Path = "/search"

	query := url.Values{}
	query.Set("q", params.Query)
	query.Set("format", "json")
	query.Set("categories", "science")

	maxResults := params.MaxResults
	if maxResults <= 0 {
		maxResults = c.config.MaxResults
	}
	query.Set("pageno", "1")
	query.Set("results_on_new_tab", "0")
	query.Set("safesearch", "0")
	query.Set("max_results", strconv.Itoa(maxResults))

	baseURL.RawQuery = query.Encode()
	return baseURL.String(), nil
}

// ExtractDOI finds the first DOI in the given text. URL percent-escapes are
// decoded and trailing punctuation is trimmed. Returns the empty string when
// no DOI is present.
func ExtractDOI(text string) string {
	match := doiPattern.FindString(text)
	if match == "" {
		return ""
	}

	if strings.Contains(match, "%") {
		if unescaped, err := url.PathUnescape(match); err == nil {
			match = unescaped
		}
	}

	// Punctuation adjacent to a DOI in prose or URLs is not part of it.
	match = strings.TrimRight(match, ".,;:!?)]}>")

	return match
}
