// Package websearch provides the secondary search backend for the research
// pipeline. It queries a SearxNG-compatible metasearch instance and mines the
// returned web results for DOIs, so that scholarly works surfaced outside the
// primary index can still enter the verified source pool.
package websearch

// searchResponse represents the SearxNG JSON API response.
type searchResponse struct {
	Query           string         `json:"query"`
	NumberOfResults int            `json:"number_of_results"`
	Results         []searchResult `json:"results"`
}

// searchResult represents a single web result.
type searchResult struct {
	URL       string   `json:"url"`
	Title     string   `json:"title"`
	Content   string   `json:"content"`
	Engine    string   `json:"engine"`
	Engines   []string `json:"engines"`
	Score     float64  `json:"score"`
	Category  string   `json:"category"`
	Published string   `json:"publishedDate"`
}
