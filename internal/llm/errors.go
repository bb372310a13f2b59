package llm

import "fmt"

// APIError represents an error response from an LLM provider API.
type APIError struct {
	Provider   string
	StatusCode int
	Message    string
	Type       string
	Code       string
}

func (e *APIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s api error (status %d): %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s api error: %s", e.Provider, e.Message)
}

// IsTransient reports whether the error is worth retrying. Rate limits and
// server-side failures are transient; a zero status code means the request
// never produced an HTTP response (network failure) and is transient too.
func (e *APIError) IsTransient() bool {
	if e.StatusCode == 0 {
		return true
	}
	return e.StatusCode == 429 || e.StatusCode >= 500
}
