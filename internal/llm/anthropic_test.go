package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Compile-time interface check.
var _ Client = (*AnthropicProvider)(nil)

// newAnthropicTestServer creates an httptest server that responds with the given handler.
func newAnthropicTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

// newAnthropicTestProvider creates an AnthropicProvider pointing at the given test server URL.
func newAnthropicTestProvider(baseURL string) *AnthropicProvider {
	cfg := AnthropicConfig{
		APIKey:  "test-api-key",
		Model:   "claude-3-5-sonnet-20241022",
		BaseURL: baseURL,
	}
	p := NewAnthropicProvider(cfg, 0.7, 10*time.Second, 2)
	p.retryDelay = 10 * time.Millisecond // Fast retries for tests.
	return p
}

func TestAnthropicProvider_Chat(t *testing.T) {
	t.Parallel()

	handler := func(w http.ResponseWriter, r *http.Request) {
		// Verify request method and path.
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/messages", r.URL.Path)

		// Verify headers.
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "test-api-key", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))

		// Verify request body structure.
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		defer r.Body.Close()

		var reqBody messagesRequest
		err = json.Unmarshal(body, &reqBody)
		require.NoError(t, err)

		assert.Equal(t, "claude-3-5-sonnet-20241022", reqBody.Model)
		assert.Equal(t, defaultAnthropicMaxTokens, reqBody.MaxTokens)
		assert.Equal(t, "You are a research planner.", reqBody.System,
			"system message should be lifted into the system field")
		assert.Len(t, reqBody.Messages, 1)
		assert.Equal(t, "user", reqBody.Messages[0].Role)
		assert.Equal(t, "Plan a report on CRISPR.", reqBody.Messages[0].Content)
		assert.InDelta(t, 0.7, reqBody.Temperature, 0.001)

		// Return a valid response.
		resp := messagesResponse{
			ID:   "msg_test123",
			Type: "message",
			Role: "assistant",
			Content: []contentBlock{
				{Type: "text", Text: "Section outline for CRISPR."},
			},
			Model:      "claude-3-5-sonnet-20241022",
			StopReason: "end_turn",
			Usage: anthropicUsage{
				InputTokens:  150,
				OutputTokens: 45,
			},
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(resp)
	}

	srv := newAnthropicTestServer(t, handler)
	provider := newAnthropicTestProvider(srv.URL)

	req := ChatRequest{
		Messages: []Message{
			{Role: RoleSystem, Content: "You are a research planner."},
			{Role: RoleUser, Content: "Plan a report on CRISPR."},
		},
	}

	result, err := provider.Chat(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, "Section outline for CRISPR.", result.Content)
	assert.Equal(t, "claude-3-5-sonnet-20241022", result.Model)
	assert.Equal(t, 150, result.InputTokens)
	assert.Equal(t, 45, result.OutputTokens)
}

func TestAnthropicProvider_Chat_ModelOverride(t *testing.T) {
	t.Parallel()

	handler := func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		var reqBody messagesRequest
		require.NoError(t, json.Unmarshal(body, &reqBody))
		assert.Equal(t, "claude-3-5-haiku-20241022", reqBody.Model)

		resp := messagesResponse{
			Content: []contentBlock{{Type: "text", Text: "ok"}},
			Model:   reqBody.Model,
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}

	srv := newAnthropicTestServer(t, handler)
	provider := newAnthropicTestProvider(srv.URL)

	result, err := provider.Chat(context.Background(), ChatRequest{
		Model:    "claude-3-5-haiku-20241022",
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "claude-3-5-haiku-20241022", result.Model)
}

func TestAnthropicProvider_Chat_APIError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		statusCode int
		errorType  string
		message    string
		wantRetry  bool
	}{
		{
			name:       "authentication error (401)",
			statusCode: http.StatusUnauthorized,
			errorType:  "authentication_error",
			message:    "invalid x-api-key",
			wantRetry:  false,
		},
		{
			name:       "invalid request error (400)",
			statusCode: http.StatusBadRequest,
			errorType:  "invalid_request_error",
			message:    "max_tokens must be positive",
			wantRetry:  false,
		},
		{
			name:       "rate limit error (429)",
			statusCode: http.StatusTooManyRequests,
			errorType:  "rate_limit_error",
			message:    "rate limit exceeded",
			wantRetry:  true,
		},
		{
			name:       "overloaded error (529)",
			statusCode: 529,
			errorType:  "overloaded_error",
			message:    "API is overloaded",
			wantRetry:  true,
		},
		{
			name:       "internal server error (500)",
			statusCode: http.StatusInternalServerError,
			errorType:  "api_error",
			message:    "internal server error",
			wantRetry:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var requestCount atomic.Int32

			handler := func(w http.ResponseWriter, r *http.Request) {
				requestCount.Add(1)

				errResp := anthropicErrorResponse{
					Type: "error",
					Error: anthropicAPIErrorDetail{
						Type:    tt.errorType,
						Message: tt.message,
					},
				}

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.statusCode)
				json.NewEncoder(w).Encode(errResp)
			}

			srv := newAnthropicTestServer(t, handler)
			provider := newAnthropicTestProvider(srv.URL)

			result, err := provider.Chat(context.Background(), ChatRequest{
				Messages: []Message{{Role: RoleUser, Content: "test query"}},
			})
			assert.Nil(t, result)
			require.Error(t, err)

			assert.Contains(t, err.Error(), tt.message)

			if tt.wantRetry {
				// 1 initial + maxRetries (2) = 3 total attempts.
				assert.Equal(t, int32(3), requestCount.Load(),
					"transient errors should be retried")
			} else {
				assert.Equal(t, int32(1), requestCount.Load(),
					"non-transient errors should not be retried")
			}
		})
	}
}

func TestAnthropicProvider_Chat_EmptyContentBlocks(t *testing.T) {
	t.Parallel()

	handler := func(w http.ResponseWriter, r *http.Request) {
		resp := messagesResponse{
			ID:      "msg_empty",
			Type:    "message",
			Role:    "assistant",
			Content: []contentBlock{},
			Model:   "claude-3-5-sonnet-20241022",
			Usage:   anthropicUsage{InputTokens: 50, OutputTokens: 0},
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(resp)
	}

	srv := newAnthropicTestServer(t, handler)
	provider := newAnthropicTestProvider(srv.URL)

	result, err := provider.Chat(context.Background(), ChatRequest{
		Messages: []Message{{Role: RoleUser, Content: "test"}},
	})
	assert.Nil(t, result)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no content blocks")
}

func TestAnthropicProvider_Chat_ContextCancelled(t *testing.T) {
	t.Parallel()

	handler := func(w http.ResponseWriter, r *http.Request) {
		// Return a transient error to trigger a retry.
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(anthropicErrorResponse{
			Type: "error",
			Error: anthropicAPIErrorDetail{
				Type:    "rate_limit_error",
				Message: "rate limited",
			},
		})
	}

	srv := newAnthropicTestServer(t, handler)
	provider := newAnthropicTestProvider(srv.URL)
	provider.retryDelay = 500 * time.Millisecond // Long enough to cancel during wait.

	ctx, cancel := context.WithCancel(context.Background())

	// Cancel after a short delay to trigger during retry backoff.
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	result, err := provider.Chat(ctx, ChatRequest{
		Messages: []Message{{Role: RoleUser, Content: "test"}},
	})
	assert.Nil(t, result)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "context cancelled")
}

func TestAnthropicProvider_Chat_RetryThenSuccess(t *testing.T) {
	t.Parallel()

	var requestCount atomic.Int32

	handler := func(w http.ResponseWriter, r *http.Request) {
		count := requestCount.Add(1)

		if count < 3 {
			// First two requests return 500.
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(anthropicErrorResponse{
				Type: "error",
				Error: anthropicAPIErrorDetail{
					Type:    "api_error",
					Message: "internal error",
				},
			})
			return
		}

		// Third request succeeds.
		resp := messagesResponse{
			ID:   "msg_retry_success",
			Type: "message",
			Role: "assistant",
			Content: []contentBlock{
				{Type: "text", Text: "retry success"},
			},
			Model:      "claude-3-5-sonnet-20241022",
			StopReason: "end_turn",
			Usage:      anthropicUsage{InputTokens: 80, OutputTokens: 15},
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(resp)
	}

	srv := newAnthropicTestServer(t, handler)
	provider := newAnthropicTestProvider(srv.URL)

	result, err := provider.Chat(context.Background(), ChatRequest{
		Messages: []Message{{Role: RoleUser, Content: "genomics research"}},
	})
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, "retry success", result.Content)
	assert.Equal(t, int32(3), requestCount.Load())
}

func TestAnthropicProvider_Provider(t *testing.T) {
	t.Parallel()

	provider := NewAnthropicProvider(AnthropicConfig{
		APIKey: "key",
		Model:  "claude-3-5-sonnet-20241022",
	}, 0.7, 30*time.Second, 3)

	assert.Equal(t, "anthropic", provider.Provider())
}

func TestAnthropicProvider_Model(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		model string
		want  string
	}{
		{name: "sonnet", model: "claude-3-5-sonnet-20241022", want: "claude-3-5-sonnet-20241022"},
		{name: "haiku", model: "claude-3-5-haiku-20241022", want: "claude-3-5-haiku-20241022"},
		{name: "empty uses default", model: "", want: defaultAnthropicModel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			provider := NewAnthropicProvider(AnthropicConfig{
				APIKey: "key",
				Model:  tt.model,
			}, 0.7, 30*time.Second, 3)

			assert.Equal(t, tt.want, provider.Model())
		})
	}
}
