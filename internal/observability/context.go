package observability

import (
	"context"
)

// Context keys for observability data.
type contextKey string

const (
	requestIDKey contextKey = "request_id"
	sessionIDKey contextKey = "session_id"
	chatIDKey    contextKey = "chat_id"
)

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext retrieves the request ID from context.
// Returns empty string if not present.
func RequestIDFromContext(ctx context.Context) string {
	if v := ctx.Value(requestIDKey); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

// WithSession adds the session and chat IDs to the context.
func WithSession(ctx context.Context, sessionID, chatID string) context.Context {
	ctx = context.WithValue(ctx, sessionIDKey, sessionID)
	ctx = context.WithValue(ctx, chatIDKey, chatID)
	return ctx
}

// SessionFromContext retrieves the session and chat IDs from context.
// Returns empty strings if not present.
func SessionFromContext(ctx context.Context) (sessionID, chatID string) {
	if v := ctx.Value(sessionIDKey); v != nil {
		if id, ok := v.(string); ok {
			sessionID = id
		}
	}
	if v := ctx.Value(chatIDKey); v != nil {
		if id, ok := v.(string); ok {
			chatID = id
		}
	}
	return sessionID, chatID
}
