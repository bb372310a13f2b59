package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultLoggingConfig(t *testing.T) {
	cfg := DefaultLoggingConfig()

	assert.Equal(t, "info", cfg.Level)
	assert.Equal(t, "json", cfg.Format)
	assert.Equal(t, "stdout", cfg.Output)
	assert.False(t, cfg.AddSource)
}

func TestNewLogger(t *testing.T) {
	t.Run("creates logger with default config", func(t *testing.T) {
		cfg := DefaultLoggingConfig()
		logger := NewLogger(cfg)

		assert.NotEqual(t, zerolog.Logger{}, logger)
	})

	t.Run("creates logger with console format", func(t *testing.T) {
		cfg := LoggingConfig{
			Level:  "info",
			Format: "console",
			Output: "stdout",
		}
		logger := NewLogger(cfg)

		assert.NotEqual(t, zerolog.Logger{}, logger)
	})
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{input: "trace", want: zerolog.TraceLevel},
		{input: "debug", want: zerolog.DebugLevel},
		{input: "info", want: zerolog.InfoLevel},
		{input: "warn", want: zerolog.WarnLevel},
		{input: "warning", want: zerolog.WarnLevel},
		{input: "error", want: zerolog.ErrorLevel},
		{input: "fatal", want: zerolog.FatalLevel},
		{input: "panic", want: zerolog.PanicLevel},
		{input: "bogus", want: zerolog.InfoLevel},
		{input: "", want: zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLevel(tt.input))
		})
	}
}

func TestWithSessionContext(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)

	logger := WithSessionContext(base, "sess-123", "chat-456")
	logger.Info().Msg("running")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))

	assert.Equal(t, "sess-123", entry["session_id"])
	assert.Equal(t, "chat-456", entry["chat_id"])
	assert.Equal(t, "running", entry["message"])
}

func TestWithSectionContext(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)

	logger := WithSectionContext(base, 2, "Mechanisms of Action")
	logger.Info().Msg("section")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))

	assert.Equal(t, float64(2), entry["section_index"])
	assert.Equal(t, "Mechanisms of Action", entry["section_title"])
}

func TestSessionContextRoundTrip(t *testing.T) {
	ctx := WithSession(context.Background(), "sess-1", "chat-1")
	ctx = WithRequestID(ctx, "req-1")

	sessionID, chatID := SessionFromContext(ctx)
	assert.Equal(t, "sess-1", sessionID)
	assert.Equal(t, "chat-1", chatID)
	assert.Equal(t, "req-1", RequestIDFromContext(ctx))
}

func TestSessionContextMissing(t *testing.T) {
	ctx := context.Background()
	sessionID, chatID := SessionFromContext(ctx)
	assert.Empty(t, sessionID)
	assert.Empty(t, chatID)
	assert.Empty(t, RequestIDFromContext(ctx))
}
