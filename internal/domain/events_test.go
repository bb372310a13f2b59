package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestNewProgressEvent(t *testing.T) {
	t.Run("sets type, session and timestamp", func(t *testing.T) {
		sessionID := uuid.New()
		ev := NewProgressEvent(sessionID, EventPlanCreated)

		assert.Equal(t, EventPlanCreated, ev.Type)
		assert.Equal(t, sessionID, ev.SessionID)
		assert.False(t, ev.Timestamp.IsZero())
		assert.Empty(t, ev.Message)
		assert.Nil(t, ev.Data)
	})
}

func TestProgressEvent_Builders(t *testing.T) {
	t.Run("WithMessage and WithData chain", func(t *testing.T) {
		sessionID := uuid.New()
		ev := NewProgressEvent(sessionID, EventSourceFound).
			WithMessage("found a paper").
			WithData(map[string]interface{}{"doi": "10.1/a"})

		assert.Equal(t, "found a paper", ev.Message)
		assert.Equal(t, "10.1/a", ev.Data["doi"])
		assert.Equal(t, sessionID, ev.SessionID)
	})

	t.Run("builders copy rather than mutate", func(t *testing.T) {
		base := NewProgressEvent(uuid.New(), EventStatus)
		withMsg := base.WithMessage("hello")

		assert.Empty(t, base.Message)
		assert.Equal(t, "hello", withMsg.Message)
	})
}

func TestProgressEvent_IsTerminal(t *testing.T) {
	tests := []struct {
		eventType string
		expected  bool
	}{
		{EventStatus, false},
		{EventPlanCreated, false},
		{EventResearchStarted, false},
		{EventToolStart, false},
		{EventSourceFound, false},
		{EventReportChunk, false},
		{EventReportReplace, false},
		{EventPaused, false},
		{EventCompleted, true},
		{EventCancelled, true},
		{EventError, true},
	}

	for _, tt := range tests {
		t.Run(tt.eventType, func(t *testing.T) {
			ev := NewProgressEvent(uuid.New(), tt.eventType)
			assert.Equal(t, tt.expected, ev.IsTerminal())
		})
	}
}
