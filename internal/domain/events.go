package domain

import (
	"time"

	"github.com/google/uuid"
)

// Progress event tags pushed to the UI channel. The tag set and payload
// shapes are part of the public event contract and must stay stable.
const (
	EventStatus          = "status"
	EventPlanCreated     = "plan_created"
	EventResearchStarted = "research_started"
	EventToolStart       = "tool_start"
	EventSourceFound     = "source_found"
	EventReportChunk     = "report_chunk"
	EventReportReplace   = "report_replace"
	EventCompleted       = "completed"
	EventPaused          = "paused"
	EventCancelled       = "cancelled"
	EventError           = "error"
)

// Tool names carried in tool_start events.
const (
	ToolKeywordGeneration = "keyword_generation"
	ToolAcademicSearch    = "academic_search"
)

// ProgressEvent is a tagged event pushed over the one-way progress channel.
// Message carries human-readable text for status-like events; Data carries
// the structured payload for the rest. No stack traces ever ride on Message.
type ProgressEvent struct {
	Type      string                 `json:"type"`
	SessionID uuid.UUID              `json:"session_id"`
	Message   string                 `json:"message,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// NewProgressEvent creates an event with the timestamp set.
func NewProgressEvent(sessionID uuid.UUID, eventType string) ProgressEvent {
	return ProgressEvent{
		Type:      eventType,
		SessionID: sessionID,
		Timestamp: time.Now().UTC(),
	}
}

// WithMessage sets the human-readable message.
func (e ProgressEvent) WithMessage(msg string) ProgressEvent {
	e.Message = msg
	return e
}

// WithData sets the structured payload.
func (e ProgressEvent) WithData(data map[string]interface{}) ProgressEvent {
	e.Data = data
	return e
}

// IsTerminal reports whether the event closes the session's stream.
func (e ProgressEvent) IsTerminal() bool {
	return e.Type == EventCompleted || e.Type == EventCancelled || e.Type == EventError
}
