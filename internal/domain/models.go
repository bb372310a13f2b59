// Package domain provides domain models and business logic for the Research Report Service.
package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// SessionStatus represents the lifecycle states of a research session.
// These values must match the database enum session_status.
type SessionStatus string

const (
	SessionStatusPending   SessionStatus = "pending"
	SessionStatusRunning   SessionStatus = "running"
	SessionStatusPaused    SessionStatus = "paused"
	SessionStatusCancelled SessionStatus = "cancelled"
	SessionStatusCompleted SessionStatus = "completed"
)

// IsTerminal returns true if the status represents a final state that will not change.
func (s SessionStatus) IsTerminal() bool {
	switch s {
	case SessionStatusCompleted, SessionStatusCancelled:
		return true
	default:
		return false
	}
}

// PlanSection is a single planned report section: a short title plus guidance
// text used both for literature search and for section writing.
type PlanSection struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// ResearchPlan is the ordered table of contents produced once per session.
// It is immutable after creation.
type ResearchPlan struct {
	Sections []PlanSection `json:"sections"`
}

// Titles returns the ordered section titles.
func (p *ResearchPlan) Titles() []string {
	titles := make([]string, len(p.Sections))
	for i, s := range p.Sections {
		titles[i] = s.Title
	}
	return titles
}

// reservedSectionTitles are section labels that may never become independent
// content sections. They are reserved for auto-generated content (the
// executive summary and the references list), in English and Korean.
var reservedSectionTitles = map[string]struct{}{
	"summary":           {},
	"executive summary": {},
	"references":        {},
	"bibliography":      {},
	"reference":         {},
	"요약":                {},
	"참고문헌":              {},
	"결론 요약":             {},
}

// IsReservedSectionTitle reports whether a plan section title is reserved for
// auto-generated content. Matching is case-insensitive and ignores
// surrounding whitespace and markdown heading markers.
func IsReservedSectionTitle(title string) bool {
	t := strings.ToLower(strings.TrimSpace(title))
	t = strings.TrimLeft(t, "#")
	t = strings.TrimSpace(t)
	t = strings.TrimSuffix(t, ":")
	_, ok := reservedSectionTitles[t]
	return ok
}

// ResearchSession is the mutable state of one research run. A session is
// created per user query, mutated only by the orchestrator (single writer),
// and removed from memory once it reaches a terminal status. The persisted
// row outlives the in-memory record.
type ResearchSession struct {
	ID       uuid.UUID     `json:"id"`
	ChatID   uuid.UUID     `json:"chat_id"`
	Status   SessionStatus `json:"status"`
	Query    string        `json:"query"`
	Model    string        `json:"model,omitempty"`
	Language string        `json:"language,omitempty"`

	// Plan is nil until the planning phase succeeds, then immutable.
	Plan *ResearchPlan `json:"plan,omitempty"`

	// CurrentStep is the index of the plan section being researched.
	// Monotonically non-decreasing while the session runs.
	CurrentStep int `json:"current_step"`

	// Sources accumulates every literature record found so far,
	// deduplicated by normalized DOI in first-seen order.
	Sources []*AcademicSource `json:"sources,omitempty"`

	// ReportContent holds the accumulated (and finally rewritten) report text.
	ReportContent string `json:"report_content,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsActive returns true if the session has not reached a terminal status.
func (s *ResearchSession) IsActive() bool {
	return !s.Status.IsTerminal()
}

// AddSource appends a source to the session's accumulated list unless a
// source with the same DOI key is already present. It returns true if the
// source was added.
func (s *ResearchSession) AddSource(src *AcademicSource) bool {
	if src == nil || src.DOI == "" {
		return false
	}
	key := src.Key()
	for _, existing := range s.Sources {
		if existing.Key() == key {
			return false
		}
	}
	s.Sources = append(s.Sources, src)
	return true
}

// ChatMessage is a durable message record attached to a conversation.
// The final research report is stored as an assistant message with the
// session's source list serialized into Metadata.
type ChatMessage struct {
	ID        uuid.UUID              `json:"id"`
	ChatID    uuid.UUID              `json:"chat_id"`
	Role      string                 `json:"role"`
	Content   string                 `json:"content"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}
