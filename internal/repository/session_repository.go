package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/helixir/research-report-service/internal/domain"
)

// SessionRepository handles research session persistence and lifecycle management.
// The persisted row is the durable record of a session; it outlives the
// orchestrator's in-memory state and is what resume operates on.
type SessionRepository interface {
	// Create inserts a new research session.
	// The session must have a valid ID, ChatID, and Query.
	// Returns domain.ErrAlreadyExists if a session with the same ID already exists.
	// Returns domain.ErrInvalidInput if required fields are missing.
	Create(ctx context.Context, session *domain.ResearchSession) error

	// GetByID retrieves a research session by its ID.
	// Returns domain.ErrNotFound if no matching session exists.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.ResearchSession, error)

	// List retrieves research sessions matching the filter criteria.
	// Returns the matching sessions and total count for pagination.
	// The total count reflects all matching records regardless of limit/offset.
	List(ctx context.Context, filter SessionFilter) ([]*domain.ResearchSession, int64, error)

	// UpdateStatus transitions the session to a new status.
	// Invalid transitions (including any transition out of a terminal status)
	// return domain.ErrInvalidInput.
	// Returns domain.ErrNotFound if no matching session exists.
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.SessionStatus) error

	// UpdatePlan stores the research plan produced by the planning phase.
	// Returns domain.ErrNotFound if no matching session exists.
	UpdatePlan(ctx context.Context, id uuid.UUID, plan *domain.ResearchPlan) error

	// UpdateStep records the index of the plan section currently being
	// researched, so a paused session can resume where it left off.
	// Returns domain.ErrNotFound if no matching session exists.
	UpdateStep(ctx context.Context, id uuid.UUID, step int) error

	// UpdateQuery replaces the session's research query. Only sessions
	// that have not reached a terminal status may be updated.
	// Returns domain.ErrNotFound if no matching session exists.
	UpdateQuery(ctx context.Context, id uuid.UUID, query string) error

	// UpdateProgress persists the accumulated report content and source
	// list. Called at section boundaries and on completion.
	// Returns domain.ErrNotFound if no matching session exists.
	UpdateProgress(ctx context.Context, id uuid.UUID, reportContent string, sources []*domain.AcademicSource) error
}

// SessionFilter defines filter criteria for listing research sessions.
type SessionFilter struct {
	// ChatID restricts results to a single conversation when non-nil.
	ChatID *uuid.UUID
	// Status restricts results to the given statuses when non-empty.
	Status []domain.SessionStatus
	// CreatedAfter restricts results to sessions created after this time.
	CreatedAfter *time.Time
	// CreatedBefore restricts results to sessions created before this time.
	CreatedBefore *time.Time
	// Limit is the maximum number of results (default 100, max 1000).
	Limit int
	// Offset is the number of results to skip.
	Offset int
}

// Validate normalizes pagination values and checks the filter.
func (f *SessionFilter) Validate() error {
	applyPaginationDefaults(&f.Limit, &f.Offset)
	return nil
}
