package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/helixir/research-report-service/internal/domain"
)

// PostgreSQL error codes used for constraint violation detection.
const (
	pgUniqueViolation     = "23505" // unique_violation
	pgForeignKeyViolation = "23503" // foreign_key_violation
)

// validStatusTransitions defines the allowed status transitions for research sessions.
// This is a package-level variable to avoid re-allocating on every call.
var validStatusTransitions = map[domain.SessionStatus][]domain.SessionStatus{
	domain.SessionStatusPending: {
		domain.SessionStatusRunning,
		// A pause request can land before the run goroutine persists
		// running; the run then moves paused back to running.
		domain.SessionStatusPaused,
		domain.SessionStatusCancelled,
	},
	domain.SessionStatusRunning: {
		domain.SessionStatusPaused,
		domain.SessionStatusCompleted,
		domain.SessionStatusCancelled,
	},
	domain.SessionStatusPaused: {
		domain.SessionStatusRunning,
		domain.SessionStatusCancelled,
	},
}

// Compile-time interface verification.
var _ SessionRepository = (*PgSessionRepository)(nil)

// PgSessionRepository is a PostgreSQL implementation of SessionRepository.
type PgSessionRepository struct {
	db DBTX
}

// NewPgSessionRepository creates a new PostgreSQL session repository.
func NewPgSessionRepository(db DBTX) *PgSessionRepository {
	return &PgSessionRepository{db: db}
}

// Create inserts a new research session.
func (r *PgSessionRepository) Create(ctx context.Context, session *domain.ResearchSession) error {
	if session == nil {
		return domain.NewValidationError("session", "session cannot be nil")
	}
	if session.ID == uuid.Nil {
		return domain.NewValidationError("id", "session ID is required")
	}
	if session.ChatID == uuid.Nil {
		return domain.NewValidationError("chat_id", "chat ID is required")
	}
	if strings.TrimSpace(session.Query) == "" {
		return domain.NewValidationError("query", "query is required")
	}

	planJSON, err := marshalPlan(session.Plan)
	if err != nil {
		return err
	}

	sourcesJSON, err := json.Marshal(session.Sources)
	if err != nil {
		return fmt.Errorf("failed to marshal sources: %w", err)
	}

	query := `
		INSERT INTO research_sessions (
			id, chat_id, status, query, model, language,
			plan, current_step, sources, report_content,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10,
			$11, $12
		)`

	_, err = r.db.Exec(ctx, query,
		session.ID, session.ChatID, session.Status, session.Query,
		nullString(session.Model), nullString(session.Language),
		planJSON, session.CurrentStep, sourcesJSON, session.ReportContent,
		session.CreatedAt, session.UpdatedAt,
	)

	if err != nil {
		if isPgUniqueViolation(err) {
			return domain.NewAlreadyExistsError("session", session.ID.String())
		}
		return fmt.Errorf("failed to create session: %w", err)
	}

	return nil
}

// GetByID retrieves a research session by its ID.
func (r *PgSessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.ResearchSession, error) {
	query := `
		SELECT id, chat_id, status, query, model, language,
			plan, current_step, sources, report_content,
			created_at, updated_at
		FROM research_sessions
		WHERE id = $1`

	row := r.db.QueryRow(ctx, query, id)
	session, err := scanSession(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("session", id.String())
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	return session, nil
}

// List retrieves research sessions matching the filter criteria.
func (r *PgSessionRepository) List(ctx context.Context, filter SessionFilter) ([]*domain.ResearchSession, int64, error) {
	if err := filter.Validate(); err != nil {
		return nil, 0, err
	}

	// Build dynamic WHERE clause
	conditions := []string{"TRUE"}
	args := []interface{}{}
	argIndex := 1

	if filter.ChatID != nil {
		conditions = append(conditions, fmt.Sprintf("chat_id = $%d", argIndex))
		args = append(args, *filter.ChatID)
		argIndex++
	}

	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, s := range filter.Status {
			placeholders[i] = fmt.Sprintf("$%d", argIndex)
			args = append(args, s)
			argIndex++
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ", ")))
	}

	if filter.CreatedAfter != nil {
		conditions = append(conditions, fmt.Sprintf("created_at > $%d", argIndex))
		args = append(args, *filter.CreatedAfter)
		argIndex++
	}

	if filter.CreatedBefore != nil {
		conditions = append(conditions, fmt.Sprintf("created_at < $%d", argIndex))
		args = append(args, *filter.CreatedBefore)
		argIndex++
	}

	whereClause := strings.Join(conditions, " AND ")

	// Count total matching records
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM research_sessions WHERE %s", whereClause)
	var totalCount int64
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&totalCount); err != nil {
		return nil, 0, fmt.Errorf("failed to count sessions: %w", err)
	}

	// Query with pagination
	selectQuery := fmt.Sprintf(`
		SELECT id, chat_id, status, query, model, language,
			plan, current_step, sources, report_content,
			created_at, updated_at
		FROM research_sessions
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`,
		whereClause, argIndex, argIndex+1)

	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.Query(ctx, selectQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	sessions := make([]*domain.ResearchSession, 0, filter.Limit)
	for rows.Next() {
		session, err := scanSessionFromRows(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, session)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating sessions: %w", err)
	}

	return sessions, totalCount, nil
}

// UpdateStatus transitions the session to a new status.
// The transition is validated against the current row state inside a single
// UPDATE so that concurrent writers cannot race past a terminal status.
func (r *PgSessionRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.SessionStatus) error {
	current, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if !isValidStatusTransition(current.Status, status) {
		return fmt.Errorf("invalid status transition from %s to %s: %w",
			current.Status, status, domain.ErrInvalidInput)
	}

	query := `
		UPDATE research_sessions
		SET status = $1, updated_at = $2
		WHERE id = $3 AND status = $4`

	result, err := r.db.Exec(ctx, query, status, time.Now().UTC(), id, current.Status)
	if err != nil {
		return fmt.Errorf("failed to update session status: %w", err)
	}

	// Zero rows means the status changed underneath us between the read
	// and the write. Treat it the same as an invalid transition.
	if result.RowsAffected() == 0 {
		return fmt.Errorf("concurrent status change for session %s: %w", id, domain.ErrInvalidInput)
	}

	return nil
}

// UpdatePlan stores the research plan produced by the planning phase.
func (r *PgSessionRepository) UpdatePlan(ctx context.Context, id uuid.UUID, plan *domain.ResearchPlan) error {
	if plan == nil || len(plan.Sections) == 0 {
		return domain.NewValidationError("plan", "plan must contain at least one section")
	}

	planJSON, err := marshalPlan(plan)
	if err != nil {
		return err
	}

	query := `
		UPDATE research_sessions
		SET plan = $1, updated_at = $2
		WHERE id = $3`

	result, err := r.db.Exec(ctx, query, planJSON, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update session plan: %w", err)
	}

	if result.RowsAffected() == 0 {
		return domain.NewNotFoundError("session", id.String())
	}

	return nil
}

// UpdateStep records the index of the plan section currently being researched.
func (r *PgSessionRepository) UpdateStep(ctx context.Context, id uuid.UUID, step int) error {
	if step < 0 {
		return domain.NewValidationError("step", "step must not be negative")
	}

	query := `
		UPDATE research_sessions
		SET current_step = $1, updated_at = $2
		WHERE id = $3`

	result, err := r.db.Exec(ctx, query, step, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update session step: %w", err)
	}

	if result.RowsAffected() == 0 {
		return domain.NewNotFoundError("session", id.String())
	}

	return nil
}

// UpdateQuery replaces the session's research query.
// Terminal sessions are immutable, so the update is restricted to
// non-terminal statuses at the SQL level.
func (r *PgSessionRepository) UpdateQuery(ctx context.Context, id uuid.UUID, query string) error {
	if strings.TrimSpace(query) == "" {
		return domain.NewValidationError("query", "query is required")
	}

	updateQuery := `
		UPDATE research_sessions
		SET query = $1, updated_at = $2
		WHERE id = $3 AND status NOT IN ('completed', 'cancelled')`

	result, err := r.db.Exec(ctx, updateQuery, query, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update session query: %w", err)
	}

	if result.RowsAffected() == 0 {
		// Distinguish missing from terminal for a useful error.
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return getErr
		}
		return fmt.Errorf("session %s is in a terminal status: %w", id, domain.ErrInvalidInput)
	}

	return nil
}

// UpdateProgress persists the accumulated report content and source list.
func (r *PgSessionRepository) UpdateProgress(ctx context.Context, id uuid.UUID, reportContent string, sources []*domain.AcademicSource) error {
	sourcesJSON, err := json.Marshal(sources)
	if err != nil {
		return fmt.Errorf("failed to marshal sources: %w", err)
	}

	query := `
		UPDATE research_sessions
		SET report_content = $1, sources = $2, updated_at = $3
		WHERE id = $4`

	result, err := r.db.Exec(ctx, query, reportContent, sourcesJSON, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update session progress: %w", err)
	}

	if result.RowsAffected() == 0 {
		return domain.NewNotFoundError("session", id.String())
	}

	return nil
}

// isValidStatusTransition validates that a status transition is allowed.
func isValidStatusTransition(from, to domain.SessionStatus) bool {
	// Terminal states cannot transition to anything.
	if from.IsTerminal() {
		return false
	}

	allowed, ok := validStatusTransitions[from]
	if !ok {
		return false
	}

	for _, s := range allowed {
		if s == to {
			return true
		}
	}

	return false
}

// isPgUniqueViolation checks if the error is a PostgreSQL unique constraint violation.
func isPgUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return false
}

// marshalPlan serializes a plan into JSONB, preserving NULL for absent plans.
func marshalPlan(plan *domain.ResearchPlan) ([]byte, error) {
	if plan == nil {
		return nil, nil
	}
	data, err := json.Marshal(plan)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal plan: %w", err)
	}
	return data, nil
}

// sessionScanDest holds the destination pointers for scanning a ResearchSession row.
// This eliminates code duplication between pgx.Row and pgx.Rows scanning.
type sessionScanDest struct {
	session     domain.ResearchSession
	planJSON    []byte
	sourcesJSON []byte
	model       *string
	language    *string
}

// destinations returns the slice of pointers for Scan operations.
func (d *sessionScanDest) destinations() []interface{} {
	return []interface{}{
		&d.session.ID, &d.session.ChatID, &d.session.Status, &d.session.Query,
		&d.model, &d.language,
		&d.planJSON, &d.session.CurrentStep, &d.sourcesJSON, &d.session.ReportContent,
		&d.session.CreatedAt, &d.session.UpdatedAt,
	}
}

// finalize performs post-scan processing: sets nullable string fields and unmarshals JSON.
func (d *sessionScanDest) finalize() (*domain.ResearchSession, error) {
	if d.model != nil {
		d.session.Model = *d.model
	}
	if d.language != nil {
		d.session.Language = *d.language
	}

	if len(d.planJSON) > 0 {
		var plan domain.ResearchPlan
		if err := json.Unmarshal(d.planJSON, &plan); err != nil {
			return nil, fmt.Errorf("failed to unmarshal plan: %w", err)
		}
		d.session.Plan = &plan
	}

	if len(d.sourcesJSON) > 0 {
		if err := json.Unmarshal(d.sourcesJSON, &d.session.Sources); err != nil {
			return nil, fmt.Errorf("failed to unmarshal sources: %w", err)
		}
	}

	return &d.session, nil
}

// scanSession scans a single row into a ResearchSession.
func scanSession(row pgx.Row) (*domain.ResearchSession, error) {
	var dest sessionScanDest
	if err := row.Scan(dest.destinations()...); err != nil {
		return nil, err
	}
	return dest.finalize()
}

// scanSessionFromRows scans the current row from pgx.Rows into a ResearchSession.
func scanSessionFromRows(rows pgx.Rows) (*domain.ResearchSession, error) {
	var dest sessionScanDest
	if err := rows.Scan(dest.destinations()...); err != nil {
		return nil, err
	}
	return dest.finalize()
}

// nullString returns a pointer to the string if non-empty, otherwise nil.
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
