package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/helixir/research-report-service/internal/domain"
)

// Compile-time interface verification.
var _ MessageRepository = (*PgMessageRepository)(nil)

// PgMessageRepository is a PostgreSQL implementation of MessageRepository.
type PgMessageRepository struct {
	db DBTX
}

// NewPgMessageRepository creates a new PostgreSQL message repository.
func NewPgMessageRepository(db DBTX) *PgMessageRepository {
	return &PgMessageRepository{db: db}
}

// Create inserts a new chat message.
func (r *PgMessageRepository) Create(ctx context.Context, message *domain.ChatMessage) error {
	if message == nil {
		return domain.NewValidationError("message", "message cannot be nil")
	}
	if message.ID == uuid.Nil {
		return domain.NewValidationError("id", "message ID is required")
	}
	if message.ChatID == uuid.Nil {
		return domain.NewValidationError("chat_id", "chat ID is required")
	}
	if strings.TrimSpace(message.Role) == "" {
		return domain.NewValidationError("role", "role is required")
	}
	if message.Content == "" {
		return domain.NewValidationError("content", "content is required")
	}

	metadataJSON, err := json.Marshal(message.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	query := `
		INSERT INTO chat_messages (
			id, chat_id, role, content, metadata, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6
		)`

	_, err = r.db.Exec(ctx, query,
		message.ID, message.ChatID, message.Role, message.Content,
		metadataJSON, message.CreatedAt,
	)

	if err != nil {
		if isPgUniqueViolation(err) {
			return domain.NewAlreadyExistsError("message", message.ID.String())
		}
		return fmt.Errorf("failed to create message: %w", err)
	}

	return nil
}

// ListByChat retrieves messages for a conversation ordered by creation time ascending.
func (r *PgMessageRepository) ListByChat(ctx context.Context, chatID uuid.UUID, limit, offset int) ([]*domain.ChatMessage, int64, error) {
	if chatID == uuid.Nil {
		return nil, 0, domain.NewValidationError("chat_id", "chat ID is required")
	}
	applyPaginationDefaults(&limit, &offset)

	countQuery := `SELECT COUNT(*) FROM chat_messages WHERE chat_id = $1`
	var totalCount int64
	if err := r.db.QueryRow(ctx, countQuery, chatID).Scan(&totalCount); err != nil {
		return nil, 0, fmt.Errorf("failed to count messages: %w", err)
	}

	query := `
		SELECT id, chat_id, role, content, metadata, created_at
		FROM chat_messages
		WHERE chat_id = $1
		ORDER BY created_at ASC
		LIMIT $2 OFFSET $3`

	rows, err := r.db.Query(ctx, query, chatID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	messages := make([]*domain.ChatMessage, 0, limit)
	for rows.Next() {
		message, err := scanMessage(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, message)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating messages: %w", err)
	}

	return messages, totalCount, nil
}

// scanMessage scans the current row from pgx.Rows into a ChatMessage.
func scanMessage(rows pgx.Rows) (*domain.ChatMessage, error) {
	var (
		message      domain.ChatMessage
		metadataJSON []byte
	)

	err := rows.Scan(
		&message.ID, &message.ChatID, &message.Role, &message.Content,
		&metadataJSON, &message.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &message.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	return &message, nil
}
