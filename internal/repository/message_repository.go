package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/helixir/research-report-service/internal/domain"
)

// MessageRepository handles durable chat message persistence.
// Final research reports are stored as assistant messages with the
// session's source list serialized into the message metadata.
type MessageRepository interface {
	// Create inserts a new chat message.
	// The message must have a valid ID, ChatID, Role, and Content.
	// Returns domain.ErrAlreadyExists if a message with the same ID already exists.
	// Returns domain.ErrInvalidInput if required fields are missing.
	Create(ctx context.Context, message *domain.ChatMessage) error

	// ListByChat retrieves messages for a conversation ordered by creation
	// time ascending. Returns the matching messages and total count.
	ListByChat(ctx context.Context, chatID uuid.UUID, limit, offset int) ([]*domain.ChatMessage, int64, error)
}
