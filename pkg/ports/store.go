package ports

import (
	"context"

	"github.com/aretw0/pergola/pkg/domain"
)

// ConversationStore persists conversation records between invocations.
// Stores treat continuation payloads as opaque bytes and apply their own expiry policy.
type ConversationStore interface {
	// Save creates or replaces the record for conv.ID.
	Save(ctx context.Context, conv *domain.Conversation) error

	// Load retrieves a record.
	// Returns domain.ErrConversationNotFound if it does not exist (or expired).
	Load(ctx context.Context, conversationID string) (*domain.Conversation, error)

	// Delete removes a record. Deleting a missing record is not an error.
	Delete(ctx context.Context, conversationID string) error

	// List returns the ids of all stored conversations.
	List(ctx context.Context) ([]string, error)
}
