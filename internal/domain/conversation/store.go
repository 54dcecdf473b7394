package conversation

import (
	"context"
	"errors"
)

// ErrConversationNotFound is returned when a conversation doesn't exist.
var ErrConversationNotFound = errors.New("conversation not found")

// Store provides conversation persistence. Interface defined in the domain
// so adapters depend on conversation, not the other way around. The current
// implementations are intentionally in-memory; durability across restarts is
// a known gap, not silently papered over.
type Store interface {
	// Put stores a conversation.
	Put(ctx context.Context, conv *Conversation) error

	// Get retrieves a conversation by ID.
	// Returns ErrConversationNotFound if it doesn't exist.
	Get(ctx context.Context, id string) (*Conversation, error)

	// Delete removes a conversation.
	Delete(ctx context.Context, id string) error

	// List returns all stored conversations (for the external reaper).
	List(ctx context.Context) ([]*Conversation, error)
}
