package memory

import (
	"context"
	"sync"

	"github.com/hoshdog/ignition-llm-gateway-sub002/internal/domain/conversation"
)

// ConversationStore implements conversation.Store with a concurrent map.
// Conversations are shared by reference: the Conversation type guards its
// own history, so handing out the same pointer is safe.
type ConversationStore struct {
	mu    sync.RWMutex
	convs map[string]*conversation.Conversation
}

// NewConversationStore creates an empty in-memory conversation store.
func NewConversationStore() *ConversationStore {
	return &ConversationStore{convs: make(map[string]*conversation.Conversation)}
}

// Put stores a conversation.
func (s *ConversationStore) Put(ctx context.Context, conv *conversation.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.convs[conv.ID] = conv
	return nil
}

// Get retrieves a conversation by ID.
func (s *ConversationStore) Get(ctx context.Context, id string) (*conversation.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv, ok := s.convs[id]
	if !ok {
		return nil, conversation.ErrConversationNotFound
	}
	return conv, nil
}

// Delete removes a conversation.
func (s *ConversationStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.convs, id)
	return nil
}

// List returns all stored conversations.
func (s *ConversationStore) List(ctx context.Context) ([]*conversation.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*conversation.Conversation, 0, len(s.convs))
	for _, conv := range s.convs {
		out = append(out, conv)
	}
	return out, nil
}

// Compile-time interface verification.
var _ conversation.Store = (*ConversationStore)(nil)
