package conversation

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hoshdog/ignition-llm-gateway-sub002/internal/domain/auth"
)

// DefaultTimeout is the default inactivity timeout after which a
// conversation is considered expired.
const DefaultTimeout = 30 * time.Minute

// Conversation owns one session's message history. The history is
// append-only and safe for concurrent read-while-append: snapshot reads
// never observe a partially-appended message. The AuthContext is fixed for
// the conversation's lifetime.
type Conversation struct {
	// ID is a generated unique identifier.
	ID string
	// AuthContext is the caller's resolved identity, fixed at creation.
	AuthContext *auth.Context
	// CreatedAt is when the conversation was created (UTC).
	CreatedAt time.Time
	// CurrentProject scopes relative resource paths the model emits.
	CurrentProject string
	// CurrentPath scopes relative resource paths within the project.
	CurrentPath string

	mu           sync.RWMutex
	messages     []Message
	lastActivity time.Time
	seq          int
}

// Spec enumerates every field of a new conversation.
type Spec struct {
	AuthContext    *auth.Context
	SystemPrompt   string
	CurrentProject string
	CurrentPath    string
}

// New constructs a conversation, seeding the history with the system prompt
// when one is given.
func New(spec Spec) *Conversation {
	now := time.Now().UTC()
	c := &Conversation{
		ID:             uuid.NewString(),
		AuthContext:    spec.AuthContext,
		CreatedAt:      now,
		CurrentProject: spec.CurrentProject,
		CurrentPath:    spec.CurrentPath,
		lastActivity:   now,
	}
	if spec.SystemPrompt != "" {
		c.Append(Message{Role: RoleSystem, Content: spec.SystemPrompt})
	}
	return c
}

// Append adds a message to the history and bumps LastActivity. The message's
// CreatedAt is assigned here if unset.
func (c *Conversation) Append(msg Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	c.messages = append(c.messages, msg)
	c.lastActivity = time.Now().UTC()
}

// Snapshot returns a copy of the full history. Safe to call while another
// goroutine appends.
func (c *Conversation) Snapshot() []Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Len returns the current history length.
func (c *Conversation) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.messages)
}

// LastActivity returns when the history last changed (UTC).
func (c *Conversation) LastActivity() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastActivity
}

// IsExpired reports whether the conversation exceeded the inactivity
// timeout. Expiry is advisory: reaping is an external scheduler's job.
func (c *Conversation) IsExpired(timeout time.Duration) bool {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return time.Now().UTC().Sub(c.LastActivity()) > timeout
}

// NextCorrelationID returns the next correlation ID in this conversation's
// lineage, used to tag tool-call actions and their audit entries.
func (c *Conversation) NextCorrelationID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	return "conv-" + c.ID + "-" + strconv.Itoa(c.seq)
}

// ResolvePath disambiguates a resource path the model emitted: relative
// paths are prefixed with the conversation's scoping hints.
func (c *Conversation) ResolvePath(path string) string {
	if path == "" || strings.HasPrefix(path, "/") {
		return path
	}
	parts := make([]string, 0, 3)
	if c.CurrentProject != "" {
		parts = append(parts, c.CurrentProject)
	}
	if c.CurrentPath != "" {
		parts = append(parts, strings.Trim(c.CurrentPath, "/"))
	}
	parts = append(parts, path)
	return strings.Join(parts, "/")
}
