// Package store persists conversations for the gateway. A conversation is an
// owner-scoped, ordered list of turns; the gateway only ever reads, appends,
// renames, or deletes whole conversations, never reorders them.
package store

import (
	"context"
	"errors"
	"time"
)

// Roles as stored. The upstream API speaks "assistant"; the stored form keeps
// the client's "bot" and the mapping happens at request-assembly time.
const (
	RoleUser = "user"
	RoleBot  = "bot"
)

// Message is one turn in a conversation. Text may be empty only when Image is
// set (an image-only turn).
type Message struct {
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	Image     string    `json:"image,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Chat is a stored conversation.
type Chat struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Summary is the sidebar projection of a chat.
type Summary struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Store is the conversation persistence interface. Implementations serialize
// concurrent mutations internally, so two appends racing on the same chat
// both land (in some order) rather than corrupting the turn list.
type Store interface {
	// Create stores a new chat owned by userID with a single first message
	// and returns it.
	Create(ctx context.Context, userID, title string, first Message) (*Chat, error)

	// Get retrieves a chat by ID. Returns ErrNotFound if it doesn't exist.
	Get(ctx context.Context, id string) (*Chat, error)

	// Append adds a message to an existing chat, bumps its updated-at
	// timestamp, and returns the updated chat.
	Append(ctx context.Context, id string, msg Message) (*Chat, error)

	// Rename changes a chat's title and returns the updated chat.
	Rename(ctx context.Context, id, title string) (*Chat, error)

	// Delete removes a chat. Deleting a missing chat is not an error.
	Delete(ctx context.Context, id string) error

	// List returns summaries of all chats owned by userID, most recently
	// updated first.
	List(ctx context.Context, userID string) ([]Summary, error)

	// Close releases any resources held by the store.
	Close() error
}

// ErrNotFound is returned when a chat doesn't exist in the store.
type ErrNotFound struct {
	ID string
}

func (e ErrNotFound) Error() string {
	if e.ID == "" {
		return "chat not found"
	}
	return "chat not found: " + e.ID
}

// IsNotFound reports whether err is an ErrNotFound.
func IsNotFound(err error) bool {
	var nf ErrNotFound
	return errors.As(err, &nf)
}

// DeriveTitle builds a chat title from the first message: the first 30
// characters, with an ellipsis when truncated.
func DeriveTitle(text string) string {
	const max = 30
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max]) + "..."
}
