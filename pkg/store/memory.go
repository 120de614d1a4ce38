package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store, used when no database path is
// configured and throughout the tests. A single mutex serializes all
// mutations, which also serializes concurrent appends to the same chat.
type MemoryStore struct {
	mu    sync.RWMutex
	chats map[string]*Chat
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{chats: make(map[string]*Chat)}
}

func (s *MemoryStore) Create(_ context.Context, userID, title string, first Message) (*Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	chat := &Chat{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     title,
		Messages:  []Message{first},
		UpdatedAt: time.Now().UTC(),
	}
	s.chats[chat.ID] = chat
	return copyChat(chat), nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	chat, ok := s.chats[id]
	if !ok {
		return nil, ErrNotFound{ID: id}
	}
	return copyChat(chat), nil
}

func (s *MemoryStore) Append(_ context.Context, id string, msg Message) (*Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	chat, ok := s.chats[id]
	if !ok {
		return nil, ErrNotFound{ID: id}
	}
	chat.Messages = append(chat.Messages, msg)
	chat.UpdatedAt = time.Now().UTC()
	return copyChat(chat), nil
}

func (s *MemoryStore) Rename(_ context.Context, id, title string) (*Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	chat, ok := s.chats[id]
	if !ok {
		return nil, ErrNotFound{ID: id}
	}
	chat.Title = title
	chat.UpdatedAt = time.Now().UTC()
	return copyChat(chat), nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.chats, id)
	return nil
}

func (s *MemoryStore) List(_ context.Context, userID string) ([]Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summaries := make([]Summary, 0)
	for _, chat := range s.chats {
		if chat.UserID != userID {
			continue
		}
		summaries = append(summaries, Summary{ID: chat.ID, Title: chat.Title, UpdatedAt: chat.UpdatedAt})
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].UpdatedAt.After(summaries[j].UpdatedAt)
	})
	return summaries, nil
}

func (s *MemoryStore) Close() error {
	return nil
}

// copyChat returns a deep copy so callers never share the store's slices.
func copyChat(chat *Chat) *Chat {
	out := *chat
	out.Messages = make([]Message, len(chat.Messages))
	copy(out.Messages, chat.Messages)
	return &out
}
