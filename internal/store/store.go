// Package store holds the ordered, de-duplicated message list for the
// active conversation. Display order is delivery order; the store
// never re-sorts, trusting the server's per-conversation causal
// delivery.
package store

import (
	"sync"

	"github.com/chatbird/chatbird-bridge/internal/domain"
)

type MessageStore struct {
	mu       sync.RWMutex
	messages []domain.Message
	index    map[string]struct{}
	loading  bool
}

func New() *MessageStore {
	return &MessageStore{
		index: make(map[string]struct{}),
	}
}

// Replace swaps in a full history in server-provided order and clears
// the loading state.
func (s *MessageStore) Replace(messages []domain.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages = make([]domain.Message, len(messages))
	copy(s.messages, messages)
	s.index = make(map[string]struct{}, len(messages))
	for _, m := range messages {
		s.index[m.ID] = struct{}{}
	}
	s.loading = false
}

// Append adds a live message to the end of the list unless one with
// the same id is already present. Duplicate delivery (reconnect
// replay, echo of own sends) is discarded here and nowhere else.
// Reports whether the message was added.
func (s *MessageStore) Append(msg domain.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.index[msg.ID]; exists {
		return false
	}
	s.messages = append(s.messages, msg)
	s.index[msg.ID] = struct{}{}
	return true
}

// Remove drops the message with the given id, keeping order intact.
// Reports whether anything was removed.
func (s *MessageStore) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.index[id]; !exists {
		return false
	}
	delete(s.index, id)
	for i := range s.messages {
		if s.messages[i].ID == id {
			s.messages = append(s.messages[:i], s.messages[i+1:]...)
			break
		}
	}
	return true
}

// Reset discards all messages, used when the active conversation
// switches. The server records are untouched.
func (s *MessageStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = nil
	s.index = make(map[string]struct{})
	s.loading = false
}

// Messages returns a copy of the list in display order.
func (s *MessageStore) Messages() []domain.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

func (s *MessageStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

func (s *MessageStore) SetLoading(loading bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = loading
}

func (s *MessageStore) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}
