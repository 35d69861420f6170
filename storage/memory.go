// In-memory store for tests and ephemeral sessions.
//
// Information Hiding:
// - Map storage structure hidden from users
// - Thread-safe access via RWMutex hidden behind interface

package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/warden-agent/warden/llm"
)

// InMemoryStore implements ConversationStore and MemoryStore using
// maps. Data is lost when the process terminates.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string][]llm.ChatMessage
	order    []string
	facts    map[string][]Fact
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		sessions: make(map[string][]llm.ChatMessage),
		facts:    make(map[string][]Fact),
	}
}

// Save replaces the stored history for a session.
func (s *InMemoryStore) Save(ctx context.Context, sessionID string, history []llm.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Copy to avoid external mutations.
	copied := make([]llm.ChatMessage, len(history))
	copy(copied, history)
	if _, ok := s.sessions[sessionID]; !ok {
		s.order = append(s.order, sessionID)
	}
	s.sessions[sessionID] = copied
	return nil
}

// Load returns the stored history, empty slice if the session is
// unknown.
func (s *InMemoryStore) Load(ctx context.Context, sessionID string) ([]llm.ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.sessions[sessionID]
	if !ok {
		return []llm.ChatMessage{}, nil
	}
	copied := make([]llm.ChatMessage, len(history))
	copy(copied, history)
	return copied, nil
}

// Delete removes a session and its history.
func (s *InMemoryStore) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, sessionID)
	for i, id := range s.order {
		if id == sessionID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// ListSessions lists known session IDs, most recently created first.
func (s *InMemoryStore) ListSessions(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, len(s.order))
	copy(out, s.order)
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// SaveFact stores one fact.
func (s *InMemoryStore) SaveFact(ctx context.Context, fact Fact) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.facts[fact.SessionID] = append(s.facts[fact.SessionID], fact)
	return nil
}

// Facts returns up to limit facts for a session, newest first.
func (s *InMemoryStore) Facts(ctx context.Context, sessionID string, limit int) ([]Fact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.facts[sessionID]
	out := make([]Fact, len(stored))
	copy(out, stored)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt > out[j].CreatedAt })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Verify InMemoryStore implements the store interfaces.
var (
	_ ConversationStore = (*InMemoryStore)(nil)
	_ MemoryStore       = (*InMemoryStore)(nil)
)
