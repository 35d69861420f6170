// Package storage provides persistence for conversations, saved
// memory facts and audit events.
//
// Information Hiding:
// - Backing store (map or SQLite) hidden behind interfaces
// - Schema and serialization details encapsulated
package storage

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/warden-agent/warden/llm"
)

// Fact is one remembered statement saved by the save_memory tool.
type Fact struct {
	// ID is a unique identifier for this fact.
	ID string `json:"id"`
	// SessionID is the session that saved the fact.
	SessionID string `json:"session_id"`
	// Content is the fact text.
	Content string `json:"content"`
	// CreatedAt is the Unix timestamp when saved.
	CreatedAt int64 `json:"created_at"`
}

// NewFact creates a fact with a fresh ID and timestamp.
func NewFact(sessionID, content string) Fact {
	return Fact{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		Content:   content,
		CreatedAt: time.Now().Unix(),
	}
}

// ConversationStore persists chat history per session.
type ConversationStore interface {
	// Save replaces the stored history for a session.
	Save(ctx context.Context, sessionID string, history []llm.ChatMessage) error
	// Load returns the stored history, empty slice if none.
	Load(ctx context.Context, sessionID string) ([]llm.ChatMessage, error)
	// Delete removes a session and its history.
	Delete(ctx context.Context, sessionID string) error
	// ListSessions lists known session IDs, most recent first.
	ListSessions(ctx context.Context) ([]string, error)
}

// MemoryStore persists facts saved by the save_memory tool.
type MemoryStore interface {
	// SaveFact stores one fact.
	SaveFact(ctx context.Context, fact Fact) error
	// Facts returns up to limit facts for a session, newest first.
	Facts(ctx context.Context, sessionID string, limit int) ([]Fact, error)
}
