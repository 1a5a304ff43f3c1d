package memory

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Role identifies the sender of a conversational message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is one conversational unit held in short-term memory. Messages are
// immutable once created; long-term entries reference them by TurnID rather
// than duplicating them.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	TurnID    string    `json:"turn_id"`
}

// NewMessage creates a Message stamped with the current time.
func NewMessage(role Role, content, turnID string) Message {
	return Message{
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
		TurnID:    turnID,
	}
}

// NewTurnID returns a fresh turn identifier.
func NewTurnID() string {
	return uuid.NewString()
}

// Category classifies a long-term memory entry.
type Category string

const (
	CategoryPreference   Category = "preference"
	CategoryFact         Category = "fact"
	CategoryConversation Category = "conversation"
)

// ParseCategory maps free-form category text onto the closed category set,
// defaulting to fact for anything unrecognized.
func ParseCategory(s string) Category {
	switch Category(s) {
	case CategoryPreference, CategoryFact, CategoryConversation:
		return Category(s)
	default:
		return CategoryFact
	}
}

// Entry is a durable long-term memory record. Entries are never mutated in
// place; updates create a new entry and mark the old one superseded.
type Entry struct {
	ID           int64          `json:"id"`
	SessionID    string         `json:"session_id"`
	TurnID       string         `json:"turn_id,omitempty"`
	Category     Category       `json:"category"`
	Content      string         `json:"content"`
	Embedding    []float32      `json:"embedding,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	Importance   float64        `json:"importance"`
	CreatedAt    time.Time      `json:"created_at"`
	SupersededBy *int64         `json:"superseded_by,omitempty"`
}

// EntryInput is the writable subset of an Entry.
type EntryInput struct {
	SessionID  string
	TurnID     string
	Category   Category
	Content    string
	Importance float64
	Metadata   map[string]any
}

// SearchQuery controls a long-term memory search.
type SearchQuery struct {
	SessionID  string
	Text       string
	Embedding  []float32 // computed from Text when nil
	Categories []Category
	MinScore   float64 // relevance floor; DefaultRelevanceFloor when <= 0
	Limit      int
}

// SearchResult pairs an Entry with its similarity score.
type SearchResult struct {
	Entry *Entry
	Score float64
}

// Summarizer condenses a batch of entries into one durable statement.
// The reflection pipeline uses it to fold conversation entries into facts.
type Summarizer interface {
	Summarize(ctx context.Context, entries []Entry) (string, error)
}
