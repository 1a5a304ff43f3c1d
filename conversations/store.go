// Package conversations persists the user-visible transcript, one row per
// message. The agent core treats it as optional write-behind storage; the
// authoritative turn state lives in the memory package.
package conversations

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
)

// Store handles persistence of transcript messages.
// It implements agent.TranscriptPersister.
type Store struct {
	db *sql.DB
}

// NewStore creates a new transcript Store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Record is one persisted transcript row.
type Record struct {
	ID        int64
	SessionID string
	TurnID    string
	Role      string
	Content   string
	Action    string
	CreatedAt time.Time
}

// AppendUserMessage saves a user message to the transcript.
func (s *Store) AppendUserMessage(ctx context.Context, sessionID, turnID, content string) error {
	return s.append(ctx, sessionID, turnID, "user", content, "")
}

// AppendAssistantMessage saves an assistant message to the transcript,
// tagged with the action the turn took.
func (s *Store) AppendAssistantMessage(ctx context.Context, sessionID, turnID, content, action string) error {
	return s.append(ctx, sessionID, turnID, "assistant", content, action)
}

func (s *Store) append(ctx context.Context, sessionID, turnID, role, content, action string) error {
	now := time.Now().Unix()
	query := sq.Insert("conversations").
		Columns("session_id", "turn_id", "role", "content", "action", "created_at").
		Values(sessionID, turnID, role, content, action, now)

	queryStr, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	_, err = s.db.ExecContext(ctx, queryStr, args...)
	return err
}

// Recent returns the newest transcript rows for a session in chronological
// order, at most limit rows.
func (s *Store) Recent(ctx context.Context, sessionID string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	query := sq.Select("id", "session_id", "turn_id", "role", "content", "action", "created_at").
		From("conversations").
		Where(sq.Eq{"session_id": sessionID}).
		OrderBy("created_at DESC", "id DESC").
		Limit(uint64(limit))

	queryStr, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, queryStr, args...)
	if err != nil {
		return nil, fmt.Errorf("recent query: %w", err)
	}
	defer rows.Close() //nolint:errcheck // no remedy for rows close error

	var records []Record
	for rows.Next() {
		var rec Record
		var createdAt int64
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.TurnID, &rec.Role, &rec.Content, &rec.Action, &createdAt); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		rec.CreatedAt = time.Unix(createdAt, 0)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse to chronological order.
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
	return records, nil
}

// DeleteSession removes every transcript row for a session.
func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	query := sq.Delete("conversations").Where(sq.Eq{"session_id": sessionID})

	queryStr, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	_, err = s.db.ExecContext(ctx, queryStr, args...)
	return err
}
