package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/rs/zerolog"
)

// Store persists long-term memory entries in SQLite. Entries are embedded at
// write time; a write with no usable embedding is rejected with an
// EmbeddingError so the store never accumulates unsearchable rows. The first
// successful write locks the embedding dimensionality for the lifetime of
// the instance.
type Store struct {
	db       *sql.DB
	embedder Embedder
	logger   zerolog.Logger

	dimMu sync.Mutex
	dims  int // embedding length locked by the first write, 0 until then
}

// NewStore creates and returns a Store.
func NewStore(db *sql.DB, embedder Embedder, logger zerolog.Logger) (*Store, error) {
	logger = logger.With().Str("component", "memory_store").Logger()
	logger.Info().Msg("Initializing long-term memory store")
	return &Store{db: db, embedder: embedder, logger: logger}, nil
}

// EmbedText generates an embedding for the given text.
func (s *Store) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if s.embedder == nil {
		return nil, &EmbeddingError{Err: errors.New("no embedder configured")}
	}
	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, &EmbeddingError{Err: err}
	}
	return vec, nil
}

func now() int64 { return time.Now().Unix() }

// lockDimension fixes the store's embedding length on the first write and
// rejects any later vector of a different length.
func (s *Store) lockDimension(n int) error {
	s.dimMu.Lock()
	defer s.dimMu.Unlock()
	if s.dims == 0 {
		s.dims = n
		return nil
	}
	if n != s.dims {
		return &DimensionError{Want: s.dims, Got: n}
	}
	return nil
}

// Add stores a new entry. The content is embedded and indexed for both
// vector and keyword search before the transaction commits.
func (s *Store) Add(ctx context.Context, in EntryInput) (Entry, error) {
	s.logger.Debug().
		Str("method", "Add").
		Str("session_id", in.SessionID).
		Str("category", string(in.Category)).
		Str("content", truncateString(in.Content, 40)).
		Float64("importance", in.Importance).
		Msg("called")

	content := strings.TrimSpace(in.Content)
	if content == "" {
		return Entry{}, errors.New("content is empty")
	}
	if strings.TrimSpace(in.SessionID) == "" {
		return Entry{}, errors.New("session_id is empty")
	}
	switch in.Category {
	case CategoryPreference, CategoryFact, CategoryConversation:
	default:
		return Entry{}, fmt.Errorf("invalid category: %q", in.Category)
	}

	var metaJSON []byte
	var err error
	if in.Metadata != nil {
		metaJSON, err = json.Marshal(in.Metadata)
		if err != nil {
			return Entry{}, fmt.Errorf("marshal metadata: %w", err)
		}
	}

	embedding, err := s.EmbedText(ctx, content)
	if err != nil {
		s.logger.Error().
			Str("method", "Add").
			Err(err).
			Msg("Embedding failed, rejecting write")
		return Entry{}, err
	}
	if err := s.lockDimension(len(embedding)); err != nil {
		s.logger.Error().
			Str("method", "Add").
			Err(err).
			Msg("Embedding dimensionality changed, rejecting write")
		return Entry{}, err
	}

	nowUnix := now()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Entry{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var turnVal interface{}
	if in.TurnID != "" {
		turnVal = in.TurnID
	}

	query := StatementBuilder().
		Insert("memory_entries").
		Columns("session_id", "turn_id", "category", "content",
			"embedding", "metadata", "importance", "created_at").
		Values(in.SessionID, turnVal, string(in.Category), content,
			EncodeEmbedding(embedding), metaJSON, in.Importance, nowUnix)

	queryStr, args, err := query.ToSql()
	if err != nil {
		return Entry{}, fmt.Errorf("build insert query: %w", err)
	}

	res, err := tx.ExecContext(ctx, queryStr, args...)
	if err != nil {
		s.logger.Error().
			Str("method", "Add").
			Err(err).
			Msg("Failed to insert memory_entry")
		return Entry{}, fmt.Errorf("insert memory_entry: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Entry{}, err
	}

	if _, err := tx.ExecContext(ctx, `
INSERT INTO memory_entries_fts (rowid, content) VALUES (?, ?)
`, id, content); err != nil {
		return Entry{}, fmt.Errorf("insert fts: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Entry{}, err
	}

	s.logger.Info().
		Str("method", "Add").
		Str("session_id", in.SessionID).
		Str("category", string(in.Category)).
		Str("content", truncateString(content, 40)).
		Int64("id", id).
		Msg("Entry stored")

	return Entry{
		ID:         id,
		SessionID:  in.SessionID,
		TurnID:     in.TurnID,
		Category:   in.Category,
		Content:    content,
		Embedding:  embedding,
		Metadata:   in.Metadata,
		Importance: in.Importance,
		CreatedAt:  time.Unix(nowUnix, 0),
	}, nil
}

// Supersede stores a replacement entry and marks the old one as superseded by
// it. The old row is kept for lineage but excluded from all future searches.
func (s *Store) Supersede(ctx context.Context, oldID int64, in EntryInput) (Entry, error) {
	entry, err := s.Add(ctx, in)
	if err != nil {
		return Entry{}, err
	}
	if err := s.MarkSuperseded(ctx, []int64{oldID}, entry.ID); err != nil {
		return Entry{}, err
	}
	s.logger.Info().
		Str("method", "Supersede").
		Int64("old_id", oldID).
		Int64("new_id", entry.ID).
		Msg("Entry superseded")
	return entry, nil
}

// MarkSuperseded points each of the given entries at the entry that replaced
// them. Already-superseded rows are left untouched.
func (s *Store) MarkSuperseded(ctx context.Context, ids []int64, byID int64) error {
	if len(ids) == 0 {
		return nil
	}
	query := StatementBuilder().
		Update("memory_entries").
		Set("superseded_by", byID).
		Where(sq.Eq{"id": ids}).
		Where(sq.Eq{"superseded_by": nil})
	queryStr, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build update query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, queryStr, args...); err != nil {
		return fmt.Errorf("mark superseded: %w", err)
	}
	return nil
}

// RecentByCategory returns live entries of one category for a session, newest
// first, created at or after since. A zero since means no lower bound.
func (s *Store) RecentByCategory(
	ctx context.Context,
	sessionID string,
	category Category,
	since time.Time,
	limit int,
) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	query := StatementBuilder().
		Select(SelectEntryColumns()...).
		From("memory_entries").
		Where(sq.Eq{"session_id": sessionID}).
		Where(sq.Eq{"category": string(category)}).
		Where(sq.Eq{"superseded_by": nil}).
		OrderBy("created_at DESC", "id DESC").
		Limit(uint64(limit))
	if !since.IsZero() {
		query = query.Where(sq.GtOrEq{"created_at": since.Unix()})
	}

	queryStr, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, queryStr, args...)
	if err != nil {
		return nil, fmt.Errorf("recent query: %w", err)
	}
	defer rows.Close() //nolint:errcheck // no remedy for rows close error

	var entries []Entry
	for rows.Next() {
		entry, err := loadEntryFromRow(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

// DeleteAll forgets everything stored for a session.
func (s *Store) DeleteAll(ctx context.Context, sessionID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
DELETE FROM memory_entries_fts
WHERE rowid IN (SELECT id FROM memory_entries WHERE session_id = ?)
`, sessionID); err != nil {
		return fmt.Errorf("delete fts rows: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
DELETE FROM memory_entries WHERE session_id = ?
`, sessionID); err != nil {
		return fmt.Errorf("delete entries: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	s.logger.Info().
		Str("method", "DeleteAll").
		Str("session_id", sessionID).
		Msg("Session memory cleared")
	return nil
}

// Ping verifies the backing database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Helper function to safely truncate strings (for log safety).
func truncateString(s string, n int) string {
	rs := []rune(s)
	if len(rs) > n {
		return string(rs[:n]) + "..."
	}
	return s
}
