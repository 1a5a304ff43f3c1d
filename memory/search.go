package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/samber/lo"
)

// DefaultRelevanceFloor is the minimum cosine similarity for a vector hit to
// be surfaced when the query does not set its own floor.
const DefaultRelevanceFloor = 0.35

// DefaultSearchLimit caps results when the query does not set a limit.
const DefaultSearchLimit = 10

// vector search scans recent candidates and scores in process; this bounds
// the scan per query.
const candidateLimit = 500

// Search retrieves the most relevant live entries for a session. Vector
// similarity is the primary path; results below the relevance floor are
// dropped entirely, so an empty result is a normal answer. When no query
// embedding can be computed the search degrades to FTS keyword matching.
// Superseded entries never appear in results.
func (s *Store) Search(ctx context.Context, q *SearchQuery) ([]SearchResult, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	floor := q.MinScore
	if floor <= 0 {
		floor = DefaultRelevanceFloor
	}

	queryText := strings.TrimSpace(q.Text)
	embedding := q.Embedding
	if embedding == nil && queryText != "" && s.embedder != nil {
		vec, err := s.embedder.Embed(ctx, queryText)
		if err != nil {
			s.logger.Warn().
				Err(err).
				Msg("Search: query embedding failed, falling back to keyword search")
		} else {
			embedding = vec
		}
	}

	s.logger.Debug().
		Str("session_id", q.SessionID).
		Str("query_text", truncateString(queryText, 40)).
		Bool("has_embedding", embedding != nil).
		Float64("floor", floor).
		Int("limit", limit).
		Msg("Search: start")

	if embedding != nil {
		results, err := s.searchByVector(ctx, q, embedding, floor, limit)
		if err != nil {
			return nil, err
		}
		s.logger.Info().
			Int("num_results", len(results)).
			Msg("Search: vector search completed")
		return results, nil
	}

	if queryText == "" {
		return nil, nil
	}
	results, err := s.searchByKeyword(ctx, q, queryText, limit)
	if err != nil {
		return nil, err
	}
	s.logger.Info().
		Int("num_results", len(results)).
		Msg("Search: keyword fallback completed")
	return results, nil
}

func (s *Store) searchByVector(
	ctx context.Context,
	q *SearchQuery,
	embedding []float32,
	floor float64,
	limit int,
) ([]SearchResult, error) {
	query := StatementBuilder().
		Select(SelectEntryColumns()...).
		From("memory_entries").
		Where(buildFilterWhere(q)).
		OrderBy("created_at DESC").
		Limit(uint64(candidateLimit))

	queryStr, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, queryStr, args...)
	if err != nil {
		return nil, fmt.Errorf("vector query: %w", err)
	}
	defer rows.Close() //nolint:errcheck // no remedy for rows close error

	var results []SearchResult
	scanned := 0
	belowFloor := 0
	for rows.Next() {
		entry, err := loadEntryFromRow(rows)
		if err != nil {
			return nil, err
		}
		scanned++
		if len(entry.Embedding) == 0 {
			continue
		}
		score := CosineSimilarity(embedding, entry.Embedding)
		if score < floor {
			belowFloor++
			continue
		}
		results = append(results, SearchResult{Entry: entry, Score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	s.logger.Debug().
		Int("scanned", scanned).
		Int("below_floor", belowFloor).
		Int("valid", len(results)).
		Msg("searchByVector: summary")

	// Ties go to the more recent entry.
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if !results[i].Entry.CreatedAt.Equal(results[j].Entry.CreatedAt) {
			return results[i].Entry.CreatedAt.After(results[j].Entry.CreatedAt)
		}
		return results[i].Entry.ID > results[j].Entry.ID
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (s *Store) searchByKeyword(
	ctx context.Context,
	q *SearchQuery,
	queryText string,
	limit int,
) ([]SearchResult, error) {
	match := ftsMatchExpr(queryText)
	if match == "" {
		return nil, nil
	}

	// Scope to the session inside SQL so a busy neighboring session cannot
	// crowd the requesting session out of the row limit.
	rows, err := s.db.QueryContext(ctx, `
SELECT memory_entries_fts.rowid
FROM memory_entries_fts
JOIN memory_entries ON memory_entries.id = memory_entries_fts.rowid
WHERE memory_entries_fts MATCH ?
  AND memory_entries.session_id = ?
  AND memory_entries.superseded_by IS NULL
LIMIT ?
`, match, q.SessionID, limit*3)
	if err != nil {
		return nil, fmt.Errorf("fts query: %w", err)
	}
	defer rows.Close() //nolint:errcheck // no remedy for rows close error

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	entries, err := s.loadEntriesByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	results := lo.FilterMap(entries, func(e *Entry, _ int) (SearchResult, bool) {
		if !matchesQuery(e, q) {
			return SearchResult{}, false
		}
		return SearchResult{Entry: e, Score: 1.0}, true
	})
	sort.Slice(results, func(i, j int) bool {
		if !results[i].Entry.CreatedAt.Equal(results[j].Entry.CreatedAt) {
			return results[i].Entry.CreatedAt.After(results[j].Entry.CreatedAt)
		}
		return results[i].Entry.ID > results[j].Entry.ID
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// ftsMatchExpr turns free-form input into an FTS5 OR query of its bare words,
// stripping punctuation that FTS5 would treat as syntax.
func ftsMatchExpr(text string) string {
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !((r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'))
	})
	if len(words) == 0 {
		return ""
	}
	quoted := lo.Map(words, func(w string, _ int) string {
		return `"` + w + `"`
	})
	return strings.Join(quoted, " OR ")
}

func (s *Store) loadEntriesByIDs(ctx context.Context, ids []int64) ([]*Entry, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := StatementBuilder().
		Select(SelectEntryColumns()...).
		From("memory_entries").
		Where(sq.Eq{"id": ids})
	queryStr, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, queryStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck // no remedy for rows close error

	var entries []*Entry
	for rows.Next() {
		entry, err := loadEntryFromRow(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// buildFilterWhere builds Squirrel WHERE conditions shared by SQL-side
// search paths. Superseded entries are always excluded.
func buildFilterWhere(q *SearchQuery) sq.Sqlizer {
	conditions := sq.And{
		sq.Eq{"session_id": q.SessionID},
		sq.Eq{"superseded_by": nil},
	}
	if len(q.Categories) > 0 {
		cats := lo.Map(q.Categories, func(c Category, _ int) string { return string(c) })
		conditions = append(conditions, sq.Eq{"category": cats})
	}
	return conditions
}

// matchesQuery re-applies the query filters in process, for paths that load
// rows by id instead of through buildFilterWhere.
func matchesQuery(e *Entry, q *SearchQuery) bool {
	if e.SessionID != q.SessionID {
		return false
	}
	if e.SupersededBy != nil {
		return false
	}
	if len(q.Categories) > 0 && !lo.Contains(q.Categories, e.Category) {
		return false
	}
	return true
}

func loadEntryFromRow(rows *sql.Rows) (*Entry, error) {
	var (
		id           int64
		sessionID    string
		turnID       sql.NullString
		categoryStr  string
		content      string
		embBlob      []byte
		metaJSON     sql.NullString
		importance   float64
		createdAt    int64
		supersededBy sql.NullInt64
	)
	if err := rows.Scan(&id, &sessionID, &turnID, &categoryStr, &content,
		&embBlob, &metaJSON, &importance, &createdAt, &supersededBy); err != nil {
		return nil, err
	}

	vec, err := DecodeEmbedding(embBlob)
	if err != nil {
		return nil, err
	}

	var meta map[string]any
	if metaJSON.Valid && metaJSON.String != "" {
		_ = json.Unmarshal([]byte(metaJSON.String), &meta)
	}

	entry := &Entry{
		ID:         id,
		SessionID:  sessionID,
		Category:   Category(categoryStr),
		Content:    content,
		Embedding:  vec,
		Metadata:   meta,
		Importance: importance,
		CreatedAt:  time.Unix(createdAt, 0),
	}
	if turnID.Valid {
		entry.TurnID = turnID.String
	}
	if supersededBy.Valid {
		v := supersededBy.Int64
		entry.SupersededBy = &v
	}
	return entry, nil
}
