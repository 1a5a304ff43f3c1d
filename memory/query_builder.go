package memory

import (
	sq "github.com/Masterminds/squirrel"
)

// StatementBuilder returns a Squirrel StatementBuilder configured for SQLite.
// SQLite uses '?' as placeholders, which is Squirrel's default.
func StatementBuilder() sq.StatementBuilderType {
	return sq.StatementBuilder
}

// SelectEntryColumns returns the standard column list for memory_entries
// SELECT queries, in the order loadEntryFromRow expects.
func SelectEntryColumns() []string {
	return []string{
		"id", "session_id", "turn_id", "category", "content",
		"embedding", "metadata", "importance", "created_at", "superseded_by",
	}
}
