package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/lo"
)

// reflectWindow bounds how far back reflection looks for raw conversation
// entries.
const reflectWindow = 7 * 24 * time.Hour

// minReflectEntries is the smallest batch worth summarizing.
const minReflectEntries = 3

// Reflect folds a session's recent conversation entries into one durable
// fact. The summarized entries are marked superseded by the new fact, so the
// store converges toward compact knowledge instead of raw transcript. A
// session with too little material is a no-op, not an error.
func (m *Manager) Reflect(ctx context.Context, sessionID string, summarizer Summarizer) (Entry, bool, error) {
	if m.store == nil {
		return Entry{}, false, &UnavailableError{Op: "reflect", Err: errNoStore}
	}
	if summarizer == nil {
		return Entry{}, false, fmt.Errorf("no summarizer configured")
	}

	since := time.Now().Add(-reflectWindow)
	entries, err := m.store.RecentByCategory(ctx, sessionID, CategoryConversation, since, 50)
	if err != nil {
		return Entry{}, false, fmt.Errorf("load conversation entries: %w", err)
	}
	if len(entries) < minReflectEntries {
		m.logger.Debug().
			Str("session_id", sessionID).
			Int("entries", len(entries)).
			Msg("Reflect: not enough material, skipping")
		return Entry{}, false, nil
	}

	summary, err := summarizer.Summarize(ctx, entries)
	if err != nil {
		return Entry{}, false, fmt.Errorf("summarize entries: %w", err)
	}

	fact, err := m.store.Add(ctx, EntryInput{
		SessionID:  sessionID,
		Category:   CategoryFact,
		Content:    summary,
		Importance: 0.7,
		Metadata: map[string]any{
			"source":       "reflection",
			"folded_count": len(entries),
		},
	})
	if err != nil {
		return Entry{}, false, fmt.Errorf("store reflection summary: %w", err)
	}

	ids := lo.Map(entries, func(e Entry, _ int) int64 { return e.ID })
	if err := m.store.MarkSuperseded(ctx, ids, fact.ID); err != nil {
		return Entry{}, false, fmt.Errorf("supersede folded entries: %w", err)
	}

	m.logger.Info().
		Str("session_id", sessionID).
		Int("folded", len(entries)).
		Int64("fact_id", fact.ID).
		Msg("Reflect: conversation entries folded into fact")
	return fact, true, nil
}
