package memory

import (
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func newTestManager(t *testing.T, embedder Embedder) (*Manager, *Store) {
	t.Helper()
	db := setupTestDB(t)
	t.Cleanup(func() { _ = db.Close() })

	store, err := NewStore(db, embedder, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	m := NewManager(store, ManagerConfig{RelevanceFloor: 0.2}, zerolog.Nop())
	t.Cleanup(m.Close)
	return m, store
}

func TestManager_RecordTurnAndBuildContext(t *testing.T) {
	m, store := newTestManager(t, newSemanticEmbedder(128))
	ctx := context.Background()

	m.RecordTurn("s1", Turn{
		User:      NewMessage(RoleUser, "hello there", "t1"),
		Assistant: NewMessage(RoleAssistant, "hi, how can I help?", "t1"),
	})
	if _, err := store.Add(ctx, EntryInput{
		SessionID: "s1", Category: CategoryPreference,
		Content: "User prefers spicy Mexican food", Importance: 0.8,
	}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	tc := m.BuildContext(ctx, "s1", "what spicy Mexican food should I eat")
	if tc.Degraded {
		t.Fatalf("context should not be degraded")
	}
	if len(tc.Recent) != 2 {
		t.Fatalf("expected 2 recent messages, got %d", len(tc.Recent))
	}
	if len(tc.Memories) == 0 {
		t.Fatalf("expected long-term memories in context")
	}
	if !strings.Contains(tc.Memories[0].Entry.Content, "spicy") {
		t.Errorf("unexpected top memory: %q", tc.Memories[0].Entry.Content)
	}
}

func TestManager_BuildContextDegradesWhenStoreDown(t *testing.T) {
	db := setupTestDB(t)
	store, err := NewStore(db, newSemanticEmbedder(64), zerolog.Nop())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	m := NewManager(store, ManagerConfig{}, zerolog.Nop())
	defer m.Close()

	m.RecordTurn("s1", Turn{
		User:      NewMessage(RoleUser, "hello", "t1"),
		Assistant: NewMessage(RoleAssistant, "hi", "t1"),
	})
	_ = db.Close()

	tc := m.BuildContext(context.Background(), "s1", "anything")
	if !tc.Degraded {
		t.Fatalf("expected degraded context when store is unreachable")
	}
	if len(tc.Recent) != 2 {
		t.Fatalf("short-term context must survive store failure, got %d messages", len(tc.Recent))
	}
}

func TestManager_ConsolidatePromotesPreferences(t *testing.T) {
	m, store := newTestManager(t, newSemanticEmbedder(128))
	ctx := context.Background()

	stored, err := m.Consolidate(ctx, "s1", Turn{
		User:      NewMessage(RoleUser, "I like spicy Mexican food", "t1"),
		Assistant: NewMessage(RoleAssistant, "Noted!", "t1"),
	})
	if err != nil {
		t.Fatalf("Consolidate: %v", err)
	}
	if !stored {
		t.Fatalf("expected preference statement to be promoted")
	}

	results, err := store.Search(ctx, &SearchQuery{
		SessionID: "s1", Text: "spicy Mexican food",
		MinScore: 0.2, Limit: 5,
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) == 0 {
		t.Fatalf("promoted entry not found")
	}
	if results[0].Entry.Category != CategoryPreference {
		t.Errorf("expected preference category, got %s", results[0].Entry.Category)
	}
}

func TestManager_ConsolidateSkipsLowImportance(t *testing.T) {
	m, _ := newTestManager(t, newSemanticEmbedder(128))

	stored, err := m.Consolidate(context.Background(), "s1", Turn{
		User:      NewMessage(RoleUser, "ok thanks", "t1"),
		Assistant: NewMessage(RoleAssistant, "you're welcome", "t1"),
	})
	if err != nil {
		t.Fatalf("Consolidate: %v", err)
	}
	if stored {
		t.Fatalf("small talk must not be promoted")
	}
}

func TestManager_ConsolidateIsIdempotent(t *testing.T) {
	m, _ := newTestManager(t, newSemanticEmbedder(128))
	ctx := context.Background()
	turn := Turn{
		User:      NewMessage(RoleUser, "remember that my name is Dana", "t1"),
		Assistant: NewMessage(RoleAssistant, "Got it, Dana.", "t1"),
	}

	first, err := m.Consolidate(ctx, "s1", turn)
	if err != nil {
		t.Fatalf("first Consolidate: %v", err)
	}
	if !first {
		t.Fatalf("expected first consolidation to store")
	}

	second, err := m.Consolidate(ctx, "s1", turn)
	if err != nil {
		t.Fatalf("second Consolidate: %v", err)
	}
	if second {
		t.Fatalf("replayed turn must be suppressed as a near-duplicate")
	}
}

func TestManager_StoreExplicit(t *testing.T) {
	m, _ := newTestManager(t, newSemanticEmbedder(128))
	ctx := context.Background()

	entry, stored, err := m.StoreExplicit(ctx, EntryInput{
		SessionID: "s1", Category: CategoryFact,
		Content: "Dana works as a marine biologist",
	})
	if err != nil {
		t.Fatalf("StoreExplicit: %v", err)
	}
	if !stored {
		t.Fatalf("expected explicit memory to be stored")
	}
	if entry.Importance != 0.8 {
		t.Errorf("expected default importance 0.8, got %f", entry.Importance)
	}

	_, stored, err = m.StoreExplicit(ctx, EntryInput{
		SessionID: "s1", Category: CategoryFact,
		Content: "Dana works as a marine biologist",
	})
	if err != nil {
		t.Fatalf("StoreExplicit repeat: %v", err)
	}
	if stored {
		t.Fatalf("duplicate explicit memory must be suppressed")
	}
}

func TestManager_ClearSession(t *testing.T) {
	m, store := newTestManager(t, newSemanticEmbedder(128))
	ctx := context.Background()

	m.RecordTurn("s1", Turn{
		User:      NewMessage(RoleUser, "hello", "t1"),
		Assistant: NewMessage(RoleAssistant, "hi", "t1"),
	})
	if _, err := store.Add(ctx, EntryInput{
		SessionID: "s1", Category: CategoryFact,
		Content: "a fact to forget", Importance: 0.5,
	}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	if err := m.ClearSession(ctx, "s1"); err != nil {
		t.Fatalf("ClearSession: %v", err)
	}
	tc := m.BuildContext(ctx, "s1", "fact to forget")
	if len(tc.Recent) != 0 || len(tc.Memories) != 0 {
		t.Fatalf("expected empty context after clear, got %d recent, %d memories",
			len(tc.Recent), len(tc.Memories))
	}
}

func TestScoreImportance(t *testing.T) {
	sig := DefaultSignals()
	cases := []struct {
		input   string
		promote bool
	}{
		{"I like hiking in the mountains", true},
		{"My name is Dana and I work remotely", true},
		{"Please remember that I am allergic to peanuts", true},
		{"what time is it", false},
		{"ok", false},
	}
	for _, tc := range cases {
		score := ScoreImportance(tc.input, sig)
		if (score >= DefaultMinImportance) != tc.promote {
			t.Errorf("%q: score %.2f, promote=%v, want %v",
				tc.input, score, score >= DefaultMinImportance, tc.promote)
		}
	}
}

type stubSummarizer struct {
	summary string
}

func (s stubSummarizer) Summarize(ctx context.Context, entries []Entry) (string, error) {
	return s.summary, nil
}

func TestManager_ReflectFoldsConversation(t *testing.T) {
	m, store := newTestManager(t, newSemanticEmbedder(128))
	ctx := context.Background()

	snippets := []string{
		"User: planning a trip to Lisbon\nAssistant: sounds fun",
		"User: the trip is in October\nAssistant: noted",
		"User: budget is around 2000 euros\nAssistant: got it",
	}
	var ids []int64
	for _, s := range snippets {
		e, err := store.Add(ctx, EntryInput{
			SessionID: "s1", Category: CategoryConversation,
			Content: s, Importance: 0.6,
		})
		if err != nil {
			t.Fatalf("Add: %v", err)
		}
		ids = append(ids, e.ID)
	}

	fact, folded, err := m.Reflect(ctx, "s1", stubSummarizer{
		summary: "User is planning an October trip to Lisbon with a 2000 euro budget",
	})
	if err != nil {
		t.Fatalf("Reflect: %v", err)
	}
	if !folded {
		t.Fatalf("expected reflection to fold entries")
	}
	if fact.Category != CategoryFact {
		t.Errorf("expected fact category, got %s", fact.Category)
	}

	// The folded conversation entries are superseded and gone from search.
	results, err := store.Search(ctx, &SearchQuery{
		SessionID: "s1", Text: "trip to Lisbon", MinScore: 0.2, Limit: 10,
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	for _, r := range results {
		for _, id := range ids {
			if r.Entry.ID == id {
				t.Errorf("superseded entry %d still surfaced", id)
			}
		}
	}
}

func TestManager_ReflectSkipsThinSessions(t *testing.T) {
	m, store := newTestManager(t, newSemanticEmbedder(128))
	ctx := context.Background()

	if _, err := store.Add(ctx, EntryInput{
		SessionID: "s1", Category: CategoryConversation,
		Content: "User: hi\nAssistant: hello", Importance: 0.6,
	}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	_, folded, err := m.Reflect(ctx, "s1", stubSummarizer{summary: "nothing"})
	if err != nil {
		t.Fatalf("Reflect: %v", err)
	}
	if folded {
		t.Fatalf("a single entry is not worth a reflection pass")
	}
}
