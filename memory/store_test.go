package memory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/valet-agent/valet/migrations"

	_ "github.com/mattn/go-sqlite3"
)

type stubEmbedder struct{}

func (stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{float32(len(text)), 1.0}, nil
}

type failingEmbedder struct{}

func (failingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, errors.New("embedder offline")
}

// vecEmbedder returns a fixed vector for inputs containing a known key, and
// an orthogonal default otherwise. It makes relevance-floor tests exact.
type vecEmbedder struct {
	vecs map[string][]float32
}

func (e vecEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.Contains(text, "noembed") {
		return nil, errors.New("embedder offline")
	}
	lower := strings.ToLower(text)
	for key, v := range e.vecs {
		if strings.Contains(lower, key) {
			return v, nil
		}
	}
	return []float32{0, 0, 0, 1}, nil
}

// semanticEmbedder creates embeddings based on word content to simulate
// semantic similarity. Documents with overlapping words get similar
// embeddings, deterministically and without external services.
type semanticEmbedder struct {
	dimensions int
}

func newSemanticEmbedder(dimensions int) *semanticEmbedder {
	return &semanticEmbedder{dimensions: dimensions}
}

func (e *semanticEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	words := strings.Fields(strings.ToLower(text))
	if len(words) == 0 {
		return make([]float32, e.dimensions), nil
	}

	embedding := make([]float32, e.dimensions)
	for _, word := range words {
		h := fnv.New32a()
		if _, err := h.Write([]byte(word)); err != nil {
			return nil, err
		}
		hash := h.Sum32()

		// Each word influences a few dimensions for better similarity detection.
		for i := 0; i < 3; i++ {
			dim := int((hash + uint32(i)*2654435761) % uint32(e.dimensions)) // nolint:gosec // Test code
			embedding[dim] += float32(math.Sin(float64(hash+uint32(i))*0.1) + 1.0)
		}
	}

	var magnitude float32
	for _, val := range embedding {
		magnitude += val * val
	}
	magnitude = float32(math.Sqrt(float64(magnitude)))
	if magnitude > 0 {
		for i := range embedding {
			embedding[i] /= magnitude
		}
	}
	return embedding, nil
}

// setupTestDB creates an in-memory database and runs migrations.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	cwd, err := os.Getwd()
	if err != nil {
		t.Fatalf("failed to get working directory: %v", err)
	}
	migrationsPath := filepath.Join(cwd, "..", "migrations")

	if err := migrations.RunMigrations(db, migrationsPath, zerolog.Nop()); err != nil {
		_ = db.Close() //nolint:errcheck // Cleanup on error
		t.Fatalf("failed to run migrations: %v", err)
	}
	return db
}

func TestStore_AddAndSearch(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close() //nolint:errcheck // Test cleanup

	embedder := newSemanticEmbedder(128)
	store, err := NewStore(db, embedder, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	ctx := context.Background()
	_, err = store.Add(ctx, EntryInput{
		SessionID:  "s1",
		Category:   CategoryPreference,
		Content:    "User prefers spicy Mexican food for dinner",
		Importance: 0.8,
	})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	results, err := store.Search(ctx, &SearchQuery{
		SessionID: "s1",
		Text:      "spicy Mexican food",
		MinScore:  0.2,
		Limit:     5,
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) == 0 {
		t.Fatalf("expected results, got 0")
	}
	if results[0].Entry.Category != CategoryPreference {
		t.Errorf("expected preference category, got %s", results[0].Entry.Category)
	}
}

func TestStore_RelevanceFloor(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close() //nolint:errcheck // Test cleanup

	embedder := vecEmbedder{vecs: map[string][]float32{
		"alpha": {1, 0, 0, 0},
		"beta":  {0, 1, 0, 0},
	}}
	store, err := NewStore(db, embedder, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	ctx := context.Background()
	if _, err := store.Add(ctx, EntryInput{
		SessionID: "s1", Category: CategoryFact,
		Content: "alpha is the first topic", Importance: 0.5,
	}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	// Orthogonal query scores 0, below any floor: empty is the right answer.
	results, err := store.Search(ctx, &SearchQuery{
		SessionID: "s1", Text: "beta something else", Limit: 5,
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected no results below floor, got %d", len(results))
	}

	results, err = store.Search(ctx, &SearchQuery{
		SessionID: "s1", Text: "tell me about alpha", Limit: 5,
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected one result, got %d", len(results))
	}
}

func TestStore_SupersededExcluded(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close() //nolint:errcheck // Test cleanup

	embedder := vecEmbedder{vecs: map[string][]float32{
		"alpha": {1, 0, 0, 0},
	}}
	store, err := NewStore(db, embedder, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	ctx := context.Background()
	old, err := store.Add(ctx, EntryInput{
		SessionID: "s1", Category: CategoryFact,
		Content: "alpha old fact", Importance: 0.5,
	})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	replacement, err := store.Supersede(ctx, old.ID, EntryInput{
		SessionID: "s1", Category: CategoryFact,
		Content: "alpha new fact", Importance: 0.5,
	})
	if err != nil {
		t.Fatalf("Supersede: %v", err)
	}

	results, err := store.Search(ctx, &SearchQuery{
		SessionID: "s1", Text: "alpha", Limit: 10,
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected only the live entry, got %d results", len(results))
	}
	if results[0].Entry.ID != replacement.ID {
		t.Errorf("expected replacement entry %d, got %d", replacement.ID, results[0].Entry.ID)
	}
}

func TestStore_SessionIsolation(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close() //nolint:errcheck // Test cleanup

	embedder := vecEmbedder{vecs: map[string][]float32{
		"alpha": {1, 0, 0, 0},
	}}
	store, err := NewStore(db, embedder, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	ctx := context.Background()
	if _, err := store.Add(ctx, EntryInput{
		SessionID: "other", Category: CategoryFact,
		Content: "alpha belongs to another session", Importance: 0.5,
	}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	results, err := store.Search(ctx, &SearchQuery{
		SessionID: "s1", Text: "alpha", Limit: 10,
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected no cross-session results, got %d", len(results))
	}
}

func TestStore_AddRejectsOnEmbeddingFailure(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close() //nolint:errcheck // Test cleanup

	store, err := NewStore(db, failingEmbedder{}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	_, err = store.Add(context.Background(), EntryInput{
		SessionID: "s1", Category: CategoryFact,
		Content: "this should not be stored", Importance: 0.5,
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !IsEmbeddingError(err) {
		t.Fatalf("expected EmbeddingError, got %v", err)
	}
}

func TestStore_KeywordFallback(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close() //nolint:errcheck // Test cleanup

	embedder := vecEmbedder{vecs: map[string][]float32{
		"banana": {1, 0, 0, 0},
	}}
	store, err := NewStore(db, embedder, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	ctx := context.Background()
	if _, err := store.Add(ctx, EntryInput{
		SessionID: "s1", Category: CategoryFact,
		Content: "banana bread recipe from grandma", Importance: 0.5,
	}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	// The "noembed" marker makes the query embedding fail, forcing the FTS
	// fallback path.
	results, err := store.Search(ctx, &SearchQuery{
		SessionID: "s1", Text: "noembed banana recipe", Limit: 5,
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected one keyword result, got %d", len(results))
	}
	if results[0].Score != 1.0 {
		t.Errorf("keyword results score 1.0, got %f", results[0].Score)
	}
}

func TestStore_DeleteAll(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close() //nolint:errcheck // Test cleanup

	store, err := NewStore(db, stubEmbedder{}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	ctx := context.Background()
	if _, err := store.Add(ctx, EntryInput{
		SessionID: "s1", Category: CategoryFact,
		Content: "ephemeral fact", Importance: 0.5,
	}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := store.DeleteAll(ctx, "s1"); err != nil {
		t.Fatalf("DeleteAll: %v", err)
	}

	entries, err := store.RecentByCategory(ctx, "s1", CategoryFact, time.Time{}, 10)
	if err != nil {
		t.Fatalf("RecentByCategory: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected empty store after DeleteAll, got %d entries", len(entries))
	}
}

// sizedEmbedder returns vectors of a settable length, for dimension-lock
// tests.
type sizedEmbedder struct {
	dims int
}

func (e *sizedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec := make([]float32, e.dims)
	vec[0] = 1
	return vec, nil
}

func TestStore_AddRejectsDimensionChange(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close() //nolint:errcheck // Test cleanup

	embedder := &sizedEmbedder{dims: 4}
	store, err := NewStore(db, embedder, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	ctx := context.Background()
	if _, err := store.Add(ctx, EntryInput{
		SessionID: "s1", Category: CategoryFact,
		Content: "first write locks the dimensionality", Importance: 0.5,
	}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	embedder.dims = 8
	_, err = store.Add(ctx, EntryInput{
		SessionID: "s1", Category: CategoryFact,
		Content: "different embedding length", Importance: 0.5,
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !IsDimensionError(err) {
		t.Fatalf("expected DimensionError, got %v", err)
	}

	// Matching vectors keep writing fine after the rejection.
	embedder.dims = 4
	if _, err := store.Add(ctx, EntryInput{
		SessionID: "s1", Category: CategoryFact,
		Content: "back to the locked length", Importance: 0.5,
	}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	entries, err := store.RecentByCategory(ctx, "s1", CategoryFact, time.Time{}, 10)
	if err != nil {
		t.Fatalf("RecentByCategory: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 stored entries, got %d", len(entries))
	}
}

func TestStore_KeywordFallbackScopedToSession(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close() //nolint:errcheck // Test cleanup

	embedder := vecEmbedder{vecs: map[string][]float32{
		"banana": {1, 0, 0, 0},
	}}
	store, err := NewStore(db, embedder, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	// A noisy neighboring session with more matches than the FTS row budget
	// (limit*3) must not crowd out the requesting session's hit.
	ctx := context.Background()
	for i := 0; i < 7; i++ {
		if _, err := store.Add(ctx, EntryInput{
			SessionID: "noisy", Category: CategoryFact,
			Content: fmt.Sprintf("banana note number %d", i), Importance: 0.5,
		}); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	if _, err := store.Add(ctx, EntryInput{
		SessionID: "mine", Category: CategoryFact,
		Content: "banana bread recipe from grandma", Importance: 0.5,
	}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	results, err := store.Search(ctx, &SearchQuery{
		SessionID: "mine", Text: "noembed banana", Limit: 2,
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected the session's own keyword hit, got %d results", len(results))
	}
	if results[0].Entry.SessionID != "mine" {
		t.Errorf("expected session mine, got %s", results[0].Entry.SessionID)
	}
}
