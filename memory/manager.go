package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

// Default tuning for the manager when the caller leaves fields zero.
const (
	DefaultSTMWindow          = 10
	DefaultTopK               = 3
	DefaultDuplicateThreshold = 0.98
	DefaultMinImportance      = 0.6
	DefaultQueueSize          = 64

	consolidationTimeout = 15 * time.Second
)

// Signals configures the keyword groups the importance heuristic looks for.
type Signals struct {
	PreferenceKeywords []string
	IdentityKeywords   []string
	RememberKeywords   []string
	LengthBonusChars   int
}

// DefaultSignals returns the built-in heuristic keyword groups.
func DefaultSignals() Signals {
	return Signals{
		PreferenceKeywords: []string{
			"i like", "i love", "i prefer", "i hate", "i dislike",
			"my favorite", "i enjoy", "i always", "i never",
		},
		IdentityKeywords: []string{
			"my name is", "i am a", "i'm a", "i work", "i live",
			"my birthday", "my job", "my wife", "my husband", "my kids",
		},
		RememberKeywords: []string{
			"remember", "don't forget", "keep in mind", "note that",
			"important:", "for future reference",
		},
		LengthBonusChars: 100,
	}
}

// ManagerConfig tunes the Manager. Zero values fall back to defaults.
type ManagerConfig struct {
	STMCapacity        int
	STMWindow          int     // recent messages included in turn context
	TopK               int     // long-term results included in turn context
	RelevanceFloor     float64 // minimum similarity for retrieval
	DuplicateThreshold float64 // similarity at or above which a write is a duplicate
	MinImportance      float64 // heuristic threshold for promotion
	Signals            Signals
	Async              bool // run heuristic consolidation on a background worker
	QueueSize          int
}

func (c ManagerConfig) withDefaults() ManagerConfig {
	if c.STMCapacity <= 0 {
		c.STMCapacity = DefaultSTMCapacity
	}
	if c.STMWindow <= 0 {
		c.STMWindow = DefaultSTMWindow
	}
	if c.TopK <= 0 {
		c.TopK = DefaultTopK
	}
	if c.RelevanceFloor <= 0 {
		c.RelevanceFloor = DefaultRelevanceFloor
	}
	if c.DuplicateThreshold <= 0 {
		c.DuplicateThreshold = DefaultDuplicateThreshold
	}
	if c.MinImportance <= 0 {
		c.MinImportance = DefaultMinImportance
	}
	if len(c.Signals.PreferenceKeywords) == 0 &&
		len(c.Signals.IdentityKeywords) == 0 &&
		len(c.Signals.RememberKeywords) == 0 {
		c.Signals = DefaultSignals()
	}
	if c.Signals.LengthBonusChars <= 0 {
		c.Signals.LengthBonusChars = 100
	}
	if c.QueueSize <= 0 {
		c.QueueSize = DefaultQueueSize
	}
	return c
}

// Turn is one completed user/assistant exchange, the unit consolidation
// operates on.
type Turn struct {
	User      Message
	Assistant Message
}

// TurnContext is the unified context assembled for a turn. Recent messages
// and retrieved memories stay in separate fields so downstream consumers know
// the provenance of every item.
type TurnContext struct {
	Recent   []Message      // short-term, chronological
	Memories []SearchResult // long-term, by relevance
	Degraded bool           // long-term retrieval failed or was skipped
}

// Empty reports whether the context carries nothing at all.
func (tc *TurnContext) Empty() bool {
	return len(tc.Recent) == 0 && len(tc.Memories) == 0
}

type consolidationJob struct {
	sessionID string
	turn      Turn
}

// Manager coordinates short-term buffers and the long-term store for all
// sessions. Short-term writes are synchronous and cannot fail; long-term
// consolidation is best effort and never propagates a failure into a turn.
type Manager struct {
	store  *Store
	cfg    ManagerConfig
	logger zerolog.Logger

	mu   sync.Mutex
	stms map[string]*STM

	jobs      chan consolidationJob
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewManager creates a Manager over the given store. A nil store is allowed
// and yields a short-term-only manager that reports degraded context.
func NewManager(store *Store, cfg ManagerConfig, logger zerolog.Logger) *Manager {
	m := &Manager{
		store:  store,
		cfg:    cfg.withDefaults(),
		logger: logger.With().Str("component", "memory_manager").Logger(),
		stms:   make(map[string]*STM),
	}
	if m.cfg.Async {
		m.jobs = make(chan consolidationJob, m.cfg.QueueSize)
		m.wg.Add(1)
		go m.worker()
	}
	return m
}

// Close drains the consolidation worker, if one is running.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		if m.jobs != nil {
			close(m.jobs)
			m.wg.Wait()
		}
	})
}

func (m *Manager) worker() {
	defer m.wg.Done()
	for job := range m.jobs {
		ctx, cancel := context.WithTimeout(context.Background(), consolidationTimeout)
		if _, err := m.consolidateNow(ctx, job.sessionID, job.turn); err != nil {
			m.logger.Warn().
				Err(err).
				Str("session_id", job.sessionID).
				Msg("Background consolidation failed")
		}
		cancel()
	}
}

func (m *Manager) stm(sessionID string) *STM {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.stms[sessionID]
	if !ok {
		s = NewSTM(m.cfg.STMCapacity)
		m.stms[sessionID] = s
	}
	return s
}

// Sessions lists the session IDs with an active short-term buffer.
func (m *Manager) Sessions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return lo.Keys(m.stms)
}

// BuildContext assembles the turn context for a session: the recent
// short-term window plus the top long-term entries relevant to the input.
// A failing long-term store degrades the context instead of failing the
// call, so the turn can proceed stateless.
func (m *Manager) BuildContext(ctx context.Context, sessionID, input string) *TurnContext {
	tc := &TurnContext{
		Recent: m.stm(sessionID).Recent(m.cfg.STMWindow),
	}
	if m.store == nil {
		tc.Degraded = true
		return tc
	}

	results, err := m.store.Search(ctx, &SearchQuery{
		SessionID: sessionID,
		Text:      input,
		MinScore:  m.cfg.RelevanceFloor,
		Limit:     m.cfg.TopK,
	})
	if err != nil {
		m.logger.Warn().
			Err(err).
			Str("session_id", sessionID).
			Msg("Long-term retrieval failed, degrading to short-term context")
		tc.Degraded = true
		return tc
	}

	// Entries already visible in the short-term window add nothing.
	recentText := lo.Map(tc.Recent, func(msg Message, _ int) string {
		return normalizeContent(msg.Content)
	})
	tc.Memories = lo.Filter(results, func(r SearchResult, _ int) bool {
		return !lo.Contains(recentText, normalizeContent(r.Entry.Content))
	})
	return tc
}

// RecordTurn appends both sides of a completed exchange to the session's
// short-term buffer. This is synchronous and never fails.
func (m *Manager) RecordTurn(sessionID string, t Turn) {
	s := m.stm(sessionID)
	s.Append(t.User)
	s.Append(t.Assistant)
	m.logger.Debug().
		Str("session_id", sessionID).
		Int("stm_len", s.Len()).
		Msg("Turn recorded")
}

// StoreExplicit persists content the decision layer explicitly asked to
// remember. Near-duplicates of existing entries are suppressed; the bool
// reports whether a new entry was actually written.
func (m *Manager) StoreExplicit(ctx context.Context, in EntryInput) (Entry, bool, error) {
	if m.store == nil {
		return Entry{}, false, &UnavailableError{Op: "store_explicit", Err: errNoStore}
	}
	if in.Importance <= 0 {
		in.Importance = 0.8
	}
	dup, err := m.isDuplicate(ctx, in.SessionID, in.Content)
	if err != nil {
		return Entry{}, false, err
	}
	if dup {
		m.logger.Info().
			Str("session_id", in.SessionID).
			Str("content", truncateString(in.Content, 40)).
			Msg("Skipping near-duplicate explicit memory")
		return Entry{}, false, nil
	}
	entry, err := m.store.Add(ctx, in)
	if err != nil {
		return Entry{}, false, err
	}
	return entry, true, nil
}

// Consolidate decides whether a completed turn deserves promotion to
// long-term memory and, when it does, writes it. The bool reports whether an
// entry was written this call; in async mode promotion is deferred to the
// worker and the call reports false.
func (m *Manager) Consolidate(ctx context.Context, sessionID string, t Turn) (bool, error) {
	if m.store == nil {
		return false, nil
	}
	if m.cfg.Async {
		select {
		case m.jobs <- consolidationJob{sessionID: sessionID, turn: t}:
		default:
			m.logger.Warn().
				Str("session_id", sessionID).
				Msg("Consolidation queue full, dropping turn")
		}
		return false, nil
	}
	return m.consolidateNow(ctx, sessionID, t)
}

func (m *Manager) consolidateNow(ctx context.Context, sessionID string, t Turn) (bool, error) {
	input := strings.TrimSpace(t.User.Content)
	if input == "" {
		return false, nil
	}

	score := ScoreImportance(input, m.cfg.Signals)
	if score < m.cfg.MinImportance {
		m.logger.Debug().
			Str("session_id", sessionID).
			Float64("score", score).
			Msg("Turn below importance threshold, not promoted")
		return false, nil
	}

	category := inferCategory(input, m.cfg.Signals)
	content := input
	if category == CategoryConversation {
		content = "User: " + input + "\nAssistant: " + strings.TrimSpace(t.Assistant.Content)
	}

	dup, err := m.isDuplicate(ctx, sessionID, content)
	if err != nil {
		return false, err
	}
	if dup {
		m.logger.Debug().
			Str("session_id", sessionID).
			Msg("Skipping near-duplicate consolidation")
		return false, nil
	}

	_, err = m.store.Add(ctx, EntryInput{
		SessionID:  sessionID,
		TurnID:     t.User.TurnID,
		Category:   category,
		Content:    content,
		Importance: score,
		Metadata:   map[string]any{"source": "consolidation"},
	})
	if err != nil {
		return false, err
	}
	m.logger.Info().
		Str("session_id", sessionID).
		Str("category", string(category)).
		Float64("importance", score).
		Msg("Turn promoted to long-term memory")
	return true, nil
}

// isDuplicate reports whether stored content is a near-duplicate of an
// existing live entry, by exact match or similarity at or above the
// configured threshold.
func (m *Manager) isDuplicate(ctx context.Context, sessionID, content string) (bool, error) {
	results, err := m.store.Search(ctx, &SearchQuery{
		SessionID: sessionID,
		Text:      content,
		MinScore:  m.cfg.DuplicateThreshold,
		Limit:     1,
	})
	if err != nil {
		return false, err
	}
	if len(results) == 0 {
		return false, nil
	}
	// Keyword fallback scores everything 1.0, so confirm with an exact
	// comparison when no embeddings were in play.
	if len(results[0].Entry.Embedding) == 0 {
		return normalizeContent(results[0].Entry.Content) == normalizeContent(content), nil
	}
	return true, nil
}

// ClearSession forgets a session entirely, both tiers.
func (m *Manager) ClearSession(ctx context.Context, sessionID string) error {
	m.stm(sessionID).Clear()
	if m.store == nil {
		return nil
	}
	return m.store.DeleteAll(ctx, sessionID)
}

// ScoreImportance runs the keyword heuristic over user input and returns a
// score in [0, 1]. Preference and identity statements and explicit remember
// requests score high enough to clear the default promotion threshold.
func ScoreImportance(text string, sig Signals) float64 {
	lower := strings.ToLower(text)
	score := 0.3
	if containsAny(lower, sig.PreferenceKeywords) {
		score += 0.35
	}
	if containsAny(lower, sig.IdentityKeywords) {
		score += 0.35
	}
	if containsAny(lower, sig.RememberKeywords) {
		score += 0.4
	}
	if len(text) > sig.LengthBonusChars {
		score += 0.1
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}

func inferCategory(input string, sig Signals) Category {
	lower := strings.ToLower(input)
	switch {
	case containsAny(lower, sig.PreferenceKeywords):
		return CategoryPreference
	case containsAny(lower, sig.IdentityKeywords):
		return CategoryFact
	default:
		return CategoryConversation
	}
}

func containsAny(lower string, keywords []string) bool {
	return lo.SomeBy(keywords, func(kw string) bool {
		return strings.Contains(lower, kw)
	})
}

func normalizeContent(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
