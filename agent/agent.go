package agent

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/valet-agent/valet/llm"
	"github.com/valet-agent/valet/memory"
	"github.com/valet-agent/valet/tools"
)

const clarificationForEmptyInput = "I didn't catch anything there. What would you like me to help with?"

// TurnResult is what a completed turn reports back to the caller.
type TurnResult struct {
	ResponseText  string
	ActionTaken   ActionType
	MemoryUpdated bool
}

// TranscriptPersister persists the user-visible conversation. Optional;
// failures are logged, never surfaced.
type TranscriptPersister interface {
	AppendUserMessage(ctx context.Context, sessionID, turnID, content string) error
	AppendAssistantMessage(ctx context.Context, sessionID, turnID, content, action string) error
}

// Options configures an Agent. Provider and PersonaName are validated once
// at construction; everything else is taken as given.
type Options struct {
	Provider    string // one of llm.ValidProviders()
	Model       string
	PersonaName string
	Client      llm.Client
	Memory      *memory.Manager
	Tools       *tools.Registry
	Transcript  TranscriptPersister // optional
	ToolTimeout time.Duration
	Logger      zerolog.Logger
}

type session struct {
	mu sync.Mutex // held for the duration of one turn
}

// Agent is the turn interface: one ProcessTurn call runs the full
// observe/decide/act/reflect cycle for a session. Turns within a session are
// strictly sequential; a second turn arriving mid-flight is rejected with
// ErrTurnBusy.
type Agent struct {
	engine     *Engine
	executor   *Executor
	mem        *memory.Manager
	transcript TranscriptPersister
	logger     zerolog.Logger

	mu       sync.Mutex
	persona  Persona
	sessions map[string]*session
}

// New validates the configuration and constructs an Agent. This is the only
// place allowed to fail on bad model or persona selection; after it returns,
// every turn degrades rather than errors.
func New(opts Options) (*Agent, error) {
	if !llm.IsValidProvider(opts.Provider) {
		return nil, &ConfigurationError{
			Field: "model",
			Value: opts.Provider,
			Valid: llm.ValidProviders(),
		}
	}
	persona, err := ParsePersona(opts.PersonaName)
	if err != nil {
		return nil, err
	}
	if opts.Client == nil {
		return nil, fmt.Errorf("llm client is required")
	}

	logger := opts.Logger.With().Str("component", "agent").Logger()

	var specs []tools.Spec
	if opts.Tools != nil {
		specs = opts.Tools.Specs()
	}

	return &Agent{
		engine:     NewEngine(opts.Client, opts.Model, specs, opts.Logger),
		executor:   NewExecutor(opts.Tools, opts.Memory, opts.ToolTimeout, opts.Logger),
		mem:        opts.Memory,
		transcript: opts.Transcript,
		logger:     logger,
		persona:    persona,
		sessions:   make(map[string]*session),
	}, nil
}

// Persona returns the current persona.
func (a *Agent) Persona() Persona {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.persona
}

// SetPersona switches the persona, validating against the closed set.
func (a *Agent) SetPersona(name string) error {
	p, err := ParsePersona(name)
	if err != nil {
		return err
	}
	a.mu.Lock()
	a.persona = p
	a.mu.Unlock()
	a.logger.Info().Str("persona", name).Msg("Persona switched")
	return nil
}

// ActiveSessions lists sessions that have processed at least one turn.
func (a *Agent) ActiveSessions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	ids := make([]string, 0, len(a.sessions))
	for id := range a.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (a *Agent) session(sessionID string) *session {
	a.mu.Lock()
	defer a.mu.Unlock()
	s, ok := a.sessions[sessionID]
	if !ok {
		s = &session{}
		a.sessions[sessionID] = s
	}
	return s
}

// ClearMemory forgets everything for a session, both tiers.
func (a *Agent) ClearMemory(ctx context.Context, sessionID string) error {
	if a.mem == nil {
		return nil
	}
	return a.mem.ClearSession(ctx, sessionID)
}

// ProcessTurn runs one full turn for a session. The returned result is fixed
// before reflection runs, so memory consolidation can never delay or alter
// the user-visible answer. The only error conditions are a busy session and
// a cancelled context; everything else degrades into the response text.
func (a *Agent) ProcessTurn(ctx context.Context, sessionID, userText string) (*TurnResult, error) {
	sess := a.session(sessionID)
	if !sess.mu.TryLock() {
		return nil, ErrTurnBusy
	}
	defer sess.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	turnID := memory.NewTurnID()
	logger := a.logger.With().Str("session_id", sessionID).Str("turn_id", turnID).Logger()

	// Observe. An empty turn produces a clarification request, not a
	// provider call.
	input := strings.TrimSpace(userText)
	if input == "" {
		logger.Debug().Msg("Empty input, asking for clarification")
		return &TurnResult{
			ResponseText: clarificationForEmptyInput,
			ActionTaken:  ActionAskClarification,
		}, nil
	}

	var tc *memory.TurnContext
	if a.mem != nil {
		tc = a.mem.BuildContext(ctx, sessionID, input)
		if tc.Degraded {
			logger.Warn().Msg("Memory degraded, proceeding with stateless turn")
		}
	}

	// Decide and act. Neither step can fail the turn.
	decision := a.engine.Decide(ctx, a.Persona(), input, tc)
	outcome := a.executor.Execute(ctx, sessionID, decision)

	result := &TurnResult{
		ResponseText: outcome.Text,
		ActionTaken:  outcome.Action,
	}

	// Reflect. The short-term record is mandatory; consolidation is best
	// effort and a clarification turn skips it (nothing was learned yet).
	turn := memory.Turn{
		User:      memory.NewMessage(memory.RoleUser, input, turnID),
		Assistant: memory.NewMessage(memory.RoleAssistant, outcome.Text, turnID),
	}
	if a.mem != nil {
		a.mem.RecordTurn(sessionID, turn)
		result.MemoryUpdated = true

		if outcome.Action != ActionAskClarification && outcome.Action != ActionStoreMemory {
			if _, err := a.mem.Consolidate(ctx, sessionID, turn); err != nil {
				logger.Warn().Err(err).Msg("Consolidation failed, turn unaffected")
			}
		}
	}
	a.persistTranscript(ctx, sessionID, turnID, input, outcome, logger)

	logger.Info().
		Str("action", string(outcome.Action)).
		Str("tool", outcome.ToolUsed).
		Bool("memory_updated", result.MemoryUpdated).
		Msg("Turn completed")
	return result, nil
}

func (a *Agent) persistTranscript(ctx context.Context, sessionID, turnID, input string, outcome Outcome, logger zerolog.Logger) {
	if a.transcript == nil {
		return
	}
	if err := a.transcript.AppendUserMessage(ctx, sessionID, turnID, input); err != nil {
		logger.Warn().Err(err).Msg("Failed to persist user message")
	}
	if err := a.transcript.AppendAssistantMessage(ctx, sessionID, turnID, outcome.Text, string(outcome.Action)); err != nil {
		logger.Warn().Err(err).Msg("Failed to persist assistant message")
	}
}
