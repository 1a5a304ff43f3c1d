package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/valet-agent/valet/memory"
	"github.com/valet-agent/valet/tools"
)

// DefaultToolTimeout bounds a single tool invocation.
const DefaultToolTimeout = 30 * time.Second

// Outcome is the normalized result of executing a Decision: one user-facing
// text plus metadata about what ran, so the reflect step can log and
// consolidate uniformly.
type Outcome struct {
	Text         string
	Action       ActionType
	ToolUsed     string
	ToolOK       bool
	MemoryStored bool
}

// Executor performs Decisions with failure isolation: tool and memory errors
// degrade to explanatory text, never abort the turn.
type Executor struct {
	registry    *tools.Registry
	mem         *memory.Manager
	toolTimeout time.Duration
	logger      zerolog.Logger
}

// NewExecutor creates an action executor. A nil registry means no tools are
// available; a zero timeout uses the default.
func NewExecutor(registry *tools.Registry, mem *memory.Manager, toolTimeout time.Duration, logger zerolog.Logger) *Executor {
	if toolTimeout <= 0 {
		toolTimeout = DefaultToolTimeout
	}
	return &Executor{
		registry:    registry,
		mem:         mem,
		toolTimeout: toolTimeout,
		logger:      logger.With().Str("component", "action_executor").Logger(),
	}
}

// Execute runs the decision and returns the normalized outcome.
func (x *Executor) Execute(ctx context.Context, sessionID string, d *Decision) Outcome {
	switch d.Action {
	case ActionRespond:
		return Outcome{Text: d.Respond.Text, Action: ActionRespond}

	case ActionUseTool:
		return x.executeTool(ctx, d.UseTool)

	case ActionStoreMemory:
		return x.storeMemory(ctx, sessionID, d.StoreMemory)

	case ActionAskClarification:
		return Outcome{Text: d.AskClarification.Question, Action: ActionAskClarification}

	default:
		// Validate should have caught this; degrade rather than panic.
		x.logger.Error().Str("action", string(d.Action)).Msg("Unknown action reached executor")
		return Outcome{Text: fallbackResponse, Action: ActionRespond}
	}
}

func (x *Executor) executeTool(ctx context.Context, action *UseToolAction) Outcome {
	out := Outcome{Action: ActionUseTool, ToolUsed: action.Name}
	if x.registry == nil {
		out.Action = ActionRespond
		out.Text = fmt.Sprintf("I wanted to use the %s tool, but no tools are available right now.", action.Name)
		return out
	}

	toolCtx, cancel := context.WithTimeout(ctx, x.toolTimeout)
	defer cancel()

	res := x.registry.Execute(toolCtx, action.Name, action.Args)
	if !res.Success() {
		// Tool errors degrade to an explanatory plain response, never raw
		// failures.
		x.logger.Warn().
			Str("tool", action.Name).
			Dur("duration", res.Duration).
			Err(res.Err).
			Msg("Tool invocation failed")
		out.Action = ActionRespond
		out.Text = degradedToolMessage(action.Name, res.Err)
		return out
	}

	out.ToolOK = true
	out.Text = formatToolOutput(action.Name, res.Output)
	return out
}

func degradedToolMessage(name string, err error) string {
	switch {
	case tools.IsUnknownTool(err):
		return fmt.Sprintf("I don't have a tool called %q, so I couldn't complete that. Could you rephrase, or ask for something else?", name)
	case tools.IsInvalidArguments(err):
		return fmt.Sprintf("I tried to use the %s tool but got its inputs wrong. Could you give me a bit more detail?", name)
	case ctxDeadlineExceeded(err):
		return fmt.Sprintf("The %s tool took too long to answer, so I gave up on it. You could try again in a moment.", name)
	default:
		return fmt.Sprintf("I tried to use the %s tool but it ran into a problem. You could try again, or ask me something else.", name)
	}
}

func ctxDeadlineExceeded(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}

func formatToolOutput(name string, output any) string {
	switch v := output.(type) {
	case string:
		return v
	default:
		pretty, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return fmt.Sprintf("Here's what the %s tool returned:\n%s", name, pretty)
	}
}

func (x *Executor) storeMemory(ctx context.Context, sessionID string, action *StoreMemoryAction) Outcome {
	out := Outcome{Action: ActionStoreMemory, Text: "Got it, I'll remember that."}
	if x.mem == nil {
		x.logger.Warn().Msg("store_memory decision with no memory manager configured")
		return out
	}

	_, stored, err := x.mem.StoreExplicit(ctx, memory.EntryInput{
		SessionID: sessionID,
		Category:  memory.ParseCategory(action.Category),
		Content:   action.Content,
	})
	if err != nil {
		// Memory write failures never reach the user as errors.
		x.logger.Warn().Err(err).Msg("Explicit memory write failed")
		return out
	}
	out.MemoryStored = stored
	if !stored {
		out.Text = "I already have that noted."
	}
	return out
}
