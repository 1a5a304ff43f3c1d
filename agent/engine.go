package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/valet-agent/valet/llm"
	"github.com/valet-agent/valet/memory"
	"github.com/valet-agent/valet/tools"
)

const fallbackResponse = "I'm sorry, I'm having trouble thinking right now. Could you try again in a moment?"

const decisionInstructions = `For every user message, decide on exactly one action and answer in this format:

ACTION_TYPE: one of respond, use_tool, store_memory, ask_clarification
REASONING: one short sentence on why
DETAILS: the payload for the action
CONFIDENCE: a number between 0 and 1

Payload rules:
- respond: DETAILS is the full answer text.
- use_tool: DETAILS is JSON like {"tool": "<name>", "args": {...}} using one of the tools listed below.
- store_memory: DETAILS is JSON like {"content": "<what to remember>", "category": "preference|fact|conversation"}.
- ask_clarification: DETAILS is the question to ask the user.`

// Engine turns an observation (user input plus retrieved context) into a
// typed Decision by consulting the model. It never returns an error: model
// failures are retried once with backoff and then degrade to a fallback
// response, and unparseable output fails open to a direct response.
type Engine struct {
	client llm.Client
	model  string
	specs  []tools.Spec
	logger zerolog.Logger
}

// NewEngine creates a decision engine over a validated model client.
func NewEngine(client llm.Client, model string, specs []tools.Spec, logger zerolog.Logger) *Engine {
	return &Engine{
		client: client,
		model:  model,
		specs:  specs,
		logger: logger.With().Str("component", "decision_engine").Logger(),
	}
}

// Decide produces the Decision for one turn.
func (e *Engine) Decide(ctx context.Context, persona Persona, input string, tc *memory.TurnContext) *Decision {
	req := &llm.Request{
		Model:     e.model,
		System:    e.systemPrompt(persona),
		Messages:  e.turnMessages(input, tc),
		MaxTokens: 1024,
	}

	raw, err := e.complete(ctx, req)
	if err != nil {
		e.logger.Error().Err(err).Msg("Model completion failed after retry, returning fallback")
		return respondDecision(fallbackResponse, "model completion failed", 0)
	}

	d, err := ParseDecision(raw)
	if err != nil {
		// Fail open: treat the raw output as a direct answer.
		e.logger.Warn().Err(err).Msg("Decision parse failed, failing open to respond")
		return respondDecision(strings.TrimSpace(raw), "unparseable decision output", 0.3)
	}
	e.logger.Debug().
		Str("action", string(d.Action)).
		Float64("confidence", d.Confidence).
		Msg("Decision made")
	return d
}

// complete invokes the model with a single backoff retry on retryable
// errors.
func (e *Engine) complete(ctx context.Context, req *llm.Request) (string, error) {
	var text string
	op := func() error {
		resp, err := e.client.Complete(ctx, req)
		if err != nil {
			if llm.IsRetryableError(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		text = resp.Text
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 1), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return "", err
	}
	return text, nil
}

func (e *Engine) systemPrompt(persona Persona) string {
	var b strings.Builder
	b.WriteString(persona.Framing())
	b.WriteString("\n\n")
	b.WriteString(decisionInstructions)

	if len(e.specs) > 0 {
		b.WriteString("\n\nAvailable tools:\n")
		for _, spec := range e.specs {
			schemaJSON, err := json.Marshal(spec.Schema)
			if err != nil {
				schemaJSON = []byte("{}")
			}
			fmt.Fprintf(&b, "- %s: %s\n  arguments schema: %s\n",
				spec.Name, spec.Description, schemaJSON)
		}
	} else {
		b.WriteString("\n\nNo tools are available; never choose use_tool.")
	}
	return b.String()
}

// turnMessages renders the retrieved context and current input as the
// conversation the model sees. Long-term memories are framed as system
// scaffolding so the model treats them as background, not dialogue.
func (e *Engine) turnMessages(input string, tc *memory.TurnContext) []llm.Message {
	var msgs []llm.Message

	if tc != nil && len(tc.Memories) > 0 {
		lines := lo.Map(tc.Memories, func(r memory.SearchResult, _ int) string {
			return fmt.Sprintf("- (%s) %s", r.Entry.Category, r.Entry.Content)
		})
		msgs = append(msgs, llm.Message{
			Role:    llm.RoleSystem,
			Content: "Relevant things you remember about this user:\n" + strings.Join(lines, "\n"),
		})
	}

	if tc != nil {
		for _, m := range tc.Recent {
			msgs = append(msgs, llm.Message{
				Role:    toLLMRole(m.Role),
				Content: m.Content,
			})
		}
	}

	msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: input})
	return msgs
}

func toLLMRole(r memory.Role) llm.MessageRole {
	switch r {
	case memory.RoleAssistant:
		return llm.RoleAssistant
	case memory.RoleSystem:
		return llm.RoleSystem
	default:
		return llm.RoleUser
	}
}
