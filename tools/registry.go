package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/rs/zerolog"

	"github.com/valet-agent/valet/tools/schemas"
)

// ToolHandler handles a tool call.
type ToolHandler func(ctx context.Context, args json.RawMessage) (any, error)

// Spec is the advertised surface of one registered tool, consumed by the
// decision prompt and by callers listing capabilities.
type Spec struct {
	Name        string
	Description string
	Schema      map[string]any
}

// Result is the normalized outcome of one tool invocation.
type Result struct {
	Output   any
	Err      error
	Duration time.Duration
}

// Success reports whether the invocation produced a usable output.
func (r Result) Success() bool { return r.Err == nil }

type registered struct {
	handler  ToolHandler
	schema   schemas.ToolSchema
	resolved *jsonschema.Resolved
}

// Registry maps tool names to handlers and their argument schemas. Arguments
// are validated against the schema before dispatch, so handlers can trust
// their input shape.
type Registry struct {
	tools  map[string]registered
	logger zerolog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger zerolog.Logger) *Registry {
	logger = logger.With().Str("component", "tool_registry").Logger()
	return &Registry{
		tools:  make(map[string]registered),
		logger: logger,
	}
}

// Register registers a handler with its schema. The schema is compiled now
// so a malformed one fails at startup, not mid-turn.
func (r *Registry) Register(name string, schema schemas.ToolSchema, h ToolHandler) error {
	raw, err := json.Marshal(schema.Schema)
	if err != nil {
		return fmt.Errorf("marshal schema for %s: %w", name, err)
	}
	var compiled jsonschema.Schema
	if err := json.Unmarshal(raw, &compiled); err != nil {
		return fmt.Errorf("parse schema for %s: %w", name, err)
	}
	resolved, err := compiled.Resolve(nil)
	if err != nil {
		return fmt.Errorf("resolve schema for %s: %w", name, err)
	}

	r.logger.Debug().Str("name", name).Msg("Registering tool handler")
	r.tools[name] = registered{handler: h, schema: schema, resolved: resolved}
	return nil
}

// Names returns the registered tool names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Specs returns the advertised surface of every registered tool, sorted by
// name.
func (r *Registry) Specs() []Spec {
	specs := make([]Spec, 0, len(r.tools))
	for _, name := range r.Names() {
		t := r.tools[name]
		specs = append(specs, Spec{
			Name:        name,
			Description: t.schema.Description,
			Schema:      t.schema.Schema,
		})
	}
	return specs
}

// Execute validates args against the tool's schema and dispatches the call,
// timing it. Lookup and validation failures come back as typed errors so
// callers can turn them into user-safe messages.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) Result {
	start := time.Now()
	t, ok := r.tools[name]
	if !ok {
		r.logger.Warn().Str("tool", name).Msg("Unknown tool requested")
		return Result{Err: &UnknownToolError{Name: name}, Duration: time.Since(start)}
	}

	if args == nil {
		args = map[string]any{}
	}
	if err := t.resolved.Validate(args); err != nil {
		r.logger.Warn().Str("tool", name).Err(err).Msg("Tool arguments failed validation")
		return Result{Err: &InvalidArgumentsError{Tool: name, Err: err}, Duration: time.Since(start)}
	}

	raw, err := json.Marshal(args)
	if err != nil {
		return Result{Err: &InvalidArgumentsError{Tool: name, Err: err}, Duration: time.Since(start)}
	}

	r.logger.Info().Str("tool", name).Msg("Executing tool")
	out, err := t.handler(ctx, raw)
	dur := time.Since(start)
	if err != nil {
		r.logger.Warn().Str("tool", name).Dur("duration", dur).Err(err).Msg("Tool returned error")
		return Result{Err: err, Duration: dur}
	}
	r.logger.Info().Str("tool", name).Dur("duration", dur).Msg("Tool returned result")
	return Result{Output: out, Duration: dur}
}
