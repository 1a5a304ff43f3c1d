package agent

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ActionType is the tag of the decision union.
type ActionType string

const (
	ActionRespond          ActionType = "respond"
	ActionUseTool          ActionType = "use_tool"
	ActionStoreMemory      ActionType = "store_memory"
	ActionAskClarification ActionType = "ask_clarification"
)

// RespondAction answers the user directly.
type RespondAction struct {
	Text string
}

// UseToolAction invokes a registered tool.
type UseToolAction struct {
	Name string
	Args map[string]any
}

// StoreMemoryAction persists something the user said.
type StoreMemoryAction struct {
	Content  string
	Category string
}

// AskClarificationAction asks the user a follow-up question.
type AskClarificationAction struct {
	Question string
}

// Decision is the typed output of the decision layer. Exactly one payload
// field matching Action is non-nil; Validate enforces it.
type Decision struct {
	Action           ActionType
	Respond          *RespondAction
	UseTool          *UseToolAction
	StoreMemory      *StoreMemoryAction
	AskClarification *AskClarificationAction
	Reasoning        string
	Confidence       float64
}

// Validate checks that the payload shape matches the action tag.
func (d *Decision) Validate() error {
	switch d.Action {
	case ActionRespond:
		if d.Respond == nil || strings.TrimSpace(d.Respond.Text) == "" {
			return fmt.Errorf("respond decision has no text")
		}
	case ActionUseTool:
		if d.UseTool == nil || strings.TrimSpace(d.UseTool.Name) == "" {
			return fmt.Errorf("use_tool decision has no tool name")
		}
	case ActionStoreMemory:
		if d.StoreMemory == nil || strings.TrimSpace(d.StoreMemory.Content) == "" {
			return fmt.Errorf("store_memory decision has no content")
		}
	case ActionAskClarification:
		if d.AskClarification == nil || strings.TrimSpace(d.AskClarification.Question) == "" {
			return fmt.Errorf("ask_clarification decision has no question")
		}
	default:
		return fmt.Errorf("unknown action type: %q", d.Action)
	}
	if d.Confidence < 0 {
		d.Confidence = 0
	}
	if d.Confidence > 1 {
		d.Confidence = 1
	}
	return nil
}

// respondDecision builds a plain respond decision; the fail-open target for
// anything the parser cannot make sense of.
func respondDecision(text, reasoning string, confidence float64) *Decision {
	return &Decision{
		Action:     ActionRespond,
		Respond:    &RespondAction{Text: text},
		Reasoning:  reasoning,
		Confidence: confidence,
	}
}

// decision line-format field prefixes, matched case-insensitively.
const (
	fieldAction     = "ACTION_TYPE:"
	fieldReasoning  = "REASONING:"
	fieldDetails    = "DETAILS:"
	fieldConfidence = "CONFIDENCE:"
)

// ParseDecision parses raw model output into a Decision. Two formats are
// accepted: the labeled line format (ACTION_TYPE / REASONING / DETAILS /
// CONFIDENCE) and a single JSON object. Anything else is a ParseError, which
// callers handle by failing open to a direct response.
func ParseDecision(raw string) (*Decision, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, &ParseError{Raw: raw, Err: fmt.Errorf("empty model output")}
	}

	if d, ok := parseLineFormat(trimmed); ok {
		if err := d.Validate(); err != nil {
			return nil, &ParseError{Raw: raw, Err: err}
		}
		return d, nil
	}
	if d, ok := parseJSONFormat(trimmed); ok {
		if err := d.Validate(); err != nil {
			return nil, &ParseError{Raw: raw, Err: err}
		}
		return d, nil
	}
	return nil, &ParseError{Raw: raw, Err: fmt.Errorf("no recognized decision format")}
}

func parseLineFormat(raw string) (*Decision, bool) {
	var action, reasoning, confidence string
	var details strings.Builder
	inDetails := false
	found := false

	for _, line := range strings.Split(raw, "\n") {
		upper := strings.ToUpper(strings.TrimSpace(line))
		switch {
		case strings.HasPrefix(upper, fieldAction):
			action = valueAfter(line, fieldAction)
			inDetails = false
			found = true
		case strings.HasPrefix(upper, fieldReasoning):
			reasoning = valueAfter(line, fieldReasoning)
			inDetails = false
		case strings.HasPrefix(upper, fieldConfidence):
			confidence = valueAfter(line, fieldConfidence)
			inDetails = false
		case strings.HasPrefix(upper, fieldDetails):
			details.Reset()
			details.WriteString(valueAfter(line, fieldDetails))
			inDetails = true
		case inDetails:
			// DETAILS may span lines until the next labeled field.
			details.WriteString("\n")
			details.WriteString(line)
		}
	}
	if !found {
		return nil, false
	}

	conf := 0.5
	if confidence != "" {
		if v, err := strconv.ParseFloat(confidence, 64); err == nil {
			conf = v
		}
	}
	d, err := buildDecision(strings.ToLower(action), strings.TrimSpace(details.String()), reasoning, conf)
	if err != nil {
		return nil, false
	}
	return d, true
}

// valueAfter returns the text following a case-insensitive field prefix.
func valueAfter(line, prefix string) string {
	trimmed := strings.TrimSpace(line)
	return strings.TrimSpace(trimmed[len(prefix):])
}

func parseJSONFormat(raw string) (*Decision, bool) {
	var payload struct {
		ActionType string          `json:"action_type"`
		Details    json.RawMessage `json:"details"`
		Reasoning  string          `json:"reasoning"`
		Confidence float64         `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, false
	}
	if payload.ActionType == "" {
		return nil, false
	}

	details := ""
	if len(payload.Details) > 0 {
		// Details may be a JSON string or a nested object; keep objects raw.
		var asString string
		if err := json.Unmarshal(payload.Details, &asString); err == nil {
			details = asString
		} else {
			details = string(payload.Details)
		}
	}
	conf := payload.Confidence
	if conf == 0 {
		conf = 0.5
	}
	d, err := buildDecision(strings.ToLower(payload.ActionType), details, payload.Reasoning, conf)
	if err != nil {
		return nil, false
	}
	return d, true
}

func buildDecision(action, details, reasoning string, confidence float64) (*Decision, error) {
	d := &Decision{
		Action:     ActionType(action),
		Reasoning:  reasoning,
		Confidence: confidence,
	}
	switch d.Action {
	case ActionRespond:
		d.Respond = &RespondAction{Text: details}
	case ActionUseTool:
		var payload struct {
			Tool string         `json:"tool"`
			Args map[string]any `json:"args"`
		}
		if err := json.Unmarshal([]byte(details), &payload); err != nil {
			return nil, fmt.Errorf("use_tool details are not valid JSON: %w", err)
		}
		d.UseTool = &UseToolAction{Name: payload.Tool, Args: payload.Args}
	case ActionStoreMemory:
		var payload struct {
			Content  string `json:"content"`
			Category string `json:"category"`
		}
		// Structured details are preferred; bare text is accepted with the
		// category left for the executor to infer.
		if err := json.Unmarshal([]byte(details), &payload); err != nil || payload.Content == "" {
			payload.Content = details
			payload.Category = ""
		}
		d.StoreMemory = &StoreMemoryAction{Content: payload.Content, Category: payload.Category}
	case ActionAskClarification:
		d.AskClarification = &AskClarificationAction{Question: details}
	default:
		return nil, fmt.Errorf("unknown action type: %q", action)
	}
	return d, nil
}
