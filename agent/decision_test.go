package agent

import (
	"errors"
	"testing"
)

func TestParseDecision_LineFormat(t *testing.T) {
	raw := `ACTION_TYPE: use_tool
REASONING: the user asked for math
DETAILS: {"tool": "calculator", "args": {"expression": "2+2"}}
CONFIDENCE: 0.9`

	d, err := ParseDecision(raw)
	if err != nil {
		t.Fatalf("ParseDecision: %v", err)
	}
	if d.Action != ActionUseTool {
		t.Fatalf("expected use_tool, got %s", d.Action)
	}
	if d.UseTool.Name != "calculator" {
		t.Errorf("expected calculator, got %q", d.UseTool.Name)
	}
	if d.UseTool.Args["expression"] != "2+2" {
		t.Errorf("unexpected args: %v", d.UseTool.Args)
	}
	if d.Confidence != 0.9 {
		t.Errorf("expected confidence 0.9, got %f", d.Confidence)
	}
}

func TestParseDecision_Respond(t *testing.T) {
	raw := `ACTION_TYPE: respond
REASONING: simple greeting
DETAILS: Hello! How can I help you today?
CONFIDENCE: 0.95`

	d, err := ParseDecision(raw)
	if err != nil {
		t.Fatalf("ParseDecision: %v", err)
	}
	if d.Action != ActionRespond {
		t.Fatalf("expected respond, got %s", d.Action)
	}
	if d.Respond.Text != "Hello! How can I help you today?" {
		t.Errorf("unexpected text: %q", d.Respond.Text)
	}
}

func TestParseDecision_StoreMemory(t *testing.T) {
	raw := `ACTION_TYPE: store_memory
DETAILS: {"content": "User is vegetarian", "category": "preference"}
CONFIDENCE: 0.8`

	d, err := ParseDecision(raw)
	if err != nil {
		t.Fatalf("ParseDecision: %v", err)
	}
	if d.Action != ActionStoreMemory {
		t.Fatalf("expected store_memory, got %s", d.Action)
	}
	if d.StoreMemory.Content != "User is vegetarian" || d.StoreMemory.Category != "preference" {
		t.Errorf("unexpected payload: %+v", d.StoreMemory)
	}
}

func TestParseDecision_StoreMemoryBareText(t *testing.T) {
	raw := `ACTION_TYPE: store_memory
DETAILS: the user lives in Lisbon`

	d, err := ParseDecision(raw)
	if err != nil {
		t.Fatalf("ParseDecision: %v", err)
	}
	if d.StoreMemory.Content != "the user lives in Lisbon" {
		t.Errorf("unexpected content: %q", d.StoreMemory.Content)
	}
	if d.StoreMemory.Category != "" {
		t.Errorf("bare text leaves category empty, got %q", d.StoreMemory.Category)
	}
}

func TestParseDecision_MultilineDetails(t *testing.T) {
	raw := `ACTION_TYPE: respond
DETAILS: first line
second line
third line
CONFIDENCE: 0.7`

	d, err := ParseDecision(raw)
	if err != nil {
		t.Fatalf("ParseDecision: %v", err)
	}
	want := "first line\nsecond line\nthird line"
	if d.Respond.Text != want {
		t.Errorf("expected %q, got %q", want, d.Respond.Text)
	}
}

func TestParseDecision_JSONFormat(t *testing.T) {
	raw := `{"action_type": "ask_clarification", "details": "Which city do you mean?", "confidence": 0.6}`

	d, err := ParseDecision(raw)
	if err != nil {
		t.Fatalf("ParseDecision: %v", err)
	}
	if d.Action != ActionAskClarification {
		t.Fatalf("expected ask_clarification, got %s", d.Action)
	}
	if d.AskClarification.Question != "Which city do you mean?" {
		t.Errorf("unexpected question: %q", d.AskClarification.Question)
	}
}

func TestParseDecision_Unparseable(t *testing.T) {
	cases := []string{
		"",
		"just some prose without any structure",
		"ACTION_TYPE: teleport\nDETAILS: nope",
		`ACTION_TYPE: use_tool
DETAILS: not json at all`,
	}
	for _, raw := range cases {
		_, err := ParseDecision(raw)
		if err == nil {
			t.Errorf("%q: expected ParseError", raw)
			continue
		}
		var pe *ParseError
		if !errors.As(err, &pe) {
			t.Errorf("%q: expected ParseError, got %v", raw, err)
		}
	}
}
