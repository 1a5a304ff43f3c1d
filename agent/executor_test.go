package agent

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/valet-agent/valet/tools"
	"github.com/valet-agent/valet/tools/schemas"
)

func TestExecutor_ToolTimeoutDegrades(t *testing.T) {
	r := tools.NewRegistry(zerolog.Nop())
	err := r.Register("slow_lookup", schemas.ToolSchema{
		Description: "Pretends to look something up, slowly.",
		Schema: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
	}, func(ctx context.Context, args json.RawMessage) (any, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(5 * time.Second):
			return "done", nil
		}
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	x := NewExecutor(r, nil, 50*time.Millisecond, zerolog.Nop())
	out := x.Execute(context.Background(), "s1", &Decision{
		Action:  ActionUseTool,
		UseTool: &UseToolAction{Name: "slow_lookup", Args: map[string]any{}},
	})

	if out.Action != ActionRespond {
		t.Errorf("expected degraded respond outcome, got %s", out.Action)
	}
	if out.ToolOK {
		t.Errorf("timed-out tool must not report success")
	}
	if !strings.Contains(out.Text, "took too long") {
		t.Errorf("expected timeout explanation, got %q", out.Text)
	}
}
