package tools

import (
	"math"
	"testing"
)

func TestEvalExpression(t *testing.T) {
	cases := []struct {
		expr string
		want float64
	}{
		{"1 + 2", 3},
		{"2 * (3 + 4)", 14},
		{"10 / 4", 2.5},
		{"-5 + 3", -2},
		{"10 % 3", 1},
		{"sqrt(16)", 4},
		{"abs(-7.5)", 7.5},
		{"pow(2, 10)", 1024},
		{"min(3, max(1, 2))", 2},
		{"round(2.6)", 3},
		{"2 * pi", 2 * math.Pi},
	}
	for _, tc := range cases {
		got, err := evalExpression(tc.expr)
		if err != nil {
			t.Errorf("%q: unexpected error: %v", tc.expr, err)
			continue
		}
		if math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("%q: got %g, want %g", tc.expr, got, tc.want)
		}
	}
}

func TestEvalExpressionRejectsUnsafe(t *testing.T) {
	cases := []string{
		"",
		"1 / 0",
		"os.Exit(1)",
		"foo(1)",
		"x + 1",
		`"hello"`,
		"sqrt(-1)",
		"1 << 4",
	}
	for _, expr := range cases {
		if _, err := evalExpression(expr); err == nil {
			t.Errorf("%q: expected error, got none", expr)
		}
	}
}
