package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"math"
	"strconv"
	"strings"

	"github.com/valet-agent/valet/tools/schemas"
)

// RegisterCalculatorTool registers the calculator tool. Expressions are
// parsed with the Go expression parser and walked directly, so only
// arithmetic and a whitelist of math functions can ever execute.
func RegisterCalculatorTool(r *Registry) error {
	return r.Register("calculator", schemas.CalculatorSchemas()["calculator"],
		func(ctx context.Context, args json.RawMessage) (any, error) {
			var payload struct {
				Expression string `json:"expression"`
			}
			if err := json.Unmarshal(args, &payload); err != nil {
				return nil, fmt.Errorf("failed to unmarshal arguments: %w", err)
			}
			expr := strings.TrimSpace(payload.Expression)
			if expr == "" {
				return nil, fmt.Errorf("expression is empty")
			}

			value, err := evalExpression(expr)
			if err != nil {
				return nil, err
			}
			return map[string]any{
				"expression": expr,
				"result":     value,
			}, nil
		})
}

func evalExpression(expr string) (float64, error) {
	node, err := parser.ParseExpr(expr)
	if err != nil {
		return 0, fmt.Errorf("parse expression: %w", err)
	}
	return evalNode(node)
}

var calcConstants = map[string]float64{
	"pi": math.Pi,
	"e":  math.E,
}

func evalNode(node ast.Expr) (float64, error) {
	switch e := node.(type) {
	case *ast.BasicLit:
		if e.Kind != token.INT && e.Kind != token.FLOAT {
			return 0, fmt.Errorf("unsupported literal: %s", e.Value)
		}
		return strconv.ParseFloat(e.Value, 64)

	case *ast.Ident:
		if v, ok := calcConstants[strings.ToLower(e.Name)]; ok {
			return v, nil
		}
		return 0, fmt.Errorf("unknown identifier: %s", e.Name)

	case *ast.ParenExpr:
		return evalNode(e.X)

	case *ast.UnaryExpr:
		v, err := evalNode(e.X)
		if err != nil {
			return 0, err
		}
		switch e.Op {
		case token.SUB:
			return -v, nil
		case token.ADD:
			return v, nil
		default:
			return 0, fmt.Errorf("unsupported unary operator: %s", e.Op)
		}

	case *ast.BinaryExpr:
		left, err := evalNode(e.X)
		if err != nil {
			return 0, err
		}
		right, err := evalNode(e.Y)
		if err != nil {
			return 0, err
		}
		switch e.Op {
		case token.ADD:
			return left + right, nil
		case token.SUB:
			return left - right, nil
		case token.MUL:
			return left * right, nil
		case token.QUO:
			if right == 0 {
				return 0, fmt.Errorf("division by zero")
			}
			return left / right, nil
		case token.REM:
			if right == 0 {
				return 0, fmt.Errorf("division by zero")
			}
			return math.Mod(left, right), nil
		default:
			return 0, fmt.Errorf("unsupported operator: %s", e.Op)
		}

	case *ast.CallExpr:
		ident, ok := e.Fun.(*ast.Ident)
		if !ok {
			return 0, fmt.Errorf("unsupported function expression")
		}
		vals := make([]float64, len(e.Args))
		for i, arg := range e.Args {
			v, err := evalNode(arg)
			if err != nil {
				return 0, err
			}
			vals[i] = v
		}
		return evalCall(strings.ToLower(ident.Name), vals)

	default:
		return 0, fmt.Errorf("unsupported expression")
	}
}

func evalCall(name string, args []float64) (float64, error) {
	unary := map[string]func(float64) float64{
		"sqrt":  math.Sqrt,
		"abs":   math.Abs,
		"sin":   math.Sin,
		"cos":   math.Cos,
		"tan":   math.Tan,
		"log":   math.Log,
		"log2":  math.Log2,
		"log10": math.Log10,
		"exp":   math.Exp,
		"floor": math.Floor,
		"ceil":  math.Ceil,
		"round": math.Round,
	}
	if fn, ok := unary[name]; ok {
		if len(args) != 1 {
			return 0, fmt.Errorf("%s expects 1 argument, got %d", name, len(args))
		}
		v := fn(args[0])
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, fmt.Errorf("%s(%g) is not a finite number", name, args[0])
		}
		return v, nil
	}

	binary := map[string]func(float64, float64) float64{
		"pow": math.Pow,
		"min": math.Min,
		"max": math.Max,
	}
	if fn, ok := binary[name]; ok {
		if len(args) != 2 {
			return 0, fmt.Errorf("%s expects 2 arguments, got %d", name, len(args))
		}
		return fn(args[0], args[1]), nil
	}

	return 0, fmt.Errorf("unknown function: %s", name)
}
