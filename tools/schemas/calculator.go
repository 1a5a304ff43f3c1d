package schemas

// CalculatorSchemas returns schemas for the calculator tool.
func CalculatorSchemas() map[string]ToolSchema {
	return map[string]ToolSchema{
		"calculator": {
			Description: "Evaluate an arithmetic expression. Supports +, -, *, /, parentheses, and functions like sqrt, sin, cos, abs, pow. Use this for any math the user asks for instead of computing it yourself.",
			Schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"expression": map[string]any{
						"type":        "string",
						"description": "Arithmetic expression to evaluate, e.g. 'sqrt(2) * (3 + 4)'",
					},
				},
				"required": []string{"expression"},
			},
		},
	}
}
