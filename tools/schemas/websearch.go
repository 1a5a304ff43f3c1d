package schemas

// WebSearchSchemas returns schemas for the web search tool.
func WebSearchSchemas() map[string]ToolSchema {
	return map[string]ToolSchema{
		"web_search": {
			Description: "Search the web for a short factual answer. Best for definitions, facts, and current topics the assistant may not know.",
			Schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{
						"type":        "string",
						"description": "Search query",
					},
					"max_results": map[string]any{
						"type":        "number",
						"description": "Maximum number of results to return (default: 3)",
					},
				},
				"required": []string{"query"},
			},
		},
	}
}
