package schemas

// WeatherSchemas returns schemas for the weather tool.
func WeatherSchemas() map[string]ToolSchema {
	return map[string]ToolSchema{
		"weather": {
			Description: "Get the current weather for a location. Returns temperature, conditions, and humidity.",
			Schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"location": map[string]any{
						"type":        "string",
						"description": "City name, e.g. 'Lisbon' or 'San Francisco'",
					},
				},
				"required": []string{"location"},
			},
		},
	}
}
