package schemas

// NotificationSchemas returns schemas for desktop notification tools.
func NotificationSchemas() map[string]ToolSchema {
	return map[string]ToolSchema{
		"notify": {
			Description: "Send a desktop notification to the user. Use for reminders or to flag that a long-running request finished.",
			Schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"title": map[string]any{
						"type":        "string",
						"description": "Notification title",
					},
					"message": map[string]any{
						"type":        "string",
						"description": "Notification body text",
					},
				},
				"required": []string{"title", "message"},
			},
		},
	}
}
