package schemas

// FilesystemSchemas returns schemas for filesystem-related tools. All paths
// are resolved inside the assistant's data directory.
func FilesystemSchemas() map[string]ToolSchema {
	return map[string]ToolSchema{
		"read_file": {
			Description: "Read a text file from the assistant's data directory.",
			Schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"path": map[string]any{
						"type":        "string",
						"description": "Path relative to the data directory",
					},
				},
				"required": []string{"path"},
			},
		},
		"write_file": {
			Description: "Write text content to a file in the assistant's data directory, creating parent directories as needed.",
			Schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"path": map[string]any{
						"type":        "string",
						"description": "Path relative to the data directory",
					},
					"content": map[string]any{
						"type":        "string",
						"description": "Content to write",
					},
				},
				"required": []string{"path", "content"},
			},
		},
		"list_files": {
			Description: "List files in a directory inside the assistant's data directory.",
			Schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"path": map[string]any{
						"type":        "string",
						"description": "Directory path relative to the data directory (default: root)",
					},
				},
			},
		},
		"delete_file": {
			Description: "Delete a file from the assistant's data directory.",
			Schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"path": map[string]any{
						"type":        "string",
						"description": "Path relative to the data directory",
					},
				},
				"required": []string{"path"},
			},
		},
	}
}
