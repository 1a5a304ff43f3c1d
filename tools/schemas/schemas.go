// Package schemas contains tool schema definitions for the assistant.
// These schemas define the input parameters and descriptions for tools the
// agent can use. They are registered with the tool Registry at startup.
package schemas

// ToolSchema represents a tool's description and JSON schema.
type ToolSchema struct {
	Description string
	Schema      map[string]any
}

// All returns all tool schemas from all categories.
func All() map[string]ToolSchema {
	schemas := make(map[string]ToolSchema)

	for name, schema := range CalculatorSchemas() {
		schemas[name] = schema
	}
	for name, schema := range WeatherSchemas() {
		schemas[name] = schema
	}
	for name, schema := range WebSearchSchemas() {
		schemas[name] = schema
	}
	for name, schema := range FilesystemSchemas() {
		schemas[name] = schema
	}
	for name, schema := range NotificationSchemas() {
		schemas[name] = schema
	}

	return schemas
}
