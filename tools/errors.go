package tools

import (
	"errors"
	"fmt"
)

// UnknownToolError is returned when a tool name has no registered handler.
type UnknownToolError struct {
	Name string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("unknown tool: %s", e.Name)
}

// IsUnknownTool reports whether err is (or wraps) an UnknownToolError.
func IsUnknownTool(err error) bool {
	var ute *UnknownToolError
	return errors.As(err, &ute)
}

// InvalidArgumentsError is returned when tool arguments fail schema
// validation before the handler ever runs.
type InvalidArgumentsError struct {
	Tool string
	Err  error
}

func (e *InvalidArgumentsError) Error() string {
	return fmt.Sprintf("invalid arguments for tool %s: %v", e.Tool, e.Err)
}

func (e *InvalidArgumentsError) Unwrap() error { return e.Err }

// IsInvalidArguments reports whether err is (or wraps) an InvalidArgumentsError.
func IsInvalidArguments(err error) bool {
	var iae *InvalidArgumentsError
	return errors.As(err, &iae)
}
