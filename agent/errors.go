package agent

import (
	"errors"
	"fmt"
	"strings"
)

// ErrTurnBusy is returned when a turn arrives while another turn is in
// flight for the same session. Turns are strictly sequential per session.
var ErrTurnBusy = errors.New("a turn is already in progress for this session")

// ConfigurationError reports an invalid model or persona selection. It is
// raised at construction only, never mid-turn, and always lists the valid
// options.
type ConfigurationError struct {
	Field string
	Value string
	Valid []string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid %s %q: valid options are [%s]",
		e.Field, e.Value, strings.Join(e.Valid, ", "))
}

// IsConfigurationError reports whether err is (or wraps) a ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// ParseError reports that model output did not match any known decision
// shape. It is never surfaced to callers; the decision layer fails open to a
// direct response and logs it.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("unparseable decision: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
