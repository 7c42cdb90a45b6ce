package shared

import (
	"errors"
	"fmt"
)

// ConfigError reports missing or malformed configuration. It is fatal at
// startup: the process exits non-zero instead of limping along.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

func NewConfigError(field, reason string) *ConfigError {
	return &ConfigError{Field: field, Reason: reason}
}

// UnknownToolError is returned when a tool name has no registered endpoint.
// The model can propose names that were never registered; the dispatcher
// rejects them without touching any API client.
type UnknownToolError struct {
	Name string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("unknown tool %q", e.Name)
}

// InvalidArgumentsError is returned when tool call arguments fail schema
// validation before the handler runs.
type InvalidArgumentsError struct {
	Tool   string
	Reason string
}

func (e *InvalidArgumentsError) Error() string {
	return fmt.Sprintf("invalid arguments for tool %q: %s", e.Tool, e.Reason)
}

// UpstreamError wraps a failure from GitLab, SharePoint, an MCP server or
// the LLM API. StatusCode is zero for pure network failures.
type UpstreamError struct {
	Service    string
	StatusCode int
	Message    string
	Timeout    bool
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("%s: request timed out", e.Service)
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: HTTP %d: %s", e.Service, e.StatusCode, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Service, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Service, e.Message)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// IsUpstreamTimeout reports whether err is an UpstreamError caused by the
// fixed request timeout.
func IsUpstreamTimeout(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue) && ue.Timeout
}
