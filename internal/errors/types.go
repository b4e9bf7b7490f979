// Package errors defines the error taxonomy of the preview server.
//
// Recoverable errors (watch registration, build pipeline, broadcast) are
// logged and swallowed at the component that produced them. Fatal errors
// (listener bind, configuration) propagate to the process entry point.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeWatch     ErrorType = "watch"
	ErrorTypeBuild     ErrorType = "build"
	ErrorTypeBroadcast ErrorType = "broadcast"
	ErrorTypeServer    ErrorType = "server"
	ErrorTypeConfig    ErrorType = "config"
	ErrorTypeIO        ErrorType = "io"
)

// Error is a structured error with operation and path context.
type Error struct {
	Type        ErrorType
	Op          string
	Path        string
	Message     string
	Cause       error
	Recoverable bool
	Suggestions []Suggestion
}

// Suggestion is a hint printed alongside fatal errors.
type Suggestion struct {
	Title   string
	Command string
}

// Error implements the error interface.
func (e *Error) Error() string {
	var parts []string

	if e.Op != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Op))
	}

	if e.Path != "" {
		parts = append(parts, e.Path)
	}

	if e.Message != "" {
		parts = append(parts, e.Message)
	}

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		if result == "" {
			return e.Cause.Error()
		}
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error of the same type and operation.
// An empty Op on the target matches any operation.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}

	return e.Type == t.Type && (t.Op == "" || e.Op == t.Op)
}

// WithSuggestion appends a suggestion.
func (e *Error) WithSuggestion(title, command string) *Error {
	e.Suggestions = append(e.Suggestions, Suggestion{Title: title, Command: command})

	return e
}

// Sentinels usable with errors.Is to match a whole category.
var (
	ErrWatch     = &Error{Type: ErrorTypeWatch}
	ErrBuild     = &Error{Type: ErrorTypeBuild}
	ErrBroadcast = &Error{Type: ErrorTypeBroadcast}
	ErrServer    = &Error{Type: ErrorTypeServer}
	ErrConfig    = &Error{Type: ErrorTypeConfig}
)

// NewWatchRegistrationError reports that one watch root or pattern could not
// be registered. Registration of the remaining roots continues.
func NewWatchRegistrationError(path, pattern string, cause error) *Error {
	msg := "watch registration failed"
	if pattern != "" {
		msg = fmt.Sprintf("watch registration failed for pattern %q", pattern)
	}

	return &Error{
		Type:        ErrorTypeWatch,
		Op:          "watch.register",
		Path:        path,
		Message:     msg,
		Cause:       cause,
		Recoverable: true,
	}
}

// NewBuildPipelineError reports a failed rebuild.
func NewBuildPipelineError(reason string, cause error) *Error {
	return &Error{
		Type:        ErrorTypeBuild,
		Op:          "build.pipeline",
		Message:     fmt.Sprintf("build failed (%s)", reason),
		Cause:       cause,
		Recoverable: true,
	}
}

// NewBroadcastError reports a failed send to one push connection.
func NewBroadcastError(connID string, cause error) *Error {
	return &Error{
		Type:        ErrorTypeBroadcast,
		Op:          "livereload.send",
		Path:        connID,
		Message:     "send failed",
		Cause:       cause,
		Recoverable: true,
	}
}

// NewServerFatalError reports that the listener could not be started.
func NewServerFatalError(addr string, port int, cause error) *Error {
	e := &Error{
		Type:        ErrorTypeServer,
		Op:          "server.listen",
		Path:        addr,
		Message:     "cannot start listener",
		Cause:       cause,
		Recoverable: false,
	}

	if cause == nil {
		return e
	}

	errStr := cause.Error()
	if strings.Contains(errStr, "address already in use") {
		e.WithSuggestion("Port already in use", fmt.Sprintf("lsof -i :%d", port))
		e.WithSuggestion("Use a different port", fmt.Sprintf("ssg serve --port %d", port+1))
	}
	if strings.Contains(errStr, "permission denied") {
		e.WithSuggestion("Ports below 1024 need elevated privileges", "ssg serve --port 5000")
	}

	return e
}

// NewConfigError reports an invalid configuration.
func NewConfigError(field, message string) *Error {
	return &Error{
		Type:        ErrorTypeConfig,
		Op:          "config.validate",
		Path:        field,
		Message:     message,
		Recoverable: false,
	}
}

// IsFatal reports whether err must terminate the process.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	var e *Error
	if errors.As(err, &e) {
		return !e.Recoverable
	}

	return true
}

// Format renders err with its suggestions for terminal output.
func Format(err error) string {
	var e *Error
	if !errors.As(err, &e) || len(e.Suggestions) == 0 {
		return "Error: " + err.Error()
	}

	var b strings.Builder
	b.WriteString("Error: ")
	b.WriteString(err.Error())
	b.WriteString("\n\nSuggestions:\n")
	for _, s := range e.Suggestions {
		b.WriteString("  • ")
		b.WriteString(s.Title)
		if s.Command != "" {
			b.WriteString("\n      ")
			b.WriteString(s.Command)
		}
		b.WriteString("\n")
	}

	return b.String()
}
