package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorString(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		expected string
	}{
		{
			name:     "watch registration with pattern",
			err:      NewWatchRegistrationError("/site/content", "*.md", errors.New("no space left")),
			expected: `[watch.register] /site/content watch registration failed for pattern "*.md": no space left`,
		},
		{
			name:     "build failure",
			err:      NewBuildPipelineError("content/a.md", errors.New("exit status 1")),
			expected: "[build.pipeline] build failed (content/a.md): exit status 1",
		},
		{
			name:     "cause only",
			err:      &Error{Cause: errors.New("boom")},
			expected: "boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestErrorIsAndUnwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := fmt.Errorf("broadcast: %w", NewBroadcastError("abc", cause))

	assert.ErrorIs(t, err, ErrBroadcast)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrBuild)

	var typed *Error
	require.ErrorAs(t, err, &typed)
	assert.Equal(t, "abc", typed.Path)
	assert.True(t, typed.Recoverable)
}

func TestIsFatal(t *testing.T) {
	assert.False(t, IsFatal(nil))
	assert.False(t, IsFatal(NewWatchRegistrationError("x", "", nil)))
	assert.False(t, IsFatal(NewBuildPipelineError("startup", nil)))
	assert.True(t, IsFatal(NewServerFatalError(":5000", 5000, errors.New("bind: address already in use"))))
	assert.True(t, IsFatal(NewConfigError("server.port", "out of range")))
	assert.True(t, IsFatal(errors.New("plain")))
}

func TestServerFatalErrorSuggestions(t *testing.T) {
	err := NewServerFatalError("0.0.0.0:5000", 5000, errors.New("listen tcp: bind: address already in use"))

	require.Len(t, err.Suggestions, 2)
	assert.Equal(t, "ssg serve --port 5001", err.Suggestions[1].Command)

	out := Format(err)
	assert.Contains(t, out, "Suggestions:")
	assert.Contains(t, out, "lsof -i :5000")
}

func TestFormatWithoutSuggestions(t *testing.T) {
	assert.Equal(t, "Error: plain", Format(errors.New("plain")))
}
