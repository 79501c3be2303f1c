package transport

import (
	"errors"
	"fmt"
	"strings"
)

// Error reports a failed send attempt. Every transport error is retryable
// up to the dispatch policy limit; configuration problems are reported as
// domain.ErrConfig instead and are terminal.
type Error struct {
	StatusCode int
	Message    string
	Cause      error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}

	parts := make([]string, 0, 3)
	if msg := strings.TrimSpace(e.Message); msg != "" {
		parts = append(parts, msg)
	}
	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}
	if len(parts) == 0 {
		parts = append(parts, fmt.Sprintf("send failed with status %d", e.StatusCode))
	}

	return strings.Join(parts, ": ")
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// IsTransportError reports whether an error came from a send attempt.
func IsTransportError(err error) bool {
	var transportErr *Error
	return errors.As(err, &transportErr)
}
