package pandoc

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput reports a request that cannot be turned into a command
	// line. Nothing is spawned.
	ErrInvalidInput = errors.New("invalid input")

	// ErrSubprocess reports that pandoc could not be run to completion: it
	// failed to start, timed out, or was cancelled.
	ErrSubprocess = errors.New("subprocess error")
)

// SubprocessError describes why pandoc could not be run to completion.
// It matches ErrSubprocess and the underlying cause under errors.Is.
type SubprocessError struct {
	Message string
	Err     error
}

func (e *SubprocessError) Error() string {
	return e.Message
}

func (e *SubprocessError) Unwrap() []error {
	return []error{ErrSubprocess, e.Err}
}

// ProbeError is returned when a version query ran but exited non-zero.
type ProbeError struct {
	ExitCode int
	Stderr   string // trimmed
}

func (e *ProbeError) Error() string {
	if e.Stderr != "" {
		return e.Stderr
	}
	return exitMessage(e.ExitCode)
}

func exitMessage(code int) string {
	return fmt.Sprintf("pandoc exited with status %d", code)
}
