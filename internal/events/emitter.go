package events

import (
	"strings"

	"github.com/google/uuid"
)

// Emitter stamps and publishes events for a single operation. Every entry it
// produces carries the same operation id so interleaved streams can be split.
type Emitter struct {
	sink      Sink
	clock     Clock
	operation string
}

// NewEmitter creates an emitter for a new operation. A nil sink discards
// events and a nil clock uses RealClock.
func NewEmitter(sink Sink, clock Clock) *Emitter {
	if sink == nil {
		sink = Nop()
	}
	if clock == nil {
		clock = RealClock{}
	}
	return &Emitter{
		sink:      sink,
		clock:     clock,
		operation: uuid.NewString(),
	}
}

// Operation returns the id attached to every event from this emitter.
func (e *Emitter) Operation() string {
	return e.operation
}

// Log publishes a log entry. The message is trimmed of surrounding whitespace.
func (e *Emitter) Log(level Level, message, details string) {
	publish(e.sink, LogEvent(LogEntry{
		Timestamp: FormatTimestamp(e.clock.Now()),
		Level:     level,
		Message:   strings.TrimSpace(message),
		Details:   details,
		Operation: e.operation,
	}))
}

// Info publishes an info-level entry.
func (e *Emitter) Info(message string) { e.Log(LevelInfo, message, "") }

// Success publishes a success-level entry.
func (e *Emitter) Success(message string) { e.Log(LevelSuccess, message, "") }

// Error publishes an error-level entry.
func (e *Emitter) Error(message string) { e.Log(LevelError, message, "") }

// Progress publishes a download progress update.
func (e *Emitter) Progress(p DownloadProgress) {
	p.Operation = e.operation
	publish(e.sink, ProgressEvent(p))
}
