package events

import (
	"encoding/json"
	"io"
	"sync"

	"github.com/ZebulonRouseFrantzich/pandock/internal/logging"
)

// Sink receives published events. Implementations must not block for long
// and have no way to fail the publishing operation.
type Sink interface {
	Publish(Event)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(Event)

// Publish calls f(e).
func (f SinkFunc) Publish(e Event) { f(e) }

type nopSink struct{}

func (nopSink) Publish(Event) {}

// Nop returns a sink that discards every event.
func Nop() Sink {
	return nopSink{}
}

type teeSink []Sink

func (t teeSink) Publish(e Event) {
	for _, s := range t {
		publish(s, e)
	}
}

// Tee fans an event out to every non-nil sink, in argument order.
func Tee(sinks ...Sink) Sink {
	out := make(teeSink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

// publish delivers e to s, swallowing panics from misbehaving sinks.
func publish(s Sink, e Event) {
	if s == nil {
		return
	}
	defer func() { _ = recover() }()
	s.Publish(e)
}

// JSONLines writes each event as one JSON object per line.
// Write errors are dropped.
type JSONLines struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewJSONLines creates a JSON-lines sink writing to w.
func NewJSONLines(w io.Writer) *JSONLines {
	return &JSONLines{enc: json.NewEncoder(w)}
}

// Publish encodes e onto the underlying writer.
func (j *JSONLines) Publish(e Event) {
	j.mu.Lock()
	defer j.mu.Unlock()
	_ = j.enc.Encode(e)
}

type logSink struct {
	logger logging.Logger
}

// LogSink mirrors events into the diagnostic logger at debug level.
func LogSink(logger logging.Logger) Sink {
	if logger == nil {
		logger = logging.Nop()
	}
	return &logSink{logger: logger}
}

func (l *logSink) Publish(e Event) {
	switch {
	case e.Log != nil:
		l.logger.Debug("event", "topic", string(e.Topic), "level", string(e.Log.Level),
			"message", e.Log.Message, "operation", e.Log.Operation)
	case e.Progress != nil:
		l.logger.Debug("event", "topic", string(e.Topic), "phase", string(e.Progress.Phase),
			"downloaded", e.Progress.BytesDownloaded, "total", e.Progress.BytesTotal,
			"operation", e.Progress.Operation)
	}
}

// Recorder keeps every published event in order. It is safe for concurrent
// use and is mostly useful in tests and for hosts that replay history.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Publish appends e.
func (r *Recorder) Publish(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

// Events returns a copy of all recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Logs returns the recorded log entries in publication order.
func (r *Recorder) Logs() []LogEntry {
	var out []LogEntry
	for _, e := range r.Events() {
		if e.Log != nil {
			out = append(out, *e.Log)
		}
	}
	return out
}

// Progress returns the recorded progress updates in publication order.
func (r *Recorder) Progress() []DownloadProgress {
	var out []DownloadProgress
	for _, e := range r.Events() {
		if e.Progress != nil {
			out = append(out, *e.Progress)
		}
	}
	return out
}
