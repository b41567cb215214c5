// Package events defines the user-facing event stream shared by binary
// acquisition and document conversion.
//
// Two topics exist: the conversion log (LogEntry records) and download
// progress (DownloadProgress records). Producers publish through a Sink that
// the host supplies; a Sink never reports errors back and must never block the
// producer. A nil or no-op sink is always valid.
package events

import (
	"encoding/json"
)

// Topic names an event stream consumed by the UI host.
type Topic string

const (
	// TopicLog carries LogEntry payloads.
	TopicLog Topic = "conversion_log"
	// TopicDownloadProgress carries DownloadProgress payloads.
	TopicDownloadProgress Topic = "download_progress"
)

// Level classifies a LogEntry.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// LogEntry is one observable event in the conversion log. Entries are
// write-once: nothing mutates an entry after it has been published.
type LogEntry struct {
	Timestamp string `json:"timestamp"` // RFC3339 with offset
	Level     Level  `json:"level"`
	Message   string `json:"message"`
	Details   string `json:"details,omitempty"`
	Operation string `json:"operation,omitempty"`
}

// Phase is the acquisition state reported alongside download progress.
type Phase string

const (
	PhaseAbsent      Phase = "Absent"
	PhaseDownloading Phase = "Downloading"
	PhaseExtracting  Phase = "Extracting"
	PhaseInstalled   Phase = "Installed"
	PhaseFailed      Phase = "Failed"
)

// Progress labels shown by the UI. "Complete!" is also what the UI matches on
// to detect a finished install.
const (
	LabelStarting    = "Starting…"
	LabelDownloading = "Downloading…"
	LabelExtracting  = "Extracting…"
	LabelComplete    = "Complete!"
)

// DownloadProgress is emitted repeatedly while an archive is fetched.
type DownloadProgress struct {
	BytesDownloaded int64   `json:"downloaded"`
	BytesTotal      int64   `json:"total"` // 0 when the server sent no content length
	Percentage      float64 `json:"percentage"`
	Label           string  `json:"status"`
	Phase           Phase   `json:"phase"`
	Operation       string  `json:"operation,omitempty"`
}

// Percent computes the clamped percentage for downloaded/total.
// A zero or negative total yields 0.
func Percent(downloaded, total int64) float64 {
	if total <= 0 {
		return 0
	}
	p := float64(downloaded) / float64(total) * 100
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// Event is a single publication on one topic. Exactly one of Log or Progress
// is set, matching Topic.
type Event struct {
	Topic    Topic
	Log      *LogEntry
	Progress *DownloadProgress
}

// LogEvent wraps a LogEntry as an Event.
func LogEvent(entry LogEntry) Event {
	return Event{Topic: TopicLog, Log: &entry}
}

// ProgressEvent wraps a DownloadProgress as an Event.
func ProgressEvent(p DownloadProgress) Event {
	return Event{Topic: TopicDownloadProgress, Progress: &p}
}

type wireEvent struct {
	Topic   Topic           `json:"topic"`
	Payload json.RawMessage `json:"payload"`
}

// MarshalJSON encodes the event as {"topic": ..., "payload": ...}.
func (e Event) MarshalJSON() ([]byte, error) {
	var payload any
	switch {
	case e.Log != nil:
		payload = e.Log
	case e.Progress != nil:
		payload = e.Progress
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireEvent{Topic: e.Topic, Payload: raw})
}

// UnmarshalJSON decodes the wire form produced by MarshalJSON.
func (e *Event) UnmarshalJSON(data []byte) error {
	var w wireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	e.Topic = w.Topic
	e.Log, e.Progress = nil, nil
	switch w.Topic {
	case TopicLog:
		var entry LogEntry
		if err := json.Unmarshal(w.Payload, &entry); err != nil {
			return err
		}
		e.Log = &entry
	case TopicDownloadProgress:
		var p DownloadProgress
		if err := json.Unmarshal(w.Payload, &p); err != nil {
			return err
		}
		e.Progress = &p
	}
	return nil
}
