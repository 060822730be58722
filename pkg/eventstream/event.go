// Package eventstream publishes transport-neutral events about completed
// chat responses.
package eventstream

import (
	"time"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeResponseCompleted is emitted after a streamed response has
	// finished and been persisted.
	EventTypeResponseCompleted = "opsdeck.response.completed"
)

// Response outcomes reported in ResponseCompletedEvent.Status.
const (
	StatusDone   = "done"
	StatusError  = "error"
	StatusCancel = "canceled"
)

// ResponseCompletedEvent describes one finished response.
type ResponseCompletedEvent struct {
	SchemaVersion int          `json:"schema_version"`
	EventType     string       `json:"event_type"`
	EventID       string       `json:"event_id"`
	EmittedAt     time.Time    `json:"emitted_at"`
	RecordID      string       `json:"record_id"`
	ClientID      string       `json:"client_id,omitempty"`
	Status        string       `json:"status"`
	Error         string       `json:"error,omitempty"`
	Meta          ResponseMeta `json:"meta"`
}

// ResponseMeta captures stream lifecycle metadata for the event.
type ResponseMeta struct {
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	DurationMs  int64     `json:"duration_ms"`
	Fallback    bool      `json:"fallback"`
	Chars       int       `json:"chars"`
}
