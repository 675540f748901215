package models

import "time"

// ProgressEventType classifies progress events
type ProgressEventType string

const (
	ProgressTypeProgress  ProgressEventType = "progress"
	ProgressTypeComplete  ProgressEventType = "complete"
	ProgressTypeFailed    ProgressEventType = "failed"
	ProgressTypeCancelled ProgressEventType = "cancelled"
)

// ProgressEvent is emitted to the ProgressHub at every stage transition.
// Percent is monotonic non-decreasing per (job, stage).
type ProgressEvent struct {
	Type      ProgressEventType `json:"type"`
	JobID     string            `json:"job_id"`
	Percent   int               `json:"percent"`
	Stage     string            `json:"stage"`
	Message   string            `json:"message"`
	Timestamp time.Time         `json:"timestamp"`
	// Lagged marks the first event delivered to a subscriber after the hub
	// dropped older buffered events for it.
	Lagged bool `json:"lagged,omitempty"`
}
