package models

import "time"

// Event Bus models
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"` // sync.requested, sync.completed, sync.failed
	Source    string                 `json:"source"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]string      `json:"metadata,omitempty"`
}

// SyncSummary is what the trigger caller receives after a run finishes.
// FailedChunks is non-zero when some record chunks could not be stored;
// the run still counts as finished but is reported degraded.
type SyncSummary struct {
	Message         string         `json:"message"`
	PerStreamCounts map[string]int `json:"per_stream_counts"`
	TotalRecords    int            `json:"total_records"`
	ElapsedSeconds  float64        `json:"elapsed_seconds"`
	FailedChunks    int            `json:"failed_chunks,omitempty"`
}

// SyncFailure is the error body returned by the trigger API.
type SyncFailure struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
