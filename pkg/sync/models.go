package sync

import (
	"time"

	"gorm.io/datatypes"
)

const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusDegraded  = "degraded"
	StatusFailed    = "failed"
)

// Run is the stored history of one sync invocation. A run whose extractor
// finished but whose persistence lost chunks is recorded as degraded, so
// partial data loss is visible instead of silently folded into success.
type Run struct {
	ID           string            `json:"id" gorm:"primaryKey;column:id"`
	ConnectionID string            `json:"connection_id" gorm:"column:connection_id;index"`
	OwnerID      string            `json:"owner_id" gorm:"column:owner_id"`
	ProjectID    string            `json:"project_id" gorm:"column:project_id"`
	Status       string            `json:"status" gorm:"column:status"`
	TotalRecords int               `json:"total_records" gorm:"column:total_records"`
	Streams      datatypes.JSONMap `json:"streams,omitempty" gorm:"column:streams"`
	FailedChunks int               `json:"failed_chunks" gorm:"column:failed_chunks"`
	Error        string            `json:"error,omitempty" gorm:"column:error"`
	StartedAt    time.Time         `json:"started_at" gorm:"column:started_at"`
	FinishedAt   *time.Time        `json:"finished_at,omitempty" gorm:"column:finished_at"`
}

func (Run) TableName() string {
	return "connection_sync_runs"
}

func streamCounts(counts map[string]int) datatypes.JSONMap {
	if len(counts) == 0 {
		return nil
	}
	m := make(datatypes.JSONMap, len(counts))
	for stream, n := range counts {
		m[stream] = n
	}
	return m
}
