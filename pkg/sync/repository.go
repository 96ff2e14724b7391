package sync

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&Run{})
}

func (r *Repository) Create(ctx context.Context, run *Run) error {
	return r.db.WithContext(ctx).Create(run).Error
}

// Finish writes the terminal fields of a run in one update.
func (r *Repository) Finish(ctx context.Context, run *Run) error {
	return r.db.WithContext(ctx).Model(&Run{}).
		Where("id = ?", run.ID).
		Updates(map[string]interface{}{
			"status":        run.Status,
			"total_records": run.TotalRecords,
			"streams":       run.Streams,
			"failed_chunks": run.FailedChunks,
			"error":         run.Error,
			"finished_at":   time.Now().UTC(),
		}).Error
}

func (r *Repository) ListByConnection(ctx context.Context, connectionID string, limit int) ([]Run, error) {
	var runs []Run
	err := r.db.WithContext(ctx).
		Where("connection_id = ?", connectionID).
		Order("started_at DESC").
		Limit(limit).
		Find(&runs).Error
	return runs, err
}
