package connection

import (
	"context"
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var ErrNotFound = errors.New("connection not found")

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&Connection{}, &RawRecord{})
}

func (r *Repository) Get(ctx context.Context, id string) (*Connection, error) {
	var conn Connection
	result := r.db.WithContext(ctx).First(&conn, "id = ?", id)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return &conn, result.Error
}

// UpdateCatalog mirrors the cached catalog document into the connection
// row so the platform UI can show which streams the source offers.
func (r *Repository) UpdateCatalog(ctx context.Context, id string, catalog []byte) error {
	return r.db.WithContext(ctx).Model(&Connection{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"catalog":    datatypes.JSON(catalog),
			"updated_at": time.Now().UTC(),
		}).Error
}

// InsertRawBatch bulk-inserts one chunk of extracted records.
func (r *Repository) InsertRawBatch(ctx context.Context, records []RawRecord) error {
	if len(records) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for i := range records {
		records[i].CreatedAt = now
	}
	return r.db.WithContext(ctx).Create(&records).Error
}
