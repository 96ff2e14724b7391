package connection

import (
	"time"

	"gorm.io/datatypes"
)

// Connection is a configured link to one remote commerce source. Rows are
// created by the wider platform; this service reads the config and mirrors
// the discovered catalog back.
type Connection struct {
	ID        string            `json:"id" gorm:"primaryKey;column:id"`
	Name      string            `json:"name" gorm:"column:name"`
	Type      string            `json:"type" gorm:"column:type"`
	OwnerID   string            `json:"owner_id" gorm:"column:owner_id"`
	ProjectID string            `json:"project_id" gorm:"column:project_id"`
	Config    datatypes.JSONMap `json:"config" gorm:"column:config"`
	Catalog   datatypes.JSON    `json:"catalog,omitempty" gorm:"column:catalog"`
	CreatedAt time.Time         `json:"created_at" gorm:"column:created_at"`
	UpdatedAt time.Time         `json:"updated_at" gorm:"column:updated_at"`
}

func (Connection) TableName() string {
	return "connections"
}

// RawRecord is one extracted row, stored opaquely. The payload is whatever
// the tap emitted; this service never interprets it.
type RawRecord struct {
	ID           int64          `json:"id" gorm:"primaryKey;autoIncrement;column:id"`
	OwnerID      string         `json:"owner_id" gorm:"column:owner_id"`
	ProjectID    string         `json:"project_id" gorm:"column:project_id"`
	ConnectionID string         `json:"connection_id" gorm:"column:connection_id;index"`
	Stream       string         `json:"stream" gorm:"column:stream"`
	Record       datatypes.JSON `json:"record" gorm:"column:record"`
	CreatedAt    time.Time      `json:"created_at" gorm:"column:created_at"`
}

func (RawRecord) TableName() string {
	return "raw_connection_data"
}
