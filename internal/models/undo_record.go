package models

import (
	"time"

	"gorm.io/datatypes"
)

// UndoRecord is the persisted form of a project's single undo slot. The
// project id is the primary key, so each project holds at most one row.
type UndoRecord struct {
	ProjectID  uint           `gorm:"primarykey" json:"project_id"`
	Kind       string         `gorm:"size:50;not null" json:"kind"`
	Payload    datatypes.JSON `gorm:"type:jsonb" json:"payload"`
	RecordedAt time.Time      `gorm:"not null;index" json:"recorded_at"`
}
