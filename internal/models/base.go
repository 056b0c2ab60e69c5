package models

import "time"

// BaseModel carries the id and timestamps shared by most tables. Rows are
// hard-deleted so project cascades remove children outright.
type BaseModel struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
