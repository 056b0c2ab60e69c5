package undo

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/flowscribe-dev/flowscribe/internal/models"
)

// GormStore persists undo slots as one row per project, surviving process
// restarts. The payload is the operation's JSON next to its kind tag.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Record(projectID uint, op Operation) error {
	payload, err := json.Marshal(op)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", op.Kind(), err)
	}

	record := models.UndoRecord{
		ProjectID:  projectID,
		Kind:       op.Kind(),
		Payload:    payload,
		RecordedAt: time.Now(),
	}

	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "project_id"}},
		UpdateAll: true,
	}).Create(&record).Error
}

func (s *GormStore) Get(projectID uint) (Operation, error) {
	var record models.UndoRecord
	if err := s.db.Where("project_id = ?", projectID).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoOperation
		}
		return nil, err
	}
	return Decode(record.Kind, record.Payload)
}

func (s *GormStore) Clear(projectID uint) error {
	return s.db.Where("project_id = ?", projectID).Delete(&models.UndoRecord{}).Error
}

func (s *GormStore) Sweep(cutoff time.Time) (int, error) {
	result := s.db.Where("recorded_at < ?", cutoff).Delete(&models.UndoRecord{})
	return int(result.RowsAffected), result.Error
}
