package database

import (
	"github.com/elimuhub/learning_platform/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AuditStore struct {
	db *gorm.DB
}

func NewAuditStore(db *gorm.DB) *AuditStore {
	return &AuditStore{db: db}
}

func (s *AuditStore) Record(event *models.AuditEvent) error {
	return s.db.Create(event).Error
}

func (s *AuditStore) Trail(kind string, requestID uuid.UUID) ([]models.AuditEvent, error) {
	var events []models.AuditEvent
	err := s.db.Where("request_kind = ? AND request_id = ?", kind, requestID).
		Order("created_at asc").
		Find(&events).Error
	return events, err
}
