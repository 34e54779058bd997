package database

import (
	"github.com/elimuhub/learning_platform/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GatewayEventStore struct {
	db *gorm.DB
}

func NewGatewayEventStore(db *gorm.DB) *GatewayEventStore {
	return &GatewayEventStore{db: db}
}

// RecordOnce inserts the event and reports whether this is the first
// delivery. Webhook handlers acknowledge duplicates without reprocessing.
func (s *GatewayEventStore) RecordOnce(gateway, eventID, payload string) (bool, error) {
	event := models.GatewayEvent{
		Gateway: gateway,
		EventID: eventID,
		Payload: payload,
	}
	result := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "gateway"}, {Name: "event_id"}},
		DoNothing: true,
	}).Create(&event)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// Forget releases a recorded event so the gateway's redelivery is treated
// as a first delivery again. Called when applying the event's outcome
// failed after RecordOnce claimed it.
func (s *GatewayEventStore) Forget(gateway, eventID string) error {
	return s.db.Where("gateway = ? AND event_id = ?", gateway, eventID).
		Delete(&models.GatewayEvent{}).Error
}
