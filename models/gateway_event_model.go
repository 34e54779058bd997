package models

import (
	"time"

	"github.com/google/uuid"
)

// GatewayEvent deduplicates webhook deliveries. The (gateway, event id)
// pair is unique; re-deliveries fail the insert and are acknowledged
// without reprocessing.
type GatewayEvent struct {
	ID      uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	Gateway string    `gorm:"size:30;not null;uniqueIndex:idx_gateway_event" json:"gateway"`
	EventID string    `gorm:"size:255;not null;uniqueIndex:idx_gateway_event" json:"event_id"`
	Payload string    `gorm:"type:text" json:"-"`

	CreatedAt time.Time `json:"created_at"`
}
