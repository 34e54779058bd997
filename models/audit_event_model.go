package models

import (
	"time"

	"github.com/google/uuid"
)

// AuditEvent is an append-only record of every status transition. Events
// are written inside the same transaction as the transition itself, so the
// trail can be replayed to reconstruct a request's history after a partial
// failure.
type AuditEvent struct {
	ID          uuid.UUID  `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	RequestKind string     `gorm:"size:30;not null;index:idx_audit_request" json:"request_kind"`
	RequestID   uuid.UUID  `gorm:"type:uuid;not null;index:idx_audit_request" json:"request_id"`
	FromStatus  string     `gorm:"size:20;not null" json:"from_status"`
	ToStatus    string     `gorm:"size:20;not null" json:"to_status"`
	ActorID     *uuid.UUID `gorm:"type:uuid" json:"actor_id,omitempty"`
	Reason      *string    `gorm:"type:text" json:"reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

const (
	AuditKindWithdrawal = "withdrawal"
	AuditKindPurchase   = "purchase_approval"
	AuditKindPayout     = "payout_item"
)
