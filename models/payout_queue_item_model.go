package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PayoutItemStatus string

const (
	PayoutItemPending    PayoutItemStatus = "pending"
	PayoutItemProcessing PayoutItemStatus = "processing"
	PayoutItemCompleted  PayoutItemStatus = "completed"
	PayoutItemFailed     PayoutItemStatus = "failed"
)

// PayoutQueueItem is the settlement work item for one approved withdrawal.
// The unique WithdrawalID doubles as the idempotency key toward the gateway:
// an item is retried in place, never duplicated, for the same withdrawal.
type PayoutQueueItem struct {
	ID           uuid.UUID        `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	WithdrawalID uuid.UUID        `gorm:"type:uuid;not null;unique" json:"withdrawal_id"`
	RecipientID  uuid.UUID        `gorm:"type:uuid;not null" json:"recipient_id"`
	Amount       decimal.Decimal  `gorm:"type:numeric(12,2);not null" json:"amount"`
	Currency     string           `gorm:"size:3;not null" json:"currency"`
	PayoutMethod PayoutMethod     `gorm:"size:20;not null" json:"payout_method"`
	Status       PayoutItemStatus `gorm:"size:20;not null;default:'pending';index" json:"status"`

	Attempts      int     `gorm:"not null;default:0" json:"attempts"`
	GatewayRef    *string `gorm:"size:255" json:"gateway_ref,omitempty"`
	FailureReason *string `gorm:"type:text" json:"failure_reason,omitempty"`

	Withdrawal WithdrawalRequest `gorm:"foreignkey:WithdrawalID" json:"-"`

	CreatedAt   time.Time  `json:"created_at"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
	UpdatedAt   time.Time  `json:"-"`
}
