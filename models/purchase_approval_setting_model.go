package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	ApprovalModeRealtime      = "realtime"
	ApprovalModeSpendingLimit = "spending_limit"
)

// PurchaseApprovalSetting is configured by a parent for one child. At most
// one active setting exists per pair, enforced by the partial unique index.
type PurchaseApprovalSetting struct {
	ID       uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	ParentID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_active_pair,where:is_active" json:"parent_id"`
	ChildID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_active_pair,where:is_active" json:"child_id"`
	Mode     string    `gorm:"size:20;not null;default:'realtime'" json:"mode"`

	PerPurchaseLimit *decimal.Decimal `gorm:"type:numeric(12,2)" json:"per_purchase_limit,omitempty"`
	DailyLimit       *decimal.Decimal `gorm:"type:numeric(12,2)" json:"daily_limit,omitempty"`
	MonthlyLimit     *decimal.Decimal `gorm:"type:numeric(12,2)" json:"monthly_limit,omitempty"`

	IsActive bool `gorm:"not null;default:true" json:"is_active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
