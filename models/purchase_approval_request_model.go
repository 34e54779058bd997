package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PurchaseStatus string

const (
	PurchasePending  PurchaseStatus = "pending"
	PurchaseApproved PurchaseStatus = "approved"
	PurchaseRejected PurchaseStatus = "rejected"
	PurchaseExpired  PurchaseStatus = "expired"
)

// Once a request leaves pending it never re-enters it; all three other
// states are terminal.
func (s PurchaseStatus) IsTerminal() bool {
	return s != PurchasePending
}

const PurchaseApprovalTTL = 24 * time.Hour

type PurchaseApprovalRequest struct {
	ID       uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	ChildID  uuid.UUID `gorm:"type:uuid;not null;index" json:"child_id"`
	ParentID uuid.UUID `gorm:"type:uuid;not null;index" json:"parent_id"`

	PurchaseType string          `gorm:"size:50;not null" json:"purchase_type"`
	ItemRef      string          `gorm:"size:255;not null" json:"item_ref"`
	Amount       decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount"`
	Currency     string          `gorm:"size:3;not null" json:"currency"`
	Status       PurchaseStatus  `gorm:"size:20;not null;default:'pending';index" json:"status"`

	Reason  *string `gorm:"type:text" json:"reason,omitempty"`
	Context *string `gorm:"type:text" json:"context,omitempty"`

	// ExpiresAt is fixed at creation and never moved.
	ExpiresAt time.Time  `gorm:"not null;index" json:"expires_at"`
	DecidedAt *time.Time `json:"decided_at,omitempty"`

	Child  User `gorm:"foreignkey:ChildID" json:"-"`
	Parent User `gorm:"foreignkey:ParentID" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"-"`
}
