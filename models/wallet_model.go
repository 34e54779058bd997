package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Wallet holds the spendable balance for one account. Balances are written
// only through the ledger service: a conditional debit that cannot go
// negative, and a credit that reverses a failed payout. Course-sale
// bookkeeping that feeds the balance lives in an external ledger service.
type Wallet struct {
	AccountID uuid.UUID       `gorm:"type:uuid;primary_key" json:"account_id"`
	Balance   decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0.00" json:"balance"`
	Currency  string          `gorm:"size:3;not null;default:'KES'" json:"currency"`

	Account User `gorm:"foreignkey:AccountID" json:"-"`

	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}
