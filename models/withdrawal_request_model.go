package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type WithdrawalStatus string

const (
	WithdrawalRequested  WithdrawalStatus = "requested"
	WithdrawalApproved   WithdrawalStatus = "approved"
	WithdrawalRejected   WithdrawalStatus = "rejected"
	WithdrawalProcessing WithdrawalStatus = "processing"
	WithdrawalCompleted  WithdrawalStatus = "completed"
	WithdrawalFailed     WithdrawalStatus = "failed"
)

// withdrawalTransitions is the only source of truth for the state machine.
// Every status mutation goes through a conditional UPDATE guarded by this
// table, so a record can never move backward.
var withdrawalTransitions = map[WithdrawalStatus][]WithdrawalStatus{
	WithdrawalRequested:  {WithdrawalApproved, WithdrawalRejected},
	WithdrawalApproved:   {WithdrawalProcessing},
	WithdrawalProcessing: {WithdrawalCompleted, WithdrawalFailed},
	WithdrawalFailed:     {WithdrawalProcessing, WithdrawalRejected},
}

func (s WithdrawalStatus) CanTransitionTo(next WithdrawalStatus) bool {
	for _, allowed := range withdrawalTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s WithdrawalStatus) IsTerminal() bool {
	return s == WithdrawalCompleted || s == WithdrawalRejected
}

type PayoutMethod string

const (
	MethodMpesaB2C     PayoutMethod = "mpesa_b2c"
	MethodBankTransfer PayoutMethod = "bank_transfer"
	MethodPayPal       PayoutMethod = "paypal"
)

// PayoutDetails is the method-specific destination blob, stored as jsonb.
type PayoutDetails struct {
	PhoneNumber string `json:"phone_number,omitempty"`
	BankName    string `json:"bank_name,omitempty"`
	BankAccount string `json:"bank_account,omitempty"`
	BankCode    string `json:"bank_code,omitempty"`
	Email       string `json:"email,omitempty"`
}

func (d PayoutDetails) Value() (driver.Value, error) {
	return json.Marshal(d)
}

func (d *PayoutDetails) Scan(value interface{}) error {
	b, ok := value.([]byte)
	if !ok {
		if s, ok := value.(string); ok {
			b = []byte(s)
		} else {
			return errors.New("payout details: unsupported column type")
		}
	}
	return json.Unmarshal(b, d)
}

// ValidateFor checks that the declared method's required fields are present.
func (d PayoutDetails) ValidateFor(method PayoutMethod) error {
	switch method {
	case MethodMpesaB2C:
		if d.PhoneNumber == "" {
			return fmt.Errorf("payout method %s requires phone_number", method)
		}
	case MethodBankTransfer:
		if d.BankAccount == "" || d.BankCode == "" {
			return fmt.Errorf("payout method %s requires bank_account and bank_code", method)
		}
	case MethodPayPal:
		if d.Email == "" {
			return fmt.Errorf("payout method %s requires email", method)
		}
	default:
		return fmt.Errorf("unknown payout method %q", method)
	}
	return nil
}

type WithdrawalRequest struct {
	ID            uuid.UUID        `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	OwnerID       uuid.UUID        `gorm:"type:uuid;not null;index" json:"owner_id"`
	Amount        decimal.Decimal  `gorm:"type:numeric(12,2);not null" json:"amount"`
	Currency      string           `gorm:"size:3;not null" json:"currency"`
	PayoutMethod  PayoutMethod     `gorm:"size:20;not null" json:"payout_method"`
	PayoutDetails PayoutDetails    `gorm:"type:jsonb;not null" json:"payout_details"`
	Status        WithdrawalStatus `gorm:"size:20;not null;default:'requested';index" json:"status"`

	ReviewerID *uuid.UUID `gorm:"type:uuid" json:"reviewer_id,omitempty"`
	Reason     *string    `gorm:"type:text" json:"reason,omitempty"`
	GatewayRef *string    `gorm:"size:255" json:"gateway_ref,omitempty"`
	ReceiptURL *string    `gorm:"size:255" json:"receipt_url,omitempty"`

	RetryCount int `gorm:"not null;default:0" json:"retry_count"`

	Owner User `gorm:"foreignkey:OwnerID" json:"owner,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	ReviewedAt  *time.Time `json:"reviewed_at,omitempty"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
	UpdatedAt   time.Time  `json:"-"`
}
