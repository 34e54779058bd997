package database

import (
	"errors"

	"github.com/elimuhub/learning_platform/models"
	"github.com/elimuhub/learning_platform/services"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// LedgerStore is the only writer of wallet balances. The debit is a
// conditional decrement, so a balance can never go negative and two
// concurrent debits can never both spend the same funds.
type LedgerStore struct {
	db *gorm.DB
}

func NewLedgerStore(db *gorm.DB) *LedgerStore {
	return &LedgerStore{db: db}
}

func (s *LedgerStore) Balance(accountID uuid.UUID) (decimal.Decimal, error) {
	var wallet models.Wallet
	if err := s.db.First(&wallet, "account_id = ?", accountID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return decimal.Zero, services.ErrNotFound
		}
		return decimal.Zero, err
	}
	return wallet.Balance, nil
}

func (s *LedgerStore) Debit(accountID uuid.UUID, amount decimal.Decimal) error {
	result := s.db.Model(&models.Wallet{}).
		Where("account_id = ? AND balance >= ?", accountID, amount).
		Update("balance", gorm.Expr("balance - ?", amount))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return services.ErrInsufficientFunds
	}
	return nil
}

func (s *LedgerStore) Credit(accountID uuid.UUID, amount decimal.Decimal) error {
	result := s.db.Model(&models.Wallet{}).
		Where("account_id = ?", accountID).
		Update("balance", gorm.Expr("balance + ?", amount))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return services.ErrNotFound
	}
	return nil
}
