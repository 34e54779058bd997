package database

import (
	"errors"
	"time"

	"github.com/elimuhub/learning_platform/models"
	"github.com/elimuhub/learning_platform/services"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PayoutStore struct {
	db *gorm.DB
}

func NewPayoutStore(db *gorm.DB) *PayoutStore {
	return &PayoutStore{db: db}
}

func (s *PayoutStore) NextPending(limit int) ([]models.PayoutQueueItem, error) {
	var items []models.PayoutQueueItem
	err := s.db.Preload("Withdrawal").
		Where("status = ?", models.PayoutItemPending).
		Order("created_at asc").
		Limit(limit).
		Find(&items).Error
	return items, err
}

func (s *PayoutStore) Get(withdrawalID uuid.UUID) (*models.PayoutQueueItem, error) {
	var item models.PayoutQueueItem
	if err := s.db.Preload("Withdrawal").First(&item, "withdrawal_id = ?", withdrawalID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, services.ErrNotFound
		}
		return nil, err
	}
	return &item, nil
}

// Claim swaps the item pending → processing; the guard means only one
// worker wins a contested item. The withdrawal follows approved →
// processing when this is its first dispatch; on a manual retry it is
// already processing and the second update touches zero rows, which is
// fine.
func (s *PayoutStore) Claim(itemID uuid.UUID) (bool, error) {
	won := false
	err := s.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.PayoutQueueItem{}).
			Where("id = ? AND status = ?", itemID, models.PayoutItemPending).
			Update("status", models.PayoutItemProcessing)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}
		won = true

		var item models.PayoutQueueItem
		if err := tx.First(&item, "id = ?", itemID).Error; err != nil {
			return err
		}

		moved := tx.Model(&models.WithdrawalRequest{}).
			Where("id = ? AND status = ?", item.WithdrawalID, models.WithdrawalApproved).
			Update("status", models.WithdrawalProcessing)
		if moved.Error != nil {
			return moved.Error
		}
		if moved.RowsAffected > 0 {
			return recordAudit(tx, models.AuditKindWithdrawal, item.WithdrawalID, string(models.WithdrawalApproved), string(models.WithdrawalProcessing), nil, nil)
		}
		return nil
	})
	return won, err
}

func (s *PayoutStore) RecordAttempt(itemID uuid.UUID) error {
	return s.db.Model(&models.PayoutQueueItem{}).
		Where("id = ?", itemID).
		Update("attempts", gorm.Expr("attempts + 1")).Error
}

// Complete marks the item and its withdrawal completed. Reconciliation may
// complete an item that already sits in failed, which is why the guard
// accepts both machine-owned states.
func (s *PayoutStore) Complete(itemID uuid.UUID, providerRef string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		now := time.Now()

		var item models.PayoutQueueItem
		if err := tx.First(&item, "id = ?", itemID).Error; err != nil {
			return err
		}

		result := tx.Model(&models.PayoutQueueItem{}).
			Where("id = ? AND status IN ?", itemID, []models.PayoutItemStatus{models.PayoutItemProcessing, models.PayoutItemFailed}).
			Updates(map[string]interface{}{
				"status":         models.PayoutItemCompleted,
				"gateway_ref":    providerRef,
				"failure_reason": nil,
				"processed_at":   now,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return services.ErrInvalidState
		}

		// Reconciliation completes from failed, the synchronous path from
		// processing: audit whichever status the withdrawal actually held.
		var withdrawal models.WithdrawalRequest
		if err := tx.First(&withdrawal, "id = ?", item.WithdrawalID).Error; err != nil {
			return err
		}
		fromStatus := withdrawal.Status

		moved := tx.Model(&models.WithdrawalRequest{}).
			Where("id = ? AND status IN ?", item.WithdrawalID, []models.WithdrawalStatus{models.WithdrawalProcessing, models.WithdrawalFailed}).
			Updates(map[string]interface{}{
				"status":       models.WithdrawalCompleted,
				"gateway_ref":  providerRef,
				"processed_at": now,
			})
		if moved.Error != nil {
			return moved.Error
		}
		if moved.RowsAffected == 0 {
			return services.ErrInvalidState
		}

		return recordAudit(tx, models.AuditKindWithdrawal, item.WithdrawalID, string(fromStatus), string(models.WithdrawalCompleted), nil, nil)
	})
}

func (s *PayoutStore) Fail(itemID uuid.UUID, reason string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		now := time.Now()

		var item models.PayoutQueueItem
		if err := tx.First(&item, "id = ?", itemID).Error; err != nil {
			return err
		}

		result := tx.Model(&models.PayoutQueueItem{}).
			Where("id = ? AND status = ?", itemID, models.PayoutItemProcessing).
			Updates(map[string]interface{}{
				"status":         models.PayoutItemFailed,
				"failure_reason": reason,
				"processed_at":   now,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return services.ErrInvalidState
		}

		moved := tx.Model(&models.WithdrawalRequest{}).
			Where("id = ? AND status = ?", item.WithdrawalID, models.WithdrawalProcessing).
			Updates(map[string]interface{}{
				"status":       models.WithdrawalFailed,
				"reason":       reason,
				"processed_at": now,
			})
		if moved.Error != nil {
			return moved.Error
		}
		if moved.RowsAffected == 0 {
			return services.ErrInvalidState
		}

		return recordAudit(tx, models.AuditKindWithdrawal, item.WithdrawalID, string(models.WithdrawalProcessing), string(models.WithdrawalFailed), nil, &reason)
	})
}

func (s *PayoutStore) RecentTimeouts(since time.Time, limit int) ([]models.PayoutQueueItem, error) {
	var items []models.PayoutQueueItem
	err := s.db.Preload("Withdrawal").
		Where("status = ? AND failure_reason = ? AND processed_at >= ?", models.PayoutItemFailed, services.ReasonGatewayTimeout, since).
		Order("processed_at asc").
		Limit(limit).
		Find(&items).Error
	return items, err
}
