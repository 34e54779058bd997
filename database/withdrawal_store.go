package database

import (
	"errors"
	"time"

	"github.com/elimuhub/learning_platform/models"
	"github.com/elimuhub/learning_platform/services"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type WithdrawalStore struct {
	db *gorm.DB
}

func NewWithdrawalStore(db *gorm.DB) *WithdrawalStore {
	return &WithdrawalStore{db: db}
}

func (s *WithdrawalStore) Create(req *models.WithdrawalRequest) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(req).Error; err != nil {
			return err
		}
		return recordAudit(tx, models.AuditKindWithdrawal, req.ID, "", string(models.WithdrawalRequested), &req.OwnerID, nil)
	})
}

func (s *WithdrawalStore) Get(id uuid.UUID) (*models.WithdrawalRequest, error) {
	var req models.WithdrawalRequest
	if err := s.db.First(&req, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, services.ErrNotFound
		}
		return nil, err
	}
	return &req, nil
}

func (s *WithdrawalStore) ListByOwner(ownerID uuid.UUID, page, limit int) ([]models.WithdrawalRequest, int64, error) {
	var requests []models.WithdrawalRequest
	var total int64

	query := s.db.Model(&models.WithdrawalRequest{}).Where("owner_id = ?", ownerID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := query.Order("created_at desc").
		Offset((page - 1) * limit).Limit(limit).
		Find(&requests).Error
	return requests, total, err
}

// Queue orders oldest first so the longest-waiting request is reviewed
// next.
func (s *WithdrawalStore) Queue(status models.WithdrawalStatus, page, limit int) ([]models.WithdrawalRequest, int64, error) {
	var requests []models.WithdrawalRequest
	var total int64

	query := s.db.Model(&models.WithdrawalRequest{}).Where("status = ?", status)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := query.Preload("Owner").Order("created_at asc").
		Offset((page - 1) * limit).Limit(limit).
		Find(&requests).Error
	return requests, total, err
}

// Decide is the requested → approved/rejected compare-and-swap. The guard
// on the current status means exactly one of two racing decisions wins; the
// loser's update touches zero rows.
func (s *WithdrawalStore) Decide(id uuid.UUID, to models.WithdrawalStatus, reviewerID uuid.UUID, reason *string) (bool, error) {
	if !models.WithdrawalRequested.CanTransitionTo(to) {
		return false, services.ErrInvalidState
	}

	won := false
	err := s.db.Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		updates := map[string]interface{}{
			"status":      to,
			"reviewer_id": reviewerID,
			"reviewed_at": now,
		}
		if reason != nil {
			updates["reason"] = *reason
		}

		result := tx.Model(&models.WithdrawalRequest{}).
			Where("id = ? AND status = ?", id, models.WithdrawalRequested).
			Updates(updates)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}
		won = true

		if err := recordAudit(tx, models.AuditKindWithdrawal, id, string(models.WithdrawalRequested), string(to), &reviewerID, reason); err != nil {
			return err
		}

		if to == models.WithdrawalApproved {
			var req models.WithdrawalRequest
			if err := tx.First(&req, "id = ?", id).Error; err != nil {
				return err
			}
			item := models.PayoutQueueItem{
				WithdrawalID: req.ID,
				RecipientID:  req.OwnerID,
				Amount:       req.Amount,
				Currency:     req.Currency,
				PayoutMethod: req.PayoutMethod,
				Status:       models.PayoutItemPending,
			}
			if err := tx.Create(&item).Error; err != nil {
				return err
			}
		}
		return nil
	})
	return won, err
}

// Reopen swaps failed → processing for a manual retry, bounded by the retry
// budget, and resets the queue item so the next sweep picks it up.
func (s *WithdrawalStore) Reopen(id uuid.UUID, reviewerID uuid.UUID, maxRetries int) (bool, error) {
	won := false
	err := s.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.WithdrawalRequest{}).
			Where("id = ? AND status = ? AND retry_count < ?", id, models.WithdrawalFailed, maxRetries).
			Updates(map[string]interface{}{
				"status":      models.WithdrawalProcessing,
				"retry_count": gorm.Expr("retry_count + 1"),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}
		won = true

		if err := tx.Model(&models.PayoutQueueItem{}).
			Where("withdrawal_id = ? AND status = ?", id, models.PayoutItemFailed).
			Updates(map[string]interface{}{
				"status":         models.PayoutItemPending,
				"failure_reason": nil,
			}).Error; err != nil {
			return err
		}

		return recordAudit(tx, models.AuditKindWithdrawal, id, string(models.WithdrawalFailed), string(models.WithdrawalProcessing), &reviewerID, nil)
	})
	return won, err
}

// Close swaps failed → rejected, the admin's terminal escape hatch for a
// settlement that keeps failing.
func (s *WithdrawalStore) Close(id uuid.UUID, reviewerID uuid.UUID, reason string) (bool, error) {
	won := false
	err := s.db.Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		result := tx.Model(&models.WithdrawalRequest{}).
			Where("id = ? AND status = ?", id, models.WithdrawalFailed).
			Updates(map[string]interface{}{
				"status":      models.WithdrawalRejected,
				"reviewer_id": reviewerID,
				"reason":      reason,
				"reviewed_at": now,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}
		won = true
		return recordAudit(tx, models.AuditKindWithdrawal, id, string(models.WithdrawalFailed), string(models.WithdrawalRejected), &reviewerID, &reason)
	})
	return won, err
}

func (s *WithdrawalStore) SetReceiptURL(id uuid.UUID, url string) error {
	return s.db.Model(&models.WithdrawalRequest{}).
		Where("id = ?", id).
		Update("receipt_url", url).Error
}

func recordAudit(tx *gorm.DB, kind string, requestID uuid.UUID, from, to string, actorID *uuid.UUID, reason *string) error {
	event := models.AuditEvent{
		RequestKind: kind,
		RequestID:   requestID,
		FromStatus:  from,
		ToStatus:    to,
		ActorID:     actorID,
		Reason:      reason,
	}
	return tx.Create(&event).Error
}
