package database

import (
	"errors"
	"time"

	"github.com/elimuhub/learning_platform/models"
	"github.com/elimuhub/learning_platform/services"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PurchaseStore struct {
	db *gorm.DB
}

func NewPurchaseStore(db *gorm.DB) *PurchaseStore {
	return &PurchaseStore{db: db}
}

func (s *PurchaseStore) ActiveSetting(parentID, childID uuid.UUID) (*models.PurchaseApprovalSetting, error) {
	var setting models.PurchaseApprovalSetting
	err := s.db.Where("parent_id = ? AND child_id = ? AND is_active = ?", parentID, childID, true).
		First(&setting).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, services.ErrNotFound
		}
		return nil, err
	}
	return &setting, nil
}

func (s *PurchaseStore) ActiveSettingForChild(childID uuid.UUID) (*models.PurchaseApprovalSetting, error) {
	var setting models.PurchaseApprovalSetting
	err := s.db.Where("child_id = ? AND is_active = ?", childID, true).
		First(&setting).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, services.ErrNotFound
		}
		return nil, err
	}
	return &setting, nil
}

// UpsertSetting deactivates any previous setting for the pair and inserts
// the new one, keeping the at-most-one-active invariant.
func (s *PurchaseStore) UpsertSetting(setting *models.PurchaseApprovalSetting) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.PurchaseApprovalSetting{}).
			Where("parent_id = ? AND child_id = ? AND is_active = ?", setting.ParentID, setting.ChildID, true).
			Update("is_active", false).Error; err != nil {
			return err
		}
		return tx.Create(setting).Error
	})
}

func (s *PurchaseStore) SpentTotals(childID uuid.UUID, now time.Time) (decimal.Decimal, decimal.Decimal, error) {
	day := decimal.Zero
	month := decimal.Zero

	var counters []models.SpendingCounter
	err := s.db.Where(
		"child_id = ? AND ((period_kind = ? AND period_key = ?) OR (period_kind = ? AND period_key = ?))",
		childID, models.PeriodDay, models.DayKey(now), models.PeriodMonth, models.MonthKey(now),
	).Find(&counters).Error
	if err != nil {
		return day, month, err
	}

	for _, c := range counters {
		switch c.PeriodKind {
		case models.PeriodDay:
			day = c.Consumed
		case models.PeriodMonth:
			month = c.Consumed
		}
	}
	return day, month, nil
}

func (s *PurchaseStore) CreateRequest(req *models.PurchaseApprovalRequest) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(req).Error; err != nil {
			return err
		}
		return recordAudit(tx, models.AuditKindPurchase, req.ID, "", string(models.PurchasePending), &req.ChildID, nil)
	})
}

func (s *PurchaseStore) GetRequest(id uuid.UUID) (*models.PurchaseApprovalRequest, error) {
	var req models.PurchaseApprovalRequest
	if err := s.db.First(&req, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, services.ErrNotFound
		}
		return nil, err
	}
	return &req, nil
}

func (s *PurchaseStore) PendingForParent(parentID uuid.UUID, page, limit int) ([]models.PurchaseApprovalRequest, int64, error) {
	var requests []models.PurchaseApprovalRequest
	var total int64

	query := s.db.Model(&models.PurchaseApprovalRequest{}).
		Where("parent_id = ? AND status = ?", parentID, models.PurchasePending)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := query.Order("created_at asc").
		Offset((page - 1) * limit).Limit(limit).
		Find(&requests).Error
	return requests, total, err
}

// Decide is the pending → approved/rejected compare-and-swap. An approval
// bumps the child's day and month counters in the same transaction, which
// closes the window where two simultaneous purchases could both pass a
// limit check.
func (s *PurchaseStore) Decide(id uuid.UUID, to models.PurchaseStatus, actorID *uuid.UUID, reason *string) (bool, error) {
	won := false
	err := s.db.Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		updates := map[string]interface{}{
			"status":     to,
			"decided_at": now,
		}
		if reason != nil {
			updates["reason"] = *reason
		}

		result := tx.Model(&models.PurchaseApprovalRequest{}).
			Where("id = ? AND status = ?", id, models.PurchasePending).
			Updates(updates)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}
		won = true

		if to == models.PurchaseApproved {
			var req models.PurchaseApprovalRequest
			if err := tx.First(&req, "id = ?", id).Error; err != nil {
				return err
			}
			if err := bumpCounter(tx, req.ChildID, models.PeriodDay, models.DayKey(now), req.Amount); err != nil {
				return err
			}
			if err := bumpCounter(tx, req.ChildID, models.PeriodMonth, models.MonthKey(now), req.Amount); err != nil {
				return err
			}
		}

		return recordAudit(tx, models.AuditKindPurchase, id, string(models.PurchasePending), string(to), actorID, reason)
	})
	return won, err
}

func bumpCounter(tx *gorm.DB, childID uuid.UUID, kind, key string, amount decimal.Decimal) error {
	counter := models.SpendingCounter{
		ChildID:    childID,
		PeriodKind: kind,
		PeriodKey:  key,
		Consumed:   amount,
	}
	return tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "child_id"}, {Name: "period_kind"}, {Name: "period_key"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"consumed": gorm.Expr("spending_counters.consumed + ?", amount),
		}),
	}).Create(&counter).Error
}

func (s *PurchaseStore) DueForExpiry(now time.Time, limit int) ([]models.PurchaseApprovalRequest, error) {
	var requests []models.PurchaseApprovalRequest
	err := s.db.Where("status = ? AND expires_at < ?", models.PurchasePending, now).
		Order("expires_at asc").
		Limit(limit).
		Find(&requests).Error
	return requests, err
}

// Expire uses the same conditional swap as Decide, so a request decided a
// moment before the sweep is simply skipped.
func (s *PurchaseStore) Expire(id uuid.UUID) (bool, error) {
	won := false
	err := s.db.Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		reason := "expiry"
		result := tx.Model(&models.PurchaseApprovalRequest{}).
			Where("id = ? AND status = ?", id, models.PurchasePending).
			Updates(map[string]interface{}{
				"status":     models.PurchaseExpired,
				"reason":     reason,
				"decided_at": now,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}
		won = true
		return recordAudit(tx, models.AuditKindPurchase, id, string(models.PurchasePending), string(models.PurchaseExpired), nil, &reason)
	})
	return won, err
}
