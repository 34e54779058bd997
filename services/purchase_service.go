package services

import (
	"errors"
	"strings"
	"time"

	"github.com/elimuhub/learning_platform/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PurchaseService handles child purchase authorization: evaluate the
// parent's setting, auto-approve within limits, or park the request for a
// parent decision until it expires.
type PurchaseService struct {
	store PurchaseStore
	users UserStore
	now   func() time.Time
}

func NewPurchaseService(store PurchaseStore, users UserStore) *PurchaseService {
	return &PurchaseService{store: store, users: users, now: time.Now}
}

func (s *PurchaseService) UpsertSetting(parentID, childID uuid.UUID, mode string, perPurchase, daily, monthly *decimal.Decimal) (*models.PurchaseApprovalSetting, error) {
	if mode != models.ApprovalModeRealtime && mode != models.ApprovalModeSpendingLimit {
		return nil, validationf("mode must be %s or %s", models.ApprovalModeRealtime, models.ApprovalModeSpendingLimit)
	}
	for _, limit := range []*decimal.Decimal{perPurchase, daily, monthly} {
		if limit != nil && limit.LessThanOrEqual(decimal.Zero) {
			return nil, validationf("limits must be greater than zero")
		}
	}

	setting := &models.PurchaseApprovalSetting{
		ParentID:         parentID,
		ChildID:          childID,
		Mode:             mode,
		PerPurchaseLimit: perPurchase,
		DailyLimit:       daily,
		MonthlyLimit:     monthly,
		IsActive:         true,
	}
	if err := s.store.UpsertSetting(setting); err != nil {
		return nil, err
	}
	return setting, nil
}

// CreateRequest runs the approval policy and persists the outcome. On
// auto-approve the request is stored already approved and the child's
// spending counters are bumped atomically with it, so a second concurrent
// purchase sees the updated totals.
func (s *PurchaseService) CreateRequest(childID uuid.UUID, purchaseType, itemRef string, amount decimal.Decimal, currency string, context *string) (*models.PurchaseApprovalRequest, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, validationf("amount must be greater than zero")
	}
	if strings.TrimSpace(itemRef) == "" {
		return nil, validationf("item reference is required")
	}

	setting, err := s.store.ActiveSettingForChild(childID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	now := s.now()
	spentToday, spentMonth, err := s.store.SpentTotals(childID, now)
	if err != nil {
		return nil, err
	}

	decision := EvaluatePurchase(setting, amount, spentToday, spentMonth)

	// Without a setting the request must still land in a real parent's
	// queue, otherwise it can only sit until the reaper expires it.
	var parentID uuid.UUID
	if setting != nil {
		parentID = setting.ParentID
	} else {
		child, err := s.users.Get(childID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		if child != nil && child.ParentID != nil {
			parentID = *child.ParentID
		}
	}

	req := &models.PurchaseApprovalRequest{
		ChildID:      childID,
		ParentID:     parentID,
		PurchaseType: purchaseType,
		ItemRef:      itemRef,
		Amount:       amount,
		Currency:     strings.ToUpper(currency),
		Status:       models.PurchasePending,
		Context:      context,
		ExpiresAt:    now.Add(models.PurchaseApprovalTTL),
	}
	if err := s.store.CreateRequest(req); err != nil {
		return nil, err
	}

	switch decision {
	case DecisionAutoApprove:
		if _, err := s.store.Decide(req.ID, models.PurchaseApproved, nil, nil); err != nil {
			return nil, err
		}
		return s.store.GetRequest(req.ID)
	case DecisionAutoReject:
		reason := "rejected by policy"
		if _, err := s.store.Decide(req.ID, models.PurchaseRejected, nil, &reason); err != nil {
			return nil, err
		}
		return s.store.GetRequest(req.ID)
	default:
		return req, nil
	}
}

func (s *PurchaseService) GetRequest(id uuid.UUID) (*models.PurchaseApprovalRequest, error) {
	return s.store.GetRequest(id)
}

func (s *PurchaseService) PendingForParent(parentID uuid.UUID, page, limit int) ([]models.PurchaseApprovalRequest, int64, error) {
	return s.store.PendingForParent(parentID, page, limit)
}

// Decide records the parent's verdict. It uses the same compare-and-swap as
// the expiry reaper, so a request expired a moment earlier yields
// ErrInvalidState instead of a second terminal state.
func (s *PurchaseService) Decide(id uuid.UUID, parentID uuid.UUID, approve bool, reason string) (*models.PurchaseApprovalRequest, error) {
	req, err := s.store.GetRequest(id)
	if err != nil {
		return nil, err
	}
	if req.ParentID != parentID {
		return nil, validationf("request does not belong to this parent")
	}

	to := models.PurchaseApproved
	var reasonPtr *string
	if !approve {
		reason = strings.TrimSpace(reason)
		if reason == "" {
			return nil, validationf("a rejection reason is required")
		}
		to = models.PurchaseRejected
		reasonPtr = &reason
	}

	won, err := s.store.Decide(id, to, &parentID, reasonPtr)
	if err != nil {
		return nil, err
	}
	if !won {
		return nil, ErrInvalidState
	}

	return s.store.GetRequest(id)
}
