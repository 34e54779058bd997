package services

import (
	"github.com/elimuhub/learning_platform/models"
	"github.com/shopspring/decimal"
)

type Decision string

const (
	DecisionAutoApprove  Decision = "auto_approve"
	DecisionRequireHuman Decision = "require_human"
	DecisionAutoReject   Decision = "auto_reject"
)

// EvaluatePurchase decides whether a child's purchase may proceed without a
// parent. It is a pure function: the caller loads the setting and the spent
// totals, and applies whatever the decision requires afterwards.
//
// No active setting fails safe toward human review.
func EvaluatePurchase(setting *models.PurchaseApprovalSetting, amount, spentToday, spentMonth decimal.Decimal) Decision {
	if setting == nil || !setting.IsActive {
		return DecisionRequireHuman
	}

	if setting.Mode == models.ApprovalModeRealtime {
		return DecisionRequireHuman
	}

	if setting.PerPurchaseLimit != nil && amount.GreaterThan(*setting.PerPurchaseLimit) {
		return DecisionRequireHuman
	}
	if setting.DailyLimit != nil && spentToday.Add(amount).GreaterThan(*setting.DailyLimit) {
		return DecisionRequireHuman
	}
	if setting.MonthlyLimit != nil && spentMonth.Add(amount).GreaterThan(*setting.MonthlyLimit) {
		return DecisionRequireHuman
	}

	return DecisionAutoApprove
}
