package services

import (
	"testing"

	"github.com/elimuhub/learning_platform/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func limitSetting(perPurchase, daily, monthly *decimal.Decimal) *models.PurchaseApprovalSetting {
	return &models.PurchaseApprovalSetting{
		Mode:             models.ApprovalModeSpendingLimit,
		PerPurchaseLimit: perPurchase,
		DailyLimit:       daily,
		MonthlyLimit:     monthly,
		IsActive:         true,
	}
}

func TestEvaluatePurchaseNoSettingRequiresHuman(t *testing.T) {
	assert.Equal(t, DecisionRequireHuman, EvaluatePurchase(nil, dec("5.00"), decimal.Zero, decimal.Zero))

	inactive := limitSetting(nil, decPtr("100.00"), nil)
	inactive.IsActive = false
	assert.Equal(t, DecisionRequireHuman, EvaluatePurchase(inactive, dec("5.00"), decimal.Zero, decimal.Zero))
}

func TestEvaluatePurchaseRealtimeAlwaysRequiresHuman(t *testing.T) {
	setting := &models.PurchaseApprovalSetting{Mode: models.ApprovalModeRealtime, IsActive: true}
	assert.Equal(t, DecisionRequireHuman, EvaluatePurchase(setting, dec("0.01"), decimal.Zero, decimal.Zero))
}

func TestEvaluatePurchaseWithinAllLimitsAutoApproves(t *testing.T) {
	setting := limitSetting(decPtr("20.00"), decPtr("50.00"), decPtr("200.00"))
	got := EvaluatePurchase(setting, dec("15.00"), dec("30.00"), dec("100.00"))
	assert.Equal(t, DecisionAutoApprove, got)
}

func TestEvaluatePurchasePerPurchaseLimitExceeded(t *testing.T) {
	setting := limitSetting(decPtr("10.00"), nil, nil)
	assert.Equal(t, DecisionRequireHuman, EvaluatePurchase(setting, dec("10.01"), decimal.Zero, decimal.Zero))
	assert.Equal(t, DecisionAutoApprove, EvaluatePurchase(setting, dec("10.00"), decimal.Zero, decimal.Zero))
}

func TestEvaluatePurchaseDailyLimitCountsProjectedSpend(t *testing.T) {
	setting := limitSetting(nil, decPtr("50.00"), nil)

	// 45 spent + 5 requested lands exactly on the limit.
	assert.Equal(t, DecisionAutoApprove, EvaluatePurchase(setting, dec("5.00"), dec("45.00"), decimal.Zero))
	// One cent more tips it over.
	assert.Equal(t, DecisionRequireHuman, EvaluatePurchase(setting, dec("5.01"), dec("45.00"), decimal.Zero))
}

func TestEvaluatePurchaseMonthlyLimitExceeded(t *testing.T) {
	setting := limitSetting(nil, nil, decPtr("200.00"))
	assert.Equal(t, DecisionRequireHuman, EvaluatePurchase(setting, dec("10.00"), decimal.Zero, dec("195.00")))
}

func TestEvaluatePurchaseNilLimitsAreUnbounded(t *testing.T) {
	setting := limitSetting(nil, nil, nil)
	got := EvaluatePurchase(setting, dec("99999.00"), dec("99999.00"), dec("99999.00"))
	assert.Equal(t, DecisionAutoApprove, got)
}
