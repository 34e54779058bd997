package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithdrawalTransitions(t *testing.T) {
	assert.True(t, WithdrawalRequested.CanTransitionTo(WithdrawalApproved))
	assert.True(t, WithdrawalRequested.CanTransitionTo(WithdrawalRejected))
	assert.True(t, WithdrawalApproved.CanTransitionTo(WithdrawalProcessing))
	assert.True(t, WithdrawalProcessing.CanTransitionTo(WithdrawalCompleted))
	assert.True(t, WithdrawalProcessing.CanTransitionTo(WithdrawalFailed))
	assert.True(t, WithdrawalFailed.CanTransitionTo(WithdrawalProcessing))
	assert.True(t, WithdrawalFailed.CanTransitionTo(WithdrawalRejected))

	// No backward moves and no exits from terminal states.
	assert.False(t, WithdrawalApproved.CanTransitionTo(WithdrawalRequested))
	assert.False(t, WithdrawalProcessing.CanTransitionTo(WithdrawalApproved))
	assert.False(t, WithdrawalCompleted.CanTransitionTo(WithdrawalProcessing))
	assert.False(t, WithdrawalRejected.CanTransitionTo(WithdrawalRequested))
	assert.False(t, WithdrawalRequested.CanTransitionTo(WithdrawalCompleted))
}

func TestWithdrawalTerminalStates(t *testing.T) {
	assert.True(t, WithdrawalCompleted.IsTerminal())
	assert.True(t, WithdrawalRejected.IsTerminal())
	assert.False(t, WithdrawalRequested.IsTerminal())
	assert.False(t, WithdrawalApproved.IsTerminal())
	assert.False(t, WithdrawalProcessing.IsTerminal())
	assert.False(t, WithdrawalFailed.IsTerminal())
}

func TestPayoutDetailsValidateFor(t *testing.T) {
	assert.NoError(t, PayoutDetails{PhoneNumber: "0712345678"}.ValidateFor(MethodMpesaB2C))
	assert.Error(t, PayoutDetails{}.ValidateFor(MethodMpesaB2C))

	assert.NoError(t, PayoutDetails{BankAccount: "110044", BankCode: "01"}.ValidateFor(MethodBankTransfer))
	assert.Error(t, PayoutDetails{BankAccount: "110044"}.ValidateFor(MethodBankTransfer))

	assert.NoError(t, PayoutDetails{Email: "seller@example.com"}.ValidateFor(MethodPayPal))
	assert.Error(t, PayoutDetails{}.ValidateFor(MethodPayPal))

	assert.Error(t, PayoutDetails{}.ValidateFor(PayoutMethod("cheque")))
}
