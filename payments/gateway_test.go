package payments

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestBackoffDelayDoublesAndCaps(t *testing.T) {
	p := BackoffPolicy{Base: 2 * time.Second, Max: 30 * time.Second, MaxAttempts: 6}

	assert.Equal(t, 2*time.Second, p.Delay(1))
	assert.Equal(t, 4*time.Second, p.Delay(2))
	assert.Equal(t, 8*time.Second, p.Delay(3))
	assert.Equal(t, 16*time.Second, p.Delay(4))
	assert.Equal(t, 30*time.Second, p.Delay(5))
	assert.Equal(t, 30*time.Second, p.Delay(20))
}

func TestMinorUnits(t *testing.T) {
	cases := []struct {
		amount   string
		currency string
		want     int64
	}{
		{"100.00", "KES", 10000},
		{"0.01", "USD", 1},
		{"12.345", "USD", 1235}, // rounds, never truncates
		{"500", "JPY", 500},
		{"1.234", "KWD", 1234},
		{"19.99", "EUR", 1999},
	}
	for _, tc := range cases {
		amount, err := decimal.NewFromString(tc.amount)
		assert.NoError(t, err)
		assert.Equal(t, tc.want, MinorUnits(amount, tc.currency), "%s %s", tc.amount, tc.currency)
	}
}

func TestGatewayErrorClassification(t *testing.T) {
	transient := Transient("503", errors.New("busy"))
	permanent := Permanent("40", errors.New("account closed"))

	assert.True(t, IsTransient(transient))
	assert.False(t, IsPermanent(transient))
	assert.True(t, IsPermanent(permanent))
	assert.False(t, IsTransient(permanent))

	// Wrapped errors keep their classification.
	wrapped := errors.Join(errors.New("context"), transient)
	assert.True(t, IsTransient(wrapped))

	assert.False(t, IsTransient(errors.New("plain")))
	assert.False(t, IsPermanent(nil))
}
