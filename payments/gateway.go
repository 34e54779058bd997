package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/elimuhub/learning_platform/models"
	"github.com/shopspring/decimal"
)

type ErrorKind string

const (
	ErrorTransient ErrorKind = "transient"
	ErrorPermanent ErrorKind = "permanent"
)

// GatewayError classifies a rail failure as retryable or terminal. The
// dispatcher only ever retries transient errors; a permanent error means
// the rail rejected the transfer definitively.
type GatewayError struct {
	Kind ErrorKind
	Code string
	Err  error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway error (%s, code=%s): %v", e.Kind, e.Code, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }

func Transient(code string, err error) *GatewayError {
	return &GatewayError{Kind: ErrorTransient, Code: code, Err: err}
}

func Permanent(code string, err error) *GatewayError {
	return &GatewayError{Kind: ErrorPermanent, Code: code, Err: err}
}

func IsTransient(err error) bool {
	var ge *GatewayError
	return errors.As(err, &ge) && ge.Kind == ErrorTransient
}

func IsPermanent(err error) bool {
	var ge *GatewayError
	return errors.As(err, &ge) && ge.Kind == ErrorPermanent
}

// ErrTransferNotFound is returned by LookupTransfer when the rail has no
// record for the reference, meaning the transfer was never executed.
var ErrTransferNotFound = errors.New("transfer not found on gateway")

// TransferRequest carries everything a rail needs to move money once.
// Amounts are integer minor units; the currency is always explicit.
// Reference is the idempotency key (the withdrawal request id) and must be
// passed unchanged on every retry of the same transfer.
type TransferRequest struct {
	Reference   string
	AmountMinor int64
	Currency    string
	Details     models.PayoutDetails
}

type TransferResult struct {
	Reference   string
	ProviderRef string
}

// Gateway is the only surface that performs network I/O to a payment rail.
// Implementations must make Transfer idempotent on Reference, either via a
// native idempotency key or a pre-flight LookupTransfer with the same key.
type Gateway interface {
	Name() string
	Transfer(ctx context.Context, req TransferRequest) (*TransferResult, error)
	LookupTransfer(ctx context.Context, reference string) (*TransferResult, error)
}

// BackoffPolicy is shared by every rail so all adapters get identical
// retry semantics.
type BackoffPolicy struct {
	Base        time.Duration
	Max         time.Duration
	MaxAttempts int
}

func (p BackoffPolicy) Delay(attempt int) time.Duration {
	d := p.Base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= p.Max {
			return p.Max
		}
	}
	if d > p.Max {
		return p.Max
	}
	return d
}

var DefaultBackoff = BackoffPolicy{
	Base:        2 * time.Second,
	Max:         30 * time.Second,
	MaxAttempts: 3,
}

// minorUnitExponents lists currencies whose minor unit is not 1/100.
var minorUnitExponents = map[string]int32{
	"JPY": 0,
	"KWD": 3,
	"BHD": 3,
	"OMR": 3,
}

// MinorUnits converts a decimal amount to the integer minor units the rails
// expect, avoiding float drift entirely.
func MinorUnits(amount decimal.Decimal, currency string) int64 {
	exp, ok := minorUnitExponents[currency]
	if !ok {
		exp = 2
	}
	return amount.Shift(exp).Round(0).IntPart()
}
