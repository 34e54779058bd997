package services

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/elimuhub/learning_platform/models"
	"github.com/elimuhub/learning_platform/payments"
	"github.com/google/uuid"
)

const (
	ReasonInsufficientFunds = "insufficient_funds"
	ReasonGatewayTimeout    = "gateway_timeout"
)

// Dispatcher converts approved withdrawals into exactly one real-world
// transfer each. The withdrawal id is the idempotency key end to end: the
// queue item carries it, the adapters pass it to the rail, and a retried
// item can therefore never double-send.
type Dispatcher struct {
	payouts  PayoutStore
	ledger   LedgerStore
	gateways map[models.PayoutMethod]payments.Gateway
	backoff  payments.BackoffPolicy
	timeout  time.Duration

	// OnCompleted runs after a successful settlement (receipt, email, feed).
	OnCompleted func(item *models.PayoutQueueItem, providerRef string)
	// OnFailed runs after a terminal settlement failure.
	OnFailed func(item *models.PayoutQueueItem, reason string)

	sleep func(time.Duration)
}

func NewDispatcher(payouts PayoutStore, ledger LedgerStore, gateways map[models.PayoutMethod]payments.Gateway, backoff payments.BackoffPolicy) *Dispatcher {
	return &Dispatcher{
		payouts:  payouts,
		ledger:   ledger,
		gateways: gateways,
		backoff:  backoff,
		timeout:  30 * time.Second,
		sleep:    time.Sleep,
	}
}

// DispatchPending claims and settles up to limit queue items. It is called
// from the cron sweep and immediately after an approval.
func (d *Dispatcher) DispatchPending(ctx context.Context, limit int) (int, error) {
	items, err := d.payouts.NextPending(limit)
	if err != nil {
		return 0, err
	}

	processed := 0
	for i := range items {
		if ctx.Err() != nil {
			return processed, ctx.Err()
		}
		if err := d.Dispatch(ctx, &items[i]); err != nil {
			log.Printf("Error dispatching payout item %s: %v", items[i].ID, err)
			continue
		}
		processed++
	}
	return processed, nil
}

// Dispatch drives one queue item to a terminal outcome. The authoritative
// wallet debit happens here, under the ledger's conditional decrement,
// immediately before the rail call; it is credited back if the transfer
// fails for good.
func (d *Dispatcher) Dispatch(ctx context.Context, item *models.PayoutQueueItem) error {
	won, err := d.payouts.Claim(item.ID)
	if err != nil {
		return err
	}
	if !won {
		// Another worker owns it.
		return nil
	}

	gateway, ok := d.gateways[item.PayoutMethod]
	if !ok {
		return d.fail(item, "no gateway configured for "+string(item.PayoutMethod), false)
	}

	if err := d.ledger.Debit(item.RecipientID, item.Amount); err != nil {
		if errors.Is(err, ErrInsufficientFunds) {
			return d.fail(item, ReasonInsufficientFunds, false)
		}
		return err
	}

	req := payments.TransferRequest{
		Reference:   item.WithdrawalID.String(),
		AmountMinor: payments.MinorUnits(item.Amount, item.Currency),
		Currency:    item.Currency,
		Details:     item.Withdrawal.PayoutDetails,
	}

	result, err := d.transferWithRetry(ctx, gateway, req, item)
	if err != nil {
		if payments.IsPermanent(err) {
			return d.fail(item, err.Error(), true)
		}
		// Transient budget exhausted. The refund is provisional: the
		// reconciliation sweep re-checks the rail before it stands.
		return d.fail(item, ReasonGatewayTimeout, true)
	}

	if err := d.payouts.Complete(item.ID, result.ProviderRef); err != nil {
		return err
	}

	log.Printf("✅ Settled withdrawal %s via %s (ref %s)", item.WithdrawalID, gateway.Name(), result.ProviderRef)
	if d.OnCompleted != nil {
		d.OnCompleted(item, result.ProviderRef)
	}
	return nil
}

func (d *Dispatcher) transferWithRetry(ctx context.Context, gateway payments.Gateway, req payments.TransferRequest, item *models.PayoutQueueItem) (*payments.TransferResult, error) {
	var lastErr error
	for attempt := 1; attempt <= d.backoff.MaxAttempts; attempt++ {
		if err := d.payouts.RecordAttempt(item.ID); err != nil {
			return nil, err
		}

		callCtx, cancel := context.WithTimeout(ctx, d.timeout)
		result, err := gateway.Transfer(callCtx, req)
		cancel()

		if err == nil {
			return result, nil
		}
		if payments.IsPermanent(err) {
			return nil, err
		}

		lastErr = err
		log.Printf("Transient gateway error for %s (attempt %d/%d): %v", req.Reference, attempt, d.backoff.MaxAttempts, err)
		if attempt < d.backoff.MaxAttempts {
			d.sleep(d.backoff.Delay(attempt))
		}
	}
	return nil, lastErr
}

// fail records the terminal failure; refund reverses the authoritative
// debit when one was taken.
func (d *Dispatcher) fail(item *models.PayoutQueueItem, reason string, refund bool) error {
	if refund {
		if err := d.ledger.Credit(item.RecipientID, item.Amount); err != nil {
			return err
		}
	}
	if err := d.payouts.Fail(item.ID, reason); err != nil {
		return err
	}
	if d.OnFailed != nil {
		d.OnFailed(item, reason)
	}
	return nil
}

// DispatchByWithdrawal settles the queue item belonging to one withdrawal,
// used to kick settlement right after an approval instead of waiting for
// the sweep.
func (d *Dispatcher) DispatchByWithdrawal(ctx context.Context, withdrawalID uuid.UUID) error {
	item, err := d.payouts.Get(withdrawalID)
	if err != nil {
		return err
	}
	return d.Dispatch(ctx, item)
}

// ConfirmSettlement applies a rail's asynchronous success callback. Already
// completed items are acknowledged silently; the webhook layer dedupes on
// event id before calling here.
func (d *Dispatcher) ConfirmSettlement(withdrawalID uuid.UUID, providerRef string) error {
	item, err := d.payouts.Get(withdrawalID)
	if err != nil {
		return err
	}
	if item.Status == models.PayoutItemCompleted {
		return nil
	}
	if item.Status == models.PayoutItemFailed {
		// The rail executed a transfer we had provisionally refunded.
		if err := d.ledger.Debit(item.RecipientID, item.Amount); err != nil {
			return err
		}
	}
	if err := d.payouts.Complete(item.ID, providerRef); err != nil {
		return err
	}
	if d.OnCompleted != nil {
		d.OnCompleted(item, providerRef)
	}
	return nil
}

// FailSettlement applies a rail's asynchronous failure callback.
func (d *Dispatcher) FailSettlement(withdrawalID uuid.UUID, reason string) error {
	item, err := d.payouts.Get(withdrawalID)
	if err != nil {
		return err
	}
	switch item.Status {
	case models.PayoutItemFailed:
		return nil
	case models.PayoutItemCompleted:
		// The rail reversed a transfer we already recorded as settled.
		// That cannot be resolved automatically.
		log.Printf("🔥 CRITICAL: rail reported failure for completed settlement %s: %s", withdrawalID, reason)
		return nil
	}
	return d.fail(item, reason, true)
}

// Reconcile re-checks recently timed-out settlements against the rail. If
// the rail did execute the transfer, the provisional refund is reversed and
// the withdrawal is completed with the recovered reference.
func (d *Dispatcher) Reconcile(ctx context.Context, since time.Time, limit int) (int, error) {
	items, err := d.payouts.RecentTimeouts(since, limit)
	if err != nil {
		return 0, err
	}

	recovered := 0
	for i := range items {
		item := &items[i]
		if ctx.Err() != nil {
			return recovered, ctx.Err()
		}

		gateway, ok := d.gateways[item.PayoutMethod]
		if !ok {
			continue
		}

		callCtx, cancel := context.WithTimeout(ctx, d.timeout)
		result, err := gateway.LookupTransfer(callCtx, item.WithdrawalID.String())
		cancel()

		if errors.Is(err, payments.ErrTransferNotFound) {
			// The rail never executed it; the refund stands.
			continue
		}
		if err != nil {
			log.Printf("Reconciliation lookup failed for %s: %v", item.WithdrawalID, err)
			continue
		}

		// The transfer went through after all: take the debit back and
		// complete the record.
		if err := d.ledger.Debit(item.RecipientID, item.Amount); err != nil {
			log.Printf("🔥 Reconciliation re-debit failed for %s: %v", item.WithdrawalID, err)
			continue
		}
		if err := d.payouts.Complete(item.ID, result.ProviderRef); err != nil {
			log.Printf("🔥 Reconciliation completion failed for %s: %v", item.WithdrawalID, err)
			continue
		}

		log.Printf("✅ Reconciled withdrawal %s: rail executed transfer %s", item.WithdrawalID, result.ProviderRef)
		if d.OnCompleted != nil {
			d.OnCompleted(item, result.ProviderRef)
		}
		recovered++
	}
	return recovered, nil
}
