package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/elimuhub/learning_platform/models"
	"github.com/elimuhub/learning_platform/payments"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockGateway counts Transfer calls per idempotency reference so tests can
// assert that a settlement never reaches the rail more than intended.
type mockGateway struct {
	mu       sync.Mutex
	calls    map[string]int
	transfer func(req payments.TransferRequest) (*payments.TransferResult, error)
	lookup   func(reference string) (*payments.TransferResult, error)
}

func newMockGateway() *mockGateway {
	return &mockGateway{
		calls: make(map[string]int),
		transfer: func(req payments.TransferRequest) (*payments.TransferResult, error) {
			return &payments.TransferResult{Reference: req.Reference, ProviderRef: "prov-" + req.Reference}, nil
		},
		lookup: func(reference string) (*payments.TransferResult, error) {
			return nil, payments.ErrTransferNotFound
		},
	}
}

func (g *mockGateway) Name() string { return "mock" }

func (g *mockGateway) Transfer(ctx context.Context, req payments.TransferRequest) (*payments.TransferResult, error) {
	g.mu.Lock()
	g.calls[req.Reference]++
	g.mu.Unlock()
	return g.transfer(req)
}

func (g *mockGateway) LookupTransfer(ctx context.Context, reference string) (*payments.TransferResult, error) {
	return g.lookup(reference)
}

func (g *mockGateway) callCount(reference string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[reference]
}

type dispatcherFixture struct {
	dispatcher *Dispatcher
	payouts    *fakePayoutStore
	ledger     *fakeLedger
	gateway    *mockGateway
	item       *models.PayoutQueueItem
	recipient  uuid.UUID
}

func newDispatcherFixture(t *testing.T, balance, amount string) *dispatcherFixture {
	t.Helper()
	payouts := newFakePayoutStore()
	ledger := newFakeLedger()
	gateway := newMockGateway()
	recipient := uuid.New()
	ledger.balances[recipient] = dec(balance)

	item := &models.PayoutQueueItem{
		WithdrawalID: uuid.New(),
		RecipientID:  recipient,
		Amount:       dec(amount),
		Currency:     "KES",
		PayoutMethod: models.MethodMpesaB2C,
		Status:       models.PayoutItemPending,
	}
	payouts.add(item)

	d := NewDispatcher(payouts, ledger, map[models.PayoutMethod]payments.Gateway{
		models.MethodMpesaB2C: gateway,
	}, payments.DefaultBackoff)
	d.sleep = func(time.Duration) {}

	return &dispatcherFixture{dispatcher: d, payouts: payouts, ledger: ledger, gateway: gateway, item: item, recipient: recipient}
}

func TestDispatchSettlesAndDebitsOnce(t *testing.T) {
	f := newDispatcherFixture(t, "100.00", "40.00")

	require.NoError(t, f.dispatcher.Dispatch(context.Background(), f.item))

	assert.Equal(t, models.PayoutItemCompleted, f.payouts.status(f.item.ID))
	assert.Equal(t, 1, f.gateway.callCount(f.item.WithdrawalID.String()))

	balance, _ := f.ledger.Balance(f.recipient)
	assert.True(t, balance.Equal(dec("60.00")), "balance should be 60.00, got %s", balance)

	stored, err := f.payouts.Get(f.item.WithdrawalID)
	require.NoError(t, err)
	assert.Equal(t, "prov-"+f.item.WithdrawalID.String(), *stored.GatewayRef)
	assert.Equal(t, 1, stored.Attempts)
}

func TestDispatchInsufficientFundsFailsWithoutRefund(t *testing.T) {
	f := newDispatcherFixture(t, "10.00", "40.00")

	require.NoError(t, f.dispatcher.Dispatch(context.Background(), f.item))

	assert.Equal(t, models.PayoutItemFailed, f.payouts.status(f.item.ID))
	stored, _ := f.payouts.Get(f.item.WithdrawalID)
	assert.Equal(t, ReasonInsufficientFunds, *stored.FailureReason)

	// No debit was taken, so nothing may be credited back.
	assert.Equal(t, 0, f.ledger.credits)
	assert.Equal(t, 0, f.gateway.callCount(f.item.WithdrawalID.String()))
	balance, _ := f.ledger.Balance(f.recipient)
	assert.True(t, balance.Equal(dec("10.00")))
}

func TestDispatchPermanentFailureRefunds(t *testing.T) {
	f := newDispatcherFixture(t, "100.00", "40.00")
	f.gateway.transfer = func(req payments.TransferRequest) (*payments.TransferResult, error) {
		return nil, payments.Permanent("1", errors.New("recipient account closed"))
	}

	require.NoError(t, f.dispatcher.Dispatch(context.Background(), f.item))

	assert.Equal(t, models.PayoutItemFailed, f.payouts.status(f.item.ID))
	// Permanent errors are never retried.
	assert.Equal(t, 1, f.gateway.callCount(f.item.WithdrawalID.String()))

	balance, _ := f.ledger.Balance(f.recipient)
	assert.True(t, balance.Equal(dec("100.00")), "debit must be credited back")
}

func TestDispatchTimeoutExhaustionRefundsNetZero(t *testing.T) {
	f := newDispatcherFixture(t, "100.00", "40.00")
	f.gateway.transfer = func(req payments.TransferRequest) (*payments.TransferResult, error) {
		return nil, payments.Transient("timeout", errors.New("upstream timeout"))
	}

	require.NoError(t, f.dispatcher.Dispatch(context.Background(), f.item))

	assert.Equal(t, models.PayoutItemFailed, f.payouts.status(f.item.ID))
	assert.Equal(t, payments.DefaultBackoff.MaxAttempts, f.gateway.callCount(f.item.WithdrawalID.String()))

	stored, _ := f.payouts.Get(f.item.WithdrawalID)
	assert.Equal(t, ReasonGatewayTimeout, *stored.FailureReason)
	assert.Equal(t, payments.DefaultBackoff.MaxAttempts, stored.Attempts)

	balance, _ := f.ledger.Balance(f.recipient)
	assert.True(t, balance.Equal(dec("100.00")), "exhausted retries must leave the ledger unchanged")
}

func TestDispatchTransientThenSuccessRetriesInPlace(t *testing.T) {
	f := newDispatcherFixture(t, "100.00", "40.00")
	failures := 2
	f.gateway.transfer = func(req payments.TransferRequest) (*payments.TransferResult, error) {
		if failures > 0 {
			failures--
			return nil, payments.Transient("503", errors.New("gateway busy"))
		}
		return &payments.TransferResult{Reference: req.Reference, ProviderRef: "prov-late"}, nil
	}

	require.NoError(t, f.dispatcher.Dispatch(context.Background(), f.item))

	assert.Equal(t, models.PayoutItemCompleted, f.payouts.status(f.item.ID))
	assert.Equal(t, 3, f.gateway.callCount(f.item.WithdrawalID.String()))
	balance, _ := f.ledger.Balance(f.recipient)
	assert.True(t, balance.Equal(dec("60.00")))
}

func TestDispatchClaimRaceOnlyOneWorkerSends(t *testing.T) {
	f := newDispatcherFixture(t, "100.00", "40.00")

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			item := *f.item
			_ = f.dispatcher.Dispatch(context.Background(), &item)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, f.gateway.callCount(f.item.WithdrawalID.String()), "the claim must admit exactly one worker")
	balance, _ := f.ledger.Balance(f.recipient)
	assert.True(t, balance.Equal(dec("60.00")), "the debit must be taken exactly once")
}

func TestConfirmSettlementIsIdempotent(t *testing.T) {
	f := newDispatcherFixture(t, "100.00", "40.00")
	require.NoError(t, f.dispatcher.Dispatch(context.Background(), f.item))

	completions := 0
	f.dispatcher.OnCompleted = func(*models.PayoutQueueItem, string) { completions++ }

	// Duplicate rail callbacks after completion must change nothing.
	require.NoError(t, f.dispatcher.ConfirmSettlement(f.item.WithdrawalID, "prov-dup"))
	require.NoError(t, f.dispatcher.ConfirmSettlement(f.item.WithdrawalID, "prov-dup"))

	assert.Equal(t, 0, completions)
	balance, _ := f.ledger.Balance(f.recipient)
	assert.True(t, balance.Equal(dec("60.00")))
}

func TestConfirmSettlementAfterTimeoutRefundReDebits(t *testing.T) {
	f := newDispatcherFixture(t, "100.00", "40.00")
	f.gateway.transfer = func(req payments.TransferRequest) (*payments.TransferResult, error) {
		return nil, payments.Transient("timeout", errors.New("upstream timeout"))
	}
	require.NoError(t, f.dispatcher.Dispatch(context.Background(), f.item))
	assert.Equal(t, models.PayoutItemFailed, f.payouts.status(f.item.ID))

	// The rail executed the transfer after all and calls back late.
	require.NoError(t, f.dispatcher.ConfirmSettlement(f.item.WithdrawalID, "prov-late"))

	assert.Equal(t, models.PayoutItemCompleted, f.payouts.status(f.item.ID))
	balance, _ := f.ledger.Balance(f.recipient)
	assert.True(t, balance.Equal(dec("60.00")), "the provisional refund must be reversed")

	// The completion really happened from failed, and the store recorded
	// that status rather than assuming processing.
	require.Len(t, f.payouts.completions, 1)
	assert.Equal(t, models.PayoutItemFailed, f.payouts.completions[0])
}

func TestFailSettlementIgnoresCompletedItem(t *testing.T) {
	f := newDispatcherFixture(t, "100.00", "40.00")
	require.NoError(t, f.dispatcher.Dispatch(context.Background(), f.item))

	require.NoError(t, f.dispatcher.FailSettlement(f.item.WithdrawalID, "reversed upstream"))

	assert.Equal(t, models.PayoutItemCompleted, f.payouts.status(f.item.ID))
	balance, _ := f.ledger.Balance(f.recipient)
	assert.True(t, balance.Equal(dec("60.00")))
}

func TestReconcileRecoversExecutedTransfer(t *testing.T) {
	f := newDispatcherFixture(t, "100.00", "40.00")
	f.gateway.transfer = func(req payments.TransferRequest) (*payments.TransferResult, error) {
		return nil, payments.Transient("timeout", errors.New("upstream timeout"))
	}
	require.NoError(t, f.dispatcher.Dispatch(context.Background(), f.item))

	// The rail did execute it; only our side timed out.
	f.gateway.lookup = func(reference string) (*payments.TransferResult, error) {
		return &payments.TransferResult{Reference: reference, ProviderRef: "prov-recovered"}, nil
	}

	recovered, err := f.dispatcher.Reconcile(context.Background(), time.Now().Add(-time.Hour), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, recovered)

	assert.Equal(t, models.PayoutItemCompleted, f.payouts.status(f.item.ID))
	stored, _ := f.payouts.Get(f.item.WithdrawalID)
	assert.Equal(t, "prov-recovered", *stored.GatewayRef)
	balance, _ := f.ledger.Balance(f.recipient)
	assert.True(t, balance.Equal(dec("60.00")))
}

func TestReconcileLeavesRefundWhenRailNeverExecuted(t *testing.T) {
	f := newDispatcherFixture(t, "100.00", "40.00")
	f.gateway.transfer = func(req payments.TransferRequest) (*payments.TransferResult, error) {
		return nil, payments.Transient("timeout", errors.New("upstream timeout"))
	}
	require.NoError(t, f.dispatcher.Dispatch(context.Background(), f.item))

	recovered, err := f.dispatcher.Reconcile(context.Background(), time.Now().Add(-time.Hour), 10)
	require.NoError(t, err)
	assert.Equal(t, 0, recovered)

	assert.Equal(t, models.PayoutItemFailed, f.payouts.status(f.item.ID))
	balance, _ := f.ledger.Balance(f.recipient)
	assert.True(t, balance.Equal(dec("100.00")))
}

func TestDispatchPendingProcessesBatch(t *testing.T) {
	f := newDispatcherFixture(t, "500.00", "40.00")
	for i := 0; i < 2; i++ {
		extra := &models.PayoutQueueItem{
			WithdrawalID: uuid.New(),
			RecipientID:  f.recipient,
			Amount:       dec("40.00"),
			Currency:     "KES",
			PayoutMethod: models.MethodMpesaB2C,
			Status:       models.PayoutItemPending,
		}
		f.payouts.add(extra)
	}

	processed, err := f.dispatcher.DispatchPending(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 3, processed)

	balance, _ := f.ledger.Balance(f.recipient)
	assert.True(t, balance.Equal(dec("380.00")))
}
