package services

import (
	"strings"

	"github.com/elimuhub/learning_platform/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MaxPayoutRetries bounds how many times a failed settlement may be pushed
// back into processing by an admin.
const MaxPayoutRetries = 3

// WithdrawalService owns the withdrawal request state machine. All status
// writes go through the store's compare-and-swap operations; no other code
// path mutates a request's status.
type WithdrawalService struct {
	store  WithdrawalStore
	ledger LedgerStore
	events Notifier
}

// Notifier receives lifecycle events for the reviewer feed and emails.
// A nil-safe no-op implementation is used in tests.
type Notifier interface {
	WithdrawalEvent(req *models.WithdrawalRequest, event string)
}

type noopNotifier struct{}

func (noopNotifier) WithdrawalEvent(*models.WithdrawalRequest, string) {}

func NewWithdrawalService(store WithdrawalStore, ledger LedgerStore, events Notifier) *WithdrawalService {
	if events == nil {
		events = noopNotifier{}
	}
	return &WithdrawalService{store: store, ledger: ledger, events: events}
}

// Create validates and persists a new request in the requested state. The
// balance check here is a soft check only; the authoritative debit happens
// at dispatch time under the ledger's conditional decrement.
func (s *WithdrawalService) Create(ownerID uuid.UUID, amount decimal.Decimal, currency string, method models.PayoutMethod, details models.PayoutDetails) (*models.WithdrawalRequest, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, validationf("amount must be greater than zero")
	}
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if len(currency) != 3 {
		return nil, validationf("currency must be a 3-letter ISO code")
	}
	if method == models.MethodMpesaB2C && !amount.IsInteger() {
		// The B2C rail only moves whole shillings; anything else would be
		// silently short-paid at dispatch.
		return nil, validationf("M-Pesa withdrawals must be whole-shilling amounts")
	}
	if err := details.ValidateFor(method); err != nil {
		return nil, validationf("%v", err)
	}

	balance, err := s.ledger.Balance(ownerID)
	if err != nil {
		return nil, err
	}
	if balance.LessThan(amount) {
		return nil, validationf("requested amount exceeds available balance")
	}

	req := &models.WithdrawalRequest{
		OwnerID:       ownerID,
		Amount:        amount,
		Currency:      currency,
		PayoutMethod:  method,
		PayoutDetails: details,
		Status:        models.WithdrawalRequested,
	}
	if err := s.store.Create(req); err != nil {
		return nil, err
	}

	s.events.WithdrawalEvent(req, "requested")
	return req, nil
}

func (s *WithdrawalService) Get(id uuid.UUID) (*models.WithdrawalRequest, error) {
	return s.store.Get(id)
}

func (s *WithdrawalService) ListMine(ownerID uuid.UUID, page, limit int) ([]models.WithdrawalRequest, int64, error) {
	return s.store.ListByOwner(ownerID, page, limit)
}

func (s *WithdrawalService) Queue(status models.WithdrawalStatus, page, limit int) ([]models.WithdrawalRequest, int64, error) {
	if status == "" {
		status = models.WithdrawalRequested
	}
	return s.store.Queue(status, page, limit)
}

// Approve moves requested → approved and enqueues the settlement work item.
// A concurrent approve or reject on the same request races through the same
// conditional update: exactly one wins, the loser sees ErrInvalidState.
func (s *WithdrawalService) Approve(id uuid.UUID, reviewerID uuid.UUID) (*models.WithdrawalRequest, error) {
	won, err := s.store.Decide(id, models.WithdrawalApproved, reviewerID, nil)
	if err != nil {
		return nil, err
	}
	if !won {
		return nil, ErrInvalidState
	}

	req, err := s.store.Get(id)
	if err != nil {
		return nil, err
	}
	s.events.WithdrawalEvent(req, "approved")
	return req, nil
}

// Reject moves requested → rejected. The reason is required.
func (s *WithdrawalService) Reject(id uuid.UUID, reviewerID uuid.UUID, reason string) (*models.WithdrawalRequest, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, validationf("a rejection reason is required")
	}

	won, err := s.store.Decide(id, models.WithdrawalRejected, reviewerID, &reason)
	if err != nil {
		return nil, err
	}
	if !won {
		return nil, ErrInvalidState
	}

	req, err := s.store.Get(id)
	if err != nil {
		return nil, err
	}
	s.events.WithdrawalEvent(req, "rejected")
	return req, nil
}

// Retry pushes a failed settlement back into processing, bounded by the
// retry budget. The queue item is reset to pending and picked up by the
// next dispatch sweep.
func (s *WithdrawalService) Retry(id uuid.UUID, reviewerID uuid.UUID) (*models.WithdrawalRequest, error) {
	won, err := s.store.Reopen(id, reviewerID, MaxPayoutRetries)
	if err != nil {
		return nil, err
	}
	if !won {
		return nil, ErrInvalidState
	}
	return s.store.Get(id)
}

// Cancel moves a failed request to its terminal rejected state. Any debit
// for the failed attempt was already credited back by the dispatcher.
func (s *WithdrawalService) Cancel(id uuid.UUID, reviewerID uuid.UUID, reason string) (*models.WithdrawalRequest, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, validationf("a reason is required")
	}

	won, err := s.store.Close(id, reviewerID, reason)
	if err != nil {
		return nil, err
	}
	if !won {
		return nil, ErrInvalidState
	}

	req, err := s.store.Get(id)
	if err != nil {
		return nil, err
	}
	s.events.WithdrawalEvent(req, "rejected")
	return req, nil
}
