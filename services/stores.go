package services

import (
	"time"

	"github.com/elimuhub/learning_platform/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Store contracts consumed by the engine. The gorm-backed implementations
// live in the database package; tests substitute in-memory fakes. Every
// method that changes a status is atomic: the implementation performs a
// compare-and-swap on the current status and reports whether the swap won,
// so two conflicting transitions can never both succeed.

type LedgerStore interface {
	Balance(accountID uuid.UUID) (decimal.Decimal, error)
	// Debit subtracts amount only if the balance covers it, returning
	// ErrInsufficientFunds otherwise. This is the authoritative debit.
	Debit(accountID uuid.UUID, amount decimal.Decimal) error
	Credit(accountID uuid.UUID, amount decimal.Decimal) error
}

type WithdrawalStore interface {
	Create(req *models.WithdrawalRequest) error
	Get(id uuid.UUID) (*models.WithdrawalRequest, error)
	ListByOwner(ownerID uuid.UUID, page, limit int) ([]models.WithdrawalRequest, int64, error)
	// Queue lists requests oldest first for the reviewer view.
	Queue(status models.WithdrawalStatus, page, limit int) ([]models.WithdrawalRequest, int64, error)
	// Decide swaps requested into approved or rejected, stamps the reviewer
	// and, on approval, enqueues the payout item in the same transaction.
	Decide(id uuid.UUID, to models.WithdrawalStatus, reviewerID uuid.UUID, reason *string) (bool, error)
	// Reopen swaps failed back into processing for a bounded manual retry,
	// resetting the queue item to pending.
	Reopen(id uuid.UUID, reviewerID uuid.UUID, maxRetries int) (bool, error)
	// Close swaps failed into the terminal rejected state.
	Close(id uuid.UUID, reviewerID uuid.UUID, reason string) (bool, error)
	SetReceiptURL(id uuid.UUID, url string) error
}

type PayoutStore interface {
	NextPending(limit int) ([]models.PayoutQueueItem, error)
	Get(withdrawalID uuid.UUID) (*models.PayoutQueueItem, error)
	// Claim swaps the item to processing and the withdrawal to processing
	// in one transaction; false means another worker got there first.
	Claim(itemID uuid.UUID) (bool, error)
	RecordAttempt(itemID uuid.UUID) error
	// Complete marks item and withdrawal completed with the gateway ref.
	Complete(itemID uuid.UUID, providerRef string) error
	// Fail marks item and withdrawal failed with the reason.
	Fail(itemID uuid.UUID, reason string) error
	// RecentTimeouts lists items that failed on a timed-out rail call and
	// still need reconciliation against the gateway.
	RecentTimeouts(since time.Time, limit int) ([]models.PayoutQueueItem, error)
}

type PurchaseStore interface {
	ActiveSetting(parentID, childID uuid.UUID) (*models.PurchaseApprovalSetting, error)
	ActiveSettingForChild(childID uuid.UUID) (*models.PurchaseApprovalSetting, error)
	UpsertSetting(setting *models.PurchaseApprovalSetting) error
	// SpentTotals reads the child's consumed day and month counters.
	SpentTotals(childID uuid.UUID, now time.Time) (day, month decimal.Decimal, err error)
	CreateRequest(req *models.PurchaseApprovalRequest) error
	GetRequest(id uuid.UUID) (*models.PurchaseApprovalRequest, error)
	PendingForParent(parentID uuid.UUID, page, limit int) ([]models.PurchaseApprovalRequest, int64, error)
	// Decide swaps pending into approved/rejected and, on approval, bumps
	// the spending counters in the same transaction.
	Decide(id uuid.UUID, to models.PurchaseStatus, actorID *uuid.UUID, reason *string) (bool, error)
	// DueForExpiry lists pending requests past their deadline, oldest first.
	DueForExpiry(now time.Time, limit int) ([]models.PurchaseApprovalRequest, error)
	// Expire swaps pending into expired; false means a decision won the race.
	Expire(id uuid.UUID) (bool, error)
}

type UserStore interface {
	Get(id uuid.UUID) (*models.User, error)
}

type AuditStore interface {
	Record(event *models.AuditEvent) error
	Trail(kind string, requestID uuid.UUID) ([]models.AuditEvent, error)
}
