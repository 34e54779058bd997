package services

import (
	"sync"
	"time"

	"github.com/elimuhub/learning_platform/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// In-memory store fakes with the same compare-and-swap semantics as the
// gorm-backed implementations, so concurrency tests exercise the real
// exactly-one-winner contract.

type fakeLedger struct {
	mu       sync.Mutex
	balances map[uuid.UUID]decimal.Decimal
	debits   int
	credits  int
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{balances: make(map[uuid.UUID]decimal.Decimal)}
}

func (l *fakeLedger) Balance(accountID uuid.UUID) (decimal.Decimal, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[accountID], nil
}

func (l *fakeLedger) Debit(accountID uuid.UUID, amount decimal.Decimal) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.balances[accountID].LessThan(amount) {
		return ErrInsufficientFunds
	}
	l.balances[accountID] = l.balances[accountID].Sub(amount)
	l.debits++
	return nil
}

func (l *fakeLedger) Credit(accountID uuid.UUID, amount decimal.Decimal) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[accountID] = l.balances[accountID].Add(amount)
	l.credits++
	return nil
}

type fakeWithdrawalStore struct {
	mu    sync.Mutex
	reqs  map[uuid.UUID]*models.WithdrawalRequest
	items map[uuid.UUID]*models.PayoutQueueItem // keyed by withdrawal id
}

func newFakeWithdrawalStore() *fakeWithdrawalStore {
	return &fakeWithdrawalStore{
		reqs:  make(map[uuid.UUID]*models.WithdrawalRequest),
		items: make(map[uuid.UUID]*models.PayoutQueueItem),
	}
}

func (s *fakeWithdrawalStore) Create(req *models.WithdrawalRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	req.ID = uuid.New()
	req.CreatedAt = time.Now()
	clone := *req
	s.reqs[req.ID] = &clone
	return nil
}

func (s *fakeWithdrawalStore) Get(id uuid.UUID) (*models.WithdrawalRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.reqs[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *req
	return &clone, nil
}

func (s *fakeWithdrawalStore) ListByOwner(ownerID uuid.UUID, page, limit int) ([]models.WithdrawalRequest, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.WithdrawalRequest
	for _, req := range s.reqs {
		if req.OwnerID == ownerID {
			out = append(out, *req)
		}
	}
	return out, int64(len(out)), nil
}

func (s *fakeWithdrawalStore) Queue(status models.WithdrawalStatus, page, limit int) ([]models.WithdrawalRequest, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.WithdrawalRequest
	for _, req := range s.reqs {
		if req.Status == status {
			out = append(out, *req)
		}
	}
	return out, int64(len(out)), nil
}

func (s *fakeWithdrawalStore) Decide(id uuid.UUID, to models.WithdrawalStatus, reviewerID uuid.UUID, reason *string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.reqs[id]
	if !ok {
		return false, ErrNotFound
	}
	if req.Status != models.WithdrawalRequested {
		return false, nil
	}
	now := time.Now()
	req.Status = to
	req.ReviewerID = &reviewerID
	req.ReviewedAt = &now
	req.Reason = reason
	if to == models.WithdrawalApproved {
		s.items[id] = &models.PayoutQueueItem{
			ID:           uuid.New(),
			WithdrawalID: id,
			RecipientID:  req.OwnerID,
			Amount:       req.Amount,
			Currency:     req.Currency,
			PayoutMethod: req.PayoutMethod,
			Status:       models.PayoutItemPending,
		}
	}
	return true, nil
}

func (s *fakeWithdrawalStore) Reopen(id uuid.UUID, reviewerID uuid.UUID, maxRetries int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.reqs[id]
	if !ok {
		return false, ErrNotFound
	}
	if req.Status != models.WithdrawalFailed || req.RetryCount >= maxRetries {
		return false, nil
	}
	req.Status = models.WithdrawalProcessing
	req.RetryCount++
	if item, ok := s.items[id]; ok && item.Status == models.PayoutItemFailed {
		item.Status = models.PayoutItemPending
	}
	return true, nil
}

func (s *fakeWithdrawalStore) Close(id uuid.UUID, reviewerID uuid.UUID, reason string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.reqs[id]
	if !ok {
		return false, ErrNotFound
	}
	if req.Status != models.WithdrawalFailed {
		return false, nil
	}
	req.Status = models.WithdrawalRejected
	req.ReviewerID = &reviewerID
	req.Reason = &reason
	return true, nil
}

func (s *fakeWithdrawalStore) SetReceiptURL(id uuid.UUID, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.reqs[id]
	if !ok {
		return ErrNotFound
	}
	req.ReceiptURL = &url
	return nil
}

type fakePayoutStore struct {
	mu    sync.Mutex
	items map[uuid.UUID]*models.PayoutQueueItem // keyed by item id

	// completions records the item status each Complete call actually moved
	// from, mirroring what the gorm store writes into the audit trail.
	completions []models.PayoutItemStatus
}

func newFakePayoutStore() *fakePayoutStore {
	return &fakePayoutStore{items: make(map[uuid.UUID]*models.PayoutQueueItem)}
}

func (s *fakePayoutStore) add(item *models.PayoutQueueItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	clone := *item
	s.items[item.ID] = &clone
}

func (s *fakePayoutStore) NextPending(limit int) ([]models.PayoutQueueItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.PayoutQueueItem
	for _, item := range s.items {
		if item.Status == models.PayoutItemPending && len(out) < limit {
			out = append(out, *item)
		}
	}
	return out, nil
}

func (s *fakePayoutStore) Get(withdrawalID uuid.UUID) (*models.PayoutQueueItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range s.items {
		if item.WithdrawalID == withdrawalID {
			clone := *item
			return &clone, nil
		}
	}
	return nil, ErrNotFound
}

func (s *fakePayoutStore) Claim(itemID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[itemID]
	if !ok {
		return false, ErrNotFound
	}
	if item.Status != models.PayoutItemPending {
		return false, nil
	}
	item.Status = models.PayoutItemProcessing
	return true, nil
}

func (s *fakePayoutStore) RecordAttempt(itemID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[itemID]
	if !ok {
		return ErrNotFound
	}
	item.Attempts++
	return nil
}

func (s *fakePayoutStore) Complete(itemID uuid.UUID, providerRef string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[itemID]
	if !ok {
		return ErrNotFound
	}
	if item.Status != models.PayoutItemProcessing && item.Status != models.PayoutItemFailed {
		return ErrInvalidState
	}
	s.completions = append(s.completions, item.Status)
	now := time.Now()
	item.Status = models.PayoutItemCompleted
	item.GatewayRef = &providerRef
	item.ProcessedAt = &now
	return nil
}

func (s *fakePayoutStore) Fail(itemID uuid.UUID, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[itemID]
	if !ok {
		return ErrNotFound
	}
	if item.Status != models.PayoutItemProcessing {
		return ErrInvalidState
	}
	item.Status = models.PayoutItemFailed
	item.FailureReason = &reason
	return nil
}

func (s *fakePayoutStore) RecentTimeouts(since time.Time, limit int) ([]models.PayoutQueueItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.PayoutQueueItem
	for _, item := range s.items {
		if item.Status == models.PayoutItemFailed &&
			item.FailureReason != nil && *item.FailureReason == ReasonGatewayTimeout &&
			len(out) < limit {
			out = append(out, *item)
		}
	}
	return out, nil
}

func (s *fakePayoutStore) status(itemID uuid.UUID) models.PayoutItemStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.items[itemID].Status
}

type fakePurchaseStore struct {
	mu       sync.Mutex
	settings map[uuid.UUID]*models.PurchaseApprovalSetting // keyed by child id
	reqs     map[uuid.UUID]*models.PurchaseApprovalRequest
	day      map[uuid.UUID]decimal.Decimal
	month    map[uuid.UUID]decimal.Decimal
}

func newFakePurchaseStore() *fakePurchaseStore {
	return &fakePurchaseStore{
		settings: make(map[uuid.UUID]*models.PurchaseApprovalSetting),
		reqs:     make(map[uuid.UUID]*models.PurchaseApprovalRequest),
		day:      make(map[uuid.UUID]decimal.Decimal),
		month:    make(map[uuid.UUID]decimal.Decimal),
	}
}

func (s *fakePurchaseStore) ActiveSetting(parentID, childID uuid.UUID) (*models.PurchaseApprovalSetting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	setting, ok := s.settings[childID]
	if !ok || setting.ParentID != parentID {
		return nil, ErrNotFound
	}
	clone := *setting
	return &clone, nil
}

func (s *fakePurchaseStore) ActiveSettingForChild(childID uuid.UUID) (*models.PurchaseApprovalSetting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	setting, ok := s.settings[childID]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *setting
	return &clone, nil
}

func (s *fakePurchaseStore) UpsertSetting(setting *models.PurchaseApprovalSetting) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	setting.ID = uuid.New()
	clone := *setting
	s.settings[setting.ChildID] = &clone
	return nil
}

func (s *fakePurchaseStore) SpentTotals(childID uuid.UUID, now time.Time) (decimal.Decimal, decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.day[childID], s.month[childID], nil
}

func (s *fakePurchaseStore) CreateRequest(req *models.PurchaseApprovalRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	req.ID = uuid.New()
	req.CreatedAt = time.Now()
	clone := *req
	s.reqs[req.ID] = &clone
	return nil
}

func (s *fakePurchaseStore) GetRequest(id uuid.UUID) (*models.PurchaseApprovalRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.reqs[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *req
	return &clone, nil
}

func (s *fakePurchaseStore) PendingForParent(parentID uuid.UUID, page, limit int) ([]models.PurchaseApprovalRequest, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.PurchaseApprovalRequest
	for _, req := range s.reqs {
		if req.ParentID == parentID && req.Status == models.PurchasePending {
			out = append(out, *req)
		}
	}
	return out, int64(len(out)), nil
}

func (s *fakePurchaseStore) Decide(id uuid.UUID, to models.PurchaseStatus, actorID *uuid.UUID, reason *string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.reqs[id]
	if !ok {
		return false, ErrNotFound
	}
	if req.Status != models.PurchasePending {
		return false, nil
	}
	now := time.Now()
	req.Status = to
	req.Reason = reason
	req.DecidedAt = &now
	if to == models.PurchaseApproved {
		s.day[req.ChildID] = s.day[req.ChildID].Add(req.Amount)
		s.month[req.ChildID] = s.month[req.ChildID].Add(req.Amount)
	}
	return true, nil
}

func (s *fakePurchaseStore) DueForExpiry(now time.Time, limit int) ([]models.PurchaseApprovalRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.PurchaseApprovalRequest
	for _, req := range s.reqs {
		if req.Status == models.PurchasePending && !req.ExpiresAt.After(now) && len(out) < limit {
			out = append(out, *req)
		}
	}
	return out, nil
}

type fakeUserStore struct {
	mu    sync.Mutex
	users map[uuid.UUID]*models.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: make(map[uuid.UUID]*models.User)}
}

func (s *fakeUserStore) addChild(childID, parentID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pid := parentID
	s.users[childID] = &models.User{ID: childID, Role: models.RoleChild, ParentID: &pid}
}

func (s *fakeUserStore) Get(id uuid.UUID) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *user
	return &clone, nil
}

func (s *fakePurchaseStore) Expire(id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.reqs[id]
	if !ok {
		return false, ErrNotFound
	}
	if req.Status != models.PurchasePending {
		return false, nil
	}
	now := time.Now()
	reason := "expiry"
	req.Status = models.PurchaseExpired
	req.Reason = &reason
	req.DecidedAt = &now
	return true, nil
}
