package service

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"ledger_bot/internal/telegram/models"
	"ledger_bot/internal/telegram/repository"
)

type stubBalanceCache struct {
	mu          sync.Mutex
	accounts    map[string]*models.Account
	putErr      error
	invalidated []string
}

func newStubBalanceCache() *stubBalanceCache {
	return &stubBalanceCache{accounts: make(map[string]*models.Account)}
}

func (c *stubBalanceCache) Put(ctx context.Context, account *models.Account) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.putErr != nil {
		return false, c.putErr
	}
	if cur, ok := c.accounts[account.Name]; ok && cur.Version > account.Version {
		return false, nil
	}
	c.accounts[account.Name] = account.Clone()
	return true, nil
}

func (c *stubBalanceCache) Get(ctx context.Context, name string) (*models.Account, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	account, ok := c.accounts[name]
	if !ok {
		return nil, false, nil
	}
	return account.Clone(), true, nil
}

func (c *stubBalanceCache) Invalidate(ctx context.Context, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.accounts, name)
	c.invalidated = append(c.invalidated, name)
	return nil
}

type stubPublisher struct {
	mu     sync.Mutex
	events []*models.Operation
	err    error
}

func (p *stubPublisher) PublishOperationRecorded(ctx context.Context, account *models.Account, op *models.Operation) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	cp := *op
	p.events = append(p.events, &cp)
	return nil
}

type failingAccountRepository struct {
	repository.AccountRepository
	err error
}

func (r *failingAccountRepository) RecordOperation(ctx context.Context, accountName string, op *models.Operation) (*models.Account, error) {
	return nil, r.err
}

func newServiceForTest(t *testing.T, opts ...Option) (*LedgerServiceImpl, *repository.MemoryStore) {
	t.Helper()
	store := repository.NewMemoryStore()
	return NewLedgerService(store.Chats(), store.Accounts(), opts...), store
}

func expectKind(t *testing.T, err error, kind models.ErrorKind) {
	t.Helper()
	got, ok := models.KindOf(err)
	if !ok {
		t.Fatalf("expected domain error %s, got %v", kind, err)
	}
	if got != kind {
		t.Fatalf("unexpected error kind: got %s, want %s", got, kind)
	}
}

func mustCreateAccount(t *testing.T, svc *LedgerServiceImpl, name string) {
	t.Helper()
	if _, err := svc.CreateAccount(context.Background(), 1, name, ""); err != nil {
		t.Fatalf("CreateAccount(%q) failed: %v", name, err)
	}
}

func mustRecord(t *testing.T, svc *LedgerServiceImpl, in OperationInput) *models.Account {
	t.Helper()
	account, err := svc.RecordOperation(context.Background(), in)
	if err != nil {
		t.Fatalf("RecordOperation failed: %v", err)
	}
	return account
}

func TestCreateChatIsIdempotent(t *testing.T) {
	svc, store := newServiceForTest(t)
	ctx := context.Background()

	chat, err := svc.CreateChat(ctx, 42)
	if err != nil {
		t.Fatalf("CreateChat failed: %v", err)
	}
	if chat.ChatID != 42 {
		t.Fatalf("unexpected chat id: %d", chat.ChatID)
	}

	_, err = svc.CreateChat(ctx, 42)
	expectKind(t, err, models.KindChatAlreadyExists)
	if err.Error() != "Chat already started!" {
		t.Fatalf("unexpected reply text: %q", err.Error())
	}

	if chats, _, _ := store.Counts(); chats != 1 {
		t.Fatalf("expected 1 chat, got %d", chats)
	}
}

func TestCreateAccountConcurrentUniqueness(t *testing.T) {
	svc, store := newServiceForTest(t)
	ctx := context.Background()

	const workers = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		dupes     int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(chatID int64) {
			defer wg.Done()
			_, err := svc.CreateAccount(ctx, chatID, "Groceries", "")
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
				return
			}
			if kind, ok := models.KindOf(err); ok && kind == models.KindAccountAlreadyExists {
				dupes++
			}
		}(int64(i))
	}
	wg.Wait()

	if successes != 1 || dupes != workers-1 {
		t.Fatalf("expected 1 success and %d duplicates, got %d and %d", workers-1, successes, dupes)
	}
	if _, accounts, _ := store.Counts(); accounts != 1 {
		t.Fatalf("expected 1 account, got %d", accounts)
	}
}

func TestRecordOperationBalanceInvariant(t *testing.T) {
	svc, store := newServiceForTest(t)
	ctx := context.Background()
	mustCreateAccount(t, svc, "Wallet")

	sizes := []int64{150, -30, 7, -200, 1000, 1, -1, 42}
	var (
		wg  sync.WaitGroup
		sum int64
	)
	for round := 0; round < 10; round++ {
		for _, size := range sizes {
			sum += size
			wg.Add(1)
			go func(size int64) {
				defer wg.Done()
				if _, err := svc.RecordOperation(ctx, OperationInput{ChatID: 1, AccountName: "Wallet", Size: size, Author: "7"}); err != nil {
					t.Errorf("RecordOperation failed: %v", err)
				}
			}(size)
		}
	}
	wg.Wait()

	account, err := svc.GetAccount(ctx, "Wallet")
	if err != nil {
		t.Fatalf("GetAccount failed: %v", err)
	}
	if account.Balance != sum {
		t.Fatalf("balance invariant violated: got %d, want %d", account.Balance, sum)
	}
	if account.Version != int64(len(sizes)*10) {
		t.Fatalf("unexpected version: %d", account.Version)
	}
	if _, _, ops := store.Counts(); ops != len(sizes)*10 {
		t.Fatalf("unexpected operation count: %d", ops)
	}
}

func TestRecordOperationReturnsNewBalance(t *testing.T) {
	svc, _ := newServiceForTest(t)
	mustCreateAccount(t, svc, "Groceries")

	account := mustRecord(t, svc, OperationInput{ChatID: 1, AccountName: "Groceries", Size: 150, Description: "Weekly shop", Author: "7"})
	if account.Balance != 150 {
		t.Fatalf("unexpected balance: %d", account.Balance)
	}
}

func TestRecordOperationAccountNotFound(t *testing.T) {
	svc, _ := newServiceForTest(t)

	_, err := svc.RecordOperation(context.Background(), OperationInput{AccountName: "Ghost", Size: 1})
	expectKind(t, err, models.KindAccountNotFound)
	if err.Error() != "Can not find account with given name: Ghost" {
		t.Fatalf("unexpected reply text: %q", err.Error())
	}
}

func TestRecordOperationRedeliveryAppliedOnce(t *testing.T) {
	pub := &stubPublisher{}
	svc, store := newServiceForTest(t, WithEventPublisher(pub))
	mustCreateAccount(t, svc, "Wallet")

	in := OperationInput{ChatID: 1, AccountName: "Wallet", Size: 25, IdempotencyKey: models.IdempotencyKeyFor(1, 99)}
	first := mustRecord(t, svc, in)
	second := mustRecord(t, svc, in)

	if first.Balance != 25 || second.Balance != 25 {
		t.Fatalf("unexpected balances: first=%d second=%d", first.Balance, second.Balance)
	}
	if _, _, ops := store.Counts(); ops != 1 {
		t.Fatalf("expected 1 operation, got %d", ops)
	}
	if len(pub.events) != 1 {
		t.Fatalf("expected 1 published event, got %d", len(pub.events))
	}
}

func TestRecordOperationInfrastructureError(t *testing.T) {
	store := repository.NewMemoryStore()
	boom := errors.New("connection reset")
	svc := NewLedgerService(store.Chats(), &failingAccountRepository{AccountRepository: store.Accounts(), err: boom})

	_, err := svc.RecordOperation(context.Background(), OperationInput{AccountName: "Wallet", Size: 1})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped store error, got %v", err)
	}
	if models.IsDomainError(err) {
		t.Fatalf("store error must not be a domain error: %v", err)
	}
}

func TestRecordOperationOverflowIsStoreError(t *testing.T) {
	svc, _ := newServiceForTest(t)
	mustCreateAccount(t, svc, "Big")
	mustRecord(t, svc, OperationInput{AccountName: "Big", Size: math.MaxInt64})

	_, err := svc.RecordOperation(context.Background(), OperationInput{AccountName: "Big", Size: 1})
	if !errors.Is(err, repository.ErrBalanceOverflow) {
		t.Fatalf("expected ErrBalanceOverflow, got %v", err)
	}
}

func TestWriteThroughCacheAndPublisher(t *testing.T) {
	cache := newStubBalanceCache()
	pub := &stubPublisher{}
	svc, _ := newServiceForTest(t, WithBalanceCache(cache), WithEventPublisher(pub))
	ctx := context.Background()

	mustCreateAccount(t, svc, "Wallet")
	mustRecord(t, svc, OperationInput{AccountName: "Wallet", Size: 10})
	mustRecord(t, svc, OperationInput{AccountName: "Wallet", Size: -3})

	cached, ok, err := cache.Get(ctx, "Wallet")
	if err != nil || !ok {
		t.Fatalf("expected cached account, ok=%v err=%v", ok, err)
	}
	if cached.Balance != 7 || cached.Version != 2 {
		t.Fatalf("unexpected cached account: %+v", cached)
	}

	looked, err := svc.LookupAccount(ctx, "Wallet")
	if err != nil {
		t.Fatalf("LookupAccount failed: %v", err)
	}
	if looked.Balance != 7 {
		t.Fatalf("unexpected looked up balance: %d", looked.Balance)
	}

	if len(pub.events) != 2 || pub.events[1].BalanceAfter != 7 {
		t.Fatalf("unexpected published events: %+v", pub.events)
	}
}

func TestCacheWriteFailureInvalidates(t *testing.T) {
	cache := newStubBalanceCache()
	svc, _ := newServiceForTest(t, WithBalanceCache(cache))
	mustCreateAccount(t, svc, "Wallet")

	cache.putErr = errors.New("redis down")
	account := mustRecord(t, svc, OperationInput{AccountName: "Wallet", Size: 10})
	if account.Balance != 10 {
		t.Fatalf("unexpected balance: %d", account.Balance)
	}

	invalidated := false
	for _, name := range cache.invalidated {
		if name == "Wallet" {
			invalidated = true
		}
	}
	if !invalidated {
		t.Fatalf("expected Wallet to be invalidated, got %v", cache.invalidated)
	}
	if _, ok, _ := cache.Get(context.Background(), "Wallet"); ok {
		t.Fatalf("expected cache miss after invalidation")
	}
}

func TestPublisherFailureDoesNotFailOperation(t *testing.T) {
	pub := &stubPublisher{err: errors.New("kafka unavailable")}
	svc, _ := newServiceForTest(t, WithEventPublisher(pub))
	mustCreateAccount(t, svc, "Wallet")

	account := mustRecord(t, svc, OperationInput{AccountName: "Wallet", Size: 10})
	if account.Balance != 10 {
		t.Fatalf("unexpected balance: %d", account.Balance)
	}
}

func TestGetOperationsFiltersByPeriod(t *testing.T) {
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	current := now
	clock := func() time.Time { return current }

	svc, _ := newServiceForTest(t, WithNowFunc(clock))
	ctx := context.Background()
	mustCreateAccount(t, svc, "Acct")

	current = now.AddDate(0, 0, -10)
	mustRecord(t, svc, OperationInput{AccountName: "Acct", Size: 100, Description: "old"})
	current = now.AddDate(0, 0, -1)
	mustRecord(t, svc, OperationInput{AccountName: "Acct", Size: -40, Description: "recent"})
	current = now

	cases := []struct {
		days  int
		wants []string
	}{
		{days: 7, wants: []string{"recent"}},
		{days: 30, wants: []string{"old", "recent"}},
		{days: 0, wants: []string{"recent"}},
		{days: models.MaxStatementDays, wants: []string{"old", "recent"}},
		{days: math.MaxInt, wants: []string{"old", "recent"}},
	}
	for _, tc := range cases {
		ops, err := svc.GetOperations(ctx, "Acct", tc.days)
		if err != nil {
			t.Fatalf("GetOperations(%d) failed: %v", tc.days, err)
		}
		if len(ops) != len(tc.wants) {
			t.Fatalf("GetOperations(%d): got %d operations, want %d", tc.days, len(ops), len(tc.wants))
		}
		for i, want := range tc.wants {
			if ops[i].Description != want {
				t.Fatalf("GetOperations(%d)[%d] = %q, want %q", tc.days, i, ops[i].Description, want)
			}
		}
	}

	_, err := svc.GetOperations(ctx, "Missing", 7)
	expectKind(t, err, models.KindAccountNotFound)
}
