package repository

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"ledger_bot/internal/telegram/models"
)

func TestMemoryStoreConcurrentRecordKeepsBalance(t *testing.T) {
	store := NewMemoryStore()
	accounts := store.Accounts()
	ctx := context.Background()

	if err := accounts.Create(ctx, &models.Account{Name: "Cash", ChatID: -1}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	const workers = 50
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			size := int64(i + 1)
			if i%2 == 1 {
				size = -size
			}
			if _, err := accounts.RecordOperation(ctx, "Cash", &models.Operation{Size: size}); err != nil {
				t.Errorf("RecordOperation failed: %v", err)
			}
		}(i)
	}
	wg.Wait()

	account, err := accounts.GetByName(ctx, "Cash")
	if err != nil {
		t.Fatalf("GetByName failed: %v", err)
	}

	ops, err := accounts.ListOperations(ctx, "Cash", time.Time{})
	if err != nil {
		t.Fatalf("ListOperations failed: %v", err)
	}

	var sum int64
	for _, op := range ops {
		sum += op.Size
	}
	if account.Balance != sum {
		t.Fatalf("balance %d does not match operation sum %d", account.Balance, sum)
	}
	if account.Version != workers {
		t.Fatalf("unexpected version: got %d, want %d", account.Version, workers)
	}
}

func TestMemoryStoreUniqueness(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.Chats().Create(ctx, &models.Chat{ChatID: 7}); err != nil {
		t.Fatalf("first chat create failed: %v", err)
	}
	if err := store.Chats().Create(ctx, &models.Chat{ChatID: 7}); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate for chat, got %v", err)
	}

	if err := store.Accounts().Create(ctx, &models.Account{Name: "Cash"}); err != nil {
		t.Fatalf("first account create failed: %v", err)
	}
	if err := store.Accounts().Create(ctx, &models.Account{Name: "Cash"}); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate for account, got %v", err)
	}
	if err := store.Accounts().Create(ctx, &models.Account{Name: "cash"}); err != nil {
		t.Fatalf("names are case-sensitive, got %v", err)
	}

	chats, accounts, _ := store.Counts()
	if chats != 1 || accounts != 2 {
		t.Fatalf("unexpected counts: chats=%d accounts=%d", chats, accounts)
	}
}

func TestMemoryStoreIdempotencyKey(t *testing.T) {
	store := NewMemoryStore()
	accounts := store.Accounts()
	ctx := context.Background()

	if err := accounts.Create(ctx, &models.Account{Name: "Cash"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if _, err := accounts.RecordOperation(ctx, "Cash", &models.Operation{Size: 10, IdempotencyKey: "1:1"}); err != nil {
		t.Fatalf("first record failed: %v", err)
	}
	account, err := accounts.RecordOperation(ctx, "Cash", &models.Operation{Size: 10, IdempotencyKey: "1:1"})
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	if account.Balance != 10 {
		t.Fatalf("redelivery must not change balance, got %d", account.Balance)
	}

	if _, err := accounts.RecordOperation(ctx, "Missing", &models.Operation{Size: 1}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStoreListOperationsFiltersAndOrders(t *testing.T) {
	store := NewMemoryStore()
	accounts := store.Accounts()
	ctx := context.Background()
	now := time.Date(2024, time.May, 10, 12, 0, 0, 0, time.UTC)

	if err := accounts.Create(ctx, &models.Account{Name: "Acct"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	for _, op := range []*models.Operation{
		{Size: 1, CreatedAt: now.Add(-24 * time.Hour)},
		{Size: 2, CreatedAt: now.Add(-10 * 24 * time.Hour)},
		{Size: 3, CreatedAt: now.Add(-48 * time.Hour)},
	} {
		if _, err := accounts.RecordOperation(ctx, "Acct", op); err != nil {
			t.Fatalf("RecordOperation failed: %v", err)
		}
	}

	ops, err := accounts.ListOperations(ctx, "Acct", now.Add(-7*24*time.Hour))
	if err != nil {
		t.Fatalf("ListOperations failed: %v", err)
	}
	if len(ops) != 2 {
		t.Fatalf("unexpected count: got %d, want %d", len(ops), 2)
	}
	if ops[0].Size != 3 || ops[1].Size != 1 {
		t.Fatalf("expected oldest first, got sizes %d, %d", ops[0].Size, ops[1].Size)
	}
}

func TestMemoryStoreRejectsBalanceOverflow(t *testing.T) {
	store := NewMemoryStore()
	accounts := store.Accounts()
	ctx := context.Background()

	if err := accounts.Create(ctx, &models.Account{Name: "Big", ChatID: -1}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := accounts.RecordOperation(ctx, "Big", &models.Operation{Size: math.MaxInt64}); err != nil {
		t.Fatalf("RecordOperation failed: %v", err)
	}

	_, err := accounts.RecordOperation(ctx, "Big", &models.Operation{Size: 1, IdempotencyKey: "-1:2"})
	if !errors.Is(err, ErrBalanceOverflow) {
		t.Fatalf("expected ErrBalanceOverflow, got %v", err)
	}

	account, err := accounts.GetByName(ctx, "Big")
	if err != nil {
		t.Fatalf("GetByName failed: %v", err)
	}
	if account.Balance != math.MaxInt64 || account.Version != 1 {
		t.Fatalf("rejected operation changed the account: %+v", account)
	}

	// 被拒绝的去重键不应占位
	if _, err := accounts.RecordOperation(ctx, "Big", &models.Operation{Size: -1, IdempotencyKey: "-1:2"}); err != nil {
		t.Fatalf("retry with same key failed: %v", err)
	}
	_, _, ops := store.Counts()
	if ops != 2 {
		t.Fatalf("expected 2 operations, got %d", ops)
	}
}
