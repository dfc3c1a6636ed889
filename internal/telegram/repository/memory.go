package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"ledger_bot/internal/telegram/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryStore 进程内存储（本地调试与测试使用）
// 所有读写由同一把互斥锁串行化，余额更新与操作追加在同一临界区内完成
type MemoryStore struct {
	mu         sync.Mutex
	chats      map[int64]*models.Chat
	accounts   map[string]*models.Account
	operations []*models.Operation
	keys       map[string]struct{}
	nowFunc    func() time.Time
}

// NewMemoryStore 创建空的内存存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		chats:    make(map[int64]*models.Chat),
		accounts: make(map[string]*models.Account),
		keys:     make(map[string]struct{}),
		nowFunc:  time.Now,
	}
}

// SetNowFunc 自定义时间函数（用于测试）
func (s *MemoryStore) SetNowFunc(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if now != nil {
		s.nowFunc = now
	}
}

// Chats 返回会话 Repository 视图
func (s *MemoryStore) Chats() ChatRepository {
	return &memoryChatRepository{store: s}
}

// Accounts 返回账户 Repository 视图
func (s *MemoryStore) Accounts() AccountRepository {
	return &memoryAccountRepository{store: s}
}

// Ping 内存存储始终可用
func (s *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Counts 返回各实体数量（用于测试断言唯一性）
func (s *MemoryStore) Counts() (chats, accounts, operations int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.chats), len(s.accounts), len(s.operations)
}

type memoryChatRepository struct {
	store *MemoryStore
}

func (r *memoryChatRepository) Create(ctx context.Context, chat *models.Chat) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.chats[chat.ChatID]; exists {
		return ErrDuplicate
	}
	if chat.ID.IsZero() {
		chat.ID = primitive.NewObjectID()
	}
	if chat.CreatedAt.IsZero() {
		chat.CreatedAt = s.nowFunc()
	}
	cp := *chat
	s.chats[chat.ChatID] = &cp
	return nil
}

func (r *memoryChatRepository) EnsureIndexes(ctx context.Context) error {
	return nil
}

type memoryAccountRepository struct {
	store *MemoryStore
}

func (r *memoryAccountRepository) Create(ctx context.Context, account *models.Account) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.accounts[account.Name]; exists {
		return ErrDuplicate
	}

	now := s.nowFunc()
	account.ID = primitive.NewObjectID()
	account.Balance = 0
	account.Version = 0
	account.CreatedAt = now
	account.UpdatedAt = now
	s.accounts[account.Name] = account.Clone()
	return nil
}

func (r *memoryAccountRepository) GetByName(ctx context.Context, name string) (*models.Account, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[name]
	if !ok {
		return nil, ErrNotFound
	}
	return account.Clone(), nil
}

func (r *memoryAccountRepository) RecordOperation(ctx context.Context, accountName string, op *models.Operation) (*models.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[accountName]
	if !ok {
		return nil, ErrNotFound
	}

	if op.IdempotencyKey != "" {
		if _, seen := s.keys[op.IdempotencyKey]; seen {
			return account.Clone(), ErrDuplicate
		}
	}

	// 与 MongoDB $inc、MySQL BIGINT 一致，溢出时拒绝而不是回绕
	balance := account.Balance + op.Size
	if (op.Size > 0 && balance < account.Balance) || (op.Size < 0 && balance > account.Balance) {
		return nil, ErrBalanceOverflow
	}
	if op.IdempotencyKey != "" {
		s.keys[op.IdempotencyKey] = struct{}{}
	}

	now := s.nowFunc()
	account.Balance = balance
	account.Version++
	account.UpdatedAt = now

	op.ID = primitive.NewObjectID()
	op.AccountID = account.ID
	op.AccountName = account.Name
	op.BalanceAfter = account.Balance
	if op.CreatedAt.IsZero() {
		op.CreatedAt = now
	}
	cp := *op
	s.operations = append(s.operations, &cp)

	return account.Clone(), nil
}

func (r *memoryAccountRepository) ListOperations(ctx context.Context, accountName string, since time.Time) ([]*models.Operation, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []*models.Operation
	for _, op := range s.operations {
		if op.AccountName != accountName || !op.CreatedAt.After(since) {
			continue
		}
		cp := *op
		result = append(result, &cp)
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (r *memoryAccountRepository) EnsureIndexes(ctx context.Context) error {
	return nil
}
