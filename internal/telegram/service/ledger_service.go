package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ledger_bot/internal/logger"
	"ledger_bot/internal/telegram/models"
	"ledger_bot/internal/telegram/repository"
)

// LedgerServiceImpl 记账服务实现
type LedgerServiceImpl struct {
	chatRepo    repository.ChatRepository
	accountRepo repository.AccountRepository
	cache       BalanceCache
	publisher   EventPublisher
	nowFunc     func() time.Time
}

// Option 记账服务可选项
type Option func(*LedgerServiceImpl)

// WithBalanceCache 启用余额写穿缓存
func WithBalanceCache(cache BalanceCache) Option {
	return func(s *LedgerServiceImpl) {
		s.cache = cache
	}
}

// WithEventPublisher 启用操作事件发布
func WithEventPublisher(publisher EventPublisher) Option {
	return func(s *LedgerServiceImpl) {
		s.publisher = publisher
	}
}

// WithNowFunc 自定义时间函数（用于测试）
func WithNowFunc(now func() time.Time) Option {
	return func(s *LedgerServiceImpl) {
		if now != nil {
			s.nowFunc = now
		}
	}
}

// NewLedgerService 创建记账服务
func NewLedgerService(chatRepo repository.ChatRepository, accountRepo repository.AccountRepository, opts ...Option) *LedgerServiceImpl {
	s := &LedgerServiceImpl{
		chatRepo:    chatRepo,
		accountRepo: accountRepo,
		nowFunc:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateChat 注册会话（依赖唯一索引，重复投递的 /start 只会成功一次）
func (s *LedgerServiceImpl) CreateChat(ctx context.Context, chatID int64) (*models.Chat, error) {
	chat := &models.Chat{
		ChatID:    chatID,
		CreatedAt: s.nowFunc(),
	}

	if err := s.chatRepo.Create(ctx, chat); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			logger.WithChat(chatID).Info("Chat already started")
			return nil, models.ErrChatAlreadyExists()
		}
		logger.WithChat(chatID).Errorf("Failed to create chat: %v", err)
		return nil, fmt.Errorf("failed to create chat: %w", err)
	}

	logger.WithChat(chatID).Info("Chat started")
	return chat, nil
}

// CreateAccount 创建账户，账户名全局唯一
func (s *LedgerServiceImpl) CreateAccount(ctx context.Context, chatID int64, name, description string) (*models.Account, error) {
	account := &models.Account{
		Name:        name,
		ChatID:      chatID,
		Description: description,
	}

	if err := s.accountRepo.Create(ctx, account); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			logger.WithChat(chatID).Infof("Account %q already exists", name)
			return nil, models.ErrAccountAlreadyExists(name)
		}
		logger.WithChat(chatID).Errorf("Failed to create account %q: %v", name, err)
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	s.writeThrough(ctx, account)
	logger.WithChat(chatID).Infof("Account %q created", name)
	return account, nil
}

// RecordOperation 记入一笔收支
// 同一去重键的重复投递不会再次记入，直接返回当前账户
func (s *LedgerServiceImpl) RecordOperation(ctx context.Context, in OperationInput) (*models.Account, error) {
	op := &models.Operation{
		ChatID:         in.ChatID,
		AccountName:    in.AccountName,
		Size:           in.Size,
		Description:    in.Description,
		Author:         in.Author,
		IdempotencyKey: in.IdempotencyKey,
		CreatedAt:      s.nowFunc(),
	}

	account, err := s.accountRepo.RecordOperation(ctx, in.AccountName, op)
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrNotFound):
		return nil, models.ErrAccountNotFound(in.AccountName)
	case errors.Is(err, repository.ErrDuplicate) && account != nil:
		logger.WithChat(in.ChatID).Infof("Operation %s already recorded for account %q, skipping", in.IdempotencyKey, in.AccountName)
		return account, nil
	default:
		logger.WithChat(in.ChatID).Errorf("Failed to record operation on account %q: %v", in.AccountName, err)
		return nil, fmt.Errorf("failed to record operation: %w", err)
	}

	s.writeThrough(ctx, account)
	if s.publisher != nil {
		if err := s.publisher.PublishOperationRecorded(ctx, account, op); err != nil {
			logger.L().Warnf("Failed to publish operation for account %q: %v", account.Name, err)
		}
	}

	logger.WithChat(in.ChatID).Infof("Operation %+d recorded on account %q by %s, balance=%d", op.Size, account.Name, op.Author, account.Balance)
	return account, nil
}

// GetAccount 从存储读取账户
func (s *LedgerServiceImpl) GetAccount(ctx context.Context, name string) (*models.Account, error) {
	account, err := s.accountRepo.GetByName(ctx, name)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, models.ErrAccountNotFound(name)
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return account, nil
}

// LookupAccount 缓存优先读取账户，缓存异常时回源存储
func (s *LedgerServiceImpl) LookupAccount(ctx context.Context, name string) (*models.Account, error) {
	if s.cache != nil {
		account, ok, err := s.cache.Get(ctx, name)
		if err != nil {
			logger.L().Warnf("Balance cache read failed for %q: %v", name, err)
		} else if ok {
			return account, nil
		}
	}

	account, err := s.GetAccount(ctx, name)
	if err != nil {
		return nil, err
	}
	s.writeThrough(ctx, account)
	return account, nil
}

// GetOperations 返回 created_at 晚于 now-sinceDays 天的操作
// sinceDays 小于 1 时取默认值，大于 MaxStatementDays 时截断
func (s *LedgerServiceImpl) GetOperations(ctx context.Context, name string, sinceDays int) ([]*models.Operation, error) {
	if sinceDays < 1 {
		sinceDays = models.DefaultStatementDays
	}
	if sinceDays > models.MaxStatementDays {
		sinceDays = models.MaxStatementDays
	}

	if _, err := s.GetAccount(ctx, name); err != nil {
		return nil, err
	}

	since := s.nowFunc().AddDate(0, 0, -sinceDays)
	ops, err := s.accountRepo.ListOperations(ctx, name, since)
	if err != nil {
		return nil, fmt.Errorf("failed to list operations: %w", err)
	}
	return ops, nil
}

// writeThrough 写入缓存失败时删除缓存项，避免读到旧余额
func (s *LedgerServiceImpl) writeThrough(ctx context.Context, account *models.Account) {
	if s.cache == nil || account == nil {
		return
	}
	if _, err := s.cache.Put(ctx, account); err != nil {
		logger.L().Warnf("Balance cache write failed for %q: %v", account.Name, err)
		if err := s.cache.Invalidate(ctx, account.Name); err != nil {
			logger.L().Warnf("Balance cache invalidate failed for %q: %v", account.Name, err)
		}
	}
}
