package service

import (
	"context"

	"ledger_bot/internal/telegram/models"
)

// LedgerService 记账业务接口，Chat/Account/Operation 的唯一写入方
type LedgerService interface {
	// CreateChat 注册会话，已存在时返回 ChatAlreadyExists
	CreateChat(ctx context.Context, chatID int64) (*models.Chat, error)

	// CreateAccount 创建余额为 0 的账户，名称已被占用时返回 AccountAlreadyExists
	CreateAccount(ctx context.Context, chatID int64, name, description string) (*models.Account, error)

	// RecordOperation 原子地追加操作并更新余额，返回更新后的账户
	// 账户不存在时返回 AccountNotFound
	RecordOperation(ctx context.Context, in OperationInput) (*models.Account, error)

	// GetAccount 从存储读取账户
	GetAccount(ctx context.Context, name string) (*models.Account, error)

	// LookupAccount 优先读取余额缓存，未命中时回源存储
	LookupAccount(ctx context.Context, name string) (*models.Account, error)

	// GetOperations 返回最近 sinceDays 天内的操作，按时间升序
	GetOperations(ctx context.Context, name string, sinceDays int) ([]*models.Operation, error)
}

// OperationInput 记账请求
type OperationInput struct {
	ChatID         int64
	AccountName    string
	Size           int64
	Description    string
	Author         string
	IdempotencyKey string // 为空时不去重
}

// BalanceCache 账户余额缓存（写穿）
type BalanceCache interface {
	Put(ctx context.Context, account *models.Account) (bool, error)
	Get(ctx context.Context, name string) (*models.Account, bool, error)
	Invalidate(ctx context.Context, name string) error
}

// EventPublisher 账务事件发布
type EventPublisher interface {
	PublishOperationRecorded(ctx context.Context, account *models.Account, op *models.Operation) error
}
