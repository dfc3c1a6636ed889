package repository

import (
	"context"
	"time"

	"ledger_bot/internal/telegram/models"
)

// ChatRepository 会话数据访问接口
type ChatRepository interface {
	// Create 创建会话，chat_id 已存在时返回 ErrDuplicate
	Create(ctx context.Context, chat *models.Chat) error

	// EnsureIndexes 确保索引存在
	EnsureIndexes(ctx context.Context) error
}

// AccountRepository 账户与操作日志数据访问接口
type AccountRepository interface {
	// Create 创建账户，name 已存在时返回 ErrDuplicate
	Create(ctx context.Context, account *models.Account) error

	// GetByName 根据账户名获取账户，不存在时返回 ErrNotFound
	GetByName(ctx context.Context, name string) (*models.Account, error)

	// RecordOperation 原子地追加操作并更新余额，返回更新后的账户
	//   - 账户不存在: ErrNotFound
	//   - op.IdempotencyKey 已记录: 返回当前账户和 ErrDuplicate，余额不变
	RecordOperation(ctx context.Context, accountName string, op *models.Operation) (*models.Account, error)

	// ListOperations 列出 created_at 晚于 since 的操作（按时间升序）
	ListOperations(ctx context.Context, accountName string, since time.Time) ([]*models.Operation, error)

	// EnsureIndexes 确保索引存在
	EnsureIndexes(ctx context.Context) error
}

// Pinger 存储健康检查
type Pinger interface {
	Ping(ctx context.Context) error
}
