package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ledger_bot/internal/telegram/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"gorm.io/gorm"
)

// 关系型存储的表结构（MySQL，通过 gorm 访问）
// ID 沿用 ObjectID 的十六进制形式，保证各存储驱动下 ID 格式一致

type chatRow struct {
	ID        string    `gorm:"primaryKey;type:char(24)"`
	ChatID    int64     `gorm:"uniqueIndex;not null"`
	CreatedAt time.Time `gorm:"type:datetime(6);not null"`
}

func (chatRow) TableName() string { return "chats" }

type accountRow struct {
	ID          string    `gorm:"primaryKey;type:char(24)"`
	Name        string    `gorm:"type:varchar(191) CHARACTER SET utf8mb4 COLLATE utf8mb4_bin;uniqueIndex;not null"`
	ChatID      int64     `gorm:"index;not null"`
	Description string    `gorm:"type:text"`
	Balance     int64     `gorm:"not null;default:0"`
	Version     int64     `gorm:"not null;default:0"`
	CreatedAt   time.Time `gorm:"type:datetime(6);not null"`
	UpdatedAt   time.Time `gorm:"type:datetime(6);not null"`
}

func (accountRow) TableName() string { return "accounts" }

type operationRow struct {
	ID             string    `gorm:"primaryKey;type:char(24)"`
	AccountID      string    `gorm:"type:char(24);not null"`
	AccountName    string    `gorm:"type:varchar(191) CHARACTER SET utf8mb4 COLLATE utf8mb4_bin;index:idx_operations_account_created,priority:1;not null"`
	ChatID         int64     `gorm:"not null;default:0"`
	Size           int64     `gorm:"not null"`
	Description    string    `gorm:"type:text"`
	Author         string    `gorm:"type:varchar(64)"`
	IdempotencyKey *string   `gorm:"type:varchar(64);uniqueIndex"`
	BalanceAfter   int64     `gorm:"not null"`
	CreatedAt      time.Time `gorm:"type:datetime(6);index:idx_operations_account_created,priority:2;not null"`
}

func (operationRow) TableName() string { return "operations" }

func (r *accountRow) toModel() *models.Account {
	id, _ := primitive.ObjectIDFromHex(r.ID)
	return &models.Account{
		ID:          id,
		Name:        r.Name,
		ChatID:      r.ChatID,
		Description: r.Description,
		Balance:     r.Balance,
		Version:     r.Version,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func (r *operationRow) toModel() *models.Operation {
	id, _ := primitive.ObjectIDFromHex(r.ID)
	accountID, _ := primitive.ObjectIDFromHex(r.AccountID)
	op := &models.Operation{
		ID:           id,
		AccountID:    accountID,
		AccountName:  r.AccountName,
		ChatID:       r.ChatID,
		Size:         r.Size,
		Description:  r.Description,
		Author:       r.Author,
		BalanceAfter: r.BalanceAfter,
		CreatedAt:    r.CreatedAt,
	}
	if r.IdempotencyKey != nil {
		op.IdempotencyKey = *r.IdempotencyKey
	}
	return op
}

// GormChatRepository 会话数据访问层（gorm 实现）
type GormChatRepository struct {
	db *gorm.DB
}

// NewGormChatRepository 创建会话 Repository
func NewGormChatRepository(db *gorm.DB) ChatRepository {
	return &GormChatRepository{db: db}
}

// Create 创建会话，依赖 chat_id 唯一索引
func (r *GormChatRepository) Create(ctx context.Context, chat *models.Chat) error {
	if chat.ID.IsZero() {
		chat.ID = primitive.NewObjectID()
	}
	if chat.CreatedAt.IsZero() {
		chat.CreatedAt = time.Now()
	}

	row := &chatRow{ID: chat.ID.Hex(), ChatID: chat.ChatID, CreatedAt: chat.CreatedAt}
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create chat: %w", err)
	}
	return nil
}

// EnsureIndexes 自动迁移表结构（包含唯一索引）
func (r *GormChatRepository) EnsureIndexes(ctx context.Context) error {
	if err := r.db.WithContext(ctx).AutoMigrate(&chatRow{}); err != nil {
		return fmt.Errorf("failed to migrate chats: %w", err)
	}
	return nil
}

// GormAccountRepository 账户与操作日志数据访问层（gorm 实现）
type GormAccountRepository struct {
	db *gorm.DB
}

// NewGormAccountRepository 创建账户 Repository
func NewGormAccountRepository(db *gorm.DB) AccountRepository {
	return &GormAccountRepository{db: db}
}

// Create 创建账户（余额为 0）
func (r *GormAccountRepository) Create(ctx context.Context, account *models.Account) error {
	now := time.Now()
	account.ID = primitive.NewObjectID()
	account.Balance = 0
	account.Version = 0
	account.CreatedAt = now
	account.UpdatedAt = now

	row := &accountRow{
		ID:          account.ID.Hex(),
		Name:        account.Name,
		ChatID:      account.ChatID,
		Description: account.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

// GetByName 根据账户名获取账户
func (r *GormAccountRepository) GetByName(ctx context.Context, name string) (*models.Account, error) {
	var row accountRow
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return row.toModel(), nil
}

// RecordOperation 在同一事务内累加余额并插入操作
// UPDATE ... SET balance = balance + ? 持有行锁，同一账户的并发写入被串行化
func (r *GormAccountRepository) RecordOperation(ctx context.Context, accountName string, op *models.Operation) (*models.Account, error) {
	now := time.Now()
	if op.CreatedAt.IsZero() {
		op.CreatedAt = now
	}

	var updated *models.Account
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&accountRow{}).
			Where("name = ?", accountName).
			Updates(map[string]interface{}{
				"balance":    gorm.Expr("balance + ?", op.Size),
				"version":    gorm.Expr("version + 1"),
				"updated_at": now,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}

		var row accountRow
		if err := tx.Where("name = ?", accountName).First(&row).Error; err != nil {
			return err
		}
		updated = row.toModel()

		op.ID = primitive.NewObjectID()
		op.AccountID = updated.ID
		op.AccountName = updated.Name
		op.BalanceAfter = updated.Balance

		opRow := &operationRow{
			ID:           op.ID.Hex(),
			AccountID:    op.AccountID.Hex(),
			AccountName:  op.AccountName,
			ChatID:       op.ChatID,
			Size:         op.Size,
			Description:  op.Description,
			Author:       op.Author,
			BalanceAfter: op.BalanceAfter,
			CreatedAt:    op.CreatedAt,
		}
		if op.IdempotencyKey != "" {
			key := op.IdempotencyKey
			opRow.IdempotencyKey = &key
		}

		if err := tx.Create(opRow).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrDuplicate
			}
			return err
		}
		return nil
	})

	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return nil, ErrNotFound
		case errors.Is(err, ErrDuplicate):
			current, getErr := r.GetByName(ctx, accountName)
			if getErr != nil {
				return nil, getErr
			}
			return current, ErrDuplicate
		}
		return nil, fmt.Errorf("record operation transaction failed: %w", err)
	}

	return updated, nil
}

// ListOperations 查询账户在 since 之后的操作（按时间升序）
func (r *GormAccountRepository) ListOperations(ctx context.Context, accountName string, since time.Time) ([]*models.Operation, error) {
	var rows []operationRow
	err := r.db.WithContext(ctx).
		Where("account_name = ? AND created_at > ?", accountName, since).
		Order("created_at ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query operations: %w", err)
	}

	operations := make([]*models.Operation, 0, len(rows))
	for i := range rows {
		operations = append(operations, rows[i].toModel())
	}
	return operations, nil
}

// EnsureIndexes 自动迁移表结构（包含唯一索引）
func (r *GormAccountRepository) EnsureIndexes(ctx context.Context) error {
	if err := r.db.WithContext(ctx).AutoMigrate(&accountRow{}, &operationRow{}); err != nil {
		return fmt.Errorf("failed to migrate accounts: %w", err)
	}
	return nil
}
