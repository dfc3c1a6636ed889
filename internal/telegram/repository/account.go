package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ledger_bot/internal/logger"
	"ledger_bot/internal/telegram/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

// MongoAccountRepository 账户与操作日志数据访问层（MongoDB 实现）
type MongoAccountRepository struct {
	accountColl   *mongo.Collection
	operationColl *mongo.Collection
}

// NewMongoAccountRepository 创建账户 Repository
func NewMongoAccountRepository(db *mongo.Database) AccountRepository {
	return &MongoAccountRepository{
		accountColl:   db.Collection("accounts"),
		operationColl: db.Collection("operations"),
	}
}

// Create 创建账户（余额为 0）
func (r *MongoAccountRepository) Create(ctx context.Context, account *models.Account) error {
	now := time.Now()
	account.Balance = 0
	account.Version = 0
	account.CreatedAt = now
	account.UpdatedAt = now

	result, err := r.accountColl.InsertOne(ctx, account)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create account: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		account.ID = oid
	}
	return nil
}

// GetByName 根据账户名获取账户
func (r *MongoAccountRepository) GetByName(ctx context.Context, name string) (*models.Account, error) {
	var account models.Account
	err := r.accountColl.FindOne(ctx, bson.M{"name": name}).Decode(&account)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return &account, nil
}

// RecordOperation 追加操作并更新余额（事务）
func (r *MongoAccountRepository) RecordOperation(ctx context.Context, accountName string, op *models.Operation) (*models.Account, error) {
	client := r.accountColl.Database().Client()
	session, err := client.StartSession()
	if err != nil {
		return nil, fmt.Errorf("start mongo session: %w", err)
	}
	defer session.EndSession(ctx)

	txnOpts := options.Transaction().SetWriteConcern(writeconcern.Majority())
	result, err := session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		if op.IdempotencyKey != "" {
			existing, err := r.findByIdempotencyKey(sc, op.IdempotencyKey)
			if err != nil {
				return nil, err
			}
			if existing != nil {
				return nil, ErrDuplicate
			}
		}

		account, err := r.incrementBalance(sc, accountName, op.Size, 1)
		if err != nil {
			return nil, err
		}

		if err := r.insertOperation(sc, account, op); err != nil {
			return nil, err
		}
		return account, nil
	}, txnOpts)

	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return nil, ErrNotFound
		case errors.Is(err, ErrDuplicate):
			return r.currentForDuplicate(ctx, accountName)
		case isTransactionNotSupported(err):
			return r.recordWithoutTransaction(ctx, accountName, op)
		}
		return nil, fmt.Errorf("record operation transaction failed: %w", err)
	}

	account, _ := result.(*models.Account)
	if account == nil {
		return nil, errors.New("record operation transaction returned nil")
	}
	return account, nil
}

// recordWithoutTransaction 单机 MongoDB（不支持事务）时的降级路径
// $inc 本身是原子的，不会丢失并发更新；操作插入失败时回滚余额
func (r *MongoAccountRepository) recordWithoutTransaction(ctx context.Context, accountName string, op *models.Operation) (*models.Account, error) {
	if op.IdempotencyKey != "" {
		existing, err := r.findByIdempotencyKey(ctx, op.IdempotencyKey)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return r.currentForDuplicate(ctx, accountName)
		}
	}

	account, err := r.incrementBalance(ctx, accountName, op.Size, 1)
	if err != nil {
		return nil, err
	}

	if err := r.insertOperation(ctx, account, op); err != nil {
		if _, revertErr := r.incrementBalance(ctx, accountName, -op.Size, -1); revertErr != nil {
			logger.L().Errorf("Failed to revert balance of account %q after insert error: %v", accountName, revertErr)
		}
		if errors.Is(err, ErrDuplicate) {
			return r.currentForDuplicate(ctx, accountName)
		}
		return nil, fmt.Errorf("record operation failed (non-txn): %w", err)
	}

	return account, nil
}

func (r *MongoAccountRepository) incrementBalance(ctx context.Context, accountName string, delta, versionDelta int64) (*models.Account, error) {
	update := bson.M{
		"$inc": bson.M{
			"balance": delta,
			"version": versionDelta,
		},
		"$set": bson.M{
			"updated_at": time.Now(),
		},
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var account models.Account
	if err := r.accountColl.FindOneAndUpdate(ctx, bson.M{"name": accountName}, update, opts).Decode(&account); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update account balance failed: %w", err)
	}
	return &account, nil
}

func (r *MongoAccountRepository) insertOperation(ctx context.Context, account *models.Account, op *models.Operation) error {
	if op.CreatedAt.IsZero() {
		op.CreatedAt = time.Now()
	}
	op.AccountID = account.ID
	op.AccountName = account.Name
	op.BalanceAfter = account.Balance

	result, err := r.operationColl.InsertOne(ctx, op)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert operation failed: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		op.ID = oid
	}
	return nil
}

func (r *MongoAccountRepository) currentForDuplicate(ctx context.Context, accountName string) (*models.Account, error) {
	account, err := r.GetByName(ctx, accountName)
	if err != nil {
		return nil, err
	}
	return account, ErrDuplicate
}

func (r *MongoAccountRepository) findByIdempotencyKey(ctx context.Context, key string) (*models.Operation, error) {
	var op models.Operation
	err := r.operationColl.FindOne(ctx, bson.M{"idempotency_key": key}).Decode(&op)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query operation by idempotency key: %w", err)
	}
	return &op, nil
}

// ListOperations 查询账户在 since 之后的操作（按时间升序）
func (r *MongoAccountRepository) ListOperations(ctx context.Context, accountName string, since time.Time) ([]*models.Operation, error) {
	filter := bson.M{
		"account_name": accountName,
		"created_at": bson.M{
			"$gt": since,
		},
	}

	opts := options.Find().SetSort(bson.D{
		{Key: "created_at", Value: 1},
		{Key: "_id", Value: 1},
	})

	cursor, err := r.operationColl.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query operations: %w", err)
	}
	defer cursor.Close(ctx)

	var operations []*models.Operation
	if err := cursor.All(ctx, &operations); err != nil {
		return nil, fmt.Errorf("failed to decode operations: %w", err)
	}
	return operations, nil
}

// EnsureIndexes 确保索引存在
func (r *MongoAccountRepository) EnsureIndexes(ctx context.Context) error {
	accountIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "name", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "chat_id", Value: 1}},
		},
	}

	if _, err := r.accountColl.Indexes().CreateMany(ctx, accountIndexes); err != nil {
		return fmt.Errorf("create account indexes: %w", err)
	}

	operationIndexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "account_name", Value: 1},
				{Key: "created_at", Value: 1},
			},
		},
		{
			Keys:    bson.D{{Key: "idempotency_key", Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true),
		},
	}

	if _, err := r.operationColl.Indexes().CreateMany(ctx, operationIndexes); err != nil {
		return fmt.Errorf("create operation indexes: %w", err)
	}

	return nil
}

func isTransactionNotSupported(err error) bool {
	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) {
		if cmdErr.Code == 20 || strings.EqualFold(cmdErr.Name, "IllegalOperation") {
			return true
		}
		if strings.Contains(strings.ToLower(cmdErr.Message), "transaction numbers are only allowed on a replica set") {
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "transaction numbers are only allowed on a replica set")
}
