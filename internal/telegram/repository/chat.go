package repository

import (
	"context"
	"fmt"
	"time"

	"ledger_bot/internal/telegram/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoChatRepository 会话数据访问层（MongoDB 实现）
type MongoChatRepository struct {
	collection *mongo.Collection
}

// NewMongoChatRepository 创建会话 Repository
func NewMongoChatRepository(db *mongo.Database) ChatRepository {
	return &MongoChatRepository{
		collection: db.Collection("chats"),
	}
}

// Create 创建会话
// 唯一性由 chat_id 唯一索引保证，并发的重复 /start 只有一个能插入成功
func (r *MongoChatRepository) Create(ctx context.Context, chat *models.Chat) error {
	if chat.CreatedAt.IsZero() {
		chat.CreatedAt = time.Now()
	}

	result, err := r.collection.InsertOne(ctx, chat)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create chat: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		chat.ID = oid
	}
	return nil
}

// EnsureIndexes 确保索引存在
func (r *MongoChatRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "chat_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}

	if _, err := r.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create chat indexes: %w", err)
	}
	return nil
}
