package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Chat 已启用 Bot 的会话（首次 /start 时创建，之后不再修改）
type Chat struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	ChatID    int64              `bson:"chat_id" json:"chat_id"` // Telegram Chat ID（唯一）
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
}
