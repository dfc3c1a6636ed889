package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Account 记账账户
//
// Balance 是物化值，始终等于该账户所有 Operation.Size 之和，
// 只能通过 RecordOperation 修改。
type Account struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name        string             `bson:"name" json:"name"`                                   // 账户名（全局唯一，区分大小写）
	ChatID      int64              `bson:"chat_id" json:"chat_id"`                             // 创建账户的会话
	Description string             `bson:"description,omitempty" json:"description,omitempty"` // 账户描述（可选）
	Balance     int64              `bson:"balance" json:"balance"`                             // 当前余额
	Version     int64              `bson:"version" json:"version"`                             // 已记入的操作数量，用于缓存写入排序
	CreatedAt   time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time          `bson:"updated_at" json:"updated_at"`
}

// Clone 返回账户的值拷贝
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	cp := *a
	return &cp
}
