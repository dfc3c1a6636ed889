package models

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// StatementTimeLayout 账单明细中的时间格式（日.月 时:分）
const StatementTimeLayout = "02.01 15:04"

// DefaultStatementDays 未指定时账单统计的天数
const DefaultStatementDays = 7

// MaxStatementDays 账单统计天数上限（约 100 年）
const MaxStatementDays = 36500

// Operation 账户的一条收支记录（只追加，创建后不可修改）
type Operation struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	AccountID      primitive.ObjectID `bson:"account_id" json:"account_id"`
	AccountName    string             `bson:"account_name" json:"account_name"`
	ChatID         int64              `bson:"chat_id,omitempty" json:"chat_id,omitempty"`
	Size           int64              `bson:"size" json:"size"`                                           // 金额（正数为收入，负数为支出）
	Description    string             `bson:"description" json:"description"`                             // 备注
	Author         string             `bson:"author" json:"author"`                                       // 发送者 ID（仅用于审计）
	IdempotencyKey string             `bson:"idempotency_key,omitempty" json:"idempotency_key,omitempty"` // 重复投递去重键
	BalanceAfter   int64              `bson:"balance_after" json:"balance_after"`                         // 记入后的余额
	CreatedAt      time.Time          `bson:"created_at" json:"created_at"`
}

// StatementLine 格式化为账单中的一行，例如 "19.10 14:05: +150 - Weekly shop"
func (o *Operation) StatementLine(loc *time.Location) string {
	createdAt := o.CreatedAt
	if loc != nil {
		createdAt = createdAt.In(loc)
	}
	return fmt.Sprintf("%s: %+d - %s", createdAt.Format(StatementTimeLayout), o.Size, o.Description)
}

// IdempotencyKeyFor 根据会话与消息 ID 生成去重键，messageID 为 0 时不去重
func IdempotencyKeyFor(chatID int64, messageID int) string {
	if messageID == 0 {
		return ""
	}
	return fmt.Sprintf("%d:%d", chatID, messageID)
}
