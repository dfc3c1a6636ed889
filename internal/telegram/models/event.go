package models

// EntityTypeBotCommand Telegram 的 bot_command 实体类型
const EntityTypeBotCommand = "bot_command"

// Entity 消息中的实体标注（偏移与长度以 UTF-16 码元计）
type Entity struct {
	Type   string `json:"type"`
	Offset int    `json:"offset"`
	Length int    `json:"length"`
}

// Event 传输层交给核心处理的入站消息
type Event struct {
	ChatID    int64    // 会话 ID
	MessageID int      // 消息 ID（可选，用于重复投递去重）
	SenderID  string   // 发送者 ID
	Text      string   // 消息文本
	Entities  []Entity // 实体标注，没有时为空
}

// IdempotencyKey 返回该消息的去重键
func (e Event) IdempotencyKey() string {
	return IdempotencyKeyFor(e.ChatID, e.MessageID)
}
