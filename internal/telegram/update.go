package telegram

import (
	"strconv"

	"ledger_bot/internal/telegram/models"

	botModels "github.com/go-telegram/bot/models"
)

// EventFromUpdate 将 Telegram Update 转换为入站消息
// 只处理带文本的新消息，其他类型返回 false
func EventFromUpdate(update *botModels.Update) (models.Event, bool) {
	if update == nil || update.Message == nil {
		return models.Event{}, false
	}

	msg := update.Message
	if msg.Text == "" {
		return models.Event{}, false
	}

	ev := models.Event{
		ChatID:    msg.Chat.ID,
		MessageID: msg.ID,
		Text:      msg.Text,
	}

	switch {
	case msg.From != nil:
		ev.SenderID = strconv.FormatInt(msg.From.ID, 10)
	case msg.SenderChat != nil:
		ev.SenderID = strconv.FormatInt(msg.SenderChat.ID, 10)
	}

	if len(msg.Entities) > 0 {
		ev.Entities = make([]models.Entity, 0, len(msg.Entities))
		for _, e := range msg.Entities {
			ev.Entities = append(ev.Entities, models.Entity{
				Type:   string(e.Type),
				Offset: e.Offset,
				Length: e.Length,
			})
		}
	}

	return ev, true
}
