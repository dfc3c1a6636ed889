package telegram

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"
	botModels "github.com/go-telegram/bot/models"
)

// MessageSender 发送消息的最小接口，*bot.Bot 满足该接口
type MessageSender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*botModels.Message, error)
}

// Notifier 通过 Telegram 回复会话（纯文本，不解析 HTML/Markdown）
type Notifier struct {
	sender  MessageSender
	limiter *RateLimiter
}

// NewNotifier 创建 Notifier，limiter 为 nil 时不限速
func NewNotifier(sender MessageSender, limiter *RateLimiter) *Notifier {
	return &Notifier{sender: sender, limiter: limiter}
}

// Notify 发送一条消息，失败不重试
func (n *Notifier) Notify(ctx context.Context, chatID int64, text string) error {
	if n.limiter != nil {
		if err := n.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("wait for send slot: %w", err)
		}
	}

	if _, err := n.sender.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	}); err != nil {
		return fmt.Errorf("failed to send message to chat %d: %w", chatID, err)
	}
	return nil
}
