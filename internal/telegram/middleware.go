package telegram

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"ledger_bot/internal/logger"
	"ledger_bot/internal/telegram/models"

	log "github.com/sirupsen/logrus"
)

// EventHandler 处理一条入站消息，返回错误表示需要重新投递
type EventHandler func(ctx context.Context, ev models.Event) error

// Middleware 包装 EventHandler
type Middleware func(next EventHandler) EventHandler

// Chain 按顺序套上中间件，第一个在最外层
func Chain(h EventHandler, middlewares ...Middleware) EventHandler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

// Recover 中间件：handler panic 时转换为错误
func Recover() Middleware {
	return func(next EventHandler) EventHandler {
		return func(ctx context.Context, ev models.Event) (err error) {
			defer func() {
				if r := recover(); r != nil {
					logger.WithChat(ev.ChatID).Errorf("Handler panic recovered: %v\n%s", r, debug.Stack())
					err = fmt.Errorf("handler panic: %v", r)
				}
			}()
			return next(ctx, ev)
		}
	}
}

// Timeout 中间件：限制单条消息的处理时长（存储 + 回复）
func Timeout(d time.Duration) Middleware {
	return func(next EventHandler) EventHandler {
		if d <= 0 {
			return next
		}
		return func(ctx context.Context, ev models.Event) error {
			ctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()
			return next(ctx, ev)
		}
	}
}

// Logging 中间件：记录每条消息的处理结果与耗时
func Logging() Middleware {
	return func(next EventHandler) EventHandler {
		return func(ctx context.Context, ev models.Event) error {
			start := time.Now()
			err := next(ctx, ev)

			entry := logger.L().WithFields(log.Fields{
				"chat_id":    ev.ChatID,
				"message_id": ev.MessageID,
				"sender_id":  ev.SenderID,
				"latency":    time.Since(start).String(),
			})
			if err != nil {
				entry.WithError(err).Warn("Message handling failed")
				return err
			}
			entry.Debug("Message handled")
			return nil
		}
	}
}
