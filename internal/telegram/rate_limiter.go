package telegram

import (
	"context"
	"sync"
	"time"
)

// RateLimiter Token Bucket 速率限制器
// 控制出站消息频率，避免触发 Telegram API 的 429
type RateLimiter struct {
	tokens   chan struct{}
	stopCh   chan struct{}
	stopOnce sync.Once
	interval time.Duration
}

// NewRateLimiter 创建速率限制器，ratePerSecond < 1 时按 1 处理
func NewRateLimiter(ratePerSecond int) *RateLimiter {
	if ratePerSecond < 1 {
		ratePerSecond = 1
	}

	limiter := &RateLimiter{
		tokens:   make(chan struct{}, ratePerSecond),
		stopCh:   make(chan struct{}),
		interval: time.Second / time.Duration(ratePerSecond),
	}

	for i := 0; i < ratePerSecond; i++ {
		limiter.tokens <- struct{}{}
	}

	go limiter.refill()
	return limiter
}

// Wait 阻塞直到获取令牌或上下文取消
func (r *RateLimiter) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-r.tokens:
		return nil
	}
}

func (r *RateLimiter) refill() {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			select {
			case r.tokens <- struct{}{}:
			default:
				// 桶已满
			}
		}
	}
}

// Close 停止补充令牌，可重复调用
func (r *RateLimiter) Close() {
	r.stopOnce.Do(func() { close(r.stopCh) })
}
