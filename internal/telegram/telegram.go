package telegram

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"ledger_bot/internal/logger"

	"github.com/go-telegram/bot"
	botModels "github.com/go-telegram/bot/models"
)

// 更新接收模式
const (
	ModePolling = "polling"
	ModeWebhook = "webhook"
)

// Config Telegram Bot 配置
type Config struct {
	Token             string // Bot Token
	Mode              string // polling 或 webhook
	WebhookURL        string // webhook 模式下注册给 Telegram 的地址
	WebhookSecret     string // X-Telegram-Bot-Api-Secret-Token
	Debug             bool   // 是否开启调试模式
	WorkerCount       int    // polling 模式 worker 数
	WorkerQueueSize   int    // polling 模式队列大小
	SendRatePerSecond int    // 出站消息速率上限
}

// Bot Telegram Bot 服务
// polling 模式下拉取更新并交给工作池；webhook 模式下只负责注册 webhook，
// 更新由 HTTP 服务接收
type Bot struct {
	bot        *bot.Bot
	mode       string
	webhookURL string
	secret     string
	handler    EventHandler
	workerPool *WorkerPool
	limiter    *RateLimiter
	notifier   *Notifier
	startTime  atomic.Value
	running    atomic.Bool
}

// New 创建 Telegram Bot 实例
// polling 模式需要在 Start 之前通过 SetHandler 设置消息处理函数
func New(cfg Config) (*Bot, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("telegram token cannot be empty")
	}
	if cfg.Mode == "" {
		cfg.Mode = ModePolling
	}
	if cfg.Mode != ModePolling && cfg.Mode != ModeWebhook {
		return nil, fmt.Errorf("unknown telegram mode %q", cfg.Mode)
	}
	if cfg.Mode == ModeWebhook && cfg.WebhookURL == "" {
		return nil, fmt.Errorf("webhook url cannot be empty in webhook mode")
	}

	telegramBot := &Bot{
		mode:       cfg.Mode,
		webhookURL: cfg.WebhookURL,
		secret:     cfg.WebhookSecret,
		limiter:    NewRateLimiter(cfg.SendRatePerSecond),
	}

	opts := []bot.Option{
		bot.WithDefaultHandler(telegramBot.defaultHandler),
	}
	if cfg.Debug {
		opts = append(opts, bot.WithDebug())
	}

	b, err := bot.New(cfg.Token, opts...)
	if err != nil {
		telegramBot.limiter.Close()
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	telegramBot.bot = b
	telegramBot.notifier = NewNotifier(b, telegramBot.limiter)

	if cfg.Mode == ModePolling {
		telegramBot.workerPool = NewWorkerPool(cfg.WorkerCount, cfg.WorkerQueueSize)
	}

	logger.L().Infof("Telegram bot initialized successfully (mode=%s)", cfg.Mode)
	return telegramBot, nil
}

// SetHandler 设置 polling 模式的消息处理函数
func (b *Bot) SetHandler(h EventHandler) {
	b.handler = h
}

// Notifier 返回回复会话用的 Notifier
func (b *Bot) Notifier() *Notifier {
	return b.notifier
}

// Start 启动 Bot（阻塞直到 ctx 取消）
func (b *Bot) Start(ctx context.Context) error {
	b.startTime.Store(time.Now())
	b.running.Store(true)
	defer b.running.Store(false)

	switch b.mode {
	case ModeWebhook:
		return b.runWebhook(ctx)
	default:
		return b.runPolling(ctx)
	}
}

func (b *Bot) runPolling(ctx context.Context) error {
	if b.handler == nil {
		return fmt.Errorf("event handler is not set")
	}

	// 存在 webhook 时 getUpdates 会失败
	if _, err := b.bot.DeleteWebhook(ctx, &bot.DeleteWebhookParams{}); err != nil {
		return fmt.Errorf("failed to delete webhook before polling: %w", err)
	}

	logger.L().Info("Starting Telegram bot in polling mode...")
	b.bot.Start(ctx)
	b.workerPool.Shutdown()
	logger.L().Info("Telegram bot stopped")
	return nil
}

func (b *Bot) runWebhook(ctx context.Context) error {
	ok, err := b.bot.SetWebhook(ctx, &bot.SetWebhookParams{
		URL:            b.webhookURL,
		SecretToken:    b.secret,
		AllowedUpdates: []string{"message"},
	})
	if err != nil {
		return fmt.Errorf("failed to set webhook: %w", err)
	}
	if !ok {
		return fmt.Errorf("telegram refused webhook %s", b.webhookURL)
	}

	logger.L().Infof("Webhook registered: %s", b.webhookURL)
	<-ctx.Done()
	logger.L().Info("Telegram bot stopped")
	return nil
}

// Stop 释放限速器等资源（在 Start 返回之后调用）
func (b *Bot) Stop(ctx context.Context) error {
	logger.L().Info("Stopping Telegram bot...")
	if b.workerPool != nil {
		b.workerPool.Shutdown()
	}
	b.limiter.Close()
	return nil
}

// defaultHandler polling 模式下每条更新都进入这里
func (b *Bot) defaultHandler(ctx context.Context, _ *bot.Bot, update *botModels.Update) {
	ev, ok := EventFromUpdate(update)
	if !ok {
		return
	}
	if b.workerPool == nil || b.handler == nil {
		return
	}

	// bot 传入的 ctx 随 Start 的 ctx 一起取消，任务需要在关闭时处理完
	b.workerPool.Submit(Task{
		Ctx:     context.WithoutCancel(ctx),
		Event:   ev,
		Handler: b.handler,
	})
}
