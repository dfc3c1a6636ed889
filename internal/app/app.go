package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ledger_bot/internal/cache"
	"ledger_bot/internal/config"
	"ledger_bot/internal/events"
	"ledger_bot/internal/logger"
	"ledger_bot/internal/mongo"
	"ledger_bot/internal/mysql"
	"ledger_bot/internal/server"
	"ledger_bot/internal/telegram"
	"ledger_bot/internal/telegram/command"
	"ledger_bot/internal/telegram/dispatcher"
	"ledger_bot/internal/telegram/repository"
	"ledger_bot/internal/telegram/service"

	"github.com/go-redis/redis/v8"
	"golang.org/x/sync/errgroup"
)

// App 应用服务容器
// 负责管理所有服务的生命周期（初始化、运行、关闭）
type App struct {
	MongoDB     *mongo.Client
	MySQL       *mysql.Client
	Redis       *redis.Client
	Publisher   *events.KafkaPublisher
	Ledger      *service.LedgerServiceImpl
	TelegramBot *telegram.Bot
	HTTPServer  *server.Server
}

// storage 所选驱动的 Repository
type storage struct {
	chats    repository.ChatRepository
	accounts repository.AccountRepository
	pinger   repository.Pinger
}

// New 初始化应用及其所有服务
// 任何服务初始化失败都会清理已初始化的服务并返回错误
func New(cfg *config.Config) (*App, error) {
	app := &App{}

	store, err := app.initStorage(cfg)
	if err != nil {
		_ = app.Close(context.Background())
		return nil, err
	}

	indexCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := store.chats.EnsureIndexes(indexCtx); err != nil {
		_ = app.Close(context.Background())
		return nil, fmt.Errorf("failed to ensure chat indexes: %w", err)
	}
	if err := store.accounts.EnsureIndexes(indexCtx); err != nil {
		_ = app.Close(context.Background())
		return nil, fmt.Errorf("failed to ensure account indexes: %w", err)
	}
	logger.L().Debug("Store indexes ensured")

	opts, err := app.initSideEffects(cfg)
	if err != nil {
		_ = app.Close(context.Background())
		return nil, err
	}
	app.Ledger = service.NewLedgerService(store.chats, store.accounts, opts...)

	app.TelegramBot, err = telegram.New(telegram.Config{
		Token:             cfg.TelegramToken,
		Mode:              cfg.Telegram.Mode,
		WebhookURL:        cfg.Telegram.WebhookURL,
		WebhookSecret:     cfg.Telegram.WebhookSecret,
		Debug:             cfg.Telegram.Debug,
		WorkerCount:       cfg.Telegram.WorkerCount,
		WorkerQueueSize:   cfg.Telegram.WorkerQueueSize,
		SendRatePerSecond: cfg.Telegram.SendRatePerSecond,
	})
	if err != nil {
		_ = app.Close(context.Background())
		return nil, fmt.Errorf("init Telegram bot failed: %w", err)
	}

	d := dispatcher.New(app.Ledger, command.DefaultRegistry(), app.TelegramBot.Notifier(), cfg.Location())
	handler := telegram.Chain(d.Handle,
		telegram.Recover(),
		telegram.Logging(),
		telegram.Timeout(cfg.HTTP.HandlerTimeout),
	)
	app.TelegramBot.SetHandler(handler)

	deps := server.Deps{
		Ledger:    app.Ledger,
		Store:     store.pinger,
		BotStatus: app.TelegramBot.Status,
	}
	if cfg.Telegram.Mode == config.ModeWebhook {
		deps.EventHandler = handler
		deps.WebhookSecret = cfg.Telegram.WebhookSecret
	}
	app.HTTPServer = server.New(cfg.HTTP.Addr, server.SetupRouter(deps))

	logger.L().Info("Application initialized successfully")
	return app, nil
}

func (a *App) initStorage(cfg *config.Config) (*storage, error) {
	switch cfg.Store.Driver {
	case config.StoreMySQL:
		client, err := mysql.NewClient(mysql.Config{DSN: cfg.Store.MySQLDSN, MaxOpenConns: 20, MaxIdleConns: 5})
		if err != nil {
			return nil, fmt.Errorf("init MySQL failed: %w", err)
		}
		a.MySQL = client
		logger.L().Info("MySQL initialized successfully")
		return &storage{
			chats:    repository.NewGormChatRepository(client.DB),
			accounts: repository.NewGormAccountRepository(client.DB),
			pinger:   client,
		}, nil

	case config.StoreMemory:
		mem := repository.NewMemoryStore()
		logger.L().Warn("Using in-memory store, data will be lost on restart")
		return &storage{chats: mem.Chats(), accounts: mem.Accounts(), pinger: mem}, nil

	default:
		client, err := mongo.NewClient(mongo.Config{URI: cfg.Store.MongoURI, Database: cfg.Store.MongoDBName})
		if err != nil {
			return nil, fmt.Errorf("init MongoDB failed: %w", err)
		}
		a.MongoDB = client
		logger.L().Info("MongoDB initialized successfully")
		db := client.Database()
		return &storage{
			chats:    repository.NewMongoChatRepository(db),
			accounts: repository.NewMongoAccountRepository(db),
			pinger:   client,
		}, nil
	}
}

// initSideEffects 初始化可选的余额缓存与事件发布
func (a *App) initSideEffects(cfg *config.Config) ([]service.Option, error) {
	var opts []service.Option

	if cfg.Redis.Addr != "" {
		client, err := cache.NewRedisClient(cache.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, fmt.Errorf("init Redis failed: %w", err)
		}
		a.Redis = client
		opts = append(opts, service.WithBalanceCache(cache.NewBalanceCache(client, cfg.Redis.TTL)))
		logger.L().Info("Redis balance cache enabled")
	}

	if len(cfg.Kafka.Brokers) > 0 {
		publisher, err := events.NewKafkaPublisher(events.Config{Brokers: cfg.Kafka.Brokers, Topic: cfg.Kafka.Topic})
		if err != nil {
			return nil, fmt.Errorf("init Kafka failed: %w", err)
		}
		a.Publisher = publisher
		opts = append(opts, service.WithEventPublisher(publisher))
		logger.L().Infof("Kafka publisher enabled (topic=%s)", cfg.Kafka.Topic)
	}

	return opts, nil
}

// Run 同时运行 HTTP 服务与 Telegram Bot，任意一个出错时全部停止
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.HTTPServer.Run(gctx)
	})
	g.Go(func() error {
		return a.TelegramBot.Start(gctx)
	})

	return g.Wait()
}

// Close 优雅关闭所有服务
// 应该在应用退出时调用，确保资源正确释放
func (a *App) Close(ctx context.Context) error {
	var errs []error

	if a.TelegramBot != nil {
		if err := a.TelegramBot.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop Telegram bot failed: %w", err))
		}
	}
	if a.Publisher != nil {
		if err := a.Publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close Kafka publisher failed: %w", err))
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close Redis failed: %w", err))
		}
	}
	if a.MySQL != nil {
		if err := a.MySQL.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close MySQL failed: %w", err))
		}
	}
	if a.MongoDB != nil {
		if err := a.MongoDB.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close MongoDB failed: %w", err))
		}
	}

	return errors.Join(errs...)
}
