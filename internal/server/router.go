package server

import (
	"context"
	"net/http"
	"time"

	"ledger_bot/internal/telegram"
	"ledger_bot/internal/telegram/repository"
	"ledger_bot/internal/telegram/service"

	"github.com/gin-gonic/gin"
)

// WebhookPath Telegram webhook 路径
const WebhookPath = "/telegram/webhook"

// Deps 路由依赖
type Deps struct {
	Ledger        service.LedgerService
	EventHandler  telegram.EventHandler // 为空时不注册 webhook 路由
	WebhookSecret string
	Store         repository.Pinger
	BotStatus     func() telegram.Status // 可选
}

// SetupRouter 配置路由
func SetupRouter(deps Deps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(RecoveryMiddleware())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware())

	if deps.EventHandler != nil {
		webhook := NewWebhookHandler(deps.EventHandler, deps.WebhookSecret)
		r.POST(WebhookPath, webhook.Handle)
	}

	api := r.Group("/api/v1")
	{
		accounts := NewAccountHandler(deps.Ledger)
		account := api.Group("/accounts")
		{
			account.POST("", accounts.CreateAccount)
			account.GET("/:name", accounts.GetAccount)
			account.GET("/:name/operations", accounts.ListOperations)
			account.POST("/:name/operations", accounts.RecordOperation)
		}
	}

	r.GET("/health", healthHandler(deps.Store, deps.BotStatus))

	return r
}

func healthHandler(store repository.Pinger, botStatus func() telegram.Status) gin.HandlerFunc {
	return func(c *gin.Context) {
		body := gin.H{"status": "ok"}
		if botStatus != nil {
			body["bot"] = botStatus()
		}

		if store != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := store.Ping(ctx); err != nil {
				body["status"] = "degraded"
				body["store"] = err.Error()
				c.JSON(http.StatusServiceUnavailable, body)
				return
			}
		}
		c.JSON(http.StatusOK, body)
	}
}
