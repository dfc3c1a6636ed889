package server

import (
	"crypto/subtle"
	"net/http"

	"ledger_bot/internal/logger"
	"ledger_bot/internal/telegram"

	"github.com/gin-gonic/gin"
	botModels "github.com/go-telegram/bot/models"
)

// SecretTokenHeader Telegram 在每个 webhook 请求上携带的密钥头
const SecretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

// WebhookHandler 接收 Telegram 推送的更新
type WebhookHandler struct {
	handle telegram.EventHandler
	secret string
}

// NewWebhookHandler secret 为空时不校验密钥头
func NewWebhookHandler(handle telegram.EventHandler, secret string) *WebhookHandler {
	return &WebhookHandler{handle: handle, secret: secret}
}

// Handle 返回 200 表示已处理（包括以文本回复的领域错误），
// 返回 500 让 Telegram 重新投递
func (h *WebhookHandler) Handle(c *gin.Context) {
	if h.secret != "" {
		got := c.GetHeader(SecretTokenHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) != 1 {
			logger.L().Warnf("Webhook request with invalid secret token from %s", c.ClientIP())
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
	}

	var update botModels.Update
	if err := c.ShouldBindJSON(&update); err != nil {
		logger.L().Warnf("Failed to decode webhook update: %v", err)
		c.AbortWithStatus(http.StatusBadRequest)
		return
	}

	ev, ok := telegram.EventFromUpdate(&update)
	if !ok {
		c.Status(http.StatusOK)
		return
	}

	if err := h.handle(c.Request.Context(), ev); err != nil {
		_ = c.Error(err)
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	c.Status(http.StatusOK)
}
