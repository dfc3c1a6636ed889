package server

import (
	"ledger_bot/internal/telegram/models"

	"github.com/gin-gonic/gin"
)

const (
	CodeSuccess     = 0
	CodeParamError  = 400
	CodeNotFound    = 404
	CodeConflict    = 409
	CodeServerError = 500
)

// Response 统一响应格式
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func Success(c *gin.Context, status int, data interface{}) {
	c.JSON(status, Response{
		Code:    CodeSuccess,
		Message: "success",
		Data:    data,
	})
}

func Error(c *gin.Context, code int, message string) {
	c.AbortWithStatusJSON(code, Response{
		Code:    code,
		Message: message,
	})
}

func ParamError(c *gin.Context, message string) {
	Error(c, CodeParamError, message)
}

func ServerError(c *gin.Context) {
	Error(c, CodeServerError, "internal server error")
}

// DomainError 将领域错误映射为 HTTP 状态码，非领域错误按 500 处理
func DomainError(c *gin.Context, err error) {
	kind, ok := models.KindOf(err)
	if !ok {
		_ = c.Error(err)
		ServerError(c)
		return
	}

	switch kind {
	case models.KindAccountNotFound:
		Error(c, CodeNotFound, err.Error())
	case models.KindAccountAlreadyExists, models.KindChatAlreadyExists:
		Error(c, CodeConflict, err.Error())
	default:
		Error(c, CodeParamError, err.Error())
	}
}
