package server

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"ledger_bot/internal/telegram/models"
	"ledger_bot/internal/telegram/service"

	"github.com/gin-gonic/gin"
)

// AccountHandler 账户 REST 接口
type AccountHandler struct {
	ledger service.LedgerService
}

func NewAccountHandler(ledger service.LedgerService) *AccountHandler {
	return &AccountHandler{ledger: ledger}
}

// CreateAccountRequest 创建账户请求
type CreateAccountRequest struct {
	ChatID      int64  `json:"chat_id"`
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

// RecordOperationRequest 记账请求
type RecordOperationRequest struct {
	Size           int64  `json:"size"`
	Description    string `json:"description"`
	Author         string `json:"author"`
	IdempotencyKey string `json:"idempotency_key"`
}

// StatementResponse 账单
type StatementResponse struct {
	Account    *models.Account     `json:"account"`
	Days       int                 `json:"days"`
	Operations []*models.Operation `json:"operations"`
}

// CreateAccount POST /api/v1/accounts
func (h *AccountHandler) CreateAccount(c *gin.Context) {
	var req CreateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ParamError(c, "参数错误: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		ParamError(c, "name cannot be blank")
		return
	}

	account, err := h.ledger.CreateAccount(c.Request.Context(), req.ChatID, req.Name, req.Description)
	if err != nil {
		DomainError(c, err)
		return
	}
	Success(c, http.StatusCreated, account)
}

// GetAccount GET /api/v1/accounts/:name
func (h *AccountHandler) GetAccount(c *gin.Context) {
	account, err := h.ledger.LookupAccount(c.Request.Context(), c.Param("name"))
	if err != nil {
		DomainError(c, err)
		return
	}
	Success(c, http.StatusOK, account)
}

// ListOperations GET /api/v1/accounts/:name/operations?days=N
func (h *AccountHandler) ListOperations(c *gin.Context) {
	name := c.Param("name")

	days := models.DefaultStatementDays
	if raw := c.Query("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > models.MaxStatementDays {
			ParamError(c, fmt.Sprintf("days must be an integer between 1 and %d", models.MaxStatementDays))
			return
		}
		days = n
	}

	ops, err := h.ledger.GetOperations(c.Request.Context(), name, days)
	if err != nil {
		DomainError(c, err)
		return
	}
	account, err := h.ledger.GetAccount(c.Request.Context(), name)
	if err != nil {
		DomainError(c, err)
		return
	}
	if ops == nil {
		ops = []*models.Operation{}
	}

	Success(c, http.StatusOK, StatementResponse{Account: account, Days: days, Operations: ops})
}

// RecordOperation POST /api/v1/accounts/:name/operations
func (h *AccountHandler) RecordOperation(c *gin.Context) {
	var req RecordOperationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ParamError(c, "参数错误: "+err.Error())
		return
	}

	account, err := h.ledger.RecordOperation(c.Request.Context(), service.OperationInput{
		AccountName:    c.Param("name"),
		Size:           req.Size,
		Description:    req.Description,
		Author:         req.Author,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		DomainError(c, err)
		return
	}
	Success(c, http.StatusCreated, account)
}
