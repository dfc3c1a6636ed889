package dispatcher

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ledger_bot/internal/logger"
	"ledger_bot/internal/telegram/command"
	"ledger_bot/internal/telegram/models"
	"ledger_bot/internal/telegram/service"
)

// 回复文本
const (
	WelcomeText        = "Welcome to Accounting Manager Bot!..."
	AccountCreatedText = "Account successfully created"
	OperationSavedText = "Operation successfully saved"
)

// Notifier 向会话发送一条文本消息
type Notifier interface {
	Notify(ctx context.Context, chatID int64, text string) error
}

// Dispatcher 无状态的命令路由：解析 → 调用记账服务 → 回复
type Dispatcher struct {
	ledger   service.LedgerService
	registry *command.Registry
	notifier Notifier
	location *time.Location
}

// New 创建 Dispatcher，loc 为账单时间的显示时区（nil 为 UTC）
func New(ledger service.LedgerService, registry *command.Registry, notifier Notifier, loc *time.Location) *Dispatcher {
	if registry == nil {
		registry = command.DefaultRegistry()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Dispatcher{
		ledger:   ledger,
		registry: registry,
		notifier: notifier,
		location: loc,
	}
}

// Handle 处理一条入站消息，最多发送一条回复
// 返回错误表示基础设施故障，传输层应让该消息重新投递
func (d *Dispatcher) Handle(ctx context.Context, ev models.Event) error {
	text, err := d.Reply(ctx, ev)
	if err != nil {
		return err
	}
	if text == "" || d.notifier == nil {
		return nil
	}

	if err := d.notifier.Notify(ctx, ev.ChatID, text); err != nil {
		logger.WithChat(ev.ChatID).Warnf("Failed to send reply: %v", err)
	}
	return nil
}

// Reply 计算回复文本，领域错误转换为回复，其他错误原样返回
func (d *Dispatcher) Reply(ctx context.Context, ev models.Event) (string, error) {
	text, err := d.dispatch(ctx, ev)
	if err != nil {
		if models.IsDomainError(err) {
			logger.WithChat(ev.ChatID).Debugf("Domain error: %v", err)
			return err.Error(), nil
		}
		logger.WithChat(ev.ChatID).Errorf("Failed to handle message: %v", err)
		return "", err
	}
	return text, nil
}

func (d *Dispatcher) dispatch(ctx context.Context, ev models.Event) (string, error) {
	parsed, err := command.Parse(ev, d.registry)
	if err != nil {
		return "", err
	}

	switch p := parsed.(type) {
	case *command.Command:
		return d.handleCommand(ctx, ev, p)
	case *command.LedgerEntry:
		return d.handleLedgerEntry(ctx, ev, p)
	}
	return "", models.ErrBadMessageStructure()
}

func (d *Dispatcher) handleCommand(ctx context.Context, ev models.Event, cmd *command.Command) (string, error) {
	switch cmd.Name {
	case command.Start:
		if _, err := d.ledger.CreateChat(ctx, ev.ChatID); err != nil {
			return "", err
		}
		return WelcomeText, nil

	case command.Help:
		return d.registry.HelpText(), nil

	case command.CreateAccount:
		if _, err := d.ledger.CreateAccount(ctx, ev.ChatID, cmd.AccountName(), cmd.Description()); err != nil {
			return "", err
		}
		return AccountCreatedText, nil

	case command.AccountBalance:
		account, err := d.ledger.GetAccount(ctx, cmd.AccountName())
		if err != nil {
			return "", err
		}
		return balanceLine(account.Balance), nil

	case command.AccountStatement:
		return d.statement(ctx, cmd.AccountName(), cmd.Days)
	}

	return "", models.ErrUnknownCommand(cmd.Name)
}

func (d *Dispatcher) handleLedgerEntry(ctx context.Context, ev models.Event, entry *command.LedgerEntry) (string, error) {
	account, err := d.ledger.RecordOperation(ctx, service.OperationInput{
		ChatID:         ev.ChatID,
		AccountName:    entry.AccountName,
		Size:           entry.Size,
		Description:    entry.Description,
		Author:         entry.Author,
		IdempotencyKey: ev.IdempotencyKey(),
	})
	if err != nil {
		return "", err
	}
	return OperationSavedText + "\n" + balanceLine(account.Balance), nil
}

// statement 每条操作一行，最后一行为当前余额
func (d *Dispatcher) statement(ctx context.Context, name string, days int) (string, error) {
	ops, err := d.ledger.GetOperations(ctx, name, days)
	if err != nil {
		return "", err
	}
	account, err := d.ledger.GetAccount(ctx, name)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, op := range ops {
		sb.WriteString(op.StatementLine(d.location))
		sb.WriteString("\n")
	}
	sb.WriteString(balanceLine(account.Balance))
	return sb.String(), nil
}

func balanceLine(balance int64) string {
	return fmt.Sprintf("Account balance: %d", balance)
}
