package command

import (
	"strconv"
	"strings"
	"unicode/utf16"

	"ledger_bot/internal/telegram/models"
)

// Parsed 解析结果，只有 *Command 和 *LedgerEntry 两种实现
type Parsed interface {
	parsed()
}

// Command 已识别的机器人命令
type Command struct {
	Name string   // 规范化后的命令名（不含 @botname）
	Args []string // 命令行之后的各行

	Days int // /accountstatement 的统计天数
}

func (*Command) parsed() {}

// Arg 返回第 i 个参数，不存在时返回空串
func (c *Command) Arg(i int) string {
	if i < 0 || i >= len(c.Args) {
		return ""
	}
	return c.Args[i]
}

// AccountName 参数化命令的账户名
func (c *Command) AccountName() string {
	return c.Arg(0)
}

// Description /createaccount 的可选描述
func (c *Command) Description() string {
	return c.Arg(1)
}

// LedgerEntry 记账消息，例如 "+150\nGroceries\nWeekly shop"
type LedgerEntry struct {
	Size        int64
	AccountName string
	Description string
	Author      string
}

func (*LedgerEntry) parsed() {}

// Parse 将一条入站消息解析为命令或记账条目，无副作用
func Parse(ev models.Event, reg *Registry) (Parsed, error) {
	if entity, ok := firstBotCommand(ev.Entities); ok {
		return parseCommand(ev.Text, entity, reg)
	}
	if isLedgerEntry(ev.Text) {
		return parseLedgerEntry(ev.Text, ev.SenderID)
	}
	return nil, models.ErrBadMessageStructure()
}

func firstBotCommand(entities []models.Entity) (models.Entity, bool) {
	for _, e := range entities {
		if e.Type == models.EntityTypeBotCommand {
			return e, true
		}
	}
	return models.Entity{}, false
}

func isLedgerEntry(text string) bool {
	return strings.HasPrefix(text, "+") || strings.HasPrefix(text, "-")
}

func parseCommand(text string, entity models.Entity, reg *Registry) (Parsed, error) {
	if entity.Offset != 0 {
		return nil, models.ErrBadCommandStructure()
	}

	token, ok := sliceUTF16(text, entity.Offset, entity.Length)
	if !ok || token == "" {
		return nil, models.ErrBadCommandStructure()
	}

	def, ok := reg.Lookup(commandName(token))
	if !ok {
		return nil, models.ErrUnknownCommand(token)
	}

	fields := splitFields(text)
	cmd := &Command{Name: def.Name, Args: fields[1:]}

	switch def.Args {
	case ArgsNone:
		return cmd, nil
	case ArgsAccount, ArgsAccountDescription:
		if strings.TrimSpace(cmd.AccountName()) == "" {
			return nil, models.ErrBadCommandStructure()
		}
		return cmd, nil
	case ArgsAccountPeriod:
		if strings.TrimSpace(cmd.AccountName()) == "" {
			return nil, models.ErrBadCommandStructure()
		}
		days, err := parseDays(cmd.Arg(1), len(cmd.Args) > 1)
		if err != nil {
			return nil, err
		}
		cmd.Days = days
		return cmd, nil
	}
	return cmd, nil
}

// parseDays 第 2 行为空或不存在时使用默认天数，超出 [1, MaxStatementDays] 视为格式错误
func parseDays(raw string, present bool) (int, error) {
	raw = strings.TrimSpace(raw)
	if !present || raw == "" {
		return DefaultStatementDays, nil
	}
	days, err := strconv.Atoi(raw)
	if err != nil || days < 1 || days > models.MaxStatementDays {
		return 0, models.ErrBadCommandStructure()
	}
	return days, nil
}

func parseLedgerEntry(text, author string) (Parsed, error) {
	fields := splitFields(text)
	if len(fields) < 2 {
		return nil, models.ErrBadMessageStructure()
	}

	size, err := strconv.ParseInt(strings.TrimSpace(fields[0]), 10, 64)
	if err != nil {
		return nil, models.ErrBadMessageStructure()
	}

	name := fields[1]
	if strings.TrimSpace(name) == "" {
		return nil, models.ErrBadMessageStructure()
	}

	entry := &LedgerEntry{
		Size:        size,
		AccountName: name,
		Author:      author,
	}
	if len(fields) > 2 {
		entry.Description = fields[2]
	}
	return entry, nil
}

// splitFields 按 \n 拆分，去掉每行末尾的 \r
func splitFields(text string) []string {
	fields := strings.Split(text, "\n")
	for i, f := range fields {
		fields[i] = strings.TrimSuffix(f, "\r")
	}
	return fields
}

// commandName 去掉 "/start@MyBot" 中的 @botname
func commandName(token string) string {
	if i := strings.IndexByte(token, '@'); i > 0 {
		return token[:i]
	}
	return token
}

// sliceUTF16 按 UTF-16 码元截取子串（Telegram 实体的偏移单位）
func sliceUTF16(text string, offset, length int) (string, bool) {
	units := utf16.Encode([]rune(text))
	if offset < 0 || length < 0 || offset+length > len(units) {
		return "", false
	}
	return string(utf16.Decode(units[offset : offset+length])), true
}
