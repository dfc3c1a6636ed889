package command

import (
	"strings"

	"ledger_bot/internal/telegram/models"
)

// 命令名称
const (
	Start            = "/start"
	Help             = "/help"
	CreateAccount    = "/createaccount"
	AccountBalance   = "/accountbalance"
	AccountStatement = "/accountstatement"
)

// DefaultStatementDays 账单默认统计天数
const DefaultStatementDays = models.DefaultStatementDays

// ArgKind 命令参数形态
type ArgKind int

const (
	ArgsNone               ArgKind = iota // 无参数，多余行忽略
	ArgsAccount                           // 第 1 行账户名
	ArgsAccountDescription                // 第 1 行账户名，第 2 行可选描述
	ArgsAccountPeriod                     // 第 1 行账户名，第 2 行可选天数
)

// Definition 一条命令定义
type Definition struct {
	Name        string
	Description string
	Args        ArgKind
}

// Registry 只读的命令表，启动时构建一次，顺序即 /help 输出顺序
type Registry struct {
	defs  []Definition
	index map[string]int
}

// NewRegistry 根据定义列表构建命令表，重名时保留第一条
func NewRegistry(defs ...Definition) *Registry {
	r := &Registry{
		defs:  make([]Definition, 0, len(defs)),
		index: make(map[string]int, len(defs)),
	}
	for _, d := range defs {
		if _, exists := r.index[d.Name]; exists {
			continue
		}
		r.index[d.Name] = len(r.defs)
		r.defs = append(r.defs, d)
	}
	return r
}

// DefaultRegistry 记账机器人支持的命令
func DefaultRegistry() *Registry {
	return NewRegistry(
		Definition{Name: Start, Description: "Start the bot", Args: ArgsNone},
		Definition{Name: Help, Description: "Show info about available commands", Args: ArgsNone},
		Definition{
			Name:        CreateAccount,
			Description: "Create new account with specified in new lines account name and description. Example:\n/createaccount\nAccount Name\nAccount Description",
			Args:        ArgsAccountDescription,
		},
		Definition{
			Name:        AccountBalance,
			Description: "Show balance of account with specified in new line account name. Example:\n/accountbalance\nAccount Name",
			Args:        ArgsAccount,
		},
		Definition{
			Name:        AccountStatement,
			Description: "Show information about account with specified account name and statement period in days (statement period is optional, default value is 7 days). Example:\n/accountstatement\nAccount name\n31",
			Args:        ArgsAccountPeriod,
		},
	)
}

// Lookup 查找命令定义
func (r *Registry) Lookup(name string) (Definition, bool) {
	i, ok := r.index[name]
	if !ok {
		return Definition{}, false
	}
	return r.defs[i], true
}

// Definitions 返回命令定义的拷贝
func (r *Registry) Definitions() []Definition {
	out := make([]Definition, len(r.defs))
	copy(out, r.defs)
	return out
}

// HelpText 每条命令输出 "<name> - <description>\n\n"
func (r *Registry) HelpText() string {
	var sb strings.Builder
	for _, d := range r.defs {
		sb.WriteString(d.Name)
		sb.WriteString(" - ")
		sb.WriteString(d.Description)
		sb.WriteString("\n\n")
	}
	return sb.String()
}
