package repository

import "errors"

var (
	// ErrNotFound 记录不存在
	ErrNotFound = errors.New("repository: not found")

	// ErrDuplicate 唯一键冲突（会话、账户名或去重键已存在）
	ErrDuplicate = errors.New("repository: duplicate key")

	// ErrBalanceOverflow 记入后余额超出 int64 范围
	ErrBalanceOverflow = errors.New("repository: balance overflow")
)
