package models

import (
	"errors"
	"fmt"
)

// ErrorKind 领域错误类别（全部可恢复，会以文本回复给原会话）
type ErrorKind string

const (
	KindChatAlreadyExists    ErrorKind = "ChatAlreadyExists"
	KindAccountAlreadyExists ErrorKind = "AccountAlreadyExists"
	KindAccountNotFound      ErrorKind = "AccountNotFound"
	KindBadCommandStructure  ErrorKind = "BadCommandStructure"
	KindUnknownCommand       ErrorKind = "UnknownCommand"
	KindBadMessageStructure  ErrorKind = "BadMessageStructure"
)

// LedgerError 领域错误，Error() 即回复给用户的文本
type LedgerError struct {
	Kind    ErrorKind
	Subject string // 相关的账户名或命令
}

func (e *LedgerError) Error() string {
	switch e.Kind {
	case KindChatAlreadyExists:
		return "Chat already started!"
	case KindAccountAlreadyExists:
		return "Account already exists!"
	case KindAccountNotFound:
		return "Can not find account with given name: " + e.Subject
	case KindBadCommandStructure:
		return "Bad command structure"
	case KindUnknownCommand:
		return "Unknown bot command: " + e.Subject
	case KindBadMessageStructure:
		return "Bad message structure"
	default:
		return fmt.Sprintf("ledger error %s: %s", e.Kind, e.Subject)
	}
}

// Is 按类别比较，便于 errors.Is(err, &LedgerError{Kind: ...})
func (e *LedgerError) Is(target error) bool {
	t, ok := target.(*LedgerError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Subject == "" || t.Subject == e.Subject)
}

func ErrChatAlreadyExists() error {
	return &LedgerError{Kind: KindChatAlreadyExists}
}

func ErrAccountAlreadyExists(name string) error {
	return &LedgerError{Kind: KindAccountAlreadyExists, Subject: name}
}

func ErrAccountNotFound(name string) error {
	return &LedgerError{Kind: KindAccountNotFound, Subject: name}
}

func ErrBadCommandStructure() error {
	return &LedgerError{Kind: KindBadCommandStructure}
}

func ErrUnknownCommand(token string) error {
	return &LedgerError{Kind: KindUnknownCommand, Subject: token}
}

func ErrBadMessageStructure() error {
	return &LedgerError{Kind: KindBadMessageStructure}
}

// KindOf 返回错误链中的领域错误类别，非领域错误返回 false
func KindOf(err error) (ErrorKind, bool) {
	var le *LedgerError
	if errors.As(err, &le) {
		return le.Kind, true
	}
	return "", false
}

// IsDomainError 是否为可回复给用户的领域错误
func IsDomainError(err error) bool {
	_, ok := KindOf(err)
	return ok
}
