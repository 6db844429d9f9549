package auth

import (
	"errors"
	"fmt"
)

type Code string

const (
	CodeDuplicateAccount  Code = "duplicate_account"
	CodeAccountNotFound   Code = "account_not_found"
	CodeInvalidCredential Code = "invalid_credential"
	CodeInvalidEmail      Code = "invalid_email"
	CodeWeakPassword      Code = "weak_password"
	CodeTooManyRequests   Code = "too_many_requests"
	CodeProvider          Code = "provider"
)

var messages = map[Code]string{
	CodeDuplicateAccount:  "このメールアドレスは既に登録されています。",
	CodeAccountNotFound:   "アカウントが見つかりません。",
	CodeInvalidCredential: "パスワードが正しくありません。",
	CodeInvalidEmail:      "メールアドレスの形式が正しくありません。",
	CodeWeakPassword:      "パスワードは6文字以上で設定してください。",
	CodeTooManyRequests:   "ログイン試行が多すぎます。しばらく待ってください。",
}

const genericMessage = "エラーが発生しました。"

// Error is a user-facing failure: a stable code plus a message ready to render.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on code only, so errors.Is(err, ErrAccountNotFound) holds for any
// provider's not-found failure.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

var (
	ErrDuplicateAccount  = newError(CodeDuplicateAccount, nil)
	ErrAccountNotFound   = newError(CodeAccountNotFound, nil)
	ErrInvalidCredential = newError(CodeInvalidCredential, nil)
)

func newError(code Code, cause error) *Error {
	msg, ok := messages[code]
	if !ok {
		msg = genericMessage
	}
	return &Error{Code: code, Message: msg, Err: cause}
}

// Message returns the localized text for err, falling back to the generic one.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return genericMessage
}
