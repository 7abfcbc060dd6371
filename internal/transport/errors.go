package transport

import (
	"errors"
	"fmt"
)

const (
	codeProtocol      = 1001
	codeConnection    = 1002
	codeBind          = 1003
	codeFrameTooLarge = 1004
)

// 传输层错误定义，使用 errors.Is 判断类别
var (
	ErrProtocol      = NewTpError(codeProtocol, "Protocol error", "")
	ErrConnection    = NewTpError(codeConnection, "Connection error", "")
	ErrBind          = NewTpError(codeBind, "Bind error", "")
	ErrFrameTooLarge = NewTpError(codeFrameTooLarge, "Frame too large", "")
	ErrServerClosed  = errors.New("transport: server closed")
)

type tpError struct {
	code    int
	msg     string
	context string
	cause   error
}

func (e *tpError) Error() string {
	s := fmt.Sprintf("Error %d: %s", e.code, e.msg)
	if e.context != "" {
		s += fmt.Sprintf(" (context: %s)", e.context)
	}
	if e.cause != nil {
		s += ": " + e.cause.Error()
	}
	return s
}

func (e *tpError) Unwrap() error { return e.cause }

// Is 按错误码匹配；帧过大属于协议错误
func (e *tpError) Is(target error) bool {
	t, ok := target.(*tpError)
	if !ok {
		return false
	}
	if t.code == e.code {
		return true
	}
	return t.code == codeProtocol && e.code == codeFrameTooLarge
}

// Code 返回错误码
func (e *tpError) Code() int { return e.code }

// ErrorCode 取出错误链中的传输层错误码，不是传输层错误时返回 0
func ErrorCode(err error) int {
	var te *tpError
	if errors.As(err, &te) {
		return te.Code()
	}
	return 0
}

func NewTpError(code int, message string, context string) *tpError {
	return &tpError{
		code:    code,
		msg:     message,
		context: context,
	}
}

// wrap 基于哨兵错误派生一个带上下文和原因的新错误
func (e *tpError) wrap(context string, cause error) *tpError {
	return &tpError{code: e.code, msg: e.msg, context: context, cause: cause}
}
