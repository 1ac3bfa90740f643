package shopify

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// ==================== 错误分类 ====================

// ErrorKind 远程错误类别
type ErrorKind string

const (
	KindNotFound  ErrorKind = "not_found"
	KindTransient ErrorKind = "transient"
	KindPermanent ErrorKind = "permanent"
)

// 供 errors.Is 判断的哨兵错误
var (
	ErrNotFound  = errors.New("shopify: remote resource not found")
	ErrTransient = errors.New("shopify: transient remote failure")
	ErrPermanent = errors.New("shopify: permanent remote failure")
)

// RemoteError 经过分类的远程调用错误，不暴露 HTTP 细节以外的协议信息
type RemoteError struct {
	Kind    ErrorKind
	Op      string
	Status  int
	Message string
}

func (e *RemoteError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("shopify %s [%s %d]: %s", e.Op, e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("shopify %s [%s]: %s", e.Op, e.Kind, e.Message)
}

func (e *RemoteError) Unwrap() error {
	switch e.Kind {
	case KindNotFound:
		return ErrNotFound
	case KindTransient:
		return ErrTransient
	default:
		return ErrPermanent
	}
}

// KindOf 返回错误类别，非远程错误视为 permanent
func KindOf(err error) ErrorKind {
	var re *RemoteError
	if errors.As(err, &re) {
		return re.Kind
	}
	return KindPermanent
}

// classifyStatus 按状态码归类
func classifyStatus(status int) ErrorKind {
	switch {
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusTooManyRequests, status >= 500:
		return KindTransient
	default:
		return KindPermanent
	}
}

// transportError 网络层错误一律归为 transient
func transportError(op string, err error) *RemoteError {
	msg := err.Error()
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		msg = "request timeout: " + msg
	case errors.As(err, &netErr) && netErr.Timeout():
		msg = "network timeout: " + msg
	}
	return &RemoteError{Kind: KindTransient, Op: op, Message: msg}
}

func statusError(op string, status int, body []byte) *RemoteError {
	msg := strings.TrimSpace(string(body))
	if len(msg) > 512 {
		msg = msg[:512]
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &RemoteError{Kind: classifyStatus(status), Op: op, Status: status, Message: msg}
}

func decodeError(op string, err error) *RemoteError {
	return &RemoteError{Kind: KindPermanent, Op: op, Message: "解析响应失败: " + err.Error()}
}
