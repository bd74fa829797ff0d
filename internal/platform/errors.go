package platform

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorKind 平台错误分类，编排层据此决定重试/取消策略
type ErrorKind string

const (
	KindInvalidRequest ErrorKind = "invalid_request"
	KindOngoingPayment ErrorKind = "ongoing_payment"
	KindNotFound       ErrorKind = "not_found"
	KindInvalidState   ErrorKind = "invalid_state"
	KindUnauthorized   ErrorKind = "unauthorized"
	KindUnavailable    ErrorKind = "unavailable"
	KindUnknown        ErrorKind = "unknown"
)

// Error 平台返回非 2xx 时的类型化错误。
// 保留原始 payload，运营排查时能看到远端的完整报错。
type Error struct {
	Kind       ErrorKind
	StatusCode int
	Message    string
	Payload    json.RawMessage
	// ConflictingPayment 平台报 ongoing payment 冲突时附带的卡住的支付
	ConflictingPayment *Payment
}

func (e *Error) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("pi platform: %s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("pi platform: %s (HTTP %d): %s", e.Kind, e.StatusCode, e.Message)
}

// IsKind 判断 err 链上是否有指定分类的平台错误
func IsKind(err error, kind ErrorKind) bool {
	var perr *Error
	return errors.As(err, &perr) && perr.Kind == kind
}

// errorBody 平台错误响应体: {"error": "...", "error_message": "...", "payment": {...}}
type errorBody struct {
	Error        string   `json:"error"`
	ErrorMessage string   `json:"error_message"`
	Message      string   `json:"message"`
	Payment      *Payment `json:"payment"`
}

// newAPIError 把非 2xx 响应翻译成类型化错误
func newAPIError(statusCode int, raw []byte) *Error {
	var body errorBody
	_ = json.Unmarshal(raw, &body)

	msg := body.ErrorMessage
	if msg == "" {
		msg = body.Message
	}
	if msg == "" {
		msg = body.Error
	}
	if msg == "" {
		msg = http.StatusText(statusCode)
	}

	e := &Error{
		Kind:       classify(statusCode, body.Error),
		StatusCode: statusCode,
		Message:    msg,
		Payload:    json.RawMessage(raw),
	}
	if e.Kind == KindOngoingPayment {
		e.ConflictingPayment = body.Payment
	}
	return e
}

func classify(statusCode int, errName string) ErrorKind {
	name := strings.ToLower(errName)

	// 冲突优先按错误名识别，平台对该场景用过 400 和 409 两种状态码
	if strings.Contains(name, "ongoing") {
		return KindOngoingPayment
	}

	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return KindUnauthorized
	case statusCode == http.StatusNotFound:
		return KindNotFound
	case statusCode == http.StatusConflict:
		return KindOngoingPayment
	case statusCode >= 500:
		return KindUnavailable
	}

	if strings.Contains(name, "not_found") {
		return KindNotFound
	}
	if strings.Contains(name, "state") || strings.Contains(name, "approved") || strings.Contains(name, "completed") {
		return KindInvalidState
	}
	if statusCode == http.StatusBadRequest || statusCode == http.StatusUnprocessableEntity {
		return KindInvalidRequest
	}
	return KindUnknown
}

// newTransportError 网络层失败 (超时/连接拒绝) 统一归为 Unavailable
func newTransportError(err error) *Error {
	return &Error{
		Kind:    KindUnavailable,
		Message: err.Error(),
	}
}
