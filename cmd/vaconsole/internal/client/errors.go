package client

import (
	"errors"
	"fmt"
)

// TransportError 后端返回了 2xx 以外的状态码
type TransportError struct {
	Status  int
	Message string // 响应体中解析出的 message（可能为空）
}

func (e *TransportError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("HTTP错误: %d (%s)", e.Status, e.Message)
	}
	return fmt.Sprintf("HTTP错误: %d", e.Status)
}

// ApplicationError 后端响应 success=false
type ApplicationError struct {
	Message string
}

func (e *ApplicationError) Error() string {
	return e.Message
}

// DecodeError 响应体不是预期的结构
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("响应解析失败: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Kind 返回错误分类，用于日志和指标标签
func Kind(err error) string {
	var te *TransportError
	var ae *ApplicationError
	var de *DecodeError
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &te):
		return "transport"
	case errors.As(err, &ae):
		return "application"
	case errors.As(err, &de):
		return "decode"
	default:
		return "network"
	}
}
