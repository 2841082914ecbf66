// Package types 定义 modrouter 的公共数据结构
//
// 本文件定义所有公共错误类型。
package types

import (
	"errors"
	"fmt"
	"time"
)

// ============================================================================
//                              消息错误
// ============================================================================

var (
	// ErrMalformedMessage 消息缺少必需字段
	ErrMalformedMessage = errors.New("malformed message")

	// ErrTargetNotFound 目标模块未注册
	ErrTargetNotFound = errors.New("target not found")

	// ErrMessageExpired 消息超过 TTL
	ErrMessageExpired = errors.New("message expired")

	// ErrRequestTimeout 请求超时
	ErrRequestTimeout = errors.New("request timeout")

	// ErrDuplicateCorrelation 关联 ID 已在等待中
	ErrDuplicateCorrelation = errors.New("correlation id already pending")

	// ErrHandlerPanic 处理器发生 panic
	ErrHandlerPanic = errors.New("handler panicked")
)

// ============================================================================
//                              路由器错误
// ============================================================================

var (
	// ErrRouterNotStarted 路由器未启动
	ErrRouterNotStarted = errors.New("router not started")

	// ErrRouterClosed 路由器已关闭
	ErrRouterClosed = errors.New("router closed")

	// ErrQueueFull 投递队列已满
	ErrQueueFull = errors.New("delivery queue full")

	// ErrRateLimited 发送方超过速率限制
	ErrRateLimited = errors.New("send rate limited")

	// ErrEmptyModuleID 模块 ID 为空
	ErrEmptyModuleID = errors.New("empty module id")

	// ErrNilHandler 处理器为 nil
	ErrNilHandler = errors.New("nil module handler")
)

// ============================================================================
//                              流水线错误
// ============================================================================

var (
	// ErrUnknownPort 端口未在 ModuleInfo 中声明
	ErrUnknownPort = errors.New("unknown port")

	// ErrInvalidConnection 非法连接（自环、空端点）
	ErrInvalidConnection = errors.New("invalid connection")

	// ErrConnectionExists 连接已存在
	ErrConnectionExists = errors.New("connection already exists")

	// ErrConnectionNotFound 连接不存在
	ErrConnectionNotFound = errors.New("connection not found")
)

// ============================================================================
//                              结构化错误
// ============================================================================

// TimeoutError 请求超时错误，携带原始消息 ID
type TimeoutError struct {
	MessageID     string
	CorrelationID string
	Timeout       time.Duration
}

// Error 实现 error 接口
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("request timeout: message %s got no response within %s", e.MessageID, e.Timeout)
}

// Is 使 errors.Is(err, ErrRequestTimeout) 成立
func (e *TimeoutError) Is(target error) bool {
	return target == ErrRequestTimeout
}

// ResponseError 以完整响应表示的失败
//
// 处理器可以返回 *ResponseError 来精确控制失败响应的内容。
type ResponseError struct {
	Response *MessageResponse
}

// Error 实现 error 接口
func (e *ResponseError) Error() string {
	if e.Response == nil || e.Response.Error == "" {
		return "request failed"
	}
	return e.Response.Error
}
