// Package types 定义 modrouter 的公共数据结构
//
// 本文件定义路由器生命周期事件，通过事件总线发布。
package types

import "time"

// Event 事件接口
type Event interface {
	// Type 返回事件类型
	Type() string

	// Timestamp 返回事件时间戳
	Timestamp() time.Time
}

// 事件类型常量
const (
	EventModuleRegistered   = "module.registered"
	EventModuleUnregistered = "module.unregistered"
	EventRequestSettled     = "request.settled"
	EventDeliveryFailed     = "delivery.failed"
)

// EvtModuleRegistered 模块注册事件
type EvtModuleRegistered struct {
	ModuleID string
	// Replaced 是否替换了同 ID 的旧处理器
	Replaced bool
	Time     time.Time
}

// Type 返回事件类型
func (e EvtModuleRegistered) Type() string { return EventModuleRegistered }

// Timestamp 返回事件时间戳
func (e EvtModuleRegistered) Timestamp() time.Time { return e.Time }

// EvtModuleUnregistered 模块注销事件
type EvtModuleUnregistered struct {
	ModuleID string
	Time     time.Time
}

// Type 返回事件类型
func (e EvtModuleUnregistered) Type() string { return EventModuleUnregistered }

// Timestamp 返回事件时间戳
func (e EvtModuleUnregistered) Timestamp() time.Time { return e.Time }

// EvtRequestSettled 请求结算事件（成功、失败或超时）
type EvtRequestSettled struct {
	CorrelationID string
	MessageID     string
	Success       bool
	// Rejected 以错误结算（超时、投递失败、关闭、取消），而非收到响应
	Rejected bool
	Err      string
	Latency  time.Duration
	Time     time.Time
}

// Type 返回事件类型
func (e EvtRequestSettled) Type() string { return EventRequestSettled }

// Timestamp 返回事件时间戳
func (e EvtRequestSettled) Timestamp() time.Time { return e.Time }

// EvtDeliveryFailed 无关联消息投递失败事件
type EvtDeliveryFailed struct {
	MessageID string
	MsgType   string
	Source    string
	Target    string
	Err       string
	Time      time.Time
}

// Type 返回事件类型
func (e EvtDeliveryFailed) Type() string { return EventDeliveryFailed }

// Timestamp 返回事件时间戳
func (e EvtDeliveryFailed) Timestamp() time.Time { return e.Time }
