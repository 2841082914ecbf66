// Package interfaces 定义 modrouter 公共接口
//
// 本文件定义 EventBus 接口，提供事件发布订阅功能。
package interfaces

// EventBus 定义事件总线接口
//
// 事件按 Go 类型分发：Subscribe(new(types.EvtModuleRegistered))
// 只会收到该类型的事件。
type EventBus interface {
	// Subscribe 订阅指定类型的事件（传入指针）
	Subscribe(eventType any, opts ...SubscriptionOpt) (Subscription, error)

	// Emitter 获取指定事件类型的发射器（传入指针）
	Emitter(eventType any) (Emitter, error)
}

// Subscription 定义事件订阅接口
type Subscription interface {
	// Out 返回接收事件的通道
	Out() <-chan any

	// Close 取消订阅
	Close() error
}

// Emitter 定义事件发射器接口
type Emitter interface {
	// Emit 发射事件，订阅者缓冲区满时丢弃而不阻塞
	Emit(event any) error

	// Close 关闭发射器
	Close() error
}

// SubscriptionOpt 订阅选项函数类型
type SubscriptionOpt func(*SubscriptionSettings)

// SubscriptionSettings 订阅设置（导出以供实现使用）
type SubscriptionSettings struct {
	Buffer int
}

// BufSize 设置订阅缓冲区大小
func BufSize(size int) SubscriptionOpt {
	return func(s *SubscriptionSettings) {
		s.Buffer = size
	}
}
