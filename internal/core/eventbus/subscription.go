package eventbus

import (
	"reflect"
	"sync"
	"sync/atomic"
)

// ============================================================================
// Subscription 实现
// ============================================================================

// Subscription 订阅
type Subscription struct {
	bus       *Bus
	typ       reflect.Type
	out       chan any
	closeOnce sync.Once
}

// Out 返回事件通道
func (s *Subscription) Out() <-chan any {
	return s.out
}

// Close 取消订阅
//
// 先从总线移除再关闭通道，可以多次调用。
func (s *Subscription) Close() error {
	s.closeOnce.Do(func() {
		s.bus.removeSub(s)
		close(s.out)
	})
	return nil
}

// ============================================================================
// Emitter 实现
// ============================================================================

// Emitter 事件发射器
type Emitter struct {
	node   *node
	closed atomic.Bool
}

// Emit 发射事件
func (e *Emitter) Emit(event any) error {
	if e.closed.Load() {
		return ErrEmitterClosed
	}
	if event == nil || reflect.TypeOf(event) != e.node.typ {
		return ErrWrongEventType
	}
	e.node.emit(event)
	return nil
}

// Close 关闭发射器
func (e *Emitter) Close() error {
	e.closed.Store(true)
	return nil
}
