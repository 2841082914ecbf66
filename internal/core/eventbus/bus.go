package eventbus

import (
	"errors"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	pkgif "github.com/dep2p/go-modrouter/pkg/interfaces"
	"github.com/dep2p/go-modrouter/pkg/lib/log"
)

var logger = log.Logger("core/eventbus")

// DefaultBufSize 默认订阅缓冲区大小
const DefaultBufSize = 16

// ============================================================================
// 错误定义
// ============================================================================

var (
	// ErrInvalidEventType 无效的事件类型
	ErrInvalidEventType = errors.New("eventbus: invalid event type")
	// ErrNonPointerType 非指针类型
	ErrNonPointerType = errors.New("eventbus: event type must be passed as pointer")
	// ErrEmitterClosed 发射器已关闭
	ErrEmitterClosed = errors.New("eventbus: emitter closed")
	// ErrWrongEventType 发射的事件与发射器类型不符
	ErrWrongEventType = errors.New("eventbus: emitted event does not match emitter type")
)

// ============================================================================
// Bus 实现
// ============================================================================

// Bus 事件总线
type Bus struct {
	mu    sync.RWMutex
	nodes map[reflect.Type]*node
}

// node 单个事件类型的订阅者集合
type node struct {
	mu        sync.Mutex
	typ       reflect.Type
	sinks     []*Subscription
	dropCount atomic.Int64
	warn      rate.Sometimes
}

var _ pkgif.EventBus = (*Bus)(nil)

// NewBus 创建新的事件总线
func NewBus() *Bus {
	return &Bus{
		nodes: make(map[reflect.Type]*node),
	}
}

// Subscribe 订阅事件
func (b *Bus) Subscribe(eventType any, opts ...pkgif.SubscriptionOpt) (pkgif.Subscription, error) {
	typ, err := elemType(eventType)
	if err != nil {
		return nil, err
	}

	settings := &pkgif.SubscriptionSettings{Buffer: DefaultBufSize}
	for _, opt := range opts {
		opt(settings)
	}
	if settings.Buffer < 0 {
		settings.Buffer = 0
	}

	sub := &Subscription{
		bus: b,
		typ: typ,
		out: make(chan any, settings.Buffer),
	}

	n := b.node(typ)
	n.mu.Lock()
	n.sinks = append(n.sinks, sub)
	n.mu.Unlock()

	return sub, nil
}

// Emitter 获取发射器
func (b *Bus) Emitter(eventType any) (pkgif.Emitter, error) {
	typ, err := elemType(eventType)
	if err != nil {
		return nil, err
	}
	return &Emitter{node: b.node(typ)}, nil
}

// Dropped 返回某事件类型累计丢弃数
func (b *Bus) Dropped(eventType any) int64 {
	typ, err := elemType(eventType)
	if err != nil {
		return 0
	}
	b.mu.RLock()
	n, ok := b.nodes[typ]
	b.mu.RUnlock()
	if !ok {
		return 0
	}
	return n.dropCount.Load()
}

// ============================================================================
// 内部方法
// ============================================================================

func elemType(eventType any) (reflect.Type, error) {
	if eventType == nil {
		return nil, ErrInvalidEventType
	}
	typ := reflect.TypeOf(eventType)
	if typ.Kind() != reflect.Ptr {
		return nil, ErrNonPointerType
	}
	return typ.Elem(), nil
}

// node 获取或创建事件类型节点
func (b *Bus) node(typ reflect.Type) *node {
	b.mu.RLock()
	n, ok := b.nodes[typ]
	b.mu.RUnlock()
	if ok {
		return n
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if n, ok = b.nodes[typ]; ok {
		return n
	}
	n = &node{
		typ:  typ,
		warn: rate.Sometimes{First: 1, Interval: 10 * time.Second},
	}
	b.nodes[typ] = n
	return n
}

// removeSub 移除订阅
func (b *Bus) removeSub(sub *Subscription) {
	b.mu.RLock()
	n, ok := b.nodes[sub.typ]
	b.mu.RUnlock()
	if !ok {
		return
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	for i, s := range n.sinks {
		if s == sub {
			n.sinks = append(n.sinks[:i], n.sinks[i+1:]...)
			break
		}
	}
}

// emit 发射事件到所有订阅者，不阻塞
func (n *node) emit(event any) {
	n.mu.Lock()
	defer n.mu.Unlock()

	for _, sub := range n.sinks {
		select {
		case sub.out <- event:
		default:
			dropped := n.dropCount.Add(1)
			n.warn.Do(func() {
				logger.Warn("慢消费者检测",
					"type", n.typ.String(),
					"dropped", dropped,
					"reason", "subscriber buffer full")
			})
		}
	}
}
