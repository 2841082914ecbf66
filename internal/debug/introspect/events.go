package introspect

import (
	"sync"
	"time"

	"go.uber.org/multierr"

	pkgif "github.com/dep2p/go-modrouter/pkg/interfaces"
	"github.com/dep2p/go-modrouter/pkg/types"
)

// DefaultEventHistory 默认保留的事件条数
const DefaultEventHistory = 128

// EventEntry 事件日志条目
type EventEntry struct {
	Type  string      `json:"type"`
	Time  time.Time   `json:"time"`
	Event types.Event `json:"event"`
}

// EventLog 订阅路由器事件并保留最近 N 条
type EventLog struct {
	bus  pkgif.EventBus
	size int

	mu    sync.Mutex
	buf   []EventEntry
	next  int
	full  bool
	subs  []pkgif.Subscription
	loops sync.WaitGroup
}

// NewEventLog 创建事件日志，size <= 0 时使用默认值
func NewEventLog(bus pkgif.EventBus, size int) *EventLog {
	if size <= 0 {
		size = DefaultEventHistory
	}
	return &EventLog{
		bus:  bus,
		size: size,
		buf:  make([]EventEntry, size),
	}
}

// Start 订阅全部路由器事件类型
func (l *EventLog) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.subs != nil {
		return nil
	}

	for _, evtType := range []any{
		new(types.EvtModuleRegistered),
		new(types.EvtModuleUnregistered),
		new(types.EvtRequestSettled),
		new(types.EvtDeliveryFailed),
	} {
		sub, err := l.bus.Subscribe(evtType, pkgif.BufSize(64))
		if err != nil {
			for _, s := range l.subs {
				_ = s.Close()
			}
			l.subs = nil
			return err
		}
		l.subs = append(l.subs, sub)
		l.loops.Add(1)
		go l.loop(sub)
	}
	return nil
}

// Stop 取消订阅并等待全部循环退出
func (l *EventLog) Stop() error {
	l.mu.Lock()
	subs := l.subs
	l.subs = nil
	l.mu.Unlock()

	var err error
	for _, s := range subs {
		err = multierr.Append(err, s.Close())
	}
	l.loops.Wait()
	return err
}

func (l *EventLog) loop(sub pkgif.Subscription) {
	defer l.loops.Done()
	for evt := range sub.Out() {
		if e, ok := evt.(types.Event); ok {
			l.Add(e)
		}
	}
}

// Add 追加一条事件，超出容量时覆盖最旧的一条
func (l *EventLog) Add(e types.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.buf[l.next] = EventEntry{Type: e.Type(), Time: e.Timestamp(), Event: e}
	l.next = (l.next + 1) % l.size
	if l.next == 0 {
		l.full = true
	}
}

// Recent 返回保留的事件，按写入顺序从旧到新
func (l *EventLog) Recent() []EventEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.full {
		return append([]EventEntry(nil), l.buf[:l.next]...)
	}
	out := make([]EventEntry, 0, l.size)
	out = append(out, l.buf[l.next:]...)
	return append(out, l.buf[:l.next]...)
}
