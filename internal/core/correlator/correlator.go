package correlator

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dep2p/go-modrouter/pkg/lib/log"
	"github.com/dep2p/go-modrouter/pkg/types"
)

var logger = log.Logger("core/correlator")

// DefaultSettledCacheSize 默认保留的已结算关联 ID 数量
const DefaultSettledCacheSize = 1024

// ResolveFunc 以响应结算请求
type ResolveFunc func(resp *types.MessageResponse)

// RejectFunc 以错误结算请求
type RejectFunc func(err error)

// Settlement 一次结算的描述，交给 OnSettle 钩子
type Settlement struct {
	CorrelationID string
	MessageID     string
	Response      *types.MessageResponse
	Err           error
	Latency       time.Duration
}

// Config 关联器配置
type Config struct {
	// Clock 时钟，测试中可替换为 clock.NewMock()
	Clock clock.Clock

	// SettledCacheSize 已结算 ID 缓存大小
	SettledCacheSize int

	// OnSettle 每次结算时调用（先于结算函数），可为 nil
	OnSettle func(Settlement)
}

// PendingInfo 未完成请求快照
type PendingInfo struct {
	CorrelationID string        `json:"correlationId"`
	MessageID     string        `json:"messageId"`
	Age           time.Duration `json:"age"`
	Timeout       time.Duration `json:"timeout"`
}

// entry 未完成请求
type entry struct {
	corrID  string
	msgID   string
	resolve ResolveFunc
	reject  RejectFunc
	timer   *clock.Timer
	started time.Time
	timeout time.Duration
}

// Correlator 请求关联器
type Correlator struct {
	clock    clock.Clock
	onSettle func(Settlement)

	mu      sync.Mutex
	pending map[string]*entry
	settled *lru.Cache[string, time.Time]
	closed  bool
}

// New 创建关联器
func New(cfg Config) (*Correlator, error) {
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.SettledCacheSize <= 0 {
		cfg.SettledCacheSize = DefaultSettledCacheSize
	}
	settled, err := lru.New[string, time.Time](cfg.SettledCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create settled cache: %w", err)
	}
	return &Correlator{
		clock:    cfg.Clock,
		onSettle: cfg.OnSettle,
		pending:  make(map[string]*entry),
		settled:  settled,
	}, nil
}

// ============================================================================
//                              登记
// ============================================================================

// Register 登记一个未完成请求并启动超时定时器
//
// 同一关联 ID 已在等待中时返回 types.ErrDuplicateCorrelation。
func (c *Correlator) Register(corrID, msgID string, timeout time.Duration, resolve ResolveFunc, reject RejectFunc) error {
	if corrID == "" {
		return ErrEmptyCorrelationID
	}
	if timeout <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidTimeout, timeout)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if _, exists := c.pending[corrID]; exists {
		return fmt.Errorf("%w: %s", types.ErrDuplicateCorrelation, corrID)
	}

	e := &entry{
		corrID:  corrID,
		msgID:   msgID,
		resolve: resolve,
		reject:  reject,
		started: c.clock.Now(),
		timeout: timeout,
	}
	c.pending[corrID] = e
	c.settled.Remove(corrID)
	e.timer = c.clock.AfterFunc(timeout, func() {
		c.expire(e)
	})
	return nil
}

// ============================================================================
//                              结算
// ============================================================================

// Resolve 以响应结算请求，条目不存在（已结算或从未登记）时返回 false
func (c *Correlator) Resolve(corrID string, resp *types.MessageResponse) bool {
	e, ok := c.take(corrID, nil)
	if !ok {
		c.logLate(corrID)
		return false
	}
	c.notify(Settlement{
		CorrelationID: corrID,
		MessageID:     e.msgID,
		Response:      resp,
		Latency:       c.clock.Since(e.started),
	})
	if e.resolve != nil {
		e.resolve(resp)
	}
	return true
}

// Reject 以错误结算请求，条目不存在时返回 false
func (c *Correlator) Reject(corrID string, err error) bool {
	e, ok := c.take(corrID, nil)
	if !ok {
		c.logLate(corrID)
		return false
	}
	c.rejectEntry(e, err)
	return true
}

// expire 超时定时器回调
//
// 只摘除登记时的同一个条目，避免关联 ID 被复用后误伤新条目。
func (c *Correlator) expire(e *entry) {
	if _, ok := c.take(e.corrID, e); !ok {
		return
	}
	logger.Debug("请求超时",
		"correlationId", log.TruncateID(e.corrID, 8),
		"messageId", e.msgID,
		"timeout", e.timeout)
	c.rejectEntry(e, &types.TimeoutError{
		MessageID:     e.msgID,
		CorrelationID: e.corrID,
		Timeout:       e.timeout,
	})
}

// Close 以 err 结算所有未完成请求，之后的 Register 返回 ErrClosed
func (c *Correlator) Close(err error) int {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return 0
	}
	c.closed = true
	entries := make([]*entry, 0, len(c.pending))
	for id, e := range c.pending {
		e.timer.Stop()
		delete(c.pending, id)
		c.settled.Add(id, c.clock.Now())
		entries = append(entries, e)
	}
	c.mu.Unlock()

	if err == nil {
		err = ErrClosed
	}
	for _, e := range entries {
		c.rejectEntry(e, err)
	}
	if len(entries) > 0 {
		logger.Info("关联器关闭，拒绝未完成请求", "count", len(entries))
	}
	return len(entries)
}

// take 从表中摘除条目；want 非 nil 时要求表中条目与之相同
func (c *Correlator) take(corrID string, want *entry) (*entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.pending[corrID]
	if !ok || (want != nil && e != want) {
		return nil, false
	}
	delete(c.pending, corrID)
	e.timer.Stop()
	c.settled.Add(corrID, c.clock.Now())
	return e, true
}

func (c *Correlator) rejectEntry(e *entry, err error) {
	c.notify(Settlement{
		CorrelationID: e.corrID,
		MessageID:     e.msgID,
		Err:           err,
		Latency:       c.clock.Since(e.started),
	})
	if e.reject != nil {
		e.reject(err)
	}
}

func (c *Correlator) notify(s Settlement) {
	if c.onSettle != nil {
		c.onSettle(s)
	}
}

func (c *Correlator) logLate(corrID string) {
	if settledAt, ok := c.settled.Get(corrID); ok {
		logger.Debug("忽略迟到的响应",
			"correlationId", log.TruncateID(corrID, 8),
			"settledAgo", c.clock.Since(settledAt))
	}
}

// ============================================================================
//                              查询
// ============================================================================

// Len 返回未完成请求数
func (c *Correlator) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// IsPending 判断关联 ID 是否仍在等待
func (c *Correlator) IsPending(corrID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.pending[corrID]
	return ok
}

// WasSettled 判断关联 ID 是否最近已结算
func (c *Correlator) WasSettled(corrID string) bool {
	return c.settled.Contains(corrID)
}

// Pending 返回未完成请求快照，按已等待时长降序
func (c *Correlator) Pending() []PendingInfo {
	c.mu.Lock()
	now := c.clock.Now()
	out := make([]PendingInfo, 0, len(c.pending))
	for _, e := range c.pending {
		out = append(out, PendingInfo{
			CorrelationID: e.corrID,
			MessageID:     e.msgID,
			Age:           now.Sub(e.started),
			Timeout:       e.timeout,
		})
	}
	c.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].Age > out[j].Age
	})
	return out
}
