package router

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/dep2p/go-modrouter/internal/core/correlator"
	"github.com/dep2p/go-modrouter/internal/core/registry"
	pkgif "github.com/dep2p/go-modrouter/pkg/interfaces"
	"github.com/dep2p/go-modrouter/pkg/lib/log"
	"github.com/dep2p/go-modrouter/pkg/types"
)

var logger = log.Logger("core/router")

// runState 路由器运行状态
type runState int

const (
	stateCreated runState = iota
	stateRunning
	stateClosing
	stateClosed
)

// job 投递任务
type job struct {
	msg *types.Message
}

// Router 进程内消息路由器
type Router struct {
	cfg        *Config
	clock      clock.Clock
	registry   *registry.Registry
	correlator *correlator.Correlator
	stats      counters
	events     *emitters

	limMu    sync.Mutex
	limiters map[string]*rate.Limiter

	// failLog 限制单向投递失败的 warn 日志频率
	failLog rate.Sometimes

	mu        sync.RWMutex
	state     runState
	queue     chan job
	loopDone  chan struct{}
	workers   *errgroup.Group
	ctx       context.Context
	cancel    context.CancelFunc
	startedAt time.Time
}

// 确保 Router 实现了 interfaces.Router 接口
var _ pkgif.Router = (*Router)(nil)

// New 创建路由器
func New(opts ...Option) (*Router, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}

	r := &Router{
		cfg:      cfg,
		clock:    cfg.Clock,
		registry: registry.New(),
		limiters: make(map[string]*rate.Limiter),
		failLog:  rate.Sometimes{First: 10, Interval: time.Second},
		queue:    make(chan job, cfg.QueueSize),
		loopDone: make(chan struct{}),
	}

	corr, err := correlator.New(correlator.Config{
		Clock:            cfg.Clock,
		SettledCacheSize: cfg.SettledCacheSize,
		OnSettle:         r.onSettle,
	})
	if err != nil {
		return nil, err
	}
	r.correlator = corr

	r.events, err = newEmitters(cfg.EventBus)
	if err != nil {
		return nil, fmt.Errorf("create event emitters: %w", err)
	}
	return r, nil
}

// ============================================================================
//                              生命周期
// ============================================================================

// Start 启动分发循环
func (r *Router) Start(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.state {
	case stateRunning:
		return ErrAlreadyStarted
	case stateClosing, stateClosed:
		return types.ErrRouterClosed
	}

	// 使用 context.Background() 而不是传入的 ctx
	// 因为 Fx OnStart 的 ctx 在返回后会被取消
	r.ctx, r.cancel = context.WithCancel(context.Background())
	r.workers = new(errgroup.Group)
	r.workers.SetLimit(r.cfg.MaxConcurrentDeliveries)
	r.startedAt = r.clock.Now()
	r.state = stateRunning

	go r.dispatchLoop()

	logger.Info("路由器已启动",
		"queueSize", r.cfg.QueueSize,
		"maxConcurrent", r.cfg.MaxConcurrentDeliveries,
		"defaultTimeout", r.cfg.DefaultTimeout)
	return nil
}

// Close 关闭路由器
//
// 停止接受新消息，投递已入队的任务，最多等待 CloseTimeout 让进行中的
// 投递完成，然后以 ErrRouterClosed 拒绝所有未完成请求。可重复调用。
func (r *Router) Close() error {
	r.mu.Lock()
	switch r.state {
	case stateClosing, stateClosed:
		r.mu.Unlock()
		return nil
	case stateCreated:
		r.state = stateClosed
		r.mu.Unlock()
		r.correlator.Close(types.ErrRouterClosed)
		return r.events.Close()
	}
	r.state = stateClosing
	close(r.queue)
	r.mu.Unlock()

	logger.Info("正在关闭路由器", "queued", len(r.queue))

	drained := make(chan struct{})
	go func() {
		<-r.loopDone
		_ = r.workers.Wait()
		close(drained)
	}()

	var closeErr error
	timer := time.NewTimer(r.cfg.CloseTimeout)
	select {
	case <-drained:
		timer.Stop()
	case <-timer.C:
		closeErr = fmt.Errorf("router: deliveries still running after %s", r.cfg.CloseTimeout)
		logger.Warn("等待进行中的投递超时", "timeout", r.cfg.CloseTimeout)
	}
	// 先结算未完成请求，再取消仍在运行的处理器，被取消的处理器的迟到响应会被忽略
	rejected := r.correlator.Close(types.ErrRouterClosed)
	r.cancel()

	r.mu.Lock()
	r.state = stateClosed
	r.mu.Unlock()

	logger.Info("路由器已关闭", "rejectedRequests", rejected)
	return multierr.Append(closeErr, r.events.Close())
}

// Started 是否处于运行状态
func (r *Router) Started() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state == stateRunning
}

// ============================================================================
//                              模块注册
// ============================================================================

// RegisterModule 注册模块，同 ID 重复注册以最后一次为准
func (r *Router) RegisterModule(moduleID string, handler pkgif.ModuleHandler) error {
	replaced, err := r.registry.Register(moduleID, handler)
	if err != nil {
		return err
	}
	if replaced {
		logger.Info("模块处理器已替换", "module", moduleID)
	} else {
		logger.Info("模块已注册", "module", moduleID)
	}
	r.events.emit(r.events.registered, types.EvtModuleRegistered{
		ModuleID: moduleID,
		Replaced: replaced,
		Time:     r.clock.Now(),
	})
	return nil
}

// UnregisterModule 注销模块，不存在时为空操作
func (r *Router) UnregisterModule(moduleID string) {
	if !r.registry.Unregister(moduleID) {
		return
	}
	r.limMu.Lock()
	delete(r.limiters, moduleID)
	r.limMu.Unlock()

	logger.Info("模块已注销", "module", moduleID)
	r.events.emit(r.events.unregistered, types.EvtModuleUnregistered{
		ModuleID: moduleID,
		Time:     r.clock.Now(),
	})
}

// Modules 返回已注册模块 ID（有序）
func (r *Router) Modules() []string {
	return r.registry.IDs()
}

// HasModule 判断模块是否已注册
func (r *Router) HasModule(moduleID string) bool {
	_, ok := r.registry.Get(moduleID)
	return ok
}

// ============================================================================
//                              统计
// ============================================================================

// GetStats 返回统计快照
func (r *Router) GetStats() types.Stats {
	return types.Stats{
		TotalSent:       r.stats.sent.Load(),
		TotalReceived:   r.stats.received.Load(),
		TotalProcessed:  r.stats.processed.Load(),
		TotalErrors:     r.stats.errors.Load(),
		ActiveModules:   r.registry.Len(),
		PendingMessages: r.correlator.Len(),
	}
}

// PendingRequests 返回未完成请求快照
func (r *Router) PendingRequests() []correlator.PendingInfo {
	return r.correlator.Pending()
}

// QueueLen 返回队列中等待分发的任务数
func (r *Router) QueueLen() int {
	return len(r.queue)
}

// Uptime 返回运行时长，未启动时为 0
func (r *Router) Uptime() time.Duration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.startedAt.IsZero() {
		return 0
	}
	return r.clock.Since(r.startedAt)
}
