package router

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/time/rate"

	"github.com/dep2p/go-modrouter/internal/core/correlator"
	pkgif "github.com/dep2p/go-modrouter/pkg/interfaces"
	"github.com/dep2p/go-modrouter/pkg/types"
)

// ============================================================================
//                              单向 / 广播
// ============================================================================

// SendMessage 单向发送，target 为空时广播
//
// 只有校验失败或无法入队时返回错误；投递阶段的失败只计数并记录日志。
func (r *Router) SendMessage(msg *types.Message) error {
	m, err := r.accept(msg, false)
	if err != nil {
		return err
	}
	if m.IsBroadcast() {
		return r.fanout(m)
	}
	if err := r.enqueue(m); err != nil {
		return err
	}
	r.stats.sent.Add(1)
	return nil
}

// BroadcastMessage 广播给除发送方外的所有已注册模块
//
// 每个接收方收到一份 target 为自身 ID 的副本，各副本独立投递。
func (r *Router) BroadcastMessage(msg *types.Message) error {
	m, err := r.accept(msg, false)
	if err != nil {
		return err
	}
	return r.fanout(m)
}

// fanout 按调用时刻的注册表快照扇出
func (r *Router) fanout(m *types.Message) error {
	peers := r.registry.Peers(m.Source)
	r.stats.sent.Add(1)

	var errs error
	for _, p := range peers {
		if err := r.enqueue(m.WithTarget(p.ID)); err != nil {
			r.stats.errors.Add(1)
			errs = multierr.Append(errs, fmt.Errorf("broadcast to %s: %w", p.ID, err))
		}
	}
	logger.Debug("广播已入队", "messageId", m.ID, "type", m.Type, "source", m.Source, "peers", len(peers))
	return errs
}

// ============================================================================
//                              请求 / 响应
// ============================================================================

// outcome 请求结算结果
type outcome struct {
	resp *types.MessageResponse
	err  error
}

// SendRequest 发送请求并等待关联响应
//
// 未设置关联 ID 时自动生成；timeout <= 0 使用默认超时。
// ctx 取消时以 ctx.Err() 结算该请求。
func (r *Router) SendRequest(ctx context.Context, msg *types.Message, timeout time.Duration) (*types.MessageResponse, error) {
	m, err := r.accept(msg, true)
	if err != nil {
		return nil, err
	}
	if m.CorrelationID == "" {
		m.CorrelationID = types.NewCorrelationID()
	}
	if timeout <= 0 {
		timeout = r.cfg.DefaultTimeout
	}

	result := make(chan outcome, 1)
	err = r.correlator.Register(m.CorrelationID, m.ID, timeout,
		func(resp *types.MessageResponse) { result <- outcome{resp: resp} },
		func(err error) { result <- outcome{err: err} },
	)
	if errors.Is(err, correlator.ErrClosed) {
		return nil, types.ErrRouterClosed
	}
	if err != nil {
		return nil, err
	}
	r.stats.sent.Add(1)

	if err := r.enqueue(m); err != nil {
		r.stats.errors.Add(1)
		r.correlator.Reject(m.CorrelationID, err)
	}

	select {
	case o := <-result:
		return o.resp, o.err
	case <-ctx.Done():
		// 抢先结算失败说明结果已到达，两种情况下通道里都恰好有一个结果
		r.correlator.Reject(m.CorrelationID, ctx.Err())
		o := <-result
		return o.resp, o.err
	}
}

// SendRequestAsync 发送请求，结果通过回调返回
//
// 回调恰好调用一次，且总是收到完整的 MessageResponse：
// 错误会被转换为失败响应。
func (r *Router) SendRequestAsync(msg *types.Message, callback pkgif.ResponseCallback, timeout time.Duration) {
	m := msg.Clone()
	if m != nil && m.CorrelationID == "" {
		m.CorrelationID = types.NewCorrelationID()
	}

	go func() {
		resp, err := r.SendRequest(context.Background(), m, timeout)
		if err != nil {
			resp = r.completeResponse(m, types.ResponseFromError(m, err))
		}
		if callback == nil {
			return
		}
		defer func() {
			if p := recover(); p != nil {
				logger.Error("异步请求回调 panic", "messageId", resp.MessageID, "panic", p)
			}
		}()
		callback(resp)
	}()
}

// ============================================================================
//                              接受与入队
// ============================================================================

// accept 校验并复制消息，填充时间戳
func (r *Router) accept(msg *types.Message, request bool) (*types.Message, error) {
	var err error
	if request {
		err = msg.ValidateRequest()
	} else {
		err = msg.Validate()
	}
	if err != nil {
		return nil, err
	}
	if err := r.checkRunning(); err != nil {
		return nil, err
	}
	if !r.allow(msg.Source) {
		return nil, fmt.Errorf("%w: source %s", types.ErrRateLimited, msg.Source)
	}

	m := msg.Clone()
	if m.Timestamp.IsZero() {
		m.Timestamp = r.clock.Now()
	}
	return m, nil
}

func (r *Router) checkRunning() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.stateErrLocked()
}

func (r *Router) stateErrLocked() error {
	switch r.state {
	case stateCreated:
		return types.ErrRouterNotStarted
	case stateClosing, stateClosed:
		return types.ErrRouterClosed
	}
	return nil
}

// enqueue 非阻塞入队
func (r *Router) enqueue(m *types.Message) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if err := r.stateErrLocked(); err != nil {
		return err
	}
	select {
	case r.queue <- job{msg: m}:
		return nil
	default:
		return fmt.Errorf("%w: capacity %d", types.ErrQueueFull, cap(r.queue))
	}
}

// allow 按发送方限流
func (r *Router) allow(source string) bool {
	if r.cfg.SendRateLimit <= 0 {
		return true
	}
	r.limMu.Lock()
	lim, ok := r.limiters[source]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(r.cfg.SendRateLimit), r.cfg.SendBurst)
		r.limiters[source] = lim
	}
	r.limMu.Unlock()
	return lim.AllowN(r.clock.Now(), 1)
}
