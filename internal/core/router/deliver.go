package router

import (
	"context"
	"errors"
	"fmt"

	"github.com/dep2p/go-modrouter/internal/core/correlator"
	pkgif "github.com/dep2p/go-modrouter/pkg/interfaces"
	"github.com/dep2p/go-modrouter/pkg/lib/log"
	"github.com/dep2p/go-modrouter/pkg/types"
)

// ============================================================================
//                              分发循环
// ============================================================================

// dispatchLoop 按入队顺序取出任务，每个任务在独立 goroutine 中投递
//
// 达到并发上限时 workers.Go 阻塞，队列随之积压，发送方最终收到 ErrQueueFull。
func (r *Router) dispatchLoop() {
	defer close(r.loopDone)

	for j := range r.queue {
		r.workers.Go(func() error {
			r.route(r.ctx, j.msg)
			return nil
		})
	}
}

// route 检查 TTL、查找目标并投递
func (r *Router) route(ctx context.Context, m *types.Message) {
	if m.Expired(r.clock.Now()) {
		r.fail(m, fmt.Errorf("%w: message %s exceeded ttl %s", types.ErrMessageExpired, m.ID, m.TTL))
		return
	}
	handler, ok := r.registry.Get(m.Target)
	if !ok {
		r.fail(m, fmt.Errorf("%w: %s", types.ErrTargetNotFound, m.Target))
		return
	}
	r.deliver(ctx, m, handler)
}

// deliver 调用处理器并结算关联请求
//
// 处理器调用先于结算，结算先于未完成计数减少。
func (r *Router) deliver(ctx context.Context, m *types.Message, handler pkgif.ModuleHandler) {
	r.stats.received.Add(1)

	resp, err := invoke(ctx, handler, m)
	if err != nil {
		r.fail(m, err)
		return
	}
	r.stats.processed.Add(1)

	if !m.IsCorrelated() {
		return
	}
	if resp == nil {
		resp = types.NewSuccessResponse(m, nil)
	}
	r.correlator.Resolve(m.CorrelationID, r.completeResponse(m, resp))
}

// completeResponse 补全响应的回显字段和时间戳，m 可以为 nil
//
// 处理器返回的响应可能被共享，只修改副本。
func (r *Router) completeResponse(m *types.Message, resp *types.MessageResponse) *types.MessageResponse {
	out := *resp
	if m != nil && out.MessageID == "" {
		out.MessageID = m.ID
	}
	if m != nil && out.CorrelationID == "" {
		out.CorrelationID = m.CorrelationID
	}
	if out.Timestamp.IsZero() {
		out.Timestamp = r.clock.Now()
	}
	return &out
}

// invoke 调用处理器并把 panic 转换为错误
func invoke(ctx context.Context, handler pkgif.ModuleHandler, m *types.Message) (resp *types.MessageResponse, err error) {
	defer func() {
		if p := recover(); p != nil {
			resp = nil
			err = fmt.Errorf("%w: module %s handling %s: %v", types.ErrHandlerPanic, m.Target, m.Type, p)
		}
	}()
	return handler.HandleMessage(ctx, m)
}

// fail 记录一次投递失败
//
// 有匹配的未完成请求时以错误结算该请求；否则只计数、记录日志并发布事件。
func (r *Router) fail(m *types.Message, err error) {
	r.stats.errors.Add(1)

	if m.IsCorrelated() && r.correlator.Reject(m.CorrelationID, err) {
		return
	}

	logger.Debug("消息投递失败",
		"messageId", m.ID,
		"type", m.Type,
		"source", m.Source,
		"target", m.Target,
		"error", err)
	r.failLog.Do(func() {
		logger.Warn("消息投递失败",
			"messageId", log.TruncateID(m.ID, 8),
			"type", m.Type,
			"target", m.Target,
			"error", err)
	})
	r.events.emit(r.events.deliveryFailed, types.EvtDeliveryFailed{
		MessageID: m.ID,
		MsgType:   m.Type,
		Source:    m.Source,
		Target:    m.Target,
		Err:       err.Error(),
		Time:      r.clock.Now(),
	})
}

// onSettle 关联器结算钩子
func (r *Router) onSettle(s correlator.Settlement) {
	if errors.Is(s.Err, types.ErrRequestTimeout) {
		r.stats.errors.Add(1)
		logger.Warn("请求超时", "messageId", s.MessageID, "latency", s.Latency)
	}

	evt := types.EvtRequestSettled{
		CorrelationID: s.CorrelationID,
		MessageID:     s.MessageID,
		Latency:       s.Latency,
		Time:          r.clock.Now(),
	}
	switch {
	case s.Err != nil:
		evt.Rejected = true
		evt.Err = s.Err.Error()
	case s.Response != nil:
		evt.Success = s.Response.Success
		evt.Err = s.Response.Error
	}
	r.events.emit(r.events.settled, evt)
}
