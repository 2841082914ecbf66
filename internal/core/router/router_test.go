package router

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"

	"github.com/dep2p/go-modrouter/config"
	"github.com/dep2p/go-modrouter/internal/core/eventbus"
	pkgif "github.com/dep2p/go-modrouter/pkg/interfaces"
	"github.com/dep2p/go-modrouter/pkg/types"
)

func newTestRouter(t *testing.T, opts ...Option) *Router {
	t.Helper()
	r, err := New(opts...)
	require.NoError(t, err)
	require.NoError(t, r.Start(context.Background()))
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func newMsg(msgType, source, target string) *types.Message {
	return &types.Message{
		ID:     types.NewMessageID(),
		Type:   msgType,
		Source: source,
		Target: target,
	}
}

// pongHandler 模拟默认处理器的 ping 行为
func pongHandler(id string) *MockHandler {
	h := NewMockHandler()
	h.HandleFunc = func(_ context.Context, msg *types.Message) (*types.MessageResponse, error) {
		if msg.Type == "ping" && msg.IsCorrelated() {
			return types.NewSuccessResponse(msg, map[string]any{"pong": true, "moduleId": id}), nil
		}
		return nil, nil
	}
	return h
}

// blockingHandler 直到 release 关闭或 ctx 取消才返回
func blockingHandler(release <-chan struct{}) *MockHandler {
	h := NewMockHandler()
	h.HandleFunc = func(ctx context.Context, _ *types.Message) (*types.MessageResponse, error) {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil, nil
	}
	return h
}

// ============================================================================
//                              配置与生命周期
// ============================================================================

func TestNew_InvalidConfig(t *testing.T) {
	_, err := New(WithTimeout(0))
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = New(WithSendRateLimit(5, 0))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestRouter_Lifecycle(t *testing.T) {
	r, err := New()
	require.NoError(t, err)

	t.Run("未启动时拒绝发送", func(t *testing.T) {
		err := r.SendMessage(newMsg("note", "m1", "m2"))
		assert.ErrorIs(t, err, types.ErrRouterNotStarted)
	})

	require.NoError(t, r.Start(context.Background()))
	assert.True(t, r.Started())
	assert.ErrorIs(t, r.Start(context.Background()), ErrAlreadyStarted)

	require.NoError(t, r.Close())
	assert.False(t, r.Started())
	assert.NoError(t, r.Close(), "close is idempotent")

	t.Run("关闭后拒绝发送", func(t *testing.T) {
		err := r.SendMessage(newMsg("note", "m1", "m2"))
		assert.ErrorIs(t, err, types.ErrRouterClosed)

		_, err = r.SendRequest(context.Background(), newMsg("ping", "m1", "m2"), time.Second)
		assert.ErrorIs(t, err, types.ErrRouterClosed)
	})
	assert.ErrorIs(t, r.Start(context.Background()), types.ErrRouterClosed)
}

func TestConfigFromUnified(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Router.DefaultTimeout = config.Duration(2 * time.Second)
	cfg.Router.QueueSize = 7

	c := ConfigFromUnified(cfg)
	assert.Equal(t, 2*time.Second, c.DefaultTimeout)
	assert.Equal(t, 7, c.QueueSize)
	assert.Equal(t, DefaultConfig(), ConfigFromUnified(nil))
}

// ============================================================================
//                              单向消息
// ============================================================================

func TestRouter_SendMessage_DeliveredOnce(t *testing.T) {
	r := newTestRouter(t)
	h := NewMockHandler()
	require.NoError(t, r.RegisterModule("m2", h))

	msg := newMsg("note", "m1", "m2")
	msg.Payload = "hello"
	require.NoError(t, r.SendMessage(msg))

	require.Eventually(t, func() bool { return h.MessageCount() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, 1, h.MessageCount())

	got := h.Messages()[0]
	assert.Equal(t, msg.ID, got.ID)
	assert.Equal(t, "hello", got.Payload)
	assert.False(t, got.Timestamp.IsZero(), "router stamps a missing timestamp")
	assert.True(t, msg.Timestamp.IsZero(), "caller's message is not mutated")

	require.Eventually(t, func() bool { return r.GetStats().TotalProcessed == 1 }, time.Second, 5*time.Millisecond)
	stats := r.GetStats()
	assert.Equal(t, int64(1), stats.TotalSent)
	assert.Equal(t, int64(1), stats.TotalReceived)
	assert.Equal(t, int64(0), stats.TotalErrors)
	assert.Equal(t, 1, stats.ActiveModules)
}

func TestRouter_SendMessage_Malformed(t *testing.T) {
	r := newTestRouter(t)

	cases := map[string]*types.Message{
		"nil":       nil,
		"缺少 id":     {Type: "x", Source: "m1"},
		"缺少 source": {ID: "1", Type: "x"},
		"缺少 type":   {ID: "1", Source: "m1"},
	}
	for name, msg := range cases {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, r.SendMessage(msg), types.ErrMalformedMessage)
		})
	}
	assert.Equal(t, int64(0), r.GetStats().TotalSent)
}

func TestRouter_SendMessage_FailuresNotSurfaced(t *testing.T) {
	r := newTestRouter(t)
	h := NewMockHandler()
	h.HandleFunc = func(context.Context, *types.Message) (*types.MessageResponse, error) {
		panic("boom")
	}
	require.NoError(t, r.RegisterModule("m2", h))

	assert.NoError(t, r.SendMessage(newMsg("note", "m1", "missing")))
	assert.NoError(t, r.SendMessage(newMsg("note", "m1", "m2")))

	require.Eventually(t, func() bool { return r.GetStats().TotalErrors == 2 }, time.Second, 5*time.Millisecond)
	stats := r.GetStats()
	assert.Equal(t, int64(2), stats.TotalSent)
	assert.Equal(t, int64(1), stats.TotalReceived)
	assert.Equal(t, int64(0), stats.TotalProcessed)
}

// ============================================================================
//                              广播
// ============================================================================

func TestRouter_BroadcastExcludesSender(t *testing.T) {
	r := newTestRouter(t)
	handlers := map[string]*MockHandler{
		"m1": NewMockHandler(),
		"m2": NewMockHandler(),
		"m3": NewMockHandler(),
	}
	for id, h := range handlers {
		require.NoError(t, r.RegisterModule(id, h))
	}

	require.NoError(t, r.BroadcastMessage(newMsg("announce", "m1", "")))

	for _, id := range []string{"m2", "m3"} {
		h := handlers[id]
		require.Eventually(t, func() bool { return h.MessageCount() == 1 }, time.Second, 5*time.Millisecond)
		assert.Equal(t, id, h.Messages()[0].Target)
	}
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, handlers["m1"].MessageCount())
	assert.Equal(t, 1, handlers["m2"].MessageCount())
	assert.Equal(t, 1, handlers["m3"].MessageCount())
	// 广播无论扇出多少副本都只计一次发送
	assert.Equal(t, int64(1), r.GetStats().TotalSent)
}

func TestRouter_SendMessageWithoutTargetBroadcasts(t *testing.T) {
	r := newTestRouter(t)
	m1, m2 := NewMockHandler(), NewMockHandler()
	require.NoError(t, r.RegisterModule("m1", m1))
	require.NoError(t, r.RegisterModule("m2", m2))

	require.NoError(t, r.SendMessage(newMsg("announce", "m1", "")))

	require.Eventually(t, func() bool { return m2.MessageCount() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, m1.MessageCount())
}

func TestRouter_BroadcastPeerFailureIsolated(t *testing.T) {
	r := newTestRouter(t)
	bad := NewMockHandler()
	bad.HandleFunc = func(context.Context, *types.Message) (*types.MessageResponse, error) {
		return nil, errors.New("bad peer")
	}
	good := NewMockHandler()
	require.NoError(t, r.RegisterModule("bad", bad))
	require.NoError(t, r.RegisterModule("good", good))

	require.NoError(t, r.BroadcastMessage(newMsg("announce", "src", "")))

	require.Eventually(t, func() bool { return good.MessageCount() == 1 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return r.GetStats().TotalErrors == 1 }, time.Second, 5*time.Millisecond)
}

// ============================================================================
//                              请求 / 响应
// ============================================================================

func TestRouter_SendRequest_PingRoundTrip(t *testing.T) {
	r := newTestRouter(t)
	require.NoError(t, r.RegisterModule("m1", pongHandler("m1")))
	require.NoError(t, r.RegisterModule("m2", pongHandler("m2")))

	msg := newMsg("ping", "m1", "m2")
	resp, err := r.SendRequest(context.Background(), msg, time.Second)
	require.NoError(t, err)
	require.NotNil(t, resp)

	assert.True(t, resp.Success)
	assert.Equal(t, map[string]any{"pong": true, "moduleId": "m2"}, resp.Data)
	assert.Equal(t, msg.ID, resp.MessageID)
	assert.NotEmpty(t, resp.CorrelationID, "correlation id generated when absent")
	assert.Empty(t, msg.CorrelationID, "caller's message is not mutated")

	stats := r.GetStats()
	assert.Equal(t, 0, stats.PendingMessages)
	assert.Equal(t, int64(1), stats.TotalSent)
	assert.Equal(t, int64(1), stats.TotalProcessed)
}

func TestRouter_SendRequest_NilResponseSynthesized(t *testing.T) {
	r := newTestRouter(t)
	require.NoError(t, r.RegisterModule("m2", NewMockHandler()))

	msg := newMsg("work", "m1", "m2")
	msg.CorrelationID = "c-fixed"
	resp, err := r.SendRequest(context.Background(), msg, time.Second)
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "c-fixed", resp.CorrelationID)
	assert.Equal(t, msg.ID, resp.MessageID)
}

func TestRouter_SendRequest_RequiresTarget(t *testing.T) {
	r := newTestRouter(t)
	_, err := r.SendRequest(context.Background(), newMsg("ping", "m1", ""), time.Second)
	assert.ErrorIs(t, err, types.ErrMalformedMessage)
	assert.Equal(t, 0, r.GetStats().PendingMessages)
}

func TestRouter_SendRequest_Timeout(t *testing.T) {
	r := newTestRouter(t)
	release := make(chan struct{})
	defer close(release)
	require.NoError(t, r.RegisterModule("m2", blockingHandler(release)))

	msg := newMsg("slow", "m1", "m2")
	start := time.Now()
	resp, err := r.SendRequest(context.Background(), msg, 50*time.Millisecond)
	elapsed := time.Since(start)

	assert.Nil(t, resp)
	require.ErrorIs(t, err, types.ErrRequestTimeout)
	assert.Contains(t, err.Error(), msg.ID)
	assert.GreaterOrEqual(t, elapsed, 50*time.Millisecond)
	assert.Less(t, elapsed, time.Second)

	stats := r.GetStats()
	assert.Equal(t, 0, stats.PendingMessages)
	assert.Equal(t, int64(1), stats.TotalErrors)
}

func TestRouter_SendRequest_TargetNotFound(t *testing.T) {
	r := newTestRouter(t)

	_, err := r.SendRequest(context.Background(), newMsg("ping", "m1", "nobody"), time.Second)
	assert.ErrorIs(t, err, types.ErrTargetNotFound)
	assert.Contains(t, err.Error(), "nobody")
}

func TestRouter_UnregisterThenDeliver(t *testing.T) {
	r := newTestRouter(t)
	old := pongHandler("m2")
	require.NoError(t, r.RegisterModule("m2", old))
	r.UnregisterModule("m2")

	_, err := r.SendRequest(context.Background(), newMsg("ping", "m1", "m2"), time.Second)
	assert.ErrorIs(t, err, types.ErrTargetNotFound)
	assert.Equal(t, 0, old.MessageCount(), "no stale delivery to the old handler")

	assert.NotPanics(t, func() { r.UnregisterModule("m2") })
}

func TestRouter_DoubleRegistration(t *testing.T) {
	r := newTestRouter(t)
	first, second := pongHandler("first"), pongHandler("second")

	require.NoError(t, r.RegisterModule("m1", first))
	require.NoError(t, r.RegisterModule("m1", second))
	assert.Equal(t, 1, r.GetStats().ActiveModules)

	resp, err := r.SendRequest(context.Background(), newMsg("ping", "x", "m1"), time.Second)
	require.NoError(t, err)
	assert.Equal(t, "second", resp.Data.(map[string]any)["moduleId"])
	assert.Equal(t, 0, first.MessageCount())
}

func TestRouter_RegisterNotifiesPeers(t *testing.T) {
	r := newTestRouter(t)
	m1, m2 := NewMockHandler(), NewMockHandler()
	require.NoError(t, r.RegisterModule("m1", m1))
	require.NoError(t, r.RegisterModule("m2", m2))
	r.UnregisterModule("m2")

	assert.Equal(t, []string{"m2"}, m1.Registered())
	assert.Equal(t, []string{"m2"}, m1.Unregistered())
	assert.Empty(t, m2.Registered())
	assert.Equal(t, []string{"m1"}, r.Modules())
	assert.False(t, r.HasModule("m2"))

	assert.ErrorIs(t, r.RegisterModule("", m1), types.ErrEmptyModuleID)
	assert.ErrorIs(t, r.RegisterModule("m3", nil), types.ErrNilHandler)
}

func TestRouter_SendRequest_HandlerFailure(t *testing.T) {
	r := newTestRouter(t)
	boom := errors.New("disk on fire")

	failing := NewMockHandler()
	failing.HandleFunc = func(context.Context, *types.Message) (*types.MessageResponse, error) {
		return nil, boom
	}
	panicking := NewMockHandler()
	panicking.HandleFunc = func(context.Context, *types.Message) (*types.MessageResponse, error) {
		panic("kaboom")
	}
	require.NoError(t, r.RegisterModule("failing", failing))
	require.NoError(t, r.RegisterModule("panicking", panicking))

	t.Run("返回错误", func(t *testing.T) {
		_, err := r.SendRequest(context.Background(), newMsg("work", "m1", "failing"), time.Second)
		assert.ErrorIs(t, err, boom)
	})

	t.Run("panic 被恢复", func(t *testing.T) {
		_, err := r.SendRequest(context.Background(), newMsg("work", "m1", "panicking"), time.Second)
		assert.ErrorIs(t, err, types.ErrHandlerPanic)
		assert.Contains(t, err.Error(), "kaboom")
	})

	t.Run("失败响应不是错误", func(t *testing.T) {
		h := NewMockHandler()
		h.HandleFunc = func(_ context.Context, msg *types.Message) (*types.MessageResponse, error) {
			return types.NewFailureResponse(msg, "nope"), nil
		}
		require.NoError(t, r.RegisterModule("refuser", h))

		resp, err := r.SendRequest(context.Background(), newMsg("work", "m1", "refuser"), time.Second)
		require.NoError(t, err)
		assert.False(t, resp.Success)
		assert.Equal(t, "nope", resp.Error)
	})
}

func TestRouter_SendRequest_ContextCancel(t *testing.T) {
	r := newTestRouter(t)
	release := make(chan struct{})
	defer close(release)
	require.NoError(t, r.RegisterModule("m2", blockingHandler(release)))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := r.SendRequest(ctx, newMsg("slow", "m1", "m2"), time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, r.GetStats().PendingMessages)
}

func TestRouter_TTLExpired(t *testing.T) {
	mock := clock.NewMock()
	mock.Set(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	r := newTestRouter(t, WithClock(mock))
	h := pongHandler("m2")
	require.NoError(t, r.RegisterModule("m2", h))

	msg := newMsg("ping", "m1", "m2")
	msg.Timestamp = mock.Now().Add(-2 * time.Second)
	msg.TTL = time.Second

	_, err := r.SendRequest(context.Background(), msg, time.Second)
	assert.ErrorIs(t, err, types.ErrMessageExpired)
	assert.Equal(t, 0, h.MessageCount())

	t.Run("未过期正常投递", func(t *testing.T) {
		fresh := newMsg("ping", "m1", "m2")
		fresh.TTL = time.Second
		resp, err := r.SendRequest(context.Background(), fresh, time.Second)
		require.NoError(t, err)
		assert.True(t, resp.Success)
	})
}

// ============================================================================
//                              异步请求
// ============================================================================

func TestRouter_SendRequestAsync_CallbackOnce(t *testing.T) {
	r := newTestRouter(t)
	require.NoError(t, r.RegisterModule("m2", pongHandler("m2")))
	release := make(chan struct{})
	defer close(release)
	require.NoError(t, r.RegisterModule("hung", blockingHandler(release)))

	t.Run("成功", func(t *testing.T) {
		var calls atomic.Int32
		var got atomic.Pointer[types.MessageResponse]
		r.SendRequestAsync(newMsg("ping", "m1", "m2"), func(resp *types.MessageResponse) {
			calls.Add(1)
			got.Store(resp)
		}, time.Second)

		require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
		assert.True(t, got.Load().Success)
	})

	t.Run("超时", func(t *testing.T) {
		var calls atomic.Int32
		var got atomic.Pointer[types.MessageResponse]
		msg := newMsg("slow", "m1", "hung")
		r.SendRequestAsync(msg, func(resp *types.MessageResponse) {
			calls.Add(1)
			got.Store(resp)
		}, 30*time.Millisecond)

		require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
		time.Sleep(50 * time.Millisecond)
		assert.Equal(t, int32(1), calls.Load())

		resp := got.Load()
		assert.False(t, resp.Success)
		assert.Contains(t, resp.Error, msg.ID)
		assert.Equal(t, msg.ID, resp.MessageID)
		assert.NotEmpty(t, resp.CorrelationID)
	})

	t.Run("校验失败也回调", func(t *testing.T) {
		done := make(chan *types.MessageResponse, 2)
		r.SendRequestAsync(newMsg("ping", "m1", ""), func(resp *types.MessageResponse) {
			done <- resp
		}, time.Second)

		select {
		case resp := <-done:
			assert.False(t, resp.Success)
			assert.Contains(t, resp.Error, "malformed")
		case <-time.After(time.Second):
			t.Fatal("callback not invoked")
		}
	})

	t.Run("ResponseError 原样传递", func(t *testing.T) {
		h := NewMockHandler()
		h.HandleFunc = func(_ context.Context, msg *types.Message) (*types.MessageResponse, error) {
			resp := types.NewFailureResponse(msg, "quota exceeded")
			resp.Data = map[string]any{"retryAfter": 5}
			return nil, &types.ResponseError{Response: resp}
		}
		require.NoError(t, r.RegisterModule("quota", h))

		done := make(chan *types.MessageResponse, 1)
		r.SendRequestAsync(newMsg("work", "m1", "quota"), func(resp *types.MessageResponse) {
			done <- resp
		}, time.Second)

		resp := <-done
		assert.Equal(t, "quota exceeded", resp.Error)
		assert.Equal(t, map[string]any{"retryAfter": 5}, resp.Data)
	})
}

func TestRouter_SharedResponseNotMutated(t *testing.T) {
	r := newTestRouter(t)
	shared := &types.MessageResponse{Success: true, Data: "cached"}
	h := NewMockHandler()
	h.HandleFunc = func(context.Context, *types.Message) (*types.MessageResponse, error) {
		return shared, nil
	}
	require.NoError(t, r.RegisterModule("cache", h))

	const total = 20
	var wg sync.WaitGroup
	ids := make([]string, total)
	resps := make([]*types.MessageResponse, total)
	for i := 0; i < total; i++ {
		msg := newMsg("get", "m1", "cache")
		ids[i] = msg.ID
		wg.Add(1)
		go func(i int, msg *types.Message) {
			defer wg.Done()
			resp, err := r.SendRequest(context.Background(), msg, time.Second)
			assert.NoError(t, err)
			resps[i] = resp
		}(i, msg)
	}
	wg.Wait()

	for i, resp := range resps {
		require.NotNil(t, resp)
		assert.NotSame(t, shared, resp)
		assert.Equal(t, ids[i], resp.MessageID)
		assert.Equal(t, "cached", resp.Data)
		assert.False(t, resp.Timestamp.IsZero())
	}
	assert.Empty(t, shared.MessageID)
	assert.Empty(t, shared.CorrelationID)
	assert.True(t, shared.Timestamp.IsZero())
}

func TestRouter_ExactlyOnceUnderTimeoutRace(t *testing.T) {
	r := newTestRouter(t)
	h := NewMockHandler()
	var n atomic.Int64
	h.HandleFunc = func(context.Context, *types.Message) (*types.MessageResponse, error) {
		// 一半请求在超时附近返回
		if n.Add(1)%2 == 0 {
			time.Sleep(5 * time.Millisecond)
		}
		return nil, nil
	}
	require.NoError(t, r.RegisterModule("m2", h))

	const total = 200
	var callbacks atomic.Int64
	for i := 0; i < total; i++ {
		r.SendRequestAsync(newMsg("work", "m1", "m2"), func(*types.MessageResponse) {
			callbacks.Add(1)
		}, 5*time.Millisecond)
	}

	require.Eventually(t, func() bool { return callbacks.Load() == total }, 5*time.Second, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int64(total), callbacks.Load())
	assert.Equal(t, 0, r.GetStats().PendingMessages)
}

// ============================================================================
//                              关闭、限流、队列
// ============================================================================

func TestRouter_CloseRejectsPending(t *testing.T) {
	r, err := New(WithCloseTimeout(50 * time.Millisecond))
	require.NoError(t, err)
	require.NoError(t, r.Start(context.Background()))

	release := make(chan struct{})
	defer close(release)
	require.NoError(t, r.RegisterModule("hung", blockingHandler(release)))

	result := make(chan error, 1)
	go func() {
		_, err := r.SendRequest(context.Background(), newMsg("slow", "m1", "hung"), time.Minute)
		result <- err
	}()
	require.Eventually(t, func() bool { return r.GetStats().PendingMessages == 1 }, time.Second, 5*time.Millisecond)

	// 处理器被 ctx 取消前一直占用，Close 等待超时后仍然结算请求
	_ = r.Close()

	select {
	case err := <-result:
		assert.ErrorIs(t, err, types.ErrRouterClosed)
	case <-time.After(time.Second):
		t.Fatal("pending request not settled on close")
	}
	assert.Equal(t, 0, r.GetStats().PendingMessages)
}

func TestRouter_CloseDrainsQueued(t *testing.T) {
	r, err := New()
	require.NoError(t, err)
	require.NoError(t, r.Start(context.Background()))

	h := NewMockHandler()
	require.NoError(t, r.RegisterModule("m2", h))
	for i := 0; i < 20; i++ {
		require.NoError(t, r.SendMessage(newMsg("note", "m1", "m2")))
	}
	require.NoError(t, r.Close())
	assert.Equal(t, 20, h.MessageCount())
}

func TestRouter_SendRateLimit(t *testing.T) {
	mock := clock.NewMock()
	r := newTestRouter(t, WithClock(mock), WithSendRateLimit(1, 2))
	require.NoError(t, r.RegisterModule("m2", NewMockHandler()))

	require.NoError(t, r.SendMessage(newMsg("note", "m1", "m2")))
	require.NoError(t, r.SendMessage(newMsg("note", "m1", "m2")))
	assert.ErrorIs(t, r.SendMessage(newMsg("note", "m1", "m2")), types.ErrRateLimited)

	// 不同发送方独立限流
	assert.NoError(t, r.SendMessage(newMsg("note", "m3", "m2")))

	mock.Add(time.Second)
	assert.NoError(t, r.SendMessage(newMsg("note", "m1", "m2")))
}

func TestRouter_QueueFull(t *testing.T) {
	r := newTestRouter(t, WithQueueSize(1), WithMaxConcurrentDeliveries(1), WithCloseTimeout(10*time.Millisecond))
	release := make(chan struct{})
	defer close(release)
	require.NoError(t, r.RegisterModule("hung", blockingHandler(release)))

	var full error
	for i := 0; i < 10 && full == nil; i++ {
		if err := r.SendMessage(newMsg("note", "m1", "hung")); err != nil {
			full = err
		}
		time.Sleep(2 * time.Millisecond)
	}
	assert.ErrorIs(t, full, types.ErrQueueFull)
}

// ============================================================================
//                              事件
// ============================================================================

func TestRouter_EmitsLifecycleEvents(t *testing.T) {
	bus := eventbus.NewBus()
	regSub, err := bus.Subscribe(new(types.EvtModuleRegistered))
	require.NoError(t, err)
	settledSub, err := bus.Subscribe(new(types.EvtRequestSettled))
	require.NoError(t, err)
	failedSub, err := bus.Subscribe(new(types.EvtDeliveryFailed))
	require.NoError(t, err)

	r := newTestRouter(t, WithEventBus(bus))
	require.NoError(t, r.RegisterModule("m2", pongHandler("m2")))

	select {
	case evt := <-regSub.Out():
		assert.Equal(t, "m2", evt.(types.EvtModuleRegistered).ModuleID)
	case <-time.After(time.Second):
		t.Fatal("no registered event")
	}

	msg := newMsg("ping", "m1", "m2")
	_, err = r.SendRequest(context.Background(), msg, time.Second)
	require.NoError(t, err)
	select {
	case evt := <-settledSub.Out():
		settled := evt.(types.EvtRequestSettled)
		assert.Equal(t, msg.ID, settled.MessageID)
		assert.True(t, settled.Success)
	case <-time.After(time.Second):
		t.Fatal("no settled event")
	}

	require.NoError(t, r.SendMessage(newMsg("note", "m1", "ghost")))
	select {
	case evt := <-failedSub.Out():
		failed := evt.(types.EvtDeliveryFailed)
		assert.Equal(t, "ghost", failed.Target)
		assert.Contains(t, failed.Err, "target not found")
	case <-time.After(time.Second):
		t.Fatal("no delivery failed event")
	}
}

// ============================================================================
//                              Fx
// ============================================================================

func TestModule_Lifecycle(t *testing.T) {
	var r *Router
	var iface pkgif.Router

	app := fxtest.New(t,
		fx.Supply(config.NewConfig()),
		eventbus.Module(),
		Module(),
		fx.Populate(&r, &iface),
	)
	app.RequireStart()
	require.NotNil(t, r)
	assert.Same(t, r, iface)
	assert.True(t, r.Started())

	app.RequireStop()
	assert.False(t, r.Started())
}
