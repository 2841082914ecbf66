package module

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"go.uber.org/multierr"

	pkgif "github.com/dep2p/go-modrouter/pkg/interfaces"
	"github.com/dep2p/go-modrouter/pkg/lib/log"
	"github.com/dep2p/go-modrouter/pkg/types"
)

var logger = log.Logger("module")

// HandlerFunc 按消息类型注册的处理函数
type HandlerFunc func(ctx context.Context, msg *types.Message) (*types.MessageResponse, error)

// InputFunc 输入端口处理函数
type InputFunc func(ctx context.Context, msg *types.Message) error

// PeerFunc 其他模块注册（registered 为 true）或注销时调用
type PeerFunc func(moduleID string, registered bool)

// Option BaseModule 选项
type Option func(*BaseModule)

// WithTopology 设置流水线拓扑，Emit 需要它查找下游
func WithTopology(t pkgif.Topology) Option {
	return func(b *BaseModule) {
		b.topology = t
	}
}

// WithPeerFunc 设置模块注册/注销通知回调
func WithPeerFunc(fn PeerFunc) Option {
	return func(b *BaseModule) {
		b.onPeer = fn
	}
}

// BaseModule 模块门面与默认处理器
type BaseModule struct {
	info     types.ModuleInfo
	router   pkgif.Router
	topology pkgif.Topology
	onPeer   PeerFunc
	log      *slog.Logger

	mu       sync.RWMutex
	handlers map[string]HandlerFunc
	inputs   map[string]InputFunc
	peers    map[string]struct{}
}

var (
	_ pkgif.ModuleHandler      = (*BaseModule)(nil)
	_ pkgif.ModuleInfoProvider = (*BaseModule)(nil)
)

// New 创建模块
func New(info types.ModuleInfo, router pkgif.Router, opts ...Option) *BaseModule {
	b := &BaseModule{
		info:     info.Clone(),
		router:   router,
		log:      logger.With("module", info.ID),
		handlers: make(map[string]HandlerFunc),
		inputs:   make(map[string]InputFunc),
		peers:    make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// ID 返回模块 ID
func (b *BaseModule) ID() string {
	return b.info.ID
}

// ModuleInfo 返回模块描述
func (b *BaseModule) ModuleInfo() types.ModuleInfo {
	return b.info.Clone()
}

// Router 返回路由器
func (b *BaseModule) Router() pkgif.Router {
	return b.router
}

// ============================================================================
//                              注册
// ============================================================================

// Attach 声明端口（如有拓扑）并注册到路由器
func (b *BaseModule) Attach() error {
	if b.topology != nil {
		if err := b.topology.Declare(b.info); err != nil {
			return err
		}
	}
	return b.router.RegisterModule(b.info.ID, b)
}

// Detach 从路由器注销并移除连接
func (b *BaseModule) Detach() {
	b.router.UnregisterModule(b.info.ID)
	if b.topology != nil {
		b.topology.RemoveModule(b.info.ID)
	}
}

// Handle 为消息类型注册处理函数，覆盖默认行为
func (b *BaseModule) Handle(msgType string, fn HandlerFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if fn == nil {
		delete(b.handlers, msgType)
		return
	}
	b.handlers[msgType] = fn
}

// OnInput 为输入端口注册处理函数
func (b *BaseModule) OnInput(port string, fn InputFunc) error {
	if !b.info.HasInput(port) {
		return fmt.Errorf("%w: %s has no input %q", types.ErrUnknownPort, b.info.ID, port)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if fn == nil {
		delete(b.inputs, port)
		return nil
	}
	b.inputs[port] = fn
	return nil
}

// Peers 返回本模块注册后观察到的其他模块（有序）
func (b *BaseModule) Peers() []string {
	b.mu.RLock()
	out := make([]string, 0, len(b.peers))
	for id := range b.peers {
		out = append(out, id)
	}
	b.mu.RUnlock()
	slices.Sort(out)
	return out
}

// ============================================================================
//                              发送
// ============================================================================

// Send 单向发送
func (b *BaseModule) Send(msgType string, payload any, target string, opts ...MessageOption) error {
	return b.router.SendMessage(b.NewMessage(msgType, payload, target, opts...))
}

// Broadcast 广播给所有其他模块
func (b *BaseModule) Broadcast(msgType string, payload any, opts ...MessageOption) error {
	return b.router.BroadcastMessage(b.NewMessage(msgType, payload, "", opts...))
}

// Request 发送请求并等待响应，timeout <= 0 使用路由器默认超时
func (b *BaseModule) Request(ctx context.Context, target, msgType string, payload any, timeout time.Duration, opts ...MessageOption) (*types.MessageResponse, error) {
	return b.router.SendRequest(ctx, b.NewMessage(msgType, payload, target, opts...), timeout)
}

// RequestAsync 发送请求，结果通过回调返回
func (b *BaseModule) RequestAsync(target, msgType string, payload any, callback pkgif.ResponseCallback, timeout time.Duration, opts ...MessageOption) {
	b.router.SendRequestAsync(b.NewMessage(msgType, payload, target, opts...), callback, timeout)
}

// Ping 探测目标模块
func (b *BaseModule) Ping(ctx context.Context, target string, timeout time.Duration) (*types.MessageResponse, error) {
	return b.Request(ctx, target, TypePing, nil, timeout)
}

// Emit 把数据发往输出端口的所有下游
//
// 每个下游连接发送一条单向 "data" 消息，元数据 port 为下游输入端口，
// source_port 为本模块输出端口。没有下游时为空操作。
func (b *BaseModule) Emit(port string, payload any, opts ...MessageOption) error {
	if !b.info.HasOutput(port) {
		return fmt.Errorf("%w: %s has no output %q", types.ErrUnknownPort, b.info.ID, port)
	}
	if b.topology == nil {
		return nil
	}

	var errs error
	for _, c := range b.topology.Targets(b.info.ID, port) {
		msgOpts := append(slices.Clone(opts),
			WithMetadata(MetaPort, c.InPort),
			WithMetadata(MetaSourcePort, port),
		)
		if err := b.Send(TypeData, payload, c.To, msgOpts...); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("emit to %s: %w", c, err))
		}
	}
	return errs
}

// ============================================================================
//                              ModuleHandler
// ============================================================================

// HandleMessage 默认处理状态机
func (b *BaseModule) HandleMessage(ctx context.Context, msg *types.Message) (*types.MessageResponse, error) {
	b.mu.RLock()
	handler := b.handlers[msg.Type]
	var input InputFunc
	if msg.Type == TypeData {
		input = b.inputs[msg.Meta(MetaPort)]
	}
	b.mu.RUnlock()

	switch {
	case handler != nil:
		resp, err := handler(ctx, msg)
		if !msg.IsCorrelated() {
			return nil, err
		}
		return resp, err

	case input != nil:
		if err := input(ctx, msg); err != nil {
			return nil, err
		}
		if !msg.IsCorrelated() {
			return nil, nil
		}
		return b.ack(msg), nil
	}

	if !msg.IsCorrelated() {
		b.log.Debug("收到通知", "type", msg.Type, "source", msg.Source)
		return nil, nil
	}

	switch {
	case msg.Type == TypePing:
		return types.NewSuccessResponse(msg, map[string]any{
			"pong":     true,
			"moduleId": b.info.ID,
		}), nil

	case msg.Type == TypeInfo:
		return types.NewSuccessResponse(msg, b.ModuleInfo()), nil

	case b.info.AcceptsType(msg.Type):
		return b.ack(msg), nil
	}

	b.log.Warn("未处理的消息类型", "type", msg.Type, "source", msg.Source, "messageId", msg.ID)
	return types.NewFailureResponse(msg, fmt.Sprintf("Unhandled message type: %s", msg.Type)), nil
}

// ack 通用确认
func (b *BaseModule) ack(msg *types.Message) *types.MessageResponse {
	return types.NewSuccessResponse(msg, map[string]any{
		"acknowledged": true,
		"moduleId":     b.info.ID,
		"type":         msg.Type,
	})
}

// OnModuleRegistered 记录新模块
func (b *BaseModule) OnModuleRegistered(moduleID string) {
	b.mu.Lock()
	b.peers[moduleID] = struct{}{}
	b.mu.Unlock()

	if b.onPeer != nil {
		b.onPeer(moduleID, true)
	}
}

// OnModuleUnregistered 移除已注销模块
func (b *BaseModule) OnModuleUnregistered(moduleID string) {
	b.mu.Lock()
	delete(b.peers, moduleID)
	b.mu.Unlock()

	if b.onPeer != nil {
		b.onPeer(moduleID, false)
	}
}
