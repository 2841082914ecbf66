package interfaces

import (
	"context"
	"time"

	"github.com/dep2p/go-modrouter/pkg/types"
)

// ResponseCallback 异步请求回调，恰好调用一次
type ResponseCallback func(resp *types.MessageResponse)

// Router 模块面向的消息路由契约
//
// 每个进程只构造一个 Router，并显式传递给每个模块。
type Router interface {
	// RegisterModule 注册模块，同 ID 重复注册以最后一次为准
	RegisterModule(moduleID string, handler ModuleHandler) error

	// UnregisterModule 注销模块，不存在时为空操作
	UnregisterModule(moduleID string)

	// SendMessage 单向发送；target 为空时广播
	//
	// 只有校验失败或无法入队时返回错误，投递失败不会返回给发送方。
	SendMessage(msg *types.Message) error

	// SendRequest 发送请求并等待关联响应
	//
	// timeout <= 0 时使用默认超时。ctx 取消会以 ctx.Err() 结算该请求。
	SendRequest(ctx context.Context, msg *types.Message, timeout time.Duration) (*types.MessageResponse, error)

	// SendRequestAsync 发送请求，结果通过回调返回
	//
	// 回调总是恰好调用一次，并总是收到一个完整的 MessageResponse。
	SendRequestAsync(msg *types.Message, callback ResponseCallback, timeout time.Duration)

	// BroadcastMessage 广播给除发送方外的所有已注册模块
	BroadcastMessage(msg *types.Message) error

	// GetStats 返回统计快照
	GetStats() types.Stats
}
