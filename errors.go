package modrouter

import (
	"errors"

	"github.com/dep2p/go-modrouter/pkg/types"
)

// 公共错误定义
var (
	// ────────────────────────────────────────────────────────────────────────
	// 应用生命周期错误
	// ────────────────────────────────────────────────────────────────────────

	// ErrNotStarted 应用未启动
	ErrNotStarted = errors.New("app not started")

	// ErrAlreadyStarted 应用已启动
	ErrAlreadyStarted = errors.New("app already started")

	// ErrAppClosed 应用已关闭
	ErrAppClosed = errors.New("app closed")

	// ErrModuleExists 同一 ID 的模块被配置了两次
	ErrModuleExists = errors.New("module already configured")

	// ────────────────────────────────────────────────────────────────────────
	// 路由错误（pkg/types 的别名，便于调用方只导入根包）
	// ────────────────────────────────────────────────────────────────────────

	ErrMalformedMessage = types.ErrMalformedMessage
	ErrTargetNotFound   = types.ErrTargetNotFound
	ErrMessageExpired   = types.ErrMessageExpired
	ErrRequestTimeout   = types.ErrRequestTimeout
	ErrRouterClosed     = types.ErrRouterClosed
	ErrRouterNotStarted = types.ErrRouterNotStarted
	ErrQueueFull        = types.ErrQueueFull
	ErrRateLimited      = types.ErrRateLimited
	ErrHandlerPanic     = types.ErrHandlerPanic
)
