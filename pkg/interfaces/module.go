package interfaces

import (
	"context"

	"github.com/dep2p/go-modrouter/pkg/types"
)

// ModuleHandler 模块处理器契约
//
// HandleMessage 返回 nil 响应表示纯通知，不产生响应；
// 对关联消息返回 nil 响应时，路由器会合成一个空的成功响应。
// 返回错误表示处理失败：关联消息的等待方会收到该错误。
//
// 三个方法都可能被并发调用，实现必须是并发安全的。
type ModuleHandler interface {
	// HandleMessage 处理一条消息
	HandleMessage(ctx context.Context, msg *types.Message) (*types.MessageResponse, error)

	// OnModuleRegistered 其他模块注册时通知
	OnModuleRegistered(moduleID string)

	// OnModuleUnregistered 其他模块注销时通知
	OnModuleUnregistered(moduleID string)
}

// ModuleInfoProvider 可选接口：提供模块描述
//
// 应用注册模块时如果处理器实现了该接口，描述会被声明到流水线拓扑。
type ModuleInfoProvider interface {
	ModuleInfo() types.ModuleInfo
}
