// Package interfaces 定义 modrouter 的公共接口
//
// # 模块契约
//
//   - module.go   - ModuleHandler：每个模块必须实现的三个操作
//
// # 路由器契约
//
//   - router.go   - Router：模块面向的消息路由接口
//
// # 基础设施
//
//   - eventbus.go - EventBus：进程内生命周期事件总线
//   - topology.go - Topology：流水线端口与连接
//
// 模块通过结构化类型满足接口，无需继承任何基类；
// pkg/module.BaseModule 提供了一个可嵌入的默认实现。
package interfaces
