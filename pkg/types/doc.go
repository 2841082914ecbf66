// Package types 定义 modrouter 的公共数据结构
//
// 这是整个系统的最底层包，不依赖任何其他 modrouter 内部包。
// 所有类型都是纯值类型，用于在模块与路由器之间传递数据。
//
// # 文件组织
//
//   - message.go     - Message 消息信封
//   - response.go    - MessageResponse 关联响应
//   - stats.go       - Stats 路由器统计快照
//   - module_info.go - ModuleInfo 模块描述（输入/输出端口）
//   - connection.go  - Connection 流水线连接
//   - events.go      - 生命周期事件
//   - errors.go      - 公共错误定义
//
// # 跨边界结构
//
// 只有 Message 与 MessageResponse 会跨越模块/路由器边界，
// 它们的字段集合是固定的，不涉及任何网络线格式。
package types
