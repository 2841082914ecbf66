// Package module 提供模块侧的消息门面与默认处理器
//
// BaseModule 实现 interfaces.ModuleHandler，可以直接注册到路由器，
// 也可以嵌入到自定义模块中。它负责：
//
//   - 构造消息：自动分配 ID，source 设为模块自身 ID
//   - 发送：Send（单向）、Request / RequestAsync（请求）、Broadcast（广播）
//   - 流水线：Emit 把数据发往输出端口的所有下游，OnInput 接收输入端口的数据
//   - 默认处理：ping、info、已声明类型的通用确认、未处理类型的失败响应
//
// # 默认处理规则
//
// 对每条消息，按以下顺序决定行为：
//
//  1. 通过 Handle 注册了该类型的处理函数：调用它
//  2. "data" 消息且目标输入端口注册了 OnInput：调用它
//  3. 没有关联 ID：纯通知，不产生响应
//  4. "ping"：成功响应 {pong: true, moduleId}
//  5. "info"：成功响应，数据为 ModuleInfo
//  6. 类型在 ModuleInfo.Accepts 中：通用确认 {acknowledged: true, moduleId, type}
//  7. 其他：失败响应 "Unhandled message type: <type>"，并记录 warn 日志
//
// # 使用示例
//
//	doubler := module.New(types.ModuleInfo{
//	    ID: "doubler", Inputs: []string{"in"}, Outputs: []string{"out"},
//	}, r, module.WithTopology(graph))
//	doubler.OnInput("in", func(ctx context.Context, msg *types.Message) error {
//	    return doubler.Emit("out", msg.Payload.(int)*2)
//	})
//	_ = doubler.Attach()
package module
