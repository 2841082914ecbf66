// Package router 实现进程内消息路由器
//
// 路由器是模块之间的唯一通信通道，支持三种交互模式：
//
//   - 单向消息（SendMessage）：发送即返回，投递失败只计数并记录日志
//   - 请求/响应（SendRequest / SendRequestAsync）：通过关联 ID 等待响应，
//     每个请求恰好得到一个结果（响应、失败或超时）
//   - 广播（BroadcastMessage）：给除发送方外的每个模块投递一份独立副本
//
// # 投递模型
//
// 发送调用只做校验、计数和入队，真正的投递由分发循环在之后完成，
// 慢处理器或 panic 的处理器不会阻塞发送方。分发循环按入队顺序取出任务，
// 但每次投递在独立的 goroutine 中执行（受 MaxConcurrentDeliveries 限制），
// 因此发给同一目标的两条消息可能以任意顺序到达。
//
// # 使用示例
//
//	r, _ := router.New(router.WithTimeout(10 * time.Second))
//	_ = r.Start(ctx)
//	defer r.Close()
//
//	_ = r.RegisterModule("m2", handler)
//	resp, err := r.SendRequest(ctx, &types.Message{
//	    ID: types.NewMessageID(), Type: "ping", Source: "m1", Target: "m2",
//	}, 0)
package router
