// Package eventbus 实现进程内事件总线
//
// 路由器通过事件总线发布模块生命周期与投递诊断事件，
// 观察者（自省服务、测试、用户扩展）订阅后异步消费，永远不会阻塞路由器。
//
// # 快速开始
//
//	bus := eventbus.NewBus()
//
//	sub, _ := bus.Subscribe(new(types.EvtModuleRegistered))
//	defer sub.Close()
//
//	go func() {
//	    for evt := range sub.Out() {
//	        e := evt.(types.EvtModuleRegistered)
//	        // 处理事件
//	    }
//	}()
//
//	em, _ := bus.Emitter(new(types.EvtModuleRegistered))
//	defer em.Close()
//	em.Emit(types.EvtModuleRegistered{ModuleID: "m1"})
//
// # 并发安全
//
//   - 订阅/取消订阅：RWMutex 保护
//   - 发射：非阻塞，订阅者缓冲区满时丢弃并计数
//   - 慢消费者告警：rate.Sometimes 限流，避免日志泛滥
package eventbus
