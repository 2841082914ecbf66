// Package modrouter 提供进程内的模块组合与消息路由
//
// 独立的模块向唯一的路由器注册，彼此交换结构化消息，并通过显式的
// 输入/输出连接组成生产者/消费者流水线。
//
// # 核心概念
//
//   - App: 组合根，拥有进程唯一的 Router，用户交互的主入口
//   - Router: 单向消息、关联请求（阻塞或回调）与广播
//   - Module: 基于 module.BaseModule 的模块门面与默认处理器
//   - Pipeline: 输出端口 → 输入端口的连接拓扑
//
// # 快速开始
//
//	import "github.com/dep2p/go-modrouter"
//
//	app, err := modrouter.Start(ctx,
//	    modrouter.WithModule(types.ModuleInfo{ID: "ticker", Outputs: []string{"out"}}, nil),
//	    modrouter.WithModule(types.ModuleInfo{ID: "printer", Inputs: []string{"in"}},
//	        func(m *module.BaseModule) error {
//	            return m.OnInput("in", func(ctx context.Context, msg *types.Message) error {
//	                fmt.Println(msg.Payload)
//	                return nil
//	            })
//	        }),
//	    modrouter.WithConnection("ticker", "out", "printer", "in"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer app.Close()
//
//	ticker, _ := app.Module("ticker")
//	ticker.Emit("out", 42)
//
//	resp, err := ticker.Ping(ctx, "printer", time.Second)
//
// # 文件组织
//
//	modrouter/
//	├── doc.go        # 包文档
//	├── version.go    # 版本信息
//	├── app.go        # App 结构、New()、Start/Stop、访问器
//	├── options.go    # 配置与模块选项
//	├── fx.go         # Fx 模块组装、模块注册钩子
//	├── logging.go    # 日志输出配置
//	└── errors.go     # 公共错误
//
// # 内部组件
//
//	internal/core/registry    模块注册表
//	internal/core/correlator  请求关联与超时
//	internal/core/router      消息路由
//	internal/core/pipeline    流水线连接图
//	internal/core/eventbus    路由器生命周期事件
//	internal/core/metrics     Prometheus 指标
//	internal/debug/introspect 本地自省 HTTP 服务
package modrouter
