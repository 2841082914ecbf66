// Package metrics 把路由器统计导出为 Prometheus 指标
//
// # 指标
//
//   - modrouter_messages_sent_total       被接受的发送调用数（广播计一次）
//   - modrouter_messages_received_total   处理器调用次数
//   - modrouter_messages_processed_total  处理器成功返回次数
//   - modrouter_messages_errors_total     投递失败与超时次数
//   - modrouter_active_modules            已注册模块数
//   - modrouter_pending_requests          未完成请求数
//   - modrouter_request_duration_seconds  请求从登记到结算的耗时（按结果分类）
//
// 前六个指标在每次抓取时从 Router.GetStats() 读取，不额外维护状态；
// 请求耗时由 LatencyRecorder 订阅事件总线上的 EvtRequestSettled 记录。
//
// # Fx 模块
//
//	app := fx.New(
//	    eventbus.Module(),
//	    router.Module(),
//	    metrics.Module(),
//	    fx.Invoke(func(reg *prometheus.Registry) {
//	        http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
//	    }),
//	)
//
// 配置 diagnostics.enable_metrics 为 false 时不创建 Registry。
package metrics
