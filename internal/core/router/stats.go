package router

import "sync/atomic"

// counters 路由器计数器
//
// sent 每次被接受的发送调用加一（广播只计一次）；
// received 每次处理器调用加一；processed 每次处理器正常返回加一；
// errors 每次失败加一（目标不存在、过期、处理器错误、超时）。
type counters struct {
	sent      atomic.Int64
	received  atomic.Int64
	processed atomic.Int64
	errors    atomic.Int64
}
