package interfaces

import "github.com/dep2p/go-modrouter/pkg/types"

// Topology 流水线连接拓扑
//
// 由 internal/core/pipeline.Graph 实现，模块通过它声明端口并查找下游消费者。
type Topology interface {
	// Declare 声明或更新模块端口
	Declare(info types.ModuleInfo) error

	// Targets 返回某个输出端口的所有下游连接
	Targets(from, outPort string) []types.Connection

	// RemoveModule 移除模块及其连接
	RemoveModule(id string) int
}
