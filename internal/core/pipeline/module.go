package pipeline

import (
	"go.uber.org/fx"

	pkgif "github.com/dep2p/go-modrouter/pkg/interfaces"
)

// Output 流水线模块输出
type Output struct {
	fx.Out

	Graph    *Graph
	Topology pkgif.Topology
}

// Module 返回流水线 Fx 模块
func Module() fx.Option {
	return fx.Module("pipeline",
		fx.Provide(ProvideGraph),
	)
}

// ProvideGraph 提供连接图
func ProvideGraph() Output {
	g := New()
	return Output{
		Graph:    g,
		Topology: g,
	}
}
