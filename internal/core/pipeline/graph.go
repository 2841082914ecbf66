// Package pipeline 维护模块之间的生产者/消费者连接
//
// 模块先以 ModuleInfo 声明自己的输入/输出端口，然后通过 Connect 把
// 一个输出端口连到另一个模块的输入端口。BaseModule.Emit 按连接表
// 把数据扇出给所有消费者。
package pipeline

import (
	"cmp"
	"fmt"
	"slices"
	"sync"

	pkgif "github.com/dep2p/go-modrouter/pkg/interfaces"
	"github.com/dep2p/go-modrouter/pkg/lib/log"
	"github.com/dep2p/go-modrouter/pkg/types"
)

var logger = log.Logger("core/pipeline")

// Graph 连接图
type Graph struct {
	mu      sync.RWMutex
	modules map[string]types.ModuleInfo
	conns   []types.Connection
}

var _ pkgif.Topology = (*Graph)(nil)

// New 创建连接图
func New() *Graph {
	return &Graph{
		modules: make(map[string]types.ModuleInfo),
	}
}

// ============================================================================
//                              模块声明
// ============================================================================

// Declare 声明或更新模块端口
//
// 更新后不再存在的端口上的连接会被移除。
func (g *Graph) Declare(info types.ModuleInfo) error {
	if info.ID == "" {
		return types.ErrEmptyModuleID
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.modules[info.ID] = info.Clone()
	before := len(g.conns)
	g.conns = slices.DeleteFunc(g.conns, func(c types.Connection) bool {
		return (c.From == info.ID && !info.HasOutput(c.OutPort)) ||
			(c.To == info.ID && !info.HasInput(c.InPort))
	})
	if dropped := before - len(g.conns); dropped > 0 {
		logger.Info("端口变更，移除失效连接", "module", info.ID, "dropped", dropped)
	}
	return nil
}

// Info 返回模块声明
func (g *Graph) Info(id string) (types.ModuleInfo, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	info, ok := g.modules[id]
	if !ok {
		return types.ModuleInfo{}, false
	}
	return info.Clone(), true
}

// Modules 返回所有已声明模块（按 ID 排序）
func (g *Graph) Modules() []types.ModuleInfo {
	g.mu.RLock()
	out := make([]types.ModuleInfo, 0, len(g.modules))
	for _, info := range g.modules {
		out = append(out, info.Clone())
	}
	g.mu.RUnlock()

	slices.SortFunc(out, func(a, b types.ModuleInfo) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

// RemoveModule 移除模块声明及其所有连接，返回移除的连接数
func (g *Graph) RemoveModule(id string) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	delete(g.modules, id)
	before := len(g.conns)
	g.conns = slices.DeleteFunc(g.conns, func(c types.Connection) bool {
		return c.From == id || c.To == id
	})
	return before - len(g.conns)
}

// ============================================================================
//                              连接
// ============================================================================

// Connect 添加连接
//
// 两端模块必须已声明且端口存在；不允许自环和重复连接。
func (g *Graph) Connect(c types.Connection) error {
	if c.From == "" || c.To == "" || c.OutPort == "" || c.InPort == "" {
		return fmt.Errorf("%w: %s has empty endpoint", types.ErrInvalidConnection, c)
	}
	if c.From == c.To {
		return fmt.Errorf("%w: self loop on %s", types.ErrInvalidConnection, c.From)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	from, ok := g.modules[c.From]
	if !ok {
		return fmt.Errorf("%w: producer %s not declared", types.ErrInvalidConnection, c.From)
	}
	to, ok := g.modules[c.To]
	if !ok {
		return fmt.Errorf("%w: consumer %s not declared", types.ErrInvalidConnection, c.To)
	}
	if !from.HasOutput(c.OutPort) {
		return fmt.Errorf("%w: %s has no output %q", types.ErrUnknownPort, c.From, c.OutPort)
	}
	if !to.HasInput(c.InPort) {
		return fmt.Errorf("%w: %s has no input %q", types.ErrUnknownPort, c.To, c.InPort)
	}
	if slices.Contains(g.conns, c) {
		return fmt.Errorf("%w: %s", types.ErrConnectionExists, c)
	}

	g.conns = append(g.conns, c)
	logger.Info("连接已建立", "connection", c.String())
	return nil
}

// Disconnect 移除连接
func (g *Graph) Disconnect(c types.Connection) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	i := slices.Index(g.conns, c)
	if i < 0 {
		return fmt.Errorf("%w: %s", types.ErrConnectionNotFound, c)
	}
	g.conns = slices.Delete(g.conns, i, i+1)
	logger.Info("连接已断开", "connection", c.String())
	return nil
}

// Targets 返回某个输出端口的所有下游连接（按建立顺序）
func (g *Graph) Targets(from, outPort string) []types.Connection {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var out []types.Connection
	for _, c := range g.conns {
		if c.From == from && c.OutPort == outPort {
			out = append(out, c)
		}
	}
	return out
}

// Inbound 返回指向某模块的所有连接
func (g *Graph) Inbound(to string) []types.Connection {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var out []types.Connection
	for _, c := range g.conns {
		if c.To == to {
			out = append(out, c)
		}
	}
	return out
}

// Connections 返回所有连接的副本
func (g *Graph) Connections() []types.Connection {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return slices.Clone(g.conns)
}
