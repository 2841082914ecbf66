package modrouter

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"

	"github.com/dep2p/go-modrouter/config"
	"github.com/dep2p/go-modrouter/internal/core/pipeline"
	"github.com/dep2p/go-modrouter/internal/core/router"
	"github.com/dep2p/go-modrouter/internal/debug/introspect"
	pkgif "github.com/dep2p/go-modrouter/pkg/interfaces"
	"github.com/dep2p/go-modrouter/pkg/lib/log"
	"github.com/dep2p/go-modrouter/pkg/module"
	"github.com/dep2p/go-modrouter/pkg/types"
)

var logger = log.Logger("modrouter")

// ════════════════════════════════════════════════════════════════════════════
//                              生命周期常量
// ════════════════════════════════════════════════════════════════════════════

const (
	// startTimeout 启动超时（Fx App Start）
	startTimeout = 15 * time.Second

	// stopTimeout 停止超时，需要覆盖路由器的 close_timeout
	stopTimeout = 30 * time.Second
)

// appState 应用状态
type appState int

const (
	stateIdle appState = iota
	stateRunning
	stateClosed
)

// App 进程内模块组合应用
//
// 每个进程通常只有一个 App，它拥有唯一的 Router、流水线拓扑以及可选的诊断服务。
type App struct {
	cfg  *config.Config
	opts *options
	fx   *fx.App
	logs *logOutput

	mu    sync.RWMutex
	state appState

	// 由 Fx 注入
	router     *router.Router
	graph      *pipeline.Graph
	registry   *prometheus.Registry
	introspect *introspect.Server
	modules    map[string]*module.BaseModule
}

// New 创建应用
//
// 示例：
//
//	app, err := modrouter.New(
//	    modrouter.WithConfigFile("modrouter.json"),
//	    modrouter.WithModule(types.ModuleInfo{ID: "printer", Inputs: []string{"in"}}, setupPrinter),
//	)
func New(opts ...Option) (*App, error) {
	o := newOptions()
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}

	cfg := o.finalConfig()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	logs, err := setupLogging(cfg.Log)
	if err != nil {
		return nil, err
	}

	app := &App{
		cfg:  cfg,
		opts: o,
		logs: logs,
	}
	app.fx = buildFxApp(o, cfg, app)
	if err := app.fx.Err(); err != nil {
		_ = logs.Close()
		return nil, fmt.Errorf("build fx app: %w", err)
	}
	return app, nil
}

// Start 快捷启动函数，等价于 New() + App.Start()
func Start(ctx context.Context, opts ...Option) (*App, error) {
	app, err := New(opts...)
	if err != nil {
		return nil, err
	}
	if err := app.Start(ctx); err != nil {
		_ = app.Close()
		return nil, err
	}
	return app, nil
}

// Start 启动路由器、诊断服务并注册所有配置的模块
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch a.state {
	case stateRunning:
		return ErrAlreadyStarted
	case stateClosed:
		return ErrAppClosed
	}

	startCtx, cancel := context.WithTimeout(ctx, startTimeout)
	defer cancel()

	if err := a.fx.Start(startCtx); err != nil {
		logger.Error("应用启动失败", "error", err)
		return fmt.Errorf("start failed: %w", err)
	}
	a.state = stateRunning
	logger.Info("应用已启动", "version", Version, "modules", len(a.router.Modules()))
	return nil
}

// Stop 停止应用
//
// 模块先注销，然后路由器排空队列并以 ErrRouterClosed 结算所有未完成请求。
// 停止后的应用不能再次启动。
func (a *App) Stop(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state != stateRunning {
		if a.state == stateIdle {
			a.state = stateClosed
			return a.logs.Close()
		}
		return nil
	}
	a.state = stateClosed

	stopCtx, cancel := context.WithTimeout(ctx, stopTimeout)
	defer cancel()

	stats := a.router.GetStats()
	err := a.fx.Stop(stopCtx)
	logger.Info("应用已停止",
		"sent", stats.TotalSent,
		"processed", stats.TotalProcessed,
		"errors", stats.TotalErrors)

	if cerr := a.logs.Close(); err == nil {
		err = cerr
	}
	return err
}

// Close 停止应用，实现 io.Closer
func (a *App) Close() error {
	return a.Stop(context.Background())
}

// Running 是否运行中
func (a *App) Running() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state == stateRunning
}

// ════════════════════════════════════════════════════════════════════════════
//                              访问器
// ════════════════════════════════════════════════════════════════════════════

// Config 返回生效的配置（副本）
func (a *App) Config() *config.Config {
	return config.CloneConfig(a.cfg)
}

// Router 返回进程唯一的路由器
func (a *App) Router() pkgif.Router {
	return a.router
}

// Topology 返回流水线拓扑
func (a *App) Topology() pkgif.Topology {
	return a.graph
}

// Stats 返回路由器统计快照
func (a *App) Stats() types.Stats {
	return a.router.GetStats()
}

// MetricsRegistry 返回 Prometheus Registry，未启用指标时为 nil
func (a *App) MetricsRegistry() *prometheus.Registry {
	return a.registry
}

// IntrospectAddr 返回自省服务的实际监听地址，未启用时为空
func (a *App) IntrospectAddr() string {
	if a.introspect == nil {
		return ""
	}
	return a.introspect.Addr()
}

// Module 返回通过 WithModule 配置的模块
func (a *App) Module(id string) (*module.BaseModule, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	m, ok := a.modules[id]
	return m, ok
}

// ModuleIDs 返回通过 WithModule 配置的模块 ID（有序）
func (a *App) ModuleIDs() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	ids := make([]string, 0, len(a.modules))
	for id := range a.modules {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// NewModule 在运行时创建绑定到本应用路由器和拓扑的模块
//
// 返回的模块尚未注册，调用方安装处理器后调用 Attach。
func (a *App) NewModule(info types.ModuleInfo, opts ...module.Option) *module.BaseModule {
	opts = append([]module.Option{module.WithTopology(a.graph)}, opts...)
	return module.New(info, a.router, opts...)
}

// ════════════════════════════════════════════════════════════════════════════
//                              流水线
// ════════════════════════════════════════════════════════════════════════════

// Connect 把 from 的输出端口连接到 to 的输入端口
func (a *App) Connect(from, outPort, to, inPort string) error {
	return a.graph.Connect(types.Connection{From: from, OutPort: outPort, To: to, InPort: inPort})
}

// Disconnect 移除连接
func (a *App) Disconnect(from, outPort, to, inPort string) error {
	return a.graph.Disconnect(types.Connection{From: from, OutPort: outPort, To: to, InPort: inPort})
}

// Connections 返回所有连接
func (a *App) Connections() []types.Connection {
	return a.graph.Connections()
}

func (a *App) setModules(mods map[string]*module.BaseModule) {
	a.mu.Lock()
	a.modules = mods
	a.mu.Unlock()
}
