package modrouter

import (
	"context"
	"fmt"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/dep2p/go-modrouter/config"
	"github.com/dep2p/go-modrouter/internal/core/eventbus"
	"github.com/dep2p/go-modrouter/internal/core/metrics"
	"github.com/dep2p/go-modrouter/internal/core/pipeline"
	"github.com/dep2p/go-modrouter/internal/core/router"
	"github.com/dep2p/go-modrouter/internal/debug/introspect"
	pkgif "github.com/dep2p/go-modrouter/pkg/interfaces"
	"github.com/dep2p/go-modrouter/pkg/lib/log"
	"github.com/dep2p/go-modrouter/pkg/module"
)

var fxLogger = log.Logger("modrouter/fx")

// buildFxApp 构建 Fx 应用
//
// 加载顺序（按依赖）：
//  1. EventBus → Router → Pipeline（必须）
//  2. Metrics → Introspect（按诊断配置加载）
//  3. 用户模块与连接
//  4. 用户 Fx 选项
func buildFxApp(opts *options, cfg *config.Config, app *App) *fx.App {
	// ════════════════════════════════════════════════════════════════════════
	// 1. 核心模块
	// ════════════════════════════════════════════════════════════════════════
	modules := []fx.Option{
		fx.Supply(cfg),

		eventbus.Module(),
		router.Module(),
		pipeline.Module(),
	}
	if opts.clock != nil {
		c := opts.clock
		modules = append(modules, fx.Provide(func() clock.Clock { return c }))
	}

	// ════════════════════════════════════════════════════════════════════════
	// 2. 诊断（条件加载）
	// ════════════════════════════════════════════════════════════════════════
	if cfg.Diagnostics.EnableMetrics {
		modules = append(modules, metrics.Module())
	}
	if cfg.Diagnostics.EnableIntrospect {
		modules = append(modules, introspect.Module())
	}

	// ════════════════════════════════════════════════════════════════════════
	// 3. 用户模块
	// ════════════════════════════════════════════════════════════════════════
	modules = append(modules, fx.Invoke(registerModules(opts, app)))

	// ════════════════════════════════════════════════════════════════════════
	// 4. 用户扩展
	// ════════════════════════════════════════════════════════════════════════
	if len(opts.userFxOptions) > 0 {
		modules = append(modules, opts.userFxOptions...)
	}

	// ════════════════════════════════════════════════════════════════════════
	// 5. 组件注入
	// ════════════════════════════════════════════════════════════════════════
	modules = append(modules, fx.Invoke(injectAppComponents(app)))

	// 禁用 Fx 日志输出（避免干扰用户日志）
	modules = append(modules,
		fx.WithLogger(func() fxevent.Logger {
			return &fxevent.ZapLogger{Logger: zap.NewNop()}
		}),
	)

	return fx.New(modules...)
}

// ════════════════════════════════════════════════════════════════════════════
// 组件注入
// ════════════════════════════════════════════════════════════════════════════

// appInjectParams App 组件注入参数
type appInjectParams struct {
	fx.In

	Router     *router.Router
	Graph      *pipeline.Graph
	Registry   *prometheus.Registry `optional:"true"`
	Introspect *introspect.Server   `optional:"true"`
}

// injectAppComponents 把 Fx 构建的组件注入 App
func injectAppComponents(app *App) any {
	return func(p appInjectParams) {
		app.router = p.Router
		app.graph = p.Graph
		app.registry = p.Registry
		app.introspect = p.Introspect
	}
}

// ════════════════════════════════════════════════════════════════════════════
// 模块注册
// ════════════════════════════════════════════════════════════════════════════

// moduleParams 用户模块依赖参数
type moduleParams struct {
	fx.In

	LC       fx.Lifecycle
	Router   pkgif.Router
	Topology pkgif.Topology
	Graph    *pipeline.Graph
}

// registerModules 创建用户模块并注册生命周期钩子
//
// 钩子在路由器之后追加，因此启动时路由器先运行，停止时模块先注销。
func registerModules(opts *options, app *App) any {
	return func(p moduleParams) error {
		mods := make(map[string]*module.BaseModule, len(opts.modules))
		order := opts.order

		for _, e := range opts.modules {
			m := module.New(e.info, p.Router, module.WithTopology(p.Topology))
			if e.setup != nil {
				if err := e.setup(m); err != nil {
					return fmt.Errorf("setup module %s: %w", e.info.ID, err)
				}
			}
			mods[e.info.ID] = m
		}
		handlers := make(map[string]pkgif.ModuleHandler, len(opts.handlers))
		for _, e := range opts.handlers {
			handlers[e.id] = e.handler
		}
		app.setModules(mods)

		attach := func(id string) error {
			if m, ok := mods[id]; ok {
				return m.Attach()
			}
			h := handlers[id]
			if provider, ok := h.(pkgif.ModuleInfoProvider); ok {
				info := provider.ModuleInfo()
				info.ID = id
				if err := p.Topology.Declare(info); err != nil {
					return err
				}
			}
			return p.Router.RegisterModule(id, h)
		}
		detach := func(id string) {
			if m, ok := mods[id]; ok {
				m.Detach()
				return
			}
			p.Router.UnregisterModule(id)
			p.Topology.RemoveModule(id)
		}

		p.LC.Append(fx.Hook{
			OnStart: func(_ context.Context) error {
				// 启动失败时 Fx 不会调用本钩子的 OnStop，已注册的模块在这里回滚
				rollback := func(attached []string) {
					for i := len(attached) - 1; i >= 0; i-- {
						detach(attached[i])
					}
				}
				for i, id := range order {
					if err := attach(id); err != nil {
						rollback(order[:i])
						return fmt.Errorf("attach module %s: %w", id, err)
					}
				}
				var err error
				for _, c := range opts.connections {
					err = multierr.Append(err, p.Graph.Connect(c))
				}
				if err != nil {
					rollback(order)
					return err
				}
				fxLogger.Info("模块已加载", "modules", len(order), "connections", len(opts.connections))
				return nil
			},
			OnStop: func(_ context.Context) error {
				for i := len(order) - 1; i >= 0; i-- {
					detach(order[i])
				}
				return nil
			},
		})
		return nil
	}
}
