package introspect

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"

	"github.com/dep2p/go-modrouter/config"
	"github.com/dep2p/go-modrouter/internal/core/pipeline"
	"github.com/dep2p/go-modrouter/internal/core/router"
	pkgif "github.com/dep2p/go-modrouter/pkg/interfaces"
)

// Module 返回自省服务 Fx 模块
func Module() fx.Option {
	return fx.Module("introspect",
		fx.Provide(NewFromParams),
		fx.Invoke(registerLifecycle),
	)
}

// Params 自省服务依赖参数
type Params struct {
	fx.In

	UnifiedCfg *config.Config       `optional:"true"`
	Router     *router.Router       `optional:"true"`
	Graph      *pipeline.Graph      `optional:"true"`
	Registry   *prometheus.Registry `optional:"true"`
	EventBus   pkgif.EventBus       `optional:"true"`
}

// Output 自省服务输出，禁用时为空
type Output struct {
	fx.Out

	Server *Server
	Events *EventLog
}

// ConfigFromUnified 从统一配置创建自省服务配置，禁用时返回 nil
func ConfigFromUnified(cfg *config.Config) *Config {
	if cfg == nil || !cfg.Diagnostics.EnableIntrospect {
		return nil
	}
	addr := cfg.Diagnostics.IntrospectAddr
	if addr == "" {
		addr = DefaultAddr
	}
	return &Config{
		Addr: addr,
	}
}

// NewFromParams 从参数创建自省服务
func NewFromParams(p Params) Output {
	cfg := ConfigFromUnified(p.UnifiedCfg)
	if cfg == nil {
		return Output{}
	}

	if p.Router != nil {
		cfg.Router = p.Router
	}
	if p.Graph != nil {
		cfg.Topology = p.Graph
	}
	if p.Registry != nil {
		cfg.Gatherer = p.Registry
	}
	if p.EventBus != nil {
		cfg.Events = NewEventLog(p.EventBus, DefaultEventHistory)
	}

	return Output{
		Server: New(*cfg),
		Events: cfg.Events,
	}
}

// registerLifecycle 注册生命周期钩子
func registerLifecycle(lc fx.Lifecycle, server *Server, events *EventLog) {
	if events != nil {
		lc.Append(fx.Hook{
			OnStart: func(_ context.Context) error { return events.Start() },
			OnStop:  func(_ context.Context) error { return events.Stop() },
		})
	}
	if server == nil {
		return
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return server.Start(ctx)
		},
		OnStop: func(_ context.Context) error {
			return server.Stop()
		},
	})
}
