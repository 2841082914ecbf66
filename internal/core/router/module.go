package router

import (
	"context"

	"github.com/benbjohnson/clock"
	"go.uber.org/fx"

	"github.com/dep2p/go-modrouter/config"
	pkgif "github.com/dep2p/go-modrouter/pkg/interfaces"
)

// ============================================================================
// Fx 模块
// ============================================================================

// Params 路由器依赖参数
type Params struct {
	fx.In

	UnifiedCfg *config.Config `optional:"true"`
	EventBus   pkgif.EventBus `optional:"true"`
	Clock      clock.Clock    `optional:"true"`
}

// Output 路由器输出
type Output struct {
	fx.Out

	Router      *Router
	RouterIface pkgif.Router
}

// Module 返回路由器 Fx 模块
func Module() fx.Option {
	return fx.Module("router",
		fx.Provide(NewFromParams),
		fx.Invoke(registerLifecycle),
	)
}

// NewFromParams 从 Fx 参数创建路由器
func NewFromParams(p Params) (Output, error) {
	r, err := New(
		WithConfig(ConfigFromUnified(p.UnifiedCfg)),
		WithEventBus(p.EventBus),
		WithClock(p.Clock),
	)
	if err != nil {
		return Output{}, err
	}
	return Output{
		Router:      r,
		RouterIface: r,
	}, nil
}

// registerLifecycle 注册生命周期钩子
func registerLifecycle(lc fx.Lifecycle, r *Router) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return r.Start(ctx)
		},
		OnStop: func(_ context.Context) error {
			return r.Close()
		},
	})
}
