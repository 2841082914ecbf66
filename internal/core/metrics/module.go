package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/fx"

	"github.com/dep2p/go-modrouter/config"
	pkgif "github.com/dep2p/go-modrouter/pkg/interfaces"
)

// Config 指标配置
type Config struct {
	// Enabled 是否启用指标收集
	Enabled bool

	// RuntimeCollectors 是否注册 Go 运行时与进程采集器
	RuntimeCollectors bool
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Enabled:           true,
		RuntimeCollectors: true,
	}
}

// ConfigFromUnified 从统一配置创建指标配置
func ConfigFromUnified(cfg *config.Config) Config {
	c := DefaultConfig()
	if cfg == nil {
		return c
	}
	c.Enabled = cfg.Diagnostics.EnableMetrics
	return c
}

// NewRegistry 创建注册了路由器指标的 Registry
func NewRegistry(cfg Config, src StatsSource, recorder *LatencyRecorder) (*prometheus.Registry, error) {
	reg := prometheus.NewRegistry()
	if err := reg.Register(NewCollector(src)); err != nil {
		return nil, err
	}
	if recorder != nil {
		if err := reg.Register(recorder.Collector()); err != nil {
			return nil, err
		}
	}
	if cfg.RuntimeCollectors {
		if err := reg.Register(collectors.NewGoCollector()); err != nil {
			return nil, err
		}
		if err := reg.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// ============================================================================
// Fx 模块
// ============================================================================

// Params Metrics 依赖参数
type Params struct {
	fx.In

	UnifiedCfg *config.Config `optional:"true"`
	Router     pkgif.Router
	EventBus   pkgif.EventBus `optional:"true"`
}

// Output Metrics 输出，禁用时字段为 nil
type Output struct {
	fx.Out

	Registry *prometheus.Registry
	Recorder *LatencyRecorder
}

// Module 返回 metrics Fx 模块
func Module() fx.Option {
	return fx.Module("metrics",
		fx.Provide(NewFromParams),
		fx.Invoke(registerLifecycle),
	)
}

// NewFromParams 从参数创建指标组件
func NewFromParams(p Params) (Output, error) {
	cfg := ConfigFromUnified(p.UnifiedCfg)
	if !cfg.Enabled {
		return Output{}, nil
	}

	var recorder *LatencyRecorder
	if p.EventBus != nil {
		recorder = NewLatencyRecorder(p.EventBus)
	}
	reg, err := NewRegistry(cfg, p.Router, recorder)
	if err != nil {
		return Output{}, err
	}
	return Output{
		Registry: reg,
		Recorder: recorder,
	}, nil
}

func registerLifecycle(lc fx.Lifecycle, recorder *LatencyRecorder) {
	if recorder == nil {
		return
	}
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			return recorder.Start()
		},
		OnStop: func(_ context.Context) error {
			return recorder.Stop()
		},
	})
}
