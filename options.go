package modrouter

import (
	"fmt"
	"slices"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/fx"

	"github.com/dep2p/go-modrouter/config"
	pkgif "github.com/dep2p/go-modrouter/pkg/interfaces"
	"github.com/dep2p/go-modrouter/pkg/module"
	"github.com/dep2p/go-modrouter/pkg/types"
)

// Option 用户配置选项函数
type Option func(*options) error

// ModuleSetup 在模块注册前调用，用于安装类型处理器和输入端口
type ModuleSetup func(m *module.BaseModule) error

// moduleEntry 通过 WithModule 配置的模块
type moduleEntry struct {
	info  types.ModuleInfo
	setup ModuleSetup
}

// handlerEntry 通过 WithHandler 配置的原始处理器
type handlerEntry struct {
	id      string
	handler pkgif.ModuleHandler
}

// options 内部选项结构
type options struct {
	config *config.Config

	// 覆盖项，在加载配置后应用
	logLevel       string
	logFile        string
	introspectAddr *string
	metrics        *bool
	defaultTimeout time.Duration

	clock clock.Clock

	modules     []moduleEntry
	handlers    []handlerEntry
	order       []string // 模块按配置顺序注册
	connections []types.Connection

	userFxOptions []fx.Option
}

// newOptions 创建默认选项
func newOptions() *options {
	return &options{
		config: config.NewConfig(),
	}
}

// finalConfig 把覆盖项应用到配置的副本上
func (o *options) finalConfig() *config.Config {
	cfg := config.CloneConfig(o.config)

	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if o.logFile != "" {
		cfg.Log.File = o.logFile
	}
	if o.introspectAddr != nil {
		cfg.Diagnostics.EnableIntrospect = true
		if *o.introspectAddr != "" {
			cfg.Diagnostics.IntrospectAddr = *o.introspectAddr
		}
	}
	if o.metrics != nil {
		cfg.Diagnostics.EnableMetrics = *o.metrics
	}
	if o.defaultTimeout > 0 {
		cfg.Router.DefaultTimeout = config.Duration(o.defaultTimeout)
	}
	return cfg
}

// hasModule 检查 ID 是否已被配置
func (o *options) hasModule(id string) bool {
	return slices.Contains(o.order, id)
}

// ============================================================================
//                              配置选项
// ============================================================================

// WithConfig 使用完整配置
//
// 之后的覆盖选项（WithLogLevel、WithIntrospect 等）仍然生效。
func WithConfig(cfg *config.Config) Option {
	return func(o *options) error {
		if cfg == nil {
			return fmt.Errorf("config must not be nil")
		}
		o.config = config.CloneConfig(cfg)
		return nil
	}
}

// WithConfigFile 从 JSON 文件加载配置
func WithConfigFile(path string) Option {
	return func(o *options) error {
		cfg, err := config.LoadFile(path)
		if err != nil {
			return err
		}
		o.config = cfg
		return nil
	}
}

// WithLogLevel 设置日志级别
func WithLogLevel(level string) Option {
	return func(o *options) error {
		o.logLevel = level
		return nil
	}
}

// WithLogFile 将日志输出重定向到指定文件
//
// 用法：
//
//	modrouter.New(modrouter.WithLogFile("modrouter.log"))
func WithLogFile(path string) Option {
	return func(o *options) error {
		o.logFile = path
		return nil
	}
}

// WithIntrospect 启用自省服务，addr 为空时使用配置中的地址
func WithIntrospect(addr string) Option {
	return func(o *options) error {
		o.introspectAddr = &addr
		return nil
	}
}

// WithMetrics 启用或禁用 Prometheus 指标
func WithMetrics(enable bool) Option {
	return func(o *options) error {
		o.metrics = &enable
		return nil
	}
}

// WithDefaultTimeout 设置请求默认超时
func WithDefaultTimeout(d time.Duration) Option {
	return func(o *options) error {
		if d <= 0 {
			return fmt.Errorf("default timeout must be positive")
		}
		o.defaultTimeout = d
		return nil
	}
}

// WithClock 注入时钟，测试中使用 clock.NewMock()
func WithClock(c clock.Clock) Option {
	return func(o *options) error {
		o.clock = c
		return nil
	}
}

// ============================================================================
//                              模块选项
// ============================================================================

// WithModule 声明一个基于 BaseModule 的模块
//
// 应用启动时创建模块、调用 setup、声明端口并注册到路由器；
// 停止时注销。setup 可以为 nil，此时模块只有默认行为。
//
//	modrouter.WithModule(types.ModuleInfo{ID: "printer", Inputs: []string{"in"}},
//	    func(m *module.BaseModule) error {
//	        return m.OnInput("in", printValue)
//	    })
func WithModule(info types.ModuleInfo, setup ModuleSetup) Option {
	return func(o *options) error {
		if info.ID == "" {
			return types.ErrEmptyModuleID
		}
		if o.hasModule(info.ID) {
			return fmt.Errorf("%w: %s", ErrModuleExists, info.ID)
		}
		o.modules = append(o.modules, moduleEntry{info: info.Clone(), setup: setup})
		o.order = append(o.order, info.ID)
		return nil
	}
}

// WithHandler 注册一个自定义处理器
//
// 处理器实现 interfaces.ModuleInfoProvider 时，其描述会被声明到拓扑。
func WithHandler(id string, handler pkgif.ModuleHandler) Option {
	return func(o *options) error {
		if id == "" {
			return types.ErrEmptyModuleID
		}
		if handler == nil {
			return types.ErrNilHandler
		}
		if o.hasModule(id) {
			return fmt.Errorf("%w: %s", ErrModuleExists, id)
		}
		o.handlers = append(o.handlers, handlerEntry{id: id, handler: handler})
		o.order = append(o.order, id)
		return nil
	}
}

// WithConnection 在所有模块注册后建立流水线连接
func WithConnection(from, outPort, to, inPort string) Option {
	return func(o *options) error {
		o.connections = append(o.connections, types.Connection{
			From: from, OutPort: outPort, To: to, InPort: inPort,
		})
		return nil
	}
}

// WithFxOptions 追加自定义 Fx 选项
func WithFxOptions(opts ...fx.Option) Option {
	return func(o *options) error {
		o.userFxOptions = append(o.userFxOptions, opts...)
		return nil
	}
}
