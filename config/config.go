// Package config 提供统一的配置管理
//
// 本包采用混合配置模式：
//   - 主 Config 结构体嵌入所有子配置
//   - 每个子配置在独立文件中定义
//   - 支持从 JSON 加载和保存配置
//
// 使用示例：
//
//	// 创建默认配置
//	cfg := config.NewConfig()
//	cfg.Router.DefaultTimeout = config.Duration(10 * time.Second)
//
//	// 从 JSON 加载
//	cfg, err := config.FromJSON(data)
//
//	// 从文件加载
//	cfg, err := config.LoadFile("modrouter.json")
package config

// Config 是 modrouter 的完整配置结构
//
// 配置按照功能模块组织：
//   - Router: 消息路由（超时、队列、并发、限流）
//   - Diagnostics: 诊断服务（自省 HTTP、Prometheus 指标）
//   - Log: 日志输出
type Config struct {
	// Router 路由器配置
	Router RouterConfig `json:"router"`

	// Diagnostics 诊断服务配置
	Diagnostics DiagnosticsConfig `json:"diagnostics"`

	// Log 日志配置
	Log LogConfig `json:"log"`
}

// NewConfig 创建默认配置
//
// 返回的配置使用所有组件的默认值，适用于大多数场景。
func NewConfig() *Config {
	return &Config{
		Router:      DefaultRouterConfig(),
		Diagnostics: DefaultDiagnosticsConfig(),
		Log:         DefaultLogConfig(),
	}
}

// Validate 验证配置的有效性
//
// 检查所有子配置是否有效，如果发现无效配置则返回错误。
func (c *Config) Validate() error {
	if err := c.Router.Validate(); err != nil {
		return err
	}
	if err := c.Diagnostics.Validate(); err != nil {
		return err
	}
	if err := c.Log.Validate(); err != nil {
		return err
	}
	return nil
}
