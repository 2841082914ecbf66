package config

import (
	"errors"
	"fmt"
)

// ValidateAll 验证整个配置的有效性
//
// 这是 Config.Validate() 的别名，额外处理 nil。
func ValidateAll(c *Config) error {
	if c == nil {
		return errors.New("config is nil")
	}
	return c.Validate()
}

// ValidateAndFix 验证配置并尝试自动修复常见问题
//
// 可修复的问题：
//   - 非正的超时、队列、并发参数使用默认值
//   - 启用限流但突发量为 0 时，突发量取速率向上取整
func ValidateAndFix(c *Config) (*Config, error) {
	if c == nil {
		return NewConfig(), nil
	}

	def := DefaultRouterConfig()
	c.Router.DefaultTimeout = Duration(c.Router.DefaultTimeout.OrDefault(def.DefaultTimeout.Duration()))
	if c.Router.QueueSize <= 0 {
		c.Router.QueueSize = def.QueueSize
	}
	if c.Router.MaxConcurrentDeliveries <= 0 {
		c.Router.MaxConcurrentDeliveries = def.MaxConcurrentDeliveries
	}
	if c.Router.SettledCacheSize <= 0 {
		c.Router.SettledCacheSize = def.SettledCacheSize
	}
	if c.Router.SendRateLimit > 0 && c.Router.SendBurst <= 0 {
		burst := int(c.Router.SendRateLimit)
		if float64(burst) < c.Router.SendRateLimit {
			burst++
		}
		c.Router.SendBurst = burst
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed after fixes: %w", err)
	}
	return c, nil
}

// MustValidate 验证配置，如果失败则 panic
//
// 仅用于初始化阶段或测试代码。
func MustValidate(c *Config) {
	if err := ValidateAll(c); err != nil {
		panic(fmt.Sprintf("config validation failed: %v", err))
	}
}
