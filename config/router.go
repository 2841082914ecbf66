package config

import (
	"errors"
	"time"
)

// RouterConfig 路由器配置
type RouterConfig struct {
	// DefaultTimeout 请求默认超时
	DefaultTimeout Duration `json:"default_timeout"`

	// QueueSize 投递队列容量，队列满时发送返回错误
	QueueSize int `json:"queue_size"`

	// MaxConcurrentDeliveries 同时执行的处理器调用上限
	MaxConcurrentDeliveries int `json:"max_concurrent_deliveries"`

	// SettledCacheSize 保留的已结算关联 ID 数量，用于识别迟到响应
	SettledCacheSize int `json:"settled_cache_size"`

	// SendRateLimit 每个发送模块每秒允许的消息数，0 表示不限制
	SendRateLimit float64 `json:"send_rate_limit"`

	// SendBurst 限流突发量
	SendBurst int `json:"send_burst"`

	// CloseTimeout 关闭时等待进行中投递的最长时间
	CloseTimeout Duration `json:"close_timeout"`
}

// DefaultRouterConfig 返回默认路由器配置
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		DefaultTimeout:          Duration(30 * time.Second), // 请求超时：30 秒
		QueueSize:               1024,                       // 投递队列：1024 条
		MaxConcurrentDeliveries: 256,                        // 并发投递：256 个
		SettledCacheSize:        1024,                       // 已结算缓存：1024 个
		SendRateLimit:           0,                          // 发送限流：不限制
		SendBurst:               100,                        // 突发量：100 条
		CloseTimeout:            Duration(5 * time.Second),  // 关闭等待：5 秒
	}
}

// Validate 验证路由器配置
func (c RouterConfig) Validate() error {
	if err := requirePositive("router default timeout", c.DefaultTimeout); err != nil {
		return err
	}
	if c.QueueSize <= 0 {
		return errors.New("router queue size must be positive")
	}
	if c.MaxConcurrentDeliveries <= 0 {
		return errors.New("router max concurrent deliveries must be positive")
	}
	if c.SettledCacheSize <= 0 {
		return errors.New("router settled cache size must be positive")
	}
	if c.SendRateLimit < 0 {
		return errors.New("router send rate limit must not be negative")
	}
	if c.SendRateLimit > 0 && c.SendBurst <= 0 {
		return errors.New("router send burst must be positive when rate limit is set")
	}
	if c.CloseTimeout < 0 {
		return errors.New("router close timeout must not be negative")
	}
	return nil
}

// WithDefaultTimeout 设置默认超时
func (c RouterConfig) WithDefaultTimeout(d time.Duration) RouterConfig {
	c.DefaultTimeout = Duration(d)
	return c
}

// WithSendRateLimit 设置发送限流
func (c RouterConfig) WithSendRateLimit(perSecond float64, burst int) RouterConfig {
	c.SendRateLimit = perSecond
	c.SendBurst = burst
	return c
}
