package router

import (
	"fmt"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-modrouter/config"
	pkgif "github.com/dep2p/go-modrouter/pkg/interfaces"
)

// Config 路由器配置
type Config struct {
	// DefaultTimeout 请求默认超时
	DefaultTimeout time.Duration

	// QueueSize 投递队列容量
	QueueSize int

	// MaxConcurrentDeliveries 同时执行的处理器调用上限
	MaxConcurrentDeliveries int

	// SettledCacheSize 已结算关联 ID 缓存大小
	SettledCacheSize int

	// SendRateLimit 每个发送方每秒消息数，0 表示不限制
	SendRateLimit float64

	// SendBurst 限流突发量
	SendBurst int

	// CloseTimeout 关闭时等待进行中投递的最长时间
	CloseTimeout time.Duration

	// Clock 时钟（时间戳、TTL、超时），测试中可替换
	Clock clock.Clock

	// EventBus 生命周期事件总线，可为 nil
	EventBus pkgif.EventBus
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		DefaultTimeout:          30 * time.Second,
		QueueSize:               1024,
		MaxConcurrentDeliveries: 256,
		SettledCacheSize:        1024,
		SendBurst:               100,
		CloseTimeout:            5 * time.Second,
	}
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.DefaultTimeout <= 0 {
		return fmt.Errorf("%w: default timeout must be positive", ErrInvalidConfig)
	}
	if c.QueueSize <= 0 {
		return fmt.Errorf("%w: queue size must be positive", ErrInvalidConfig)
	}
	if c.MaxConcurrentDeliveries <= 0 {
		return fmt.Errorf("%w: max concurrent deliveries must be positive", ErrInvalidConfig)
	}
	if c.SendRateLimit < 0 {
		return fmt.Errorf("%w: send rate limit must not be negative", ErrInvalidConfig)
	}
	if c.SendRateLimit > 0 && c.SendBurst <= 0 {
		return fmt.Errorf("%w: send burst must be positive", ErrInvalidConfig)
	}
	return nil
}

// ConfigFromUnified 从统一配置创建路由器配置
func ConfigFromUnified(cfg *config.Config) *Config {
	c := DefaultConfig()
	if cfg == nil {
		return c
	}
	rc := cfg.Router
	c.DefaultTimeout = rc.DefaultTimeout.Duration()
	c.QueueSize = rc.QueueSize
	c.MaxConcurrentDeliveries = rc.MaxConcurrentDeliveries
	c.SettledCacheSize = rc.SettledCacheSize
	c.SendRateLimit = rc.SendRateLimit
	c.SendBurst = rc.SendBurst
	c.CloseTimeout = rc.CloseTimeout.Duration()
	return c
}

// Option 配置选项函数
type Option func(*Config)

// WithConfig 整体替换配置（保留已设置的 Clock 和 EventBus）
func WithConfig(cfg *Config) Option {
	return func(c *Config) {
		if cfg == nil {
			return
		}
		clk, bus := c.Clock, c.EventBus
		*c = *cfg
		if c.Clock == nil {
			c.Clock = clk
		}
		if c.EventBus == nil {
			c.EventBus = bus
		}
	}
}

// WithTimeout 设置请求默认超时
func WithTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.DefaultTimeout = timeout
	}
}

// WithQueueSize 设置投递队列容量
func WithQueueSize(size int) Option {
	return func(c *Config) {
		c.QueueSize = size
	}
}

// WithMaxConcurrentDeliveries 设置并发投递上限
func WithMaxConcurrentDeliveries(n int) Option {
	return func(c *Config) {
		c.MaxConcurrentDeliveries = n
	}
}

// WithSendRateLimit 设置每个发送方的速率限制
func WithSendRateLimit(perSecond float64, burst int) Option {
	return func(c *Config) {
		c.SendRateLimit = perSecond
		c.SendBurst = burst
	}
}

// WithCloseTimeout 设置关闭等待时间
func WithCloseTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.CloseTimeout = timeout
	}
}

// WithClock 设置时钟
func WithClock(clk clock.Clock) Option {
	return func(c *Config) {
		c.Clock = clk
	}
}

// WithEventBus 设置事件总线
func WithEventBus(bus pkgif.EventBus) Option {
	return func(c *Config) {
		c.EventBus = bus
	}
}
