// Package log 提供 modrouter 统一日志接口
//
// 基于 Go 标准库 log/slog 封装，每个组件通过 Logger("core/router") 获取
// 一个懒加载的组件日志器，日志调用时总是使用当前的默认 handler，
// 因此可以在运行时（例如加载配置后）切换输出目标、格式和级别。
//
// 环境变量:
//
//	MODROUTER_LOG_LEVEL=debug|info|warn|error   覆盖配置文件中的级别
//	MODROUTER_LOG_FORMAT=text|json              覆盖配置文件中的格式
package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// 环境变量名
const (
	EnvLogLevel  = "MODROUTER_LOG_LEVEL"
	EnvLogFormat = "MODROUTER_LOG_FORMAT"
)

// 日志级别常量（从 slog 导出，方便使用）
const (
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

// Format 日志输出格式
type Format string

const (
	// FormatText 文本格式（默认）
	FormatText Format = "text"
	// FormatJSON JSON 格式
	FormatJSON Format = "json"
)

// ============================================================================
//                              全局配置
// ============================================================================

// Setup 按给定级别和格式重建默认 logger
//
// 环境变量优先于参数，便于在不修改配置文件的情况下临时打开 debug 日志。
func Setup(w io.Writer, level slog.Level, format Format) {
	if w == nil {
		w = os.Stderr
	}
	if envLevel := os.Getenv(EnvLogLevel); envLevel != "" {
		if l, err := ParseLevel(envLevel); err == nil {
			level = l
		}
	}
	if envFormat := os.Getenv(EnvLogFormat); envFormat != "" {
		format = Format(strings.ToLower(envFormat))
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if format == FormatJSON {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// SetLevel 仅修改级别，输出到 stderr
func SetLevel(level slog.Level) {
	Setup(os.Stderr, level, FormatText)
}

// ParseLevel 解析级别字符串
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// ============================================================================
//                              LazyLogger
// ============================================================================

// LazyLogger 懒加载 logger
//
// 每次日志调用时都从 slog.Default() 获取最新的 handler。
//
//	var logger = log.Logger("core/router")
//	logger.Info("模块已注册", "module", id)
type LazyLogger struct {
	component string
}

// Logger 返回带组件名的 LazyLogger
func Logger(component string) *LazyLogger {
	return &LazyLogger{component: component}
}

func (l *LazyLogger) base() *slog.Logger {
	return slog.Default().With("component", l.component)
}

// Debug 输出 Debug 级别日志
func (l *LazyLogger) Debug(msg string, args ...any) {
	l.base().Debug(msg, args...)
}

// Info 输出 Info 级别日志
func (l *LazyLogger) Info(msg string, args ...any) {
	l.base().Info(msg, args...)
}

// Warn 输出 Warn 级别日志
func (l *LazyLogger) Warn(msg string, args ...any) {
	l.base().Warn(msg, args...)
}

// Error 输出 Error 级别日志
func (l *LazyLogger) Error(msg string, args ...any) {
	l.base().Error(msg, args...)
}

// DebugContext 带 context 的 Debug 日志
func (l *LazyLogger) DebugContext(ctx context.Context, msg string, args ...any) {
	l.base().DebugContext(ctx, msg, args...)
}

// WarnContext 带 context 的 Warn 日志
func (l *LazyLogger) WarnContext(ctx context.Context, msg string, args ...any) {
	l.base().WarnContext(ctx, msg, args...)
}

// Enabled 判断级别是否启用，用于避免构造昂贵的日志参数
func (l *LazyLogger) Enabled(level slog.Level) bool {
	return slog.Default().Enabled(context.Background(), level)
}

// With 添加额外的属性
func (l *LazyLogger) With(args ...any) *slog.Logger {
	return l.base().With(args...)
}

// ============================================================================
//                              工具函数
// ============================================================================

// TruncateID 安全截取 ID 用于日志显示
//
// uuid 形式的消息 ID 很长，日志中只保留前 maxLen 个字符。
func TruncateID(id string, maxLen int) string {
	if len(id) <= maxLen {
		return id
	}
	return id[:maxLen]
}
