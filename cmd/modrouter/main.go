// Package main 提供 modrouter 命令行入口
//
// 运行一个演示流水线（ticker → doubler → printer），直到收到 SIGINT/SIGTERM，
// 然后打印最终统计。
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dep2p/go-modrouter"
	"github.com/dep2p/go-modrouter/pkg/lib/log"
	"github.com/dep2p/go-modrouter/pkg/types"
)

var logger = log.Logger("modrouter/cmd")

// ═══════════════════════════════════════════════════════════════════════════
// 命令行参数
// ═══════════════════════════════════════════════════════════════════════════
//
//	命令行参数：运行时覆盖（「这次运行」想怎么跑）
//	JSON 配置文件：持久化配置
var (
	configFile   = flag.String("config", "", "配置文件路径")
	logLevel     = flag.String("log-level", "", "日志级别 (debug/info/warn/error)")
	logFile      = flag.String("log", "", "日志文件路径")
	introspect   = flag.String("introspect", "", "启用自省服务并监听该地址（如 127.0.0.1:6070）")
	demoInterval = flag.Duration("demo-interval", time.Second, "演示流水线的发送间隔")
	showVersion  = flag.Bool("version", false, "显示版本信息")
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	flag.Parse()

	if *showVersion {
		fmt.Println(modrouter.VersionInfo())
		return nil
	}
	if *demoInterval <= 0 {
		return fmt.Errorf("demo-interval must be positive")
	}

	opts, err := buildOptions()
	if err != nil {
		return fmt.Errorf("配置错误: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("📦 %s\n", modrouter.VersionInfo())
	app, err := modrouter.Start(ctx, opts...)
	if err != nil {
		return fmt.Errorf("启动失败: %w", err)
	}

	if addr := app.IntrospectAddr(); addr != "" {
		fmt.Printf("🔍 自省服务: http://%s/debug/introspect\n", addr)
	}
	fmt.Println("演示流水线已启动，按 Ctrl+C 退出")

	demo := newDemo(app, *demoInterval)
	demo.run(ctx)

	fmt.Println("\n正在关闭...")
	stats := app.Stats()
	if err := app.Close(); err != nil {
		logger.Warn("关闭时出错", "error", err)
	}
	printStats(app.Stats(), stats)
	return nil
}

// buildOptions 构建选项
//
// 配置优先级（从高到低）：命令行参数 > 环境变量（日志） > 配置文件 > 默认值
func buildOptions() ([]modrouter.Option, error) {
	var opts []modrouter.Option

	if *configFile != "" {
		opts = append(opts, modrouter.WithConfigFile(*configFile))
	}
	if *logLevel != "" {
		opts = append(opts, modrouter.WithLogLevel(*logLevel))
	}
	if *logFile != "" {
		opts = append(opts, modrouter.WithLogFile(*logFile))
	}
	if *introspect != "" {
		opts = append(opts, modrouter.WithIntrospect(*introspect))
	}

	opts = append(opts, demoModules()...)
	return opts, nil
}

// printStats 打印最终统计
//
// 关闭前后各取一次快照：关闭时被拒绝的请求会计入 after 的错误数。
func printStats(after, before types.Stats) {
	fmt.Println("═══════════════════════════════════════")
	fmt.Println("最终统计")
	fmt.Println("═══════════════════════════════════════")
	fmt.Printf("  已发送:   %d\n", after.TotalSent)
	fmt.Printf("  已接收:   %d\n", after.TotalReceived)
	fmt.Printf("  已处理:   %d\n", after.TotalProcessed)
	fmt.Printf("  错误:     %d\n", after.TotalErrors)
	fmt.Printf("  活跃模块: %d (关闭前 %d)\n", after.ActiveModules, before.ActiveModules)
	fmt.Printf("  未完成:   %d (关闭前 %d)\n", after.PendingMessages, before.PendingMessages)
}
