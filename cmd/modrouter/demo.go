package main

import (
	"context"
	"fmt"
	"time"

	"github.com/dep2p/go-modrouter"
	"github.com/dep2p/go-modrouter/pkg/module"
	"github.com/dep2p/go-modrouter/pkg/types"
)

// 演示模块 ID
const (
	tickerID  = "ticker"
	doublerID = "doubler"
	printerID = "printer"
)

// pingEvery 每隔多少次发送做一次 ping
const pingEvery = 5

// demoModules 返回演示流水线的模块和连接
func demoModules() []modrouter.Option {
	return []modrouter.Option{
		modrouter.WithModule(types.ModuleInfo{
			ID:          tickerID,
			Description: "emits an increasing counter",
			Outputs:     []string{"out"},
		}, nil),

		modrouter.WithModule(types.ModuleInfo{
			ID:          doublerID,
			Description: "doubles integers",
			Inputs:      []string{"in"},
			Outputs:     []string{"out"},
			Accepts:     []string{"reset"},
		}, setupDoubler),

		modrouter.WithModule(types.ModuleInfo{
			ID:          printerID,
			Description: "prints whatever arrives",
			Inputs:      []string{"in"},
		}, setupPrinter),

		modrouter.WithConnection(tickerID, "out", doublerID, "in"),
		modrouter.WithConnection(doublerID, "out", printerID, "in"),
	}
}

func setupDoubler(m *module.BaseModule) error {
	return m.OnInput("in", func(_ context.Context, msg *types.Message) error {
		n, ok := msg.Payload.(int)
		if !ok {
			return fmt.Errorf("doubler: expected int payload, got %T", msg.Payload)
		}
		return m.Emit("out", n*2)
	})
}

func setupPrinter(m *module.BaseModule) error {
	return m.OnInput("in", func(_ context.Context, msg *types.Message) error {
		fmt.Printf("  printer ← %v (from %s)\n", msg.Payload, msg.Source)
		return nil
	})
}

// demo 驱动演示流水线
type demo struct {
	ticker   *module.BaseModule
	interval time.Duration
}

func newDemo(app *modrouter.App, interval time.Duration) *demo {
	ticker, _ := app.Module(tickerID)
	return &demo{ticker: ticker, interval: interval}
}

// run 按间隔发送计数，直到 ctx 取消
func (d *demo) run(ctx context.Context) {
	t := time.NewTicker(d.interval)
	defer t.Stop()

	for n := 1; ; n++ {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}

		if err := d.ticker.Emit("out", n); err != nil {
			logger.Warn("发送失败", "error", err)
		}
		if n%pingEvery == 0 {
			d.ping(ctx)
		}
	}
}

// ping 依次 ping 下游模块
func (d *demo) ping(ctx context.Context) {
	for _, target := range []string{doublerID, printerID} {
		start := time.Now()
		resp, err := d.ticker.Ping(ctx, target, d.interval)
		if err != nil {
			logger.Warn("ping 失败", "target", target, "error", err)
			continue
		}
		fmt.Printf("  ping %s: success=%v rtt=%s\n", target, resp.Success, time.Since(start).Round(time.Microsecond))
	}
}
