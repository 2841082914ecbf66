package modrouter

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"

	"github.com/dep2p/go-modrouter/config"
	"github.com/dep2p/go-modrouter/internal/core/router"
	pkgif "github.com/dep2p/go-modrouter/pkg/interfaces"
	"github.com/dep2p/go-modrouter/pkg/module"
	"github.com/dep2p/go-modrouter/pkg/types"
)

// collector 收集输入端口上的负载
type collector struct {
	mu     sync.Mutex
	values []any
}

func (c *collector) input(_ context.Context, msg *types.Message) error {
	c.mu.Lock()
	c.values = append(c.values, msg.Payload)
	c.mu.Unlock()
	return nil
}

func (c *collector) snapshot() []any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]any(nil), c.values...)
}

func startApp(t *testing.T, opts ...Option) *App {
	t.Helper()
	opts = append([]Option{WithMetrics(false)}, opts...)
	app, err := Start(context.Background(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })
	return app
}

// ============================================================================
// 生命周期
// ============================================================================

func TestApp_Lifecycle(t *testing.T) {
	app, err := New(WithMetrics(false))
	require.NoError(t, err)
	assert.False(t, app.Running())

	ctx := context.Background()
	require.NoError(t, app.Start(ctx))
	assert.True(t, app.Running())
	assert.ErrorIs(t, app.Start(ctx), ErrAlreadyStarted)

	require.NoError(t, app.Stop(ctx))
	assert.False(t, app.Running())
	require.NoError(t, app.Close(), "stop is idempotent")
	assert.ErrorIs(t, app.Start(ctx), ErrAppClosed)
}

func TestNew_InvalidOptions(t *testing.T) {
	t.Run("配置无效", func(t *testing.T) {
		cfg := config.NewConfig()
		cfg.Router.QueueSize = 0
		_, err := New(WithConfig(cfg))
		assert.Error(t, err)
	})

	t.Run("日志级别无效", func(t *testing.T) {
		_, err := New(WithLogLevel("verbose"))
		assert.Error(t, err)
	})

	t.Run("模块 ID 重复", func(t *testing.T) {
		_, err := New(
			WithModule(types.ModuleInfo{ID: "m1"}, nil),
			WithHandler("m1", router.NewMockHandler()),
		)
		assert.ErrorIs(t, err, ErrModuleExists)
	})

	t.Run("空处理器", func(t *testing.T) {
		_, err := New(WithHandler("m1", nil))
		assert.ErrorIs(t, err, types.ErrNilHandler)
	})

	t.Run("模块 setup 失败", func(t *testing.T) {
		_, err := New(WithModule(types.ModuleInfo{ID: "m1"}, func(m *module.BaseModule) error {
			return m.OnInput("missing", func(context.Context, *types.Message) error { return nil })
		}))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "setup module m1")
	})
}

func TestWithConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "modrouter.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"router": {"default_timeout": "2s"}}`), 0o644))

	app, err := New(WithConfigFile(path), WithMetrics(false))
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, app.Config().Router.DefaultTimeout.Duration())

	_, err = New(WithConfigFile(filepath.Join(t.TempDir(), "missing.json")))
	assert.Error(t, err)
}

// ============================================================================
// 模块与流水线
// ============================================================================

func TestApp_PingRoundTrip(t *testing.T) {
	app := startApp(t,
		WithModule(types.ModuleInfo{ID: "m1"}, nil),
		WithModule(types.ModuleInfo{ID: "m2"}, nil),
	)

	m1, ok := app.Module("m1")
	require.True(t, ok)

	resp, err := m1.Ping(context.Background(), "m2", time.Second)
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, map[string]any{"pong": true, "moduleId": "m2"}, resp.Data)
	assert.Equal(t, []string{"m1", "m2"}, app.ModuleIDs())
}

func TestApp_Pipeline(t *testing.T) {
	var sink collector
	app := startApp(t,
		WithModule(types.ModuleInfo{ID: "source", Outputs: []string{"out"}}, nil),
		WithModule(types.ModuleInfo{ID: "sink", Inputs: []string{"in"}}, func(m *module.BaseModule) error {
			return m.OnInput("in", sink.input)
		}),
		WithConnection("source", "out", "sink", "in"),
	)
	require.Len(t, app.Connections(), 1)

	source, _ := app.Module("source")
	require.NoError(t, source.Emit("out", 1))
	require.NoError(t, source.Emit("out", 2))

	require.Eventually(t, func() bool {
		return len(sink.snapshot()) == 2
	}, time.Second, 5*time.Millisecond)
	assert.ElementsMatch(t, []any{1, 2}, sink.snapshot())

	require.NoError(t, app.Disconnect("source", "out", "sink", "in"))
	assert.Empty(t, app.Connections())
}

func TestApp_InvalidConnectionFailsStart(t *testing.T) {
	_, err := Start(context.Background(),
		WithMetrics(false),
		WithModule(types.ModuleInfo{ID: "a", Outputs: []string{"out"}}, nil),
		WithConnection("a", "out", "ghost", "in"),
	)
	assert.ErrorIs(t, err, types.ErrInvalidConnection)
}

func TestApp_FailedStartDetachesModules(t *testing.T) {
	observer := router.NewMockHandler()
	app, err := New(
		WithMetrics(false),
		WithHandler("observer", observer),
		WithModule(types.ModuleInfo{ID: "a", Outputs: []string{"out"}}, nil),
		WithModule(types.ModuleInfo{ID: "b", Inputs: []string{"in"}}, nil),
		WithConnection("a", "out", "b", "in"),
		WithConnection("a", "out", "ghost", "in"),
	)
	require.NoError(t, err)
	defer func() { _ = app.Close() }()

	err = app.Start(context.Background())
	require.ErrorIs(t, err, types.ErrInvalidConnection)

	// 逆序注销：b、a，最后是 observer 自身
	assert.Equal(t, []string{"b", "a"}, observer.Unregistered())
	assert.Empty(t, app.router.Modules())
	assert.Empty(t, app.graph.Modules())
	assert.Empty(t, app.graph.Connections())
}

// infoHandler 提供模块描述的原始处理器
type infoHandler struct {
	*router.MockHandler
}

func (h infoHandler) ModuleInfo() types.ModuleInfo {
	return types.ModuleInfo{Inputs: []string{"in"}}
}

func TestApp_WithHandler(t *testing.T) {
	h := infoHandler{router.NewMockHandler()}
	app := startApp(t,
		WithModule(types.ModuleInfo{ID: "src", Outputs: []string{"out"}}, nil),
		WithHandler("raw", h),
		WithConnection("src", "out", "raw", "in"),
	)

	src, _ := app.Module("src")
	require.NoError(t, src.Emit("out", "x"))
	require.Eventually(t, func() bool { return h.MessageCount() == 1 }, time.Second, 5*time.Millisecond)

	msg := h.Messages()[0]
	assert.Equal(t, module.TypeData, msg.Type)
	assert.Equal(t, "in", msg.Meta(module.MetaPort))
}

func TestApp_StopUnregistersModules(t *testing.T) {
	observer := router.NewMockHandler()
	app, err := Start(context.Background(),
		WithMetrics(false),
		WithHandler("observer", observer),
		WithModule(types.ModuleInfo{ID: "m1"}, nil),
	)
	require.NoError(t, err)

	r := app.Router()
	require.NoError(t, app.Close())

	assert.Equal(t, 0, r.GetStats().ActiveModules)
	assert.Equal(t, []string{"m1"}, observer.Registered())
	assert.Equal(t, []string{"m1"}, observer.Unregistered())
}

func TestApp_NewModuleAtRuntime(t *testing.T) {
	app := startApp(t, WithModule(types.ModuleInfo{ID: "m1"}, nil))

	late := app.NewModule(types.ModuleInfo{ID: "late", Accepts: []string{"reset"}})
	require.NoError(t, late.Attach())

	m1, _ := app.Module("m1")
	resp, err := m1.Request(context.Background(), "late", "reset", nil, time.Second)
	require.NoError(t, err)
	assert.True(t, resp.Success)
}

// ============================================================================
// 诊断与扩展
// ============================================================================

func TestApp_Diagnostics(t *testing.T) {
	app := startApp(t,
		WithMetrics(true),
		WithIntrospect("127.0.0.1:0"),
		WithModule(types.ModuleInfo{ID: "m1"}, nil),
	)
	require.NotNil(t, app.MetricsRegistry())
	addr := app.IntrospectAddr()
	require.NotEmpty(t, addr)

	resp, err := http.Get("http://" + addr + "/debug/introspect/modules")
	require.NoError(t, err)
	defer resp.Body.Close()

	var modules []struct {
		ID         string `json:"id"`
		Registered bool   `json:"registered"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&modules))
	require.Len(t, modules, 1)
	assert.Equal(t, "m1", modules[0].ID)
	assert.True(t, modules[0].Registered)

	metricsResp, err := http.Get("http://" + addr + "/metrics")
	require.NoError(t, err)
	metricsResp.Body.Close()
	assert.Equal(t, http.StatusOK, metricsResp.StatusCode)
}

func TestApp_DiagnosticsDisabled(t *testing.T) {
	app := startApp(t)
	assert.Nil(t, app.MetricsRegistry())
	assert.Empty(t, app.IntrospectAddr())
}

func TestApp_WithFxOptions(t *testing.T) {
	var injected pkgif.Router
	app := startApp(t, WithFxOptions(fx.Populate(&injected)))
	assert.Same(t, app.Router(), injected)
}

func TestApp_WithLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "modrouter.log")
	app, err := Start(context.Background(), WithMetrics(false), WithLogFile(path))
	require.NoError(t, err)
	require.NoError(t, app.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "应用已启动")
}
