package introspect

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/pprof"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dep2p/go-modrouter/internal/core/correlator"
	"github.com/dep2p/go-modrouter/pkg/lib/log"
	"github.com/dep2p/go-modrouter/pkg/types"
)

var logger = log.Logger("debug/introspect")

// DefaultAddr 默认监听地址
const DefaultAddr = "127.0.0.1:6070"

// ============================================================================
//                              配置
// ============================================================================

// RouterInspector 路由器诊断视图，由 router.Router 实现
type RouterInspector interface {
	Started() bool
	Uptime() time.Duration
	QueueLen() int
	Modules() []string
	GetStats() types.Stats
	PendingRequests() []correlator.PendingInfo
}

// TopologyInspector 拓扑诊断视图，由 pipeline.Graph 实现
type TopologyInspector interface {
	Modules() []types.ModuleInfo
	Connections() []types.Connection
}

// Config 服务配置
type Config struct {
	// Addr 监听地址，默认 "127.0.0.1:6070"
	Addr string

	// Router 可选的路由器
	Router RouterInspector

	// Topology 可选的流水线拓扑
	Topology TopologyInspector

	// Gatherer 可选的指标来源，设置后暴露 /metrics
	Gatherer prometheus.Gatherer

	// Events 可选的事件日志
	Events *EventLog

	// CustomHandlers 自定义处理器
	CustomHandlers map[string]http.HandlerFunc
}

// ============================================================================
//                              Server
// ============================================================================

// Server 本地自省 HTTP 服务
type Server struct {
	config Config

	server   *http.Server
	listener net.Listener

	running   bool
	startTime time.Time

	mu sync.Mutex
}

// New 创建自省服务
func New(cfg Config) *Server {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	return &Server{
		config:    cfg,
		startTime: time.Now(),
	}
}

// Handler 返回服务的 HTTP 路由
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/debug/introspect", s.handleIntrospect)
	mux.HandleFunc("/debug/introspect/modules", s.handleModules)
	mux.HandleFunc("/debug/introspect/connections", s.handleConnections)
	mux.HandleFunc("/debug/introspect/pending", s.handlePending)
	mux.HandleFunc("/debug/introspect/events", s.handleEvents)
	mux.HandleFunc("/debug/introspect/runtime", s.handleRuntime)

	if s.config.Gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(s.config.Gatherer, promhttp.HandlerOpts{}))
	}

	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	mux.HandleFunc("/health", s.handleHealth)

	for path, handler := range s.config.CustomHandlers {
		mux.HandleFunc(path, handler)
	}
	return mux
}

// Start 启动服务
func (s *Server) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	listener, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return err
	}
	s.listener = listener

	s.server = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("自省服务异常退出", "error", err)
		}
	}()

	s.running = true
	s.startTime = time.Now()
	logger.Info("自省服务已启动", "addr", listener.Addr().String())
	return nil
}

// Stop 停止服务
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		logger.Error("关闭自省服务失败", "error", err)
		return err
	}

	s.running = false
	logger.Info("自省服务已停止")
	return nil
}

// Addr 返回实际监听地址
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.config.Addr
}

// ============================================================================
//                              响应结构
// ============================================================================

// IntrospectResponse 完整诊断响应
type IntrospectResponse struct {
	Timestamp   time.Time                `json:"timestamp"`
	Uptime      string                   `json:"uptime"`
	Router      *RouterInfo              `json:"router,omitempty"`
	Modules     []ModuleEntry            `json:"modules"`
	Connections []types.Connection       `json:"connections"`
	Pending     []correlator.PendingInfo `json:"pending"`
	Runtime     *RuntimeInfo             `json:"runtime,omitempty"`
}

// RouterInfo 路由器状态
type RouterInfo struct {
	Started  bool        `json:"started"`
	Uptime   string      `json:"uptime"`
	QueueLen int         `json:"queueLen"`
	Stats    types.Stats `json:"stats"`
}

// ModuleEntry 模块条目
//
// Registered 表示模块在路由器中有处理器；只在拓扑中声明而未注册的模块
// Registered 为 false。
type ModuleEntry struct {
	types.ModuleInfo
	Registered bool `json:"registered"`
}

// RuntimeInfo 运行时信息
type RuntimeInfo struct {
	GoVersion    string `json:"go_version"`
	NumGoroutine int    `json:"num_goroutine"`
	NumCPU       int    `json:"num_cpu"`
	MemAlloc     uint64 `json:"mem_alloc"`
	MemSys       uint64 `json:"mem_sys"`
	NumGC        uint32 `json:"num_gc"`
}

// HealthResponse 健康检查响应
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Uptime    string    `json:"uptime,omitempty"`
}

// ============================================================================
//                              HTTP 处理器
// ============================================================================

func (s *Server) handleIntrospect(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}

	s.writeJSON(w, IntrospectResponse{
		Timestamp:   time.Now(),
		Uptime:      time.Since(s.startTime).String(),
		Router:      s.collectRouterInfo(),
		Modules:     s.collectModules(),
		Connections: s.collectConnections(),
		Pending:     s.collectPending(),
		Runtime:     collectRuntimeInfo(),
	})
}

func (s *Server) handleModules(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	s.writeJSON(w, s.collectModules())
}

func (s *Server) handleConnections(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	if s.config.Topology == nil {
		http.Error(w, "Topology not available", http.StatusServiceUnavailable)
		return
	}
	s.writeJSON(w, s.collectConnections())
}

func (s *Server) handlePending(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	if s.config.Router == nil {
		http.Error(w, "Router not available", http.StatusServiceUnavailable)
		return
	}
	s.writeJSON(w, s.collectPending())
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	if s.config.Events == nil {
		s.writeJSON(w, []EventEntry{})
		return
	}
	s.writeJSON(w, s.config.Events.Recent())
}

func (s *Server) handleRuntime(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	s.writeJSON(w, collectRuntimeInfo())
}

// handleHealth 路由器未启动时返回 503
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}

	health := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
		Uptime:    time.Since(s.startTime).String(),
	}

	switch {
	case s.config.Router == nil:
		health.Status = "degraded"
	case !s.config.Router.Started():
		health.Status = "stopped"
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(health)
		return
	}

	s.writeJSON(w, health)
}

// ============================================================================
//                              数据收集
// ============================================================================

func (s *Server) collectRouterInfo() *RouterInfo {
	if s.config.Router == nil {
		return nil
	}
	return &RouterInfo{
		Started:  s.config.Router.Started(),
		Uptime:   s.config.Router.Uptime().String(),
		QueueLen: s.config.Router.QueueLen(),
		Stats:    s.config.Router.GetStats(),
	}
}

// collectModules 合并路由器注册表与拓扑声明，按 ID 排序
func (s *Server) collectModules() []ModuleEntry {
	byID := make(map[string]*ModuleEntry)
	if s.config.Topology != nil {
		for _, info := range s.config.Topology.Modules() {
			byID[info.ID] = &ModuleEntry{ModuleInfo: info}
		}
	}
	if s.config.Router != nil {
		for _, id := range s.config.Router.Modules() {
			e, ok := byID[id]
			if !ok {
				e = &ModuleEntry{ModuleInfo: types.ModuleInfo{ID: id}}
				byID[id] = e
			}
			e.Registered = true
		}
	}

	out := make([]ModuleEntry, 0, len(byID))
	for _, e := range byID {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Server) collectConnections() []types.Connection {
	if s.config.Topology == nil {
		return []types.Connection{}
	}
	return s.config.Topology.Connections()
}

func (s *Server) collectPending() []correlator.PendingInfo {
	if s.config.Router == nil {
		return []correlator.PendingInfo{}
	}
	return s.config.Router.PendingRequests()
}

func collectRuntimeInfo() *RuntimeInfo {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	return &RuntimeInfo{
		GoVersion:    runtime.Version(),
		NumGoroutine: runtime.NumGoroutine(),
		NumCPU:       runtime.NumCPU(),
		MemAlloc:     memStats.Alloc,
		MemSys:       memStats.Sys,
		NumGC:        memStats.NumGC,
	}
}

// ============================================================================
//                              辅助方法
// ============================================================================

func allowGet(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

// writeJSON 写入 JSON 响应
func (s *Server) writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		logger.Error("JSON 编码失败", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
