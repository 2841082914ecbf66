package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	pkgif "github.com/dep2p/go-modrouter/pkg/interfaces"
	"github.com/dep2p/go-modrouter/pkg/lib/log"
	"github.com/dep2p/go-modrouter/pkg/types"
)

var logger = log.Logger("core/metrics")

// 请求结果标签
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeError   = "error"
)

// LatencyRecorder 订阅请求结算事件并记录耗时直方图
type LatencyRecorder struct {
	bus       pkgif.EventBus
	histogram *prometheus.HistogramVec

	mu   sync.Mutex
	sub  pkgif.Subscription
	done chan struct{}
}

// NewLatencyRecorder 创建耗时记录器
func NewLatencyRecorder(bus pkgif.EventBus) *LatencyRecorder {
	return &LatencyRecorder{
		bus: bus,
		histogram: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "request_duration_seconds",
			Help:      "Time from request registration to settlement.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 10),
		}, []string{"outcome"}),
	}
}

// Collector 返回直方图，用于注册
func (r *LatencyRecorder) Collector() prometheus.Collector {
	return r.histogram
}

// Start 开始订阅
func (r *LatencyRecorder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sub != nil {
		return nil
	}

	sub, err := r.bus.Subscribe(new(types.EvtRequestSettled), pkgif.BufSize(256))
	if err != nil {
		return err
	}
	r.sub = sub
	r.done = make(chan struct{})
	go r.loop(sub, r.done)
	return nil
}

// Stop 取消订阅并等待循环退出
func (r *LatencyRecorder) Stop() error {
	r.mu.Lock()
	sub, done := r.sub, r.done
	r.sub = nil
	r.mu.Unlock()

	if sub == nil {
		return nil
	}
	err := sub.Close()
	<-done
	return err
}

func (r *LatencyRecorder) loop(sub pkgif.Subscription, done chan struct{}) {
	defer close(done)
	for evt := range sub.Out() {
		settled, ok := evt.(types.EvtRequestSettled)
		if !ok {
			continue
		}
		r.Observe(settled)
	}
	logger.Debug("耗时记录器已停止")
}

// Observe 记录一次结算
func (r *LatencyRecorder) Observe(evt types.EvtRequestSettled) {
	outcome := OutcomeSuccess
	switch {
	case evt.Rejected:
		outcome = OutcomeError
	case !evt.Success:
		outcome = OutcomeFailure
	}
	r.histogram.WithLabelValues(outcome).Observe(evt.Latency.Seconds())
}
