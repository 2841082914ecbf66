package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dep2p/go-modrouter/pkg/types"
)

// Namespace 指标命名空间
const Namespace = "modrouter"

// StatsSource 统计来源，由 Router 实现
type StatsSource interface {
	GetStats() types.Stats
}

// Collector 路由器统计采集器
type Collector struct {
	src StatsSource

	sent      *prometheus.Desc
	received  *prometheus.Desc
	processed *prometheus.Desc
	errors    *prometheus.Desc
	active    *prometheus.Desc
	pending   *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector 创建采集器
func NewCollector(src StatsSource) *Collector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(Namespace, "", name), help, nil, nil)
	}
	return &Collector{
		src:       src,
		sent:      desc("messages_sent_total", "Number of send calls accepted by the router."),
		received:  desc("messages_received_total", "Number of handler invocations."),
		processed: desc("messages_processed_total", "Number of handler invocations that returned without error."),
		errors:    desc("messages_errors_total", "Number of failed deliveries and request timeouts."),
		active:    desc("active_modules", "Number of registered modules."),
		pending:   desc("pending_requests", "Number of requests waiting for a response."),
	}
}

// Describe 实现 prometheus.Collector
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.sent
	ch <- c.received
	ch <- c.processed
	ch <- c.errors
	ch <- c.active
	ch <- c.pending
}

// Collect 实现 prometheus.Collector
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.src.GetStats()
	ch <- prometheus.MustNewConstMetric(c.sent, prometheus.CounterValue, float64(s.TotalSent))
	ch <- prometheus.MustNewConstMetric(c.received, prometheus.CounterValue, float64(s.TotalReceived))
	ch <- prometheus.MustNewConstMetric(c.processed, prometheus.CounterValue, float64(s.TotalProcessed))
	ch <- prometheus.MustNewConstMetric(c.errors, prometheus.CounterValue, float64(s.TotalErrors))
	ch <- prometheus.MustNewConstMetric(c.active, prometheus.GaugeValue, float64(s.ActiveModules))
	ch <- prometheus.MustNewConstMetric(c.pending, prometheus.GaugeValue, float64(s.PendingMessages))
}
