package monitor

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Monitor Prometheus监控指标收集器
type Monitor struct {
	registry *prometheus.Registry

	// 订单指标
	ordersPlaced   prometheus.Counter
	ordersCanceled prometheus.Counter
	ordersFilled   prometheus.Counter
	ordersRejected prometheus.Counter
	cancelRequests prometheus.Counter
	filledVolume   prometheus.Counter
	orderLifetime  prometheus.Histogram

	// FIX 会话指标
	fixSent         *prometheus.CounterVec
	fixReceived     *prometheus.CounterVec
	heartbeats      prometheus.Counter
	decodeAnomalies prometheus.Counter
	droppedReports  prometheus.Counter

	// 盘口指标
	bookUpdates *prometheus.CounterVec
	bidPrice    prometheus.Gauge
	askPrice    prometheus.Gauge
	recentPrice prometheus.Gauge

	// 账户指标
	holdings          *prometheus.GaugeVec
	balanceResyncs    prometheus.Counter
	balanceFetchFails prometheus.Counter

	// 行情连接
	feedReconnects prometheus.Counter
}

// Config 监控配置
type Config struct {
	Namespace string `yaml:"namespace"`
	Subsystem string `yaml:"subsystem"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Namespace: "mm",
		Subsystem: "fix",
	}
}

// New 创建新的Monitor实例，使用独立 registry
func New(cfg Config) *Monitor {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	counter := func(name, help string) prometheus.Counter {
		return factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      name,
			Help:      help,
		})
	}
	gauge := func(name, help string) prometheus.Gauge {
		return factory.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      name,
			Help:      help,
		})
	}

	return &Monitor{
		registry: reg,

		ordersPlaced:   counter("orders_placed_total", "新单提交总数"),
		ordersCanceled: counter("orders_canceled_total", "撤单成功总数"),
		ordersFilled:   counter("orders_filled_total", "完全成交订单数"),
		ordersRejected: counter("orders_rejected_total", "被拒订单数"),
		cancelRequests: counter("cancel_requests_total", "撤单请求数"),
		filledVolume:   counter("filled_volume_total", "累计成交量（基础币）"),
		orderLifetime: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "order_lifetime_seconds",
			Help:      "订单从提交到销毁的时长（秒）",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 5, 15, 60, 300, 1800},
		}),

		fixSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "messages_sent_total",
			Help:      "发出的 FIX 报文数",
		}, []string{"type"}),
		fixReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "messages_received_total",
			Help:      "收到的 FIX 报文数",
		}, []string{"type"}),
		heartbeats:      counter("heartbeats_total", "主动发送的心跳数"),
		decodeAnomalies: counter("decode_anomalies_total", "解码时跳过的字段数"),
		droppedReports:  counter("dropped_reports_total", "找不到订单而丢弃的回报数"),

		bookUpdates: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "book_best_changes_total",
			Help:      "最优档变化次数",
		}, []string{"side"}),
		bidPrice:    gauge("bid_price", "当前买一价"),
		askPrice:    gauge("ask_price", "当前卖一价"),
		recentPrice: gauge("recent_price", "买一卖一中间价"),

		holdings: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "holdings",
			Help:      "账户持仓估算",
		}, []string{"currency"}),
		balanceResyncs:    counter("balance_resyncs_total", "资金不足后重新同步余额次数"),
		balanceFetchFails: counter("balance_fetch_failures_total", "余额查询失败次数"),

		feedReconnects: counter("feed_reconnects_total", "行情 websocket 重连次数"),
	}
}

// 订单相关方法
func (m *Monitor) RecordOrderPlaced()   { m.ordersPlaced.Inc() }
func (m *Monitor) RecordOrderCanceled() { m.ordersCanceled.Inc() }
func (m *Monitor) RecordOrderFilled()   { m.ordersFilled.Inc() }
func (m *Monitor) RecordOrderRejected() { m.ordersRejected.Inc() }
func (m *Monitor) RecordCancelRequest() { m.cancelRequests.Inc() }

func (m *Monitor) RecordFill(volume float64) {
	m.filledVolume.Add(volume)
}

func (m *Monitor) RecordOrderLifetime(seconds float64) {
	m.orderLifetime.Observe(seconds)
}

// FIX 相关方法
func (m *Monitor) RecordSent(msgType string) {
	m.fixSent.WithLabelValues(msgType).Inc()
}

func (m *Monitor) RecordReceived(msgType string) {
	m.fixReceived.WithLabelValues(msgType).Inc()
}

func (m *Monitor) RecordHeartbeat()            { m.heartbeats.Inc() }
func (m *Monitor) RecordDecodeAnomalies(n int) { m.decodeAnomalies.Add(float64(n)) }
func (m *Monitor) RecordDroppedReport()        { m.droppedReports.Inc() }

// 盘口相关方法
func (m *Monitor) RecordBookChange(side string) {
	m.bookUpdates.WithLabelValues(side).Inc()
}

func (m *Monitor) UpdateTop(bid, ask, recent float64) {
	m.bidPrice.Set(bid)
	m.askPrice.Set(ask)
	m.recentPrice.Set(recent)
}

// 账户相关方法
func (m *Monitor) UpdateHoldings(quoteCcy string, quote float64, baseCcy string, base float64) {
	m.holdings.WithLabelValues(quoteCcy).Set(quote)
	m.holdings.WithLabelValues(baseCcy).Set(base)
}

func (m *Monitor) RecordBalanceResync()      { m.balanceResyncs.Inc() }
func (m *Monitor) RecordBalanceFetchFailure() { m.balanceFetchFails.Inc() }

func (m *Monitor) RecordFeedReconnect() { m.feedReconnects.Inc() }

// Handler 返回HTTP handler用于暴露指标
func (m *Monitor) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry 返回prometheus registry
func (m *Monitor) Registry() *prometheus.Registry {
	return m.registry
}
