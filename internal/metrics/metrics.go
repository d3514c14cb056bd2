package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRegistry 创建自定义 Prometheus Registry，并注册常用采集器
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler 返回 Prometheus 指标 HTTP 处理器
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// 丢弃阶段（dropped_total 的 stage 标签）
const (
	StageWorkFull      = "work_full"      // 本地工作队列已满
	StageWorkExpired   = "work_expired"   // 工作项排队超时
	StageResultFull    = "result_full"    // 结果队列已满
	StageResultExpired = "result_expired" // 结果排队超时
	StageRemoteWrite   = "remote_write"   // 远程 worker 写队列已满
	StageAlertQueue    = "alert_queue"    // 告警队列已满
)

// AppMetrics 自定义业务指标；所有方法对 nil 接收者安全
type AppMetrics struct {
	DroppedTotal      *prometheus.CounterVec   // labels: stage
	DispatchTotal     *prometheus.CounterVec   // labels: target=local|remote|offline
	ResultsTotal      *prometheus.CounterVec   // labels: source, state
	MalformedTotal    *prometheus.CounterVec   // labels: source=local|remote
	TimeoutTotal      prometheus.Counter       // 超时扫描合成的结果
	ProbeDuration     *prometheus.HistogramVec // labels: probe
	ChecksGauge       *prometheus.GaugeVec     // labels: state
	EntitiesGauge     *prometheus.GaugeVec     // labels: state
	WorkersConnected  prometheus.Gauge         // 当前在线远程 worker 数
	WorkerConnections *prometheus.CounterVec   // labels: result
	AlertsTotal       *prometheus.CounterVec   // labels: result=sent|throttled|failed
}

// NewAppMetrics 注册并返回业务指标
func NewAppMetrics(reg *prometheus.Registry) *AppMetrics {
	m := &AppMetrics{
		DroppedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "healthportal_dropped_total",
			Help: "Jobs or results dropped because a queue was full or an item expired.",
		}, []string{"stage"}),
		DispatchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "healthportal_dispatch_total",
			Help: "Check dispatches by target.",
		}, []string{"target"}),
		ResultsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "healthportal_results_total",
			Help: "Results applied by source and health state.",
		}, []string{"source", "state"}),
		MalformedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "healthportal_results_malformed_total",
			Help: "Results rejected for violating the result contract.",
		}, []string{"source"}),
		TimeoutTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "healthportal_check_timeouts_total",
			Help: "Checks marked unknown by the timeout sweep.",
		}),
		ProbeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "healthportal_probe_duration_seconds",
			Help:    "Probe execution time in the local pool.",
			Buckets: []float64{0.005, 0.05, 0.25, 1, 2.5, 5, 10, 30, 60},
		}, []string{"probe"}),
		ChecksGauge: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "healthportal_checks",
			Help: "Current number of checks by health state.",
		}, []string{"state"}),
		EntitiesGauge: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "healthportal_entities",
			Help: "Current number of entities by health state.",
		}, []string{"state"}),
		WorkersConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "healthportal_workers_connected",
			Help: "Current number of connected remote workers.",
		}),
		WorkerConnections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "healthportal_worker_connections_total",
			Help: "Remote worker handshakes by outcome.",
		}, []string{"result"}),
		AlertsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "healthportal_alerts_total",
			Help: "Alert notifications by outcome.",
		}, []string{"result"}),
	}
	reg.MustRegister(
		m.DroppedTotal, m.DispatchTotal, m.ResultsTotal, m.MalformedTotal, m.TimeoutTotal,
		m.ProbeDuration, m.ChecksGauge, m.EntitiesGauge,
		m.WorkersConnected, m.WorkerConnections, m.AlertsTotal,
	)
	return m
}

// Dropped 记录一次丢弃
func (m *AppMetrics) Dropped(stage string) {
	if m != nil {
		m.DroppedTotal.WithLabelValues(stage).Inc()
	}
}

// Dispatched 记录一次派发
func (m *AppMetrics) Dispatched(target string) {
	if m != nil {
		m.DispatchTotal.WithLabelValues(target).Inc()
	}
}

// ResultApplied 记录一次结果应用
func (m *AppMetrics) ResultApplied(source, state string) {
	if m != nil {
		m.ResultsTotal.WithLabelValues(source, state).Inc()
	}
}

// Malformed 记录一次非法结果
func (m *AppMetrics) Malformed(source string) {
	if m != nil {
		m.MalformedTotal.WithLabelValues(source).Inc()
	}
}

// TimedOut 记录一次超时
func (m *AppMetrics) TimedOut() {
	if m != nil {
		m.TimeoutTotal.Inc()
	}
}

// ObserveProbe 记录探针耗时
func (m *AppMetrics) ObserveProbe(probe string, d time.Duration) {
	if m != nil {
		m.ProbeDuration.WithLabelValues(probe).Observe(d.Seconds())
	}
}

// SetStateCounts 刷新检查项与实体的状态分布
func (m *AppMetrics) SetStateCounts(checks, entities map[string]int) {
	if m == nil {
		return
	}
	for state, n := range checks {
		m.ChecksGauge.WithLabelValues(state).Set(float64(n))
	}
	for state, n := range entities {
		m.EntitiesGauge.WithLabelValues(state).Set(float64(n))
	}
}

// WorkerConnection 记录握手结果并刷新在线数
func (m *AppMetrics) WorkerConnection(result string, online int) {
	if m == nil {
		return
	}
	m.WorkerConnections.WithLabelValues(result).Inc()
	m.WorkersConnected.Set(float64(online))
}

// SetWorkersOnline 刷新在线 worker 数
func (m *AppMetrics) SetWorkersOnline(online int) {
	if m != nil {
		m.WorkersConnected.Set(float64(online))
	}
}

// Alert 记录告警结果
func (m *AppMetrics) Alert(result string) {
	if m != nil {
		m.AlertsTotal.WithLabelValues(result).Inc()
	}
}
