package metrics

import (
	"net/http"

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

// NodeMetrics 节点侧指标
type NodeMetrics struct {
	SyncOutcomeTotal   *prometheus.CounterVec // labels: outcome
	RequestTotal       *prometheus.CounterVec // labels: op, code
	StoreCommitTotal   *prometheus.CounterVec // labels: result=ok|error
	AssociationAttempt prometheus.Counter
	WakeCycleTotal     *prometheus.CounterVec // labels: branch
	PluginResultTotal  *prometheus.CounterVec // labels: tag
	SleepSeconds       prometheus.Gauge       // 最近一次计划睡眠时长
}

// NewNodeMetrics 注册并返回节点指标；reg 为 nil 时只创建不注册
func NewNodeMetrics(reg prometheus.Registerer) *NodeMetrics {
	m := &NodeMetrics{
		SyncOutcomeTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "node_sync_outcome_total",
			Help: "Configuration synchronisation outcomes.",
		}, []string{"outcome"}),
		RequestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "node_coordinator_request_total",
			Help: "Requests issued to the coordinator by operation and status code.",
		}, []string{"op", "code"}),
		StoreCommitTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "node_store_commit_total",
			Help: "Non-volatile store commits.",
		}, []string{"result"}),
		AssociationAttempt: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "node_association_attempt_total",
			Help: "Network association polls while not connected.",
		}),
		WakeCycleTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "node_wake_cycle_total",
			Help: "Wake cycles by branch taken.",
		}, []string{"branch"}),
		PluginResultTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "node_plugin_result_total",
			Help: "Values produced by sensor plugins.",
		}, []string{"tag"}),
		SleepSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "node_sleep_seconds",
			Help: "Sleep duration scheduled by the last wake cycle.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.SyncOutcomeTotal, m.RequestTotal, m.StoreCommitTotal, m.AssociationAttempt,
			m.WakeCycleTotal, m.PluginResultTotal, m.SleepSeconds)
	}
	return m
}

// CoordinatorMetrics 协调端指标
type CoordinatorMetrics struct {
	RegistrationTotal prometheus.Counter
	ConfigServedTotal *prometheus.CounterVec // labels: result=ok|not_found
	ValuesTotal       *prometheus.CounterVec // labels: result=ok|unknown_node|bad_request
	RateLimitedTotal  prometheus.Counter
	NodesGauge        prometheus.Gauge
}

// NewCoordinatorMetrics 注册并返回协调端指标
func NewCoordinatorMetrics(reg prometheus.Registerer) *CoordinatorMetrics {
	m := &CoordinatorMetrics{
		RegistrationTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "coordinator_registration_total",
			Help: "Node registrations (first POST to the config resource).",
		}),
		ConfigServedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "coordinator_config_served_total",
			Help: "Config fetches by result.",
		}, []string{"result"}),
		ValuesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "coordinator_values_total",
			Help: "Value uploads by result.",
		}, []string{"result"}),
		RateLimitedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "coordinator_rate_limited_total",
			Help: "Requests rejected by the per-node rate limiter.",
		}),
		NodesGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "coordinator_nodes",
			Help: "Registered nodes.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.RegistrationTotal, m.ConfigServedTotal, m.ValuesTotal, m.RateLimitedTotal, m.NodesGauge)
	}
	return m
}
