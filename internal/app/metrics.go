package app

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/taoyao-code/iot-node/internal/metrics"
)

// NewNodeMetrics 初始化注册表与节点指标
func NewNodeMetrics() (*prometheus.Registry, *metrics.NodeMetrics) {
	reg := metrics.NewRegistry()
	return reg, metrics.NewNodeMetrics(reg)
}

// NewCoordinatorMetrics 初始化注册表与协调端指标
func NewCoordinatorMetrics() (*prometheus.Registry, *metrics.CoordinatorMetrics) {
	reg := metrics.NewRegistry()
	return reg, metrics.NewCoordinatorMetrics(reg)
}
