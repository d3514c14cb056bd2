package app

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/taoyao-code/healthportal/internal/metrics"
)

// NewMetrics 初始化注册表与应用指标，并以常量标签暴露构建版本
func NewMetrics(version string) (*prometheus.Registry, *metrics.AppMetrics) {
	reg := metrics.NewRegistry()
	appm := metrics.NewAppMetrics(reg)
	reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name:        "healthportal_build_info",
		Help:        "Build version of the running coordinator.",
		ConstLabels: prometheus.Labels{"version": version},
	}, func() float64 { return 1 }))
	return reg, appm
}
