// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of Tetragon

package version

import (
	"github.com/prometheus/client_golang/prometheus"
)

// buildInfoCollector collects a single constant metric describing the
// binary.
type buildInfoCollector struct {
	self prometheus.Metric
}

func (b *buildInfoCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- b.self.Desc()
}

func (b *buildInfoCollector) Collect(ch chan<- prometheus.Metric) {
	ch <- b.self
}

func NewBuildInfoCollector() prometheus.Collector {
	info := ReadBuildInfo()
	return &buildInfoCollector{
		self: prometheus.MustNewConstMetric(
			prometheus.NewDesc(
				Name+"_build_info",
				"Build information about "+Name,
				nil,
				prometheus.Labels{
					"version":    Version,
					"go_version": info.GoVersion,
					"commit":     info.Commit,
					"time":       info.Time,
					"modified":   info.Modified,
				},
			),
			prometheus.GaugeValue,
			1),
	}
}

func InitMetrics(registry *prometheus.Registry) {
	registry.MustRegister(NewBuildInfoCollector())
}
