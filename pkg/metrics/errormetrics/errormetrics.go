// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of Tetragon

package errormetrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/cilium/statgraph/pkg/metrics/consts"
)

type ErrorType int

const (
	// An event older than the histogram window was dropped
	HistogramLateEvent ErrorType = iota
	// A statistic name was already taken on its owner
	StatisticDuplicate
	// A statistic failed to close when its registry was closed
	StatisticCloseFailed
	// A query result could not be cached because the graph changed while it
	// was computed
	QueryCacheStale
)

var errorTypeLabelValues = map[ErrorType]string{
	HistogramLateEvent:   "histogram_late_event",
	StatisticDuplicate:   "statistic_duplicate",
	StatisticCloseFailed: "statistic_close_failed",
	QueryCacheStale:      "query_cache_stale",
}

func (e ErrorType) String() string {
	return errorTypeLabelValues[e]
}

var ErrorTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: consts.MetricsNamespace,
	Name:      "errors_total",
	Help:      "The total number of statgraph errors. For internal use only.",
}, []string{"type"})

func InitMetrics(registry prometheus.Registerer) {
	registry.MustRegister(ErrorTotal)
	// Initialize metrics with labels
	for er := range errorTypeLabelValues {
		GetErrorTotal(er).Add(0)
	}
}

// Get a new handle on an ErrorTotal metric for an ErrorType
func GetErrorTotal(er ErrorType) prometheus.Counter {
	return ErrorTotal.WithLabelValues(er.String())
}

// Increment an ErrorTotal for an ErrorType
func ErrorTotalInc(er ErrorType) {
	GetErrorTotal(er).Inc()
}
