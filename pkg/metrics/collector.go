// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of Tetragon

package metrics

import (
	"math"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/cilium/statgraph/pkg/ctxgraph"
	"github.com/cilium/statgraph/pkg/ctxgraph/query"
	"github.com/cilium/statgraph/pkg/ctxmanager"
	"github.com/cilium/statgraph/pkg/logger"
	"github.com/cilium/statgraph/pkg/logger/logfields"
	"github.com/cilium/statgraph/pkg/metrics/consts"
	"github.com/cilium/statgraph/pkg/stats"
	"github.com/cilium/statgraph/pkg/stats/latency"
)

var (
	statLabels  = []string{consts.LabelOwner, consts.LabelStatistic, consts.LabelNode}
	valueLabels = append(append([]string{}, statLabels...), consts.LabelType)
	tableLabels = append(append([]string{}, statLabels...), consts.LabelRow, consts.LabelColumn)

	valueDesc = prometheus.NewDesc(
		prometheus.BuildFQName(consts.MetricsNamespace, "", "statistic_value"),
		"Current value of a scalar statistic.",
		valueLabels, nil)
	latencyDesc = prometheus.NewDesc(
		prometheus.BuildFQName(consts.MetricsNamespace, "", "latency_nanoseconds"),
		"Windowed latency distribution of a latency statistic.",
		statLabels, nil)
	latencyMinDesc = prometheus.NewDesc(
		prometheus.BuildFQName(consts.MetricsNamespace, "", "latency_minimum_nanoseconds"),
		"Lower bound of the latencies in the window of a latency statistic.",
		statLabels, nil)
	latencyMaxDesc = prometheus.NewDesc(
		prometheus.BuildFQName(consts.MetricsNamespace, "", "latency_maximum_nanoseconds"),
		"Upper bound of the latencies in the window of a latency statistic.",
		statLabels, nil)
	tableDesc = prometheus.NewDesc(
		prometheus.BuildFQName(consts.MetricsNamespace, "", "table_value"),
		"Value of one cell of a table statistic.",
		tableLabels, nil)
)

// GraphCollector exports the statistics found in a context graph. The
// statistics are looked up with a query on every scrape, so statistics
// registered or removed later are picked up without re-registering the
// collector.
type GraphCollector struct {
	manager *ctxmanager.Manager
	query   *query.Query
	log     logrus.FieldLogger
}

// NewGraphCollector returns a collector for the statistics selected by q from
// the roots of m. A nil query selects every statistic below the roots.
func NewGraphCollector(m *ctxmanager.Manager, q *query.Query) *GraphCollector {
	if q == nil {
		q = stats.StatisticsUnder()
	}
	return &GraphCollector{
		manager: m,
		query:   q,
		log:     logger.Subsys("metrics"),
	}
}

func (c *GraphCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- valueDesc
	ch <- latencyDesc
	ch <- latencyMinDesc
	ch <- latencyMaxDesc
	ch <- tableDesc
}

// Init logs what the first scrape will export.
func (c *GraphCollector) Init() {
	c.log.WithField(logfields.Query, c.query.String()).
		WithField("statistics", c.manager.Query(c.query).Cardinality()).
		Info("Exporting statistics from context graph")
}

func (c *GraphCollector) Collect(ch chan<- prometheus.Metric) {
	c.manager.Query(c.query).Each(func(n *ctxgraph.Node) bool {
		s, ok := stats.FromNode(n)
		if !ok {
			return false
		}
		labels := []string{stats.OwnerOf(n), stats.NameOf(n), n.ID().String()}
		switch st := s.(type) {
		case *latency.Statistic:
			collectLatency(ch, st.Value(), labels)
		case *stats.TableStatistic:
			c.collectTable(ch, st.Value(), labels)
		default:
			v, ok := toFloat(s.AnyValue())
			if !ok {
				c.log.WithField(logfields.Statistic, labels[1]).Debug("Skipping non-numeric statistic")
				return false
			}
			ch <- prometheus.MustNewConstMetric(valueDesc, prometheus.GaugeValue, v, append(labels, s.Type().String())...)
		}
		return false
	})
}

func collectLatency(ch chan<- prometheus.Metric, snap latency.Snapshot, labels []string) {
	sum := 0.0
	for _, b := range snap.Buckets {
		sum += b.Weight * (float64(b.Low) + float64(b.High)) / 2
	}
	quantiles := make(map[float64]float64, len(snap.Percentiles))
	for p, v := range snap.Percentiles {
		quantiles[p] = float64(v)
	}
	ch <- prometheus.MustNewConstSummary(latencyDesc, uint64(math.Round(snap.Count)), sum, quantiles, labels...)
	if snap.Count > 0 {
		ch <- prometheus.MustNewConstMetric(latencyMinDesc, prometheus.GaugeValue, float64(snap.Minimum), labels...)
		ch <- prometheus.MustNewConstMetric(latencyMaxDesc, prometheus.GaugeValue, float64(snap.Maximum), labels...)
	}
}

func (c *GraphCollector) collectTable(ch chan<- prometheus.Metric, t *stats.Table, labels []string) {
	for _, row := range t.RowLabels() {
		for _, col := range t.ColumnNames() {
			cell, ok := t.Statistic(row, col)
			if !ok {
				continue
			}
			v, ok := toFloat(cell.Value())
			if !ok {
				continue
			}
			ch <- prometheus.MustNewConstMetric(tableDesc, prometheus.GaugeValue, v, append(labels, row, col)...)
		}
	}
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int8:
		return float64(x), true
	case int16:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint:
		return float64(x), true
	case uint8:
		return float64(x), true
	case uint16:
		return float64(x), true
	case uint32:
		return float64(x), true
	case uint64:
		return float64(x), true
	case time.Duration:
		return float64(x), true
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}
