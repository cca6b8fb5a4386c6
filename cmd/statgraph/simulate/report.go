// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of Tetragon

package simulate

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cilium/statgraph/pkg/ctxgraph"
	"github.com/cilium/statgraph/pkg/ctxmanager"
	"github.com/cilium/statgraph/pkg/option"
	"github.com/cilium/statgraph/pkg/stats"
	"github.com/cilium/statgraph/pkg/stats/latency"
)

var columns = []string{"count", "min", "p50", "p90", "p99", "max"}

// latencyStatistics is shared across reports so the manager can serve it from
// its cache while the graph is unchanged.
var latencyStatistics = stats.StatisticsUnder(stats.OfType(stats.TypeHistogram))

// latencyReport collects every latency statistic reachable from the roots of
// m into a table with one "owner/name" row per statistic.
func latencyReport(m *ctxmanager.Manager) *stats.Table {
	tb := stats.NewTableBuilder()
	m.Query(latencyStatistics).Each(func(n *ctxgraph.Node) bool {
		s, ok := stats.FromNode(n)
		if !ok {
			return false
		}
		l, ok := s.(*latency.Statistic)
		if !ok {
			return false
		}
		snap := l.Value()
		tb.WithRow(stats.OwnerOf(n)+"/"+stats.NameOf(n), map[string]stats.Statistic{
			"count": stats.Constant(stats.TypeCounter, uint64(snap.Count+0.5)),
			"min":   stats.Constant(stats.TypeGauge, time.Duration(snap.Minimum)),
			"p50":   stats.Constant(stats.TypeGauge, time.Duration(l.Percentile(0.5))),
			"p90":   stats.Constant(stats.TypeGauge, time.Duration(l.Percentile(0.9))),
			"p99":   stats.Constant(stats.TypeGauge, time.Duration(l.Percentile(0.99))),
			"max":   stats.Constant(stats.TypeGauge, time.Duration(snap.Maximum)),
		})
		return false
	})
	return tb.Build()
}

func writeReport(w io.Writer, t *stats.Table, output string) error {
	if output == option.OutputYAML {
		values := t.Values()
		out := make(map[string]map[string]string, len(values))
		for row, vals := range values {
			out[row] = make(map[string]string, len(vals))
			for col, v := range vals {
				out[row][col] = fmt.Sprint(v)
			}
		}
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(out)
	}

	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	fmt.Fprint(tw, "STATISTIC")
	for _, c := range columns {
		fmt.Fprintf(tw, "\t%s", c)
	}
	fmt.Fprintln(tw)
	for _, row := range t.RowLabels() {
		fmt.Fprint(tw, row)
		for _, c := range columns {
			s, _ := t.Statistic(row, c)
			fmt.Fprintf(tw, "\t%v", s.Value())
		}
		fmt.Fprintln(tw)
	}
	return tw.Flush()
}
