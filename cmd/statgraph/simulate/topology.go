// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of Tetragon

package simulate

import (
	"fmt"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/multierr"

	"github.com/cilium/statgraph/pkg/ctxgraph"
	"github.com/cilium/statgraph/pkg/ctxmanager"
	"github.com/cilium/statgraph/pkg/stats"
	"github.com/cilium/statgraph/pkg/stats/latency"
)

const tagLatency = "latency"

type tier struct {
	name  string
	node  *ctxgraph.Node
	mean  time.Duration
	share float64
	get   *latency.Statistic
	ops   atomic.Uint64
}

// topology is the demo system: a store with a fast and a slow tier, both
// backed by one shared IO pool.
//
//	store
//	 |- cache (hot)  \
//	 |- disk (cold)  -+- io-pool
type topology struct {
	manager  *ctxmanager.Manager
	registry *stats.Registry
	store    *ctxgraph.Node
	tiers    []*tier
	pool     *ctxgraph.Node
	poolWait *latency.Statistic
}

func newTopology(m *ctxmanager.Manager, opts latency.Options, mean time.Duration) (*topology, error) {
	t := &topology{
		manager:  m,
		registry: stats.NewRegistry(m.Graph()),
	}
	t.store = m.Root(ctxgraph.NewElement("store", map[string]any{"name": "store"}))

	for _, def := range []struct {
		name, level string
		mean        time.Duration
		share       float64
	}{
		{"cache", "hot", mean, 0.8},
		{"disk", "cold", 20 * mean, 0.2},
	} {
		get, err := latency.New(opts)
		if err != nil {
			return nil, err
		}
		tr := &tier{name: def.name, mean: def.mean, share: def.share, get: get}
		tr.node = m.Graph().Attach(ctxgraph.NewElement("tier", map[string]any{
			"name":  def.name,
			"level": def.level,
		}), t.store)
		t.tiers = append(t.tiers, tr)
	}

	wait, err := latency.New(opts)
	if err != nil {
		return nil, err
	}
	t.poolWait = wait
	t.pool = m.Graph().Attach(ctxgraph.NewElement("resource", map[string]any{"name": "io-pool"}),
		t.tiers[0].node, t.tiers[1].node)

	if err := t.register(); err != nil {
		return nil, err
	}
	return t, nil
}

// register publishes the statistics of every node. A failed registration
// does not stop the others; all failures are returned together.
func (t *topology) register() error {
	var err error
	for _, tr := range t.tiers {
		ops := &tr.ops
		err = multierr.Append(err, t.registry.RegisterAll(tr.node, map[string]stats.Statistic{
			"operations": stats.Supplier(stats.TypeCounter, ops.Load),
		}))
		_, regErr := t.registry.Register(tr.node, "get", tr.get, tagLatency)
		err = multierr.Append(err, regErr)
	}
	_, regErr := t.registry.Register(t.pool, "wait", t.poolWait, tagLatency)
	err = multierr.Append(err, regErr)

	tb := stats.NewTableStatisticBuilder()
	for _, tr := range t.tiers {
		tb.SetStatistic(tr.name, "operations", stats.Supplier(stats.TypeCounter, tr.ops.Load))
		tb.SetStatistic(tr.name, "p99", stats.Supplier(stats.TypeGauge, func() int64 { return tr.get.Percentile(0.99) }))
	}
	_, regErr = t.registry.Register(t.store, "tiers", tb.Build())
	err = multierr.Append(err, regErr)

	if err != nil {
		return fmt.Errorf("failed to register statistics: %w", err)
	}
	return nil
}

// pick selects a tier given a uniform draw in [0, 1).
func (t *topology) pick(u float64) *tier {
	for _, tr := range t.tiers {
		if u < tr.share {
			return tr
		}
		u -= tr.share
	}
	return t.tiers[len(t.tiers)-1]
}

func (t *topology) close() error {
	return t.registry.Close()
}
