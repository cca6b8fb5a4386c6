// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of Tetragon

package simulate

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/cilium/statgraph/pkg/ctxmanager"
	"github.com/cilium/statgraph/pkg/logger"
	"github.com/cilium/statgraph/pkg/logger/logfields"
	"github.com/cilium/statgraph/pkg/metrics"
	"github.com/cilium/statgraph/pkg/option"
	"github.com/cilium/statgraph/pkg/timer"
)

var log = logger.Subsys("simulate")

func New() *cobra.Command {
	return &cobra.Command{
		Use:   "simulate",
		Short: "Run a synthetic workload against a tiered store and report its latencies",
		Long: `Builds a store with a hot and a cold tier sharing one IO pool, drives it
with concurrent producers and prints the windowed latency of every operation
type at the end of the run.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), cmd.OutOrStdout())
		},
	}
}

func run(ctx context.Context, out io.Writer) error {
	c := &option.Config
	m, err := ctxmanager.New(c.QueryCacheSize)
	if err != nil {
		return err
	}

	opts := c.LatencyOptions()
	clock := &simClock{}
	if !c.Realtime {
		opts.Clock = clock.Now
	}
	topo, err := newTopology(m, opts, c.MeanLatency)
	if err != nil {
		return err
	}
	defer func() {
		if err := topo.close(); err != nil {
			log.WithError(err).Warn("Failed to close statistics")
		}
	}()

	if c.MetricsServer != "" {
		group := metrics.NewMetricsGroup()
		group.MustRegister(metrics.NewGraphCollector(m, nil))
		metrics.InitAllMetrics(metrics.GetRegistry(), group)
		go func() {
			if err := metrics.EnableMetrics(ctx, c.MetricsServer); err != nil {
				log.WithError(err).Error("Metrics server failed")
			}
		}()
	}

	w := &workload{
		topo:      topo,
		clock:     clock,
		opsPerSec: c.OpsPerSec,
		duration:  c.Duration,
		producers: c.Producers,
		seed:      c.Seed,
		realtime:  c.Realtime,
	}

	report := func() {
		if err := writeReport(out, latencyReport(m), c.Output); err != nil {
			log.WithError(err).Warn("Failed to write report")
		}
	}
	if c.ReportInterval > 0 {
		if c.Realtime {
			t := timer.NewPeriodicTimer("report", report)
			t.Start(c.ReportInterval)
			defer t.Stop()
		} else {
			w.onStep = reportEvery(int64(c.ReportInterval), report)
		}
	}

	log.WithFields(logrus.Fields{
		"producers":      c.Producers,
		"duration":       c.Duration,
		"realtime":       c.Realtime,
		logfields.Window: opts.Window,
	}).Info("Starting workload")
	start := time.Now()
	if err := w.run(ctx); err != nil {
		return fmt.Errorf("workload failed: %w", err)
	}
	log.WithField("elapsed", time.Since(start)).Info("Workload done")

	report()
	return nil
}

// reportEvery calls report whenever simulated time crosses a multiple of
// interval.
func reportEvery(interval int64, report func()) func(now int64) {
	next := interval
	return func(now int64) {
		if now < next {
			return
		}
		report()
		for next <= now {
			next += interval
		}
	}
}
