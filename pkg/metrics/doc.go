// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of Tetragon

// The metrics package exports the statistics of a context graph as
// [prometheus](https://pkg.go.dev/github.com/prometheus/client_golang/prometheus)
// metrics.
//
// `Group` interface and `metricsGroup` struct implementing it are wrappers
// around `prometheus.Registry` intended to define sub-registries of the root
// registry. A group is initialized once, when it is added to the root
// registry by `InitAllMetrics`.
//
// `GraphCollector` is a custom collector. Nothing is stored on the prometheus
// side: every scrape runs a query through the context manager and turns the
// statistic nodes it selects into const metrics. Scalar statistics become
// gauges, latency statistics become a summary plus minimum and maximum
// gauges, and table statistics become one gauge per cell. Every series
// carries the node ID, so two statistics with the same owner and name never
// collide.
//
// Error counters live in the errormetrics subpackage, which the statistics
// packages import directly.
package metrics
