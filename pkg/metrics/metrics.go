// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of Tetragon

package metrics

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cilium/statgraph/pkg/logger"
	"github.com/cilium/statgraph/pkg/metrics/errormetrics"
	"github.com/cilium/statgraph/pkg/version"
)

var (
	registry     *prometheus.Registry
	registryOnce sync.Once
)

// GetRegistry returns the process-wide registry.
func GetRegistry() *prometheus.Registry {
	registryOnce.Do(func() {
		registry = prometheus.NewRegistry()
	})
	return registry
}

// InitAllMetrics registers the runtime collectors, the build information and
// every group passed in.
func InitAllMetrics(registry *prometheus.Registry, groups ...Group) {
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	version.InitMetrics(registry)
	errormetrics.InitMetrics(registry)
	for _, g := range groups {
		g.Init()
		registry.MustRegister(g)
	}
}

// Handler serves the metrics of reg in the exposition format.
func Handler(reg *prometheus.Registry) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	return mux
}

// EnableMetrics serves the process-wide registry on address until ctx is
// done.
func EnableMetrics(ctx context.Context, address string) error {
	reg := GetRegistry()
	srv := &http.Server{
		Addr:              address,
		Handler:           Handler(reg),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.GetLogger().WithField("addr", address).Info("Starting metrics server")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
