// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of Tetragon

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Group is a sub-registry of the root prometheus.Registry. It collects
// everything registered into it and runs the registered initializers when
// the group itself is initialized.
type Group interface {
	prometheus.Registerer
	prometheus.Collector
	Init()
	ExtendInit(func())
}

// initializer is implemented by collectors that need work done once before
// the first scrape.
type initializer interface {
	Init()
}

type metricsGroup struct {
	registry *prometheus.Registry
	initFunc func()
}

// NewMetricsGroup creates a new Group. The underlying registry is pedantic:
// collected metrics are checked against their descriptors.
func NewMetricsGroup() Group {
	return &metricsGroup{
		registry: prometheus.NewPedanticRegistry(),
		initFunc: func() {},
	}
}

func (r *metricsGroup) Describe(ch chan<- *prometheus.Desc) {
	r.registry.Describe(ch)
}

func (r *metricsGroup) Collect(ch chan<- prometheus.Metric) {
	r.registry.Collect(ch)
}

// Register wraps the Register method of the underlying registry and extends
// Init with the collector's own initialization, if any.
func (r *metricsGroup) Register(c prometheus.Collector) error {
	if err := r.registry.Register(c); err != nil {
		return err
	}
	if cc, ok := c.(initializer); ok {
		r.ExtendInit(cc.Init)
	}
	return nil
}

func (r *metricsGroup) MustRegister(cs ...prometheus.Collector) {
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			panic(err)
		}
	}
}

func (r *metricsGroup) Unregister(c prometheus.Collector) bool {
	return r.registry.Unregister(c)
}

func (r *metricsGroup) Init() {
	if r.initFunc != nil {
		r.initFunc()
	}
}

func (r *metricsGroup) ExtendInit(init func()) {
	if init == nil {
		return
	}
	old := r.initFunc
	r.initFunc = func() {
		old()
		init()
	}
}
