// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of Tetragon

package option

import (
	"time"
)

// Config contains all the configuration used by statgraph.
var Config = config{
	LogOpts: make(map[string]string),
}

type config struct {
	Debug   bool
	LogOpts map[string]string

	HistogramBuckets int
	HistogramPhi     float64
	HistogramWindow  time.Duration
	HistogramEpsilon float64

	MetricsServer  string
	QueryCacheSize int
	ReportInterval time.Duration

	OpsPerSec   float64
	Duration    time.Duration
	MeanLatency time.Duration
	Producers   int
	Seed        int64
	Realtime    bool
	Output      string
}
