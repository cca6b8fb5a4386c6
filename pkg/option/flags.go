// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of Tetragon

package option

import (
	"fmt"
	"slices"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/multierr"

	"github.com/cilium/statgraph/pkg/ctxmanager"
	"github.com/cilium/statgraph/pkg/logger"
	"github.com/cilium/statgraph/pkg/stats/latency"
)

const (
	KeyDebug     = "debug"
	KeyLogLevel  = "log-level"
	KeyLogFormat = "log-format"

	KeyHistogramBuckets = "histogram-buckets"
	KeyHistogramPhi     = "histogram-phi"
	KeyHistogramWindow  = "histogram-window"
	KeyHistogramEpsilon = "histogram-epsilon"

	KeyMetricsServer  = "metrics-server"
	KeyQueryCacheSize = "query-cache-size"
	KeyReportInterval = "report-interval"

	KeyOpsPerSec   = "ops-per-sec"
	KeyDuration    = "duration"
	KeyMeanLatency = "mean-latency"
	KeyProducers   = "producers"
	KeySeed        = "seed"
	KeyRealtime    = "realtime"
	KeyOutput      = "output"
)

// EnvPrefix is prepended to every option when it is read from the
// environment: --histogram-window becomes STATGRAPH_HISTOGRAM_WINDOW.
const EnvPrefix = "STATGRAPH"

const (
	OutputText = "text"
	OutputYAML = "yaml"
)

var outputs = []string{OutputText, OutputYAML}

func AddFlags(flags *pflag.FlagSet) {
	def := latency.DefaultOptions()

	flags.BoolP(KeyDebug, "d", false, "Enable debug messages. Equivalent to '--log-level=debug'")
	flags.String(KeyLogLevel, "info", "Set log level")
	flags.String(KeyLogFormat, "text", "Set log format")

	flags.Int(KeyHistogramBuckets, def.Buckets, "Number of bars kept by each latency histogram")
	flags.Float64(KeyHistogramPhi, def.Phi, "Bias exponent of latency histograms. Smaller values favour resolution at the tails")
	flags.Duration(KeyHistogramWindow, def.Window, "Trailing window of latency histograms")
	flags.Float64(KeyHistogramEpsilon, def.Epsilon, "Expiry granularity of latency histograms, as a fraction of the window")

	flags.String(KeyMetricsServer, "", "Metrics server address (e.g. ':2112'). Disabled by default")
	flags.Int(KeyQueryCacheSize, ctxmanager.DefaultCacheSize, "Number of query results cached by the context manager. 0 disables the cache")
	flags.Duration(KeyReportInterval, 0, "Interval at which statistics are reported while the workload runs. 0 disables periodic reports")

	flags.Float64(KeyOpsPerSec, 1000, "Operations per second generated by each producer, in simulated time")
	flags.Duration(KeyDuration, 10*time.Minute, "Simulated duration of the workload")
	flags.Duration(KeyMeanLatency, 5*time.Millisecond, "Mean latency of the fastest tier")
	flags.Int(KeyProducers, 4, "Number of concurrent producers")
	flags.Int64(KeySeed, 1, "Seed of the workload generator")
	flags.Bool(KeyRealtime, false, "Pace producers with the wall clock instead of replaying simulated time")
	flags.StringP(KeyOutput, "o", OutputText, fmt.Sprintf("Output format, one of %v", outputs))
}

// ReadAndSetFlags copies the options resolved by viper (flags, environment)
// into Config.
func ReadAndSetFlags() error {
	Config.Debug = viper.GetBool(KeyDebug)
	logger.PopulateLogOpts(Config.LogOpts, viper.GetString(KeyLogLevel), viper.GetString(KeyLogFormat))

	Config.HistogramBuckets = viper.GetInt(KeyHistogramBuckets)
	Config.HistogramPhi = viper.GetFloat64(KeyHistogramPhi)
	Config.HistogramWindow = viper.GetDuration(KeyHistogramWindow)
	Config.HistogramEpsilon = viper.GetFloat64(KeyHistogramEpsilon)

	Config.MetricsServer = viper.GetString(KeyMetricsServer)
	Config.QueryCacheSize = viper.GetInt(KeyQueryCacheSize)
	Config.ReportInterval = viper.GetDuration(KeyReportInterval)

	Config.OpsPerSec = viper.GetFloat64(KeyOpsPerSec)
	Config.Duration = viper.GetDuration(KeyDuration)
	Config.MeanLatency = viper.GetDuration(KeyMeanLatency)
	Config.Producers = viper.GetInt(KeyProducers)
	Config.Seed = viper.GetInt64(KeySeed)
	Config.Realtime = viper.GetBool(KeyRealtime)
	Config.Output = viper.GetString(KeyOutput)

	return Config.Validate()
}

// maxOpsPerSec is one operation per nanosecond, the resolution of simulated
// time.
const maxOpsPerSec = 1e9

// Validate reports every invalid option at once.
func (c *config) Validate() error {
	var err error
	if c.HistogramBuckets < 2 {
		err = multierr.Append(err, fmt.Errorf("%s must be at least 2, got %d", KeyHistogramBuckets, c.HistogramBuckets))
	}
	if !(c.HistogramPhi > 0) {
		err = multierr.Append(err, fmt.Errorf("%s must be positive, got %v", KeyHistogramPhi, c.HistogramPhi))
	}
	if c.HistogramWindow <= 0 {
		err = multierr.Append(err, fmt.Errorf("%s must be positive, got %s", KeyHistogramWindow, c.HistogramWindow))
	}
	if !(c.HistogramEpsilon > 0 && c.HistogramEpsilon <= 1) {
		err = multierr.Append(err, fmt.Errorf("%s must be in (0, 1], got %v", KeyHistogramEpsilon, c.HistogramEpsilon))
	}
	if c.QueryCacheSize < 0 {
		err = multierr.Append(err, fmt.Errorf("%s must not be negative, got %d", KeyQueryCacheSize, c.QueryCacheSize))
	}
	if c.ReportInterval < 0 {
		err = multierr.Append(err, fmt.Errorf("%s must not be negative, got %s", KeyReportInterval, c.ReportInterval))
	}
	if !(c.OpsPerSec > 0 && c.OpsPerSec <= maxOpsPerSec) {
		err = multierr.Append(err, fmt.Errorf("%s must be in (0, %g], got %v", KeyOpsPerSec, maxOpsPerSec, c.OpsPerSec))
	}
	if c.Duration <= 0 {
		err = multierr.Append(err, fmt.Errorf("%s must be positive, got %s", KeyDuration, c.Duration))
	}
	if c.MeanLatency <= 0 {
		err = multierr.Append(err, fmt.Errorf("%s must be positive, got %s", KeyMeanLatency, c.MeanLatency))
	}
	if c.Producers < 1 {
		err = multierr.Append(err, fmt.Errorf("%s must be at least 1, got %d", KeyProducers, c.Producers))
	}
	if !slices.Contains(outputs, c.Output) {
		err = multierr.Append(err, fmt.Errorf("%s must be one of %v, got %q", KeyOutput, outputs, c.Output))
	}
	return err
}

// LatencyOptions returns the latency statistic options matching the
// configured histogram.
func (c *config) LatencyOptions() latency.Options {
	o := latency.DefaultOptions()
	o.Buckets = c.HistogramBuckets
	o.Phi = c.HistogramPhi
	o.Window = c.HistogramWindow
	o.Epsilon = c.HistogramEpsilon
	return o
}
