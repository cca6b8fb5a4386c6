// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of Tetragon

package latency

import (
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/cilium/statgraph/pkg/stats"
)

// Options configures a latency Statistic. Zero fields take the value from
// DefaultOptions.
type Options struct {
	Buckets int
	Phi     float64
	Window  time.Duration
	Epsilon float64
	// Percentiles reported by Value, as fractions in [0, 1].
	Percentiles []float64
	// Clock returns the current time in nanoseconds.
	Clock func() int64
}

func DefaultOptions() Options {
	return Options{
		Buckets:     20,
		Phi:         0.7,
		Window:      time.Minute,
		Epsilon:     0.01,
		Percentiles: []float64{0.5, 0.9, 0.99},
		Clock:       WallClock,
	}
}

// WallClock returns the wall clock time in nanoseconds.
func WallClock() int64 {
	return time.Now().UnixNano()
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Buckets == 0 {
		o.Buckets = d.Buckets
	}
	if o.Phi == 0 {
		o.Phi = d.Phi
	}
	if o.Window == 0 {
		o.Window = d.Window
	}
	if o.Epsilon == 0 {
		o.Epsilon = d.Epsilon
	}
	if o.Percentiles == nil {
		o.Percentiles = d.Percentiles
	}
	if o.Clock == nil {
		o.Clock = d.Clock
	}
	return o
}

// Snapshot is the value of a latency statistic at one point in time.
type Snapshot struct {
	Timestamp   int64             `json:"timestamp" yaml:"timestamp"`
	Count       float64           `json:"count" yaml:"count"`
	Minimum     int64             `json:"minimum" yaml:"minimum"`
	Maximum     int64             `json:"maximum" yaml:"maximum"`
	Percentiles map[float64]int64 `json:"percentiles" yaml:"percentiles"`
	Buckets     []Bucket          `json:"buckets" yaml:"buckets"`
}

// Statistic ingests one event per observed operation and exposes the
// windowed latency distribution as a histogram statistic.
type Statistic struct {
	opts Options
	hist *Histogram
}

func New(opts Options) (*Statistic, error) {
	opts = opts.withDefaults()
	for _, p := range opts.Percentiles {
		if p < 0 || p > 1 {
			return nil, fmt.Errorf("%w: percentile %v outside [0, 1]", ErrInvalidConfig, p)
		}
	}
	h, err := NewHistogram(opts.Buckets, opts.Phi, opts.Window, opts.Epsilon)
	if err != nil {
		return nil, err
	}
	opts.Percentiles = slices.Clone(opts.Percentiles)
	slices.Sort(opts.Percentiles)
	return &Statistic{opts: opts, hist: h}, nil
}

func MustNew(opts Options) *Statistic {
	s, err := New(opts)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *Statistic) Options() Options {
	o := s.opts
	o.Percentiles = slices.Clone(o.Percentiles)
	return o
}

// Event records an operation that took value nanoseconds and completed at
// ts.
func (s *Statistic) Event(ts, value int64) {
	s.hist.Event(ts, value)
}

// Observe records an operation that took d and just completed.
func (s *Statistic) Observe(d time.Duration) {
	s.hist.Event(s.opts.Clock(), int64(d))
}

// Since records an operation that started at start and just completed.
func (s *Statistic) Since(start time.Time) {
	s.Observe(time.Since(start))
}

func (s *Statistic) Type() stats.StatisticType {
	return stats.TypeHistogram
}

func (s *Statistic) Value() Snapshot {
	now := s.opts.Clock()
	h := s.hist
	h.mu.RLock()
	defer h.mu.RUnlock()

	lw, total := h.live(now)
	snap := Snapshot{
		Timestamp:   now,
		Count:       total,
		Percentiles: make(map[float64]int64, len(s.opts.Percentiles)),
		Buckets:     h.snapshot(lw),
	}
	if n := len(snap.Buckets); n > 0 {
		snap.Minimum = snap.Buckets[0].Low
		snap.Maximum = snap.Buckets[n-1].High
	}
	for _, p := range s.opts.Percentiles {
		snap.Percentiles[p] = h.percentile(lw, total, p)
	}
	return snap
}

func (s *Statistic) AnyValue() any {
	return s.Value()
}

func (s *Statistic) Count() float64 {
	return s.hist.Count(s.opts.Clock())
}

func (s *Statistic) Minimum() int64 {
	return s.hist.Minimum(s.opts.Clock())
}

func (s *Statistic) Maximum() int64 {
	return s.hist.Maximum(s.opts.Clock())
}

func (s *Statistic) Percentile(p float64) int64 {
	return s.hist.Percentile(s.opts.Clock(), p)
}

func (s *Statistic) Buckets() []Bucket {
	return s.hist.Buckets(s.opts.Clock())
}

func (s *Statistic) String() string {
	return s.hist.String()
}

// PercentileLabel names percentile p the way tables and metrics do: 0.99
// becomes "p99".
func PercentileLabel(p float64) string {
	return "p" + strconv.FormatFloat(p*100, 'f', -1, 64)
}

// Table returns a one-row table statistic exposing the count, extrema and
// configured percentiles of s as live columns.
func (s *Statistic) Table(row string) *stats.TableStatistic {
	b := stats.NewTableStatisticBuilder().
		SetStatistic(row, "count", stats.Supplier(stats.TypeCounter, s.Count)).
		SetStatistic(row, "minimum", stats.Supplier(stats.TypeGauge, s.Minimum)).
		SetStatistic(row, "maximum", stats.Supplier(stats.TypeGauge, s.Maximum))
	for _, p := range s.opts.Percentiles {
		p := p
		b.SetStatistic(row, PercentileLabel(p), stats.Supplier(stats.TypeGauge, func() int64 {
			return s.Percentile(p)
		}))
	}
	return b.Build()
}

var _ stats.ValueStatistic[Snapshot] = (*Statistic)(nil)
