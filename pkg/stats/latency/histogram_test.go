// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of Tetragon

package latency

import (
	"fmt"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/cilium/statgraph/pkg/metrics/errormetrics"
)

const sec = int64(time.Second)

type sample struct {
	ts, value int64
}

// window keeps the samples of a trailing window to check the histogram
// against.
type window struct {
	width   int64
	samples []sample
}

func (w *window) add(s sample) {
	w.samples = append(w.samples, s)
}

func (w *window) live(now int64) []sample {
	start := now - w.width
	i := 0
	for i < len(w.samples) && w.samples[i].ts <= start {
		i++
	}
	w.samples = w.samples[i:]
	return w.samples
}

func extrema(samples []sample) (lo, hi int64) {
	lo, hi = math.MaxInt64, math.MinInt64
	for _, s := range samples {
		lo = min(lo, s.value)
		hi = max(hi, s.value)
	}
	return
}

func expLatency(r *rand.Rand, mean time.Duration) int64 {
	return int64(r.ExpFloat64() * float64(mean))
}

func TestEmptyHistogram(t *testing.T) {
	h := MustNewHistogram(20, 0.7, time.Minute, 0.01)

	assert.Zero(t, h.Count(0))
	assert.Zero(t, h.Minimum(0))
	assert.Zero(t, h.Maximum(0))
	assert.Zero(t, h.Percentile(0, 0.5))
	assert.Empty(t, h.Buckets(0))
	assert.Zero(t, h.Len())
	assert.Equal(t, "Histogram[buckets=20 phi=0.7 window=1m0s]{}", h.String())
}

func TestInvalidConfig(t *testing.T) {
	for _, tc := range []struct {
		buckets int
		phi     float64
		window  time.Duration
		epsilon float64
	}{
		{1, 0.7, time.Minute, 0.01},
		{20, 0, time.Minute, 0.01},
		{20, -1, time.Minute, 0.01},
		{20, math.NaN(), time.Minute, 0.01},
		{20, math.Inf(1), time.Minute, 0.01},
		{20, 0.7, 0, 0.01},
		{20, 0.7, time.Minute, 0},
		{20, 0.7, time.Minute, 1.5},
	} {
		_, err := NewHistogram(tc.buckets, tc.phi, tc.window, tc.epsilon)
		assert.ErrorIs(t, err, ErrInvalidConfig, "%+v", tc)
	}
	assert.Panics(t, func() { MustNewHistogram(0, 0.7, time.Minute, 0.01) })
}

func TestTargets(t *testing.T) {
	for _, phi := range []float64{0.3, 0.7, 2, 1000} {
		tg := targets(20, phi)
		sum := 0.0
		for i := range tg {
			sum += tg[i]
			assert.InDelta(t, tg[i], tg[len(tg)-1-i], 1e-12, "targets are symmetric")
		}
		assert.InDelta(t, 1.0, sum, 1e-9)
		assert.Less(t, tg[0], tg[9])
	}
	// a large phi tends to a uniform profile
	tg := targets(20, 1000)
	assert.Less(t, tg[9]/tg[0], 1.01)
	// a small phi starves the tails
	tg = targets(20, 0.3)
	assert.Greater(t, tg[9]/tg[0], 1000.0)
}

// One sample per second for 90 minutes into a 10 minute window.
func TestNinetyMinutesAtOnePerSecond(t *testing.T) {
	h := MustNewHistogram(20, 0.7, 10*time.Minute, 0.01)
	r := rand.New(rand.NewSource(1))
	w := &window{width: int64(10 * time.Minute)}

	var now int64
	for i := int64(0); i < 90*60; i++ {
		now = i * sec
		v := expLatency(r, 100*time.Millisecond)
		h.Event(now, v)
		w.add(sample{now, v})
	}

	live := w.live(now)
	require.Len(t, live, 600)
	lo, hi := extrema(live)

	assert.InEpsilon(t, 600, h.Count(now), 0.01)
	assert.GreaterOrEqual(t, h.Maximum(now), hi)
	assert.LessOrEqual(t, h.Minimum(now), lo)
	assert.LessOrEqual(t, h.Len(), 20)
}

func TestExtremaExactWithoutExpiry(t *testing.T) {
	h := MustNewHistogram(20, 0.7, time.Hour, 0.01)
	r := rand.New(rand.NewSource(2))

	lo, hi := int64(math.MaxInt64), int64(math.MinInt64)
	var now int64
	for i := 0; i < 1000; i++ {
		now = int64(i) * 100 * int64(time.Millisecond)
		v := r.Int63n(1_000_000)
		lo, hi = min(lo, v), max(hi, v)
		h.Event(now, v)
	}

	assert.Equal(t, lo, h.Minimum(now))
	assert.Equal(t, hi, h.Maximum(now))
	assert.InDelta(t, 1000, h.Count(now), 1e-6)
	assert.Equal(t, lo, h.Percentile(now, 0))
	assert.Equal(t, hi, h.Percentile(now, 1))
}

func TestSingleValue(t *testing.T) {
	h := MustNewHistogram(20, 0.7, time.Minute, 0.01)
	for i := int64(0); i < 100; i++ {
		h.Event(i*int64(time.Millisecond), 42)
	}
	now := 99 * int64(time.Millisecond)

	assert.Equal(t, 1, h.Len(), "a point bar cannot be split")
	assert.Equal(t, int64(42), h.Minimum(now))
	assert.Equal(t, int64(42), h.Maximum(now))
	assert.Equal(t, int64(42), h.Percentile(now, 0.5))
	assert.InDelta(t, 100, h.Count(now), 1e-9)
	assert.Equal(t, []Bucket{{Low: 42, High: 42, Weight: 100, Count: 100}}, h.Buckets(now))
}

func TestBucketsPartition(t *testing.T) {
	h := MustNewHistogram(10, 0.7, time.Minute, 0.01)
	r := rand.New(rand.NewSource(3))
	var now int64
	for i := 0; i < 20_000; i++ {
		now = int64(i) * int64(10*time.Millisecond)
		h.Event(now, expLatency(r, 10*time.Millisecond))
	}

	buckets := h.Buckets(now)
	require.NotEmpty(t, buckets)
	assert.LessOrEqual(t, len(buckets), 10)
	sum := 0.0
	for i, b := range buckets {
		assert.LessOrEqual(t, b.Low, b.High)
		assert.Positive(t, b.Weight)
		if i > 0 {
			assert.Greater(t, b.Low, buckets[i-1].High, "buckets are ordered and disjoint")
		}
		sum += b.Weight
	}
	assert.InDelta(t, h.Count(now), sum, 1e-6)
}

func TestPercentileMonotone(t *testing.T) {
	h := MustNewHistogram(20, 0.7, time.Minute, 0.01)
	r := rand.New(rand.NewSource(4))
	var now int64
	for i := 0; i < 5000; i++ {
		now = int64(i) * int64(20*time.Millisecond)
		h.Event(now, expLatency(r, time.Millisecond))
	}

	lo, hi := h.Minimum(now), h.Maximum(now)
	prev := int64(math.MinInt64)
	for p := -0.1; p <= 1.1; p += 0.01 {
		v := h.Percentile(now, p)
		assert.GreaterOrEqual(t, v, prev, "p=%v", p)
		assert.GreaterOrEqual(t, v, lo)
		assert.LessOrEqual(t, v, hi)
		prev = v
	}
	ps := h.Percentiles(now, 0.5, 0.9, 0.99)
	assert.Equal(t, []int64{h.Percentile(now, 0.5), h.Percentile(now, 0.9), h.Percentile(now, 0.99)}, ps)
}

func TestLateEvents(t *testing.T) {
	h := MustNewHistogram(20, 0.7, time.Minute, 0.01)
	for i := int64(0); i <= 120; i++ {
		h.Event(i*sec, 1000+i)
	}
	now := 120 * sec
	before := h.Count(now)
	dropped := testutil.ToFloat64(errormetrics.GetErrorTotal(errormetrics.HistogramLateEvent))

	// long gone
	h.Event(10*sec, 5)
	assert.Equal(t, before, h.Count(now))
	assert.Greater(t, h.Minimum(now), int64(5))
	assert.Equal(t, dropped+1, testutil.ToFloat64(errormetrics.GetErrorTotal(errormetrics.HistogramLateEvent)))

	// late but still inside the window
	h.Event(100*sec, 7)
	assert.InDelta(t, before+1, h.Count(now), 1e-9)
	assert.Equal(t, int64(7), h.Minimum(now))
}

func TestExpiryWithoutEvents(t *testing.T) {
	h := MustNewHistogram(20, 0.7, time.Minute, 0.01)
	for i := int64(0); i < 60; i++ {
		h.Event(i*sec, 100)
	}
	now := 59 * sec
	assert.InDelta(t, 60, h.Count(now), 1e-9)

	later := now + 2*int64(time.Minute)
	assert.Zero(t, h.Count(later))
	assert.Zero(t, h.Minimum(later))
	assert.Zero(t, h.Maximum(later))
	assert.Empty(t, h.Buckets(later))

	// a jump larger than the ring drops every bar
	h.Event(later, 7)
	assert.Equal(t, 1, h.Len())
	assert.InDelta(t, 1, h.Count(later), 1e-9)
	assert.Equal(t, int64(7), h.Maximum(later))
}

func TestQueryBeforeLatest(t *testing.T) {
	h := MustNewHistogram(20, 0.7, time.Minute, 0.01)
	for i := int64(0); i < 120; i++ {
		h.Event(i*sec, 100+i)
	}

	// slots after now are outside the window ending at now
	now := 60 * sec
	assert.InDelta(t, 2, h.Count(now), 1e-9)
	assert.GreaterOrEqual(t, h.Maximum(now), int64(160))
	assert.Less(t, h.Maximum(now), int64(219))
	assert.LessOrEqual(t, h.Percentile(now, 1), h.Maximum(now))

	assert.GreaterOrEqual(t, h.Maximum(119*sec), int64(219))
	assert.Greater(t, h.Count(119*sec), h.Count(now))
}

func TestGrid(t *testing.T) {
	for _, phi := range []float64{0.3, 0.7, 2.0} {
		for _, buckets := range []int{10, 20, 50} {
			for _, win := range []time.Duration{time.Minute, 10 * time.Minute, 2 * time.Hour} {
				t.Run(fmt.Sprintf("phi=%v/buckets=%d/window=%s", phi, buckets, win), func(t *testing.T) {
					testGrid(t, phi, buckets, win)
				})
			}
		}
	}
}

// testGrid replays about 5 events per second for two and a half windows and
// checks the histogram against the exact window every half window.
func testGrid(t *testing.T, phi float64, buckets int, win time.Duration) {
	h := MustNewHistogram(buckets, phi, win, 0.01)
	r := rand.New(rand.NewSource(int64(buckets) + int64(win)))
	w := &window{width: int64(win)}

	end := int64(win) * 5 / 2
	next := int64(win)
	var now int64
	for now < end {
		now += int64(r.ExpFloat64() * float64(200*time.Millisecond))
		v := expLatency(r, 10*time.Millisecond)
		h.Event(now, v)
		w.add(sample{now, v})

		if now < next {
			continue
		}
		next += int64(win) / 2

		live := w.live(now)
		require.NotEmpty(t, live)
		lo, hi := extrema(live)
		assert.GreaterOrEqual(t, h.Maximum(now), hi)
		assert.LessOrEqual(t, h.Minimum(now), lo)
		assert.LessOrEqual(t, h.Len(), buckets)

		// only the slot straddling the window start is estimated
		oldest := h.oldest(now)
		straddling := 0
		for _, s := range live {
			if h.slotOf(s.ts) == oldest {
				straddling++
			}
		}
		assert.InDelta(t, float64(len(live)), h.Count(now), float64(straddling)+1e-6)
		assert.InEpsilon(t, float64(len(live)), h.Count(now), 0.05)
	}
}

func TestConcurrentEvents(t *testing.T) {
	h := MustNewHistogram(20, 0.7, time.Hour, 0.01)
	base := int64(time.Hour)

	var g errgroup.Group
	for p := 0; p < 8; p++ {
		p := p
		g.Go(func() error {
			r := rand.New(rand.NewSource(int64(p)))
			for i := 0; i < 1000; i++ {
				h.Event(base+int64(i), r.Int63n(1_000_000))
			}
			return nil
		})
	}
	for q := 0; q < 2; q++ {
		g.Go(func() error {
			for i := 0; i < 1000; i++ {
				if h.Percentile(base+1000, 0.9) > h.Maximum(base+1000) {
					return fmt.Errorf("percentile above maximum")
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.InDelta(t, 8000, h.Count(base+1000), 1e-6)
	assert.LessOrEqual(t, h.Len(), 20)
}
