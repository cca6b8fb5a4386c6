// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of Tetragon

package latency

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/cilium/statgraph/pkg/lock"
	"github.com/cilium/statgraph/pkg/metrics/errormetrics"
)

var ErrInvalidConfig = errors.New("invalid histogram configuration")

const (
	// unset marks a ring position that holds no time slot.
	unset = math.MinInt64
	// minWeight keeps repeatedly halved weights from underflowing to zero,
	// which would make a live sample invisible to Minimum and Maximum.
	minWeight = 1e-300
)

// Bucket is one bar of the histogram as seen at query time. Both bounds are
// inclusive.
type Bucket struct {
	Low    int64   `json:"low" yaml:"low"`
	High   int64   `json:"high" yaml:"high"`
	Weight float64 `json:"weight" yaml:"weight"`
	// Count is the number of raw samples routed into the bar since it was
	// created, expired ones included.
	Count int64 `json:"count" yaml:"count"`
}

type bar struct {
	low, high int64
	count     int64
	total     float64
	// weights is indexed by ring position, see Histogram.tags.
	weights []float64
}

func (b *bar) zero(pos int) {
	b.total -= b.weights[pos]
	b.weights[pos] = 0
}

func (b *bar) recount() {
	b.total = 0
	for _, w := range b.weights {
		b.total += w
	}
}

// Histogram is a bar-splitting biased histogram over a trailing time window.
//
// Values are partitioned into at most B contiguous bars. A bar that carries
// more than its share of the total weight is split at its midpoint and the
// two cheapest neighbouring bars are merged to make room; the share of bar i
// is proportional to min(i+1, B-i)^(1/phi), so a small phi gives the tails of
// the distribution narrower bars while a large phi spreads resolution evenly.
//
// Time is cut into slots of window*epsilon. Each bar keeps one weight per
// slot in a ring shared by all bars; when a slot leaves the window its
// weight is dropped from every bar, and bars left without weight disappear.
//
// Timestamps are nanoseconds. All query methods take the time at which they
// are evaluated, which makes the histogram independent of any clock.
type Histogram struct {
	mu lock.RWMutex

	buckets int
	phi     float64
	window  int64
	epsilon float64

	slotWidth int64
	targets   []float64

	// tags[p] is the slot held by ring position p.
	tags    []int64
	started bool
	latest  int64
	head    int64
	tail    int64

	bars []*bar
}

// NewHistogram returns a histogram keeping at most buckets bars over window.
// epsilon is the expiry granularity as a fraction of the window.
func NewHistogram(buckets int, phi float64, window time.Duration, epsilon float64) (*Histogram, error) {
	switch {
	case buckets < 2:
		return nil, fmt.Errorf("%w: bucket count %d, need at least 2", ErrInvalidConfig, buckets)
	case !(phi > 0) || math.IsInf(phi, 0):
		return nil, fmt.Errorf("%w: phi %v must be positive", ErrInvalidConfig, phi)
	case window <= 0:
		return nil, fmt.Errorf("%w: window %s must be positive", ErrInvalidConfig, window)
	case !(epsilon > 0 && epsilon <= 1):
		return nil, fmt.Errorf("%w: epsilon %v must be in (0, 1]", ErrInvalidConfig, epsilon)
	}

	w := int64(window)
	perWindow := int64(math.Ceil(1 / epsilon))
	slotWidth := ceilDiv(w, perWindow)
	ring := int(ceilDiv(w, slotWidth)) + 1

	h := &Histogram{
		buckets:   buckets,
		phi:       phi,
		window:    w,
		epsilon:   epsilon,
		slotWidth: slotWidth,
		targets:   targets(buckets, phi),
		tags:      make([]int64, ring),
	}
	for i := range h.tags {
		h.tags[i] = unset
	}
	return h, nil
}

func MustNewHistogram(buckets int, phi float64, window time.Duration, epsilon float64) *Histogram {
	h, err := NewHistogram(buckets, phi, window, epsilon)
	if err != nil {
		panic(err)
	}
	return h
}

// targets returns the normalised weight share of each of n bars.
func targets(n int, phi float64) []float64 {
	t := make([]float64, n)
	sum := 0.0
	for i := range t {
		d := float64(min(i+1, n-i))
		t[i] = math.Pow(d, 1/phi)
		sum += t[i]
	}
	for i := range t {
		t[i] /= sum
	}
	return t
}

func (h *Histogram) BucketCount() int      { return h.buckets }
func (h *Histogram) Phi() float64          { return h.phi }
func (h *Histogram) Window() time.Duration { return time.Duration(h.window) }
func (h *Histogram) Epsilon() float64      { return h.epsilon }

// Event records value observed at ts. Events may arrive out of order; those
// whose slot has already left the window are dropped.
func (h *Histogram) Event(ts, value int64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	slot := h.slotOf(ts)
	if !h.started {
		h.started = true
		h.latest = ts
		h.head = slot
		h.tail = h.oldest(ts)
		h.tags[h.pos(slot)] = slot
	} else if ts > h.latest {
		h.latest = ts
		zeroed := h.advance(slot)
		if h.expire(h.oldest(ts)) || zeroed {
			h.prune()
		}
	}
	if slot < h.tail {
		errormetrics.ErrorTotalInc(errormetrics.HistogramLateEvent)
		return
	}

	p := h.pos(slot)
	if h.tags[p] != slot {
		// a late event for a slot that no event has opened yet
		if h.tags[p] != unset {
			h.zero(p)
		}
		h.tags[p] = slot
	}

	i := h.route(value)
	b := h.bars[i]
	b.weights[p]++
	b.total++
	b.count++
	h.rebalance(i)
}

func (h *Histogram) slotOf(ts int64) int64 {
	return floorDiv(ts, h.slotWidth)
}

func (h *Histogram) pos(slot int64) int {
	r := int64(len(h.tags))
	return int(((slot % r) + r) % r)
}

// oldest returns the oldest slot still inside the window ending at now.
func (h *Histogram) oldest(now int64) int64 {
	return h.slotOf(now - h.window + 1)
}

func (h *Histogram) zero(p int) {
	for _, b := range h.bars {
		b.zero(p)
	}
	h.tags[p] = unset
}

// advance moves the head to slot, recycling the ring positions it passes.
func (h *Histogram) advance(slot int64) bool {
	if slot <= h.head {
		return false
	}
	zeroed := false
	if slot-h.head >= int64(len(h.tags)) {
		for p, tag := range h.tags {
			if tag != unset {
				h.zero(p)
				zeroed = true
			}
		}
	} else {
		for s := h.head + 1; s <= slot; s++ {
			p := h.pos(s)
			if h.tags[p] != unset {
				h.zero(p)
				zeroed = true
			}
		}
	}
	h.tags[h.pos(slot)] = slot
	h.head = slot
	return zeroed
}

// expire drops every slot older than oldest.
func (h *Histogram) expire(oldest int64) bool {
	if oldest <= h.tail {
		return false
	}
	zeroed := false
	if oldest-h.tail >= int64(len(h.tags)) {
		for p, tag := range h.tags {
			if tag != unset && tag < oldest {
				h.zero(p)
				zeroed = true
			}
		}
	} else {
		for s := h.tail; s < oldest; s++ {
			if p := h.pos(s); h.tags[p] == s {
				h.zero(p)
				zeroed = true
			}
		}
	}
	h.tail = oldest
	return zeroed
}

// prune drops bars that no longer hold any weight.
func (h *Histogram) prune() {
	kept := h.bars[:0]
	for _, b := range h.bars {
		b.recount()
		if b.total > 0 {
			kept = append(kept, b)
		}
	}
	for i := len(kept); i < len(h.bars); i++ {
		h.bars[i] = nil
	}
	h.bars = kept
}

func (h *Histogram) newBar(low, high int64) *bar {
	return &bar{low: low, high: high, weights: make([]float64, len(h.tags))}
}

// route returns the index of the bar value belongs to, widening a bar when
// value falls outside all of them.
func (h *Histogram) route(value int64) int {
	n := len(h.bars)
	if n == 0 {
		h.bars = append(h.bars, h.newBar(value, value))
		return 0
	}
	i := sort.Search(n, func(i int) bool { return h.bars[i].high >= value })
	switch {
	case i == n:
		i = n - 1
		h.bars[i].high = value
	case h.bars[i].low <= value:
	case i == 0:
		h.bars[0].low = value
	default:
		prev, next := h.bars[i-1], h.bars[i]
		if value-prev.high <= next.low-value {
			prev.high = value
			i--
		} else {
			next.low = value
		}
	}
	return i
}

// rebalance splits bar i when it carries more than its share.
func (h *Histogram) rebalance(i int) {
	b := h.bars[i]
	if b.high <= b.low || b.total < 2 {
		return
	}
	if len(h.bars) < h.buckets {
		h.split(i)
		return
	}

	sum := 0.0
	for _, o := range h.bars {
		sum += o.total
	}
	load := b.total / (h.targets[i] * sum)
	if load <= 2 {
		return
	}

	// the pair to merge may not involve bar i, it is the one being split
	best, bestLoad := -1, math.Inf(1)
	for j := 0; j+1 < len(h.bars); j++ {
		if j == i-1 || j == i {
			continue
		}
		l := (h.bars[j].total + h.bars[j+1].total) / (max(h.targets[j], h.targets[j+1]) * sum)
		if l < bestLoad {
			best, bestLoad = j, l
		}
	}
	if best < 0 || bestLoad >= load/2 {
		return
	}
	h.split(i)
	if best > i {
		best++
	}
	h.merge(best)
}

func half(w float64) float64 {
	if w == 0 {
		return 0
	}
	return max(w/2, minWeight)
}

// split cuts bar i at its midpoint, sharing its weight evenly.
func (h *Histogram) split(i int) {
	b := h.bars[i]
	mid := b.low + (b.high-b.low)/2
	upper := h.newBar(mid+1, b.high)
	b.high = mid
	upper.count = b.count / 2
	b.count -= upper.count
	for p, w := range b.weights {
		hw := half(w)
		b.weights[p] = hw
		upper.weights[p] = hw
	}
	b.recount()
	upper.total = b.total

	h.bars = append(h.bars, nil)
	copy(h.bars[i+2:], h.bars[i+1:])
	h.bars[i+1] = upper
}

// merge folds bar j+1 into bar j.
func (h *Histogram) merge(j int) {
	a, b := h.bars[j], h.bars[j+1]
	a.high = b.high
	a.count += b.count
	for p, w := range b.weights {
		a.weights[p] += w
	}
	a.total += b.total
	h.bars = append(h.bars[:j+1], h.bars[j+2:]...)
}

// live returns the weight of each bar inside the window ending at now. The
// oldest slot straddles the window start and is counted pro rata.
func (h *Histogram) live(now int64) ([]float64, float64) {
	lw := make([]float64, len(h.bars))
	if !h.started {
		return lw, 0
	}
	start := now - h.window + 1
	oldest, newest := h.slotOf(start), h.slotOf(now)
	frac := float64((oldest+1)*h.slotWidth-start) / float64(h.slotWidth)

	total := 0.0
	for p, tag := range h.tags {
		if tag == unset || tag < oldest || tag > newest {
			continue
		}
		f := 1.0
		if tag == oldest {
			f = frac
		}
		for i, b := range h.bars {
			if w := b.weights[p]; w > 0 {
				lw[i] += w * f
				total += w * f
			}
		}
	}
	return lw, total
}

// Count returns the approximate number of samples in the window ending at
// now.
func (h *Histogram) Count(now int64) float64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, total := h.live(now)
	return total
}

// Minimum returns a lower bound of the samples in the window ending at now,
// or 0 when the window is empty. It is exact as long as nothing expired.
func (h *Histogram) Minimum(now int64) int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	lw, _ := h.live(now)
	for i, w := range lw {
		if w > 0 {
			return h.bars[i].low
		}
	}
	return 0
}

// Maximum returns an upper bound of the samples in the window ending at now,
// or 0 when the window is empty. It is exact as long as nothing expired.
func (h *Histogram) Maximum(now int64) int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	lw, _ := h.live(now)
	for i := len(lw) - 1; i >= 0; i-- {
		if lw[i] > 0 {
			return h.bars[i].high
		}
	}
	return 0
}

// Percentile returns the upper bound of the bar in which the cumulative
// weight reaches p of the total. p <= 0 yields Minimum and p >= 1 Maximum.
func (h *Histogram) Percentile(now int64, p float64) int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	lw, total := h.live(now)
	return h.percentile(lw, total, p)
}

// percentile evaluates p against the live weights lw summing to total.
func (h *Histogram) percentile(lw []float64, total, p float64) int64 {
	first, last := -1, -1
	for i, w := range lw {
		if w > 0 {
			if first < 0 {
				first = i
			}
			last = i
		}
	}
	switch {
	case total == 0 || first < 0:
		return 0
	case p <= 0:
		return h.bars[first].low
	case p >= 1:
		return h.bars[last].high
	}
	target := p * total
	cum := 0.0
	for i := first; i <= last; i++ {
		cum += lw[i]
		if lw[i] > 0 && cum >= target {
			return h.bars[i].high
		}
	}
	return h.bars[last].high
}

// Percentiles evaluates several percentiles against one consistent state.
func (h *Histogram) Percentiles(now int64, ps ...float64) []int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	lw, total := h.live(now)
	out := make([]int64, len(ps))
	for i, p := range ps {
		out[i] = h.percentile(lw, total, p)
	}
	return out
}

// Buckets returns the bars holding weight in the window ending at now, in
// ascending order.
func (h *Histogram) Buckets(now int64) []Bucket {
	h.mu.RLock()
	defer h.mu.RUnlock()
	lw, _ := h.live(now)
	return h.snapshot(lw)
}

func (h *Histogram) snapshot(lw []float64) []Bucket {
	out := make([]Bucket, 0, len(lw))
	for i, w := range lw {
		if w > 0 {
			b := h.bars[i]
			out = append(out, Bucket{Low: b.low, High: b.high, Weight: w, Count: b.count})
		}
	}
	return out
}

// Len returns the number of bars currently held, live or not.
func (h *Histogram) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.bars)
}

func (h *Histogram) String() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var sb strings.Builder
	fmt.Fprintf(&sb, "Histogram[buckets=%d phi=%v window=%s]{", h.buckets, h.phi, time.Duration(h.window))
	lw, _ := h.live(h.latest)
	for i, b := range h.snapshot(lw) {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "[%d,%d]:%.2f", b.Low, b.High, b.Weight)
	}
	sb.WriteByte('}')
	return sb.String()
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

func ceilDiv(a, b int64) int64 {
	return (a + b - 1) / b
}
