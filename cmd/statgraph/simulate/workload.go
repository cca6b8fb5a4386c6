// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of Tetragon

package simulate

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// step is the simulated time producers may run ahead of each other. It must
// stay well below the histogram window or late events get dropped.
const step = 100 * time.Millisecond

// simClock follows the latest simulated timestamp seen by any producer.
type simClock struct {
	now atomic.Int64
}

func (c *simClock) Now() int64 {
	return c.now.Load()
}

func (c *simClock) observe(ts int64) {
	for {
		cur := c.now.Load()
		if ts <= cur || c.now.CompareAndSwap(cur, ts) {
			return
		}
	}
}

type producer struct {
	r    *rand.Rand
	next int64
}

type workload struct {
	topo      *topology
	clock     *simClock
	opsPerSec float64
	duration  time.Duration
	producers int
	seed      int64
	realtime  bool
	// onStep is called between simulated steps, with every producer idle.
	onStep func(now int64)
}

func (w *workload) newProducers() []*producer {
	ps := make([]*producer, w.producers)
	for i := range ps {
		ps[i] = &producer{r: rand.New(rand.NewSource(w.seed + int64(i)))}
	}
	return ps
}

// run drives the producers until the configured duration has elapsed, in
// simulated time or, with realtime, on the wall clock.
func (w *workload) run(ctx context.Context) error {
	if w.realtime {
		return w.runRealtime(ctx)
	}
	return w.runSimulated(ctx)
}

func (w *workload) runSimulated(ctx context.Context) error {
	ps := w.newProducers()
	mean := float64(time.Second) / w.opsPerSec
	for _, p := range ps {
		p.next = interArrival(p.r, mean)
	}
	end := int64(w.duration)
	for until := int64(step); ; until += int64(step) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if until > end {
			until = end
		}
		g, gctx := errgroup.WithContext(ctx)
		for _, p := range ps {
			g.Go(func() error {
				for ; p.next <= until; p.next += interArrival(p.r, mean) {
					if gctx.Err() != nil {
						return gctx.Err()
					}
					w.operation(p.r, p.next)
					w.clock.observe(p.next)
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
		w.clock.observe(until)
		if w.onStep != nil {
			w.onStep(until)
		}
		if until == end {
			return nil
		}
	}
}

// interArrival draws the gap to the next operation for a Poisson process
// with the given mean in nanoseconds. Timestamps always move forward.
func interArrival(r *rand.Rand, mean float64) int64 {
	return max(1, int64(r.ExpFloat64()*mean))
}

func (w *workload) runRealtime(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, w.duration)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)
	for _, p := range w.newProducers() {
		g.Go(func() error {
			lim := rate.NewLimiter(rate.Limit(w.opsPerSec), 1)
			for {
				if err := lim.Wait(ctx); err != nil {
					if ctx.Err() == nil || errors.Is(ctx.Err(), context.DeadlineExceeded) {
						return nil
					}
					return err
				}
				w.operation(p.r, time.Now().UnixNano())
			}
		})
	}
	return g.Wait()
}

// operation records one request: its latency on the tier that served it and
// the time it spent waiting on the shared pool.
func (w *workload) operation(r *rand.Rand, ts int64) {
	tr := w.topo.pick(r.Float64())
	lat := int64(r.ExpFloat64() * float64(tr.mean))
	tr.get.Event(ts, lat)
	tr.ops.Inc()
	w.topo.poolWait.Event(ts, lat/4)
}
