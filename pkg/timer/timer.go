// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of Tetragon

// Package timer runs a function periodically in the background, for instance
// to report statistics while a workload runs.
package timer

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"

	"github.com/cilium/statgraph/pkg/lock"
	"github.com/cilium/statgraph/pkg/logger"
)

type PeriodicTimer struct {
	mu       lock.Mutex
	running  bool
	stop     chan struct{}
	wg       sync.WaitGroup
	interval time.Duration

	name string
	work func()
	runs atomic.Uint64
	log  logrus.FieldLogger
}

func NewPeriodicTimer(name string, work func()) *PeriodicTimer {
	return &PeriodicTimer{
		name: name,
		work: work,
		log:  logger.Subsys("timer").WithField("timer", name),
	}
}

// Start runs the work every interval. Starting a running timer with a
// different interval restarts it.
func (t *PeriodicTimer) Start(interval time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if interval <= 0 {
		t.log.WithField("interval", interval).Warn("Invalid interval, timer not started")
		return
	}
	if t.running {
		if interval == t.interval {
			return
		}
		t.halt()
	}

	t.interval = interval
	t.running = true
	t.stop = make(chan struct{})
	t.wg.Add(1)
	go t.worker(interval, t.stop)
	t.log.WithField("interval", interval).Debug("Timer started")
}

// Stop waits for a run in progress to complete. The work does not run again
// until the next Start.
func (t *PeriodicTimer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.running {
		return
	}
	t.halt()
	t.log.WithField("runs", t.runs.Load()).Debug("Timer stopped")
}

func (t *PeriodicTimer) halt() {
	close(t.stop)
	t.wg.Wait()
	t.running = false
}

func (t *PeriodicTimer) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

// Runs returns how many times the work ran.
func (t *PeriodicTimer) Runs() uint64 {
	return t.runs.Load()
}

func (t *PeriodicTimer) worker(interval time.Duration, stop <-chan struct{}) {
	defer t.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			t.work()
			t.runs.Inc()
		}
	}
}
