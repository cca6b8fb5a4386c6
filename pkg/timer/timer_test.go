// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of Tetragon

package timer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/atomic"
)

func TestTimer(t *testing.T) {
	var count atomic.Int64
	timer := NewPeriodicTimer("test", func() { count.Inc() })

	timer.Start(10 * time.Millisecond)
	assert.True(t, timer.Running())
	assert.Eventually(t, func() bool { return count.Load() >= 3 }, 5*time.Second, time.Millisecond)
	timer.Stop()
	assert.False(t, timer.Running())

	stopped := count.Load()
	assert.Equal(t, uint64(stopped), timer.Runs())
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, stopped, count.Load(), "no run after Stop")

	// restart with another interval
	timer.Start(time.Hour)
	timer.Start(5 * time.Millisecond)
	assert.Eventually(t, func() bool { return count.Load() > stopped }, 5*time.Second, time.Millisecond)
	timer.Stop()
	timer.Stop()
}

func TestTimerInvalidInterval(t *testing.T) {
	timer := NewPeriodicTimer("test", func() {})
	timer.Start(0)
	assert.False(t, timer.Running())
	timer.Stop()
}
