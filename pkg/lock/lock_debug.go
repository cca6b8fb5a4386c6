// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of Cilium

//go:build lockdebug

package lock

import (
	"time"

	deadlock "github.com/sasha-s/go-deadlock"
)

// Histogram queries hold the read lock for a full pass over the ring, so the
// timeout has to stay well above that.
const selfishTimeout = 310 * time.Second

func init() {
	deadlock.Opts.DeadlockTimeout = selfishTimeout
}

type internalRWMutex struct {
	deadlock.RWMutex
}

type internalMutex struct {
	deadlock.Mutex
}
