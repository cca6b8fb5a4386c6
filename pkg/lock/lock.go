// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of Cilium

// Package lock provides the mutexes used by the context graph, the registry
// and the histograms. Building with the "lockdebug" tag swaps in
// implementations that report lock-order inversions and locks held for too
// long.
package lock

// Mutex is a sync.Mutex, checked for deadlocks under "lockdebug".
type Mutex struct {
	internalMutex
}

// RWMutex is a sync.RWMutex, checked for deadlocks under "lockdebug".
type RWMutex struct {
	internalRWMutex
}
