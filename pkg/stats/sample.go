// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of Tetragon

package stats

import "fmt"

// Sample is a value observed at a point in time, in nanoseconds.
type Sample[T any] struct {
	Timestamp int64
	Value     T
}

func NewSample[T any](timestamp int64, value T) Sample[T] {
	return Sample[T]{Timestamp: timestamp, Value: value}
}

func (s Sample[T]) String() string {
	return fmt.Sprintf("%v @ %d", s.Value, s.Timestamp)
}
