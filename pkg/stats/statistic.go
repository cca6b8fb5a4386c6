// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of Tetragon

// Package stats defines the statistic contracts and binds statistics into the
// context graph so that they can be discovered with queries.
package stats

import "fmt"

type StatisticType int

const (
	TypeCounter StatisticType = iota
	TypeGauge
	TypeRate
	TypeRatio
	TypeSize
	TypeTable
	TypeHistogram
)

var typeNames = [...]string{
	TypeCounter:   "counter",
	TypeGauge:     "gauge",
	TypeRate:      "rate",
	TypeRatio:     "ratio",
	TypeSize:      "size",
	TypeTable:     "table",
	TypeHistogram: "histogram",
}

func (t StatisticType) String() string {
	if t < 0 || int(t) >= len(typeNames) {
		return fmt.Sprintf("unknown(%d)", int(t))
	}
	return typeNames[t]
}

// ParseType is the inverse of StatisticType.String.
func ParseType(s string) (StatisticType, error) {
	for i, name := range typeNames {
		if name == s {
			return StatisticType(i), nil
		}
	}
	return 0, fmt.Errorf("unknown statistic type %q", s)
}

// Statistic is the type-erased view of a statistic, used wherever statistics
// of different value types are handled together.
type Statistic interface {
	Type() StatisticType
	AnyValue() any
}

// ValueStatistic is a statistic whose value has a known type.
type ValueStatistic[T any] interface {
	Statistic
	Value() T
}

type constant[T any] struct {
	typ   StatisticType
	value T
}

func (c constant[T]) Type() StatisticType { return c.typ }
func (c constant[T]) Value() T            { return c.value }
func (c constant[T]) AnyValue() any       { return c.value }

// Constant returns a statistic that always reports value.
func Constant[T any](typ StatisticType, value T) ValueStatistic[T] {
	return constant[T]{typ: typ, value: value}
}

type supplier[T any] struct {
	typ StatisticType
	fn  func() T
}

func (s supplier[T]) Type() StatisticType { return s.typ }
func (s supplier[T]) Value() T            { return s.fn() }
func (s supplier[T]) AnyValue() any       { return s.fn() }

// Supplier returns a statistic that calls fn on every read.
func Supplier[T any](typ StatisticType, fn func() T) ValueStatistic[T] {
	return supplier[T]{typ: typ, fn: fn}
}

// Snapshot freezes the current value of s.
func Snapshot(s Statistic) ValueStatistic[any] {
	return constant[any]{typ: s.Type(), value: s.AnyValue()}
}
