// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of Tetragon

package stats

import "golang.org/x/exp/maps"

// TableStatistic is a table-valued statistic made of live statistics. Each
// read snapshots every cell into a fresh Table.
type TableStatistic struct {
	rows map[string]map[string]Statistic
}

func (t *TableStatistic) Type() StatisticType { return TypeTable }

func (t *TableStatistic) Value() *Table {
	b := NewTableBuilder()
	for label, row := range t.rows {
		b.WithRow(label, row)
	}
	return b.Build()
}

func (t *TableStatistic) AnyValue() any { return t.Value() }

type TableStatisticBuilder struct {
	rows map[string]map[string]Statistic
}

func NewTableStatisticBuilder() *TableStatisticBuilder {
	return &TableStatisticBuilder{rows: map[string]map[string]Statistic{}}
}

func (b *TableStatisticBuilder) SetStatistic(row, name string, s Statistic) *TableStatisticBuilder {
	r, ok := b.rows[row]
	if !ok {
		r = map[string]Statistic{}
		b.rows[row] = r
	}
	r[name] = s
	return b
}

func (b *TableStatisticBuilder) WithRow(label string, stats map[string]Statistic) *TableStatisticBuilder {
	if _, ok := b.rows[label]; !ok {
		b.rows[label] = map[string]Statistic{}
	}
	for name, s := range stats {
		b.SetStatistic(label, name, s)
	}
	return b
}

func (b *TableStatisticBuilder) Build() *TableStatistic {
	rows := make(map[string]map[string]Statistic, len(b.rows))
	for label, row := range b.rows {
		rows[label] = maps.Clone(row)
	}
	return &TableStatistic{rows: rows}
}
