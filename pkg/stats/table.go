// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of Tetragon

package stats

import (
	"fmt"
	"slices"
	"strings"

	"golang.org/x/exp/maps"
)

// Table is an immutable grid of statistic snapshots: row label, then
// statistic name.
type Table struct {
	rows map[string]map[string]ValueStatistic[any]
}

func (t *Table) RowLabels() []string {
	labels := maps.Keys(t.rows)
	slices.Sort(labels)
	return labels
}

// ColumnNames returns the union of the statistic names of every row.
func (t *Table) ColumnNames() []string {
	seen := map[string]struct{}{}
	for _, row := range t.rows {
		for name := range row {
			seen[name] = struct{}{}
		}
	}
	names := maps.Keys(seen)
	slices.Sort(names)
	return names
}

func (t *Table) Len() int {
	return len(t.rows)
}

func (t *Table) Row(label string) (map[string]ValueStatistic[any], bool) {
	row, ok := t.rows[label]
	if !ok {
		return nil, false
	}
	return maps.Clone(row), true
}

func (t *Table) Statistic(row, name string) (ValueStatistic[any], bool) {
	s, ok := t.rows[row][name]
	return s, ok
}

// Values flattens the table into plain values, the shape used for YAML or
// JSON output.
func (t *Table) Values() map[string]map[string]any {
	out := make(map[string]map[string]any, len(t.rows))
	for label, row := range t.rows {
		vals := make(map[string]any, len(row))
		for name, s := range row {
			vals[name] = s.Value()
		}
		out[label] = vals
	}
	return out
}

func (t *Table) String() string {
	var sb strings.Builder
	for _, label := range t.RowLabels() {
		row := t.rows[label]
		names := maps.Keys(row)
		slices.Sort(names)
		fmt.Fprintf(&sb, "%s:", label)
		for _, name := range names {
			fmt.Fprintf(&sb, " %s=%v", name, row[name].Value())
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

// TableBuilder accumulates rows. Statistics are snapshotted when they are
// set, so the built table never changes.
type TableBuilder struct {
	rows map[string]map[string]ValueStatistic[any]
}

func NewTableBuilder() *TableBuilder {
	return &TableBuilder{rows: map[string]map[string]ValueStatistic[any]{}}
}

func (b *TableBuilder) SetStatistic(row, name string, s Statistic) *TableBuilder {
	r, ok := b.rows[row]
	if !ok {
		r = map[string]ValueStatistic[any]{}
		b.rows[row] = r
	}
	r[name] = Snapshot(s)
	return b
}

func (b *TableBuilder) WithRow(label string, stats map[string]Statistic) *TableBuilder {
	if _, ok := b.rows[label]; !ok {
		b.rows[label] = map[string]ValueStatistic[any]{}
	}
	for name, s := range stats {
		b.SetStatistic(label, name, s)
	}
	return b
}

func (b *TableBuilder) WithRows(labels []string, stats func(label string) map[string]Statistic) *TableBuilder {
	for _, label := range labels {
		b.WithRow(label, stats(label))
	}
	return b
}

func (b *TableBuilder) Build() *Table {
	rows := make(map[string]map[string]ValueStatistic[any], len(b.rows))
	for label, row := range b.rows {
		rows[label] = maps.Clone(row)
	}
	return &Table{rows: rows}
}
