// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of Tetragon

package stats

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/cilium/statgraph/pkg/ctxgraph"
)

func TestStatisticTypeString(t *testing.T) {
	assert.Equal(t, "counter", TypeCounter.String())
	assert.Equal(t, "histogram", TypeHistogram.String())
	assert.Equal(t, "unknown(42)", StatisticType(42).String())

	for typ := TypeCounter; typ <= TypeHistogram; typ++ {
		parsed, err := ParseType(typ.String())
		require.NoError(t, err)
		assert.Equal(t, typ, parsed)
	}
	_, err := ParseType("bogus")
	assert.Error(t, err)
}

func TestConstantAndSupplier(t *testing.T) {
	c := Constant(TypeGauge, 3.5)
	assert.Equal(t, TypeGauge, c.Type())
	assert.Equal(t, 3.5, c.Value())

	n := int64(0)
	s := Supplier(TypeCounter, func() int64 { n++; return n })
	assert.Equal(t, int64(1), s.Value())
	assert.Equal(t, int64(2), s.AnyValue())

	frozen := Snapshot(s)
	assert.Equal(t, int64(3), frozen.Value())
	assert.Equal(t, int64(3), frozen.Value())
	assert.Equal(t, TypeCounter, frozen.Type())
}

func TestSampleString(t *testing.T) {
	assert.Equal(t, "42 @ 1000", NewSample(1000, 42).String())
	assert.Equal(t, "x @ -1", NewSample(-1, "x").String())
}

func TestTableBuilder(t *testing.T) {
	hits := int64(10)
	live := Supplier(TypeCounter, func() int64 { return hits })

	table := NewTableBuilder().
		SetStatistic("hot", "hits", live).
		WithRow("cold", map[string]Statistic{"hits": Constant(TypeCounter, int64(1))}).
		WithRows([]string{"empty"}, func(string) map[string]Statistic { return nil }).
		Build()
	hits = 99

	assert.Equal(t, []string{"cold", "empty", "hot"}, table.RowLabels())
	assert.Equal(t, []string{"hits"}, table.ColumnNames())
	assert.Equal(t, 3, table.Len())

	s, ok := table.Statistic("hot", "hits")
	require.True(t, ok)
	assert.Equal(t, int64(10), s.Value(), "tables hold snapshots")

	_, ok = table.Statistic("hot", "misses")
	assert.False(t, ok)
	_, ok = table.Row("warm")
	assert.False(t, ok)

	want := map[string]map[string]any{
		"cold":  {"hits": int64(1)},
		"empty": {},
		"hot":   {"hits": int64(10)},
	}
	if diff := cmp.Diff(want, table.Values()); diff != "" {
		t.Errorf("unexpected table values (-want +got):\n%s", diff)
	}
	assert.Equal(t, "cold: hits=1\nempty:\nhot: hits=10\n", table.String())
}

func TestTableStatistic(t *testing.T) {
	hits := int64(1)
	ts := NewTableStatisticBuilder().
		SetStatistic("hot", "hits", Supplier(TypeCounter, func() int64 { return hits })).
		Build()
	assert.Equal(t, TypeTable, ts.Type())

	first := ts.Value()
	hits = 2
	second := ts.Value()

	s, _ := first.Statistic("hot", "hits")
	assert.Equal(t, int64(1), s.Value())
	s, _ = second.Statistic("hot", "hits")
	assert.Equal(t, int64(2), s.Value())
}

type closer struct {
	ValueStatistic[int]
	err    error
	closed bool
}

func (c *closer) Close() error {
	c.closed = true
	return c.err
}

func TestRegistry(t *testing.T) {
	g := ctxgraph.NewGraph()
	r := NewRegistry(g)
	owner := g.Attach(ctxgraph.NewElement("cache", nil))

	_, err := r.Register(owner, "hits", Constant(TypeCounter, 5), "tier", "hot")
	require.NoError(t, err)

	s, ok := r.Find(owner, "hits")
	require.True(t, ok)
	assert.Equal(t, 5, s.AnyValue())

	s, ok = r.Find(owner, "misses")
	assert.False(t, ok)
	assert.Nil(t, s)

	typed, ok := Lookup[int](r, owner, "hits")
	require.True(t, ok)
	assert.Equal(t, 5, typed.Value())
	_, ok = Lookup[string](r, owner, "hits")
	assert.False(t, ok)

	_, err = r.Register(owner, "hits", Constant(TypeCounter, 6))
	assert.ErrorIs(t, err, ErrDuplicateStatistic)
	_, err = r.Register(nil, "hits", Constant(TypeCounter, 6))
	assert.ErrorIs(t, err, ErrNoOwner)

	nodes := StatisticsOf(Tagged("hot")).Execute(ctxgraph.NewNodeSet(owner))
	require.Equal(t, 1, nodes.Cardinality())
	n, _ := nodes.Pop()
	assert.Equal(t, "hits", NameOf(n))
	assert.Equal(t, []string{"hot", "tier"}, TagsOf(n))
	assert.True(t, StatisticsOf(Tagged("cold")).Execute(ctxgraph.NewNodeSet(owner)).IsEmpty())
	assert.True(t, StatisticsOf(OfType(TypeGauge)).Execute(ctxgraph.NewNodeSet(owner)).IsEmpty())

	assert.True(t, r.Unregister(owner, "hits"))
	assert.False(t, r.Unregister(owner, "hits"))
	assert.False(t, n.Attached())
	_, ok = r.Find(owner, "hits")
	assert.False(t, ok)
}

func TestRegisterAllAggregatesErrors(t *testing.T) {
	g := ctxgraph.NewGraph()
	r := NewRegistry(g)
	owner := g.Attach(ctxgraph.NewElement("cache", nil))

	err := r.RegisterAll(owner, map[string]Statistic{
		"a": Constant(TypeGauge, 1),
		"b": nil,
		"c": nil,
	})
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 2)
	assert.True(t, errors.Is(err, ErrNilStatistic))

	_, ok := r.Find(owner, "a")
	assert.True(t, ok)
}

func TestRegistryClose(t *testing.T) {
	g := ctxgraph.NewGraph()
	r := NewRegistry(g)
	owner := g.Attach(ctxgraph.NewElement("cache", nil))

	good := &closer{ValueStatistic: Constant(TypeGauge, 1)}
	bad := &closer{ValueStatistic: Constant(TypeGauge, 2), err: errors.New("boom")}
	_, err := r.Register(owner, "good", good)
	require.NoError(t, err)
	_, err = r.Register(owner, "bad", bad)
	require.NoError(t, err)

	err = r.Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `closing statistic "bad": boom`)
	assert.True(t, good.closed)
	assert.True(t, bad.closed)
	assert.True(t, owner.Children().IsEmpty())
	assert.NoError(t, r.Close())
}

func TestStatisticsUnder(t *testing.T) {
	g := ctxgraph.NewGraph()
	r := NewRegistry(g)
	store := g.Attach(ctxgraph.NewElement("store", nil))
	tier := g.Attach(ctxgraph.NewElement("tier", nil), store)
	_, err := r.Register(store, "size", Constant(TypeSize, 1))
	require.NoError(t, err)
	_, err = r.Register(tier, "latency", Constant(TypeHistogram, 2))
	require.NoError(t, err)

	in := ctxgraph.NewNodeSet(store)
	assert.Equal(t, 2, StatisticsUnder().Execute(in).Cardinality())
	assert.Equal(t, 1, StatisticsOf().Execute(in).Cardinality())
	hist := StatisticsUnder(OfType(TypeHistogram)).Execute(in)
	require.Equal(t, 1, hist.Cardinality())
	n, _ := hist.Pop()
	s, ok := FromNode(n)
	require.True(t, ok)
	assert.Equal(t, 2, s.AnyValue())

	_, ok = FromNode(tier)
	assert.False(t, ok)
}
