// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of Tetragon

package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cilium/statgraph/pkg/ctxgraph"
)

// topology:
//
//	store{tier=all}
//	 |- cache{tier=hot}  -> latency{name=get}
//	 |- disk{tier=cold}  -> latency{name=get}, latency{name=put}
type topology struct {
	g                 *ctxgraph.Graph
	store, cache, dsk *ctxgraph.Node
	cacheGet, diskGet *ctxgraph.Node
	diskPut           *ctxgraph.Node
}

func newTopology() *topology {
	g := ctxgraph.NewGraph()
	t := &topology{g: g}
	t.store = g.Attach(ctxgraph.NewElement("store", map[string]any{"tier": "all"}))
	t.cache = g.Attach(ctxgraph.NewElement("cache", map[string]any{"tier": "hot"}), t.store)
	t.dsk = g.Attach(ctxgraph.NewElement("disk", map[string]any{"tier": "cold"}), t.store)
	t.cacheGet = g.Attach(ctxgraph.NewElement("latency", map[string]any{"name": "get"}), t.cache)
	t.diskGet = g.Attach(ctxgraph.NewElement("latency", map[string]any{"name": "get"}), t.dsk)
	t.diskPut = g.Attach(ctxgraph.NewElement("latency", map[string]any{"name": "put"}), t.dsk)
	return t
}

func set(nodes ...*ctxgraph.Node) ctxgraph.NodeSet {
	return ctxgraph.NewNodeSet(nodes...)
}

func TestEmptyIsAbsorbing(t *testing.T) {
	tp := newTopology()
	in := set(tp.store)

	assert.Same(t, Empty(), Chain(Empty(), Descendants()))
	assert.Same(t, Empty(), Chain(Descendants(), Empty()))
	assert.Same(t, Empty(), Chain(Children(), Chain(Parents(), Empty())))
	assert.True(t, Chain(Descendants(), Empty()).IsEmpty())
	assert.True(t, Chain(Descendants(), Empty()).Execute(in).IsEmpty())
	assert.True(t, Empty().Execute(in).IsEmpty())
	assert.Equal(t, "<empty>", Empty().String())
}

func TestUnionNeutralEmpty(t *testing.T) {
	tp := newTopology()
	q := Union(Empty(), Children())
	assert.Same(t, Children(), q)
	assert.Same(t, Empty(), Union())
	assert.Same(t, Empty(), Union(Empty(), Empty()))

	out := Union(Children(), Chain(Children(), Children())).Execute(set(tp.store))
	assert.True(t, out.Equal(set(tp.cache, tp.dsk, tp.cacheGet, tp.diskGet, tp.diskPut)))
}

func TestIdentityDropped(t *testing.T) {
	assert.Same(t, Children(), Chain(Identity(), Children(), Identity()))
	assert.Same(t, Identity(), Chain())
	assert.Same(t, Identity(), Chain(Identity(), Identity()))
}

func TestNavigation(t *testing.T) {
	tp := newTopology()

	assert.True(t, Children().Execute(set(tp.store)).Equal(set(tp.cache, tp.dsk)))
	assert.True(t, Parents().Execute(set(tp.diskGet, tp.cacheGet)).Equal(set(tp.cache, tp.dsk)))
	assert.True(t, Descendants().Execute(set(tp.dsk)).Equal(set(tp.diskGet, tp.diskPut)))
	assert.True(t, Ancestors().Execute(set(tp.diskPut)).Equal(set(tp.dsk, tp.store)))

	in := set(tp.store)
	out := Identity().Execute(in)
	assert.True(t, out.Equal(in))
	out.Add(tp.cache)
	assert.Equal(t, 1, in.Cardinality(), "results must not alias the input")
}

func TestFilter(t *testing.T) {
	tp := newTopology()
	all := Descendants().Execute(set(tp.store))

	latencies := Filter(Identifier("latency")).Execute(all)
	assert.True(t, latencies.Equal(set(tp.cacheGet, tp.diskGet, tp.diskPut)))

	gets := Filter(Attribute("name", "get")).Execute(all)
	assert.True(t, gets.Equal(set(tp.cacheGet, tp.diskGet)))

	// tiers have no "name" attribute: the match fails, so its negation holds
	assert.True(t, Filter(Not(Attribute("name", "get"))).Execute(set(tp.cache)).Equal(set(tp.cache)))
	assert.True(t, Filter(HasAttribute("tier")).Execute(all).Equal(set(tp.cache, tp.dsk)))

	called := false
	m := AttributeFunc("name", func(v any) bool {
		called = true
		return v == "put"
	})
	assert.True(t, Filter(m).Execute(set(tp.cache)).IsEmpty())
	assert.False(t, called)
	assert.True(t, Filter(m).Execute(all).Equal(set(tp.diskPut)))

	assert.True(t, Filter(AllOf()).Execute(all).Equal(all))
	assert.True(t, Filter(AnyOf()).Execute(all).IsEmpty())
	assert.True(t, Filter(AnyOf(Identifier("cache"), Identifier("disk"))).Execute(all).Equal(set(tp.cache, tp.dsk)))
	assert.Same(t, Empty(), Filter(nil))
}

func TestAttributeDeepEqual(t *testing.T) {
	g := ctxgraph.NewGraph()
	n := g.Attach(ctxgraph.NewElement("s", map[string]any{"tags": []string{"a", "b"}}))

	assert.True(t, Filter(Attribute("tags", []string{"a", "b"})).Execute(set(n)).Equal(set(n)))
	assert.True(t, Filter(Attribute("tags", []string{"b"})).Execute(set(n)).IsEmpty())
	assert.True(t, Filter(Attribute("tags", nil)).Execute(set(n)).IsEmpty())
}

func TestAttributeUncomparableDynamicValue(t *testing.T) {
	type boxed struct{ V any }
	g := ctxgraph.NewGraph()
	n := g.Attach(ctxgraph.NewElement("s", map[string]any{"k": boxed{V: []int{1}}}))

	assert.NotPanics(t, func() {
		assert.True(t, Filter(Attribute("k", boxed{V: []int{1}})).Execute(set(n)).Equal(set(n)))
		assert.True(t, Filter(Attribute("k", boxed{V: []int{2}})).Execute(set(n)).IsEmpty())
		assert.True(t, Filter(Attribute("k", boxed{V: 1})).Execute(set(n)).IsEmpty())
	})
}

func TestEnsureUnique(t *testing.T) {
	tp := newTopology()

	assert.True(t, EnsureUnique().Execute(set(tp.cache)).Equal(set(tp.cache)))
	assert.True(t, EnsureUnique().Execute(set(tp.cache, tp.dsk)).IsEmpty())
	assert.True(t, EnsureUnique().Execute(set()).IsEmpty())
}

func TestBuilder(t *testing.T) {
	tp := newTopology()

	b := NewBuilder().Children().Filter(Identifier("disk"))
	disk := b.Build()
	put := b.Children().Filter(Attribute("name", "put")).EnsureUnique().Build()

	assert.True(t, disk.Execute(set(tp.store)).Equal(set(tp.dsk)))
	assert.True(t, put.Execute(set(tp.store)).Equal(set(tp.diskPut)))
	assert.Equal(t, "children | filter(identifier=disk)", disk.String())

	assert.Same(t, Identity(), NewBuilder().Build())
	assert.Same(t, Empty(), NewBuilder().Children().Empty().Descendants().Build())
}

func TestDiamondDeduplicated(t *testing.T) {
	g := ctxgraph.NewGraph()
	r := g.Attach(ctxgraph.NewElement("r", nil))
	a := g.Attach(ctxgraph.NewElement("a", nil), r)
	b := g.Attach(ctxgraph.NewElement("b", nil), r)
	c := g.Attach(ctxgraph.NewElement("c", nil), a, b)

	out := Chain(Children(), Children()).Execute(set(r))
	require.Equal(t, 1, out.Cardinality())
	assert.True(t, out.Contains(c))
	assert.True(t, Ancestors().Execute(set(c)).Equal(set(a, b, r)))
}

func TestNilInput(t *testing.T) {
	assert.True(t, Descendants().Execute(nil).IsEmpty())
}
