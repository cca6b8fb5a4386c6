// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of Tetragon

// Package query is the graph navigation algebra: a Query maps a set of nodes
// to a set of nodes and queries compose into pipelines.
//
// The combinator set is closed and small, so a query is a tagged value
// evaluated by a single switch rather than an interface hierarchy. Queries are
// immutable once built and safe to share between goroutines; executing one
// never mutates the graph.
package query

import (
	"strings"

	"github.com/cilium/statgraph/pkg/ctxgraph"
)

type kind int

const (
	kindEmpty kind = iota
	kindIdentity
	kindChildren
	kindParents
	kindDescendants
	kindAncestors
	kindFilter
	kindChain
	kindUnion
	kindEnsureUnique
)

// Query is a pure transform from a node set to a node set.
type Query struct {
	kind     kind
	matcher  Matcher
	operands []*Query
}

var (
	empty        = &Query{kind: kindEmpty}
	identity     = &Query{kind: kindIdentity}
	children     = &Query{kind: kindChildren}
	parents      = &Query{kind: kindParents}
	descendants  = &Query{kind: kindDescendants}
	ancestors    = &Query{kind: kindAncestors}
	ensureUnique = &Query{kind: kindEnsureUnique}
)

// Empty returns the query that matches nothing, whatever its input. It is a
// singleton and absorbing under Chain.
func Empty() *Query { return empty }

// Identity returns its input unchanged.
func Identity() *Query { return identity }

// Children maps each node to its direct children.
func Children() *Query { return children }

// Parents maps each node to its direct parents.
func Parents() *Query { return parents }

// Descendants maps each node to its transitive children.
func Descendants() *Query { return descendants }

// Ancestors maps each node to its transitive parents.
func Ancestors() *Query { return ancestors }

// EnsureUnique passes its input through only if it holds exactly one node.
func EnsureUnique() *Query { return ensureUnique }

// Filter keeps the nodes whose element satisfies m. A nil matcher matches
// nothing.
func Filter(m Matcher) *Query {
	if m == nil {
		return empty
	}
	return &Query{kind: kindFilter, matcher: m}
}

// Chain composes queries left to right. Any empty operand makes the whole
// chain empty, identity operands are dropped, nested chains are flattened.
func Chain(qs ...*Query) *Query {
	var ops []*Query
	for _, q := range qs {
		switch {
		case q == nil || q.kind == kindEmpty:
			return empty
		case q.kind == kindIdentity:
		case q.kind == kindChain:
			ops = append(ops, q.operands...)
		default:
			ops = append(ops, q)
		}
	}
	switch len(ops) {
	case 0:
		return identity
	case 1:
		return ops[0]
	}
	return &Query{kind: kindChain, operands: ops}
}

// Union runs every query on the same input and merges the results. Empty is
// the neutral element.
func Union(qs ...*Query) *Query {
	var ops []*Query
	for _, q := range qs {
		if q == nil || q.kind == kindEmpty {
			continue
		}
		ops = append(ops, q)
	}
	switch len(ops) {
	case 0:
		return empty
	case 1:
		return ops[0]
	}
	return &Query{kind: kindUnion, operands: ops}
}

// IsEmpty reports whether q is the empty query. Callers can use it to skip a
// walk altogether.
func (q *Query) IsEmpty() bool {
	return q == nil || q.kind == kindEmpty
}

// Execute runs q against input. It never fails: no match is an empty set. The
// input set is not modified and the result is a fresh set.
func (q *Query) Execute(input ctxgraph.NodeSet) ctxgraph.NodeSet {
	if q.IsEmpty() || input == nil || input.Cardinality() == 0 {
		return ctxgraph.NewNodeSet()
	}

	switch q.kind {
	case kindIdentity:
		return input.Clone()
	case kindChildren:
		return expand(input, (*ctxgraph.Node).Children)
	case kindParents:
		return expand(input, (*ctxgraph.Node).Parents)
	case kindDescendants:
		return ctxgraph.DescendantsOf(input)
	case kindAncestors:
		return ctxgraph.AncestorsOf(input)
	case kindFilter:
		out := ctxgraph.NewNodeSet()
		input.Each(func(n *ctxgraph.Node) bool {
			if q.matcher.Matches(n.Element()) {
				out.Add(n)
			}
			return false
		})
		return out
	case kindChain:
		cur := input
		for _, op := range q.operands {
			cur = op.Execute(cur)
			if cur.Cardinality() == 0 {
				break
			}
		}
		return cur
	case kindUnion:
		out := ctxgraph.NewNodeSet()
		for _, op := range q.operands {
			out.Append(op.Execute(input).ToSlice()...)
		}
		return out
	case kindEnsureUnique:
		if input.Cardinality() == 1 {
			return input.Clone()
		}
		return ctxgraph.NewNodeSet()
	}
	return ctxgraph.NewNodeSet()
}

func expand(input ctxgraph.NodeSet, next func(*ctxgraph.Node) ctxgraph.NodeSet) ctxgraph.NodeSet {
	out := ctxgraph.NewNodeSet()
	input.Each(func(n *ctxgraph.Node) bool {
		out.Append(next(n).ToSlice()...)
		return false
	})
	return out
}

func (q *Query) String() string {
	if q == nil {
		return "<empty>"
	}
	switch q.kind {
	case kindEmpty:
		return "<empty>"
	case kindIdentity:
		return "self"
	case kindChildren:
		return "children"
	case kindParents:
		return "parents"
	case kindDescendants:
		return "descendants"
	case kindAncestors:
		return "ancestors"
	case kindEnsureUnique:
		return "unique"
	case kindFilter:
		return "filter(" + describe(q.matcher) + ")"
	case kindChain:
		return join(q.operands, " | ")
	case kindUnion:
		return "(" + join(q.operands, " + ") + ")"
	}
	return "<unknown>"
}

func join(qs []*Query, sep string) string {
	parts := make([]string, len(qs))
	for i, op := range qs {
		parts[i] = op.String()
	}
	return strings.Join(parts, sep)
}
