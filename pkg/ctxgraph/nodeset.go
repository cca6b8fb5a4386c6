// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of Tetragon

package ctxgraph

import (
	mapset "github.com/deckarep/golang-set/v2"
)

// NodeSet is a set of nodes keyed on node identity (the pointer), never on
// element contents: two distinct nodes with equal elements are two members.
type NodeSet = mapset.Set[*Node]

// NewNodeSet returns a set holding nodes. Sets produced by this package are
// owned by the caller and are not safe for concurrent mutation.
func NewNodeSet(nodes ...*Node) NodeSet {
	return mapset.NewThreadUnsafeSet(nodes...)
}

// AncestorsOf returns the union of the ancestor closures of every node in
// set, sharing one visited set across the walk.
func AncestorsOf(set NodeSet) NodeSet {
	return closure(set, (*Node).parentSnapshot)
}

// DescendantsOf is the downward counterpart of AncestorsOf.
func DescendantsOf(set NodeSet) NodeSet {
	return closure(set, (*Node).childSnapshot)
}

// closure walks edges from each start node, excluding the start nodes unless
// they are reachable from another start node. Membership in out doubles as the
// visited set, so diamonds and (transient) cycles terminate.
func closure(start NodeSet, next func(*Node) nodeMap) NodeSet {
	out := NewNodeSet()
	if start == nil {
		return out
	}
	var stack []*Node
	start.Each(func(n *Node) bool {
		for _, p := range next(n) {
			stack = append(stack, p)
		}
		return false
	})
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !out.Add(n) {
			continue
		}
		for _, p := range next(n) {
			if !out.Contains(p) {
				stack = append(stack, p)
			}
		}
	}
	return out
}
