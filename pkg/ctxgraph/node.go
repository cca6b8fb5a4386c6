// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of Tetragon

package ctxgraph

import (
	"fmt"
	"maps"

	"go.uber.org/atomic"

	"github.com/cilium/statgraph/pkg/idtable"
)

// ID is the stable handle of a node. It is assigned by the owning graph at
// Attach time and is never shared with another node, even after the node is
// detached and its arena slot re-used.
type ID = idtable.EntryID

// nodeMap is an immutable snapshot of a node's neighbours. Writers replace the
// whole map; readers never see a partially updated one.
type nodeMap map[ID]*Node

// Node is a vertex in the context graph. Parents are back-references only: a
// node does not own its parents and a parent does not own its children, the
// graph arena owns node lifetime.
type Node struct {
	id       ID
	element  Element
	graph    *Graph
	attached atomic.Bool

	parents   atomic.Pointer[nodeMap]
	children  atomic.Pointer[nodeMap]
	listeners atomic.Pointer[[]Listener]
}

// SetID implements idtable.Entry.
func (n *Node) SetID(id ID) {
	n.id = id
}

// ID returns the node handle.
func (n *Node) ID() ID {
	return n.id
}

// Element returns the immutable element carried by the node.
func (n *Node) Element() Element {
	return n.element
}

// Attached reports whether the node is still registered in its graph.
func (n *Node) Attached() bool {
	return n.attached.Load()
}

func (n *Node) String() string {
	return fmt.Sprintf("{%s#%s}", n.element, n.id)
}

func (n *Node) parentSnapshot() nodeMap {
	if m := n.parents.Load(); m != nil {
		return *m
	}
	return nil
}

func (n *Node) childSnapshot() nodeMap {
	if m := n.children.Load(); m != nil {
		return *m
	}
	return nil
}

// Parents returns the direct parents of the node.
func (n *Node) Parents() NodeSet {
	return fromMap(n.parentSnapshot())
}

// Children returns the direct children of the node.
func (n *Node) Children() NodeSet {
	return fromMap(n.childSnapshot())
}

// Ancestors returns the transitive closure of the parent relation. Each
// ancestor appears once however many paths lead to it.
func (n *Node) Ancestors() NodeSet {
	return AncestorsOf(NewNodeSet(n))
}

// Descendants returns the transitive closure of the child relation.
func (n *Node) Descendants() NodeSet {
	return DescendantsOf(NewNodeSet(n))
}

// Listeners returns the listeners registered on this node. It is empty unless
// AddListener was called.
func (n *Node) Listeners() []Listener {
	if l := n.listeners.Load(); l != nil {
		return append([]Listener(nil), (*l)...)
	}
	return []Listener{}
}

// AddListener registers l for structural changes directly under this node.
func (n *Node) AddListener(l Listener) {
	n.graph.mu.Lock()
	defer n.graph.mu.Unlock()
	addListener(&n.listeners, l)
}

// RemoveListener unregisters l. Listeners are compared by interface equality,
// so they should be pointers.
func (n *Node) RemoveListener(l Listener) bool {
	n.graph.mu.Lock()
	defer n.graph.mu.Unlock()
	return removeListener(&n.listeners, l)
}

// The helpers below must be called with the graph mutation lock held: they
// read-copy-update a neighbour map, which is only atomic with respect to
// readers, not to other writers.

func (n *Node) addedParent(p *Node) bool {
	return addTo(&n.parents, p)
}

func (n *Node) removedParent(p *Node) bool {
	return removeFrom(&n.parents, p)
}

func (n *Node) addedChild(c *Node) bool {
	return addTo(&n.children, c)
}

func (n *Node) removedChild(c *Node) bool {
	return removeFrom(&n.children, c)
}

func addTo(ptr *atomic.Pointer[nodeMap], other *Node) bool {
	old := ptr.Load()
	if old != nil {
		if _, ok := (*old)[other.id]; ok {
			return false
		}
	}
	var next nodeMap
	if old != nil {
		next = make(nodeMap, len(*old)+1)
		maps.Copy(next, *old)
	} else {
		next = make(nodeMap, 1)
	}
	next[other.id] = other
	ptr.Store(&next)
	return true
}

func removeFrom(ptr *atomic.Pointer[nodeMap], other *Node) bool {
	old := ptr.Load()
	if old == nil {
		return false
	}
	if cur, ok := (*old)[other.id]; !ok || cur != other {
		return false
	}
	next := make(nodeMap, len(*old))
	maps.Copy(next, *old)
	delete(next, other.id)
	ptr.Store(&next)
	return true
}

func fromMap(m nodeMap) NodeSet {
	out := NewNodeSet()
	for _, n := range m {
		out.Add(n)
	}
	return out
}
