// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of Tetragon

package ctxgraph

import (
	"errors"

	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"

	"github.com/cilium/statgraph/pkg/idtable"
	"github.com/cilium/statgraph/pkg/lock"
	"github.com/cilium/statgraph/pkg/logger"
	"github.com/cilium/statgraph/pkg/logger/logfields"
)

var (
	// ErrCycle is returned by Link when the new edge would close a cycle.
	ErrCycle = errors.New("edge would create a cycle")
	// ErrDetached is returned by Link when the child is no longer attached.
	ErrDetached = errors.New("node is detached")
)

// Graph is the owning registry of context nodes. It hands out node handles,
// serializes structural mutation and notifies listeners. Reads (parents,
// children, ancestors, queries) never take the graph lock: they work off the
// copy-on-write neighbour snapshots of each node.
type Graph struct {
	mu         lock.Mutex
	table      *idtable.Table
	generation atomic.Uint64
	listeners  atomic.Pointer[[]Listener]
	log        logrus.FieldLogger
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{
		table: idtable.New(),
		log:   logger.Subsys("ctxgraph"),
	}
}

// Attach creates a node carrying element and registers it as a child of each
// parent. With no parents the node is a root. Parents that have already been
// detached are accepted; they only ever contribute themselves to the new
// node's ancestors.
func (g *Graph) Attach(element Element, parents ...*Node) *Node {
	n := &Node{element: element, graph: g}

	g.mu.Lock()
	g.table.AddEntry(n)
	n.attached.Store(true)
	var changes []change
	for _, p := range parents {
		if p == nil {
			continue
		}
		if n.addedParent(p) {
			p.addedChild(n)
			changes = append(changes, change{kind: changeAdded, parent: p, child: n})
		}
	}
	if len(changes) == 0 {
		changes = append(changes, change{kind: changeAdded, child: n})
	}
	g.generation.Inc()
	g.mu.Unlock()

	g.log.WithField(logfields.Node, n).Debug("Attached node")
	g.notify(changes)
	return n
}

// Link adds parent to child's parent set. It is a no-op if the edge already
// exists. Edges that would close a cycle are refused with ErrCycle.
func (g *Graph) Link(parent, child *Node) error {
	if parent == nil || child == nil {
		return nil
	}
	g.mu.Lock()
	if !child.Attached() {
		g.mu.Unlock()
		return ErrDetached
	}
	if parent == child || AncestorsOf(NewNodeSet(parent)).Contains(child) {
		g.mu.Unlock()
		return ErrCycle
	}
	if !child.addedParent(parent) {
		g.mu.Unlock()
		return nil
	}
	parent.addedChild(child)
	g.generation.Inc()
	g.mu.Unlock()

	g.log.WithFields(logrus.Fields{logfields.Parent: parent, logfields.Node: child}).Debug("Linked node")
	g.notify([]change{{kind: changeAdded, parent: parent, child: child}})
	return nil
}

// Unlink removes parent from child's parent set. The child lives on. It
// reports whether the edge existed.
func (g *Graph) Unlink(parent, child *Node) bool {
	if parent == nil || child == nil {
		return false
	}
	g.mu.Lock()
	if !child.removedParent(parent) {
		g.mu.Unlock()
		return false
	}
	parent.removedChild(child)
	g.generation.Inc()
	g.mu.Unlock()

	g.log.WithFields(logrus.Fields{logfields.Parent: parent, logfields.Node: child}).Debug("Unlinked node")
	g.notify([]change{{kind: changeRemoved, parent: parent, child: child}})
	return true
}

// Detach unregisters n: it is removed from the parent set of each of its
// children and from the child set of each of its parents, and its own
// neighbour sets are cleared. Descendants are not detached, their parent sets
// just shrink. Detaching a node that is not attached is a no-op.
func (g *Graph) Detach(n *Node) bool {
	if n == nil {
		return false
	}
	g.mu.Lock()
	if !n.attached.CompareAndSwap(true, false) {
		g.mu.Unlock()
		return false
	}
	var changes []change
	for _, c := range n.childSnapshot() {
		c.removedParent(n)
		changes = append(changes, change{kind: changeRemoved, parent: n, child: c})
	}
	parents := n.parentSnapshot()
	for _, p := range parents {
		p.removedChild(n)
		changes = append(changes, change{kind: changeRemoved, parent: p, child: n})
	}
	if len(parents) == 0 {
		changes = append(changes, change{kind: changeRemoved, child: n})
	}
	n.parents.Store(nil)
	n.children.Store(nil)
	if _, err := g.table.RemoveEntry(n.id); err != nil {
		g.log.WithError(err).WithField(logfields.Node, n).Warn("Detached node missing from table")
	}
	g.generation.Inc()
	g.mu.Unlock()

	g.log.WithField(logfields.Node, n).Debug("Detached node")
	g.notify(changes)
	return true
}

// Lookup resolves a handle. Stale handles of detached nodes do not resolve.
func (g *Graph) Lookup(id ID) (*Node, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	e, err := g.table.GetEntry(id)
	if err != nil {
		return nil, false
	}
	return e.(*Node), true
}

// Nodes returns every attached node.
func (g *Graph) Nodes() NodeSet {
	return g.collect(func(*Node) bool { return true })
}

// Roots returns the attached nodes that have no parents.
func (g *Graph) Roots() NodeSet {
	return g.collect(func(n *Node) bool { return len(n.parentSnapshot()) == 0 })
}

func (g *Graph) collect(keep func(*Node) bool) NodeSet {
	out := NewNodeSet()
	g.mu.Lock()
	defer g.mu.Unlock()
	g.table.ForEach(func(_ idtable.EntryID, e idtable.Entry) {
		if n := e.(*Node); keep(n) {
			out.Add(n)
		}
	})
	return out
}

// Len returns the number of attached nodes.
func (g *Graph) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.table.Len()
}

// Generation increases on every structural change. Two equal readings mean
// no node or edge was added or removed in between.
func (g *Graph) Generation() uint64 {
	return g.generation.Load()
}

// AddListener registers a listener for every structural change in the graph.
func (g *Graph) AddListener(l Listener) {
	g.mu.Lock()
	defer g.mu.Unlock()
	addListener(&g.listeners, l)
}

// RemoveListener unregisters a graph-wide listener.
func (g *Graph) RemoveListener(l Listener) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return removeListener(&g.listeners, l)
}

func (g *Graph) notify(changes []change) {
	global := loadListeners(&g.listeners)
	for _, c := range changes {
		var local []Listener
		if c.parent != nil {
			local = loadListeners(&c.parent.listeners)
		}
		for _, ls := range [][]Listener{local, global} {
			for _, l := range ls {
				switch c.kind {
				case changeAdded:
					l.GraphAdded(c.parent, c.child)
				case changeRemoved:
					l.GraphRemoved(c.parent, c.child)
				}
			}
		}
	}
}
