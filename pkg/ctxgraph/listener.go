// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of Tetragon

package ctxgraph

import (
	"go.uber.org/atomic"
)

// Listener observes structural changes to the graph. For a new root, or a
// detached root, parent is nil.
//
// Callbacks run synchronously on the goroutine performing the mutation, after
// the graph lock has been released, so a listener may query or mutate the
// graph itself.
type Listener interface {
	GraphAdded(parent, added *Node)
	GraphRemoved(parent, removed *Node)
}

// ListenerFuncs adapts a pair of functions to Listener. Either may be nil.
type ListenerFuncs struct {
	Added   func(parent, added *Node)
	Removed func(parent, removed *Node)
}

func (l *ListenerFuncs) GraphAdded(parent, added *Node) {
	if l.Added != nil {
		l.Added(parent, added)
	}
}

func (l *ListenerFuncs) GraphRemoved(parent, removed *Node) {
	if l.Removed != nil {
		l.Removed(parent, removed)
	}
}

type changeKind int

const (
	changeAdded changeKind = iota
	changeRemoved
)

// change is a structural change recorded under the lock and delivered after.
type change struct {
	kind   changeKind
	parent *Node
	child  *Node
}

func addListener(ptr *atomic.Pointer[[]Listener], l Listener) {
	var next []Listener
	if old := ptr.Load(); old != nil {
		next = append(next, (*old)...)
	}
	next = append(next, l)
	ptr.Store(&next)
}

func removeListener(ptr *atomic.Pointer[[]Listener], l Listener) bool {
	old := ptr.Load()
	if old == nil {
		return false
	}
	next := make([]Listener, 0, len(*old))
	found := false
	for _, cur := range *old {
		if !found && cur == l {
			found = true
			continue
		}
		next = append(next, cur)
	}
	if found {
		ptr.Store(&next)
	}
	return found
}

func loadListeners(ptr *atomic.Pointer[[]Listener]) []Listener {
	if l := ptr.Load(); l != nil {
		return *l
	}
	return nil
}
