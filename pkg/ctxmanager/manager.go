// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of Tetragon

// Package ctxmanager keeps track of the root nodes of a context graph and
// answers queries against them.
package ctxmanager

import (
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"

	"github.com/cilium/statgraph/pkg/ctxgraph"
	"github.com/cilium/statgraph/pkg/ctxgraph/query"
	"github.com/cilium/statgraph/pkg/lock"
	"github.com/cilium/statgraph/pkg/logger"
	"github.com/cilium/statgraph/pkg/logger/logfields"
	"github.com/cilium/statgraph/pkg/metrics/errormetrics"
)

const DefaultCacheSize = 256

var ErrNotSingleton = errors.New("query did not select exactly one node")

// cacheKey ties a result to the query that produced it and to the state it
// was computed against. Any graph mutation or root change yields a new key.
type cacheKey struct {
	q        *query.Query
	graphGen uint64
	rootsGen uint64
}

type Manager struct {
	graph *ctxgraph.Graph
	log   logrus.FieldLogger

	mu       lock.RWMutex
	roots    ctxgraph.NodeSet
	rootsGen uint64

	cache *lru.Cache[cacheKey, ctxgraph.NodeSet]
}

// New returns a manager over a fresh graph. A cacheSize of zero disables
// result caching.
func New(cacheSize int) (*Manager, error) {
	return NewWithGraph(ctxgraph.NewGraph(), cacheSize)
}

func NewWithGraph(g *ctxgraph.Graph, cacheSize int) (*Manager, error) {
	m := &Manager{
		graph: g,
		log:   logger.Subsys("ctxmanager"),
		roots: ctxgraph.NewNodeSet(),
	}
	if cacheSize < 0 {
		return nil, fmt.Errorf("invalid query cache size %d", cacheSize)
	}
	if cacheSize > 0 {
		c, err := lru.New[cacheKey, ctxgraph.NodeSet](cacheSize)
		if err != nil {
			return nil, fmt.Errorf("failed to create query cache: %w", err)
		}
		m.cache = c
	}
	return m, nil
}

func MustNew(cacheSize int) *Manager {
	m, err := New(cacheSize)
	if err != nil {
		panic(err)
	}
	return m
}

func (m *Manager) Graph() *ctxgraph.Graph {
	return m.graph
}

// Root attaches element as a parentless node and registers it as a query
// root.
func (m *Manager) Root(element ctxgraph.Element) *ctxgraph.Node {
	n := m.graph.Attach(element)
	m.mu.Lock()
	m.roots.Add(n)
	m.rootsGen++
	m.mu.Unlock()
	m.purge()
	return n
}

// Unroot removes n from the root set and detaches it from the graph. It
// returns false when n was not a root.
func (m *Manager) Unroot(n *ctxgraph.Node) bool {
	m.mu.Lock()
	if !m.roots.Contains(n) {
		m.mu.Unlock()
		return false
	}
	m.roots.Remove(n)
	m.rootsGen++
	m.mu.Unlock()

	m.graph.Detach(n)
	m.purge()
	return true
}

// Roots returns a snapshot of the registered roots.
func (m *Manager) Roots() ctxgraph.NodeSet {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.roots.Clone()
}

// Query executes q against the roots. The returned set belongs to the caller.
func (m *Manager) Query(q *query.Query) ctxgraph.NodeSet {
	if q.IsEmpty() {
		return ctxgraph.NewNodeSet()
	}

	m.mu.RLock()
	key := cacheKey{q: q, graphGen: m.graph.Generation(), rootsGen: m.rootsGen}
	roots := m.roots.Clone()
	m.mu.RUnlock()

	if m.cache != nil {
		if res, ok := m.cache.Get(key); ok {
			return res.Clone()
		}
	}

	res := q.Execute(roots)
	if m.cache != nil {
		if m.graph.Generation() == key.graphGen {
			m.cache.Add(key, res.Clone())
		} else {
			errormetrics.ErrorTotalInc(errormetrics.QueryCacheStale)
		}
	}
	m.log.WithFields(logrus.Fields{
		logfields.Query: q.String(),
		"matches":       res.Cardinality(),
	}).Debug("executed query")
	return res
}

// QueryForSingleton executes q and returns its only result.
func (m *Manager) QueryForSingleton(q *query.Query) (*ctxgraph.Node, error) {
	res := m.Query(q)
	if res.Cardinality() != 1 {
		return nil, fmt.Errorf("%w: %q matched %d nodes", ErrNotSingleton, q, res.Cardinality())
	}
	n, _ := res.Pop()
	return n, nil
}

// purge drops results computed against root sets that no longer exist.
// Graph mutations need no purge: they change the generation in the key.
func (m *Manager) purge() {
	if m.cache != nil {
		m.cache.Purge()
	}
}
