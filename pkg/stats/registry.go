// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of Tetragon

package stats

import (
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"

	"github.com/cilium/statgraph/pkg/ctxgraph"
	"github.com/cilium/statgraph/pkg/lock"
	"github.com/cilium/statgraph/pkg/logger"
	"github.com/cilium/statgraph/pkg/logger/logfields"
	"github.com/cilium/statgraph/pkg/metrics/errormetrics"
)

var (
	ErrDuplicateStatistic = errors.New("statistic already registered")
	ErrNoOwner            = errors.New("statistic owner is nil")
	ErrNilStatistic       = errors.New("statistic is nil")
)

// Registry attaches statistics to the graph as children of their owner
// node. It keeps track of what it registered so that Close can unwind it.
type Registry struct {
	graph *ctxgraph.Graph
	log   logrus.FieldLogger

	mu         lock.Mutex
	registered ctxgraph.NodeSet
}

func NewRegistry(g *ctxgraph.Graph) *Registry {
	return &Registry{
		graph:      g,
		log:        logger.Subsys("stats"),
		registered: ctxgraph.NewNodeSet(),
	}
}

func (r *Registry) Graph() *ctxgraph.Graph {
	return r.graph
}

// Register attaches s under owner. Names are unique per owner.
func (r *Registry) Register(owner *ctxgraph.Node, name string, s Statistic, tags ...string) (*ctxgraph.Node, error) {
	if owner == nil {
		return nil, fmt.Errorf("registering %q: %w", name, ErrNoOwner)
	}
	if s == nil {
		return nil, fmt.Errorf("registering %q: %w", name, ErrNilStatistic)
	}
	tags = slices.Clone(tags)
	slices.Sort(tags)

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.find(owner, name); ok {
		errormetrics.ErrorTotalInc(errormetrics.StatisticDuplicate)
		return nil, fmt.Errorf("registering %q on %s: %w", name, owner, ErrDuplicateStatistic)
	}
	n := r.graph.Attach(ctxgraph.NewElement(StatisticIdentifier, map[string]any{
		AttrName: name,
		AttrType: s.Type(),
		AttrTags: tags,
		AttrThis: s,
	}), owner)
	r.registered.Add(n)

	r.log.WithFields(logrus.Fields{
		logfields.Node:      owner,
		logfields.Statistic: name,
	}).Debug("Registered statistic")
	return n, nil
}

// RegisterAll registers every statistic in stats under owner. Failures do not
// stop the remaining registrations; they are all reported together.
func (r *Registry) RegisterAll(owner *ctxgraph.Node, stats map[string]Statistic, tags ...string) error {
	var err error
	for name, s := range stats {
		if _, regErr := r.Register(owner, name, s, tags...); regErr != nil {
			err = multierr.Append(err, regErr)
		}
	}
	return err
}

// Find returns the statistic registered under name on owner. An absent
// statistic is reported as (nil, false).
func (r *Registry) Find(owner *ctxgraph.Node, name string) (Statistic, bool) {
	n, ok := r.find(owner, name)
	if !ok {
		return nil, false
	}
	return FromNode(n)
}

func (r *Registry) find(owner *ctxgraph.Node, name string) (*ctxgraph.Node, bool) {
	if owner == nil {
		return nil, false
	}
	res := StatisticsOf(Named(name)).Execute(ctxgraph.NewNodeSet(owner))
	return res.Pop()
}

// Unregister detaches the statistic registered under name on owner.
func (r *Registry) Unregister(owner *ctxgraph.Node, name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.find(owner, name)
	if !ok {
		return false
	}
	r.registered.Remove(n)
	return r.graph.Detach(n)
}

// Close detaches every statistic registered through r and closes those that
// implement io.Closer.
func (r *Registry) Close() error {
	r.mu.Lock()
	nodes := r.registered.ToSlice()
	r.registered.Clear()
	r.mu.Unlock()

	var err error
	for _, n := range nodes {
		r.graph.Detach(n)
		s, ok := FromNode(n)
		if !ok {
			continue
		}
		if c, ok := s.(io.Closer); ok {
			if cerr := c.Close(); cerr != nil {
				errormetrics.ErrorTotalInc(errormetrics.StatisticCloseFailed)
				err = multierr.Append(err, fmt.Errorf("closing statistic %q: %w", NameOf(n), cerr))
			}
		}
	}
	return err
}

// Lookup is Find with the value type checked.
func Lookup[T any](r *Registry, owner *ctxgraph.Node, name string) (ValueStatistic[T], bool) {
	s, ok := r.Find(owner, name)
	if !ok {
		return nil, false
	}
	vs, ok := s.(ValueStatistic[T])
	return vs, ok
}
