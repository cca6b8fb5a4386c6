// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of Tetragon

package stats

import (
	"slices"

	"github.com/cilium/statgraph/pkg/ctxgraph"
	"github.com/cilium/statgraph/pkg/ctxgraph/query"
)

// Identifier of the graph nodes that carry a statistic, and the attributes
// set on them.
const (
	StatisticIdentifier = "statistic"

	AttrName = "name"
	AttrType = "type"
	AttrTags = "tags"
	AttrThis = "this"
)

// IsStatistic matches statistic nodes.
func IsStatistic() query.Matcher {
	return query.Identifier(StatisticIdentifier)
}

// Named matches statistic nodes registered under name.
func Named(name string) query.Matcher {
	return query.AllOf(IsStatistic(), query.Attribute(AttrName, name))
}

// OfType matches statistic nodes of the given type.
func OfType(typ StatisticType) query.Matcher {
	return query.AllOf(IsStatistic(), query.Attribute(AttrType, typ))
}

// Tagged matches statistic nodes carrying every one of tags.
func Tagged(tags ...string) query.Matcher {
	return query.AllOf(IsStatistic(), query.AttributeFunc(AttrTags, func(v any) bool {
		have, ok := v.([]string)
		if !ok {
			return false
		}
		for _, t := range tags {
			if !slices.Contains(have, t) {
				return false
			}
		}
		return true
	}))
}

// StatisticsOf selects the statistics registered directly on the input
// nodes, optionally narrowed by matchers.
func StatisticsOf(ms ...query.Matcher) *query.Query {
	return query.NewBuilder().Children().Filter(query.AllOf(append([]query.Matcher{IsStatistic()}, ms...)...)).Build()
}

// StatisticsUnder selects the statistics registered anywhere below the input
// nodes, optionally narrowed by matchers.
func StatisticsUnder(ms ...query.Matcher) *query.Query {
	return query.NewBuilder().Descendants().Filter(query.AllOf(append([]query.Matcher{IsStatistic()}, ms...)...)).Build()
}

// FromNode returns the statistic carried by a statistic node.
func FromNode(n *ctxgraph.Node) (Statistic, bool) {
	if n == nil || n.Element().Identifier() != StatisticIdentifier {
		return nil, false
	}
	v, ok := n.Element().Attribute(AttrThis)
	if !ok {
		return nil, false
	}
	s, ok := v.(Statistic)
	return s, ok
}

// NameOf returns the name a statistic node was registered under.
func NameOf(n *ctxgraph.Node) string {
	v, _ := n.Element().Attribute(AttrName)
	name, _ := v.(string)
	return name
}

// TagsOf returns the tags of a statistic node.
func TagsOf(n *ctxgraph.Node) []string {
	v, _ := n.Element().Attribute(AttrTags)
	tags, _ := v.([]string)
	return slices.Clone(tags)
}

// OwnerOf names the node a statistic node is registered on: its "name"
// attribute when it has one, its identifier otherwise.
func OwnerOf(n *ctxgraph.Node) string {
	owner := ""
	n.Parents().Each(func(p *ctxgraph.Node) bool {
		owner = p.Element().Identifier()
		if s, ok := p.Element().Attribute("name"); ok {
			if name, ok := s.(string); ok {
				owner = name
			}
		}
		return true
	})
	return owner
}
