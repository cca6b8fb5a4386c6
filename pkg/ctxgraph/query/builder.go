// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of Tetragon

package query

// Builder accumulates a chain of navigation steps:
//
//	q := query.NewBuilder().Descendants().Filter(query.Identifier("cache")).Build()
type Builder struct {
	q *Query
}

// NewBuilder returns a builder whose query is initially the identity.
func NewBuilder() *Builder {
	return &Builder{q: identity}
}

func (b *Builder) then(q *Query) *Builder {
	b.q = Chain(b.q, q)
	return b
}

func (b *Builder) Children() *Builder        { return b.then(children) }
func (b *Builder) Parents() *Builder         { return b.then(parents) }
func (b *Builder) Descendants() *Builder     { return b.then(descendants) }
func (b *Builder) Ancestors() *Builder       { return b.then(ancestors) }
func (b *Builder) EnsureUnique() *Builder    { return b.then(ensureUnique) }
func (b *Builder) Filter(m Matcher) *Builder { return b.then(Filter(m)) }
func (b *Builder) Chain(q *Query) *Builder   { return b.then(q) }

// Empty turns the whole pipeline into the empty query.
func (b *Builder) Empty() *Builder { return b.then(empty) }

// Build returns the accumulated query. The builder can keep being extended;
// queries already built are not affected.
func (b *Builder) Build() *Query {
	return b.q
}
