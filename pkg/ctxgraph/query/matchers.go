// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of Tetragon

package query

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/cilium/statgraph/pkg/ctxgraph"
)

// Matcher is a predicate over a node's element. A matcher that cannot
// evaluate on an element, for instance because an attribute is missing,
// reports a non-match.
type Matcher interface {
	Matches(e ctxgraph.Element) bool
}

type matcher struct {
	desc string
	fn   func(ctxgraph.Element) bool
}

func (m matcher) Matches(e ctxgraph.Element) bool { return m.fn(e) }
func (m matcher) String() string                  { return m.desc }

// MatcherFunc wraps fn into a Matcher described by desc.
func MatcherFunc(desc string, fn func(ctxgraph.Element) bool) Matcher {
	return matcher{desc: desc, fn: fn}
}

func describe(m Matcher) string {
	if s, ok := m.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%T", m)
}

// Any matches every element.
func Any() Matcher {
	return matcher{desc: "any", fn: func(ctxgraph.Element) bool { return true }}
}

// Identifier matches elements with the given identifier.
func Identifier(id string) Matcher {
	return matcher{
		desc: "identifier=" + id,
		fn:   func(e ctxgraph.Element) bool { return e.Identifier() == id },
	}
}

// HasAttribute matches elements carrying key, whatever its value.
func HasAttribute(key string) Matcher {
	return matcher{
		desc: "has(" + key + ")",
		fn: func(e ctxgraph.Element) bool {
			_, ok := e.Attribute(key)
			return ok
		},
	}
}

// Attribute matches elements whose attribute key equals value. Values that
// are not comparable (slices, maps) are compared with reflect.DeepEqual.
func Attribute(key string, value any) Matcher {
	return matcher{
		desc: fmt.Sprintf("%s=%v", key, value),
		fn: func(e ctxgraph.Element) bool {
			v, ok := e.Attribute(key)
			if !ok {
				return false
			}
			return equal(v, value)
		},
	}
}

// AttributeFunc matches elements whose attribute key satisfies fn. The
// predicate is not called when the attribute is missing.
func AttributeFunc(key string, fn func(any) bool) Matcher {
	return matcher{
		desc: key + "~func",
		fn: func(e ctxgraph.Element) bool {
			v, ok := e.Attribute(key)
			return ok && fn(v)
		},
	}
}

// AllOf matches when every matcher does. With no matchers it matches all.
func AllOf(ms ...Matcher) Matcher {
	return matcher{
		desc: "all(" + describeAll(ms) + ")",
		fn: func(e ctxgraph.Element) bool {
			for _, m := range ms {
				if !m.Matches(e) {
					return false
				}
			}
			return true
		},
	}
}

// AnyOf matches when at least one matcher does. With no matchers it matches
// nothing.
func AnyOf(ms ...Matcher) Matcher {
	return matcher{
		desc: "any(" + describeAll(ms) + ")",
		fn: func(e ctxgraph.Element) bool {
			for _, m := range ms {
				if m.Matches(e) {
					return true
				}
			}
			return false
		},
	}
}

// Not negates m.
func Not(m Matcher) Matcher {
	return matcher{
		desc: "not(" + describe(m) + ")",
		fn:   func(e ctxgraph.Element) bool { return !m.Matches(e) },
	}
}

func describeAll(ms []Matcher) string {
	parts := make([]string, len(ms))
	for i, m := range ms {
		parts[i] = describe(m)
	}
	return strings.Join(parts, ", ")
}

func equal(a, b any) bool {
	if a == nil || b == nil {
		return a == b
	}
	// a struct type with an interface field is comparable, its values may not be
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Type() == vb.Type() && va.Comparable() && vb.Comparable() {
		return a == b
	}
	return reflect.DeepEqual(a, b)
}
