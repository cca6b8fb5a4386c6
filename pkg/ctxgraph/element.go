// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of Tetragon

package ctxgraph

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Element is what a node represents: an opaque identifier (the kind of
// component) and a set of static attributes. Elements are immutable; the
// constructor copies the attribute map and accessors never hand it out.
type Element struct {
	identifier string
	attributes map[string]any
}

// NewElement builds an element. A nil attribute map is fine.
func NewElement(identifier string, attributes map[string]any) Element {
	return Element{
		identifier: identifier,
		attributes: maps.Clone(attributes),
	}
}

// Identifier returns the element type tag.
func (e Element) Identifier() string {
	return e.identifier
}

// Attribute returns the value stored under key. A missing key reports false.
func (e Element) Attribute(key string) (any, bool) {
	v, ok := e.attributes[key]
	return v, ok
}

// Attributes returns a copy of the attribute map.
func (e Element) Attributes() map[string]any {
	return maps.Clone(e.attributes)
}

func (e Element) String() string {
	keys := make([]string, 0, len(e.attributes))
	for k := range e.attributes {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	var sb strings.Builder
	sb.WriteString(e.identifier)
	sb.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%s=%v", k, e.attributes[k])
	}
	sb.WriteByte('}')
	return sb.String()
}
