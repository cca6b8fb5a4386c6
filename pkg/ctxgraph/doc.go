// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of Tetragon

// Package ctxgraph implements the context graph: a DAG of nodes, each tagged
// with an immutable Element, that components join when they register and
// leave when they are torn down.
//
// A node can have several parents (a resource shared by two tiers), so the
// structure is a DAG rather than a tree. Ancestor and descendant closures are
// deduplicated on node identity, never on element equality.
//
// Mutations (Attach, Link, Unlink, Detach) are serialized by a graph-wide
// lock and publish copy-on-write neighbour maps. Readers load those maps
// atomically and never block, so a traversal running concurrently with
// mutations sees, for every node it visits, some consistent parent set.
package ctxgraph
