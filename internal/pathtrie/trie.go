// Package pathtrie implements the path-component trie used by Core A's
// dependency inference; Core B's traversal does not use it. The trie has
// one node per distinct absolute path reached; lookups key children by a
// fixed-width chunked representation of the path component so that
// short-name comparisons collapse to a handful of word compares instead of
// walking a linked list of siblings.
package pathtrie

import (
	"path/filepath"
	"strings"
)

// chunkWidth is the number of bytes packed per uint64 chunk of a path
// component name. Names are zero-padded to a multiple of chunkWidth so two
// chunk slices of equal length can be compared with plain equality.
const chunkWidth = 8

// chunkKey is the map key type for a trie node's children: the UTF-8 bytes
// of a path component, zero-padded to a multiple of chunkWidth bytes. Two names
// compare equal iff their chunkKeys are byte-identical strings, so this is
// a single-word compare for names up to chunkWidth bytes (the overwhelming
// majority of real path components) and a short compare otherwise.
type chunkKey string

func makeChunkKey(name string) chunkKey {
	n := len(name)
	if n%chunkWidth == 0 && n != 0 {
		return chunkKey(name)
	}
	padded := make([]byte, ((n/chunkWidth)+1)*chunkWidth)
	copy(padded, name)
	return chunkKey(padded)
}

// Producer is the minimal interface a Core A task must satisfy to be
// attached to a trie node as its producer. It is declared here (rather than
// imported from replaycore) to avoid a cyclic dependency between the two
// packages; replaycore.Task satisfies it trivially.
type Producer interface {
	// ID returns a stable identifier for logging/debugging purposes.
	ID() string
}

// Node is one path component in the trie. Once a node's Producer is set,
// AnyAncestorHasProducer is set on every node already in its subtree, and
// every node inserted beneath it later inherits the flag when it is created.
type Node struct {
	Parent   *Node
	Name     string
	children map[chunkKey]*Node

	Producer Producer

	// AnyAncestorHasProducer is set on a node the first time an ancestor of
	// it is discovered to have a Producer. It is advisory bookkeeping for
	// callers; NearestProducerAncestor is the authoritative lookup.
	AnyAncestorHasProducer bool

	// IsExclusiveInput marks this node as an input that may not be
	// consumed by more than one task (move/delete targets).
	IsExclusiveInput bool

	// HasConsumer is set the first time some task links this node as an
	// input.
	HasConsumer bool

	// exclusiveOwner is the task that claimed this node as an exclusive
	// input, used to detect a second, conflicting claim.
	exclusiveOwner Producer

	// consumers records every task that has linked this node as a plain
	// (non-exclusive) input, so an exclusive claim can be checked against
	// consumption that happened before or after it, regardless of pass
	// order.
	consumers map[Producer]bool
}

// ExclusiveOwner returns the task that holds this node as an exclusive
// input, or nil.
func (n *Node) ExclusiveOwner() Producer { return n.exclusiveOwner }

// SetExclusiveOwner claims this node as an exclusive input for p.
func (n *Node) SetExclusiveOwner(p Producer) {
	n.IsExclusiveInput = true
	n.exclusiveOwner = p
}

// AddConsumer records p as having linked this node as a plain (non-
// exclusive) input. It is safe to call more than once, including with the
// same Producer across its own Inputs and ExclusiveInputs.
func (n *Node) AddConsumer(p Producer) {
	n.HasConsumer = true
	if n.consumers == nil {
		n.consumers = make(map[Producer]bool)
	}
	n.consumers[p] = true
}

// HasOtherConsumer reports whether some task other than except has linked
// this node as a plain input, used to reject an exclusive claim over a
// path another task already plainly consumes (spec.md §3 "Exclusive
// input": no other Task may also consume it).
func (n *Node) HasOtherConsumer(except Producer) bool {
	for p := range n.consumers {
		if p != except {
			return true
		}
	}
	return false
}

// Trie is a tree whose root represents "/" and whose edges are path
// components. The zero value is not usable; use New.
type Trie struct {
	root *Node
}

// New creates an empty trie rooted at "/".
func New() *Trie {
	return &Trie{root: &Node{Name: "/"}}
}

// Root returns the trie's root node.
func (t *Trie) Root() *Node { return t.root }

// splitComponents splits an absolute or relative path into its non-empty
// components, skipping leading/repeated separators exactly as spec.md's
// trie contract requires.
func splitComponents(path string) []string {
	clean := filepath.ToSlash(path)
	parts := strings.Split(clean, "/")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Insert walks path's components from the root, creating any missing
// children, and returns the deepest (terminal) node. Calling Insert twice
// with the same path returns the same *Node both times.
func (t *Trie) Insert(path string) *Node {
	node := t.root
	for _, comp := range splitComponents(path) {
		node = node.child(comp)
	}
	return node
}

// Lookup returns the node for path if it has already been inserted, and
// false otherwise. It never creates nodes.
func (t *Trie) Lookup(path string) (*Node, bool) {
	node := t.root
	for _, comp := range splitComponents(path) {
		key := makeChunkKey(comp)
		if node.children == nil {
			return nil, false
		}
		child, ok := node.children[key]
		if !ok {
			return nil, false
		}
		node = child
	}
	return node, true
}

func (n *Node) child(name string) *Node {
	key := makeChunkKey(name)
	if n.children == nil {
		n.children = make(map[chunkKey]*Node)
	}
	if c, ok := n.children[key]; ok {
		return c
	}
	c := &Node{Parent: n, Name: name, AnyAncestorHasProducer: n.Producer != nil || n.AnyAncestorHasProducer}
	n.children[key] = c
	return c
}

// FullPath reconstructs the absolute path represented by n by walking
// parent references to the root.
func (n *Node) FullPath() string {
	if n.Parent == nil {
		return "/"
	}
	var parts []string
	for cur := n; cur.Parent != nil; cur = cur.Parent {
		parts = append(parts, cur.Name)
	}
	// reverse
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return "/" + strings.Join(parts, "/")
}

// NearestProducerAncestor walks from n's parent toward the root and returns
// the first node carrying a Producer, or nil if none exists. This realizes
// spec.md's "implicit dependency": an input under (but not exactly at) a
// produced directory has an implicit edge to that directory's producer,
// with ties broken toward the nearest ancestor.
func (n *Node) NearestProducerAncestor() *Node {
	for cur := n.Parent; cur != nil; cur = cur.Parent {
		if cur.Producer != nil {
			return cur
		}
	}
	return nil
}

// SetProducer attaches p as n's producer and propagates
// AnyAncestorHasProducer to every node already present in n's subtree.
// A second call replaces the producer; detecting that duplicate-producer
// condition is left to the caller (replaycore rejects it unless Force is
// set).
func (n *Node) SetProducer(p Producer) {
	n.Producer = p
	n.propagateAncestorFlag()
}

func (n *Node) propagateAncestorFlag() {
	var walk func(*Node)
	walk = func(cur *Node) {
		for _, child := range cur.children {
			child.AnyAncestorHasProducer = true
			walk(child)
		}
	}
	walk(n)
}
