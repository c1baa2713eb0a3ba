package model

import "github.com/google/uuid"

// AssignIndices renumbers every node under root with a single pre-order
// counter starting at 0 and returns the node count.
func AssignIndices(root *GenericElement) int {
	next := 0
	Walk(root, func(el *GenericElement, _ int) bool {
		el.Index = next
		next++
		return true
	})
	return next
}

// NodeMap resolves an index to a node of exactly one snapshot. It is
// read-only once built and is replaced, never merged, by the next snapshot.
type NodeMap struct {
	generation string
	nodes      map[int]*GenericElement
}

// BuildNodeMap walks root once and stamps the map with a fresh generation.
// Indices must already be assigned.
func BuildNodeMap(root *GenericElement) *NodeMap {
	m := &NodeMap{
		generation: uuid.NewString(),
		nodes:      make(map[int]*GenericElement),
	}
	Walk(root, func(el *GenericElement, _ int) bool {
		m.nodes[el.Index] = el
		return true
	})
	return m
}

// Generation identifies the snapshot this map belongs to.
func (m *NodeMap) Generation() string {
	if m == nil {
		return ""
	}
	return m.generation
}

// Lookup returns the node with the given index.
func (m *NodeMap) Lookup(index int) (*GenericElement, bool) {
	if m == nil {
		return nil, false
	}
	el, ok := m.nodes[index]
	return el, ok
}

// Len returns the number of indexed nodes.
func (m *NodeMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.nodes)
}
