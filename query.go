package depot

import (
	"github.com/TheBitDrifter/mask"
)

type Operation int

const (
	OpAnd Operation = iota
	OpOr
	OpNot
)

type compositeNode struct {
	op         Operation
	children   []QueryNode
	components []Component
}

type leafNode struct {
	components []Component
}

type query struct {
	root QueryNode
}

func newQuery() Query {
	return &query{}
}

func newCompositeNode(op Operation, components []Component) *compositeNode {
	return &compositeNode{
		op:         op,
		children:   make([]QueryNode, 0),
		components: components,
	}
}

func newLeafNode(components []Component) *leafNode {
	return &leafNode{components: components}
}

func componentMask(components []Component) mask.Mask {
	var m mask.Mask
	for _, comp := range components {
		m.Mark(uint32(comp.ID()))
	}
	return m
}

func (n *compositeNode) Evaluate(arch Archetype, storage Storage) bool {
	nodeMask := componentMask(n.components)
	archeMask := arch.(*archetype).mask

	switch n.op {
	case OpAnd:
		if !archeMask.ContainsAll(nodeMask) {
			return false
		}
		for _, child := range n.children {
			if !child.Evaluate(arch, storage) {
				return false
			}
		}
		return true

	case OpOr:
		if archeMask.ContainsAny(nodeMask) {
			return true
		}
		for _, child := range n.children {
			if child.Evaluate(arch, storage) {
				return true
			}
		}
		return false

	case OpNot:
		if len(n.children) == 0 {
			return archeMask.ContainsNone(nodeMask)
		}
		for _, child := range n.children {
			if child.Evaluate(arch, storage) {
				return false
			}
		}
		return !archeMask.ContainsAny(nodeMask)
	}
	return false
}

func (n *leafNode) Evaluate(arch Archetype, storage Storage) bool {
	nodeMask := componentMask(n.components)
	return arch.(*archetype).mask.ContainsAll(nodeMask)
}

func (q *query) And(items ...interface{}) QueryNode {
	components, children := q.processItems(items...)
	node := newCompositeNode(OpAnd, components)
	node.children = children
	if q.root == nil {
		q.root = node
	}
	return node
}

func (q *query) Or(items ...interface{}) QueryNode {
	components, children := q.processItems(items...)
	node := newCompositeNode(OpOr, components)
	node.children = children
	if q.root == nil {
		q.root = node
	}
	return node
}

func (q *query) Not(items ...interface{}) QueryNode {
	components, children := q.processItems(items...)
	node := newCompositeNode(OpNot, components)
	node.children = children
	if q.root == nil {
		q.root = node
	}
	return node
}

func (q *query) processItems(items ...interface{}) ([]Component, []QueryNode) {
	components := make([]Component, 0)
	children := make([]QueryNode, 0)

	for _, item := range items {
		switch v := item.(type) {
		case Component:
			components = append(components, v)
		case []Component:
			components = append(components, v...)
		case QueryNode:
			children = append(children, v)
		}
	}

	return components, children
}

func (q *query) Evaluate(arch Archetype, storage Storage) bool {
	if q.root == nil {
		return false
	}
	return q.root.Evaluate(arch, storage)
}

// signatureNode matches archetypes containing every required component and
// none of the excluded ones. Systems declare their matches this way.
type signatureNode struct {
	required mask.Mask
	excluded mask.Mask
}

// newSignatureQuery validates that the two sets are disjoint; an overlap can
// never match and is a ConflictingQueryError.
func newSignatureQuery(required, excluded []Component) (QueryNode, error) {
	seen := make(map[ComponentTypeID]Component, len(required))
	for _, c := range required {
		seen[c.ID()] = c
	}
	for _, c := range excluded {
		if _, ok := seen[c.ID()]; ok {
			return nil, ConflictingQueryError{Component: c}
		}
	}
	return &signatureNode{
		required: componentMask(required),
		excluded: componentMask(excluded),
	}, nil
}

func (n *signatureNode) Evaluate(arch Archetype, storage Storage) bool {
	archeMask := arch.(*archetype).mask
	if !archeMask.ContainsAll(n.required) {
		return false
	}
	// ContainsNone reports false for an empty mask, so an absent excluded
	// set has to short-circuit rather than reject every archetype.
	return n.excluded.IsEmpty() || archeMask.ContainsNone(n.excluded)
}
