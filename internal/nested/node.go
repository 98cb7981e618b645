// Package nested validates nested mutation input against the relation
// catalog and normalizes it into a tree of tagged operations. Invalid
// combinations are rejected here, before any write is planned.
package nested

import "tidb-nested-graphql/internal/relation"

// RootKind is the operation applied to the root record.
type RootKind int

const (
	RootUpdate RootKind = iota
	RootCreate
)

func (k RootKind) String() string {
	if k == RootCreate {
		return "create"
	}
	return "update"
}

// Mutation is a normalized root operation. Key and Values are keyed by
// column name.
type Mutation struct {
	Table     string
	Kind      RootKind
	Key       map[string]any
	Values    map[string]any
	Relations []*Node
}

// Node holds the operations requested through one relation.
type Node struct {
	Link relation.Link
	Ops  []Op
}

// Op is one of *CreateOp, *UpdateByKeyOp or *DeleteOthersOp.
type Op interface {
	op()
}

// CreateOp inserts a related row.
type CreateOp struct {
	Values    map[string]any
	Relations []*Node
}

// UpdateByKeyOp patches the related row identified by Key.
type UpdateByKeyOp struct {
	Key       map[string]any
	Patch     map[string]any
	Relations []*Node
}

// DeleteOthersOp removes related rows not created or updated by the node.
// It is only produced for reverse links whose related table has a primary key.
type DeleteOthersOp struct{}

func (*CreateOp) op()       {}
func (*UpdateByKeyOp) op()  {}
func (*DeleteOthersOp) op() {}

// Creates returns the node's create operations in input order.
func (n *Node) Creates() []*CreateOp {
	var out []*CreateOp
	for _, op := range n.Ops {
		if c, ok := op.(*CreateOp); ok {
			out = append(out, c)
		}
	}
	return out
}

// Updates returns the node's update operations.
func (n *Node) Updates() []*UpdateByKeyOp {
	var out []*UpdateByKeyOp
	for _, op := range n.Ops {
		if u, ok := op.(*UpdateByKeyOp); ok {
			out = append(out, u)
		}
	}
	return out
}

// DeletesOthers reports whether the node carries a DeleteOthersOp.
func (n *Node) DeletesOthers() bool {
	for _, op := range n.Ops {
		if _, ok := op.(*DeleteOthersOp); ok {
			return true
		}
	}
	return false
}
