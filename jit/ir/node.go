// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ir

import (
	"github.com/gomlx/exceptions"
)

// Use records one reference to a Value: either input Index of node User, or
// output Index of a Block (User == nil) when the value is returned from the
// block.
type Use struct {
	User  *Node
	Block *Block
	Index int
}

// Value is a typed edge of the use-def graph. It is produced either by a
// node (Node() != nil) or as a block input (for the top-level block, a graph
// input).
type Value struct {
	node   *Node
	block  *Block // owning block, when this is a block input.
	offset int
	name   string
	typ    Type
	uses   []Use
}

// Node that produces this value, or nil for block/graph inputs.
func (v *Value) Node() *Node { return v.node }

// Offset of this value among its producer's outputs (or the block's inputs).
func (v *Value) Offset() int { return v.offset }

// Type of the value.
func (v *Value) Type() Type { return v.typ }

// SetType sets the value's type and returns the value, for chaining.
func (v *Value) SetType(t Type) *Value {
	v.typ = t
	return v
}

// TensorType returns the value's type as a TensorType, if it is one.
func (v *Value) TensorType() (TensorType, bool) {
	t, ok := v.typ.(TensorType)
	return t, ok
}

// Name is the debug (and pattern placeholder) name of the value; may be
// empty.
func (v *Value) Name() string { return v.name }

// SetName sets the debug name and returns the value, for chaining.
func (v *Value) SetName(name string) *Value {
	v.name = name
	return v
}

// Uses returns a copy of the current uses of this value.
func (v *Value) Uses() []Use {
	uses := make([]Use, len(v.uses))
	copy(uses, v.uses)
	return uses
}

// HasUses reports whether any node input or block output references this
// value.
func (v *Value) HasUses() bool { return len(v.uses) > 0 }

func (v *Value) addUse(u Use) { v.uses = append(v.uses, u) }

func (v *Value) removeUse(u Use) {
	for ii, use := range v.uses {
		if use == u {
			v.uses = append(v.uses[:ii], v.uses[ii+1:]...)
			return
		}
	}
	exceptions.Panicf("removing a use that was never recorded on value %q", v.name)
}

// ReplaceAllUsesWith rewires every use of v to other. After it returns, v
// has no uses and can be safely destroyed along with its producer.
func (v *Value) ReplaceAllUsesWith(other *Value) {
	if v == other {
		return
	}
	for _, use := range v.uses {
		if use.User != nil {
			use.User.inputs[use.Index] = other
		} else {
			use.Block.outputs[use.Index] = other
		}
		other.addUse(use)
	}
	v.uses = nil
}

// Node is one operation instance in a block.
type Node struct {
	graph     *Graph
	block     *Block
	kind      Symbol
	id        NodeID
	inputs    []*Value
	outputs   []*Value
	blocks    []*Block
	attr      *Literal // set only on KindConstant nodes.
	destroyed bool
}

// Kind of the operation.
func (n *Node) Kind() Symbol { return n.kind }

// Graph owning this node.
func (n *Node) Graph() *Graph { return n.graph }

// Block this node currently belongs to; nil after Destroy or before
// insertion.
func (n *Node) Block() *Block { return n.block }

// ID is the unique id of the node within its graph.
func (n *Node) ID() NodeID { return n.id }

// Destroyed reports whether Destroy was called on this node.
func (n *Node) Destroyed() bool { return n.destroyed }

// Inputs returns a copy of the node's input values.
func (n *Node) Inputs() []*Value {
	inputs := make([]*Value, len(n.inputs))
	copy(inputs, n.inputs)
	return inputs
}

// NumInputs is the number of inputs.
func (n *Node) NumInputs() int { return len(n.inputs) }

// Input returns the i-th input value.
func (n *Node) Input(i int) *Value { return n.inputs[i] }

// AddInput appends v as the node's last input, recording the use. Returns
// the node, for chaining.
func (n *Node) AddInput(v *Value) *Node {
	n.inputs = append(n.inputs, v)
	v.addUse(Use{User: n, Index: len(n.inputs) - 1})
	return n
}

// ReplaceInput replaces input i with v, updating use records on both values.
func (n *Node) ReplaceInput(i int, v *Value) {
	old := n.inputs[i]
	old.removeUse(Use{User: n, Index: i})
	n.inputs[i] = v
	v.addUse(Use{User: n, Index: i})
}

// RemoveAllInputs drops every input, clearing the corresponding uses. This
// is the first phase of the two-phase deletion discipline: breaking use-def
// edges first lets a later Destroy succeed even when deleted nodes reference
// each other.
func (n *Node) RemoveAllInputs() {
	for ii, v := range n.inputs {
		v.removeUse(Use{User: n, Index: ii})
	}
	n.inputs = nil
}

// Outputs returns a copy of the node's output values.
func (n *Node) Outputs() []*Value {
	outputs := make([]*Value, len(n.outputs))
	copy(outputs, n.outputs)
	return outputs
}

// NumOutputs is the number of outputs.
func (n *Node) NumOutputs() int { return len(n.outputs) }

// Output returns the node's single output. It panics if the node does not
// have exactly one output.
func (n *Node) Output() *Value {
	if len(n.outputs) != 1 {
		exceptions.Panicf("node %s has %d outputs, expected exactly 1", n.kind, len(n.outputs))
	}
	return n.outputs[0]
}

// Blocks returns a copy of the node's nested blocks.
func (n *Node) Blocks() []*Block {
	blocks := make([]*Block, len(n.blocks))
	copy(blocks, n.blocks)
	return blocks
}

// AddBlock creates and returns a new nested block owned by this node.
func (n *Node) AddBlock() *Block {
	b := &Block{graph: n.graph, owner: n}
	n.blocks = append(n.blocks, b)
	return b
}

// Attr returns the literal attribute of a constant node, nil otherwise.
func (n *Node) Attr() *Literal { return n.attr }

// IsConstant reports whether this is a prim::Constant node.
func (n *Node) IsConstant() bool { return n.kind == KindConstant }

// Destroy removes the node from its block and invalidates it. All inputs
// are removed first; it panics if any output still has uses, which is the
// invariant callers must establish with ReplaceAllUsesWith before deleting.
func (n *Node) Destroy() {
	if n.destroyed {
		return
	}
	for _, out := range n.outputs {
		if out.HasUses() {
			exceptions.Panicf("cannot destroy node %s: output %%%s still has %d use(s)",
				n.kind, out.name, len(out.uses))
		}
	}
	n.RemoveAllInputs()
	if n.block != nil {
		n.block.removeNode(n)
		n.block = nil
	}
	n.destroyed = true
}
