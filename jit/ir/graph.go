// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ir

import (
	"github.com/gomlx/exceptions"
)

// Block is an ordered sequence of nodes. The top-level block belongs to the
// Graph; nested blocks belong to control-construct nodes.
type Block struct {
	graph   *Graph
	owner   *Node
	nodes   []*Node
	inputs  []*Value
	outputs []*Value
}

// Graph this block belongs to.
func (b *Block) Graph() *Graph { return b.graph }

// Owner is the node this block is nested under, nil for the top-level block.
func (b *Block) Owner() *Node { return b.owner }

// Nodes returns a snapshot of the block's nodes, safe to range over while
// inserting or destroying nodes.
func (b *Block) Nodes() []*Node {
	nodes := make([]*Node, len(b.nodes))
	copy(nodes, b.nodes)
	return nodes
}

// NumNodes is the current number of nodes in the block.
func (b *Block) NumNodes() int { return len(b.nodes) }

// AddInput adds a block input (for the top-level block, a graph input) with
// the given debug name and type.
func (b *Block) AddInput(name string, t Type) *Value {
	v := &Value{block: b, offset: len(b.inputs), name: name, typ: t}
	b.inputs = append(b.inputs, v)
	return v
}

// Inputs returns a copy of the block's input values.
func (b *Block) Inputs() []*Value {
	inputs := make([]*Value, len(b.inputs))
	copy(inputs, b.inputs)
	return inputs
}

// RegisterOutput appends v to the block's outputs. Registering counts as a
// use, so producers of block outputs are never dead.
func (b *Block) RegisterOutput(v *Value) {
	b.outputs = append(b.outputs, v)
	v.addUse(Use{Block: b, Index: len(b.outputs) - 1})
}

// Outputs returns a copy of the block's output values.
func (b *Block) Outputs() []*Value {
	outputs := make([]*Value, len(b.outputs))
	copy(outputs, b.outputs)
	return outputs
}

func (b *Block) appendNode(n *Node) {
	n.block = b
	b.nodes = append(b.nodes, n)
}

func (b *Block) insertNodeBefore(n, next *Node) {
	for ii, cur := range b.nodes {
		if cur == next {
			n.block = b
			b.nodes = append(b.nodes[:ii], append([]*Node{n}, b.nodes[ii:]...)...)
			return
		}
	}
	exceptions.Panicf("insert point node %s is not in the target block", next.kind)
}

func (b *Block) removeNode(n *Node) {
	for ii, cur := range b.nodes {
		if cur == n {
			b.nodes = append(b.nodes[:ii], b.nodes[ii+1:]...)
			return
		}
	}
	exceptions.Panicf("removing node %s that is not in its block", n.kind)
}

// Graph owns the top-level block of a dataflow graph and the insert-point
// cursor used when synthesizing new nodes.
type Graph struct {
	name   string
	block  *Block
	nextID NodeID

	// Insert point: new nodes go right before insertBefore, or at the end of
	// insertBlock when insertBefore is nil.
	insertBlock  *Block
	insertBefore *Node
}

// New creates an empty graph with the given debug name.
func New(name string) *Graph {
	g := &Graph{name: name}
	g.block = &Block{graph: g}
	g.insertBlock = g.block
	return g
}

// Name of the graph.
func (g *Graph) Name() string { return g.name }

// Block returns the top-level block.
func (g *Graph) Block() *Block { return g.block }

// AddInput adds a graph input with the given debug name and type.
func (g *Graph) AddInput(name string, t Type) *Value {
	return g.block.AddInput(name, t)
}

// Inputs returns the graph inputs.
func (g *Graph) Inputs() []*Value { return g.block.Inputs() }

// RegisterOutput marks v as a graph output; this counts as a use.
func (g *Graph) RegisterOutput(v *Value) { g.block.RegisterOutput(v) }

// Outputs returns the graph outputs.
func (g *Graph) Outputs() []*Value { return g.block.Outputs() }

// Create builds a new node of the given kind with numOutputs untyped
// outputs. The node is not yet part of any block: use InsertNode.
func (g *Graph) Create(kind Symbol, numOutputs int) *Node {
	n := &Node{graph: g, kind: kind, id: g.nextID}
	g.nextID++
	for ii := 0; ii < numOutputs; ii++ {
		n.outputs = append(n.outputs, &Value{node: n, offset: ii, typ: AnyType{}})
	}
	return n
}

// InsertNode places n at the current insert point and returns it.
func (g *Graph) InsertNode(n *Node) *Node {
	if g.insertBefore != nil {
		g.insertBefore.block.insertNodeBefore(n, g.insertBefore)
	} else {
		g.insertBlock.appendNode(n)
	}
	return n
}

// SetInsertBefore moves the insert point right before the given node and
// returns a function restoring the previous insert point:
//
//	restore := g.SetInsertBefore(n)
//	defer restore()
func (g *Graph) SetInsertBefore(n *Node) (restore func()) {
	prevBlock, prevBefore := g.insertBlock, g.insertBefore
	g.insertBlock, g.insertBefore = n.block, n
	return func() { g.insertBlock, g.insertBefore = prevBlock, prevBefore }
}

// SetInsertAtEndOf moves the insert point to the end of the given block and
// returns a function restoring the previous insert point.
func (g *Graph) SetInsertAtEndOf(b *Block) (restore func()) {
	prevBlock, prevBefore := g.insertBlock, g.insertBefore
	g.insertBlock, g.insertBefore = b, nil
	return func() { g.insertBlock, g.insertBefore = prevBlock, prevBefore }
}

// InsertConstant inserts a prim::Constant node holding the literal at the
// current insert point and returns its output value, typed with the
// literal's default type (override with Value.SetType when the layout or
// device matters).
func (g *Graph) InsertConstant(lit *Literal) *Value {
	n := g.Create(KindConstant, 1)
	n.attr = lit
	n.Output().SetType(lit.DefaultType())
	g.InsertNode(n)
	return n.Output()
}

// WalkBlocks traverses the block tree depth-first, mirroring how all the
// mutating passes in this repository recurse: for every node, nested blocks
// are fully processed before nodeFn sees the node itself, and blockFn (if
// not nil) runs once per block after all its nodes were visited.
//
// Iteration is over node snapshots, so nodeFn may insert or destroy nodes;
// nodes destroyed by an earlier visit are skipped.
func WalkBlocks(b *Block, nodeFn func(*Node), blockFn func(*Block)) {
	for _, n := range b.Nodes() {
		if n.Destroyed() {
			continue
		}
		for _, nested := range n.Blocks() {
			WalkBlocks(nested, nodeFn, blockFn)
		}
		if nodeFn != nil && !n.Destroyed() {
			nodeFn(n)
		}
	}
	if blockFn != nil {
		blockFn(b)
	}
}
