// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ir

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUseDefWiring(t *testing.T) {
	g := New("usedef")
	x := g.AddInput("x", AnyType{})

	n := g.InsertNode(g.Create(Symbol("test::op"), 1).AddInput(x).AddInput(x))
	require.Equal(t, 2, n.NumInputs())
	require.Len(t, x.Uses(), 2)

	other := g.InsertNode(g.Create(Symbol("test::other"), 1))
	n.ReplaceInput(1, other.Output())
	require.Len(t, x.Uses(), 1)
	require.Len(t, other.Output().Uses(), 1)
	require.Same(t, other.Output(), n.Input(1))
}

func TestReplaceAllUsesWith(t *testing.T) {
	g := New("replace")
	x := g.AddInput("x", AnyType{})
	a := g.InsertNode(g.Create(Symbol("test::a"), 1).AddInput(x))
	b := g.InsertNode(g.Create(Symbol("test::b"), 1).AddInput(a.Output()))
	g.RegisterOutput(a.Output())

	repl := g.InsertNode(g.Create(Symbol("test::c"), 1).AddInput(x))
	a.Output().ReplaceAllUsesWith(repl.Output())

	require.False(t, a.Output().HasUses())
	require.Same(t, repl.Output(), b.Input(0))
	require.Same(t, repl.Output(), g.Outputs()[0])
	require.Len(t, repl.Output().Uses(), 2)
}

func TestDestroyRequiresNoUses(t *testing.T) {
	g := New("destroy")
	x := g.AddInput("x", AnyType{})
	a := g.InsertNode(g.Create(Symbol("test::a"), 1).AddInput(x))
	b := g.InsertNode(g.Create(Symbol("test::b"), 1).AddInput(a.Output()))

	require.Panics(t, func() { a.Destroy() })

	// Destroying the consumer releases the producer.
	b.Destroy()
	require.True(t, b.Destroyed())
	require.NotPanics(t, func() { a.Destroy() })
	require.Equal(t, 0, g.Block().NumNodes())
	require.False(t, x.HasUses())
}

func TestTwoPhaseDeletion(t *testing.T) {
	// a's output feeds b; destroying both requires inputs cleared on both
	// before either is destroyed, in arbitrary order.
	g := New("twophase")
	x := g.AddInput("x", AnyType{})
	a := g.InsertNode(g.Create(Symbol("test::a"), 1).AddInput(x))
	b := g.InsertNode(g.Create(Symbol("test::b"), 1).AddInput(a.Output()))

	for _, n := range []*Node{a, b} {
		n.RemoveAllInputs()
	}
	require.NotPanics(t, func() {
		a.Destroy()
		b.Destroy()
	})
}

func TestInsertPoint(t *testing.T) {
	g := New("insert")
	x := g.AddInput("x", AnyType{})
	a := g.InsertNode(g.Create(Symbol("test::a"), 1).AddInput(x))
	b := g.InsertNode(g.Create(Symbol("test::b"), 1).AddInput(a.Output()))

	restore := g.SetInsertBefore(b)
	c := g.InsertConstant(NewString("hello"))
	restore()
	d := g.InsertNode(g.Create(Symbol("test::d"), 1).AddInput(c))

	nodes := g.Block().Nodes()
	require.Len(t, nodes, 4)
	assert.Same(t, a, nodes[0])
	assert.Same(t, c.Node(), nodes[1])
	assert.Same(t, b, nodes[2])
	assert.Same(t, d, nodes[3])

	lit, ok := AsLiteral(c)
	require.True(t, ok)
	assert.Equal(t, "hello", lit.Str())
	assert.IsType(t, StringType{}, c.Type())
}

func TestWalkBlocksOrder(t *testing.T) {
	g := New("walk")
	outer := g.InsertNode(g.Create(Symbol("test::outer"), 1))
	nested := outer.AddBlock()
	inner := g.Create(Symbol("test::inner"), 1)
	nested.appendNode(inner)
	g.InsertNode(g.Create(Symbol("test::after"), 1))

	var visited []string
	WalkBlocks(g.Block(), func(n *Node) {
		visited = append(visited, string(n.Kind()))
	}, func(b *Block) {
		visited = append(visited, "block-done")
	})
	// Nested block is fully processed (including its per-block hook) before
	// the owning node is visited.
	require.Equal(t, []string{"test::inner", "block-done", "test::outer", "test::after", "block-done"}, visited)
}

func TestRunNodeIfInputsAreConstant(t *testing.T) {
	g := New("eval")
	lc := g.Create(KindListConstruct, 1)
	lc.Output().SetType(IntListType{})
	lc.AddInput(g.InsertConstant(NewInt(3)))
	lc.AddInput(g.InsertConstant(NewInt(4)))
	g.InsertNode(lc)

	outs, err := RunNodeIfInputsAreConstant(lc)
	require.NoError(t, err)
	require.Len(t, outs, 1)
	assert.Equal(t, []int64{3, 4}, outs[0].Ints())

	// Scalar list flavor.
	sc := g.Create(KindListConstruct, 1)
	sc.Output().SetType(ScalarListType{})
	sc.AddInput(g.InsertConstant(NewScalar(0.5)))
	g.InsertNode(sc)
	outs, err = RunNodeIfInputsAreConstant(sc)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5}, outs[0].Scalars())

	// Non-constant input: not evaluable, no error.
	free := g.AddInput("free", IntType{})
	lc2 := g.InsertNode(g.Create(KindListConstruct, 1).AddInput(free))
	outs, err = RunNodeIfInputsAreConstant(lc2)
	require.NoError(t, err)
	require.Nil(t, outs)

	// No evaluator registered for the kind: not evaluable, no error.
	unknown := g.InsertNode(g.Create(Symbol("test::unknown"), 1).AddInput(g.InsertConstant(NewInt(1))))
	outs, err = RunNodeIfInputsAreConstant(unknown)
	require.NoError(t, err)
	require.Nil(t, outs)
}

func TestPrinterCanonicalNumbering(t *testing.T) {
	build := func() *Graph {
		g := New("print")
		x := g.AddInput("x", AnyType{})
		a := g.InsertNode(g.Create(Symbol("test::a"), 1).AddInput(x))
		relu := g.InsertNode(g.Create(KindRelu, 1).AddInput(a.Output()))
		g.RegisterOutput(relu.Output())
		return g
	}
	g1, g2 := build(), build()
	require.Equal(t, g1.String(), g2.String())
	assert.True(t, strings.HasPrefix(g1.String(), "graph(%x : *):\n"))
	assert.Contains(t, g1.String(), "aten::relu")
	assert.Contains(t, g1.String(), "return (")
}

func TestLiteralEqual(t *testing.T) {
	assert.True(t, NewIntList(1, 2).Equal(NewIntList(1, 2)))
	assert.False(t, NewIntList(1, 2).Equal(NewIntList(2, 1)))
	assert.True(t, NewNone().Equal(NewNone()))
	assert.False(t, NewString("relu").Equal(NewString("sum")))
	assert.False(t, NewString("1").Equal(NewInt(1)))
	assert.Equal(t, 2.0, NewInt(2).Scalar())
}
