// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package mkldnn

import (
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wqfish/pytorch/backends/onednn"
	"github.com/wqfish/pytorch/jit"
	"github.com/wqfish/pytorch/jit/ir"
	"github.com/wqfish/pytorch/types/shapes"
	"github.com/wqfish/pytorch/types/tensors"
	"github.com/wqfish/pytorch/types/xslices"
)

func testValues(size int) []float32 {
	flat := make([]float32, size)
	for ii := range flat {
		flat[ii] = float32((ii*31+7)%17)/8.5 - 1
	}
	return flat
}

// addConv2d appends a 3x3, stride-1, padding-1 aten::conv2d with constant
// weight and bias, eligible for prepacking: channels-last activation and
// weight, CPU device, fully known sizes.
func addConv2d(g *ir.Graph, input *ir.Value, inputSizes []int, outChannels, groups int) *ir.Node {
	icPerGroup := inputSizes[1] / groups
	weight := tensors.FromFlat(shapes.Make(dtypes.Float32, outChannels, icPerGroup, 3, 3),
		testValues(outChannels*icPerGroup*9))
	w := g.InsertConstant(ir.NewTensor(weight))
	w.SetType(ir.MakeTensorType(dtypes.Float32, weight.Shape().Dimensions, ir.FormatChannelsLast))
	bias := tensors.FromFlat(shapes.Make(dtypes.Float32, outChannels), testValues(outChannels))

	conv := g.Create(ir.KindConv2d, 1)
	conv.AddInput(input).AddInput(w)
	conv.AddInput(g.InsertConstant(ir.NewTensor(bias)))
	conv.AddInput(g.InsertConstant(ir.NewIntList(1, 1))) // stride
	conv.AddInput(g.InsertConstant(ir.NewIntList(1, 1))) // padding
	conv.AddInput(g.InsertConstant(ir.NewIntList(1, 1))) // dilation
	conv.AddInput(g.InsertConstant(ir.NewInt(int64(groups))))
	outSizes := []int{inputSizes[0], outChannels, inputSizes[2], inputSizes[3]}
	conv.Output().SetType(ir.MakeTensorType(dtypes.Float32, outSizes, ir.FormatChannelsLast))
	g.InsertNode(conv)
	return conv
}

func newConvGraph(name string, inputSizes []int, outChannels int) (*ir.Graph, *ir.Value, *ir.Node) {
	g := ir.New(name)
	input := g.AddInput("input", ir.MakeTensorType(dtypes.Float32, inputSizes, ir.FormatChannelsLast))
	conv := addConv2d(g, input, inputSizes, outChannels, 1)
	return g, input, conv
}

func countKind(g *ir.Graph, kind ir.Symbol) int {
	count := 0
	ir.WalkBlocks(g.Block(), func(n *ir.Node) {
		if n.Kind() == kind {
			count++
		}
	}, nil)
	return count
}

// frozenContexts collects the frozen ConvOpContext constants of the graph.
func frozenContexts(t *testing.T, g *ir.Graph) []*onednn.PackedConv {
	t.Helper()
	var contexts []*onednn.PackedConv
	ir.WalkBlocks(g.Block(), func(n *ir.Node) {
		if !n.IsConstant() || n.Attr().Kind() != ir.LiteralObject {
			return
		}
		packed, ok := n.Attr().Obj().(*onednn.PackedConv)
		require.True(t, ok)
		assert.True(t, packed.Frozen())
		contexts = append(contexts, packed)
	}, nil)
	return contexts
}

func TestInsertPrePackedOps(t *testing.T) {
	g, _, conv := newConvGraph("plain", []int{1, 3, 8, 8}, 4)
	g.RegisterOutput(conv.Output())

	InsertPrePackedOps(g)

	assert.Equal(t, 0, countKind(g, ir.KindConv2d))
	require.Equal(t, 1, countKind(g, onednn.KindConv2dPrepack))
	require.Equal(t, 1, countKind(g, onednn.KindConv2dRun))

	var prepack *ir.Node
	ir.WalkBlocks(g.Block(), func(n *ir.Node) {
		if n.Kind() == onednn.KindConv2dPrepack {
			prepack = n
		}
	}, nil)
	require.Equal(t, 10, prepack.NumInputs())
	inputSize, ok := ir.AsLiteral(prepack.Input(6))
	require.True(t, ok)
	assert.Equal(t, []int64{1, 3, 8, 8}, inputSize.Ints())
	attr, ok := ir.AsLiteral(prepack.Input(7))
	require.True(t, ok)
	assert.Equal(t, onednn.AttrNone, attr.Str())
	scalars, ok := ir.AsLiteral(prepack.Input(8))
	require.True(t, ok)
	assert.Empty(t, scalars.Scalars())
	algorithm, ok := ir.AsLiteral(prepack.Input(9))
	require.True(t, ok)
	assert.True(t, algorithm.IsNone())
	assert.Equal(t, onednn.ConvOpContextType, prepack.Output().Type())
}

func TestInsertPrePackedOpsCanonicalizesConvolution(t *testing.T) {
	g := ir.New("legacy")
	inputSizes := []int{1, 3, 8, 8}
	input := g.AddInput("input", ir.MakeTensorType(dtypes.Float32, inputSizes, ir.FormatChannelsLast))
	weight := tensors.FromFlat(shapes.Make(dtypes.Float32, 4, 3, 3, 3), testValues(4*3*9))
	w := g.InsertConstant(ir.NewTensor(weight))
	w.SetType(ir.MakeTensorType(dtypes.Float32, weight.Shape().Dimensions, ir.FormatChannelsLast))
	conv := g.Create(ir.KindConvolution, 1)
	conv.AddInput(input).AddInput(w)
	conv.AddInput(g.InsertConstant(ir.NewNone()))        // bias
	conv.AddInput(g.InsertConstant(ir.NewIntList(1, 1))) // stride
	conv.AddInput(g.InsertConstant(ir.NewIntList(1, 1))) // padding
	conv.AddInput(g.InsertConstant(ir.NewIntList(1, 1))) // dilation
	conv.AddInput(g.InsertConstant(ir.NewInt(0)))        // transposed
	conv.AddInput(g.InsertConstant(ir.NewIntList(0, 0))) // output_padding
	conv.AddInput(g.InsertConstant(ir.NewInt(1)))        // groups
	for ii := 0; ii < 3; ii++ {
		conv.AddInput(g.InsertConstant(ir.NewInt(0)))
	}
	conv.Output().SetType(ir.MakeTensorType(dtypes.Float32, []int{1, 4, 8, 8}, ir.FormatChannelsLast))
	g.InsertNode(conv)
	g.RegisterOutput(conv.Output())

	InsertPrePackedOps(g)

	assert.Equal(t, 0, countKind(g, ir.KindConvolution))
	assert.Equal(t, 0, countKind(g, ir.KindConv2d))
	assert.Equal(t, 1, countKind(g, onednn.KindConv2dRun))
}

func TestIneligibleConvsAreUntouched(t *testing.T) {
	// A conv2d whose activation and weight are fine but whose bias lives on
	// the given device; every tensor operand has to be a CPU tensor.
	withBiasDevice := func(name string, device ir.Device) *ir.Graph {
		g := ir.New(name)
		input := g.AddInput("input", ir.MakeTensorType(dtypes.Float32, []int{1, 3, 8, 8}, ir.FormatChannelsLast))
		weight := tensors.FromFlat(shapes.Make(dtypes.Float32, 4, 3, 3, 3), testValues(4*3*9))
		w := g.InsertConstant(ir.NewTensor(weight))
		w.SetType(ir.MakeTensorType(dtypes.Float32, weight.Shape().Dimensions, ir.FormatChannelsLast))
		biasType := ir.MakeTensorType(dtypes.Float32, []int{4}, ir.FormatContiguous)
		biasType.Device = device
		conv := g.Create(ir.KindConv2d, 1)
		conv.AddInput(input).AddInput(w)
		conv.AddInput(g.AddInput("bias", biasType))
		conv.AddInput(g.InsertConstant(ir.NewIntList(1, 1)))
		conv.AddInput(g.InsertConstant(ir.NewIntList(1, 1)))
		conv.AddInput(g.InsertConstant(ir.NewIntList(1, 1)))
		conv.AddInput(g.InsertConstant(ir.NewInt(1)))
		conv.Output().SetType(ir.MakeTensorType(dtypes.Float32, []int{1, 4, 8, 8}, ir.FormatChannelsLast))
		g.InsertNode(conv)
		g.RegisterOutput(conv.Output())
		return g
	}

	for _, test := range []struct {
		name  string
		build func() *ir.Graph
	}{
		{"contiguous activation", func() *ir.Graph {
			g := ir.New("contiguous")
			input := g.AddInput("input", ir.MakeTensorType(dtypes.Float32, []int{1, 3, 8, 8}, ir.FormatContiguous))
			conv := addConv2d(g, input, []int{1, 3, 8, 8}, 4, 1)
			g.RegisterOutput(conv.Output())
			return g
		}},
		{"cuda device", func() *ir.Graph {
			g := ir.New("cuda")
			tt := ir.MakeTensorType(dtypes.Float32, []int{1, 3, 8, 8}, ir.FormatChannelsLast)
			tt.Device = ir.DeviceCUDA
			input := g.AddInput("input", tt)
			conv := addConv2d(g, input, []int{1, 3, 8, 8}, 4, 1)
			g.RegisterOutput(conv.Output())
			return g
		}},
		{"cuda bias", func() *ir.Graph {
			return withBiasDevice("cuda-bias", ir.DeviceCUDA)
		}},
		{"unknown bias device", func() *ir.Graph {
			return withBiasDevice("unknown-bias", ir.DeviceUnknown)
		}},
		{"symbolic activation sizes", func() *ir.Graph {
			g := ir.New("symbolic")
			tt := ir.MakeTensorType(dtypes.Float32, nil, ir.FormatChannelsLast)
			tt.Sizes = []int{-1, 3, 8, 8}
			input := g.AddInput("input", tt)
			conv := addConv2d(g, input, []int{1, 3, 8, 8}, 4, 1)
			g.RegisterOutput(conv.Output())
			return g
		}},
		{"depthwise", func() *ir.Graph {
			g := ir.New("depthwise")
			input := g.AddInput("input", ir.MakeTensorType(dtypes.Float32, []int{1, 8, 8, 8}, ir.FormatChannelsLast))
			conv := addConv2d(g, input, []int{1, 8, 8, 8}, 8, 8)
			g.RegisterOutput(conv.Output())
			return g
		}},
	} {
		t.Run(test.name, func(t *testing.T) {
			g := test.build()
			before := g.String()
			FuseConvWithEltwise(g)
			assert.Equal(t, before, g.String())
			assert.Equal(t, 1, countKind(g, ir.KindConv2d))
		})
	}
}

func TestFuseConvRelu(t *testing.T) {
	g, _, conv := newConvGraph("conv-relu", []int{1, 3, 8, 8}, 4)
	relu := g.Create(ir.KindRelu, 1)
	relu.AddInput(conv.Output())
	g.InsertNode(relu)
	g.RegisterOutput(relu.Output())

	FuseConvWithEltwise(g)

	assert.Equal(t, 0, countKind(g, ir.KindConv2d))
	assert.Equal(t, 0, countKind(g, ir.KindRelu))
	assert.Equal(t, 0, countKind(g, onednn.KindConv2dPrepack))
	assert.Equal(t, 1, countKind(g, onednn.KindConv2dRun))

	contexts := frozenContexts(t, g)
	require.Len(t, contexts, 1)
	assert.Equal(t, onednn.AttrRelu, contexts[0].Attr())
	assert.Empty(t, contexts[0].Scalars())

	// Only the frozen constant and the run node survive.
	assert.Equal(t, 2, g.Block().NumNodes())
}

func TestFuseEltwiseTable(t *testing.T) {
	build := func(attach func(g *ir.Graph, convOut *ir.Value) *ir.Node) *ir.Graph {
		g, _, conv := newConvGraph("table", []int{1, 3, 6, 6}, 2)
		post := attach(g, conv.Output())
		g.RegisterOutput(post.Output())
		return g
	}

	t.Run("leaky_relu", func(t *testing.T) {
		g := build(func(g *ir.Graph, convOut *ir.Value) *ir.Node {
			n := g.Create(ir.KindLeakyRelu, 1)
			n.AddInput(convOut).AddInput(g.InsertConstant(ir.NewScalar(0.01)))
			return g.InsertNode(n)
		})
		FuseConvWithEltwise(g)
		contexts := frozenContexts(t, g)
		require.Len(t, contexts, 1)
		assert.Equal(t, onednn.AttrLeakyRelu, contexts[0].Attr())
		assert.Equal(t, []float64{0.01}, contexts[0].Scalars())
		assert.Equal(t, 0, countKind(g, ir.KindLeakyRelu))
	})

	t.Run("leaky_relu with symbolic slope stays", func(t *testing.T) {
		g, _, conv := newConvGraph("table", []int{1, 3, 6, 6}, 2)
		alpha := g.AddInput("alpha", ir.ScalarType{})
		n := g.Create(ir.KindLeakyRelu, 1)
		n.AddInput(conv.Output()).AddInput(alpha)
		g.InsertNode(n)
		g.RegisterOutput(n.Output())
		FuseConvWithEltwise(g)
		assert.Equal(t, 1, countKind(g, ir.KindLeakyRelu))
		contexts := frozenContexts(t, g)
		require.Len(t, contexts, 1)
		assert.Equal(t, onednn.AttrNone, contexts[0].Attr())
	})

	t.Run("hardtanh", func(t *testing.T) {
		g := build(func(g *ir.Graph, convOut *ir.Value) *ir.Node {
			n := g.Create(ir.KindHardTanh, 1)
			n.AddInput(convOut)
			n.AddInput(g.InsertConstant(ir.NewScalar(-1)))
			n.AddInput(g.InsertConstant(ir.NewScalar(1)))
			return g.InsertNode(n)
		})
		FuseConvWithEltwise(g)
		contexts := frozenContexts(t, g)
		require.Len(t, contexts, 1)
		assert.Equal(t, onednn.AttrHardTanh, contexts[0].Attr())
		assert.Equal(t, []float64{-1, 1}, contexts[0].Scalars())
		assert.Equal(t, 0, countKind(g, ir.KindHardTanh))
	})

	t.Run("gelu tanh", func(t *testing.T) {
		g := build(func(g *ir.Graph, convOut *ir.Value) *ir.Node {
			n := g.Create(ir.KindGelu, 1)
			n.AddInput(convOut).AddInput(g.InsertConstant(ir.NewString(onednn.GeluTanh)))
			return g.InsertNode(n)
		})
		FuseConvWithEltwise(g)
		contexts := frozenContexts(t, g)
		require.Len(t, contexts, 1)
		assert.Equal(t, onednn.AttrGelu, contexts[0].Attr())
		assert.Equal(t, onednn.GeluTanh, contexts[0].Algorithm())
		assert.Equal(t, 0, countKind(g, ir.KindGelu))
	})

	t.Run("gelu with unsupported approximation stays", func(t *testing.T) {
		g := build(func(g *ir.Graph, convOut *ir.Value) *ir.Node {
			n := g.Create(ir.KindGelu, 1)
			n.AddInput(convOut).AddInput(g.InsertConstant(ir.NewString("quick")))
			return g.InsertNode(n)
		})
		FuseConvWithEltwise(g)
		assert.Equal(t, 1, countKind(g, ir.KindGelu))
		contexts := frozenContexts(t, g)
		require.Len(t, contexts, 1)
		assert.Equal(t, onednn.AttrNone, contexts[0].Attr())
	})
}

func TestFuseConvAddRelu(t *testing.T) {
	inputSizes := []int{1, 3, 8, 8}
	g, _, conv := newConvGraph("conv-add-relu", inputSizes, 4)
	accumu := g.AddInput("accumu", ir.MakeTensorType(dtypes.Float32, []int{1, 4, 8, 8}, ir.FormatChannelsLast))
	add := g.Create(ir.KindAdd, 1)
	add.AddInput(conv.Output()).AddInput(accumu)
	add.AddInput(g.InsertConstant(ir.NewScalar(0.5)))
	g.InsertNode(add)
	relu := g.Create(ir.KindRelu, 1)
	relu.AddInput(add.Output())
	g.InsertNode(relu)
	g.RegisterOutput(relu.Output())

	FuseConvWithEltwise(g)

	assert.Equal(t, 0, countKind(g, ir.KindAdd))
	assert.Equal(t, 0, countKind(g, ir.KindRelu))
	assert.Equal(t, 0, countKind(g, onednn.KindConv2dRun))
	require.Equal(t, 1, countKind(g, onednn.KindConv2dSumRun))

	var sumRun *ir.Node
	ir.WalkBlocks(g.Block(), func(n *ir.Node) {
		if n.Kind() == onednn.KindConv2dSumRun {
			sumRun = n
		}
	}, nil)
	require.Equal(t, 3, sumRun.NumInputs())
	assert.Equal(t, accumu, sumRun.Input(1))

	contexts := frozenContexts(t, g)
	require.Len(t, contexts, 1)
	assert.Equal(t, onednn.AttrSumRelu, contexts[0].Attr())
	assert.Equal(t, []float64{0.5}, contexts[0].Scalars())
}

func TestFuseAddIsCommutativeForUnitAlpha(t *testing.T) {
	build := func(accumuFirst bool, alpha float64) (*ir.Graph, *ir.Value) {
		g, _, conv := newConvGraph("commutative", []int{1, 3, 8, 8}, 4)
		accumu := g.AddInput("accumu", ir.MakeTensorType(dtypes.Float32, []int{1, 4, 8, 8}, ir.FormatChannelsLast))
		add := g.Create(ir.KindAdd, 1)
		if accumuFirst {
			add.AddInput(accumu).AddInput(conv.Output())
		} else {
			add.AddInput(conv.Output()).AddInput(accumu)
		}
		add.AddInput(g.InsertConstant(ir.NewScalar(alpha)))
		g.InsertNode(add)
		g.RegisterOutput(add.Output())
		return g, accumu
	}

	for _, accumuFirst := range []bool{false, true} {
		name := "accumulator on the right"
		if accumuFirst {
			name = "accumulator on the left"
		}
		t.Run(name, func(t *testing.T) {
			g, accumu := build(accumuFirst, 1)
			FuseConvWithEltwise(g)
			require.Equal(t, 1, countKind(g, onednn.KindConv2dSumRun))
			var sumRun *ir.Node
			ir.WalkBlocks(g.Block(), func(n *ir.Node) {
				if n.Kind() == onednn.KindConv2dSumRun {
					sumRun = n
				}
			}, nil)
			// The accumulator lands in the same operand slot either way.
			assert.Equal(t, accumu, sumRun.Input(1))
			contexts := frozenContexts(t, g)
			require.Len(t, contexts, 1)
			assert.Equal(t, onednn.AttrSum, contexts[0].Attr())
			assert.Equal(t, []float64{1}, contexts[0].Scalars())
		})
	}

	t.Run("mirrored form needs unit alpha", func(t *testing.T) {
		g, _ := build(true, 2)
		FuseConvWithEltwise(g)
		assert.Equal(t, 1, countKind(g, ir.KindAdd))
		assert.Equal(t, 0, countKind(g, onednn.KindConv2dSumRun))
	})

	t.Run("plain form takes any alpha", func(t *testing.T) {
		g, _ := build(false, 2)
		FuseConvWithEltwise(g)
		assert.Equal(t, 0, countKind(g, ir.KindAdd))
		assert.Equal(t, 1, countKind(g, onednn.KindConv2dSumRun))
	})
}

func TestEscapingConvOutputBlocksFusion(t *testing.T) {
	g, _, conv := newConvGraph("escaping", []int{1, 3, 8, 8}, 4)
	relu := g.Create(ir.KindRelu, 1)
	relu.AddInput(conv.Output())
	g.InsertNode(relu)
	g.RegisterOutput(relu.Output())
	g.RegisterOutput(conv.Output()) // the raw conv result escapes too

	FuseConvWithEltwise(g)

	// The conv is still prepacked (attr "none"), but the relu cannot be
	// absorbed: its input has another consumer.
	assert.Equal(t, 1, countKind(g, ir.KindRelu))
	assert.Equal(t, 1, countKind(g, onednn.KindConv2dRun))
	contexts := frozenContexts(t, g)
	require.Len(t, contexts, 1)
	assert.Equal(t, onednn.AttrNone, contexts[0].Attr())
}

func TestFoldedContextMatchesUnfusedComputation(t *testing.T) {
	inputSizes := []int{1, 3, 8, 8}
	g, _, conv := newConvGraph("roundtrip", inputSizes, 4)
	weight, _ := ir.AsLiteral(conv.Input(1))
	bias, _ := ir.AsLiteral(conv.Input(2))
	relu := g.Create(ir.KindRelu, 1)
	relu.AddInput(conv.Output())
	g.InsertNode(relu)
	g.RegisterOutput(relu.Output())

	FuseConvWithEltwise(g)
	contexts := frozenContexts(t, g)
	require.Len(t, contexts, 1)

	input := tensors.FromFlat(shapes.Make(dtypes.Float32, inputSizes...), testValues(xslices.Prod(inputSizes)))
	got := must.M1(contexts[0].Run(input))

	plain := must.M1(onednn.Prepack(weight.Tensor(), bias.Tensor(),
		[]int{1, 1}, []int{1, 1}, []int{1, 1}, 1, inputSizes, onednn.AttrNone, nil, ""))
	want := must.M1(plain.Run(input))
	wantFlat := want.Flat()
	for ii, x := range wantFlat {
		if x < 0 {
			wantFlat[ii] = 0
		}
	}
	assert.True(t, got.InDelta(want, 1e-5))
}

func TestNonConstantWeightLeavesPrepackUnfolded(t *testing.T) {
	g := ir.New("runtime-pack")
	inputSizes := []int{1, 3, 8, 8}
	input := g.AddInput("input", ir.MakeTensorType(dtypes.Float32, inputSizes, ir.FormatChannelsLast))
	weight := g.AddInput("weight", ir.MakeTensorType(dtypes.Float32, []int{4, 3, 3, 3}, ir.FormatChannelsLast))
	bias := tensors.FromFlat(shapes.Make(dtypes.Float32, 4), testValues(4))
	conv := g.Create(ir.KindConv2d, 1)
	conv.AddInput(input).AddInput(weight)
	conv.AddInput(g.InsertConstant(ir.NewTensor(bias)))
	conv.AddInput(g.InsertConstant(ir.NewIntList(1, 1)))
	conv.AddInput(g.InsertConstant(ir.NewIntList(1, 1)))
	conv.AddInput(g.InsertConstant(ir.NewIntList(1, 1)))
	conv.AddInput(g.InsertConstant(ir.NewInt(1)))
	conv.Output().SetType(ir.MakeTensorType(dtypes.Float32, []int{1, 4, 8, 8}, ir.FormatChannelsLast))
	g.InsertNode(conv)
	relu := g.Create(ir.KindRelu, 1)
	relu.AddInput(conv.Output())
	g.InsertNode(relu)
	g.RegisterOutput(relu.Output())

	FuseConvWithEltwise(g)

	// The relu still folds into the prepack attribute, but with a runtime
	// weight the packing itself has to stay a graph node.
	assert.Equal(t, 0, countKind(g, ir.KindConv2d))
	assert.Equal(t, 0, countKind(g, ir.KindRelu))
	require.Equal(t, 1, countKind(g, onednn.KindConv2dPrepack))
	assert.Equal(t, 1, countKind(g, onednn.KindConv2dRun))
	assert.Empty(t, frozenContexts(t, g))

	var prepack *ir.Node
	ir.WalkBlocks(g.Block(), func(n *ir.Node) {
		if n.Kind() == onednn.KindConv2dPrepack {
			prepack = n
		}
	}, nil)
	attr, ok := ir.AsLiteral(prepack.Input(7))
	require.True(t, ok)
	assert.Equal(t, onednn.AttrRelu, attr.Str())
}

func TestFuseConvWithEltwiseIsIdempotent(t *testing.T) {
	g, _, conv := newConvGraph("idempotent", []int{1, 3, 8, 8}, 4)
	relu := g.Create(ir.KindRelu, 1)
	relu.AddInput(conv.Output())
	g.InsertNode(relu)
	g.RegisterOutput(relu.Output())

	FuseConvWithEltwise(g)
	first := g.String()
	FuseConvWithEltwise(g)
	assert.Equal(t, first, g.String())
}

func TestFuseConvWithEltwiseInModule(t *testing.T) {
	newMethod := func(name string) *ir.Graph {
		g, _, conv := newConvGraph(name, []int{1, 3, 8, 8}, 4)
		relu := g.Create(ir.KindRelu, 1)
		relu.AddInput(conv.Output())
		g.InsertNode(relu)
		g.RegisterOutput(relu.Output())
		return g
	}

	root := jit.NewModule("root")
	root.AddMethod("forward", newMethod("root.forward"))
	child := jit.NewModule("child")
	child.AddMethod("forward", newMethod("child.forward"))
	child.AddMethod("project", newMethod("child.project"))
	root.AddChild(child)

	FuseConvWithEltwiseInModule(root)

	for _, m := range []*jit.Module{root, child} {
		for _, method := range m.Methods() {
			assert.Equal(t, 0, countKind(method.Graph, ir.KindRelu), "module %s method %s", m.Name(), method.Name)
			assert.Equal(t, 1, countKind(method.Graph, onednn.KindConv2dRun))
		}
	}
}
