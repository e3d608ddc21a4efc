// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package mkldnn

import (
	"github.com/wqfish/pytorch/backends/onednn"
	"github.com/wqfish/pytorch/jit/ir"
	"github.com/wqfish/pytorch/jit/passes"
	"github.com/wqfish/pytorch/types/xslices"
)

// InsertPrePackedOps canonicalizes generic convolutions and replaces every
// eligible aten::conv2d with a conv2d_prepack/conv2d_run pair carrying the
// "none" fusion attribute. Later stages refine the attribute; conv nodes
// that are not eligible stay untouched.
func InsertPrePackedOps(g *ir.Graph) {
	passes.ReplaceConvolutionWithConv2d(g)
	insertPrePackedConvOp(g.Block())
}

func insertPrePackedConvOp(b *ir.Block) {
	ir.WalkBlocks(b, func(n *ir.Node) {
		if n.Kind() == ir.KindConv2d && isTensorTypeCPU(n) {
			insertPrePackedConvOpForNode(n)
		}
	}, passes.EliminateDeadCode)
}

func insertPrePackedConvOpForNode(n *ir.Node) {
	sizes, ok := eligibleActivationSizes(n)
	if !ok {
		return
	}
	g := n.Graph()
	restore := g.SetInsertBefore(n)
	defer restore()

	inputSizes := xslices.Map(sizes, func(size int) int64 { return int64(size) })
	prepack := g.Create(onednn.KindConv2dPrepack, 1)
	// weight, bias, stride, padding, dilation, groups, then the pack-time
	// specialization operands.
	for ii := 1; ii < n.NumInputs(); ii++ {
		prepack.AddInput(n.Input(ii))
	}
	prepack.AddInput(g.InsertConstant(ir.NewIntList(inputSizes...)))
	prepack.AddInput(g.InsertConstant(ir.NewString(onednn.AttrNone)))
	prepack.AddInput(g.InsertConstant(ir.NewScalarList()))
	prepack.AddInput(g.InsertConstant(ir.NewNone()))
	prepack.Output().SetType(onednn.ConvOpContextType)
	g.InsertNode(prepack)

	run := g.Create(onednn.KindConv2dRun, 1)
	run.AddInput(n.Input(0)).AddInput(prepack.Output())
	run.Output().SetType(n.Output().Type())
	g.InsertNode(run)

	// The conv node is now dead; the per-block sweep removes it.
	n.Output().ReplaceAllUsesWith(run.Output())
}
