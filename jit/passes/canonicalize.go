// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package passes

import (
	"k8s.io/klog/v2"

	"github.com/wqfish/pytorch/jit/ir"
)

// ReplaceConvolutionWithConv2d canonicalizes the legacy generic convolution
// operator to aten::conv2d wherever it denotes a plain, non-transposed 2D
// convolution.
//
// aten::_convolution carries (input, weight, bias, stride, padding,
// dilation, transposed, output_padding, groups) plus trailing dispatch flags
// (benchmark, deterministic, cudnn_enabled and, in newer graphs, allow_tf32)
// that a conv2d does not need. The rewrite requires transposed to be the
// constant false (0) and output_padding to be all-zero constants; anything
// else is left untouched.
func ReplaceConvolutionWithConv2d(g *ir.Graph) {
	ir.WalkBlocks(g.Block(), func(n *ir.Node) {
		if n.Kind() != ir.KindConvolution {
			return
		}
		if n.NumInputs() != 12 && n.NumInputs() != 13 {
			klog.V(2).Infof("ReplaceConvolutionWithConv2d: unexpected _convolution arity %d", n.NumInputs())
			return
		}
		transposed, ok := ir.AsLiteral(n.Input(6))
		if !ok || transposed.Kind() != ir.LiteralInt || transposed.Int() != 0 {
			return
		}
		outputPadding, ok := ir.AsLiteral(n.Input(7))
		if !ok || outputPadding.Kind() != ir.LiteralIntList {
			return
		}
		for _, pad := range outputPadding.Ints() {
			if pad != 0 {
				return
			}
		}

		restore := g.SetInsertBefore(n)
		conv := g.Create(ir.KindConv2d, 1)
		for _, idx := range []int{0, 1, 2, 3, 4, 5, 8} { // input..dilation, groups
			conv.AddInput(n.Input(idx))
		}
		conv.Output().SetType(n.Output().Type())
		g.InsertNode(conv)
		restore()

		n.Output().ReplaceAllUsesWith(conv.Output())
		n.Destroy()
	}, nil)
}
