// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package mkldnn rewrites dataflow graphs so that 2D convolutions run
// through the packed oneDNN operators of backends/onednn.
//
// The pipeline, FuseConvWithEltwise, works in stages: eligible aten::conv2d
// nodes are replaced by conv2d_prepack/conv2d_run pairs; elementwise
// consumers (relu, leaky_relu, hardtanh, gelu) are folded into the prepack's
// fusion attribute; residual adds (optionally followed by relu) become
// conv2d_sum_run; and finally prepack nodes with constant operands are
// folded into frozen ConvOpContext literals, so nothing is packed at
// runtime. Every stage leaves ineligible nodes strictly unchanged.
package mkldnn

import (
	"k8s.io/klog/v2"

	"github.com/wqfish/pytorch/jit"
	"github.com/wqfish/pytorch/jit/ir"
	"github.com/wqfish/pytorch/jit/passes"
)

// FuseConvWithEltwise applies the full packed-convolution rewrite pipeline
// to one graph. It is idempotent: running it again leaves the graph as is.
func FuseConvWithEltwise(g *ir.Graph) {
	klog.V(2).Infof("FuseConvWithEltwise: before any rewrite:\n%s", g)
	InsertPrePackedOps(g)
	klog.V(2).Infof("FuseConvWithEltwise: after inserting prepacked ops:\n%s", g)
	FuseEltwiseWithPackedOps(g)
	klog.V(2).Infof("FuseConvWithEltwise: after elementwise fusion:\n%s", g)
	FuseAddReluWithPackedOps(g)
	klog.V(2).Infof("FuseConvWithEltwise: after residual-add fusion:\n%s", g)
	passes.ConstantPropagation(g)
	FoldPrePackingOps(g)
	passes.EliminateDeadCode(g.Block())
	klog.V(2).Infof("FuseConvWithEltwise: after folding prepacked ops:\n%s", g)
}

// FuseConvWithEltwiseInModule applies FuseConvWithEltwise to every method
// graph of the module and, recursively, of its children.
func FuseConvWithEltwiseInModule(m *jit.Module) {
	for _, method := range m.Methods() {
		klog.V(2).Infof("FuseConvWithEltwise: module %q method %q", m.Name(), method.Name)
		FuseConvWithEltwise(method.Graph)
	}
	for _, child := range m.Children() {
		FuseConvWithEltwiseInModule(child)
	}
}
