// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package mkldnn

import (
	"github.com/gomlx/exceptions"
	"k8s.io/klog/v2"

	"github.com/wqfish/pytorch/backends/onednn"
	"github.com/wqfish/pytorch/jit/ir"
)

// FoldPrePackingOps evaluates every conv2d_prepack node whose operands are
// all constants and replaces it with a frozen ConvOpContext literal, so the
// packing work happens once at compile time. Prepack nodes with symbolic
// operands, or whose evaluation fails, are left for runtime.
//
// Deletion is two-phase: all folded nodes first drop their inputs, then are
// destroyed. A folded prepack may feed constants that another folded prepack
// shares, and the intermediate state must never destroy a node whose outputs
// are still used.
func FoldPrePackingOps(g *ir.Graph) {
	var folded []*ir.Node
	ir.WalkBlocks(g.Block(), func(n *ir.Node) {
		if n.Kind() != onednn.KindConv2dPrepack {
			return
		}
		outs, err := ir.RunNodeIfInputsAreConstant(n)
		if err != nil {
			klog.V(2).Infof("FoldPrePackingOps: leaving prepack node for runtime: %v", err)
			return
		}
		if outs == nil {
			return
		}
		if len(outs) != 1 {
			exceptions.Panicf("prepacking ops are expected to have a single output, evaluation produced %d", len(outs))
		}
		if outs[0].Kind() != ir.LiteralObject {
			exceptions.Panicf("conv2d_prepack evaluated to %s, expected a ConvOpContext", outs[0].Kind())
		}
		packed, ok := outs[0].Obj().(*onednn.PackedConv)
		if !ok {
			exceptions.Panicf("conv2d_prepack evaluated to object %s, expected a ConvOpContext", outs[0].Obj().TypeName())
		}

		restore := g.SetInsertBefore(n)
		frozen := g.InsertConstant(ir.NewObject(packed.Freeze()))
		frozen.SetType(n.Output().Type())
		restore()
		n.Output().ReplaceAllUsesWith(frozen)
		folded = append(folded, n)
	}, nil)

	for _, n := range folded {
		n.RemoveAllInputs()
	}
	for _, n := range folded {
		n.Destroy()
	}
}
