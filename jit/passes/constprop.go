// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package passes

import (
	"k8s.io/klog/v2"

	"github.com/wqfish/pytorch/jit/ir"
)

// ConstantPropagation folds every node whose inputs all resolve to literals
// and whose kind has a registered evaluator, replacing its outputs with
// constants and destroying the node. Nodes producing opaque object types are
// never folded here: converting a backend object into its frozen literal
// form is the job of the dedicated folding pass that understands the object.
func ConstantPropagation(g *ir.Graph) {
	ir.WalkBlocks(g.Block(), func(n *ir.Node) {
		if n.IsConstant() {
			return
		}
		for _, out := range n.Outputs() {
			if _, isObject := out.Type().(ir.ObjectType); isObject {
				return
			}
		}
		outs, err := ir.RunNodeIfInputsAreConstant(n)
		if err != nil {
			klog.V(2).Infof("ConstantPropagation: leaving node %s in place: %v", n.Kind(), err)
			return
		}
		if outs == nil {
			return
		}
		restore := g.SetInsertBefore(n)
		for ii, lit := range outs {
			old := n.Outputs()[ii]
			c := g.InsertConstant(lit)
			if _, isAny := old.Type().(ir.AnyType); !isAny {
				c.SetType(old.Type())
			}
			old.ReplaceAllUsesWith(c)
		}
		restore()
		n.Destroy()
	}, nil)
}
