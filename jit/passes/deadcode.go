// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package passes implements the generic auxiliary graph passes: dead-code
// elimination, constant propagation and convolution canonicalization. The
// fusion-specific passes live in jit/passes/mkldnn.
package passes

import (
	"github.com/wqfish/pytorch/jit/ir"
)

// EliminateDeadCode destroys every node of the block (and its nested blocks)
// whose outputs have no uses. All operators in this IR are effect-free, so
// liveness is purely a question of use counts; only nodes with zero outputs
// are conservatively kept.
func EliminateDeadCode(b *ir.Block) {
	changed := true
	for changed {
		changed = false
		nodes := b.Nodes()
		for ii := len(nodes) - 1; ii >= 0; ii-- {
			n := nodes[ii]
			if n.Destroyed() {
				continue
			}
			for _, nested := range n.Blocks() {
				EliminateDeadCode(nested)
			}
			if n.NumOutputs() == 0 {
				continue
			}
			live := false
			for _, out := range n.Outputs() {
				if out.HasUses() {
					live = true
					break
				}
			}
			if !live {
				n.Destroy()
				changed = true
			}
		}
	}
}
